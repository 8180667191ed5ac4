// Copyright 2025 The A2A Gateway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package task provides task store implementations for the A2A request
// handler.
package task

import (
	"context"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
)

// MemoryStore is a process-local task store. Suitable for single-instance
// deployments; tasks do not survive a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[a2a.TaskID]*a2a.Task
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[a2a.TaskID]*a2a.Task)}
}

// Save stores or replaces a task.
func (s *MemoryStore) Save(_ context.Context, task *a2a.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

// Get returns a stored task, or a2a.ErrTaskNotFound.
func (s *MemoryStore) Get(_ context.Context, id a2a.TaskID) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, a2a.ErrTaskNotFound
	}
	return task, nil
}

// Len reports the number of stored tasks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
