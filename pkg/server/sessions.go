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

package server

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/a2aproject/a2a-go/a2a"
)

// CancelSignal is the cooperative cancellation flag for one in-flight task.
// The executor polls it around suspension points; setting it never
// interrupts an in-flight upstream call.
type CancelSignal struct {
	canceled atomic.Bool
}

// Cancel sets the flag.
func (s *CancelSignal) Cancel() {
	s.canceled.Store(true)
}

// Canceled reports whether the flag is set.
func (s *CancelSignal) Canceled() bool {
	return s.canceled.Load()
}

// SessionRegistry maps in-flight task ids to their cancellation signals.
// Entries live exactly as long as the task's execute call.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[a2a.TaskID]*CancelSignal
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[a2a.TaskID]*CancelSignal)}
}

// Register creates and returns the cancellation signal for a task. Task ids
// are unique per invocation, so a duplicate registration indicates a retry
// of a task id still in flight; the new signal replaces the old one.
func (r *SessionRegistry) Register(taskID a2a.TaskID) *CancelSignal {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[taskID]; exists {
		slog.Warn("Replacing in-flight session registration", "taskId", taskID)
	}

	signal := &CancelSignal{}
	r.sessions[taskID] = signal
	return signal
}

// Deregister removes a task's signal. Absent ids are a no-op.
func (r *SessionRegistry) Deregister(taskID a2a.TaskID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, taskID)
}

// Cancel sets the signal for a task and reports whether it was in flight.
func (r *SessionRegistry) Cancel(taskID a2a.TaskID) bool {
	r.mu.Lock()
	signal, ok := r.sessions[taskID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	signal.Cancel()
	return true
}

// Len reports the number of in-flight sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
