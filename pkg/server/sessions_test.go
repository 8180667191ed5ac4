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
	"fmt"
	"sync"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
)

func taskID(n int) a2a.TaskID {
	return a2a.TaskID(fmt.Sprintf("task-%d", n))
}

func TestRegisterAndCancel(t *testing.T) {
	reg := NewSessionRegistry()

	signal := reg.Register("task-1")
	assert.False(t, signal.Canceled())
	assert.Equal(t, 1, reg.Len())

	assert.True(t, reg.Cancel("task-1"))
	assert.True(t, signal.Canceled())
}

func TestCancelUnknownTask(t *testing.T) {
	reg := NewSessionRegistry()
	assert.False(t, reg.Cancel("missing"))
}

func TestCancelIsIdempotent(t *testing.T) {
	reg := NewSessionRegistry()
	signal := reg.Register("task-1")

	assert.True(t, reg.Cancel("task-1"))
	assert.True(t, reg.Cancel("task-1"))
	assert.True(t, signal.Canceled())
}

func TestDeregister(t *testing.T) {
	reg := NewSessionRegistry()
	reg.Register("task-1")

	reg.Deregister("task-1")
	assert.Equal(t, 0, reg.Len())
	assert.False(t, reg.Cancel("task-1"))

	// Absent ids are a no-op.
	reg.Deregister("task-1")
}

func TestDuplicateRegistrationReplacesSignal(t *testing.T) {
	reg := NewSessionRegistry()

	first := reg.Register("task-1")
	second := reg.Register("task-1")
	assert.Equal(t, 1, reg.Len())

	reg.Cancel("task-1")
	assert.False(t, first.Canceled())
	assert.True(t, second.Canceled())
}

func TestConcurrentRegistryAccess(t *testing.T) {
	reg := NewSessionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := taskID(n)
			reg.Register(id)
			reg.Cancel(id)
			reg.Deregister(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Len())
}
