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

package cognigy

import "fmt"

// ErrorKind classifies adapter failures for the executor's translation into
// A2A terminal states.
type ErrorKind string

const (
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindHTTP           ErrorKind = "http"
	ErrKindNetwork        ErrorKind = "network"
	ErrKindDisconnect     ErrorKind = "disconnect"
	ErrKindSocketError    ErrorKind = "socket-error"
	ErrKindSessionTimeout ErrorKind = "session-timeout"
	ErrKindConnectFailed  ErrorKind = "connect-failed"
)

// AdapterError is the single error type adapters surface to the executor.
// The original cause is retained for logging; it is never shown to clients.
type AdapterError struct {
	Kind   ErrorKind
	Status int // HTTP status code, set only for ErrKindHTTP
	Err    error
}

func (e *AdapterError) Error() string {
	switch {
	case e.Kind == ErrKindHTTP:
		return fmt.Sprintf("adapter error (%s): upstream returned status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("adapter error (%s): %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("adapter error (%s)", e.Kind)
	}
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
