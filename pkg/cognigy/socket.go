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

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cognigy/a2a-gateway/pkg/config"
)

// Socket session constants.
const (
	// SessionTimeout is the hard upper bound for one STREAM turn.
	SessionTimeout = 60 * time.Second

	socketDialTimeout = 10 * time.Second
	socketWriteWait   = 10 * time.Second
	closeGracePeriod  = 2 * time.Second
)

// Socket frame types exchanged with the endpoint.
const (
	frameInput     = "input"
	frameOutput     = "output"
	frameFinalPing  = "finalPing"
	frameError      = "error"
	frameDisconnect = "disconnect"
)

type socketFrame struct {
	Type    string          `json:"type"`
	Output  json.RawMessage `json:"output,omitempty"`
	Message string          `json:"message,omitempty"`
}

type socketInput struct {
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
}

// SocketClient invokes a Cognigy socket endpoint. Every Send constructs a
// dedicated session bound to the caller's user and session ids; sessions are
// never shared across calls, so outputs of concurrent invocations cannot
// interleave.
type SocketClient struct {
	endpoint string
	token    string
	dialer   *websocket.Dialer
	timeout  time.Duration
}

// SocketOption configures a SocketClient.
type SocketOption func(*SocketClient)

// WithSessionTimeout overrides the per-session hard timeout. Used by tests.
func WithSessionTimeout(d time.Duration) SocketOption {
	return func(c *SocketClient) {
		c.timeout = d
	}
}

// NewSocketClient creates a STREAM adapter for the given endpoint base URL
// and endpoint token.
func NewSocketClient(endpoint, token string, opts ...SocketOption) *SocketClient {
	c := &SocketClient{
		endpoint: endpoint,
		token:    token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: socketDialTimeout,
		},
		timeout: SessionTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind implements Adapter.
func (c *SocketClient) Kind() config.TransportKind {
	return config.TransportStream
}

// Send implements Adapter. Each output received from the session is
// unwrapped, buffered, and handed to onOutput (when non-nil) with its
// arrival index before the session terminates. The buffered list is
// returned on success so non-streaming callers still get the full result.
func (c *SocketClient) Send(ctx context.Context, req SendRequest, onOutput OutputFunc) ([]Output, error) {
	sessionURL, err := c.sessionURL(req)
	if err != nil {
		return nil, &AdapterError{Kind: ErrKindConnectFailed, Err: err}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.dialer.HandshakeTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, sessionURL, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &AdapterError{Kind: ErrKindConnectFailed, Err: err}
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer c.teardown(conn)

	deadline := time.Now().Add(c.timeout)

	input := socketInput{
		Type:      frameInput,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Text:      req.Text,
		Data:      req.Data,
	}
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	if err := conn.WriteJSON(input); err != nil {
		return nil, &AdapterError{Kind: ErrKindSocketError, Err: fmt.Errorf("failed to send input: %w", err)}
	}

	var outputs []Output
	for {
		if err := ctx.Err(); err != nil {
			return nil, &AdapterError{Kind: ErrKindDisconnect, Err: err}
		}

		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, classifySocketReadError(err)
		}

		var frame socketFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("Skipping undecodable socket frame", "error", err)
			continue
		}

		switch frame.Type {
		case frameOutput:
			var raw Output
			if err := json.Unmarshal(frame.Output, &raw); err != nil {
				slog.Warn("Skipping undecodable output frame", "error", err)
				continue
			}
			for _, out := range raw.Unwrap() {
				outputs = append(outputs, out)
				invokeOutputFunc(onOutput, out, len(outputs)-1)
			}

		case frameFinalPing:
			return outputs, nil

		case frameError:
			return nil, &AdapterError{
				Kind: ErrKindSocketError,
				Err:  fmt.Errorf("upstream error: %s", frame.Message),
			}

		case frameDisconnect:
			// Most disconnects arrive as transport read errors; an explicit
			// frame maps to the same kind.
			return nil, &AdapterError{
				Kind: ErrKindDisconnect,
				Err:  fmt.Errorf("upstream closed the session: %s", frame.Message),
			}

		default:
			slog.Debug("Ignoring unknown socket frame", "type", frame.Type)
		}
	}
}

// invokeOutputFunc shields the session from callback panics; a failing
// consumer must not abort the upstream turn.
func invokeOutputFunc(fn OutputFunc, out Output, index int) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Output callback panicked", "index", index, "panic", r)
		}
	}()
	fn(out, index)
}

func (c *SocketClient) teardown(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}

// sessionURL derives the websocket URL from the configured HTTP(S) endpoint:
// scheme swapped to ws(s), token appended as path segment, identity carried
// as query parameters.
func (c *SocketClient) sessionURL(req SendRequest) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(c.endpoint, "/") + "/" + c.token)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("userId", req.UserID)
	q.Set("sessionId", req.SessionID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func classifySocketReadError(err error) *AdapterError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AdapterError{Kind: ErrKindSessionTimeout, Err: err}
	}
	return &AdapterError{Kind: ErrKindDisconnect, Err: err}
}
