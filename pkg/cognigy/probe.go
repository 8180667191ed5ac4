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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// probeUserID identifies gateway liveness connections on the Cognigy side.
const probeUserID = "a2a-pool"

// ProbeConn is a long-lived health connection to a stream endpoint. It
// carries no invocation traffic; its read loop only detects disconnects.
type ProbeConn struct {
	conn *websocket.Conn
	done chan error
}

// DialProbe opens a health connection to the socket endpoint. Each probe
// gets a throwaway session id so it never collides with invocation sessions.
func (c *SocketClient) DialProbe(ctx context.Context) (*ProbeConn, error) {
	sessionURL, err := c.sessionURL(SendRequest{
		UserID:    probeUserID,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, sessionURL, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	if resp != nil {
		_ = resp.Body.Close()
	}

	p := &ProbeConn{conn: conn, done: make(chan error, 1)}
	go p.watch()
	return p, nil
}

// Done delivers the terminal read error when the connection drops.
func (p *ProbeConn) Done() <-chan error {
	return p.done
}

// Close tears the connection down; the pending read unblocks with an error
// that the watch loop swallows into Done.
func (p *ProbeConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.conn.SetWriteDeadline(time.Now().Add(closeGracePeriod))
	_ = p.conn.WriteMessage(websocket.CloseMessage, msg)
	return p.conn.Close()
}

func (p *ProbeConn) watch() {
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			p.done <- err
			return
		}
	}
}
