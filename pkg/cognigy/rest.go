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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cognigy/a2a-gateway/pkg/config"
)

// RESTTimeout bounds one REQ call, connect and response included.
const RESTTimeout = 8 * time.Second

// RESTClient invokes a Cognigy REST endpoint: one HTTP POST per turn, full
// output stack in the response. No streaming.
type RESTClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// RESTOption configures a RESTClient.
type RESTOption func(*RESTClient)

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(c *RESTClient) {
		c.client = client
	}
}

// NewRESTClient creates a REQ adapter for the given endpoint base URL and
// endpoint token.
func NewRESTClient(endpoint, token string, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: RESTTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind implements Adapter.
func (c *RESTClient) Kind() config.TransportKind {
	return config.TransportREQ
}

type restRequest struct {
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Text      string         `json:"text"`
	Data      map[string]any `json:"data,omitempty"`
}

type restResponse struct {
	OutputStack []Output `json:"outputStack"`
}

// Send implements Adapter. onOutput is ignored on the REQ path; the full
// output list is returned after the call completes.
func (c *RESTClient) Send(ctx context.Context, req SendRequest, _ OutputFunc) ([]Output, error) {
	body, err := json.Marshal(restRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Text:      req.Text,
		Data:      req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := strings.TrimSuffix(c.endpoint, "/") + "/" + c.token

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &AdapterError{
			Kind:   ErrKindHTTP,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("POST %s: status %s", c.endpoint, resp.Status),
		}
	}

	var parsed restResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &AdapterError{Kind: ErrKindNetwork, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	return expandOutputStack(parsed.OutputStack), nil
}

// expandOutputStack drops internal metadata records and unwraps envelopes so
// callers always see normalizer-ready top-level shapes.
func expandOutputStack(stack []Output) []Output {
	outs := make([]Output, 0, len(stack))
	for _, raw := range stack {
		if raw.IsInternalMetadata() {
			slog.Debug("Dropping internal metadata output")
			continue
		}
		outs = append(outs, raw.Unwrap()...)
	}
	return outs
}

func classifyTransportError(err error) *AdapterError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AdapterError{Kind: ErrKindTimeout, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &AdapterError{Kind: ErrKindTimeout, Err: err}
	default:
		return &AdapterError{Kind: ErrKindNetwork, Err: err}
	}
}
