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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognigy/a2a-gateway/pkg/agent"
	"github.com/cognigy/a2a-gateway/pkg/config"
	"github.com/cognigy/a2a-gateway/pkg/task"
)

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	agents := []*config.AgentConfig{
		{
			ID:        "support-bot",
			Name:      "Support Bot",
			Version:   "1.0.0",
			Transport: config.TransportStream,
			Endpoint:  "https://endpoint.example.com",
			Token:     "tok",
		},
		{
			ID:        "sales-bot",
			Name:      "Sales Bot",
			Version:   "1.0.0",
			Transport: config.TransportREQ,
			Endpoint:  "https://endpoint.example.com",
			Token:     "tok",
		},
	}

	registry, err := agent.NewRegistry("http://localhost:8080", agents)
	require.NoError(t, err)

	sessions := NewSessionRegistry()
	executors := map[string]*Executor{
		"support-bot": NewExecutor("support-bot", &fakeAdapter{kind: config.TransportStream}, sessions, nil, nil),
		"sales-bot":   NewExecutor("sales-bot", &fakeAdapter{kind: config.TransportREQ}, sessions, nil, nil),
	}

	return NewHTTPServer(8080, registry, executors, task.NewMemoryStore(), NewMetrics())
}

func doRequest(t *testing.T, s *HTTPServer, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(2), body["agents"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestDiscoveryEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/.well-known/agents.json", "/agents"} {
		rec := doRequest(t, s, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var cards []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards), path)
		require.Len(t, cards, 2, path)
		assert.Equal(t, "Support Bot", cards[0]["name"])
		assert.Equal(t, "0.3.0", cards[0]["protocolVersion"])
		assert.Equal(t, "http://localhost:8080/agents/support-bot/", cards[0]["url"])
	}
}

func TestAgentCardEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/agents/support-bot/.well-known/agent-card.json")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Support Bot")
}

func TestAgentCardUnknownAgent(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/agents/ghost/.well-known/agent-card.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRootCardPointsAtDiscovery(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/.well-known/agent-card.json")

	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["message"], "/.well-known/agents.json")
}

func TestJSONRPCUnknownAgent(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/agents/ghost/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodOptions, "/agents")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
