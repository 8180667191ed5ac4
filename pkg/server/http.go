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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cognigy/a2a-gateway/pkg/agent"
)

const shutdownGracePeriod = 10 * time.Second

// HTTPServer exposes the discovery surface and one JSON-RPC endpoint per
// configured agent.
type HTTPServer struct {
	registry *agent.Registry
	metrics  *Metrics
	server   *http.Server

	jsonrpcHandlers map[string]http.Handler
	cardHandlers    map[string]http.Handler
}

// NewHTTPServer wires the per-agent a2a-go handlers and the gateway routes.
// The task store is shared across all agents.
func NewHTTPServer(port int, registry *agent.Registry, executors map[string]*Executor, store a2asrv.TaskStore, metrics *Metrics) *HTTPServer {
	s := &HTTPServer{
		registry:        registry,
		metrics:         metrics,
		jsonrpcHandlers: make(map[string]http.Handler, len(executors)),
		cardHandlers:    make(map[string]http.Handler, len(executors)),
	}

	for id, executor := range executors {
		card, ok := registry.Card(id)
		if !ok {
			slog.Warn("No card for executor, skipping", "agent", id)
			continue
		}

		var opts []a2asrv.RequestHandlerOption
		if store != nil {
			opts = append(opts, a2asrv.WithTaskStore(store))
		}
		requestHandler := a2asrv.NewHandler(executor, opts...)

		s.jsonrpcHandlers[id] = a2asrv.NewJSONRPCHandler(requestHandler)
		s.cardHandlers[id] = a2asrv.NewStaticAgentCardHandler(card)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.routes(),
	}

	return s
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Get("/.well-known/agents.json", s.handleDiscovery)
	r.Get("/agents", s.handleDiscovery)
	r.Get("/health", s.handleHealth)
	r.Get(a2asrv.WellKnownAgentCardPath, s.handleRootCard)

	if s.metrics != nil {
		r.Get("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
	}

	r.Route("/agents/{agent}", func(r chi.Router) {
		r.Get("/.well-known/agent-card.json", s.handleAgentCard)
		r.Post("/", s.handleJSONRPC)
	})
	// Tolerate a missing trailing slash on the JSON-RPC endpoint.
	r.Post("/agents/{agent}", s.handleJSONRPC)

	return r
}

// Start blocks serving HTTP until the context is canceled or the listener
// fails.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.server.Addr, "agents", s.registry.Len())
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests within the grace period.
func (s *HTTPServer) Shutdown() error {
	slog.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler exposes the routed handler. Used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Cards())
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"agents":    s.registry.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRootCard rejects the single-agent well-known path with a pointer at
// the multi-agent discovery URL.
func (s *HTTPServer) handleRootCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "this server hosts multiple agents",
		"message": "list all agent cards at /.well-known/agents.json, or fetch one at /agents/{id}/.well-known/agent-card.json",
	})
}

func (s *HTTPServer) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	handler, ok := s.cardHandlers[chi.URLParam(r, "agent")]
	if !ok {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}
	handler.ServeHTTP(w, r)
}

func (s *HTTPServer) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	handler, ok := s.jsonrpcHandlers[chi.URLParam(r, "agent")]
	if !ok {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}
	handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(started))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
