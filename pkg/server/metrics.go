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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the gateway's Prometheus collectors.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the gateway collectors on a private
// registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a2a_gateway",
			Name:      "invocations_total",
			Help:      "A2A invocations by agent, transport and outcome.",
		}, []string{"agent", "transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "a2a_gateway",
			Name:      "invocation_duration_seconds",
			Help:      "End-to-end invocation latency by agent and transport.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"agent", "transport"}),
	}

	registry.MustRegister(m.invocations, m.duration)
	return m
}

// ObserveInvocation records one finished invocation.
func (m *Metrics) ObserveInvocation(agent, transport, outcome string, elapsed time.Duration) {
	m.invocations.WithLabelValues(agent, transport, outcome).Inc()
	m.duration.WithLabelValues(agent, transport).Observe(elapsed.Seconds())
}

// Registry exposes the private registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
