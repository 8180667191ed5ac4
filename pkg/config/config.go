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

// Package config loads and validates the gateway configuration.
//
// The configuration is a JSON document with a root "agents" array. String
// values may reference environment variables as ${VAR}; unresolved or empty
// substitutions are fatal at load time, never at request time.
package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// TransportKind selects the upstream adapter strategy for an agent.
type TransportKind string

const (
	// TransportREQ is the synchronous request/response REST endpoint.
	TransportREQ TransportKind = "req"
	// TransportStream is the persistent bidirectional socket endpoint.
	TransportStream TransportKind = "stream"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._~-]+$`)

// Config is the root configuration document.
type Config struct {
	Agents []*AgentConfig `json:"agents"`
}

// AgentConfig describes one upstream Cognigy flow exposed as an A2A agent.
// Immutable after startup; all placeholders are resolved before construction.
type AgentConfig struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Version     string        `json:"version"`
	Transport   TransportKind `json:"transport"`
	Endpoint    string        `json:"endpoint"`
	Token       string        `json:"token"`
	Skills      []SkillConfig `json:"skills"`
}

// SkillConfig describes one skill advertised on the agent's discovery card.
type SkillConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Validate checks the configuration for structural errors. Duplicate agent
// ids are rejected here rather than at registry construction so that a bad
// config never reaches the serving path.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}

	seen := make(map[string]struct{}, len(c.Agents))
	for i, agent := range c.Agents {
		if agent == nil {
			return fmt.Errorf("agents[%d]: empty agent entry", i)
		}
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agents[%d]: %w", i, err)
		}
		if _, ok := seen[agent.ID]; ok {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, agent.ID)
		}
		seen[agent.ID] = struct{}{}
	}

	return nil
}

// Validate checks a single agent entry.
func (a *AgentConfig) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if !idPattern.MatchString(a.ID) {
		return fmt.Errorf("agent id %q is not URL-safe", a.ID)
	}
	if a.Name == "" {
		return fmt.Errorf("agent %q: name is required", a.ID)
	}

	switch a.Transport {
	case TransportREQ, TransportStream:
	default:
		return fmt.Errorf("agent %q: transport must be %q or %q, got %q",
			a.ID, TransportREQ, TransportStream, a.Transport)
	}

	if a.Endpoint == "" {
		return fmt.Errorf("agent %q: endpoint is required", a.ID)
	}
	if _, err := url.Parse(a.Endpoint); err != nil {
		return fmt.Errorf("agent %q: invalid endpoint: %w", a.ID, err)
	}
	if a.Token == "" {
		return fmt.Errorf("agent %q: token is required", a.ID)
	}

	for i, skill := range a.Skills {
		if skill.ID == "" {
			return fmt.Errorf("agent %q: skills[%d]: skill id is required", a.ID, i)
		}
	}

	return nil
}
