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

// Package agent resolves configured agents into an immutable registry with
// precomputed discovery cards.
package agent

import (
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/cognigy/a2a-gateway/pkg/config"
)

// protocolVersion is the A2A protocol revision the gateway speaks.
const protocolVersion = "0.3.0"

// Registry holds the resolved agent descriptors and their discovery cards.
// It is built once at startup and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	agents map[string]*config.AgentConfig
	cards  map[string]*a2a.AgentCard
	order  []string
}

// NewRegistry builds a registry from validated agent configs. The base URL
// anchors each card's JSON-RPC endpoint. Duplicate ids fail construction.
func NewRegistry(baseURL string, agents []*config.AgentConfig) (*Registry, error) {
	r := &Registry{
		agents: make(map[string]*config.AgentConfig, len(agents)),
		cards:  make(map[string]*a2a.AgentCard, len(agents)),
	}

	base := strings.TrimSuffix(baseURL, "/")
	for _, ac := range agents {
		if _, exists := r.agents[ac.ID]; exists {
			return nil, fmt.Errorf("duplicate agent id %q", ac.ID)
		}
		r.agents[ac.ID] = ac
		r.cards[ac.ID] = buildCard(base, ac)
		r.order = append(r.order, ac.ID)
	}

	return r, nil
}

// Get returns the descriptor for an agent id.
func (r *Registry) Get(id string) (*config.AgentConfig, bool) {
	ac, ok := r.agents[id]
	return ac, ok
}

// Card returns the precomputed discovery card for an agent id.
func (r *Registry) Card(id string) (*a2a.AgentCard, bool) {
	card, ok := r.cards[id]
	return card, ok
}

// Has reports whether an agent id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.agents[id]
	return ok
}

// Cards returns all discovery cards in configuration order.
func (r *Registry) Cards() []*a2a.AgentCard {
	cards := make([]*a2a.AgentCard, 0, len(r.order))
	for _, id := range r.order {
		cards = append(cards, r.cards[id])
	}
	return cards
}

// Len reports the number of registered agents.
func (r *Registry) Len() int {
	return len(r.agents)
}

func buildCard(base string, ac *config.AgentConfig) *a2a.AgentCard {
	skills := make([]a2a.AgentSkill, 0, len(ac.Skills))
	for _, sk := range ac.Skills {
		skills = append(skills, a2a.AgentSkill{
			ID:          sk.ID,
			Name:        sk.Name,
			Description: sk.Description,
			Tags:        sk.Tags,
		})
	}

	return &a2a.AgentCard{
		Name:            ac.Name,
		Description:     ac.Description,
		Version:         ac.Version,
		ProtocolVersion: protocolVersion,
		URL:             fmt.Sprintf("%s/agents/%s/", base, ac.ID),
		Capabilities: a2a.AgentCapabilities{
			Streaming:              ac.Transport == config.TransportStream,
			PushNotifications:      false,
			StateTransitionHistory: false,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills:             skills,
	}
}
