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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAgent() *AgentConfig {
	return &AgentConfig{
		ID:        "support-bot",
		Name:      "Support Bot",
		Version:   "1.0.0",
		Transport: TransportREQ,
		Endpoint:  "https://endpoint.example.com",
		Token:     "tok",
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Agents: []*AgentConfig{validAgent()}}
	assert.NoError(t, cfg.Validate())
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no agents",
			mutate:  func(c *Config) { c.Agents = nil },
			wantErr: "no agents configured",
		},
		{
			name:    "missing id",
			mutate:  func(c *Config) { c.Agents[0].ID = "" },
			wantErr: "agent id is required",
		},
		{
			name:    "id not url safe",
			mutate:  func(c *Config) { c.Agents[0].ID = "my bot!" },
			wantErr: "not URL-safe",
		},
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Agents[0].Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "bad transport",
			mutate:  func(c *Config) { c.Agents[0].Transport = "websocket" },
			wantErr: "transport must be",
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Agents[0].Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Agents[0].Token = "" },
			wantErr: "token is required",
		},
		{
			name: "duplicate ids",
			mutate: func(c *Config) {
				dup := *c.Agents[0]
				c.Agents = append(c.Agents, &dup)
			},
			wantErr: "duplicate agent id",
		},
		{
			name: "skill without id",
			mutate: func(c *Config) {
				c.Agents[0].Skills = []SkillConfig{{Name: "nameless"}}
			},
			wantErr: "skill id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Agents: []*AgentConfig{validAgent()}}
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_ENDPOINT", "https://endpoint.example.com")
	t.Setenv("TEST_TOKEN", "secret-token")

	cfg, err := Parse([]byte(`{
		"agents": [{
			"id": "bot",
			"name": "Bot",
			"transport": "stream",
			"endpoint": "${TEST_ENDPOINT}",
			"token": "${TEST_TOKEN}"
		}]
	}`))
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "https://endpoint.example.com", cfg.Agents[0].Endpoint)
	assert.Equal(t, "secret-token", cfg.Agents[0].Token)
	assert.Equal(t, TransportStream, cfg.Agents[0].Transport)
}

func TestParseUnsetPlaceholderIsFatal(t *testing.T) {
	_, err := Parse([]byte(`{
		"agents": [{
			"id": "bot",
			"name": "Bot",
			"transport": "req",
			"endpoint": "${DEFINITELY_NOT_SET_ANYWHERE}",
			"token": "t"
		}]
	}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_ANYWHERE")
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"agents": [`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config JSON")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"agents": [{
			"id": "bot",
			"name": "Bot",
			"transport": "req",
			"endpoint": "https://endpoint.example.com",
			"token": "t",
			"skills": [{"id": "faq", "name": "FAQ", "tags": ["support"]}]
		}]
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 1)
	require.Len(t, cfg.Agents[0].Skills, 1)
	assert.Equal(t, "faq", cfg.Agents[0].Skills[0].ID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{
		EnvPort, EnvLogLevel, EnvLogPretty, EnvEnvironment, EnvConfigPath,
		EnvTaskStore, EnvTaskStoreURL, EnvTaskStoreTTL, EnvTaskStorePrefix,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, "info", s.LogLevel)
	assert.False(t, s.LogPretty)
	assert.Equal(t, "production", s.Environment)
	assert.Equal(t, "agents.json", s.ConfigPath)
	assert.Equal(t, TaskStoreMemory, s.TaskStore)
	assert.Equal(t, "a2a:task:", s.TaskStorePrefix)
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv(EnvPort, "9090")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogPretty, "true")
	t.Setenv(EnvTaskStore, "redis")
	t.Setenv(EnvTaskStoreURL, "redis://localhost:6379/0")
	t.Setenv(EnvTaskStoreTTL, "1h")

	s, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, "debug", s.LogLevel)
	assert.True(t, s.LogPretty)
	assert.Equal(t, TaskStoreRedis, s.TaskStore)
	assert.Equal(t, "redis://localhost:6379/0", s.TaskStoreURL)
}

func TestLoadSettingsRedisRequiresURL(t *testing.T) {
	t.Setenv(EnvTaskStore, "redis")
	t.Setenv(EnvTaskStoreURL, "")
	require.NoError(t, os.Unsetenv(EnvTaskStoreURL))

	_, err := LoadSettings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvTaskStoreURL)
}

func TestLoadSettingsInvalidPort(t *testing.T) {
	t.Setenv(EnvPort, "not-a-port")
	_, err := LoadSettings()
	assert.Error(t, err)
}
