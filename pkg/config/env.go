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
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Recognized environment variables.
const (
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
	EnvEnvironment     = "ENVIRONMENT"
	EnvConfigPath      = "CONFIG_PATH"
	EnvTaskStore       = "TASK_STORE"
	EnvTaskStoreURL    = "TASK_STORE_URL"
	EnvTaskStoreTTL    = "TASK_STORE_TTL"
	EnvTaskStorePrefix = "TASK_STORE_PREFIX"
)

// TaskStoreKind selects the task store implementation.
type TaskStoreKind string

const (
	TaskStoreMemory TaskStoreKind = "memory"
	TaskStoreRedis  TaskStoreKind = "redis"
)

// Settings are process-level knobs read from the environment. Agent
// definitions live in the JSON config file, not here.
type Settings struct {
	Port        int
	LogLevel    string
	LogPretty   bool
	Environment string
	ConfigPath  string

	TaskStore       TaskStoreKind
	TaskStoreURL    string
	TaskStoreTTL    time.Duration
	TaskStorePrefix string
}

// LoadSettings reads process settings from the environment, after loading an
// optional .env file from the working directory.
func LoadSettings() (*Settings, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	s := &Settings{
		Port:            8080,
		LogLevel:        "info",
		Environment:     "production",
		ConfigPath:      "agents.json",
		TaskStore:       TaskStoreMemory,
		TaskStoreTTL:    24 * time.Hour,
		TaskStorePrefix: "a2a:task:",
	}

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid %s value %q", EnvPort, v)
		}
		s.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv(EnvLogPretty); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", EnvLogPretty, v)
		}
		s.LogPretty = pretty
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		s.Environment = v
	}
	if v := os.Getenv(EnvConfigPath); v != "" {
		s.ConfigPath = v
	}

	if v := os.Getenv(EnvTaskStore); v != "" {
		switch TaskStoreKind(strings.ToLower(v)) {
		case TaskStoreMemory:
			s.TaskStore = TaskStoreMemory
		case TaskStoreRedis:
			s.TaskStore = TaskStoreRedis
		default:
			return nil, fmt.Errorf("invalid %s value %q (expected memory or redis)", EnvTaskStore, v)
		}
	}
	if v := os.Getenv(EnvTaskStoreURL); v != "" {
		s.TaskStoreURL = v
	}
	if v := os.Getenv(EnvTaskStoreTTL); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", EnvTaskStoreTTL, v, err)
		}
		s.TaskStoreTTL = ttl
	}
	if v := os.Getenv(EnvTaskStorePrefix); v != "" {
		s.TaskStorePrefix = v
	}

	if s.TaskStore == TaskStoreRedis && s.TaskStoreURL == "" {
		return nil, fmt.Errorf("%s is required when %s=redis", EnvTaskStoreURL, EnvTaskStore)
	}

	return s, nil
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandPlaceholders resolves every ${VAR} reference in s from the
// environment. A reference to an unset or empty variable is a configuration
// error; there are no defaults and no silent empty substitutions.
func expandPlaceholders(s string) (string, error) {
	var expandErr error

	expanded := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val := os.Getenv(name)
		if val == "" && expandErr == nil {
			expandErr = fmt.Errorf("environment variable %s referenced in config is unset or empty", name)
		}
		return val
	})

	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}
