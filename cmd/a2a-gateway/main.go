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

// Command a2a-gateway exposes Cognigy flows as A2A agents.
//
// Usage:
//
//	a2a-gateway serve
//	a2a-gateway validate --config agents.json
//	a2a-gateway version
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/alecthomas/kong"

	"github.com/cognigy/a2a-gateway/pkg/agent"
	"github.com/cognigy/a2a-gateway/pkg/cognigy"
	"github.com/cognigy/a2a-gateway/pkg/config"
	"github.com/cognigy/a2a-gateway/pkg/logger"
	"github.com/cognigy/a2a-gateway/pkg/pool"
	"github.com/cognigy/a2a-gateway/pkg/server"
	"github.com/cognigy/a2a-gateway/pkg/task"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Start the gateway."`
	Validate ValidateCmd `cmd:"" help:"Validate the agent configuration and exit."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config   string `short:"c" help:"Path to the agents config file (overrides CONFIG_PATH)." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error); overrides LOG_LEVEL."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("a2a-gateway version %s\n", version)
	return nil
}

// ValidateCmd loads and validates the configuration without serving.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	settings, cfg, err := loadAll(cli)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration %s is valid: %d agent(s)\n", settings.ConfigPath, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		fmt.Printf("  %s (%s, %s)\n", ac.ID, ac.Name, ac.Transport)
	}
	return nil
}

// ServeCmd starts the gateway.
type ServeCmd struct {
	Port int `help:"Port to listen on (overrides PORT)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	settings, cfg, err := loadAll(cli)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		settings.Port = c.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	baseURL := fmt.Sprintf("http://localhost:%d", settings.Port)
	registry, err := agent.NewRegistry(baseURL, cfg.Agents)
	if err != nil {
		return fmt.Errorf("failed to build agent registry: %w", err)
	}

	store, cleanup, err := buildTaskStore(ctx, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	// Per-agent upstream adapters; stream agents additionally get a probe
	// connection in the pool.
	adapters := make(map[string]cognigy.Adapter, len(cfg.Agents))
	sockets := make(map[string]*cognigy.SocketClient)
	for _, ac := range cfg.Agents {
		switch ac.Transport {
		case config.TransportStream:
			sc := cognigy.NewSocketClient(ac.Endpoint, ac.Token)
			adapters[ac.ID] = sc
			sockets[ac.ID] = sc
		default:
			adapters[ac.ID] = cognigy.NewRESTClient(ac.Endpoint, ac.Token)
		}
	}

	connPool := pool.New(pool.Options{
		Dial: func(ctx context.Context, agentID string) (pool.Conn, error) {
			sc, ok := sockets[agentID]
			if !ok {
				return nil, fmt.Errorf("agent %s has no stream endpoint", agentID)
			}
			return sc.DialProbe(ctx)
		},
		OnDead: func(agentID string) {
			slog.Error("Upstream connection declared dead", "agent", agentID)
		},
	})
	defer connPool.Reset()

	sessions := server.NewSessionRegistry()
	metrics := server.NewMetrics()

	executors := make(map[string]*server.Executor, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		executors[ac.ID] = server.NewExecutor(ac.ID, adapters[ac.ID], sessions, connPool, metrics)
	}

	srv := server.NewHTTPServer(settings.Port, registry, executors, store, metrics)

	slog.Info("Starting gateway",
		"environment", settings.Environment,
		"port", settings.Port,
		"agents", registry.Len(),
		"taskStore", settings.TaskStore)

	return srv.Start(ctx)
}

// loadAll reads process settings and the agent configuration, applying CLI
// overrides and initializing logging.
func loadAll(cli *CLI) (*config.Settings, *config.Config, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	if cli.Config != "" {
		settings.ConfigPath = cli.Config
	}
	if cli.LogLevel != "" {
		settings.LogLevel = cli.LogLevel
	}

	level, err := logger.ParseLevel(settings.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(level, settings.LogPretty, os.Stderr)

	cfg, err := config.Load(settings.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return settings, cfg, nil
}

func buildTaskStore(ctx context.Context, settings *config.Settings) (a2asrv.TaskStore, func(), error) {
	if settings.TaskStore == config.TaskStoreRedis {
		store, err := task.NewRedisStore(ctx, settings.TaskStoreURL, settings.TaskStorePrefix, settings.TaskStoreTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect task store: %w", err)
		}
		slog.Info("Task persistence enabled", "backend", "redis")
		return store, func() { _ = store.Close() }, nil
	}
	return task.NewMemoryStore(), func() {}, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("a2a-gateway"),
		kong.Description("Protocol gateway exposing Cognigy flows as A2A agents."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
