// ABOUTME: Shared wiring for CLI commands: config loading, gateway construction and front-end connections
// ABOUTME: Front ends talk to an in-process gateway unless client.gateway_url points at a running one

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/2389/explainit/internal/config"
	"github.com/2389/explainit/internal/dispatch"
	"github.com/2389/explainit/internal/gateway"
	"github.com/2389/explainit/internal/store"
)

// loadConfig reads the config named by --config or found by config.Resolve.
// With no config file anywhere, defaults are used and the returned path is empty.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		resolved, err := config.Resolve()
		if errors.Is(err, config.ErrNoConfig) {
			return config.Default(), "", nil
		}
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// openGateway opens the database and builds a gateway over it.
func openGateway(cfg *config.Config, logger *slog.Logger) (*gateway.Gateway, error) {
	if env := os.Getenv("EXPLAINIT_DB_PATH"); env != "" {
		cfg.Database.Path = env
	}

	kv, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	g, err := gateway.New(cfg, kv, logger)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("creating gateway: %w", err)
	}
	return g, nil
}

// frontEnd is what a terminal surface needs from the background process.
type frontEnd struct {
	dispatcher *dispatch.Client
	library    gateway.Library
	close      func()
}

// connect returns a front-end connection. With client.gateway_url set it talks
// HTTP to that gateway; otherwise it starts one in-process.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*frontEnd, error) {
	if url := cfg.Client.GatewayURL; url != "" {
		d := dispatch.NewClient(dispatch.NewHTTPConn(url, nil),
			dispatch.WithTimeout(cfg.Dispatch.Timeout),
			dispatch.WithLogger(logger))
		return &frontEnd{
			dispatcher: d,
			library:    gateway.NewClient(url, nil),
			close:      func() { _ = d.Close() },
		}, nil
	}

	g, err := openGateway(cfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := g.ServeLocal(ctx); err != nil {
			logger.Error("local dispatch stopped", "error", err)
		}
	}()

	return &frontEnd{
		dispatcher: g.Local(),
		library:    g.Library(),
		close: func() {
			cancel()
			<-done
			if err := g.Close(); err != nil {
				logger.Warn("closing gateway", "error", err)
			}
		},
	}, nil
}

// library returns a Library without a dispatch connection, for management commands.
func library(cfg *config.Config, logger *slog.Logger) (gateway.Library, func(), error) {
	if url := cfg.Client.GatewayURL; url != "" {
		return gateway.NewClient(url, nil), func() {}, nil
	}
	g, err := openGateway(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return g.Library(), func() { _ = g.Close() }, nil
}

// commandSetup loads config and a logger writing to errOut.
func commandSetup(errOut io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogger(cfg.Logging, errOut)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
