package main

import (
	"context"
	"fmt"

	"github.com/hrdesk/hrdesk/internal/config"
	"github.com/hrdesk/hrdesk/internal/logger"
	"github.com/hrdesk/hrdesk/internal/server"
)

// openApp wires the stores the admin commands work on. Logging is kept to
// warnings so command output stays readable.
func openApp(ctx context.Context) (*server.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.Log.Format, "warn")
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "silent"
	}
	return server.Open(ctx, cfg)
}
