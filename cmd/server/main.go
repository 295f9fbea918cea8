// Package main is the entry point for the click tracker server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration
// 2. Create dependencies (logger, Click Store, metrics)
// 3. Start the server
//
// All actual logic lives in internal/.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/clicktrail/internal/config"
	"github.com/sakif/clicktrail/internal/metrics"
	"github.com/sakif/clicktrail/internal/server"
	"github.com/sakif/clicktrail/internal/storage"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Any("config", cfg))

	// === 3. CLICK STORE ===
	dsn := cfg.DSN()
	repo, err := storage.Open(dsn)
	if err != nil {
		logger.Error("failed to open click store",
			slog.String("backend", storage.Kind(dsn)),
			slog.String("dsn", storage.Redact(dsn)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info("click store ready",
		slog.String("backend", storage.Kind(dsn)),
		slog.String("dsn", storage.Redact(dsn)),
	)

	// === 4. SERVER ===
	// The server owns repo from here on and closes it on shutdown.
	srv, err := server.New(cfg, repo, metrics.New(), logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		repo.Close()
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
