// Package main is the entry point for the learnhub user directory server.
//
// main stays minimal: load configuration, build the logger, create the
// server, run it. Everything else lives in internal packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/mahin/learnhub/internal/config"
	"github.com/mahin/learnhub/internal/server"
)

func main() {
	// Best-effort .env load for local development. In deployed
	// environments the variables come from the process environment and
	// no .env file exists — that is not an error.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.Level(cfg.LogLevel),
	}))

	if cfg.JWT.Secret == "" {
		// Refuse to start without a verification key: every protected
		// route would 401 and the sync flow would be dead on arrival.
		logger.Error("JWT_SECRET is not set; the server cannot verify identity tokens")
		os.Exit(1)
	}

	// Ensure the sqlite data directory exists when running on the
	// embedded store (no-op for Postgres deployments).
	if cfg.Database.DSN == "" {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", filepath.Dir(cfg.SQLite.Path)),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down via SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
