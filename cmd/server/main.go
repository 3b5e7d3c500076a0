// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package main is the entry point for the Tramita server.
//
// Tramita sits between Brazilian legal-data vendors and downstream client
// systems: it registers monitored cases and search terms with the vendors,
// drains their movement/distribution/publication queues on a schedule, and
// serves the records to clients under a confirm-once batch delivery
// protocol behind an authenticating gateway.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env vars)
//  2. Logging: zerolog, structured JSON or console per config
//  3. Database: DuckDB file store, schema applied on open
//  4. Components: token manager, gateway, registrar, delivery protocol,
//     sync runner and scheduler
//  5. Supervision: suture tree running the HTTP server and the scheduler
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the supervisor context; the HTTP server drains
// in-flight requests (10s timeout) and the scheduler stops sweeping before
// the process exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tramitahub/tramita/internal/api"
	"github.com/tramitahub/tramita/internal/audit"
	"github.com/tramitahub/tramita/internal/auth"
	"github.com/tramitahub/tramita/internal/config"
	"github.com/tramitahub/tramita/internal/database"
	"github.com/tramitahub/tramita/internal/delivery"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
	"github.com/tramitahub/tramita/internal/registrar"
	"github.com/tramitahub/tramita/internal/supervisor"
	syncpkg "github.com/tramitahub/tramita/internal/sync"
	"github.com/tramitahub/tramita/internal/vendor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("environment", cfg.Server.Environment).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	auditLog := audit.NewLogger(db)
	tokens := auth.NewTokenManager(db)
	gateway := auth.NewGateway(tokens, db, auditLog,
		[]byte(cfg.Security.JWTSecret), cfg.Security.RateLimitDefault)

	// One factory shared by the registrar and the sync runner: every vendor
	// client carries the retry policy, circuit breaker and call logging.
	clientFactory := func(service *models.VendorService) (vendor.Client, error) {
		return vendor.New(service, &cfg.Vendor, db)
	}

	reg := registrar.New(db, clientFactory)
	proto := delivery.New(db, auditLog, cfg.API.MaxPageSize)
	runner := syncpkg.NewRunner(db, clientFactory, &cfg.Sync)
	scheduler := syncpkg.NewScheduler(runner, cfg.Sync.Interval)

	handler := api.NewHandler(db, cfg, gateway, tokens, reg, proto, scheduler, auditLog)
	router := api.NewRouter(handler, cfg)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(router, addr, cfg.Server.Timeout)

	// zerolog bridged to slog for supervisor event logging.
	slogLogger := slog.New(logging.NewSlogHandler())
	tree := supervisor.New(slogLogger, supervisor.TreeConfig{})
	tree.Add(server)
	tree.Add(scheduler)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	<-ctx.Done()
	logging.Info().Msg("Shutdown signal received, draining")
	stop()

	if err := <-errCh; err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor exited with error")
		os.Exit(1)
	}
	logging.Info().Msg("Shutdown complete")
}
