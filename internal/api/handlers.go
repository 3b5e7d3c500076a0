// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"time"

	"github.com/tramitahub/tramita/internal/audit"
	"github.com/tramitahub/tramita/internal/auth"
	"github.com/tramitahub/tramita/internal/config"
	"github.com/tramitahub/tramita/internal/database"
	"github.com/tramitahub/tramita/internal/delivery"
	"github.com/tramitahub/tramita/internal/registrar"
	syncpkg "github.com/tramitahub/tramita/internal/sync"
)

// Handler contains dependencies for all API handlers.
type Handler struct {
	db        *database.DB
	config    *config.Config
	gateway   *auth.Gateway
	tokens    *auth.TokenManager
	registrar *registrar.Registrar
	delivery  *delivery.Protocol
	scheduler *syncpkg.Scheduler
	audit     *audit.Logger
	startTime time.Time
}

// NewHandler creates the API handler with all required dependencies.
func NewHandler(
	db *database.DB,
	cfg *config.Config,
	gateway *auth.Gateway,
	tokens *auth.TokenManager,
	reg *registrar.Registrar,
	proto *delivery.Protocol,
	scheduler *syncpkg.Scheduler,
	auditLog *audit.Logger,
) *Handler {
	return &Handler{
		db:        db,
		config:    cfg,
		gateway:   gateway,
		tokens:    tokens,
		registrar: reg,
		delivery:  proto,
		scheduler: scheduler,
		audit:     auditLog,
		startTime: time.Now(),
	}
}
