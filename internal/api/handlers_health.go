// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"net/http"
	"time"

	"github.com/tramitahub/tramita/internal/models"
)

// HealthLive is the liveness probe: the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: the database answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Health is the full health summary.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, httpStatus, &models.APIResponse{
		Data: map[string]interface{}{
			"status":         status,
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
			"timestamp":      time.Now().UTC(),
		},
	})
}
