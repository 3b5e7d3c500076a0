// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package audit appends the hub's append-only trails: security events for
// gateway denials and sensitive administrative operations, and per-request
// metrics rows. Writes are asynchronous and must never fail or slow the
// request that triggered them.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/metrics"
	"github.com/tramitahub/tramita/internal/models"
)

// writeTimeout bounds each background append.
const writeTimeout = 5 * time.Second

// Store is the persistence surface the logger writes to. *database.DB
// satisfies this.
type Store interface {
	InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error
	InsertRequestMetric(ctx context.Context, metric *models.RequestMetric) error
}

// Logger is the shared audit appender handed to the gateway and handlers.
type Logger struct {
	store Store
}

// NewLogger creates the audit logger over the given store.
func NewLogger(store Store) *Logger {
	return &Logger{store: store}
}

// SecurityEvent records one deny or sensitive operation. The id and
// timestamp are filled in here; the write happens off the request path.
func (l *Logger) SecurityEvent(event models.SecurityEvent) {
	if l == nil || l.store == nil {
		return
	}
	event.ID = uuid.New().String()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	metrics.GatewayDenials.WithLabelValues(string(event.Reason)).Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := l.store.InsertSecurityEvent(ctx, &event); err != nil {
			logging.Warn().Err(err).
				Str("reason", string(event.Reason)).
				Str("ip", event.IPAddress).
				Msg("Failed to append security event")
		}
	}()
}

// RequestMetric records one processed request, allowed or denied. Rate-limit
// accounting reads these rows, so a dropped write under-counts a token's
// usage in its favor rather than over-counting against it.
func (l *Logger) RequestMetric(metric models.RequestMetric) {
	if l == nil || l.store == nil {
		return
	}
	metric.ID = uuid.New().String()
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := l.store.InsertRequestMetric(ctx, &metric); err != nil {
			logging.Warn().Err(err).
				Str("endpoint", metric.Endpoint).
				Msg("Failed to append request metric")
		}
	}()
}
