// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tramitahub/tramita/internal/models"
)

// InsertSecurityEvent appends one gateway-deny or sensitive-operation event.
func (db *DB) InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO security_events (
			id, timestamp, reason, token_id, client_id, ip_address,
			endpoint, method, user_agent, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		event.ID, event.Timestamp, string(event.Reason),
		nullableString(event.TokenID), nullableString(event.ClientID),
		event.IPAddress, event.Endpoint, event.Method,
		nullableString(event.UserAgent), nullableString(event.Detail),
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// ListSecurityEvents returns the most recent events, newest first, optionally
// filtered by reason (empty means all reasons).
func (db *DB) ListSecurityEvents(ctx context.Context, reason models.SecurityEventReason, limit int) ([]models.SecurityEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, timestamp, reason, token_id, client_id, ip_address,
		       endpoint, method, user_agent, detail
		FROM security_events
	`
	args := []interface{}{}
	if reason != "" {
		query += ` WHERE reason = ?`
		args = append(args, string(reason))
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	defer closeQuietly(rows)

	var events []models.SecurityEvent
	for rows.Next() {
		var (
			event     models.SecurityEvent
			reason    string
			tokenID   sql.NullString
			clientID  sql.NullString
			userAgent sql.NullString
			detail    sql.NullString
		)
		err := rows.Scan(
			&event.ID, &event.Timestamp, &reason, &tokenID, &clientID,
			&event.IPAddress, &event.Endpoint, &event.Method, &userAgent, &detail,
		)
		if err != nil {
			return nil, err
		}
		event.Reason = models.SecurityEventReason(reason)
		event.TokenID = tokenID.String
		event.ClientID = clientID.String
		event.UserAgent = userAgent.String
		event.Detail = detail.String
		events = append(events, event)
	}
	return events, rows.Err()
}

// InsertRequestMetric appends one processed-request row. These rows double as
// the source of the exact sliding-window rate limit count.
func (db *DB) InsertRequestMetric(ctx context.Context, metric *models.RequestMetric) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO request_metrics (
			id, timestamp, token_id, client_id, endpoint, method,
			status, duration_ms, ip_address, user_agent
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		metric.ID, metric.Timestamp,
		nullableString(metric.TokenID), nullableString(metric.ClientID),
		metric.Endpoint, metric.Method, metric.Status, metric.DurationMS,
		metric.IPAddress, nullableString(metric.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request metric: %w", err)
	}
	return nil
}

// CountRequestsSince counts the token's processed requests after the cutoff.
// This is the exact sliding-window quota check the gateway enforces.
// Rate-limited attempts are excluded so retrying over quota cannot extend
// the caller's own window.
func (db *DB) CountRequestsSince(ctx context.Context, tokenID string, since time.Time) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM request_metrics WHERE token_id = ? AND timestamp > ? AND status <> 429`,
		tokenID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}
	return count, nil
}

// SummarizeRequestMetrics aggregates per-endpoint traffic after the cutoff
// for the admin metrics endpoint.
func (db *DB) SummarizeRequestMetrics(ctx context.Context, since time.Time) ([]models.EndpointMetric, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT endpoint, method, COUNT(*),
		       COUNT(*) FILTER (WHERE status >= 400),
		       CAST(AVG(duration_ms) AS BIGINT)
		FROM request_metrics
		WHERE timestamp > ?
		GROUP BY endpoint, method
		ORDER BY COUNT(*) DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize request metrics: %w", err)
	}
	defer closeQuietly(rows)

	var summaries []models.EndpointMetric
	for rows.Next() {
		var summary models.EndpointMetric
		err := rows.Scan(&summary.Endpoint, &summary.Method, &summary.Requests,
			&summary.Errors, &summary.AvgDurationMS)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
