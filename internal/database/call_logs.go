// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"fmt"

	"github.com/tramitahub/tramita/internal/models"
)

// InsertCallLog appends one outbound vendor call record. The caller is
// responsible for masking credentials in the URL before the row gets here.
func (db *DB) InsertCallLog(ctx context.Context, entry *models.CallLog) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO call_logs (
			id, service_id, operation, method, url, status_code, success,
			duration_ms, error, response_summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		entry.ID, entry.ServiceID, entry.Operation, entry.Method, entry.URL,
		entry.StatusCode, entry.Success, entry.DurationMS,
		nullableString(entry.Error), nullableString(entry.ResponseSummary),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call log: %w", err)
	}
	return nil
}

// ListCallLogs returns the most recent calls for a service, newest first.
func (db *DB) ListCallLogs(ctx context.Context, serviceID string, limit int) ([]models.CallLog, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, service_id, operation, method, url, status_code, success,
		       duration_ms, COALESCE(error, ''), COALESCE(response_summary, ''), created_at
		FROM call_logs
		WHERE service_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, serviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list call logs: %w", err)
	}
	defer closeQuietly(rows)

	var logs []models.CallLog
	for rows.Next() {
		var entry models.CallLog
		err := rows.Scan(
			&entry.ID, &entry.ServiceID, &entry.Operation, &entry.Method, &entry.URL,
			&entry.StatusCode, &entry.Success, &entry.DurationMS,
			&entry.Error, &entry.ResponseSummary, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
