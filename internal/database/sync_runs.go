// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tramitahub/tramita/internal/models"
)

// CreateSyncRun opens the bookkeeping row for one orchestration loop run.
func (db *DB) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO sync_runs (id, service_id, kind, status, records_synced, batches, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		run.ID, run.ServiceID, string(run.Kind), string(run.Status),
		run.RecordsSynced, run.Batches, nullableString(run.Error), run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// FinishSyncRun closes a run with its final status and tallies. Partial
// progress made before a failure is never rolled back; only the run row
// reflects the failure.
func (db *DB) FinishSyncRun(ctx context.Context, id string, status models.SyncRunStatus, recordsSynced, batches int, runErr string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		UPDATE sync_runs
		SET status = ?, records_synced = ?, batches = ?, error = ?, finished_at = ?
		WHERE id = ?
	`
	res, err := db.conn.ExecContext(ctx, query,
		string(status), recordsSynced, batches, nullableString(runErr), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSyncRuns returns the most recent runs, newest first, optionally
// narrowed to one service (empty serviceID means all services).
func (db *DB) ListSyncRuns(ctx context.Context, serviceID string, limit int) ([]models.SyncRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, service_id, kind, status, records_synced, batches,
		       COALESCE(error, ''), started_at, finished_at
		FROM sync_runs
	`
	args := []interface{}{}
	if serviceID != "" {
		query += ` WHERE service_id = ?`
		args = append(args, serviceID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer closeQuietly(rows)

	var runs []models.SyncRun
	for rows.Next() {
		var (
			run    models.SyncRun
			kind   string
			status string
		)
		err := rows.Scan(
			&run.ID, &run.ServiceID, &kind, &status,
			&run.RecordsSynced, &run.Batches, &run.Error,
			&run.StartedAt, &run.FinishedAt,
		)
		if err != nil {
			return nil, err
		}
		run.Kind = models.ResourceKind(kind)
		run.Status = models.SyncRunStatus(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
