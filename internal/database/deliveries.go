// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tramitahub/tramita/internal/models"
)

// GetCursor retrieves the delivery cursor for (client, kind). Returns
// (nil, nil) when no cursor row exists yet.
func (db *DB) GetCursor(ctx context.Context, clientID string, kind models.ResourceKind) (*models.DeliveryCursor, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT client_id, kind, last_delivered_id, pending_confirmation,
		       total_delivered, batch_size, confirmed_at, updated_at
		FROM delivery_cursors
		WHERE client_id = ? AND kind = ?
	`
	var (
		cursor models.DeliveryCursor
		k      string
	)
	err := db.conn.QueryRowContext(ctx, query, clientID, string(kind)).Scan(
		&cursor.ClientID, &k, &cursor.LastDeliveredID, &cursor.PendingConfirmation,
		&cursor.TotalDelivered, &cursor.BatchSize, &cursor.ConfirmedAt, &cursor.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery cursor: %w", err)
	}
	cursor.Kind = models.ResourceKind(k)
	return &cursor, nil
}

// DeliverBatch marks a batch as handed out inside one transaction: a delivery
// row per record plus the cursor flipped to pending. The caller must have
// verified the cursor is not already pending; the pending flag set here is
// what blocks the next batch until the client confirms.
func (db *DB) DeliverBatch(ctx context.Context, clientID string, kind models.ResourceKind, records []models.VendorRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch delivery: %w", err)
	}
	defer rollbackQuietly(tx)

	now := time.Now()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO record_deliveries (client_id, kind, vendor_id, delivered_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delivery insert: %w", err)
	}
	defer closeQuietly(stmt)

	var lastID int64
	for i := range records {
		record := &records[i]
		if _, err := stmt.ExecContext(ctx, clientID, string(kind), record.VendorID, now); err != nil {
			return fmt.Errorf("failed to insert delivery row: %w", err)
		}
		if record.VendorID > lastID {
			lastID = record.VendorID
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO delivery_cursors (
			client_id, kind, last_delivered_id, pending_confirmation,
			total_delivered, batch_size, updated_at
		) VALUES (?, ?, ?, TRUE, ?, ?, ?)
		ON CONFLICT (client_id, kind) DO UPDATE SET
			last_delivered_id = excluded.last_delivered_id,
			pending_confirmation = TRUE,
			total_delivered = delivery_cursors.total_delivered + excluded.total_delivered,
			batch_size = excluded.batch_size,
			updated_at = excluded.updated_at
	`, clientID, string(kind), lastID, len(records), len(records), now)
	if err != nil {
		return fmt.Errorf("failed to update delivery cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch delivery: %w", err)
	}
	return nil
}

// ConfirmDeliveries acknowledges the outstanding batch: all unconfirmed
// delivery rows are stamped and the cursor's pending flag is cleared, in one
// transaction. Returns the number of records confirmed; zero means the cursor
// was not pending, which the delivery protocol reports as a violation.
func (db *DB) ConfirmDeliveries(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin confirmation: %w", err)
	}
	defer rollbackQuietly(tx)

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE delivery_cursors
		SET pending_confirmation = FALSE, confirmed_at = ?, updated_at = ?
		WHERE client_id = ? AND kind = ? AND pending_confirmation
	`, now, now, clientID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to clear pending flag: %w", err)
	}
	flipped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read confirmation result: %w", err)
	}
	if flipped == 0 {
		// Nothing was pending. Roll back via the deferred call.
		return 0, nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE record_deliveries
		SET confirmed_at = ?
		WHERE client_id = ? AND kind = ? AND confirmed_at IS NULL
	`, now, clientID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to stamp delivery rows: %w", err)
	}
	confirmed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read stamp result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return confirmed, nil
}

// ReopenDeliveries deletes delivery rows for the given vendor ids (all rows
// for the pair when ids is empty), forcing those records into a future batch.
// When no unconfirmed rows remain afterwards the cursor's pending flag is
// cleared too, so a half-reopened batch cannot wedge the protocol. Returns
// the number of records reopened.
func (db *DB) ReopenDeliveries(ctx context.Context, clientID string, kind models.ResourceKind, vendorIDs []int64) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reopen: %w", err)
	}
	defer rollbackQuietly(tx)

	query := `DELETE FROM record_deliveries WHERE client_id = ? AND kind = ?`
	args := []interface{}{clientID, string(kind)}
	if len(vendorIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vendorIDs)), ", ")
		query += ` AND vendor_id IN (` + placeholders + `)`
		for _, id := range vendorIDs {
			args = append(args, id)
		}
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete delivery rows: %w", err)
	}
	reopened, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reopen result: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE delivery_cursors
		SET pending_confirmation = FALSE, updated_at = ?
		WHERE client_id = ? AND kind = ?
		  AND NOT EXISTS (
			SELECT 1 FROM record_deliveries d
			WHERE d.client_id = delivery_cursors.client_id
			  AND d.kind = delivery_cursors.kind
			  AND d.confirmed_at IS NULL
		  )
	`, time.Now(), clientID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("failed to settle cursor after reopen: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit reopen: %w", err)
	}
	return reopened, nil
}
