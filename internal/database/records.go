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

	"github.com/tramitahub/tramita/internal/models"
)

// UpsertVendorRecords stores a fetched batch inside one transaction. The
// upsert key is (kind, vendor_id): redelivery from the vendor overwrites the
// payload in place instead of duplicating rows, and the hub-local id survives
// the overwrite so client-facing links stay stable.
func (db *DB) UpsertVendorRecords(ctx context.Context, records []models.VendorRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin record upsert: %w", err)
	}
	defer rollbackQuietly(tx)

	query := `
		INSERT INTO vendor_records (
			id, vendor_id, kind, service_id, resource_id, case_number, term,
			court, category, content, occurred_at, fetched_at, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, vendor_id) DO UPDATE SET
			resource_id = COALESCE(excluded.resource_id, vendor_records.resource_id),
			case_number = excluded.case_number,
			term = excluded.term,
			court = excluded.court,
			category = excluded.category,
			content = excluded.content,
			occurred_at = excluded.occurred_at,
			fetched_at = excluded.fetched_at,
			raw = excluded.raw
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare record upsert: %w", err)
	}
	defer closeQuietly(stmt)

	for i := range records {
		record := &records[i]
		var raw interface{}
		if len(record.Raw) > 0 {
			raw = string(record.Raw)
		}
		_, err := stmt.ExecContext(ctx,
			record.ID, record.VendorID, string(record.Kind), record.ServiceID,
			record.ResourceID,
			nullableString(record.CaseNumber), nullableString(record.Term),
			nullableString(record.Court), nullableString(record.Category),
			record.Content, record.OccurredAt, record.FetchedAt, raw,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record %d/%s: %w", record.VendorID, record.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record upsert: %w", err)
	}
	return nil
}

// GetRecordByID retrieves one record by its hub-local id. Returns (nil, nil)
// when absent.
func (db *DB) GetRecordByID(ctx context.Context, id string) (*models.VendorRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, recordSelect+` WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

// ResolveRecordResource attaches records to their parent resources at insert
// time: for every record of the service whose resource_id is still NULL and
// whose natural key matches a monitored resource, back-fill the link. Also
// run periodically as the orphan-linking pass, since the vendor delivers
// children before parents in some orderings. Returns the number of records
// linked.
func (db *DB) ResolveRecordResource(ctx context.Context, serviceID string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		UPDATE vendor_records
		SET resource_id = r.id
		FROM monitored_resources r
		WHERE vendor_records.resource_id IS NULL
		  AND vendor_records.service_id = ?
		  AND r.service_id = vendor_records.service_id
		  AND (
			(vendor_records.case_number IS NOT NULL AND r.natural_key = vendor_records.case_number)
			OR (vendor_records.term IS NOT NULL
				AND r.natural_key = concat(r.term_type, ':', lower(trim(vendor_records.term))))
		  )
	`
	res, err := db.conn.ExecContext(ctx, query, serviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to link orphan records: %w", err)
	}
	linked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read link result: %w", err)
	}
	return linked, nil
}

// ListUndeliveredRecords returns records the client is entitled to (linked
// resources of the right kind) that have never been handed to it, oldest
// vendor id first, filtered, then windowed by limit and offset. Orphan
// records are excluded until the linking pass attaches them to a resource.
func (db *DB) ListUndeliveredRecords(ctx context.Context, clientID string, kind models.ResourceKind, limit, offset int, filter models.RecordFilter) ([]models.VendorRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := recordSelectQualified + `
		JOIN client_links l ON l.resource_id = v.resource_id
		LEFT JOIN record_deliveries d
			ON d.client_id = l.client_id AND d.kind = v.kind AND d.vendor_id = v.vendor_id
		WHERE l.client_id = ?
		  AND v.kind = ?
		  AND d.vendor_id IS NULL`
	args := []interface{}{clientID, string(kind)}

	if filter.CaseNumber != "" {
		query += ` AND v.case_number = ?`
		args = append(args, filter.CaseNumber)
	}
	if filter.Court != "" {
		query += ` AND v.court = ?`
		args = append(args, filter.Court)
	}
	if filter.Category != "" {
		query += ` AND v.category = ?`
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		query += ` AND v.occurred_at >= ?`
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += ` AND v.occurred_at <= ?`
		args = append(args, *filter.Until)
	}

	query += ` ORDER BY v.vendor_id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list undelivered records: %w", err)
	}
	defer closeQuietly(rows)

	return collectRecords(rows)
}

// ListPendingBatchRecords returns the batch currently awaiting the client's
// confirmation: records with an unconfirmed delivery row. Re-serving this
// exact batch keeps repeated reads idempotent while the cursor is pending.
func (db *DB) ListPendingBatchRecords(ctx context.Context, clientID string, kind models.ResourceKind) ([]models.VendorRecord, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := recordSelectQualified + `
		JOIN record_deliveries d
			ON d.kind = v.kind AND d.vendor_id = v.vendor_id
		WHERE d.client_id = ?
		  AND d.kind = ?
		  AND d.confirmed_at IS NULL
		ORDER BY v.vendor_id
	`
	rows, err := db.conn.QueryContext(ctx, query, clientID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending batch: %w", err)
	}
	defer closeQuietly(rows)

	return collectRecords(rows)
}

// CountDeliveredRecords returns how many records of the kind have ever been
// handed to the client.
func (db *DB) CountDeliveredRecords(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_deliveries WHERE client_id = ? AND kind = ?`,
		clientID, string(kind)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count delivered records: %w", err)
	}
	return count, nil
}

const recordSelect = `
	SELECT id, vendor_id, kind, service_id, resource_id, case_number, term,
	       court, category, content, occurred_at, fetched_at, raw
	FROM vendor_records`

const recordSelectQualified = `
	SELECT v.id, v.vendor_id, v.kind, v.service_id, v.resource_id, v.case_number,
	       v.term, v.court, v.category, v.content, v.occurred_at, v.fetched_at, v.raw
	FROM vendor_records v`

func collectRecords(rows *sql.Rows) ([]models.VendorRecord, error) {
	var records []models.VendorRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanRecord(scanner rowScanner) (*models.VendorRecord, error) {
	var (
		record     models.VendorRecord
		kind       string
		caseNumber sql.NullString
		term       sql.NullString
		court      sql.NullString
		category   sql.NullString
		raw        sql.NullString
	)
	err := scanner.Scan(
		&record.ID, &record.VendorID, &kind, &record.ServiceID, &record.ResourceID,
		&caseNumber, &term, &court, &category, &record.Content,
		&record.OccurredAt, &record.FetchedAt, &raw,
	)
	if err != nil {
		return nil, err
	}
	record.Kind = models.ResourceKind(kind)
	record.CaseNumber = caseNumber.String
	record.Term = term.String
	record.Court = court.String
	record.Category = category.String
	if raw.Valid {
		record.Raw = []byte(raw.String)
	}
	return &record, nil
}
