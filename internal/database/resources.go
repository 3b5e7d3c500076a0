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

// CreateResource inserts a monitored resource row. The natural key column is
// derived from the resource itself; a duplicate (service, natural key) pair
// returns ErrConflict so the registrar can fall back to the existing row.
func (db *DB) CreateResource(ctx context.Context, resource *models.MonitoredResource) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO monitored_resources (
			id, service_id, kind, natural_key, case_number, term, term_type,
			vendor_code, status, created_at, updated_at, removed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		resource.ID, resource.ServiceID, string(resource.Kind), resource.NaturalKey(),
		nullableString(resource.CaseNumber), nullableString(resource.Term),
		nullableString(string(resource.TermType)),
		resource.VendorCode, string(resource.Status),
		resource.CreatedAt, resource.UpdatedAt, resource.RemovedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert resource: %w", err)
	}
	return nil
}

// GetResource retrieves a resource by ID. Returns (nil, nil) when absent.
func (db *DB) GetResource(ctx context.Context, id string) (*models.MonitoredResource, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, resourceSelect+` WHERE id = ?`, id)
	resource, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return resource, err
}

// GetResourceByNaturalKey retrieves the resource registered for key under the
// given service, regardless of status. Returns (nil, nil) when absent.
func (db *DB) GetResourceByNaturalKey(ctx context.Context, serviceID, naturalKey string) (*models.MonitoredResource, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		resourceSelect+` WHERE service_id = ? AND natural_key = ?`, serviceID, naturalKey)
	resource, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return resource, err
}

// SetResourceVendorCode attaches the vendor-assigned code after a successful
// registration call and marks the resource active.
func (db *DB) SetResourceVendorCode(ctx context.Context, id, vendorCode string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		UPDATE monitored_resources
		SET vendor_code = ?, status = ?, removed_at = NULL, updated_at = ?
		WHERE id = ?
	`
	res, err := db.conn.ExecContext(ctx, query, vendorCode, string(models.ResourceStatusActive), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set vendor code: %w", err)
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

// ReactivateResource flips a removed resource back to active without touching
// its vendor code. Used when a client re-registers a previously released key.
func (db *DB) ReactivateResource(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		UPDATE monitored_resources
		SET status = ?, removed_at = NULL, updated_at = ?
		WHERE id = ?
	`, string(models.ResourceStatusActive), now, id)
	if err != nil {
		return fmt.Errorf("failed to reactivate resource: %w", err)
	}
	return nil
}

// MarkResourceRemoved records a vendor-confirmed removal. The row is kept so
// the audit trail and record history stay intact.
func (db *DB) MarkResourceRemoved(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		UPDATE monitored_resources
		SET status = ?, removed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(models.ResourceStatusRemoved), now, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark resource removed: %w", err)
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

// ListResourcesForClient returns every resource linked to the client,
// optionally narrowed to one kind.
func (db *DB) ListResourcesForClient(ctx context.Context, clientID string, kind models.ResourceKind) ([]models.MonitoredResource, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT r.id, r.service_id, r.kind, r.case_number, r.term, r.term_type,
		       r.vendor_code, r.status, r.created_at, r.updated_at, r.removed_at
		FROM monitored_resources r
		JOIN client_links l ON l.resource_id = r.id
		WHERE l.client_id = ?
	`
	args := []interface{}{clientID}
	if kind != "" {
		query += ` AND r.kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY r.created_at`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list client resources: %w", err)
	}
	defer closeQuietly(rows)

	var resources []models.MonitoredResource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, *resource)
	}
	return resources, rows.Err()
}

// CreateClientLink records the client's interest in a resource. Already-linked
// pairs are a no-op so repeated registration stays idempotent.
func (db *DB) CreateClientLink(ctx context.Context, clientID, resourceID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO client_links (client_id, resource_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (client_id, resource_id) DO NOTHING
	`
	_, err := db.conn.ExecContext(ctx, query, clientID, resourceID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create client link: %w", err)
	}
	return nil
}

// DeleteClientLink removes the client's interest in a resource. Returns
// ErrNotFound when no link existed.
func (db *DB) DeleteClientLink(ctx context.Context, clientID, resourceID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM client_links WHERE client_id = ? AND resource_id = ?`, clientID, resourceID)
	if err != nil {
		return fmt.Errorf("failed to delete client link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasClientLink reports whether a link exists for (client, resource).
func (db *DB) HasClientLink(ctx context.Context, clientID, resourceID string) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM client_links WHERE client_id = ? AND resource_id = ?`,
		clientID, resourceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check client link: %w", err)
	}
	return count > 0, nil
}

// CountClientLinks returns how many clients still reference the resource.
// This is the refcount gating vendor-side removal.
func (db *DB) CountClientLinks(ctx context.Context, resourceID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM client_links WHERE resource_id = ?`, resourceID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count client links: %w", err)
	}
	return count, nil
}

const resourceSelect = `
	SELECT id, service_id, kind, case_number, term, term_type,
	       vendor_code, status, created_at, updated_at, removed_at
	FROM monitored_resources`

func scanResource(scanner rowScanner) (*models.MonitoredResource, error) {
	var (
		resource   models.MonitoredResource
		kind       string
		caseNumber sql.NullString
		term       sql.NullString
		termType   sql.NullString
		status     string
	)
	err := scanner.Scan(
		&resource.ID, &resource.ServiceID, &kind, &caseNumber, &term, &termType,
		&resource.VendorCode, &status,
		&resource.CreatedAt, &resource.UpdatedAt, &resource.RemovedAt,
	)
	if err != nil {
		return nil, err
	}
	resource.Kind = models.ResourceKind(kind)
	resource.CaseNumber = caseNumber.String
	resource.Term = term.String
	resource.TermType = models.TermType(termType.String)
	resource.Status = models.ResourceStatus(status)
	return &resource, nil
}

// isUniqueViolation sniffs the driver error text for constraint violations.
// The duckdb driver does not expose a typed error for these.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "constraint")
}
