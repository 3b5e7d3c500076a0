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
	"time"

	"github.com/tramitahub/tramita/internal/models"
)

// CreateVendorService inserts a new vendor service configuration.
func (db *DB) CreateVendorService(ctx context.Context, service *models.VendorService) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO vendor_services (
			id, name, kind, dialect, base_url, relational_name, token,
			credentials_in_headers, active, last_sync_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		service.ID, service.Name, string(service.Kind), string(service.Dialect),
		service.BaseURL, service.RelationalName, service.Token,
		service.CredentialsInHeaders, service.Active, service.LastSyncAt,
		service.CreatedAt, service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vendor service: %w", err)
	}
	return nil
}

// GetVendorService retrieves a service by ID. Returns (nil, nil) when absent.
func (db *DB) GetVendorService(ctx context.Context, id string) (*models.VendorService, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, serviceSelect+` WHERE id = ?`, id)
	service, err := scanService(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return service, err
}

// ListActiveVendorServices returns every active service, optionally narrowed
// to one resource kind (empty kind means all kinds). The sync scheduler
// sweeps this list every interval.
func (db *DB) ListActiveVendorServices(ctx context.Context, kind models.ResourceKind) ([]models.VendorService, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := serviceSelect + ` WHERE active`
	args := []interface{}{}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendor services: %w", err)
	}
	defer closeQuietly(rows)

	var services []models.VendorService
	for rows.Next() {
		service, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, *service)
	}
	return services, rows.Err()
}

// UpdateServiceLastSync stamps the service's last successful sync time.
func (db *DB) UpdateServiceLastSync(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE vendor_services SET last_sync_at = ?, updated_at = ? WHERE id = ?`, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to update service last sync: %w", err)
	}
	return nil
}

// SetVendorServiceActive flips a service's active flag.
func (db *DB) SetVendorServiceActive(ctx context.Context, id string, active bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE vendor_services SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update service active flag: %w", err)
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

const serviceSelect = `
	SELECT id, name, kind, dialect, base_url, relational_name, token,
	       credentials_in_headers, active, last_sync_at, created_at, updated_at
	FROM vendor_services`

func scanService(scanner rowScanner) (*models.VendorService, error) {
	var (
		service models.VendorService
		kind    string
		dialect string
	)
	err := scanner.Scan(
		&service.ID, &service.Name, &kind, &dialect,
		&service.BaseURL, &service.RelationalName, &service.Token,
		&service.CredentialsInHeaders, &service.Active, &service.LastSyncAt,
		&service.CreatedAt, &service.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	service.Kind = models.ResourceKind(kind)
	service.Dialect = models.Dialect(dialect)
	return &service, nil
}
