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

// CreateClient inserts a new client system.
func (db *DB) CreateClient(ctx context.Context, client *models.Client) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO clients (id, name, active, created_at) VALUES (?, ?, ?, ?)`,
		client.ID, client.Name, client.Active, client.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by ID. Returns (nil, nil) when absent.
func (db *DB) GetClient(ctx context.Context, id string) (*models.Client, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var client models.Client
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, active, created_at FROM clients WHERE id = ?`, id).
		Scan(&client.ID, &client.Name, &client.Active, &client.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// UpsertClientService grants (or re-activates) a client's entitlement to a
// vendor service.
func (db *DB) UpsertClientService(ctx context.Context, entitlement *models.ClientService) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO client_services (client_id, service_id, active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (client_id, service_id) DO UPDATE SET active = excluded.active
	`
	_, err := db.conn.ExecContext(ctx, query,
		entitlement.ClientID, entitlement.ServiceID, entitlement.Active, entitlement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert client service: %w", err)
	}
	return nil
}

// HasActiveServiceOfKind reports whether the client holds an active
// entitlement to at least one active vendor service of the given kind.
// This is the per-kind access check the gateway runs on every request.
func (db *DB) HasActiveServiceOfKind(ctx context.Context, clientID string, kind models.ResourceKind) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM client_services cs
		JOIN vendor_services vs ON vs.id = cs.service_id
		WHERE cs.client_id = ? AND cs.active AND vs.active AND vs.kind = ?
	`
	var count int
	if err := db.conn.QueryRowContext(ctx, query, clientID, string(kind)).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check service entitlement: %w", err)
	}
	return count > 0, nil
}
