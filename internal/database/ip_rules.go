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

// CreateIPRule inserts a global or client-scoped IP rule.
func (db *DB) CreateIPRule(ctx context.Context, rule *models.IPRule) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		INSERT INTO ip_rules (id, client_id, value, action, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		rule.ID, nullableString(rule.ClientID), rule.Value, string(rule.Action),
		rule.ExpiresAt, rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ip rule: %w", err)
	}
	return nil
}

// DeleteIPRule removes a rule by id.
func (db *DB) DeleteIPRule(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM ip_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ip rule: %w", err)
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

// ListIPRulesForClient returns the unexpired rules the gateway must evaluate
// for a client: global rules plus rules scoped to that client. Expiry is
// filtered here so stale rules never reach the matcher.
func (db *DB) ListIPRulesForClient(ctx context.Context, clientID string) ([]models.IPRule, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, client_id, value, action, expires_at, created_at
		FROM ip_rules
		WHERE (client_id IS NULL OR client_id = ?)
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at
	`
	rows, err := db.conn.QueryContext(ctx, query, clientID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list ip rules: %w", err)
	}
	defer closeQuietly(rows)

	var rules []models.IPRule
	for rows.Next() {
		var (
			rule   models.IPRule
			client sql.NullString
			action string
		)
		err := rows.Scan(&rule.ID, &client, &rule.Value, &action, &rule.ExpiresAt, &rule.CreatedAt)
		if err != nil {
			return nil, err
		}
		rule.ClientID = client.String
		rule.Action = models.IPRuleAction(action)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
