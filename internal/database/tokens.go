// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package database provides database operations for the Tramita hub.
//
// tokens.go - Client API token operations
//
// Token hashes are stored, never plaintext tokens. All operations are
// parameterized. The last-used touch is a separate narrow UPDATE so the
// gateway can fire it without racing full-row writes.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tramitahub/tramita/internal/models"
)

// CreateToken inserts a new client API token.
func (db *DB) CreateToken(ctx context.Context, token *models.ClientToken) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	allowlistJSON, err := marshalStringList(token.IPAllowlist)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO client_tokens (
			id, client_id, name, token_prefix, token_hash,
			active, blocked, block_reason, expires_at,
			rate_limit_override, ip_allowlist,
			last_used_at, last_used_ip, use_count, created_at, revoked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = db.conn.ExecContext(ctx, query,
		token.ID, token.ClientID, token.Name, token.TokenPrefix, token.TokenHash,
		token.Active, token.Blocked, nullableString(token.BlockReason), token.ExpiresAt,
		token.RateLimitOverride, allowlistJSON,
		token.LastUsedAt, nullableString(token.LastUsedIP), token.UseCount, token.CreatedAt, token.RevokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert client token: %w", err)
	}
	return nil
}

// GetTokenByID retrieves a token by its ID. Returns (nil, nil) when absent.
func (db *DB) GetTokenByID(ctx context.Context, id string) (*models.ClientToken, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT
			id, client_id, name, token_prefix, token_hash,
			active, blocked, block_reason, expires_at,
			rate_limit_override, ip_allowlist::VARCHAR,
			last_used_at, last_used_ip, use_count, created_at, revoked_at
		FROM client_tokens
		WHERE id = ?
	`
	return scanToken(db.conn.QueryRowContext(ctx, query, id))
}

// ListTokensByClient returns all tokens belonging to a client.
func (db *DB) ListTokensByClient(ctx context.Context, clientID string) ([]models.ClientToken, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT
			id, client_id, name, token_prefix, token_hash,
			active, blocked, block_reason, expires_at,
			rate_limit_override, ip_allowlist::VARCHAR,
			last_used_at, last_used_ip, use_count, created_at, revoked_at
		FROM client_tokens
		WHERE client_id = ?
		ORDER BY created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer closeQuietly(rows)

	var tokens []models.ClientToken
	for rows.Next() {
		token, err := scanTokenRows(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}

// TouchTokenUsage stamps the last-used timestamp/IP and increments the use
// counter. Fired asynchronously by the gateway; must never block a response.
func (db *DB) TouchTokenUsage(ctx context.Context, id, ip string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		UPDATE client_tokens
		SET last_used_at = ?, last_used_ip = ?, use_count = use_count + 1
		WHERE id = ?
	`
	if _, err := db.conn.ExecContext(ctx, query, at, ip, id); err != nil {
		return fmt.Errorf("failed to touch token usage: %w", err)
	}
	return nil
}

// RevokeToken marks a token revoked. Revoked tokens stay in the table so the
// audit trail keeps resolving token ids.
func (db *DB) RevokeToken(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE client_tokens SET revoked_at = ?, active = FALSE WHERE id = ? AND revoked_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read revoke result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row *sql.Row) (*models.ClientToken, error) {
	token, err := scanTokenFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return token, err
}

func scanTokenRows(rows *sql.Rows) (*models.ClientToken, error) {
	return scanTokenFrom(rows)
}

func scanTokenFrom(scanner rowScanner) (*models.ClientToken, error) {
	var (
		token         models.ClientToken
		blockReason   sql.NullString
		allowlistJSON sql.NullString
		lastUsedIP    sql.NullString
		rateOverride  sql.NullInt64
	)
	err := scanner.Scan(
		&token.ID, &token.ClientID, &token.Name, &token.TokenPrefix, &token.TokenHash,
		&token.Active, &token.Blocked, &blockReason, &token.ExpiresAt,
		&rateOverride, &allowlistJSON,
		&token.LastUsedAt, &lastUsedIP, &token.UseCount, &token.CreatedAt, &token.RevokedAt,
	)
	if err != nil {
		return nil, err
	}

	token.BlockReason = blockReason.String
	token.LastUsedIP = lastUsedIP.String
	if rateOverride.Valid {
		v := int(rateOverride.Int64)
		token.RateLimitOverride = &v
	}
	if allowlistJSON.Valid && allowlistJSON.String != "" {
		if err := json.Unmarshal([]byte(allowlistJSON.String), &token.IPAllowlist); err != nil {
			return nil, fmt.Errorf("failed to unmarshal IP allowlist: %w", err)
		}
	}
	return &token, nil
}

// marshalStringList marshals a string slice to JSON for storage, mapping an
// empty slice to SQL NULL.
func marshalStringList(list []string) (interface{}, error) {
	if len(list) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(data), nil
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
