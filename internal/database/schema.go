// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"fmt"
)

// initSchema creates all tables and indexes if they do not exist. Columns are
// defined in the initial CREATE TABLE statements; schema evolution happens by
// adding statements here, never by editing shipped ones.
func (db *DB) initSchema(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	queries := []string{
		// Vendor services: one row per upstream endpoint configuration.
		`CREATE TABLE IF NOT EXISTS vendor_services (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			dialect TEXT NOT NULL,
			base_url TEXT NOT NULL,
			relational_name TEXT NOT NULL,
			token TEXT NOT NULL,
			credentials_in_headers BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_sync_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// Client systems and their API tokens.
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// Token hashes are stored, never plaintext tokens.
		`CREATE TABLE IF NOT EXISTS client_tokens (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			name TEXT NOT NULL,
			token_prefix TEXT NOT NULL,
			token_hash TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			blocked BOOLEAN NOT NULL DEFAULT FALSE,
			block_reason TEXT,
			expires_at TIMESTAMP,
			rate_limit_override INTEGER,
			ip_allowlist JSON,
			last_used_at TIMESTAMP,
			last_used_ip TEXT,
			use_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			revoked_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_client_tokens_client ON client_tokens (client_id);`,

		// Service entitlements: which client may exercise which vendor service.
		`CREATE TABLE IF NOT EXISTS client_services (
			client_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (client_id, service_id)
		);`,

		// Monitored resources: at most one row per (natural key, service).
		`CREATE TABLE IF NOT EXISTS monitored_resources (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			natural_key TEXT NOT NULL,
			case_number TEXT,
			term TEXT,
			term_type TEXT,
			vendor_code TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			removed_at TIMESTAMP,
			UNIQUE (service_id, natural_key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_case ON monitored_resources (case_number);`,

		// Client links: this table is the refcount for vendor-side removal.
		`CREATE TABLE IF NOT EXISTS client_links (
			client_id TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (client_id, resource_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_client_links_resource ON client_links (resource_id);`,

		// Vendor records: upsert keyed by the vendor's own numeric id within
		// a kind, so redelivery from the vendor is naturally idempotent.
		// resource_id is NULL for orphans until the linking pass runs.
		`CREATE TABLE IF NOT EXISTS vendor_records (
			id TEXT NOT NULL,
			vendor_id BIGINT NOT NULL,
			kind TEXT NOT NULL,
			service_id TEXT NOT NULL,
			resource_id TEXT,
			case_number TEXT,
			term TEXT,
			court TEXT,
			category TEXT,
			content TEXT NOT NULL,
			occurred_at TIMESTAMP NOT NULL,
			fetched_at TIMESTAMP NOT NULL,
			raw JSON,
			PRIMARY KEY (kind, vendor_id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_vendor_records_id ON vendor_records (id);`,
		`CREATE INDEX IF NOT EXISTS idx_vendor_records_resource ON vendor_records (resource_id);`,
		`CREATE INDEX IF NOT EXISTS idx_vendor_records_case ON vendor_records (kind, case_number);`,

		// Delivery cursors: one row per (client, kind); while
		// pending_confirmation is true no new batch may be produced.
		`CREATE TABLE IF NOT EXISTS delivery_cursors (
			client_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			last_delivered_id BIGINT NOT NULL DEFAULT 0,
			pending_confirmation BOOLEAN NOT NULL DEFAULT FALSE,
			total_delivered BIGINT NOT NULL DEFAULT 0,
			batch_size INTEGER NOT NULL DEFAULT 0,
			confirmed_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (client_id, kind)
		);`,

		// Record deliveries: which record went to which client, and when the
		// client acknowledged it. Deleting rows re-opens records.
		`CREATE TABLE IF NOT EXISTS record_deliveries (
			client_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			vendor_id BIGINT NOT NULL,
			delivered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			confirmed_at TIMESTAMP,
			PRIMARY KEY (client_id, kind, vendor_id)
		);`,

		// IP rules: global (client_id NULL) or client-scoped; expired rules
		// are ignored at evaluation time.
		`CREATE TABLE IF NOT EXISTS ip_rules (
			id TEXT PRIMARY KEY,
			client_id TEXT,
			value TEXT NOT NULL,
			action TEXT NOT NULL,
			expires_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// Outbound vendor call log. Append-only; credentials are masked and
		// bodies summarized before rows arrive here.
		`CREATE TABLE IF NOT EXISTS call_logs (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			success BOOLEAN NOT NULL,
			duration_ms BIGINT NOT NULL,
			error TEXT,
			response_summary TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_call_logs_service ON call_logs (service_id, created_at);`,

		// Sync runs. One row per orchestration loop execution.
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id TEXT PRIMARY KEY,
			service_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			records_synced INTEGER NOT NULL DEFAULT 0,
			batches INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		);`,

		// Security events: append-only audit trail of gateway denials and
		// sensitive administrative operations.
		`CREATE TABLE IF NOT EXISTS security_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reason TEXT NOT NULL,
			token_id TEXT,
			client_id TEXT,
			ip_address TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			user_agent TEXT,
			detail TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_time ON security_events (timestamp);`,

		// Request metrics: one row per processed request; also the source of
		// the exact sliding-window rate limit count.
		`CREATE TABLE IF NOT EXISTS request_metrics (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			token_id TEXT,
			client_id TEXT,
			endpoint TEXT NOT NULL,
			method TEXT NOT NULL,
			status INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL,
			ip_address TEXT NOT NULL,
			user_agent TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_request_metrics_token ON request_metrics (token_id, timestamp);`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
