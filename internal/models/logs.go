// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package models provides data structures for the Tramita application.
// This file contains the append-only observability entities: outbound call
// logs, sync run records, security events and request metrics.
package models

import (
	"time"
)

// CallLog is one row per outbound vendor HTTP call. Credentials are sanitized
// to a short prefix plus a mask before the row is written, and the response
// is summarized (byte count, item count) rather than stored in full, to bound
// log storage and keep PII out of logs.
type CallLog struct {
	ID        string `json:"id"`
	ServiceID string `json:"service_id"`

	Operation string `json:"operation"`
	Method    string `json:"method"`
	URL       string `json:"url"` // credentials already masked

	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`

	// ResponseSummary is a short human-readable digest of the payload,
	// e.g. "1423 bytes, 37 items". Never the body itself.
	ResponseSummary string `json:"response_summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SyncRunStatus tracks a sync run's lifecycle.
type SyncRunStatus string

const (
	SyncRunInProgress SyncRunStatus = "in_progress"
	SyncRunSuccess    SyncRunStatus = "success"
	SyncRunError      SyncRunStatus = "error"
)

// SyncRun wraps one execution of the sync orchestration loop against one
// vendor service. Partial progress made before a failure is not rolled back;
// only the run's own status reflects the failure.
type SyncRun struct {
	ID        string       `json:"id"`
	ServiceID string       `json:"service_id"`
	Kind      ResourceKind `json:"kind"`

	Status        SyncRunStatus `json:"status"`
	RecordsSynced int           `json:"records_synced"`
	Batches       int           `json:"batches"`
	Error         string        `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SecurityEventReason tags why a request was denied (or which sensitive
// operation was performed). These are the machine-readable reasons the
// gateway writes for every deny; abuse detection tooling keys off them.
type SecurityEventReason string

const (
	ReasonInvalidHeader    SecurityEventReason = "invalid_header"
	ReasonTokenInactive    SecurityEventReason = "token_inactive"
	ReasonTokenBlocked     SecurityEventReason = "token_blocked"
	ReasonTokenExpired     SecurityEventReason = "token_expired"
	ReasonIPBlocked        SecurityEventReason = "ip_blocked"
	ReasonIPNotWhitelisted SecurityEventReason = "ip_not_whitelisted"
	ReasonRateLimit        SecurityEventReason = "rate_limit"
	ReasonServiceDenied    SecurityEventReason = "service_denied"

	// ReasonDeliveryReopened records the destructive admin operation that
	// re-opens already-delivered records for redelivery.
	ReasonDeliveryReopened SecurityEventReason = "delivery_reopened"
)

// SecurityEvent is the audit trail entry written for every gateway deny and
// for sensitive administrative operations.
type SecurityEvent struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Reason    SecurityEventReason `json:"reason"`

	// TokenID and ClientID are set when known at the point of denial.
	TokenID  string `json:"token_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	IPAddress string `json:"ip_address"`
	Endpoint  string `json:"endpoint"`
	Method    string `json:"method"`
	UserAgent string `json:"user_agent,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// EndpointMetric is an aggregated traffic summary for one endpoint/method
// pair, served by the admin metrics endpoint.
type EndpointMetric struct {
	Endpoint      string `json:"endpoint"`
	Method        string `json:"method"`
	Requests      int64  `json:"requests"`
	Errors        int64  `json:"errors"`
	AvgDurationMS int64  `json:"avg_duration_ms"`
}

// RequestMetric is one row per processed client-facing request (allow or
// deny), distinct from the security log, feeding operational dashboards and
// the exact sliding-window rate limit count.
type RequestMetric struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	TokenID  string `json:"token_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`

	Endpoint   string `json:"endpoint"`
	Method     string `json:"method"`
	Status     int    `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent,omitempty"`
}
