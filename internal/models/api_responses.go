// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"time"
)

// APIResponse is the envelope returned by every client-facing list endpoint.
//
// Example:
//
//	{
//	  "data": [ ... up to 500 records ... ],
//	  "pagination": {"total": 1371, "limit": 500, "offset": 0, "has_more": true},
//	  "batch": {"pending_confirmation": true, "records_in_batch": 500, "total_delivered": 2371},
//	  "rate_limit": {"limit": 1000, "remaining": 993, "reset_at": "2026-08-29T13:04:05Z"}
//	}
//
// A blocked batch (previous batch unconfirmed) is HTTP 200 with an empty
// data list and batch.pending_confirmation set, so polling clients have one
// consistent non-exceptional signal.
type APIResponse struct {
	Data       interface{}    `json:"data"`
	Pagination *Pagination    `json:"pagination,omitempty"`
	Batch      *BatchInfo     `json:"batch,omitempty"`
	RateLimit  *RateLimitInfo `json:"rate_limit,omitempty"`
}

// Pagination describes the window of the full entitled result set the
// current response covers.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// BatchInfo carries the delivery protocol state alongside the data.
type BatchInfo struct {
	PendingConfirmation bool  `json:"pending_confirmation"`
	RecordsInBatch      int   `json:"records_in_batch"`
	TotalDelivered      int64 `json:"total_delivered"`
}

// RateLimitInfo mirrors the X-RateLimit-* response headers in the body so
// integrators do not need to parse headers.
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// APIErrorResponse is the envelope for error responses. Every error carries
// a human-readable message; rate-limit and batch-pending conditions
// additionally carry machine-readable structured fields so integrators do
// not need to string-match.
type APIErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RateLimit *RateLimitInfo         `json:"rate_limit,omitempty"`
}

// Common machine-readable error codes.
const (
	ErrCodeAuthDenied        = "AUTH_DENIED"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeProtocolViolation = "PROTOCOL_VIOLATION"
	ErrCodeVendorFailure     = "VENDOR_FAILURE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
