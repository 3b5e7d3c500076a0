// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"fmt"
	"strings"
	"time"
)

// ResourceStatus tracks the lifecycle of a monitored resource against the vendor.
type ResourceStatus string

const (
	// ResourceStatusPending means the resource row exists locally but the
	// vendor has not yet confirmed registration (no vendor code attached).
	ResourceStatusPending ResourceStatus = "pending"

	// ResourceStatusActive means the vendor confirmed registration.
	ResourceStatusActive ResourceStatus = "active"

	// ResourceStatusRemoved means the vendor confirmed removal. Rows are
	// never hard-deleted so the audit trail stays intact.
	ResourceStatusRemoved ResourceStatus = "removed"
)

// TermType distinguishes the flavors of monitored search terms.
type TermType string

const (
	TermTypeName  TermType = "name"  // party or lawyer name
	TermTypeOAB   TermType = "oab"   // bar registration number
	TermTypeOther TermType = "other" // free-form term
)

// MonitoredResource is a thing the vendor is asked to track on the hub's
// behalf: a case number (processes) or a monitored name/term (distributions,
// publications).
//
// Invariant: at most one row per (natural key, vendor service). The natural
// key is the case number for cases and the term text plus term type for terms.
// The vendor code is attached only after the vendor confirms registration.
type MonitoredResource struct {
	ID        string       `json:"id"`
	ServiceID string       `json:"service_id"`
	Kind      ResourceKind `json:"kind"`

	// Case resources
	CaseNumber string `json:"case_number,omitempty"`

	// Term resources
	Term     string   `json:"term,omitempty"`
	TermType TermType `json:"term_type,omitempty"`

	// VendorCode is the vendor-assigned identifier, set only after a
	// successful registration call.
	VendorCode *string `json:"vendor_code,omitempty"`

	Status    ResourceStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	RemovedAt *time.Time     `json:"removed_at,omitempty"`
}

// NaturalKey returns the deduplication key for this resource within its
// vendor service: the case number for cases, "type:term" for terms.
// Terms are case-folded so "Silva" and "silva" collapse to one registration.
func (r *MonitoredResource) NaturalKey() string {
	if r.CaseNumber != "" {
		return r.CaseNumber
	}
	return fmt.Sprintf("%s:%s", r.TermType, strings.ToLower(strings.TrimSpace(r.Term)))
}

// ClientLink joins a client system to a monitored resource it cares about.
//
// Invariant: uniqueness on (client, resource). This table is the refcount:
// vendor-side removal is only triggered when a delete leaves zero rows for
// the resource.
type ClientLink struct {
	ClientID   string    `json:"client_id"`
	ResourceID string    `json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}
