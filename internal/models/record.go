// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// VendorRecord is one payload fetched from the vendor: a case movement, a
// new-case distribution, or a gazette publication. Records are upserted keyed
// by the vendor's own numeric id within their kind, so redelivery from the
// vendor is naturally idempotent.
//
// ResourceID may be nil at insert time when the parent monitored resource
// does not exist locally yet (the vendor delivers children before parents in
// some orderings); the orphan-linking pass back-fills it once the parent
// exists.
type VendorRecord struct {
	// ID is the hub-local identifier exposed on the client-facing API.
	ID string `json:"id"`

	// VendorID is the vendor-assigned numeric identifier, the upsert key
	// within a kind.
	VendorID int64        `json:"vendor_id"`
	Kind     ResourceKind `json:"kind"`

	ServiceID  string  `json:"service_id"`
	ResourceID *string `json:"resource_id,omitempty"`

	// CaseNumber is the parent natural key as delivered by the vendor.
	// Distributions and publications carry the matched term here instead
	// when no case number is present.
	CaseNumber string `json:"case_number,omitempty"`
	Term       string `json:"term,omitempty"`

	// Payload fields. Category holds the movement type, distribution class
	// or gazette section depending on kind.
	Court    string `json:"court,omitempty"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`

	OccurredAt time.Time `json:"occurred_at"`
	FetchedAt  time.Time `json:"fetched_at"`

	// Raw is the vendor payload as received, kept for reprocessing.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// RecordFilter narrows vendor record queries on the client-facing API.
// Zero values mean "no constraint".
type RecordFilter struct {
	CaseNumber string
	Court      string
	Category   string
	Since      *time.Time
	Until      *time.Time
}
