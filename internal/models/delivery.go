// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"time"
)

// CursorState is the explicit state machine of a delivery cursor.
//
// Legal transitions:
//   - deliver: CursorAbsent or CursorConfirmed -> CursorPending
//   - confirm: CursorPending -> CursorConfirmed
//
// Any other transition is a protocol violation surfaced as a distinct error
// so client integrators can detect state-tracking bugs on their side.
type CursorState string

const (
	// CursorAbsent means no cursor row exists yet for (client, kind).
	CursorAbsent CursorState = "absent"

	// CursorPending means a batch has been handed out and its receipt has
	// not been acknowledged. No new batch may be produced in this state.
	CursorPending CursorState = "pending"

	// CursorConfirmed means the last batch was acknowledged.
	CursorConfirmed CursorState = "confirmed"
)

// DeliveryCursor is the per-(client, kind) pointer plus confirmation flag
// governing batch handoff to client systems.
//
// Invariant: while PendingConfirmation is true, no new batch may be produced
// for this (client, kind) pair. Mutated only by the delivery protocol.
type DeliveryCursor struct {
	ClientID string       `json:"client_id"`
	Kind     ResourceKind `json:"kind"`

	LastDeliveredID     int64 `json:"last_delivered_id"`
	PendingConfirmation bool  `json:"pending_confirmation"`
	TotalDelivered      int64 `json:"total_delivered"`
	BatchSize           int   `json:"batch_size"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// State derives the cursor's position in the delivery state machine.
// A nil cursor is CursorAbsent.
func (c *DeliveryCursor) State() CursorState {
	if c == nil {
		return CursorAbsent
	}
	if c.PendingConfirmation {
		return CursorPending
	}
	return CursorConfirmed
}

// RecordDelivery marks one vendor record as handed to one client. Rows are
// written when a batch is produced and stamped with a confirmation time when
// the client acknowledges the batch. The admin "reopen" operation deletes
// rows to force redelivery.
type RecordDelivery struct {
	ClientID    string       `json:"client_id"`
	Kind        ResourceKind `json:"kind"`
	VendorID    int64        `json:"vendor_id"`
	DeliveredAt time.Time    `json:"delivered_at"`
	ConfirmedAt *time.Time   `json:"confirmed_at,omitempty"`
}
