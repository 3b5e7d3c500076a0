// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package delivery implements the client-facing batch handoff protocol: at
// most one outstanding batch per (client, kind), advanced only by an explicit
// confirmation. Acknowledgement is the client's promise that it has durably
// stored the batch; without the gate, a client crash between receive and
// persist would silently lose records.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/tramitahub/tramita/internal/audit"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/metrics"
	"github.com/tramitahub/tramita/internal/models"
)

// ErrNothingPending is the protocol violation of confirming when no batch is
// outstanding. Surfaced distinctly so client integrators can detect a
// state-tracking bug on their side instead of masking a lost blocked state.
var ErrNothingPending = errors.New("no batch is pending confirmation")

// ErrRecordNotFound covers both a genuinely unknown record id and a record
// the client is not entitled to; the two are deliberately indistinguishable.
var ErrRecordNotFound = errors.New("record not found")

// Store is the persistence surface the protocol drives. *database.DB
// satisfies this.
type Store interface {
	GetCursor(ctx context.Context, clientID string, kind models.ResourceKind) (*models.DeliveryCursor, error)
	ListUndeliveredRecords(ctx context.Context, clientID string, kind models.ResourceKind, limit, offset int, filter models.RecordFilter) ([]models.VendorRecord, error)
	ListPendingBatchRecords(ctx context.Context, clientID string, kind models.ResourceKind) ([]models.VendorRecord, error)
	DeliverBatch(ctx context.Context, clientID string, kind models.ResourceKind, records []models.VendorRecord) error
	ConfirmDeliveries(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error)
	ReopenDeliveries(ctx context.Context, clientID string, kind models.ResourceKind, vendorIDs []int64) (int64, error)
	GetRecordByID(ctx context.Context, id string) (*models.VendorRecord, error)
	HasClientLink(ctx context.Context, clientID, resourceID string) (bool, error)
	CountDeliveredRecords(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error)
}

// Batch is the outcome of a fetch: either a fresh batch of records, or a
// blocked marker while the previous batch awaits confirmation. Blocked is an
// ordinary response, not an error, so polling code has one consistent path.
type Batch struct {
	Records             []models.VendorRecord
	PendingConfirmation bool
	TotalDelivered      int64
}

// Protocol runs the batch delivery state machine over the store.
type Protocol struct {
	store   Store
	audit   *audit.Logger
	maxPage int
}

// New creates the protocol. maxPage is the server-side hard cap on batch
// size, applied regardless of what the client asks for.
func New(store Store, auditLog *audit.Logger, maxPage int) *Protocol {
	if maxPage <= 0 {
		maxPage = 500
	}
	return &Protocol{store: store, audit: auditLog, maxPage: maxPage}
}

// NextBatch hands out the next batch for (client, kind).
//
// The cursor state decides: pending blocks with an explicit marker; absent
// or confirmed produces a fresh batch of up to limit entitled records,
// skipping the first offset matches, and flips the cursor to pending. The
// filter narrows the batch to matching records only; non-matching records
// stay undelivered for later fetches. A client with no linked resources
// gets an empty, unblocked page.
func (p *Protocol) NextBatch(ctx context.Context, clientID string, kind models.ResourceKind, limit, offset int, filter models.RecordFilter) (*Batch, error) {
	if limit <= 0 || limit > p.maxPage {
		limit = p.maxPage
	}
	if offset < 0 {
		offset = 0
	}

	cursor, err := p.store.GetCursor(ctx, clientID, kind)
	if err != nil {
		return nil, fmt.Errorf("cursor lookup failed: %w", err)
	}

	switch cursor.State() {
	case models.CursorPending:
		total, err := p.store.CountDeliveredRecords(ctx, clientID, kind)
		if err != nil {
			return nil, fmt.Errorf("delivered count failed: %w", err)
		}
		return &Batch{PendingConfirmation: true, TotalDelivered: total}, nil

	case models.CursorAbsent, models.CursorConfirmed:
		records, err := p.store.ListUndeliveredRecords(ctx, clientID, kind, limit, offset, filter)
		if err != nil {
			return nil, fmt.Errorf("batch query failed: %w", err)
		}
		if len(records) > 0 {
			if err := p.store.DeliverBatch(ctx, clientID, kind, records); err != nil {
				return nil, fmt.Errorf("batch delivery failed: %w", err)
			}
			metrics.BatchesDelivered.WithLabelValues(string(kind)).Inc()
		}
		total, err := p.store.CountDeliveredRecords(ctx, clientID, kind)
		if err != nil {
			return nil, fmt.Errorf("delivered count failed: %w", err)
		}
		return &Batch{Records: records, TotalDelivered: total}, nil

	default:
		return nil, fmt.Errorf("cursor in unknown state %q", cursor.State())
	}
}

// Confirm acknowledges the outstanding batch. Confirming when nothing is
// pending is ErrNothingPending, a client error, never silently ignored.
func (p *Protocol) Confirm(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error) {
	confirmed, err := p.store.ConfirmDeliveries(ctx, clientID, kind)
	if err != nil {
		return 0, fmt.Errorf("confirmation failed: %w", err)
	}
	if confirmed == 0 {
		return 0, ErrNothingPending
	}
	metrics.BatchesConfirmed.WithLabelValues(string(kind)).Inc()
	return confirmed, nil
}

// GetRecord returns one record by its hub-local id. It bypasses the cursor
// but still enforces entitlement: the record must belong to a resource the
// client is linked to. Orphan records are invisible until linked.
func (p *Protocol) GetRecord(ctx context.Context, clientID, recordID string) (*models.VendorRecord, error) {
	record, err := p.store.GetRecordByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("record lookup failed: %w", err)
	}
	if record == nil || record.ResourceID == nil {
		return nil, ErrRecordNotFound
	}
	linked, err := p.store.HasClientLink(ctx, clientID, *record.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("entitlement check failed: %w", err)
	}
	if !linked {
		return nil, ErrRecordNotFound
	}
	return record, nil
}

// PendingBatch returns the records of the batch currently awaiting the
// client's confirmation, for administrative inspection.
func (p *Protocol) PendingBatch(ctx context.Context, clientID string, kind models.ResourceKind) ([]models.VendorRecord, error) {
	return p.store.ListPendingBatchRecords(ctx, clientID, kind)
}

// Reopen force-clears delivery state for the given vendor record ids (all of
// the pair's records when ids is empty), re-opening them for redelivery.
// This is destructive to the already-delivered guarantee (used only for
// migrating data to a secondary legacy consumer), so it is recorded as a
// security event attributed to the acting platform subject.
func (p *Protocol) Reopen(ctx context.Context, actor, clientID string, kind models.ResourceKind, vendorIDs []int64) (int64, error) {
	reopened, err := p.store.ReopenDeliveries(ctx, clientID, kind, vendorIDs)
	if err != nil {
		return 0, fmt.Errorf("reopen failed: %w", err)
	}

	metrics.DeliveriesReopened.Add(float64(reopened))
	p.audit.SecurityEvent(models.SecurityEvent{
		Reason:   models.ReasonDeliveryReopened,
		ClientID: clientID,
		Endpoint: "admin/reopen",
		Method:   "POST",
		Detail:   fmt.Sprintf("actor=%s kind=%s records=%d", actor, kind, reopened),
	})
	logging.Warn().
		Str("actor", actor).
		Str("client_id", clientID).
		Str("kind", string(kind)).
		Int64("records", reopened).
		Msg("Delivered records re-opened for redelivery")

	return reopened, nil
}
