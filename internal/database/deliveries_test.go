// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"testing"

	"github.com/tramitahub/tramita/internal/models"
)

// seedDeliveryPool creates a service, a linked resource for client-a and n
// records attached to it, returning the inserted records.
func seedDeliveryPool(t *testing.T, db *DB, kind models.ResourceKind, n int) []models.VendorRecord {
	t.Helper()
	ctx := context.Background()
	serviceID := seedService(t, db, kind)
	resourceID := seedCaseResource(t, db, serviceID, kind, "0001234-56.2026.8.26.0100")
	seedClient(t, db, "client-a")
	if err := db.CreateClientLink(ctx, "client-a", resourceID); err != nil {
		t.Fatalf("link failed: %v", err)
	}

	var records []models.VendorRecord
	for i := 1; i <= n; i++ {
		record := storedRecord(int64(i), kind, serviceID)
		record.ResourceID = &resourceID
		records = append(records, record)
	}
	if err := db.UpsertVendorRecords(ctx, records); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	return records
}

// The full cursor round trip: absent, pending after a delivery, settled
// after confirmation, with delivered records excluded from later batches.
func TestDeliveryCursorLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kind := models.KindProcesses
	records := seedDeliveryPool(t, db, kind, 5)

	cursor, err := db.GetCursor(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("cursor lookup failed: %v", err)
	}
	if cursor != nil {
		t.Fatal("expected no cursor before the first delivery")
	}

	if err := db.DeliverBatch(ctx, "client-a", kind, records[:3]); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	cursor, err = db.GetCursor(ctx, "client-a", kind)
	if err != nil || cursor == nil {
		t.Fatalf("cursor lookup after delivery failed: %v", err)
	}
	if !cursor.PendingConfirmation {
		t.Error("cursor must be pending after a delivery")
	}
	if cursor.LastDeliveredID != 3 || cursor.TotalDelivered != 3 || cursor.BatchSize != 3 {
		t.Errorf("unexpected cursor state: %+v", cursor)
	}

	confirmed, err := db.ConfirmDeliveries(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}
	if confirmed != 3 {
		t.Errorf("expected 3 records confirmed, got %d", confirmed)
	}

	cursor, err = db.GetCursor(ctx, "client-a", kind)
	if err != nil || cursor == nil {
		t.Fatalf("cursor lookup after confirm failed: %v", err)
	}
	if cursor.PendingConfirmation {
		t.Error("confirmation must clear the pending flag")
	}
	if cursor.ConfirmedAt == nil {
		t.Error("confirmation must stamp the cursor")
	}

	// Delivered records never come back; the remaining two do.
	rest, err := db.ListUndeliveredRecords(ctx, "client-a", kind, 100, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rest) != 2 || rest[0].VendorID != 4 || rest[1].VendorID != 5 {
		t.Errorf("expected vendor ids 4 and 5 undelivered, got %+v", rest)
	}

	total, err := db.CountDeliveredRecords(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 delivered, got %d", total)
	}
}

// Confirming with no pending batch is a zero, not an error; the cursor and
// delivery rows stay untouched so the protocol can surface the violation.
func TestConfirmDeliveriesNothingPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kind := models.KindDistributions
	records := seedDeliveryPool(t, db, kind, 2)

	confirmed, err := db.ConfirmDeliveries(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}
	if confirmed != 0 {
		t.Errorf("expected 0 with no cursor at all, got %d", confirmed)
	}

	// A settled cursor is equally not pending.
	if err := db.DeliverBatch(ctx, "client-a", kind, records); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if _, err := db.ConfirmDeliveries(ctx, "client-a", kind); err != nil {
		t.Fatalf("first confirmation failed: %v", err)
	}
	confirmed, err = db.ConfirmDeliveries(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("double confirmation failed: %v", err)
	}
	if confirmed != 0 {
		t.Errorf("expected 0 on double confirm, got %d", confirmed)
	}
}

// Pending delivery rows are re-served as the same batch until confirmed.
func TestListPendingBatchRecords(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kind := models.KindProcesses
	records := seedDeliveryPool(t, db, kind, 4)

	if err := db.DeliverBatch(ctx, "client-a", kind, records[:2]); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}

	pending, err := db.ListPendingBatchRecords(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("pending list failed: %v", err)
	}
	if len(pending) != 2 || pending[0].VendorID != 1 || pending[1].VendorID != 2 {
		t.Errorf("expected the delivered pair pending, got %+v", pending)
	}

	if _, err := db.ConfirmDeliveries(ctx, "client-a", kind); err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}
	pending, err = db.ListPendingBatchRecords(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("pending list after confirm failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected nothing pending after confirm, got %d", len(pending))
	}
}

// Reopening deletes delivery rows so the records re-enter the undelivered
// pool, and settles the cursor when no unconfirmed rows remain.
func TestReopenDeliveries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kind := models.KindPublications
	records := seedDeliveryPool(t, db, kind, 4)

	if err := db.DeliverBatch(ctx, "client-a", kind, records); err != nil {
		t.Fatalf("delivery failed: %v", err)
	}
	if _, err := db.ConfirmDeliveries(ctx, "client-a", kind); err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}

	// Partial reopen by vendor id.
	reopened, err := db.ReopenDeliveries(ctx, "client-a", kind, []int64{2, 3})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened != 2 {
		t.Errorf("expected 2 rows reopened, got %d", reopened)
	}

	back, err := db.ListUndeliveredRecords(ctx, "client-a", kind, 100, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(back) != 2 || back[0].VendorID != 2 || back[1].VendorID != 3 {
		t.Errorf("expected vendor ids 2 and 3 back in the pool, got %+v", back)
	}

	// Reopening a half-delivered batch that was never confirmed must not
	// wedge the cursor: once its unconfirmed rows are gone, pending clears.
	if err := db.DeliverBatch(ctx, "client-a", kind, back); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	cursor, err := db.GetCursor(ctx, "client-a", kind)
	if err != nil || cursor == nil || !cursor.PendingConfirmation {
		t.Fatalf("expected a pending cursor, got %+v (err %v)", cursor, err)
	}
	if _, err := db.ReopenDeliveries(ctx, "client-a", kind, nil); err != nil {
		t.Fatalf("full reopen failed: %v", err)
	}
	cursor, err = db.GetCursor(ctx, "client-a", kind)
	if err != nil || cursor == nil {
		t.Fatalf("cursor lookup failed: %v", err)
	}
	if cursor.PendingConfirmation {
		t.Error("reopening every unconfirmed row must settle the cursor")
	}
}
