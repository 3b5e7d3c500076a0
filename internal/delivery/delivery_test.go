// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tramitahub/tramita/internal/audit"
	"github.com/tramitahub/tramita/internal/models"
)

// mockAuditStore swallows the async audit writes.
type mockAuditStore struct{}

func (mockAuditStore) InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	return nil
}

func (mockAuditStore) InsertRequestMetric(ctx context.Context, metric *models.RequestMetric) error {
	return nil
}

type deliveryKey struct {
	clientID string
	kind     models.ResourceKind
	vendorID int64
}

// mockStore is an in-memory delivery store mirroring the production
// semantics: one cursor per (client, kind), delivery rows keyed by vendor id.
type mockStore struct {
	mu         sync.Mutex
	records    []models.VendorRecord // the client's entitled, undelivered pool
	byID       map[string]models.VendorRecord
	links      map[string]bool // clientID|resourceID
	cursors    map[string]*models.DeliveryCursor
	deliveries map[deliveryKey]*time.Time // nil time = unconfirmed
}

func newDeliveryStore() *mockStore {
	return &mockStore{
		byID:       make(map[string]models.VendorRecord),
		links:      make(map[string]bool),
		cursors:    make(map[string]*models.DeliveryCursor),
		deliveries: make(map[deliveryKey]*time.Time),
	}
}

func cursorKey(clientID string, kind models.ResourceKind) string {
	return clientID + "|" + string(kind)
}

func (m *mockStore) addRecord(record models.VendorRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	m.byID[record.ID] = record
}

func (m *mockStore) GetCursor(ctx context.Context, clientID string, kind models.ResourceKind) (*models.DeliveryCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cursors[cursorKey(clientID, kind)]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (m *mockStore) ListUndeliveredRecords(ctx context.Context, clientID string, kind models.ResourceKind, limit, offset int, filter models.RecordFilter) ([]models.VendorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VendorRecord
	skipped := 0
	for _, r := range m.records {
		if r.Kind != kind {
			continue
		}
		if _, delivered := m.deliveries[deliveryKey{clientID, kind, r.VendorID}]; delivered {
			continue
		}
		if !matchesFilter(&r, filter) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func matchesFilter(r *models.VendorRecord, f models.RecordFilter) bool {
	switch {
	case f.CaseNumber != "" && r.CaseNumber != f.CaseNumber:
		return false
	case f.Court != "" && r.Court != f.Court:
		return false
	case f.Category != "" && r.Category != f.Category:
		return false
	case f.Since != nil && r.OccurredAt.Before(*f.Since):
		return false
	case f.Until != nil && r.OccurredAt.After(*f.Until):
		return false
	}
	return true
}

func (m *mockStore) ListPendingBatchRecords(ctx context.Context, clientID string, kind models.ResourceKind) ([]models.VendorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.VendorRecord
	for _, r := range m.records {
		if confirmedAt, ok := m.deliveries[deliveryKey{clientID, kind, r.VendorID}]; ok && confirmedAt == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) DeliverBatch(ctx context.Context, clientID string, kind models.ResourceKind, records []models.VendorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cursorKey(clientID, kind)
	cursor := m.cursors[key]
	if cursor == nil {
		cursor = &models.DeliveryCursor{ClientID: clientID, Kind: kind}
		m.cursors[key] = cursor
	}
	if cursor.PendingConfirmation {
		return fmt.Errorf("deliver while pending")
	}
	for _, r := range records {
		m.deliveries[deliveryKey{clientID, kind, r.VendorID}] = nil
		if r.VendorID > cursor.LastDeliveredID {
			cursor.LastDeliveredID = r.VendorID
		}
	}
	cursor.PendingConfirmation = true
	cursor.TotalDelivered += int64(len(records))
	return nil
}

func (m *mockStore) ConfirmDeliveries(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor := m.cursors[cursorKey(clientID, kind)]
	if cursor == nil || !cursor.PendingConfirmation {
		return 0, nil
	}
	cursor.PendingConfirmation = false
	now := time.Now()
	var confirmed int64
	for key, confirmedAt := range m.deliveries {
		if key.clientID == clientID && key.kind == kind && confirmedAt == nil {
			stamped := now
			m.deliveries[key] = &stamped
			confirmed++
		}
	}
	return confirmed, nil
}

func (m *mockStore) ReopenDeliveries(ctx context.Context, clientID string, kind models.ResourceKind, vendorIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match := func(id int64) bool {
		if len(vendorIDs) == 0 {
			return true
		}
		for _, v := range vendorIDs {
			if v == id {
				return true
			}
		}
		return false
	}
	var reopened int64
	for key := range m.deliveries {
		if key.clientID == clientID && key.kind == kind && match(key.vendorID) {
			delete(m.deliveries, key)
			reopened++
		}
	}
	unconfirmed := false
	for key, confirmedAt := range m.deliveries {
		if key.clientID == clientID && key.kind == kind && confirmedAt == nil {
			unconfirmed = true
		}
	}
	if cursor := m.cursors[cursorKey(clientID, kind)]; cursor != nil && !unconfirmed {
		cursor.PendingConfirmation = false
	}
	return reopened, nil
}

func (m *mockStore) GetRecordByID(ctx context.Context, id string) (*models.VendorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		copied := r
		return &copied, nil
	}
	return nil, nil
}

func (m *mockStore) HasClientLink(ctx context.Context, clientID, resourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[clientID+"|"+resourceID], nil
}

func (m *mockStore) CountDeliveredRecords(ctx context.Context, clientID string, kind models.ResourceKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key := range m.deliveries {
		if key.clientID == clientID && key.kind == kind {
			n++
		}
	}
	return n, nil
}

func testRecord(id string, vendorID int64, kind models.ResourceKind) models.VendorRecord {
	resourceID := "res-1"
	return models.VendorRecord{
		ID:         id,
		VendorID:   vendorID,
		Kind:       kind,
		ServiceID:  "svc-1",
		ResourceID: &resourceID,
		Content:    "movement " + id,
		OccurredAt: time.Now(),
		FetchedAt:  time.Now(),
	}
}

func newTestProtocol(maxPage int) (*Protocol, *mockStore) {
	store := newDeliveryStore()
	return New(store, audit.NewLogger(mockAuditStore{}), maxPage), store
}

func TestNextBatchBlocksUntilConfirmed(t *testing.T) {
	proto, store := newTestProtocol(500)
	ctx := context.Background()
	kind := models.KindProcesses

	for i := 1; i <= 5; i++ {
		store.addRecord(testRecord(fmt.Sprintf("r%d", i), int64(i), kind))
	}

	// First fetch hands out everything and flips the cursor to pending.
	first, err := proto.NextBatch(ctx, "client-a", kind, 3, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	if len(first.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(first.Records))
	}
	if first.PendingConfirmation {
		t.Error("fresh batch should not be marked blocked")
	}

	// Second fetch without confirmation is blocked: 200-with-empty, never
	// the pending records again.
	blocked, err := proto.NextBatch(ctx, "client-a", kind, 3, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("blocked fetch failed: %v", err)
	}
	if !blocked.PendingConfirmation {
		t.Error("expected pending_confirmation marker")
	}
	if len(blocked.Records) != 0 {
		t.Errorf("blocked response must carry no records, got %d", len(blocked.Records))
	}

	// Confirm, then the next batch flows.
	confirmed, err := proto.Confirm(ctx, "client-a", kind)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed != 3 {
		t.Errorf("expected 3 confirmed records, got %d", confirmed)
	}

	next, err := proto.NextBatch(ctx, "client-a", kind, 3, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("post-confirm batch failed: %v", err)
	}
	if len(next.Records) != 2 {
		t.Errorf("expected the remaining 2 records, got %d", len(next.Records))
	}
	if next.TotalDelivered != 5 {
		t.Errorf("expected total delivered 5, got %d", next.TotalDelivered)
	}
}

func TestConfirmWithNothingPending(t *testing.T) {
	proto, _ := newTestProtocol(500)

	_, err := proto.Confirm(context.Background(), "client-a", models.KindProcesses)
	if !errors.Is(err, ErrNothingPending) {
		t.Errorf("expected ErrNothingPending, got %v", err)
	}
}

func TestNextBatchEmptyPool(t *testing.T) {
	proto, _ := newTestProtocol(500)

	batch, err := proto.NextBatch(context.Background(), "client-a", models.KindPublications, 100, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("empty fetch failed: %v", err)
	}
	if len(batch.Records) != 0 || batch.PendingConfirmation {
		t.Errorf("empty pool should yield an empty, unblocked batch")
	}

	// An empty batch must not flip the cursor: the next fetch still works.
	if _, err := proto.NextBatch(context.Background(), "client-a", models.KindPublications, 100, 0, models.RecordFilter{}); err != nil {
		t.Fatalf("second empty fetch failed: %v", err)
	}
}

func TestNextBatchEnforcesCap(t *testing.T) {
	proto, store := newTestProtocol(10)
	ctx := context.Background()
	kind := models.KindProcesses

	for i := 1; i <= 30; i++ {
		store.addRecord(testRecord(fmt.Sprintf("r%d", i), int64(i), kind))
	}

	// A limit above the cap (or nonsense) is clamped server-side.
	batch, err := proto.NextBatch(ctx, "client-a", kind, 10000, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if len(batch.Records) != 10 {
		t.Errorf("expected cap of 10 records, got %d", len(batch.Records))
	}
}

// An offset skips past the front of the undelivered pool; only the window
// actually handed out is marked delivered.
func TestNextBatchOffsetWindow(t *testing.T) {
	proto, store := newTestProtocol(500)
	ctx := context.Background()
	kind := models.KindProcesses

	for i := 1; i <= 6; i++ {
		store.addRecord(testRecord(fmt.Sprintf("r%d", i), int64(i), kind))
	}

	batch, err := proto.NextBatch(ctx, "client-a", kind, 2, 3, models.RecordFilter{})
	if err != nil {
		t.Fatalf("offset batch failed: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(batch.Records))
	}
	if batch.Records[0].VendorID != 4 || batch.Records[1].VendorID != 5 {
		t.Errorf("expected vendor ids 4 and 5, got %d and %d",
			batch.Records[0].VendorID, batch.Records[1].VendorID)
	}

	// The skipped records were never delivered and come back next time.
	if _, err := proto.Confirm(ctx, "client-a", kind); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	next, err := proto.NextBatch(ctx, "client-a", kind, 500, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("follow-up batch failed: %v", err)
	}
	if len(next.Records) != 4 {
		t.Errorf("expected the 4 unserved records, got %d", len(next.Records))
	}

	// A negative offset behaves like zero.
	if _, err := proto.Confirm(ctx, "client-a", kind); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := proto.NextBatch(ctx, "client-a", kind, 500, -3, models.RecordFilter{}); err != nil {
		t.Fatalf("negative offset batch failed: %v", err)
	}
}

// Filters narrow the batch; non-matching records stay undelivered.
func TestNextBatchFiltered(t *testing.T) {
	proto, store := newTestProtocol(500)
	ctx := context.Background()
	kind := models.KindPublications

	older := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	a := testRecord("r1", 1, kind)
	a.Court = "TJSP"
	a.OccurredAt = older
	b := testRecord("r2", 2, kind)
	b.Court = "TJRJ"
	b.OccurredAt = newer
	c := testRecord("r3", 3, kind)
	c.Court = "TJSP"
	c.OccurredAt = newer
	for _, r := range []models.VendorRecord{a, b, c} {
		store.addRecord(r)
	}

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	batch, err := proto.NextBatch(ctx, "client-a", kind, 500, 0,
		models.RecordFilter{Court: "TJSP", Since: &since})
	if err != nil {
		t.Fatalf("filtered batch failed: %v", err)
	}
	if len(batch.Records) != 1 || batch.Records[0].ID != "r3" {
		t.Fatalf("expected only r3 to match, got %+v", batch.Records)
	}

	// The filtered-out records are still undelivered afterwards.
	if _, err := proto.Confirm(ctx, "client-a", kind); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	rest, err := proto.NextBatch(ctx, "client-a", kind, 500, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("unfiltered batch failed: %v", err)
	}
	if len(rest.Records) != 2 {
		t.Errorf("expected the 2 unmatched records, got %d", len(rest.Records))
	}
}

func TestGetRecordEntitlement(t *testing.T) {
	proto, store := newTestProtocol(500)
	ctx := context.Background()

	record := testRecord("r1", 1, models.KindProcesses)
	store.addRecord(record)
	store.links["client-a|res-1"] = true

	orphan := testRecord("r2", 2, models.KindProcesses)
	orphan.ResourceID = nil
	store.addRecord(orphan)

	got, err := proto.GetRecord(ctx, "client-a", "r1")
	if err != nil {
		t.Fatalf("entitled lookup failed: %v", err)
	}
	if got.ID != "r1" {
		t.Errorf("expected r1, got %s", got.ID)
	}

	// Unentitled and unknown are the same error.
	if _, err := proto.GetRecord(ctx, "client-b", "r1"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound for unentitled client, got %v", err)
	}
	if _, err := proto.GetRecord(ctx, "client-a", "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound for unknown id, got %v", err)
	}
	// Orphan records stay invisible until linked.
	if _, err := proto.GetRecord(ctx, "client-a", "r2"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound for orphan record, got %v", err)
	}
}

func TestReopenRedelivers(t *testing.T) {
	proto, store := newTestProtocol(500)
	ctx := context.Background()
	kind := models.KindDistributions

	for i := 1; i <= 4; i++ {
		store.addRecord(testRecord(fmt.Sprintf("r%d", i), int64(i), kind))
	}

	if _, err := proto.NextBatch(ctx, "client-a", kind, 500, 0, models.RecordFilter{}); err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	if _, err := proto.Confirm(ctx, "client-a", kind); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	reopened, err := proto.Reopen(ctx, "ops", "client-a", kind, []int64{2, 3})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened != 2 {
		t.Errorf("expected 2 reopened records, got %d", reopened)
	}

	batch, err := proto.NextBatch(ctx, "client-a", kind, 500, 0, models.RecordFilter{})
	if err != nil {
		t.Fatalf("post-reopen batch failed: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Errorf("expected the 2 reopened records, got %d", len(batch.Records))
	}
}
