// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tramitahub/tramita/internal/config"
	"github.com/tramitahub/tramita/internal/models"
	"github.com/tramitahub/tramita/internal/vendor"
)

type mockStore struct {
	mu           sync.Mutex
	upserted     []models.VendorRecord
	upsertErr    error
	resolved     int64
	runs         map[string]*models.SyncRun
	lastSync     map[string]time.Time
	services     []models.VendorService
	finishStatus models.SyncRunStatus
	finishErr    string
}

func newMockStore() *mockStore {
	return &mockStore{
		runs:     make(map[string]*models.SyncRun),
		lastSync: make(map[string]time.Time),
	}
}

func (m *mockStore) UpsertVendorRecords(ctx context.Context, records []models.VendorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, records...)
	return nil
}

func (m *mockStore) ResolveRecordResource(ctx context.Context, serviceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved, nil
}

func (m *mockStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *mockStore) FinishSyncRun(ctx context.Context, id string, status models.SyncRunStatus, recordsSynced, batches int, runErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("unknown run %s", id)
	}
	run.Status = status
	run.RecordsSynced = recordsSynced
	run.Batches = batches
	run.Error = runErr
	m.finishStatus = status
	m.finishErr = runErr
	return nil
}

func (m *mockStore) UpdateServiceLastSync(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSync[id] = at
	return nil
}

func (m *mockStore) ListActiveVendorServices(ctx context.Context, kind models.ResourceKind) ([]models.VendorService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.services, nil
}

// mockClient serves a scripted queue: each FetchNew hands out the next page
// size from pages, re-serving nothing once confirmed.
type mockClient struct {
	mu           sync.Mutex
	pages        []int
	fetchCalls   int
	fetchErrOn   int // 1-based call number that fails, 0 for never
	confirmCalls [][]int64
	nextVendorID int64
}

func (c *mockClient) RegisterResource(ctx context.Context, resource *models.MonitoredResource) (string, error) {
	return "", errors.New("not used")
}

func (c *mockClient) RemoveResource(ctx context.Context, resource *models.MonitoredResource) error {
	return errors.New("not used")
}

func (c *mockClient) FetchNew(ctx context.Context, limit int) ([]models.VendorRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.fetchErrOn > 0 && c.fetchCalls == c.fetchErrOn {
		return nil, &vendor.Error{StatusCode: 500, Message: "vendor unavailable"}
	}
	if len(c.pages) == 0 {
		return nil, nil
	}
	size := c.pages[0]
	c.pages = c.pages[1:]
	if size > limit {
		size = limit
	}
	records := make([]models.VendorRecord, size)
	for i := range records {
		c.nextVendorID++
		records[i] = models.VendorRecord{
			VendorID:  c.nextVendorID,
			Kind:      models.KindProcesses,
			ServiceID: "svc-1",
		}
	}
	return records, nil
}

func (c *mockClient) ConfirmReceipt(ctx context.Context, vendorIDs []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmCalls = append(c.confirmCalls, append([]int64(nil), vendorIDs...))
	return nil
}

func testService() *models.VendorService {
	return &models.VendorService{
		ID:     "svc-1",
		Name:   "Intima PJE",
		Kind:   models.KindProcesses,
		Active: true,
	}
}

func newTestRunner(store *mockStore, client *mockClient) *Runner {
	cfg := &config.SyncConfig{
		Interval:         5 * time.Minute,
		PageSize:         500,
		MaxIterations:    50,
		ConfirmChunkSize: 100,
	}
	return NewRunner(store, func(service *models.VendorService) (vendor.Client, error) {
		return client, nil
	}, cfg)
}

// A queue of 1137 records drains in three pages: two full ones and a short
// one that ends the loop.
func TestRunDrainsQueue(t *testing.T) {
	store := newMockStore()
	client := &mockClient{pages: []int{500, 500, 137}}
	runner := newTestRunner(store, client)

	run, err := runner.Run(context.Background(), testService())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != models.SyncRunSuccess {
		t.Errorf("expected success, got %s", run.Status)
	}
	if run.RecordsSynced != 1137 {
		t.Errorf("expected 1137 records synced, got %d", run.RecordsSynced)
	}
	if run.Batches != 3 {
		t.Errorf("expected 3 batches, got %d", run.Batches)
	}
	if client.fetchCalls != 3 {
		t.Errorf("short page must end the loop; got %d fetches", client.fetchCalls)
	}
	if len(store.upserted) != 1137 {
		t.Errorf("expected 1137 stored records, got %d", len(store.upserted))
	}

	// Confirms go out in 100-id chunks: 5 + 5 + 2.
	if len(client.confirmCalls) != 12 {
		t.Errorf("expected 12 confirm calls, got %d", len(client.confirmCalls))
	}
	var confirmed int
	for _, chunk := range client.confirmCalls {
		if len(chunk) > 100 {
			t.Errorf("confirm chunk of %d exceeds the cap", len(chunk))
		}
		confirmed += len(chunk)
	}
	if confirmed != 1137 {
		t.Errorf("expected every record confirmed, got %d", confirmed)
	}

	if _, ok := store.lastSync["svc-1"]; !ok {
		t.Error("expected last sync stamp on the service")
	}
}

func TestRunEmptyQueue(t *testing.T) {
	store := newMockStore()
	client := &mockClient{}
	runner := newTestRunner(store, client)

	run, err := runner.Run(context.Background(), testService())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Status != models.SyncRunSuccess || run.RecordsSynced != 0 || run.Batches != 0 {
		t.Errorf("expected empty successful run, got %+v", run)
	}
}

// An unbounded stream of full pages must stop at the iteration cap rather
// than loop forever.
func TestRunIterationCap(t *testing.T) {
	store := newMockStore()
	pages := make([]int, 100)
	for i := range pages {
		pages[i] = 500
	}
	client := &mockClient{pages: pages}

	cfg := &config.SyncConfig{PageSize: 500, MaxIterations: 3, ConfirmChunkSize: 100}
	runner := NewRunner(store, func(service *models.VendorService) (vendor.Client, error) {
		return client, nil
	}, cfg)

	run, err := runner.Run(context.Background(), testService())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if run.Batches != 3 || client.fetchCalls != 3 {
		t.Errorf("expected 3 iterations, got batches=%d fetches=%d", run.Batches, client.fetchCalls)
	}
}

// A mid-run fetch failure keeps the committed batches and closes the run
// with the error; nothing is rolled back.
func TestRunKeepsPartialProgress(t *testing.T) {
	store := newMockStore()
	client := &mockClient{pages: []int{500, 500}, fetchErrOn: 2}
	runner := newTestRunner(store, client)

	run, err := runner.Run(context.Background(), testService())
	if err == nil {
		t.Fatal("expected run error")
	}
	if run.Status != models.SyncRunError {
		t.Errorf("expected error status, got %s", run.Status)
	}
	if run.RecordsSynced != 500 || run.Batches != 1 {
		t.Errorf("expected first batch kept, got records=%d batches=%d", run.RecordsSynced, run.Batches)
	}
	if len(store.upserted) != 500 {
		t.Errorf("committed batch must survive the failure, got %d records", len(store.upserted))
	}
	if store.finishErr == "" {
		t.Error("expected the run row to carry the error")
	}
}

func TestLinkOrphans(t *testing.T) {
	store := newMockStore()
	store.resolved = 7
	runner := newTestRunner(store, &mockClient{})

	linked, err := runner.LinkOrphans(context.Background(), "svc-1")
	if err != nil {
		t.Fatalf("link orphans failed: %v", err)
	}
	if linked != 7 {
		t.Errorf("expected 7 linked, got %d", linked)
	}
}

// An admin-triggered run must survive its caller: the handler responds 202
// and its request context is canceled immediately, but the run keeps fetching
// until the queue is drained.
func TestRunNowOutlivesCaller(t *testing.T) {
	store := newMockStore()
	client := &mockClient{pages: []int{500, 500, 137}}
	scheduler := NewScheduler(newTestRunner(store, client), time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	if !scheduler.RunNow(ctx, testService()) {
		t.Fatal("RunNow must accept the trigger")
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		store.mu.Lock()
		status, runErr := store.finishStatus, store.finishErr
		store.mu.Unlock()
		if status != "" {
			if status != models.SyncRunSuccess {
				t.Fatalf("expected successful run, got %s (%s)", status, runErr)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("run did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.upserted) != 1137 {
		t.Errorf("expected the full queue drained, got %d records", len(store.upserted))
	}
}

// Two triggers for the same service must not overlap; the second is refused
// while the first still holds the slot.
func TestRunNowSingleFlight(t *testing.T) {
	store := newMockStore()
	scheduler := NewScheduler(newTestRunner(store, &mockClient{}), time.Minute)

	service := testService()
	if !scheduler.tryAcquire(service.ID) {
		t.Fatal("first acquire must succeed")
	}
	if scheduler.RunNow(context.Background(), service) {
		t.Error("RunNow must refuse while a run is in flight")
	}
	scheduler.release(service.ID)
	if !scheduler.RunNow(context.Background(), service) {
		t.Error("RunNow must succeed once the slot is free")
	}
}
