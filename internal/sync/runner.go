// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package sync drains vendor queues into the hub's record store. Each run
// loops fetch → persist → confirm against one vendor service: records are
// confirmed upstream only after they are durably stored locally, in the same
// discipline the hub demands from its own clients.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tramitahub/tramita/internal/config"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/metrics"
	"github.com/tramitahub/tramita/internal/models"
	"github.com/tramitahub/tramita/internal/vendor"
)

// Store is the persistence surface a sync run drives. *database.DB
// satisfies this.
type Store interface {
	UpsertVendorRecords(ctx context.Context, records []models.VendorRecord) error
	ResolveRecordResource(ctx context.Context, serviceID string) (int64, error)
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinishSyncRun(ctx context.Context, id string, status models.SyncRunStatus, recordsSynced, batches int, runErr string) error
	UpdateServiceLastSync(ctx context.Context, id string, at time.Time) error
	ListActiveVendorServices(ctx context.Context, kind models.ResourceKind) ([]models.VendorService, error)
}

// ClientFactory builds the protocol client for a vendor service.
type ClientFactory func(service *models.VendorService) (vendor.Client, error)

// Runner executes sync runs.
type Runner struct {
	store   Store
	clients ClientFactory
	cfg     *config.SyncConfig
}

// NewRunner creates a runner.
func NewRunner(store Store, clients ClientFactory, cfg *config.SyncConfig) *Runner {
	return &Runner{store: store, clients: clients, cfg: cfg}
}

// Run drains one vendor service's queue and records the run. Each iteration
// fetches up to the page size, persists the batch, then confirms receipt
// upstream in bounded chunks. The loop stops on an empty or short page, at
// the iteration cap, or on context cancellation between iterations. Partial
// progress is never rolled back: a failed run keeps its committed batches
// and only the run row carries the error.
func (r *Runner) Run(ctx context.Context, service *models.VendorService) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:        uuid.New().String(),
		ServiceID: service.ID,
		Kind:      service.Kind,
		Status:    models.SyncRunInProgress,
		StartedAt: time.Now(),
	}
	if err := r.store.CreateSyncRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to open sync run: %w", err)
	}

	client, err := r.clients(service)
	if err != nil {
		return r.finish(ctx, run, fmt.Errorf("failed to build vendor client: %w", err))
	}

	logging.Info().
		Str("service_id", service.ID).
		Str("kind", string(service.Kind)).
		Msg("Sync run started")

	for iteration := 0; iteration < r.cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			return r.finish(ctx, run, ctx.Err())
		}

		records, err := client.FetchNew(ctx, r.cfg.PageSize)
		if err != nil {
			return r.finish(ctx, run, fmt.Errorf("fetch failed: %w", err))
		}
		if len(records) == 0 {
			break
		}

		if err := r.store.UpsertVendorRecords(ctx, records); err != nil {
			return r.finish(ctx, run, fmt.Errorf("persist failed: %w", err))
		}
		if _, err := r.store.ResolveRecordResource(ctx, service.ID); err != nil {
			return r.finish(ctx, run, fmt.Errorf("parent resolution failed: %w", err))
		}

		// Confirm only after the batch is durably stored, so a crash
		// here redelivers rather than loses. The upsert key makes
		// redelivery harmless.
		if err := r.confirmChunked(ctx, client, records); err != nil {
			return r.finish(ctx, run, fmt.Errorf("confirm failed: %w", err))
		}

		run.RecordsSynced += len(records)
		run.Batches++
		metrics.SyncRecordsFetched.WithLabelValues(service.ID).Add(float64(len(records)))

		if len(records) < r.cfg.PageSize {
			break
		}
	}

	if err := r.store.UpdateServiceLastSync(ctx, service.ID, time.Now()); err != nil {
		logging.Warn().Err(err).Str("service_id", service.ID).Msg("Failed to stamp last sync")
	}
	return r.finish(ctx, run, nil)
}

// confirmChunked acknowledges vendor ids in bounded chunks so one oversized
// confirm call cannot blow the vendor's request limits.
func (r *Runner) confirmChunked(ctx context.Context, client vendor.Client, records []models.VendorRecord) error {
	chunkSize := r.cfg.ConfirmChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}
	ids := make([]int64, len(records))
	for i := range records {
		ids[i] = records[i].VendorID
	}
	for start := 0; start < len(ids); start += chunkSize {
		end := start + chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := client.ConfirmReceipt(ctx, ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, run *models.SyncRun, runErr error) (*models.SyncRun, error) {
	status := models.SyncRunSuccess
	message := ""
	if runErr != nil {
		status = models.SyncRunError
		message = runErr.Error()
	}
	run.Status = status
	run.Error = message

	// The run row must close even when the run's own context died.
	finishCtx := ctx
	if finishCtx.Err() != nil {
		var cancel context.CancelFunc
		finishCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := r.store.FinishSyncRun(finishCtx, run.ID, status, run.RecordsSynced, run.Batches, message); err != nil {
		logging.Error().Err(err).Str("run_id", run.ID).Msg("Failed to close sync run")
	}

	metrics.SyncRunsTotal.WithLabelValues(run.ServiceID, string(status)).Inc()
	event := logging.Info()
	if runErr != nil {
		event = logging.Error().Err(runErr)
	}
	event.
		Str("run_id", run.ID).
		Str("service_id", run.ServiceID).
		Int("records", run.RecordsSynced).
		Int("batches", run.Batches).
		Msg("Sync run finished")

	return run, runErr
}

// LinkOrphans attaches orphan records to parents that have appeared since
// the records were inserted. Safe to run at any time; one pass is enough for
// any parent that already exists.
func (r *Runner) LinkOrphans(ctx context.Context, serviceID string) (int64, error) {
	linked, err := r.store.ResolveRecordResource(ctx, serviceID)
	if err != nil {
		return 0, fmt.Errorf("orphan linking failed: %w", err)
	}
	if linked > 0 {
		metrics.SyncOrphansLinked.Add(float64(linked))
		logging.Info().
			Str("service_id", serviceID).
			Int64("linked", linked).
			Msg("Orphan records linked to parents")
	}
	return linked, nil
}
