// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
)

// Scheduler sweeps the active vendor services on a fixed interval and gives
// each one to the runner. It implements suture.Service so the supervisor
// restarts it if it ever returns unexpectedly.
//
// Concurrent runs against one service are single-flighted: the runner has no
// internal lock, and two overlapping drains of the same vendor queue would
// double-fetch the unconfirmed window.
type Scheduler struct {
	runner   *Runner
	interval time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewScheduler creates the scheduler service.
func NewScheduler(runner *Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		inFlight: make(map[string]struct{}),
	}
}

// Serve implements suture.Service: tick, sweep, repeat until shutdown.
func (s *Scheduler) Serve(ctx context.Context) error {
	logging.Info().Dur("interval", s.interval).Msg("Sync scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string {
	return "sync-scheduler"
}

// sweep runs every active service once, skipping any still mid-run from a
// previous tick.
func (s *Scheduler) sweep(ctx context.Context) {
	services, err := s.runner.store.ListActiveVendorServices(ctx, "")
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list services for sync sweep")
		return
	}

	var wg sync.WaitGroup
	for i := range services {
		service := services[i]
		if !s.tryAcquire(service.ID) {
			logging.Debug().Str("service_id", service.ID).Msg("Previous sync still running, skipping")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.release(service.ID)
			s.runService(ctx, &service)
		}()
	}
	wg.Wait()
}

// RunNow triggers one immediate run for a service, used by the admin API.
// Returns false when a run is already in flight for it.
//
// The run outlives the caller: admin handlers respond 202 and return, which
// cancels the request context, so the run is detached from the caller's
// cancellation while keeping its values.
func (s *Scheduler) RunNow(ctx context.Context, service *models.VendorService) bool {
	if !s.tryAcquire(service.ID) {
		return false
	}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.release(service.ID)
		s.runService(runCtx, service)
	}()
	return true
}

func (s *Scheduler) runService(ctx context.Context, service *models.VendorService) {
	if _, err := s.runner.Run(ctx, service); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).
			Str("service_id", service.ID).
			Msg("Scheduled sync run failed")
	}
}

func (s *Scheduler) tryAcquire(serviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.inFlight[serviceID]; running {
		return false
	}
	s.inFlight[serviceID] = struct{}{}
	return true
}

func (s *Scheduler) release(serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, serviceID)
}
