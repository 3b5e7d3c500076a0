// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package registrar manages the shared vendor registrations behind the hub's
// monitored resources. Many clients may care about the same case number or
// term, but the vendor is told about it exactly once: registration happens on
// the first interested client, removal on the last one leaving.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tramitahub/tramita/internal/database"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
	"github.com/tramitahub/tramita/internal/vendor"
)

// ErrResourceNotFound is returned when a release names a resource the hub
// does not track.
var ErrResourceNotFound = errors.New("monitored resource not found")

// ErrNotLinked is returned when a client releases a resource it never
// registered.
var ErrNotLinked = errors.New("client is not linked to this resource")

// Store is the persistence surface the registrar drives. *database.DB
// satisfies this.
type Store interface {
	GetVendorService(ctx context.Context, id string) (*models.VendorService, error)
	CreateResource(ctx context.Context, resource *models.MonitoredResource) error
	GetResource(ctx context.Context, id string) (*models.MonitoredResource, error)
	GetResourceByNaturalKey(ctx context.Context, serviceID, naturalKey string) (*models.MonitoredResource, error)
	SetResourceVendorCode(ctx context.Context, id, vendorCode string) error
	ReactivateResource(ctx context.Context, id string) error
	MarkResourceRemoved(ctx context.Context, id string) error
	CreateClientLink(ctx context.Context, clientID, resourceID string) error
	DeleteClientLink(ctx context.Context, clientID, resourceID string) error
	CountClientLinks(ctx context.Context, resourceID string) (int, error)
}

// ClientFactory builds the protocol client for a vendor service. Production
// wires vendor.New; tests substitute fakes.
type ClientFactory func(service *models.VendorService) (vendor.Client, error)

// Registration describes what a client wants tracked.
type Registration struct {
	CaseNumber string
	Term       string
	TermType   models.TermType
}

// Registrar serializes registration decisions per process. The refcount
// question "did the last client just leave" must not race with a concurrent
// register of the same resource, so both entry points hold one mutex.
type Registrar struct {
	mu      sync.Mutex
	store   Store
	clients ClientFactory
}

// New creates a registrar.
func New(store Store, clients ClientFactory) *Registrar {
	return &Registrar{store: store, clients: clients}
}

// RegisterForClient records a client's interest in a resource, creating the
// local row and the vendor-side registration when this is the first client.
// Repeated registration of the same natural key is idempotent: one local
// row, one link per client, at most one vendor call.
func (r *Registrar) RegisterForClient(ctx context.Context, clientID string, service *models.VendorService, reg Registration) (*models.MonitoredResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource := &models.MonitoredResource{
		ID:         uuid.New().String(),
		ServiceID:  service.ID,
		Kind:       service.Kind,
		CaseNumber: reg.CaseNumber,
		Term:       reg.Term,
		TermType:   reg.TermType,
		Status:     models.ResourceStatusPending,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	naturalKey := resource.NaturalKey()

	existing, err := r.store.GetResourceByNaturalKey(ctx, service.ID, naturalKey)
	if err != nil {
		return nil, fmt.Errorf("resource lookup failed: %w", err)
	}

	switch {
	case existing == nil:
		if err := r.store.CreateResource(ctx, resource); err != nil {
			if !errors.Is(err, database.ErrConflict) {
				return nil, fmt.Errorf("failed to create resource: %w", err)
			}
			// Lost a race with a concurrent register of the same key;
			// fall back to the row that won.
			existing, err = r.store.GetResourceByNaturalKey(ctx, service.ID, naturalKey)
			if err != nil || existing == nil {
				return nil, fmt.Errorf("resource lookup after conflict failed: %w", err)
			}
			resource = existing
		}
	default:
		resource = existing
	}

	// The vendor hears about the resource only while it is not actively
	// registered: first registration, retry of a failed one, or revival
	// of a previously removed key.
	if resource.Status != models.ResourceStatusActive {
		if err := r.registerWithVendor(ctx, service, resource); err != nil {
			return nil, err
		}
	}

	if err := r.store.CreateClientLink(ctx, clientID, resource.ID); err != nil {
		return nil, fmt.Errorf("failed to link client: %w", err)
	}

	return r.store.GetResource(ctx, resource.ID)
}

// registerWithVendor performs the vendor call and persists the outcome. The
// vendor's duplicate response is undocumented, so an explicit duplicate
// error is treated as success: the resource is registered on their side,
// whichever call did it.
func (r *Registrar) registerWithVendor(ctx context.Context, service *models.VendorService, resource *models.MonitoredResource) error {
	client, err := r.clients(service)
	if err != nil {
		return fmt.Errorf("failed to build vendor client: %w", err)
	}

	vendorCode, err := client.RegisterResource(ctx, resource)
	switch {
	case err == nil:
		if err := r.store.SetResourceVendorCode(ctx, resource.ID, vendorCode); err != nil {
			return fmt.Errorf("failed to store vendor code: %w", err)
		}
	case vendor.IsDuplicate(err):
		logging.Info().
			Str("resource_id", resource.ID).
			Str("natural_key", resource.NaturalKey()).
			Msg("Vendor reports resource already registered, treating as success")
		if err := r.store.ReactivateResource(ctx, resource.ID); err != nil {
			return fmt.Errorf("failed to activate resource: %w", err)
		}
	default:
		return fmt.Errorf("vendor registration failed: %w", err)
	}

	resource.Status = models.ResourceStatusActive
	return nil
}

// ReleaseForClient removes a client's interest in a resource. The vendor is
// told to stop tracking it only when the departing client was the last one:
// link delete first, then the remaining-count decides.
func (r *Registrar) ReleaseForClient(ctx context.Context, clientID, resourceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resource, err := r.store.GetResource(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("resource lookup failed: %w", err)
	}
	if resource == nil {
		return ErrResourceNotFound
	}

	if err := r.store.DeleteClientLink(ctx, clientID, resourceID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotLinked
		}
		return fmt.Errorf("failed to unlink client: %w", err)
	}

	remaining, err := r.store.CountClientLinks(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to count links: %w", err)
	}
	if remaining > 0 || resource.Status == models.ResourceStatusRemoved {
		return nil
	}

	return r.removeFromVendor(ctx, resource)
}

func (r *Registrar) removeFromVendor(ctx context.Context, resource *models.MonitoredResource) error {
	service, err := r.store.GetVendorService(ctx, resource.ServiceID)
	if err != nil {
		return fmt.Errorf("service lookup failed: %w", err)
	}
	if service == nil {
		return fmt.Errorf("vendor service %s not found", resource.ServiceID)
	}
	client, err := r.clients(service)
	if err != nil {
		return fmt.Errorf("failed to build vendor client: %w", err)
	}
	if err := client.RemoveResource(ctx, resource); err != nil {
		return fmt.Errorf("vendor removal failed: %w", err)
	}
	if err := r.store.MarkResourceRemoved(ctx, resource.ID); err != nil {
		return fmt.Errorf("failed to mark resource removed: %w", err)
	}
	logging.Info().
		Str("resource_id", resource.ID).
		Str("natural_key", resource.NaturalKey()).
		Msg("Resource removed from vendor after last client unlinked")
	return nil
}
