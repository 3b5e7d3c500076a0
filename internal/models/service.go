// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"fmt"
	"time"
)

// Dialect identifies the wire protocol a vendor service speaks.
type Dialect string

const (
	// DialectSOAP is the vendor's SOAP/XML RPC dialect. Credentials travel
	// inside the envelope body of every call.
	DialectSOAP Dialect = "soap"

	// DialectREST is the vendor's bespoke REST dialect. Credentials travel
	// as query parameters or headers depending on service configuration.
	DialectREST Dialect = "rest"
)

// ResourceKind identifies which upstream queue a vendor service drains and
// which client-facing API surface its records are exposed on.
type ResourceKind string

const (
	// KindProcesses covers tracked cases and their movement records.
	KindProcesses ResourceKind = "processes"

	// KindDistributions covers new-case distribution records discovered for
	// monitored names/terms.
	KindDistributions ResourceKind = "distributions"

	// KindPublications covers official-gazette publication records matched
	// against monitored terms.
	KindPublications ResourceKind = "publications"
)

// AllResourceKinds returns every supported resource kind.
func AllResourceKinds() []ResourceKind {
	return []ResourceKind{KindProcesses, KindDistributions, KindPublications}
}

// IsValidResourceKind reports whether kind is one of the supported kinds.
func IsValidResourceKind(kind ResourceKind) bool {
	switch kind {
	case KindProcesses, KindDistributions, KindPublications:
		return true
	}
	return false
}

// VendorService is the configuration for one upstream vendor endpoint.
// Created by administrators, read by every core component. Credentials and
// URL must be non-empty before any call is attempted (enforced by Validate).
type VendorService struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Kind ResourceKind `json:"kind"`

	// Wire configuration
	Dialect Dialect `json:"dialect"`
	BaseURL string  `json:"base_url"`

	// Credential pair sent on every vendor call.
	RelationalName string `json:"relational_name"`
	Token          string `json:"-"` // never exposed in JSON

	// CredentialsInHeaders controls credential placement for the REST
	// dialect: true sends them as headers, false as query parameters.
	// Ignored for SOAP, where credentials always travel in the envelope.
	CredentialsInHeaders bool `json:"credentials_in_headers"`

	Active     bool       `json:"active"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Validate checks the invariants a service must satisfy before any vendor
// call may be attempted.
func (s *VendorService) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("vendor service %s: base URL is empty", s.ID)
	}
	if s.RelationalName == "" || s.Token == "" {
		return fmt.Errorf("vendor service %s: credential pair is incomplete", s.ID)
	}
	if !IsValidResourceKind(s.Kind) {
		return fmt.Errorf("vendor service %s: unknown resource kind %q", s.ID, s.Kind)
	}
	if s.Dialect != DialectSOAP && s.Dialect != DialectREST {
		return fmt.Errorf("vendor service %s: unknown dialect %q", s.ID, s.Dialect)
	}
	return nil
}
