// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package models provides data structures for the Tramita application.
// This file contains models for client systems and their API tokens.
package models

import (
	"time"
)

// Client represents a downstream client system entitled to a subset of the
// hub's data via its own API tokens.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientToken is an opaque per-client API token for the client-facing API.
//
// Security:
//   - Token hash is stored, never the plaintext token
//   - Token prefix is stored for identification (first chars after the fixed prefix)
//   - Tokens can be blocked with a human-readable reason, or expire
//   - Usage is recorded in the security event and request metric logs
type ClientToken struct {
	// Identification
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Name     string `json:"name"`

	// Token (prefix only stored, hash for validation)
	TokenPrefix string `json:"token_prefix"`
	TokenHash   string `json:"-"` // bcrypt hash, never exposed in JSON

	// Lifecycle
	Active      bool       `json:"active"`
	Blocked     bool       `json:"blocked"`
	BlockReason string     `json:"block_reason,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	// Per-token overrides. RateLimitOverride replaces the system default
	// hourly request limit when set; IPAllowlist restricts callers to the
	// listed addresses when non-empty.
	RateLimitOverride *int     `json:"rate_limit_override,omitempty"`
	IPAllowlist       []string `json:"ip_allowlist,omitempty"`

	// Usage tracking
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP string     `json:"last_used_ip,omitempty"`
	UseCount   int64      `json:"use_count"`

	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// IsExpired checks if the token has expired.
func (t *ClientToken) IsExpired() bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*t.ExpiresAt)
}

// IsRevoked checks if the token has been revoked.
func (t *ClientToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsIPAllowed reports whether ip is permitted by the token's allowlist.
// An empty allowlist permits every address.
func (t *ClientToken) IsIPAllowed(ip string) bool {
	if len(t.IPAllowlist) == 0 {
		return true
	}
	for _, allowed := range t.IPAllowlist {
		if allowed == ip {
			return true
		}
	}
	return false
}

// ClientService is the entitlement join between a client system and a vendor
// service. A client may only exercise a resource kind when it holds an active
// entitlement to at least one active service of that kind.
type ClientService struct {
	ClientID  string    `json:"client_id"`
	ServiceID string    `json:"service_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
