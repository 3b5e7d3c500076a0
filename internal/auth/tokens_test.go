// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestCreateLookupRoundTrip(t *testing.T) {
	store := newMockGatewayStore()
	manager := NewTokenManager(store)

	expires := 30
	created, plaintext, err := manager.Create(context.Background(), "client-a", &CreateTokenRequest{
		Name:          "integration",
		ExpiresInDays: &expires,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if !strings.HasPrefix(plaintext, tokenPrefix) {
		t.Errorf("plaintext missing prefix: %s", plaintext)
	}
	if created.TokenPrefix != plaintext[:len(tokenPrefix)+tokenPrefixDisplayLength] {
		t.Errorf("stored prefix %q does not match plaintext head", created.TokenPrefix)
	}
	if created.TokenHash == plaintext || created.TokenHash == "" {
		t.Error("token hash must be stored, never the plaintext")
	}
	if created.ExpiresAt == nil || time.Until(*created.ExpiresAt) < 29*24*time.Hour {
		t.Errorf("expected ~30 day expiry, got %v", created.ExpiresAt)
	}

	found, err := manager.Lookup(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found == nil {
		t.Fatal("lookup returned nil for a freshly minted token")
	}
	if found.ID != created.ID || found.ClientID != "client-a" {
		t.Errorf("lookup returned wrong token: %+v", found)
	}
}

// Every lookup failure mode collapses to (nil, nil) so callers cannot tell
// a malformed token from an unknown or mismatched one.
func TestLookupFailureModes(t *testing.T) {
	store := newMockGatewayStore()
	manager := NewTokenManager(store)

	_, plaintext, err := manager.Create(context.Background(), "client-a", &CreateTokenRequest{Name: "victim"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"wrong prefix", "sk_live_" + plaintext[len(tokenPrefix):]},
		{"no separator", tokenPrefix + "abcdef"},
		{"bad base64 id", tokenPrefix + "!!!!_secret"},
		{"unknown id", tokenPrefix + "bm8tc3VjaC1pZA_secret"},
		{"wrong secret", plaintext[:len(plaintext)-4] + "XXXX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.Lookup(context.Background(), tt.plaintext)
			if err != nil {
				t.Fatalf("lookup returned error: %v", err)
			}
			if token != nil {
				t.Errorf("lookup accepted %q", tt.plaintext)
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	store := newMockGatewayStore()
	manager := NewTokenManager(store)

	created, plaintext, err := manager.Create(context.Background(), "client-a", &CreateTokenRequest{Name: "doomed"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := manager.Revoke(context.Background(), created.ID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	// Lookup still resolves; lifecycle enforcement is the gateway's job.
	found, err := manager.Lookup(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if found == nil {
		t.Fatal("lookup must resolve revoked tokens for the gateway to classify")
	}
	if !found.IsRevoked() {
		t.Error("expected token to be revoked")
	}
}
