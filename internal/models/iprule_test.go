// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"testing"
	"time"
)

func TestIPRuleMatches(t *testing.T) {
	tests := []struct {
		name  string
		value string
		ip    string
		want  bool
	}{
		{"exact match", "203.0.113.9", "203.0.113.9", true},
		{"exact mismatch", "203.0.113.9", "203.0.113.10", false},
		{"cidr inside", "198.51.100.0/24", "198.51.100.77", true},
		{"cidr outside", "198.51.100.0/24", "198.51.101.77", false},
		{"cidr wide", "10.0.0.0/8", "10.200.3.4", true},
		{"class c prefix", "198.51.100.", "198.51.100.200", true},
		{"class b prefix", "198.51.", "198.51.7.7", true},
		{"class a prefix", "198.", "198.0.0.1", true},
		{"class prefix mismatch", "198.51.100.", "198.51.101.1", false},
		{"bare prefix without dot is not a prefix", "198.51.100", "198.51.100.1", false},
		{"malformed cidr", "not/a/cidr", "198.51.100.1", false},
		{"empty value", "", "198.51.100.1", false},
		{"ipv6 cidr", "2001:db8::/32", "2001:db8::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := IPRule{Value: tt.value, Action: IPRuleBlock}
			if got := rule.Matches(tt.ip); got != tt.want {
				t.Errorf("Matches(%q, %q) = %v, want %v", tt.value, tt.ip, got, tt.want)
			}
		})
	}
}

func TestIPRuleIsExpired(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Minute)

	if (&IPRule{}).IsExpired() {
		t.Error("rule without expiry never expires")
	}
	if (&IPRule{ExpiresAt: &future}).IsExpired() {
		t.Error("future expiry is not expired")
	}
	if !(&IPRule{ExpiresAt: &past}).IsExpired() {
		t.Error("past expiry is expired")
	}
}

func TestCursorState(t *testing.T) {
	var missing *DeliveryCursor
	if missing.State() != CursorAbsent {
		t.Error("nil cursor must be absent")
	}
	if (&DeliveryCursor{PendingConfirmation: true}).State() != CursorPending {
		t.Error("unacknowledged cursor must be pending")
	}
	if (&DeliveryCursor{}).State() != CursorConfirmed {
		t.Error("acknowledged cursor must be confirmed")
	}
}
