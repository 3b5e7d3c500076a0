// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package models

import (
	"net/netip"
	"strings"
	"time"
)

// IPRuleAction says what a matching rule does to the request.
type IPRuleAction string

const (
	IPRuleBlock IPRuleAction = "block"
	IPRuleAllow IPRuleAction = "allow"
)

// IPRule is one entry of the gateway's IP rule set. Rules may be global
// (ClientID empty) or scoped to one client; the value may be a single
// address, a CIDR prefix, or a coarse class-style prefix such as
// "198.51.100." (class C), "198.51." (class B) or "198." (class A).
// Expired rules are ignored.
type IPRule struct {
	ID       string       `json:"id"`
	ClientID string       `json:"client_id,omitempty"` // empty = global
	Value    string       `json:"value"`
	Action   IPRuleAction `json:"action"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the rule is past its expiry.
func (r *IPRule) IsExpired() bool {
	return r.ExpiresAt != nil && time.Now().After(*r.ExpiresAt)
}

// Matches reports whether ip falls under this rule. Three match styles are
// supported: exact equality, CIDR prefix when the value contains a slash,
// and textual class-style prefix when the value ends with a dot.
func (r *IPRule) Matches(ip string) bool {
	value := strings.TrimSpace(r.Value)
	if value == "" {
		return false
	}
	if value == ip {
		return true
	}
	if strings.Contains(value, "/") {
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return false
		}
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return false
		}
		return prefix.Contains(addr)
	}
	if strings.HasSuffix(value, ".") {
		return strings.HasPrefix(ip, value)
	}
	return false
}
