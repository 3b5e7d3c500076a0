// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package auth implements the inbound gateway for the client-facing API:
// opaque per-client API tokens (minted, hashed, validated here), platform
// JWT identities for administrative callers, IP rule evaluation, the exact
// sliding-window rate limit, and per-kind service entitlement.
//
// The gateway's checks run in a fixed order and any failure is terminal for
// the request; every deny is recorded as a security event.
package auth
