// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package api provides the HTTP surface of the hub.
//
// Two surfaces share one chi router:
//
//   - Client-facing: /api-processes, /api-distributions, /api-publications.
//     Authenticated with opaque client tokens through the inbound gateway,
//     serving vendor records under the at-most-one-outstanding-batch
//     delivery protocol.
//
//   - Administrative: /api/v1/admin/*. Authenticated with platform JWTs
//     only; manages clients, tokens, vendor services, monitored resources,
//     IP rules, and exposes the call/sync/security logs.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor
//   - handlers_records.go: client-facing record delivery endpoints
//   - handlers_admin.go: administrative endpoints
//   - handlers_health.go: health and readiness
package api
