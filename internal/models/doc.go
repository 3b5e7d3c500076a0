// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package models provides the store-resident data structures shared across the
// Tramita application: vendor services, monitored resources, client tokens,
// delivery cursors, vendor records and the append-only log entities.
package models
