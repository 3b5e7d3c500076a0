// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import "errors"

// Sentinel errors returned by store operations.
var (
	// ErrNotFound indicates the targeted row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness invariant would be violated.
	ErrConflict = errors.New("conflict")
)
