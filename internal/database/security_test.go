// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tramitahub/tramita/internal/models"
)

// The quota count covers served requests in the window, including ones that
// failed in the handler, but not rate-limited attempts: retrying over quota
// must not push the caller's own reset further out.
func TestCountRequestsSinceExcludesRateLimited(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	insert := func(tokenID string, status int, at time.Time) {
		t.Helper()
		err := db.InsertRequestMetric(ctx, &models.RequestMetric{
			ID:        uuid.New().String(),
			Timestamp: at,
			TokenID:   tokenID,
			ClientID:  "client-a",
			Endpoint:  "/api-processes",
			Method:    "GET",
			Status:    status,
			IPAddress: "203.0.113.9",
		})
		if err != nil {
			t.Fatalf("metric insert failed: %v", err)
		}
	}

	insert("tok-1", 200, now.Add(-10*time.Minute))
	insert("tok-1", 404, now.Add(-5*time.Minute))
	insert("tok-1", 429, now.Add(-time.Minute))
	insert("tok-1", 200, now.Add(-2*time.Hour)) // outside the window
	insert("tok-2", 200, now.Add(-time.Minute)) // another token

	count, err := db.CountRequestsSince(ctx, "tok-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 countable requests, got %d", count)
	}
}
