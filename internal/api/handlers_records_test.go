// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tramitahub/tramita/internal/auth"
	"github.com/tramitahub/tramita/internal/models"
)

func recordsRequest(target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	identity := &auth.Identity{Client: &models.Client{ID: "client-a", Active: true}}
	return r.WithContext(context.WithValue(r.Context(), identityContextKey{}, identity))
}

// Malformed query input is a 400 naming the offending field, never a 404 or
// a silent coercion.
func TestRecordsGetRejectsMalformedInput(t *testing.T) {
	h := &Handler{}

	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"malformed id", "/api-processes?id=not-a-uuid", "id"},
		{"truncated id", "/api-processes?id=123e4567-e89b", "id"},
		{"negative offset", "/api-processes?offset=-1", "offset"},
		{"junk offset", "/api-processes?offset=abc", "offset"},
		{"bad since date", "/api-processes?since=yesterday", "since"},
		{"bad until date", "/api-processes?until=31-12-2026", "until"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.RecordsGet(models.KindProcesses)(w, recordsRequest(tt.target))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var body models.APIErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not valid JSON: %v", err)
			}
			if body.Code != models.ErrCodeValidation {
				t.Errorf("expected validation code, got %q", body.Code)
			}
			if _, ok := body.Details[tt.field]; !ok {
				t.Errorf("expected details to name %q, got %v", tt.field, body.Details)
			}
		})
	}
}

func TestRecordQueryParsesFilters(t *testing.T) {
	h := &Handler{}
	w := httptest.NewRecorder()
	r := recordsRequest("/api-processes?offset=40&case_number=0001234-56.2026.8.26.0100&court=TJSP&category=sentence&since=2026-08-01&until=2026-08-29T23:59:59Z")

	offset, filter, ok := h.recordQuery(w, r)
	if !ok {
		t.Fatalf("expected valid query, got %s", w.Body.String())
	}
	if offset != 40 {
		t.Errorf("expected offset 40, got %d", offset)
	}
	if filter.CaseNumber != "0001234-56.2026.8.26.0100" || filter.Court != "TJSP" || filter.Category != "sentence" {
		t.Errorf("unexpected filter fields: %+v", filter)
	}
	if filter.Since == nil || filter.Since.Format("2006-01-02") != "2026-08-01" {
		t.Errorf("since not parsed: %v", filter.Since)
	}
	if filter.Until == nil || filter.Until.UTC().Hour() != 23 {
		t.Errorf("until not parsed: %v", filter.Until)
	}
}
