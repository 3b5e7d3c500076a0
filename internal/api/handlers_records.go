// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tramitahub/tramita/internal/delivery"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
)

// RecordsGet serves the client-facing read surface for one resource kind.
//
// Method: GET
// Paths: /api-processes, /api-distributions, /api-publications
//
// Without parameters it hands out the next delivery batch. With ?id=<uuid>
// it returns that single record (entitlement checked, delivery cursor
// untouched). Batches are narrowed by ?case_number, ?court, ?category,
// ?since and ?until, and windowed by ?offset. A blocked batch (previous
// batch unconfirmed) is a 200 with an empty data list and
// batch.pending_confirmation set, never an error.
func (h *Handler) RecordsGet(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil || identity.Client == nil {
			respondError(w, http.StatusUnauthorized, models.ErrCodeAuthDenied,
				"client token required", nil)
			return
		}

		if id := r.URL.Query().Get("id"); id != "" {
			if _, err := uuid.Parse(id); err != nil {
				respondError(w, http.StatusBadRequest, models.ErrCodeValidation,
					"id must be a valid UUID",
					map[string]interface{}{"id": "must be a valid UUID"})
				return
			}
			h.singleRecord(w, r, identity.Client.ID, id)
			return
		}

		offset, filter, ok := h.recordQuery(w, r)
		if !ok {
			return
		}

		limit := h.pageLimit(r)
		batch, err := h.delivery.NextBatch(r.Context(), identity.Client.ID, kind, limit, offset, filter)
		if err != nil {
			logging.Error().Err(err).
				Str("client_id", identity.Client.ID).
				Str("kind", string(kind)).
				Msg("Batch delivery failed")
			respondError(w, http.StatusInternalServerError, models.ErrCodeInternal,
				"failed to produce delivery batch", nil)
			return
		}

		records := batch.Records
		if records == nil {
			records = []models.VendorRecord{}
		}

		respondJSON(w, http.StatusOK, &models.APIResponse{
			Data: records,
			Pagination: &models.Pagination{
				Total:   batch.TotalDelivered,
				Limit:   limit,
				Offset:  offset,
				HasMore: len(records) == limit,
			},
			Batch: &models.BatchInfo{
				PendingConfirmation: batch.PendingConfirmation || len(records) > 0,
				RecordsInBatch:      len(records),
				TotalDelivered:      batch.TotalDelivered,
			},
			RateLimit: &identity.RateLimit,
		})
	}
}

// RecordsPost handles the write side of the delivery protocol. The only
// supported action is confirm, acknowledging receipt of the outstanding
// batch.
func (h *Handler) RecordsPost(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil || identity.Client == nil {
			respondError(w, http.StatusUnauthorized, models.ErrCodeAuthDenied,
				"client token required", nil)
			return
		}

		action := r.URL.Query().Get("action")
		if action != "confirm" {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation,
				"unsupported action; expected action=confirm", nil)
			return
		}

		confirmed, err := h.delivery.Confirm(r.Context(), identity.Client.ID, kind)
		if err != nil {
			if errors.Is(err, delivery.ErrNothingPending) {
				respondError(w, http.StatusConflict, models.ErrCodeProtocolViolation,
					"no batch is pending confirmation", nil)
				return
			}
			logging.Error().Err(err).
				Str("client_id", identity.Client.ID).
				Str("kind", string(kind)).
				Msg("Batch confirmation failed")
			respondError(w, http.StatusInternalServerError, models.ErrCodeInternal,
				"failed to confirm batch", nil)
			return
		}

		respondJSON(w, http.StatusOK, &models.APIResponse{
			Data: map[string]interface{}{
				"confirmed_records": confirmed,
			},
			RateLimit: &identity.RateLimit,
		})
	}
}

func (h *Handler) singleRecord(w http.ResponseWriter, r *http.Request, clientID, recordID string) {
	record, err := h.delivery.GetRecord(r.Context(), clientID, recordID)
	if err != nil {
		if errors.Is(err, delivery.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, models.ErrCodeNotFound,
				"record not found", nil)
			return
		}
		logging.Error().Err(err).Str("record_id", recordID).Msg("Record lookup failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal,
			"failed to look up record", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{Data: record})
}

// recordQuery parses the batch window and filter parameters. Malformed
// values are a 400 with the offending field named; only limit is coerced,
// elsewhere in pageLimit. Responds and returns ok=false on bad input.
func (h *Handler) recordQuery(w http.ResponseWriter, r *http.Request) (int, models.RecordFilter, bool) {
	query := r.URL.Query()

	var offset int
	if raw := query.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation,
				"offset must be a non-negative integer",
				map[string]interface{}{"offset": "must be a non-negative integer"})
			return 0, models.RecordFilter{}, false
		}
		offset = parsed
	}

	filter := models.RecordFilter{
		CaseNumber: query.Get("case_number"),
		Court:      query.Get("court"),
		Category:   query.Get("category"),
	}
	for _, field := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		raw := query.Get(field.name)
		if raw == "" {
			continue
		}
		parsed, err := parseFilterTime(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, models.ErrCodeValidation,
				field.name+" must be an RFC 3339 timestamp or a YYYY-MM-DD date",
				map[string]interface{}{field.name: "must be an RFC 3339 timestamp or a YYYY-MM-DD date"})
			return 0, models.RecordFilter{}, false
		}
		*field.dst = &parsed
	}

	return offset, filter, true
}

// parseFilterTime accepts a full RFC 3339 timestamp or a bare date.
func parseFilterTime(raw string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", raw)
}

// pageLimit parses ?limit= against the configured defaults and caps.
func (h *Handler) pageLimit(r *http.Request) int {
	limit := h.config.API.DefaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > h.config.API.MaxPageSize {
		limit = h.config.API.MaxPageSize
	}
	return limit
}
