// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
)

// respondJSON writes any payload as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError writes the standard error envelope. details may be nil.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, &models.APIErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// respondDenial translates a gateway denial into the error envelope,
// carrying the structured rate-limit block when the deny was quota-based.
func respondDenial(w http.ResponseWriter, denial *denialResponse) {
	if denial.RateLimit != nil {
		setRateLimitHeaders(w, denial.RateLimit)
	}
	respondJSON(w, denial.Status, &models.APIErrorResponse{
		Error:     denial.Message,
		Code:      denial.Code,
		RateLimit: denial.RateLimit,
	})
}

// denialResponse is the wire form of an auth.Denial.
type denialResponse struct {
	Status    int
	Code      string
	Message   string
	RateLimit *models.RateLimitInfo
}

// setRateLimitHeaders mirrors the rate_limit body block in the conventional
// X-RateLimit-* headers so either surface works for integrators.
func setRateLimitHeaders(w http.ResponseWriter, rl *models.RateLimitInfo) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.Unix(), 10))
}

// decodeBody decodes a JSON request body into dst, bounding the read so a
// hostile client cannot stream an unbounded body.
func decodeBody(r *http.Request, dst interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst)
}
