// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tramitahub/tramita/internal/auth"
	"github.com/tramitahub/tramita/internal/models"
)

type identityContextKey struct{}

// GetIdentity returns the authenticated identity stored by the gateway
// middleware, or nil when the request never passed through it.
func GetIdentity(r *http.Request) *auth.Identity {
	if id, ok := r.Context().Value(identityContextKey{}).(*auth.Identity); ok {
		return id
	}
	return nil
}

// authenticate runs the inbound gateway for one resource kind. kind is empty
// for endpoints not tied to a single kind. Allowed requests get their
// identity stored in the request context and a request metric recorded once
// the handler finishes; denied requests are metered too, with the denial
// status.
func (h *Handler) authenticate(kind models.ResourceKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &auth.Request{
				Credential: bearerCredential(r),
				IP:         clientIP(r),
				Endpoint:   r.URL.Path,
				Method:     r.Method,
				UserAgent:  r.UserAgent(),
				Kind:       kind,
			}

			start := time.Now()
			identity, denial := h.gateway.Authenticate(r.Context(), req)
			if denial != nil {
				respondDenial(w, &denialResponse{
					Status:    denial.Status,
					Code:      denialCode(denial.Reason),
					Message:   denial.Message,
					RateLimit: denial.RateLimit,
				})
				// Denied requests are processed requests too; the row keeps
				// whatever attribution the gateway could resolve.
				h.audit.RequestMetric(models.RequestMetric{
					TokenID:    denial.TokenID,
					ClientID:   denial.ClientID,
					Endpoint:   r.URL.Path,
					Method:     r.Method,
					Status:     denial.Status,
					DurationMS: time.Since(start).Milliseconds(),
					IPAddress:  req.IP,
					UserAgent:  req.UserAgent,
				})
				return
			}

			if !identity.Platform {
				setRateLimitHeaders(w, &identity.RateLimit)
			}

			wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(wrapper, r.WithContext(ctx))

			// Platform traffic is not quota-tracked.
			if identity.Token != nil {
				h.audit.RequestMetric(models.RequestMetric{
					TokenID:    identity.Token.ID,
					ClientID:   identity.ClientID(),
					Endpoint:   r.URL.Path,
					Method:     r.Method,
					Status:     wrapper.statusCode,
					DurationMS: time.Since(start).Milliseconds(),
					IPAddress:  req.IP,
					UserAgent:  req.UserAgent,
				})
			}
		})
	}
}

// requirePlatform gates the administrative surface: only platform JWT
// identities pass. Client tokens that authenticate fine are still refused.
func (h *Handler) requirePlatform(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil || !identity.Platform {
			respondError(w, http.StatusForbidden, models.ErrCodeAuthDenied,
				"administrative access requires a platform token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code for
// the request metric row.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// bearerCredential extracts the bearer value from the Authorization header.
// A bare value without the scheme is accepted for integrator convenience.
func bearerCredential(r *http.Request) string {
	value := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(value) > 7 && strings.EqualFold(value[:7], "Bearer ") {
		return strings.TrimSpace(value[7:])
	}
	return value
}

// clientIP returns the caller address. chi's RealIP middleware has already
// folded X-Forwarded-For / X-Real-IP into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// denialCode maps gateway reasons onto the machine-readable error codes.
func denialCode(reason models.SecurityEventReason) string {
	if reason == models.ReasonRateLimit {
		return models.ErrCodeRateLimit
	}
	return models.ErrCodeAuthDenied
}
