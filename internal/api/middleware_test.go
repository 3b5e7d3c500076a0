// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tramitahub/tramita/internal/audit"
	"github.com/tramitahub/tramita/internal/auth"
	"github.com/tramitahub/tramita/internal/models"
)

// mockAuthStore implements auth.TokenStore, auth.GatewayStore and audit.Store
// in memory for middleware tests. Mutex-guarded: metric writes land from a
// goroutine.
type mockAuthStore struct {
	mu      sync.Mutex
	tokens  map[string]*models.ClientToken
	metrics []models.RequestMetric
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{tokens: make(map[string]*models.ClientToken)}
}

func (m *mockAuthStore) CreateToken(ctx context.Context, token *models.ClientToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *token
	m.tokens[token.ID] = &copied
	return nil
}

func (m *mockAuthStore) GetTokenByID(ctx context.Context, id string) (*models.ClientToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, nil
}

func (m *mockAuthStore) ListTokensByClient(ctx context.Context, clientID string) ([]models.ClientToken, error) {
	return nil, nil
}

func (m *mockAuthStore) RevokeToken(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (m *mockAuthStore) TouchTokenUsage(ctx context.Context, id, ip string, at time.Time) error {
	return nil
}

func (m *mockAuthStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	return &models.Client{ID: id, Active: true}, nil
}

func (m *mockAuthStore) ListIPRulesForClient(ctx context.Context, clientID string) ([]models.IPRule, error) {
	return nil, nil
}

func (m *mockAuthStore) CountRequestsSince(ctx context.Context, tokenID string, since time.Time) (int, error) {
	return 0, nil
}

func (m *mockAuthStore) HasActiveServiceOfKind(ctx context.Context, clientID string, kind models.ResourceKind) (bool, error) {
	return true, nil
}

func (m *mockAuthStore) InsertSecurityEvent(ctx context.Context, event *models.SecurityEvent) error {
	return nil
}

func (m *mockAuthStore) InsertRequestMetric(ctx context.Context, metric *models.RequestMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, *metric)
	return nil
}

func (m *mockAuthStore) waitForMetric(t *testing.T) models.RequestMetric {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		m.mu.Lock()
		if len(m.metrics) > 0 {
			metric := m.metrics[0]
			m.mu.Unlock()
			return metric
		}
		m.mu.Unlock()
		select {
		case <-deadline:
			t.Fatal("no request metric recorded")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBearerCredential(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard scheme", "Bearer trm_tok_abc_def", "trm_tok_abc_def"},
		{"lowercase scheme", "bearer trm_tok_abc_def", "trm_tok_abc_def"},
		{"bare token", "trm_tok_abc_def", "trm_tok_abc_def"},
		{"padded", "  Bearer   trm_tok_abc_def  ", "trm_tok_abc_def"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerCredential(r); got != tt.want {
				t.Errorf("bearerCredential(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:54321"
	if got := clientIP(r); got != "203.0.113.9" {
		t.Errorf("expected port stripped, got %q", got)
	}

	// RealIP middleware can leave a bare address in place.
	r.RemoteAddr = "203.0.113.9"
	if got := clientIP(r); got != "203.0.113.9" {
		t.Errorf("expected bare address passthrough, got %q", got)
	}
}

func TestDenialCode(t *testing.T) {
	if denialCode(models.ReasonRateLimit) != models.ErrCodeRateLimit {
		t.Error("rate_limit denials map to the rate limit code")
	}
	if denialCode(models.ReasonTokenBlocked) != models.ErrCodeAuthDenied {
		t.Error("every other denial maps to the auth code")
	}
}

// A denied request still produces a request metric row, attributed to the
// token when the credential resolved before the check failed.
func TestAuthenticateRecordsDeniedRequest(t *testing.T) {
	store := newMockAuthStore()
	tokens := auth.NewTokenManager(store)
	token, plaintext, err := tokens.Create(context.Background(), "client-a", &auth.CreateTokenRequest{Name: "test"})
	if err != nil {
		t.Fatalf("token creation failed: %v", err)
	}
	store.mu.Lock()
	store.tokens[token.ID].Blocked = true
	store.mu.Unlock()

	auditLog := audit.NewLogger(store)
	gateway := auth.NewGateway(tokens, store, auditLog, []byte("0123456789abcdef0123456789abcdef"), 1000)
	h := NewHandler(nil, nil, gateway, tokens, nil, nil, nil, auditLog)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("denied request must not reach the handler")
	})
	r := httptest.NewRequest(http.MethodGet, "/api-processes", nil)
	r.Header.Set("Authorization", "Bearer "+plaintext)
	r.RemoteAddr = "203.0.113.9:54321"
	w := httptest.NewRecorder()
	h.authenticate(models.KindProcesses)(inner).ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	metric := store.waitForMetric(t)
	if metric.Status != http.StatusForbidden {
		t.Errorf("expected denial status on the metric, got %d", metric.Status)
	}
	if metric.TokenID != token.ID || metric.ClientID != "client-a" {
		t.Errorf("expected token attribution, got token=%q client=%q", metric.TokenID, metric.ClientID)
	}
	if metric.Endpoint != "/api-processes" || metric.Method != http.MethodGet {
		t.Errorf("unexpected request facts: %+v", metric)
	}
}

// A request denied before any token resolved is still recorded, with no
// attribution.
func TestAuthenticateRecordsAnonymousDenial(t *testing.T) {
	store := newMockAuthStore()
	tokens := auth.NewTokenManager(store)
	auditLog := audit.NewLogger(store)
	gateway := auth.NewGateway(tokens, store, auditLog, []byte("0123456789abcdef0123456789abcdef"), 1000)
	h := NewHandler(nil, nil, gateway, tokens, nil, nil, nil, auditLog)

	r := httptest.NewRequest(http.MethodGet, "/api-processes", nil)
	w := httptest.NewRecorder()
	h.authenticate(models.KindProcesses)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	metric := store.waitForMetric(t)
	if metric.Status != http.StatusUnauthorized || metric.TokenID != "" {
		t.Errorf("expected unattributed 401 metric, got %+v", metric)
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		url  string
		def  int
		want int
	}{
		{"/logs", 100, 100},
		{"/logs?limit=25", 100, 25},
		{"/logs?limit=0", 100, 100},
		{"/logs?limit=-5", 100, 100},
		{"/logs?limit=junk", 100, 100},
		{"/logs?limit=99999", 100, 1000},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.url, nil)
		if got := queryLimit(r, tt.def); got != tt.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestRespondError(t *testing.T) {
	w := httptest.NewRecorder()
	respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "name is required",
		map[string]interface{}{"name": "name is required"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var body models.APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body.Code != models.ErrCodeValidation || body.Error != "name is required" {
		t.Errorf("unexpected envelope: %+v", body)
	}
	if body.Details["name"] != "name is required" {
		t.Errorf("details lost: %v", body.Details)
	}
}

func TestSetRateLimitHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	reset := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	setRateLimitHeaders(w, &models.RateLimitInfo{Limit: 1000, Remaining: 42, ResetAt: reset})

	if w.Header().Get("X-RateLimit-Limit") != "1000" {
		t.Errorf("wrong limit header: %q", w.Header().Get("X-RateLimit-Limit"))
	}
	if w.Header().Get("X-RateLimit-Remaining") != "42" {
		t.Errorf("wrong remaining header: %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	if w.Header().Get("X-RateLimit-Reset") != "1788004800" {
		t.Errorf("wrong reset header: %q", w.Header().Get("X-RateLimit-Reset"))
	}
}
