// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tramitahub/tramita/internal/audit"
	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/metrics"
	"github.com/tramitahub/tramita/internal/models"
)

// rateLimitWindow is the exact sliding window the quota is counted over.
const rateLimitWindow = 60 * time.Minute

// GatewayStore defines the database operations the gateway needs beyond
// token lookup. *database.DB satisfies this.
type GatewayStore interface {
	GetClient(ctx context.Context, id string) (*models.Client, error)
	ListIPRulesForClient(ctx context.Context, clientID string) ([]models.IPRule, error)
	CountRequestsSince(ctx context.Context, tokenID string, since time.Time) (int, error)
	HasActiveServiceOfKind(ctx context.Context, clientID string, kind models.ResourceKind) (bool, error)
}

// Request is what the gateway evaluates: the bearer credential plus the
// request facts every security event records.
type Request struct {
	Credential string // bearer value, already stripped of the scheme
	IP         string
	Endpoint   string
	Method     string
	UserAgent  string

	// Kind is the resource kind the request wants to exercise; empty for
	// endpoints not tied to one kind.
	Kind models.ResourceKind
}

// Identity is the allow outcome.
type Identity struct {
	// Platform is set for administrative/internal callers holding a
	// platform JWT. Platform identities bypass token, IP, quota and
	// entitlement checks.
	Platform bool
	Subject  string

	Token  *models.ClientToken
	Client *models.Client

	// RateLimit mirrors the X-RateLimit-* response headers.
	RateLimit models.RateLimitInfo
}

// ClientID returns the owning client id, empty for platform identities.
func (id *Identity) ClientID() string {
	if id.Client != nil {
		return id.Client.ID
	}
	return ""
}

// Denial is the deny outcome: the machine-readable reason plus the HTTP
// status the API responds with.
type Denial struct {
	Reason  models.SecurityEventReason
	Status  int
	Message string

	// TokenID and ClientID identify the caller when the credential resolved
	// to a token before the check failed, so denied requests can still be
	// attributed in the request metrics.
	TokenID  string
	ClientID string

	// RateLimit is set for rate_limit denials so the response can carry
	// the reset timestamp.
	RateLimit *models.RateLimitInfo
}

// Gateway authenticates every client-facing request.
type Gateway struct {
	tokens           *TokenManager
	store            GatewayStore
	auditLog         *audit.Logger
	jwtSecret        []byte
	defaultRateLimit int
}

// NewGateway wires the gateway. defaultRateLimit is the hourly quota applied
// to tokens without an override.
func NewGateway(tokens *TokenManager, store GatewayStore, auditLog *audit.Logger, jwtSecret []byte, defaultRateLimit int) *Gateway {
	return &Gateway{
		tokens:           tokens,
		store:            store,
		auditLog:         auditLog,
		jwtSecret:        jwtSecret,
		defaultRateLimit: defaultRateLimit,
	}
}

// Authenticate runs the gateway's ordered checks. Any failure short-circuits
// to a Denial; the caller turns it into a 401/403/429 and must not retry.
// Every deny is recorded as a security event before returning.
func (g *Gateway) Authenticate(ctx context.Context, req *Request) (*Identity, *Denial) {
	// Step 1: the credential must be present. Missing and malformed are
	// deliberately the same generic reason so probes learn nothing.
	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		return nil, g.deny(req, nil, models.ReasonInvalidHeader, http.StatusUnauthorized,
			"missing or invalid authorization header", nil)
	}

	// Step 2: resolve the credential kind. Platform JWTs bypass the
	// remaining checks; they are an internal escape hatch, never handed
	// to client systems.
	if !IsAPIToken(credential) {
		subject, err := VerifyPlatformToken(g.jwtSecret, credential)
		if err != nil {
			return nil, g.deny(req, nil, models.ReasonInvalidHeader, http.StatusUnauthorized,
				"missing or invalid authorization header", nil)
		}
		return &Identity{Platform: true, Subject: subject}, nil
	}

	token, err := g.tokens.Lookup(ctx, credential)
	if err != nil {
		logging.Error().Err(err).Msg("Token lookup failed")
		return nil, g.deny(req, nil, models.ReasonInvalidHeader, http.StatusUnauthorized,
			"missing or invalid authorization header", nil)
	}
	if token == nil {
		return nil, g.deny(req, nil, models.ReasonInvalidHeader, http.StatusUnauthorized,
			"missing or invalid authorization header", nil)
	}

	// Step 3: token lifecycle, each failure logged under its own reason.
	switch {
	case token.IsRevoked() || !token.Active:
		return nil, g.deny(req, token, models.ReasonTokenInactive, http.StatusUnauthorized,
			"token is not active", nil)
	case token.Blocked:
		message := "token is blocked"
		if token.BlockReason != "" {
			message = "token is blocked: " + token.BlockReason
		}
		return nil, g.deny(req, token, models.ReasonTokenBlocked, http.StatusForbidden,
			message, nil)
	case token.IsExpired():
		return nil, g.deny(req, token, models.ReasonTokenExpired, http.StatusUnauthorized,
			"token has expired", nil)
	}

	// Step 4: IP rules, global plus client-scoped, expired rules already
	// filtered by the store.
	rules, err := g.store.ListIPRulesForClient(ctx, token.ClientID)
	if err != nil {
		logging.Error().Err(err).Msg("IP rule lookup failed")
		return nil, g.deny(req, token, models.ReasonIPBlocked, http.StatusForbidden,
			"request not permitted from this address", nil)
	}
	for i := range rules {
		rule := &rules[i]
		if rule.Action == models.IPRuleBlock && rule.Matches(req.IP) {
			return nil, g.deny(req, token, models.ReasonIPBlocked, http.StatusForbidden,
				"request not permitted from this address", nil)
		}
	}

	// Step 5: per-token allowlist.
	if !token.IsIPAllowed(req.IP) {
		return nil, g.deny(req, token, models.ReasonIPNotWhitelisted, http.StatusForbidden,
			"request not permitted from this address", nil)
	}

	// Step 6: exact sliding-window quota. A count query keeps the window
	// continuously sliding instead of bucketed.
	limit := g.defaultRateLimit
	if token.RateLimitOverride != nil {
		limit = *token.RateLimitOverride
	}
	now := time.Now()
	used, err := g.store.CountRequestsSince(ctx, token.ID, now.Add(-rateLimitWindow))
	if err != nil {
		logging.Error().Err(err).Str("token_id", token.ID).Msg("Rate limit count failed")
		return nil, g.deny(req, token, models.ReasonRateLimit, http.StatusTooManyRequests,
			"rate limit exceeded", &models.RateLimitInfo{
				Limit: limit, Remaining: 0, ResetAt: now.Add(rateLimitWindow),
			})
	}
	if used >= limit {
		return nil, g.deny(req, token, models.ReasonRateLimit, http.StatusTooManyRequests,
			"rate limit exceeded", &models.RateLimitInfo{
				Limit: limit, Remaining: 0, ResetAt: now.Add(rateLimitWindow),
			})
	}

	// Step 7: per-kind entitlement.
	if req.Kind != "" {
		entitled, err := g.store.HasActiveServiceOfKind(ctx, token.ClientID, req.Kind)
		if err != nil {
			logging.Error().Err(err).Str("client_id", token.ClientID).Msg("Entitlement lookup failed")
			return nil, g.deny(req, token, models.ReasonServiceDenied, http.StatusForbidden,
				"no active service for this resource kind", nil)
		}
		if !entitled {
			return nil, g.deny(req, token, models.ReasonServiceDenied, http.StatusForbidden,
				"no active service for this resource kind", nil)
		}
	}

	client, err := g.store.GetClient(ctx, token.ClientID)
	if err != nil {
		logging.Error().Err(err).Str("client_id", token.ClientID).Msg("Client lookup failed")
	}

	// Step 8: non-blocking last-used touch plus remaining quota for the
	// response headers.
	go func(tokenID, ip string) {
		touchCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.tokens.store.TouchTokenUsage(touchCtx, tokenID, ip, now); err != nil {
			logging.Warn().Err(err).Str("token_id", tokenID).Msg("Failed to touch token usage")
		}
	}(token.ID, req.IP)

	remaining := limit - used - 1
	if remaining < 0 {
		remaining = 0
	}
	metrics.RateLimitRemaining.WithLabelValues(token.ID).Set(float64(remaining))

	return &Identity{
		Token:  token,
		Client: client,
		RateLimit: models.RateLimitInfo{
			Limit:     limit,
			Remaining: remaining,
			ResetAt:   now.Add(rateLimitWindow),
		},
	}, nil
}

func (g *Gateway) deny(req *Request, token *models.ClientToken, reason models.SecurityEventReason, status int, message string, rl *models.RateLimitInfo) *Denial {
	event := models.SecurityEvent{
		Reason:    reason,
		IPAddress: req.IP,
		Endpoint:  req.Endpoint,
		Method:    req.Method,
		UserAgent: req.UserAgent,
		Detail:    message,
	}
	denial := &Denial{Reason: reason, Status: status, Message: message, RateLimit: rl}
	if token != nil {
		event.TokenID = token.ID
		event.ClientID = token.ClientID
		denial.TokenID = token.ID
		denial.ClientID = token.ClientID
	}
	g.auditLog.SecurityEvent(event)

	return denial
}
