// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tramitahub/tramita/internal/logging"
	"github.com/tramitahub/tramita/internal/models"
)

const (
	// tokenPrefix is the fixed prefix of every client API token.
	tokenPrefix = "trm_tok_"

	// tokenSecretLength is the length of the random secret portion (bytes).
	tokenSecretLength = 32

	// tokenPrefixDisplayLength is how many characters past the fixed prefix
	// are stored for identification.
	tokenPrefixDisplayLength = 8

	// bcryptCost is the bcrypt cost factor for token hashing.
	bcryptCost = 12
)

// TokenStore defines the database operations token management needs.
// *database.DB satisfies this; tests substitute an in-memory store.
type TokenStore interface {
	CreateToken(ctx context.Context, token *models.ClientToken) error
	GetTokenByID(ctx context.Context, id string) (*models.ClientToken, error)
	ListTokensByClient(ctx context.Context, clientID string) ([]models.ClientToken, error)
	RevokeToken(ctx context.Context, id string, at time.Time) error
	TouchTokenUsage(ctx context.Context, id, ip string, at time.Time) error
}

// CreateTokenRequest carries the options for minting a client token.
type CreateTokenRequest struct {
	Name              string   `json:"name" validate:"required,min=1,max=100"`
	ExpiresInDays     *int     `json:"expires_in_days,omitempty" validate:"omitempty,min=1,max=3650"`
	RateLimitOverride *int     `json:"rate_limit_override,omitempty" validate:"omitempty,min=1"`
	IPAllowlist       []string `json:"ip_allowlist,omitempty" validate:"omitempty,dive,ip"`
}

// TokenManager mints, validates and revokes client API tokens.
type TokenManager struct {
	store TokenStore
}

// NewTokenManager creates a token manager over the given store.
func NewTokenManager(store TokenStore) *TokenManager {
	return &TokenManager{store: store}
}

// Create mints a token for a client. Returns the token record and the
// plaintext token, which is shown exactly once and never stored.
func (m *TokenManager) Create(ctx context.Context, clientID string, req *CreateTokenRequest) (*models.ClientToken, string, error) {
	tokenID := uuid.New().String()

	secretBytes := make([]byte, tokenSecretLength)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	// The token id rides inside the plaintext so validation is a direct
	// lookup rather than a scan over every stored hash.
	idEncoded := base64.RawURLEncoding.EncodeToString([]byte(tokenID))
	plaintext := fmt.Sprintf("%s%s_%s", tokenPrefix, idEncoded, secret)

	hash, err := hashToken(plaintext)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash token: %w", err)
	}

	var expiresAt *time.Time
	if req.ExpiresInDays != nil && *req.ExpiresInDays > 0 {
		exp := time.Now().Add(time.Duration(*req.ExpiresInDays) * 24 * time.Hour)
		expiresAt = &exp
	}

	token := &models.ClientToken{
		ID:                tokenID,
		ClientID:          clientID,
		Name:              req.Name,
		TokenPrefix:       plaintext[:len(tokenPrefix)+tokenPrefixDisplayLength],
		TokenHash:         hash,
		Active:            true,
		ExpiresAt:         expiresAt,
		RateLimitOverride: req.RateLimitOverride,
		IPAllowlist:       req.IPAllowlist,
		CreatedAt:         time.Now(),
	}
	if err := m.store.CreateToken(ctx, token); err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	logging.Info().
		Str("token_id", tokenID).
		Str("client_id", clientID).
		Str("name", req.Name).
		Msg("Client token created")

	return token, plaintext, nil
}

// Lookup resolves a plaintext token to its stored record and verifies the
// hash. It performs no lifecycle checks; the gateway layers those so each
// failure gets its own security event reason. Returns (nil, nil) when the
// format is wrong, the id is unknown, or the hash does not match; callers
// must not distinguish those cases.
func (m *TokenManager) Lookup(ctx context.Context, plaintext string) (*models.ClientToken, error) {
	tokenID, ok := tokenIDFromPlaintext(plaintext)
	if !ok {
		return nil, nil
	}
	token, err := m.store.GetTokenByID(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if token == nil || !verifyToken(plaintext, token.TokenHash) {
		return nil, nil
	}
	return token, nil
}

// Revoke permanently invalidates a token.
func (m *TokenManager) Revoke(ctx context.Context, tokenID string) error {
	if err := m.store.RevokeToken(ctx, tokenID, time.Now()); err != nil {
		return err
	}
	logging.Info().Str("token_id", tokenID).Msg("Client token revoked")
	return nil
}

// List returns all tokens of a client, hashes omitted by the JSON tags.
func (m *TokenManager) List(ctx context.Context, clientID string) ([]models.ClientToken, error) {
	return m.store.ListTokensByClient(ctx, clientID)
}

// IsAPIToken reports whether a bearer credential has the client token shape.
func IsAPIToken(credential string) bool {
	return strings.HasPrefix(credential, tokenPrefix)
}

func tokenIDFromPlaintext(plaintext string) (string, bool) {
	if !strings.HasPrefix(plaintext, tokenPrefix) {
		return "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(plaintext, tokenPrefix), "_", 2)
	if len(parts) != 2 {
		return "", false
	}
	idBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	return string(idBytes), true
}

// hashToken stores a bcrypt hash of the token. bcrypt caps input at 72
// bytes, so the token is SHA-256'd first for a fixed-length input.
func hashToken(plaintext string) (string, error) {
	sha := sha256.Sum256([]byte(plaintext))
	hash, err := bcrypt.GenerateFromPassword(sha[:], bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt failed: %w", err)
	}
	return string(hash), nil
}

func verifyToken(plaintext, storedHash string) bool {
	sha := sha256.Sum256([]byte(plaintext))
	return bcrypt.CompareHashAndPassword([]byte(storedHash), sha[:]) == nil
}
