// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// platformIssuer identifies JWTs minted by this hub for administrative and
// internal callers.
const platformIssuer = "tramita"

// PlatformClaims are the claims of a platform identity token. Platform
// callers bypass the per-client gateway checks; these tokens never reach
// client systems.
type PlatformClaims struct {
	jwt.RegisteredClaims
}

// IssuePlatformToken mints a signed platform JWT for subject, valid for ttl.
func IssuePlatformToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := PlatformClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    platformIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign platform token: %w", err)
	}
	return signed, nil
}

// VerifyPlatformToken parses and verifies a platform JWT, returning the
// subject. Algorithm is pinned to HS256; issuer and expiry are enforced by
// the parser options.
func VerifyPlatformToken(secret []byte, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlatformClaims{},
		func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(platformIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("invalid platform token: %w", err)
	}
	claims, ok := token.Claims.(*PlatformClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid platform token claims")
	}
	return claims.Subject, nil
}
