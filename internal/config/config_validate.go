// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package config

import (
	"fmt"
)

// Validate checks configuration consistency. Called by Load after all layers
// are merged; returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Server.Environment == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required in production")
	}
	if c.Security.JWTSecret != "" && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Security.RateLimitDefault < 1 {
		return fmt.Errorf("security.rate_limit_default must be positive, got %d", c.Security.RateLimitDefault)
	}
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 500 {
		return fmt.Errorf("sync.page_size must be between 1 and 500, got %d", c.Sync.PageSize)
	}
	if c.Sync.MaxIterations < 1 {
		return fmt.Errorf("sync.max_iterations must be positive, got %d", c.Sync.MaxIterations)
	}
	if c.Sync.ConfirmChunkSize < 1 || c.Sync.ConfirmChunkSize > c.Sync.PageSize {
		return fmt.Errorf("sync.confirm_chunk_size must be between 1 and sync.page_size, got %d", c.Sync.ConfirmChunkSize)
	}
	if c.Vendor.RetryAttempts < 0 {
		return fmt.Errorf("vendor.retry_attempts must not be negative, got %d", c.Vendor.RetryAttempts)
	}
	if c.API.MaxPageSize < 1 || c.API.MaxPageSize > 500 {
		return fmt.Errorf("api.max_page_size must be between 1 and 500, got %d", c.API.MaxPageSize)
	}
	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.default_page_size must be between 1 and api.max_page_size, got %d", c.API.DefaultPageSize)
	}
	return nil
}
