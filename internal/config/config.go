// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

// Package config provides layered configuration for the Tramita hub using
// Koanf v2: built-in defaults, an optional YAML config file, and environment
// variables, in increasing order of precedence.
package config

import (
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting (SERVER_PORT, SECURITY_JWT_SECRET, ...)
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Vendor   VendorConfig   `koanf:"vendor"`
	Sync     SyncConfig     `koanf:"sync"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development | production
}

// DatabaseConfig holds DuckDB store configuration.
type DatabaseConfig struct {
	// Path is the database file path; ":memory:" for tests.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// SecurityConfig holds the inbound gateway settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies platform identity tokens (the privileged
	// administrative path). Required in production.
	JWTSecret string `koanf:"jwt_secret"`

	// RateLimitDefault is the default number of requests a client token may
	// make in the trailing 60-minute sliding window. Tokens can carry their
	// own override.
	RateLimitDefault int `koanf:"rate_limit_default"`

	// IPRateLimitRequests/Window drive the coarse per-IP limiter applied in
	// front of the exact per-token window (go-chi/httprate).
	IPRateLimitRequests int           `koanf:"ip_rate_limit_requests"`
	IPRateLimitWindow   time.Duration `koanf:"ip_rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// VendorConfig holds settings shared by both vendor protocol clients.
type VendorConfig struct {
	// RequestTimeout bounds a single HTTP attempt, distinct from the
	// retry/backoff timing which can stretch a logical call further.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RetryAttempts and RetryBaseDelay drive the shared linear-backoff
	// retry policy (delay = attempt x base delay).
	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
}

// SyncConfig holds sync orchestration settings.
type SyncConfig struct {
	// Interval between scheduler sweeps over active vendor services.
	Interval time.Duration `koanf:"interval"`

	// PageSize is the vendor's fetch cap per call.
	PageSize int `koanf:"page_size"`

	// MaxIterations is the runaway-protection circuit breaker on the
	// fetch/persist/confirm loop.
	MaxIterations int `koanf:"max_iterations"`

	// ConfirmChunkSize bounds per-call confirm-receipt id lists.
	ConfirmChunkSize int `koanf:"confirm_chunk_size"`
}

// APIConfig holds pagination limits for the client-facing API.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
