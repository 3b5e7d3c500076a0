// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the hub:
// - client-facing API latency and throughput
// - gateway denials by reason
// - outbound vendor calls and circuit breaker health
// - sync loop progress and delivery protocol activity

var (
	// API Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Gateway Metrics
	GatewayDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_denials_total",
			Help: "Total number of requests denied by the inbound gateway",
		},
		[]string{"reason"},
	)

	RateLimitRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gateway_rate_limit_remaining",
			Help: "Remaining sliding-window quota observed on the last request per token",
		},
		[]string{"token_id"},
	)

	// Vendor Call Metrics
	VendorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vendor_call_duration_seconds",
			Help:    "Duration of outbound vendor calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)

	VendorCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vendor_call_errors_total",
			Help: "Total number of failed outbound vendor calls",
		},
		[]string{"service", "operation", "transient"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sync Metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"service", "status"},
	)

	SyncRecordsFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_fetched_total",
			Help: "Total number of records fetched from the vendor",
		},
		[]string{"service"},
	)

	SyncOrphansLinked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_orphans_linked_total",
			Help: "Total number of orphan records attached to their parent resource",
		},
	)

	// Delivery Protocol Metrics
	BatchesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_batches_total",
			Help: "Total number of batches handed to client systems",
		},
		[]string{"kind"},
	)

	BatchesConfirmed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_confirmations_total",
			Help: "Total number of batch confirmations received",
		},
		[]string{"kind"},
	)

	DeliveriesReopened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_reopened_records_total",
			Help: "Total number of records re-opened for redelivery by administrators",
		},
	)
)

// RecordHTTPRequest observes one finished API request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
}

// RecordVendorCall observes one finished outbound vendor call.
func RecordVendorCall(service, op string, duration time.Duration, err error, transient bool) {
	VendorCallDuration.WithLabelValues(service, op).Observe(duration.Seconds())
	if err != nil {
		VendorCallErrors.WithLabelValues(service, op, strconv.FormatBool(transient)).Inc()
	}
}
