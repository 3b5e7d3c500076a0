// Tramita - Legal Process Data Hub
// Copyright 2026 Tramita Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tramitahub/tramita

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tramitahub/tramita/internal/config"
	"github.com/tramitahub/tramita/internal/middleware"
	"github.com/tramitahub/tramita/internal/models"
)

// Router assembles the HTTP surface around a Handler.
type Router struct {
	handler *Handler
	config  *config.Config
}

// NewRouter creates a router for the given handler.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, config: cfg}
}

// Setup configures all routes.
//
// The per-IP httprate limiter in front is coarse abuse protection only; the
// authoritative per-token sliding window lives in the gateway.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.config.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}))
	r.Use(httprate.LimitByIP(
		router.config.Security.IPRateLimitRequests,
		router.config.Security.IPRateLimitWindow,
	))

	// Health and metrics, unauthenticated.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Client-facing delivery surface, one route pair per resource kind.
	kinds := map[string]models.ResourceKind{
		"/api-processes":     models.KindProcesses,
		"/api-distributions": models.KindDistributions,
		"/api-publications":  models.KindPublications,
	}
	for path, kind := range kinds {
		r.Route(path, func(r chi.Router) {
			r.Use(middleware.PrometheusMetrics)
			r.Use(h.authenticate(kind))
			r.Get("/", h.RecordsGet(kind))
			r.Post("/", h.RecordsPost(kind))
		})
	}

	// Administrative surface, platform tokens only.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.authenticate(""))
		r.Use(h.requirePlatform)

		r.Post("/clients", h.ClientCreate)
		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Get("/", h.ClientGet)

			r.Post("/tokens", h.TokenCreate)
			r.Get("/tokens", h.TokenList)

			r.Put("/services/{serviceID}", h.EntitlementUpsert)

			r.Post("/resources", h.ResourceRegister)
			r.Get("/resources", h.ResourceList)
			r.Delete("/resources/{resourceID}", h.ResourceRelease)

			r.Post("/deliveries/{kind}/reopen", h.DeliveryReopen)
			r.Get("/deliveries/{kind}/pending", h.DeliveryPending)
		})
		r.Delete("/tokens/{tokenID}", h.TokenRevoke)

		r.Post("/services", h.ServiceCreate)
		r.Get("/services", h.ServiceList)
		r.Patch("/services/{serviceID}", h.ServiceSetActive)
		r.Post("/services/{serviceID}/sync", h.ServiceSyncNow)

		r.Post("/ip-rules", h.IPRuleCreate)
		r.Delete("/ip-rules/{ruleID}", h.IPRuleDelete)

		r.Get("/call-logs", h.CallLogList)
		r.Get("/sync-runs", h.SyncRunList)
		r.Get("/security-events", h.SecurityEventList)
		r.Get("/metrics-summary", h.MetricsSummary)
	})

	return r
}

// Server wraps the router in an http.Server runnable as a supervised
// service: Serve blocks until the context is canceled, then shuts the
// listener down gracefully.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
}

// NewServer builds the HTTP server service around the configured router.
func NewServer(router *Router, addr string, timeout time.Duration) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router.Setup(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
			IdleTimeout:       2 * timeout,
		},
		shutdownTimeout: 10 * time.Second,
	}
}

// Serve implements suture.Service. ListenAndServe blocks in a goroutine;
// context cancellation triggers graceful shutdown with a fresh deadline
// since the original context is already dead.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Server) String() string {
	return "http-server"
}
