/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and storeplatform contributors
SPDX-License-Identifier: Apache-2.0
*/

// Package api is the intent layer's HTTP transport: a chi router exposing
// the Store CRUD/stream operations over JSON, grounded on the rezkam-mono
// chi.Router/net-http.Server wiring, generalized from that repo's OpenAPI
// ServerInterface mounting to a small hand-routed table.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sap-labs-oss/storeplatform/internal/config"
	"github.com/sap-labs-oss/storeplatform/pkg/eventbus"
	"github.com/sap-labs-oss/storeplatform/pkg/intent"
	"github.com/sap-labs-oss/storeplatform/pkg/ratelimit"
)

// Default per-identity write-endpoint budgets (spec: create = 10/min,
// delete = 30/min).
const (
	createRateLimit = 10
	deleteRateLimit = 30
)

// Server wraps the intent layer behind an http.Server.
type Server struct {
	httpServer *http.Server
	handler    *handlers
}

// NewServer builds a Server listening on addr, routing every operation in
// the external HTTP interface to svc and streaming bus events over /ws.
func NewServer(addr string, svc *intent.Service, bus *eventbus.Bus, cfg *config.Config) *Server {
	h := &handlers{
		svc:         svc,
		bus:         bus,
		createLimit: ratelimit.New(createRateLimit, time.Minute, createRateLimit),
		deleteLimit: ratelimit.New(deleteRateLimit, time.Minute, deleteRateLimit),
		apiTimeout:  time.Duration(cfg.APITimeoutSeconds) * time.Second,
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "X-User-Id"},
	}))
	router.Use(identityMiddleware)

	router.Get("/health", h.health)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Get("/ws", h.subscribe)

	router.Route("/stores", func(r chi.Router) {
		r.With(rateLimited(h.createLimit)).Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{name}", h.get)
		r.With(rateLimited(h.deleteLimit)).Delete("/{name}", h.delete)
		r.Get("/{name}/logs", h.logs)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		handler: h,
	}
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "error serving http")
	}
	return nil
}

// Shutdown gracefully drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Wrap(s.httpServer.Shutdown(ctx), "error shutting down http server")
}

// shutdownGrace bounds how long Start waits for in-flight requests to
// drain once ctx is cancelled.
const shutdownGrace = 10 * time.Second

// Start implements sigs.k8s.io/controller-runtime/pkg/manager.Runnable, so
// the HTTP API shares its lifecycle with the reconciler manager: one
// process, one ctrl.SetupSignalHandler() context driving both, and in turn
// one eventbus.Bus/quota.Tracker instance visible to both the reconciler
// and the intent layer rather than a separate bus per process.
func (s *Server) Start(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// NeedLeaderElection implements manager.LeaderElectionRunnable: the API
// serves reads and writes against the Store resource directly, not
// reconciliation state, so it starts immediately rather than waiting to
// acquire the reconciler's leader lease.
func (s *Server) NeedLeaderElection() bool {
	return false
}

// Handler returns the underlying HTTP handler, for tests that want to
// drive it with httptest without binding a real listener.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
