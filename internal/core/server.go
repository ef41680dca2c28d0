// Package core provides the API chassis: a chi router with the cross-cutting
// middleware chain (recovery, logging, auth, plan policy, rate admission,
// request logging to the system log) applied before requests reach the
// domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"recordstack/internal/config"
	"recordstack/internal/plans"
	"recordstack/internal/policy"
	"recordstack/internal/quota"
	"recordstack/internal/types"
)

// MetricsCollector records API telemetry: request latency and count per
// method, endpoint and status.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Authenticator resolves a bearer token or session to an Actor.
// Implementations perform the live account lookup on every request so the
// active and admin flags are current.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

// ProfileResolver looks up the quota profile for an authenticated principal,
// satisfied by db.ProfileRepository.
type ProfileResolver interface {
	GetByUserID(ctx context.Context, userID string) (*types.UserProfile, error)
}

// SystemLogWriter records one request log row. Implementations must not
// surface failures to the request path.
type SystemLogWriter interface {
	Create(ctx context.Context, entry *types.SystemLog) error
}

// Server holds the dependencies of the HTTP API and builds the router.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	Profiles      ProfileResolver
	Plans         *plans.Registry
	Ledger        *quota.Ledger
	Policy        *policy.Engine
	SystemLogs    SystemLogWriter
	HealthProbes  []HealthProbe

	// APIRouteRegistrars mount the domain handlers under /api/v1. Populated
	// by the entry point to avoid an import cycle between core and the
	// handler packages.
	APIRouteRegistrars []func(chi.Router)

	// RootRouteRegistrars mount top-level routes outside /api/v1, such as
	// the Stripe webhook endpoint.
	RootRouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer wires the chassis. Routes are mounted separately via MountRoutes
// so tests can register their own.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		Policy:    policy.NewEngine(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler for ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the underlying mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server-held resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.Logger.Info("server shutdown complete")
	return nil
}
