// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/okian/quotaboard/internal/adapters/salesforce"
	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/internal/domain/period"
	"github.com/okian/quotaboard/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Session returns the session for id, creating one when id is unknown.
	Session(ctx context.Context, id string) oauth.Session
	OAuthConfigured() bool
	SelectPeriod(sessionID string, year int, month time.Month) error

	BeginLogin(ctx context.Context, sessionID string) (string, error)
	CompleteLogin(ctx context.Context, sessionID, state, code string) error
	Logout(ctx context.Context, sessionID string) error

	Dashboard(ctx context.Context, sessionID string, year int, month time.Month) (service.Report, error)
	Snapshots(ctx context.Context, limit int) ([]repository.Snapshot, error)
	Snapshot(ctx context.Context, id string) (repository.Snapshot, error)
}

// Server wires HTTP routes for the dashboard.
type Server struct {
	deps          Dependencies
	healthHandler *HealthHandler
	statsHandler  *StatsHandler

	cookieSecure  bool
	snapshotLimit int
	now           func() time.Time
	logger        logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:          deps,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		snapshotLimit: DefaultSnapshotLimit,
		now:           time.Now,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/dashboard", MetricsMiddleware(s.handleDashboardPage, "dashboard"))
	mux.HandleFunc("/api/dashboard", MetricsMiddleware(s.handleDashboardJSON, "api_dashboard"))
	mux.HandleFunc("/api/dashboard.csv", MetricsMiddleware(s.handleDashboardCSV, "api_dashboard_csv"))
	mux.HandleFunc("/api/snapshots", MetricsMiddleware(s.handleSnapshots, "api_snapshots"))
	mux.HandleFunc("/api/snapshots/", MetricsMiddleware(s.handleSnapshot, "api_snapshot"))
	mux.HandleFunc("/auth/login", MetricsMiddleware(s.handleLogin, "auth_login"))
	mux.HandleFunc("/auth/callback", MetricsMiddleware(s.handleCallback, "auth_callback"))
	mux.HandleFunc("/auth/logout", MetricsMiddleware(s.handleLogout, "auth_logout"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps service and adapter errors to an HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, period.ErrInvalidMonth),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrMethod):
		return http.StatusMethodNotAllowed, "method_not_allowed"
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrCodeReplayed):
		return http.StatusBadRequest, "invalid_callback"
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, service.ErrNotAuthenticated),
		errors.Is(err, oauth.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, service.ErrReauthenticate):
		return http.StatusUnauthorized, "reauthenticate"
	case errors.Is(err, service.ErrNotConfigured), errors.Is(err, oauth.ErrNotConfigured):
		return http.StatusServiceUnavailable, "oauth_not_configured"
	case errors.Is(err, service.ErrSnapshotsDisabled):
		return http.StatusNotFound, "snapshots_disabled"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrPartialData):
		return http.StatusBadGateway, "partial_data"
	case errors.Is(err, salesforce.ErrQuery),
		errors.Is(err, oauth.ErrExchange),
		errors.Is(err, oauth.ErrMissingInstanceURL):
		return http.StatusBadGateway, "salesforce_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes a JSON error for err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
