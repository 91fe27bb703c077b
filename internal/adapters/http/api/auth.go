package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/quotaboard/internal/adapters/oauth"
	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/pkg/logger"
)

// handleLogin handles GET /auth/login by redirecting to the authorize URL.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind("api.login", ErrMethod))
		return
	}
	sess := s.session(w, r)
	target, err := s.deps.BeginLogin(r.Context(), sess.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback handles GET /auth/callback. A replayed code is ignored and
// the browser is sent back to the dashboard. A code Salesforce rejects sends
// the browser back with a sign-in notice.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	const op = "api.callback"
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethod))
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		err := fmt.Errorf("%s: %s", e, q.Get("error_description"))
		s.logger.Warn(r.Context(), "authorization denied", logger.Error(err))
		writeError(w, http.StatusBadRequest, "authorization_denied", WrapKind(op, ErrBadRequest, err))
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing code")))
		return
	}

	sess := s.session(w, r)
	err := s.deps.CompleteLogin(r.Context(), sess.ID, q.Get("state"), code)
	switch {
	case err == nil, errors.Is(err, service.ErrCodeReplayed) && sess.Authenticated():
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	case errors.Is(err, oauth.ErrExchange), errors.Is(err, oauth.ErrMissingInstanceURL):
		s.logger.Warn(r.Context(), "authorization code exchange failed", logger.Error(err))
		http.Redirect(w, r, "/dashboard?login=failed", http.StatusFound)
	default:
		s.fail(w, r, err)
	}
}

// handleLogout handles POST /auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind("api.logout", ErrMethod))
		return
	}
	sess := s.session(w, r)
	if err := s.deps.Logout(r.Context(), sess.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
