package api

import (
	"bytes"
	"errors"
	"net/http"

	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/internal/domain/report"
	"github.com/okian/quotaboard/pkg/logger"
)

const (
	reauthNotice      = "Your Salesforce session expired. Please sign in again."
	loginFailedNotice = "Salesforce sign-in failed or the authorization code expired. Please sign in again."
	loginFailedParam  = "login"
	loginFailedValue  = "failed"
)

// handleDashboardPage handles GET /dashboard.
func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind("api.dashboard", ErrMethod))
		return
	}
	ctx := r.Context()
	sess := s.session(w, r)
	q := r.URL.Query()
	year, month := parsePeriod(q, sess, s.now())
	page := newPage(s.deps.OAuthConfigured(), year, month, s.now())

	if !sess.Authenticated() {
		if q.Get(loginFailedParam) == loginFailedValue {
			page.Notice = loginFailedNotice
		}
		_ = s.deps.SelectPeriod(sess.ID, year, month)
		s.render(w, r, http.StatusOK, page)
		return
	}

	rep, err := s.deps.Dashboard(ctx, sess.ID, year, month)
	if err != nil {
		status, _ := statusFor(err)
		if errors.Is(err, service.ErrReauthenticate) {
			page.Notice = reauthNotice
			s.render(w, r, http.StatusOK, page)
			return
		}
		page.Authenticated = true
		page.Error = err.Error()
		s.render(w, r, status, page)
		return
	}

	f, err := parseFilter(q, rep.Rows)
	if err != nil {
		page.Authenticated = true
		page.Error = err.Error()
		s.render(w, r, http.StatusBadRequest, page)
		return
	}
	page.fill(rep, f, q)
	s.render(w, r, http.StatusOK, page)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page pageData) {
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		s.logger.Error(r.Context(), "dashboard template failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "render_failed", WrapKind("api.render", ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handleDashboardJSON handles GET /api/dashboard.
func (s *Server) handleDashboardJSON(w http.ResponseWriter, r *http.Request) {
	rep, f, ok := s.loadReport(w, r, "api.dashboard")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newDashboardResponse(rep, f))
}

// handleDashboardCSV handles GET /api/dashboard.csv.
func (s *Server) handleDashboardCSV(w http.ResponseWriter, r *http.Request) {
	rep, f, ok := s.loadReport(w, r, "api.dashboard_csv")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, f.Apply(rep.Rows)); err != nil {
		s.fail(w, r, WrapKind("api.dashboard_csv", ErrRender, err))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(rep.Year, rep.Month)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) loadReport(w http.ResponseWriter, r *http.Request, op string) (service.Report, report.Filter, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethod))
		return service.Report{}, report.Filter{}, false
	}
	sess := s.session(w, r)
	if !sess.Authenticated() {
		s.fail(w, r, NewKind(op, ErrUnauthenticated))
		return service.Report{}, report.Filter{}, false
	}
	q := r.URL.Query()
	year, month := parsePeriod(q, sess, s.now())
	rep, err := s.deps.Dashboard(r.Context(), sess.ID, year, month)
	if err != nil {
		s.fail(w, r, err)
		return service.Report{}, report.Filter{}, false
	}
	f, err := parseFilter(q, rep.Rows)
	if err != nil {
		s.fail(w, r, err)
		return service.Report{}, report.Filter{}, false
	}
	return rep, f, true
}
