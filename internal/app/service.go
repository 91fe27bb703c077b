// Package service ties the Salesforce loader, the OAuth flow, and the
// persistence adapters together behind the operations the HTTP API and the
// CLI need.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/okian/quotaboard/internal/adapters/salesforce"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/dedupe"
	"github.com/okian/quotaboard/internal/domain/period"
	"github.com/okian/quotaboard/pkg/logger"
	"github.com/okian/quotaboard/pkg/metrics"
)

// Authenticator is the part of oauth.Provider the service uses.
type Authenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Token, error)
	Refresh(ctx context.Context, tok oauth.Token) (oauth.Token, error)
	Client(ctx context.Context, tok oauth.Token) *http.Client
}

// PasswordAuthenticator signs in with integration user credentials.
type PasswordAuthenticator interface {
	PasswordLogin(ctx context.Context, c oauth.Credentials) (oauth.Token, error)
}

// Report is one built dashboard.
type Report struct {
	Year       int                      `json:"year"`
	Month      time.Month               `json:"month"`
	Range      period.Range             `json:"-"`
	Rows       []dashboard.Row          `json:"rows"`
	Warnings   []salesforce.SourceError `json:"-"`
	LoadTime   time.Duration            `json:"-"`
	BuiltAt    time.Time                `json:"built_at"`
	SnapshotID string                   `json:"snapshot_id,omitempty"`
}

// Partial reports whether optional sources were missing.
func (r Report) Partial() bool { return len(r.Warnings) > 0 }

// WarningMessages renders the warnings for display.
func (r Report) WarningMessages() []string {
	out := make([]string, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		out = append(out, w.Error())
	}
	return out
}

// Service implements the API dependencies for the dashboard.
type Service struct {
	mu sync.RWMutex

	auth       Authenticator
	newQuerier QuerierFactory
	tokens     repository.TokenStore
	snapshots  repository.SnapshotStore
	sessions   *oauth.SessionStore
	codes      dedupe.Deduper
	builder    *dashboard.Builder
	loaderOpts []salesforce.Option
	creds      oauth.Credentials

	restoreSaved  bool
	apiVersion    string
	allowPartial  bool
	sessionTTL    time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	builds     atomic.Int64
	failures   atomic.Int64
	lastBuild  time.Time
	lastLength time.Duration

	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		codes:         dedupe.NewInMemoryDeduper(),
		builder:       dashboard.NewBuilder(),
		apiVersion:    salesforce.DefaultAPIVersion,
		allowPartial:  true,
		sessionTTL:    oauth.DefaultSessionTTL,
		sweepInterval: time.Minute,
		now:           time.Now,
		logger:        logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.sessions = oauth.NewSessionStore(
		oauth.WithSessionTTL(s.sessionTTL),
		oauth.WithSessionClock(s.now),
	)
	if s.newQuerier == nil {
		s.newQuerier = s.defaultQuerier
	}
	return s
}

// Start runs the idle session sweeper until Stop or ctx is done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.sweep(ctx, s.stopCh, s.doneCh)

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.Bool("oauth", s.auth != nil),
		logger.Bool("snapshots", s.snapshots != nil),
		logger.Bool("allowPartial", s.allowPartial),
	)
	return nil
}

// Stop shuts the sweeper down and waits for it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.started = false
	s.logger.Info(context.Background(), "dashboard service stopped")
}

func (s *Service) sweep(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := s.sessions.Sweep(); n > 0 {
				s.logger.Debug(ctx, "idle sessions dropped", logger.Int("count", n))
			}
			metrics.UpdateActiveSessions(s.sessions.Len())
		}
	}
}

// OAuthConfigured reports whether login is possible.
func (s *Service) OAuthConfigured() bool { return s.auth != nil }

// SnapshotsEnabled reports whether builds are recorded.
func (s *Service) SnapshotsEnabled() bool { return s.snapshots != nil }

// Session returns the session for id. An unknown or expired id gets a new
// session, which is seeded from the server's saved credentials only when
// WithRestoreSavedTokens is on.
func (s *Service) Session(ctx context.Context, id string) oauth.Session {
	if id != "" {
		if sess, ok := s.sessions.Get(id); ok {
			return sess
		}
	}
	if s.restoreSaved {
		return s.Restore(ctx)
	}
	sess := s.sessions.Create()
	metrics.UpdateActiveSessions(s.sessions.Len())
	return sess
}

// Restore creates a session holding the persisted tokens. Without saved
// tokens it falls back to a password login when credentials are configured.
func (s *Service) Restore(ctx context.Context) oauth.Session {
	sess := s.sessions.Create()
	metrics.UpdateActiveSessions(s.sessions.Len())

	tok, source, ok := s.savedToken(ctx)
	if !ok {
		return sess
	}
	sess.Token = &tok
	if !s.saveSession(ctx, sess) {
		return sess
	}
	s.logger.Debug(ctx, "session restored",
		logger.String("source", source),
		logger.String("instance_url", tok.InstanceURL),
	)
	return sess
}

func (s *Service) savedToken(ctx context.Context) (oauth.Token, string, bool) {
	if s.tokens != nil {
		tok, err := s.tokens.Load(ctx)
		switch {
		case err == nil:
			return tok, "token_file", true
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn(ctx, "failed to load saved tokens", logger.Error(err))
		}
	}
	if !s.creds.Complete() {
		return oauth.Token{}, "", false
	}
	tok, err := s.passwordLogin(ctx)
	if err != nil {
		s.logger.Warn(ctx, "password login failed", logger.Error(err))
		return oauth.Token{}, "", false
	}
	return tok, "password", true
}

func (s *Service) passwordLogin(ctx context.Context) (oauth.Token, error) {
	pa, ok := s.auth.(PasswordAuthenticator)
	if !ok {
		return oauth.Token{}, ErrNotConfigured
	}
	tok, err := pa.PasswordLogin(ctx, s.creds)
	if err != nil {
		metrics.RecordErrorByComponent("oauth", "password")
		return oauth.Token{}, err
	}
	return tok, nil
}

// BeginLogin stores a fresh state on the session and returns the authorize URL.
func (s *Service) BeginLogin(ctx context.Context, sessionID string) (string, error) {
	if s.auth == nil {
		return "", ErrNotConfigured
	}
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", oauth.ErrSessionNotFound
	}
	sess.State = oauth.NewState()
	if err := s.sessions.Save(sess); err != nil {
		return "", err
	}
	s.logger.Debug(ctx, "login started", logger.String("session", sessionID))
	return s.auth.AuthCodeURL(sess.State), nil
}

// CompleteLogin handles the OAuth callback. Each code is exchanged at most once.
func (s *Service) CompleteLogin(ctx context.Context, sessionID, state, code string) error {
	if s.auth == nil {
		return ErrNotConfigured
	}
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return oauth.ErrSessionNotFound
	}
	if state == "" || state != sess.State {
		return ErrInvalidState
	}
	if code == "" || code == sess.LastCode || s.codes.SeenAndRecord(ctx, code) {
		return ErrCodeReplayed
	}

	tok, err := s.auth.Exchange(ctx, code)
	if err != nil {
		// The code was never redeemed, so a retry may still use it.
		s.codes.Unrecord(ctx, code)
		metrics.RecordErrorByComponent("oauth", "exchange")
		return err
	}

	sess.Token = &tok
	sess.State = ""
	sess.LastCode = code
	if err := s.sessions.Save(sess); err != nil {
		return err
	}
	s.persist(ctx, tok)
	metrics.UpdateActiveSessions(s.sessions.Len())
	s.logger.Info(ctx, "login completed", logger.String("instance_url", tok.InstanceURL))
	return nil
}

// Logout drops the session and the persisted tokens.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	s.sessions.Delete(sessionID)
	metrics.UpdateActiveSessions(s.sessions.Len())
	if s.tokens == nil {
		return nil
	}
	if err := s.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// SelectPeriod remembers the month picked in a session.
func (s *Service) SelectPeriod(sessionID string, year int, month time.Month) error {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return oauth.ErrSessionNotFound
	}
	sess.Year, sess.Month = year, month
	return s.sessions.Save(sess)
}

// Dashboard loads the month and builds its rows. A rejected access token is
// refreshed once; when that fails the session and stored tokens are cleared
// and ErrReauthenticate is returned.
func (s *Service) Dashboard(ctx context.Context, sessionID string, year int, month time.Month) (Report, error) {
	started := s.now()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return Report{}, oauth.ErrSessionNotFound
	}
	if !sess.Authenticated() {
		return Report{}, ErrNotAuthenticated
	}
	if _, err := period.MonthRange(year, month); err != nil {
		return Report{}, err
	}
	sess.Year, sess.Month = year, month
	s.saveSession(ctx, sess)

	ds, err := s.load(ctx, *sess.Token, year, month)
	if errors.Is(err, salesforce.ErrUnauthorized) {
		var tok oauth.Token
		tok, err = s.refresh(ctx, sess)
		if err == nil {
			ds, err = s.load(ctx, tok, year, month)
		}
		if err != nil && (errors.Is(err, salesforce.ErrUnauthorized) || errors.Is(err, oauth.ErrRefresh)) {
			s.reset(ctx, sess.ID)
			err = ErrReauthenticate
		}
	}
	if err != nil {
		s.recordFailure(ctx, err)
		return Report{}, err
	}

	if ds.Partial() && !s.allowPartial {
		err := fmt.Errorf("%w: %s", ErrPartialData, joinWarnings(ds.Warnings))
		s.recordFailure(ctx, err)
		return Report{}, err
	}

	rows := s.builder.Build(ds.Roster, ds.Metrics)
	report := Report{
		Year:     year,
		Month:    month,
		Range:    ds.Range,
		Rows:     rows,
		Warnings: ds.Warnings,
		BuiltAt:  s.now(),
	}
	report.LoadTime = report.BuiltAt.Sub(started)

	outcome := metrics.OutcomeSuccess
	if ds.Partial() {
		outcome = metrics.OutcomePartial
		for _, w := range ds.Warnings {
			s.logger.Warn(ctx, "source unavailable", logger.String("source", w.Source), logger.Error(w.Err))
		}
	}
	metrics.RecordDashboardBuild(outcome)
	metrics.RecordDashboardBuildLatency(float64(report.LoadTime.Milliseconds()))
	metrics.UpdateDashboardRows(len(rows))

	s.mu.Lock()
	s.lastBuild = report.BuiltAt
	s.lastLength = report.LoadTime
	s.mu.Unlock()
	s.builds.Add(1)

	report.SnapshotID = s.record(ctx, report)

	s.logger.Info(ctx, "dashboard built",
		logger.String("range", ds.Range.String()),
		logger.Int("rows", len(rows)),
		logger.Int("warnings", len(ds.Warnings)),
		logger.Duration("loadTime", report.LoadTime),
	)
	return report, nil
}

func (s *Service) load(ctx context.Context, tok oauth.Token, year int, month time.Month) (salesforce.Dataset, error) {
	q, err := s.newQuerier(ctx, tok)
	if err != nil {
		return salesforce.Dataset{}, err
	}
	return salesforce.NewLoader(q, s.loaderOpts...).Load(ctx, year, month)
}

func (s *Service) refresh(ctx context.Context, sess oauth.Session) (oauth.Token, error) {
	if s.auth == nil {
		return oauth.Token{}, fmt.Errorf("%w: %v", oauth.ErrRefresh, ErrNotConfigured)
	}
	var (
		tok oauth.Token
		err error
	)
	if sess.Token.RefreshToken == "" && s.creds.Complete() {
		tok, err = s.passwordLogin(ctx)
		if err != nil {
			err = fmt.Errorf("%w: %w", oauth.ErrRefresh, err)
		}
	} else {
		tok, err = s.auth.Refresh(ctx, *sess.Token)
	}
	if err != nil {
		s.logger.Warn(ctx, "token refresh failed", logger.Error(err))
		return oauth.Token{}, err
	}
	sess.Token = &tok
	if err := s.sessions.Save(sess); err != nil {
		return oauth.Token{}, err
	}
	s.persist(ctx, tok)
	return tok, nil
}

func (s *Service) reset(ctx context.Context, sessionID string) {
	if sess, ok := s.sessions.Get(sessionID); ok {
		sess.Token = nil
		s.saveSession(ctx, sess)
	}
	if s.tokens != nil {
		if err := s.tokens.Clear(ctx); err != nil {
			s.logger.Warn(ctx, "failed to clear saved tokens", logger.Error(err))
		}
	}
	s.logger.Info(ctx, "session cleared after rejected tokens", logger.String("session", sessionID))
}

// saveSession writes sess back. The session may have expired or been
// dropped by a concurrent logout, which only costs the remembered state.
func (s *Service) saveSession(ctx context.Context, sess oauth.Session) bool {
	if err := s.sessions.Save(sess); err != nil {
		s.logger.Warn(ctx, "failed to save session",
			logger.String("session", sess.ID),
			logger.Error(err),
		)
		return false
	}
	return true
}

// persist saves tokens that can outlive the process. Password logins carry
// no refresh token and are repeated instead.
func (s *Service) persist(ctx context.Context, tok oauth.Token) {
	if s.tokens == nil || !tok.Complete() {
		return
	}
	if err := s.tokens.Save(ctx, tok); err != nil {
		s.logger.Warn(ctx, "failed to save tokens", logger.Error(err))
	}
}

func (s *Service) record(ctx context.Context, r Report) string {
	if s.snapshots == nil {
		return ""
	}
	started := time.Now()
	snap, err := s.snapshots.SaveSnapshot(ctx, repository.Snapshot{
		Year:       r.Year,
		Month:      r.Month,
		RangeStart: r.Range.Start,
		RangeEnd:   r.Range.End,
		BuiltAt:    r.BuiltAt,
		Duration:   r.LoadTime,
		RowCount:   len(r.Rows),
		Warnings:   r.WarningMessages(),
		Rows:       r.Rows,
	})
	metrics.RecordSnapshotLatency(float64(time.Since(started).Milliseconds()))
	if err != nil {
		metrics.RecordSnapshotSave(metrics.OutcomeFailure)
		s.logger.Warn(ctx, "failed to save snapshot", logger.Error(err))
		return ""
	}
	metrics.RecordSnapshotSave(metrics.OutcomeSuccess)
	return snap.ID.String()
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	s.failures.Add(1)
	metrics.RecordDashboardBuild(metrics.OutcomeFailure)
	metrics.RecordErrorByComponent("dashboard", errorType(err))
	s.logger.Error(ctx, "dashboard build failed", logger.Error(err))
}

func (s *Service) defaultQuerier(ctx context.Context, tok oauth.Token) (salesforce.Querier, error) {
	var httpClient *http.Client
	if s.auth != nil {
		httpClient = s.auth.Client(ctx, tok)
	} else {
		httpClient = &http.Client{Transport: bearer{token: tok.AccessToken}}
	}
	return salesforce.NewClient(httpClient, tok.InstanceURL,
		salesforce.WithAPIVersion(s.apiVersion),
		salesforce.WithClientLogger(s.logger.Named("salesforce")),
	)
}

// bearer signs requests when tokens were restored without a provider.
type bearer struct{ token string }

func (b bearer) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+b.token)
	return http.DefaultTransport.RoundTrip(req)
}

// Snapshots lists recent builds.
func (s *Service) Snapshots(ctx context.Context, limit int) ([]repository.Snapshot, error) {
	if s.snapshots == nil {
		return nil, ErrSnapshotsDisabled
	}
	return s.snapshots.ListSnapshots(ctx, limit)
}

// Snapshot returns one recorded build with its rows.
func (s *Service) Snapshot(ctx context.Context, id string) (repository.Snapshot, error) {
	if s.snapshots == nil {
		return repository.Snapshot{}, ErrSnapshotsDisabled
	}
	runID, err := uuid.Parse(id)
	if err != nil {
		return repository.Snapshot{}, repository.ErrNotFound
	}
	return s.snapshots.GetSnapshot(ctx, runID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.Len()
	stats := map[string]interface{}{
		"started":               s.started,
		"oauthConfigured":       s.auth != nil,
		"snapshotsEnabled":      s.snapshots != nil,
		"allowPartial":          s.allowPartial,
		"sessions":              sessions,
		"authenticatedSessions": s.sessions.Authenticated(),
		"codesSeen":             s.codes.Size(),
		"builds":                s.builds.Load(),
		"failures":              s.failures.Load(),
	}
	if !s.lastBuild.IsZero() {
		stats["lastBuild"] = s.lastBuild.UTC().Format(time.RFC3339)
		stats["lastLoadTimeMs"] = s.lastLength.Milliseconds()
	}

	metrics.UpdateActiveSessions(sessions)
	return stats
}

func joinWarnings(ws []salesforce.SourceError) string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		parts = append(parts, w.Source)
	}
	return strings.Join(parts, ", ")
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrReauthenticate):
		return "reauthenticate"
	case errors.Is(err, ErrPartialData):
		return "partial"
	case errors.Is(err, salesforce.ErrQuery):
		return "query"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
