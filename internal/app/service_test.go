package service_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	service "github.com/okian/quotaboard/internal/app"
	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/okian/quotaboard/internal/adapters/salesforce"
	"github.com/okian/quotaboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAuth struct {
	mu         sync.Mutex
	exchanged  []string
	refreshes  int
	refreshErr error
	// exchangeFailures fails that many exchanges before succeeding.
	exchangeFailures int
	logins           []oauth.Credentials
	loginErr         error
	onLogin          func()
}

func (f *fakeAuth) AuthCodeURL(state string) string {
	return "https://login.example.com/services/oauth2/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAuth) Exchange(_ context.Context, code string) (oauth.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanged = append(f.exchanged, code)
	if f.exchangeFailures > 0 {
		f.exchangeFailures--
		return oauth.Token{}, fmt.Errorf("%w: connection reset by peer", oauth.ErrExchange)
	}
	return oauth.Token{AccessToken: "access-" + code, RefreshToken: "refresh", InstanceURL: "https://org.example.com"}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, tok oauth.Token) (oauth.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return oauth.Token{}, f.refreshErr
	}
	tok.AccessToken = "fresh"
	return tok, nil
}

func (f *fakeAuth) PasswordLogin(_ context.Context, c oauth.Credentials) (oauth.Token, error) {
	f.mu.Lock()
	f.logins = append(f.logins, c)
	n, err, hook := len(f.logins), f.loginErr, f.onLogin
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return oauth.Token{}, err
	}
	return oauth.Token{AccessToken: fmt.Sprintf("password-%d", n), InstanceURL: "https://org.example.com"}, nil
}

func (f *fakeAuth) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logins)
}

func (f *fakeAuth) Client(context.Context, oauth.Token) *http.Client { return http.DefaultClient }

type memTokens struct {
	mu  sync.Mutex
	tok *oauth.Token
}

func (m *memTokens) Save(_ context.Context, tok oauth.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = &tok
	return nil
}

func (m *memTokens) Load(context.Context) (oauth.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil {
		return oauth.Token{}, repository.ErrNotFound
	}
	return *m.tok, nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tok = nil
	return nil
}

// recordingLogger keeps warning messages.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Info(context.Context, string, ...logger.Field)  {}
func (l *recordingLogger) Error(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Debug(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Fatal(context.Context, string, ...logger.Field) {}
func (l *recordingLogger) Named(string) logger.Logger                     { return l }

func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...logger.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

// clock is a settable time source shared with the session sweeper.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memSnapshots struct {
	mu    sync.Mutex
	saved []repository.Snapshot
}

func (m *memSnapshots) SaveSnapshot(_ context.Context, s repository.Snapshot) (repository.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	m.saved = append(m.saved, s)
	return s, nil
}

func (m *memSnapshots) ListSnapshots(_ context.Context, limit int) ([]repository.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.saved) {
		limit = len(m.saved)
	}
	return append([]repository.Snapshot(nil), m.saved[:limit]...), nil
}

func (m *memSnapshots) GetSnapshot(_ context.Context, id uuid.UUID) (repository.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.saved {
		if s.ID == id {
			return s, nil
		}
	}
	return repository.Snapshot{}, repository.ErrNotFound
}

// org answers queries for one month; "expired" access tokens get a 401.
type org struct {
	tok           oauth.Token
	failForecasts bool
}

func (o org) Query(_ context.Context, soql string) ([]salesforce.Record, error) {
	if o.tok.AccessToken == "expired" {
		return nil, &salesforce.APIError{Status: http.StatusUnauthorized, Code: "INVALID_SESSION_ID", Message: "Session expired or invalid"}
	}
	switch {
	case strings.Contains(soql, "FROM User"):
		return []salesforce.Record{{"Id": "005A", "Name": "Avery Stone", "Manager_Name__c": "Morgan Lee"}}, nil
	case strings.Contains(soql, "IsClosed = false"):
		return []salesforce.Record{{"OwnerId": "005A", "totalAmount": 100000.0}}, nil
	case strings.Contains(soql, "FROM Opportunity") && strings.Contains(soql, "StageName") && strings.Contains(soql, "2025-03-01"):
		return []salesforce.Record{{"OwnerId": "005A", "totalAmount": 10000.0}}, nil
	case strings.Contains(soql, "FROM ForecastingQuota"):
		return []salesforce.Record{{"QuotaOwnerId": "005A", "totalQuota": 45000.0}}, nil
	case strings.Contains(soql, "FROM ForecastingItem") && o.failForecasts:
		return nil, &salesforce.APIError{Status: http.StatusBadRequest, Code: "INVALID_TYPE", Message: "sObject type 'ForecastingItem' is not supported"}
	case strings.Contains(soql, "IsRecurrence = false"):
		return []salesforce.Record{{"OwnerId": "005A", "cnt": 8.0}}, nil
	}
	return nil, nil
}

func orgFactory(failForecasts bool) service.QuerierFactory {
	return func(_ context.Context, tok oauth.Token) (salesforce.Querier, error) {
		return org{tok: tok, failForecasts: failForecasts}, nil
	}
}

func login(ctx context.Context, svc *service.Service, code string) oauth.Session {
	sess := svc.Session(ctx, "")
	authURL, err := svc.BeginLogin(ctx, sess.ID)
	So(err, ShouldBeNil)
	u, err := url.Parse(authURL)
	So(err, ShouldBeNil)
	So(svc.CompleteLogin(ctx, sess.ID, u.Query().Get("state"), code), ShouldBeNil)
	return sess
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then login is disabled", func() {
			So(svc.OAuthConfigured(), ShouldBeFalse)
			_, err := svc.BeginLogin(context.Background(), "any")
			So(errors.Is(err, service.ErrNotConfigured), ShouldBeTrue)
		})

		Convey("Then snapshot history is disabled", func() {
			So(svc.SnapshotsEnabled(), ShouldBeFalse)
			_, err := svc.Snapshots(context.Background(), 10)
			So(errors.Is(err, service.ErrSnapshotsDisabled), ShouldBeTrue)
		})

		Convey("Then stats report an idle service", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["builds"], ShouldEqual, int64(0))
			So(stats["oauthConfigured"], ShouldEqual, false)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithSweepInterval(5 * time.Millisecond))
		So(svc.Start(context.Background()), ShouldBeNil)
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("Then it reports started and stops cleanly", func() {
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service with an OAuth provider and a token store", t, func() {
		auth := &fakeAuth{}
		tokens := &memTokens{}
		svc := service.New(service.WithAuthenticator(auth), service.WithTokenStore(tokens))

		Convey("When the callback carries the wrong state", func() {
			sess := svc.Session(ctx, "")
			_, err := svc.BeginLogin(ctx, sess.ID)
			So(err, ShouldBeNil)
			err = svc.CompleteLogin(ctx, sess.ID, "forged", "code-1")

			Convey("Then the login is rejected without an exchange", func() {
				So(errors.Is(err, service.ErrInvalidState), ShouldBeTrue)
				So(auth.exchanged, ShouldBeEmpty)
			})
		})

		Convey("When the callback is valid", func() {
			sess := login(ctx, svc, "code-1")

			Convey("Then the session holds the tokens and they are persisted", func() {
				got := svc.Session(ctx, sess.ID)
				So(got.ID, ShouldEqual, sess.ID)
				So(got.Authenticated(), ShouldBeTrue)
				So(got.Token.AccessToken, ShouldEqual, "access-code-1")
				So(tokens.tok, ShouldNotBeNil)
				So(tokens.tok.InstanceURL, ShouldEqual, "https://org.example.com")
			})

			Convey("Then a replayed code is not exchanged again", func() {
				other := svc.Session(ctx, "")
				authURL, err := svc.BeginLogin(ctx, other.ID)
				So(err, ShouldBeNil)
				u, _ := url.Parse(authURL)
				err = svc.CompleteLogin(ctx, other.ID, u.Query().Get("state"), "code-1")
				So(errors.Is(err, service.ErrCodeReplayed), ShouldBeTrue)
				So(auth.exchanged, ShouldResemble, []string{"code-1"})
			})

			Convey("Then a new session is restored from the saved tokens", func() {
				restored := svc.Restore(ctx)
				So(restored.ID, ShouldNotEqual, sess.ID)
				So(restored.Authenticated(), ShouldBeTrue)
			})

			Convey("Then logout clears the session and the saved tokens", func() {
				So(svc.Logout(ctx, sess.ID), ShouldBeNil)
				So(tokens.tok, ShouldBeNil)
				So(svc.Session(ctx, sess.ID).Authenticated(), ShouldBeFalse)
			})
		})

		Convey("When the token endpoint fails once", func() {
			auth.exchangeFailures = 1
			sess := svc.Session(ctx, "")
			authURL, err := svc.BeginLogin(ctx, sess.ID)
			So(err, ShouldBeNil)
			u, _ := url.Parse(authURL)
			state := u.Query().Get("state")

			first := svc.CompleteLogin(ctx, sess.ID, state, "code-9")
			second := svc.CompleteLogin(ctx, sess.ID, state, "code-9")

			Convey("Then the same code can be retried", func() {
				So(errors.Is(first, oauth.ErrExchange), ShouldBeTrue)
				So(second, ShouldBeNil)
				So(auth.exchanged, ShouldResemble, []string{"code-9", "code-9"})
				So(svc.Session(ctx, sess.ID).Authenticated(), ShouldBeTrue)
			})

			Convey("Then the redeemed code is still rejected afterwards", func() {
				other := svc.Session(ctx, "")
				authURL, err := svc.BeginLogin(ctx, other.ID)
				So(err, ShouldBeNil)
				u, _ := url.Parse(authURL)
				err = svc.CompleteLogin(ctx, other.ID, u.Query().Get("state"), "code-9")
				So(errors.Is(err, service.ErrCodeReplayed), ShouldBeTrue)
				So(auth.exchanged, ShouldHaveLength, 2)
			})
		})

		Convey("When the callback names an unknown session", func() {
			err := svc.CompleteLogin(ctx, "missing", "state", "code")
			So(errors.Is(err, oauth.ErrSessionNotFound), ShouldBeTrue)
		})
	})
}

func TestService_RestoreSavedTokens(t *testing.T) {
	ctx := context.Background()

	Convey("Given tokens saved by an earlier login", t, func() {
		tokens := &memTokens{tok: &oauth.Token{AccessToken: "saved", RefreshToken: "refresh", InstanceURL: "https://org.example.com"}}

		Convey("When restoring is off", func() {
			svc := service.New(service.WithAuthenticator(&fakeAuth{}), service.WithTokenStore(tokens))

			Convey("Then a new visitor starts signed out", func() {
				So(svc.Session(ctx, "").Authenticated(), ShouldBeFalse)
				So(svc.Session(ctx, "unknown").Authenticated(), ShouldBeFalse)
			})

			Convey("Then an explicit restore still uses the saved tokens", func() {
				sess := svc.Restore(ctx)
				So(sess.Authenticated(), ShouldBeTrue)
				So(sess.Token.AccessToken, ShouldEqual, "saved")
			})
		})

		Convey("When restoring is on", func() {
			svc := service.New(
				service.WithAuthenticator(&fakeAuth{}),
				service.WithTokenStore(tokens),
				service.WithRestoreSavedTokens(true),
			)

			Convey("Then a new visitor is signed in", func() {
				sess := svc.Session(ctx, "")
				So(sess.Authenticated(), ShouldBeTrue)
				So(svc.Session(ctx, sess.ID).Token.AccessToken, ShouldEqual, "saved")
			})
		})
	})
}

func TestService_PasswordLogin(t *testing.T) {
	ctx := context.Background()
	creds := oauth.Credentials{Username: "ops@acme.com", Password: "hunter2", SecurityToken: "XYZ"}

	Convey("Given integration user credentials and no saved tokens", t, func() {
		auth := &fakeAuth{}
		tokens := &memTokens{}
		svc := service.New(
			service.WithAuthenticator(auth),
			service.WithTokenStore(tokens),
			service.WithPasswordCredentials(creds),
			service.WithQuerierFactory(orgFactory(false)),
		)

		Convey("When a session is restored", func() {
			sess := svc.Restore(ctx)

			Convey("Then it signs in with the password flow", func() {
				So(sess.Authenticated(), ShouldBeTrue)
				So(sess.Token.AccessToken, ShouldEqual, "password-1")
				So(auth.logins, ShouldResemble, []oauth.Credentials{creds})
			})

			Convey("Then the token is not written to the token store", func() {
				So(tokens.tok, ShouldBeNil)
			})

			Convey("Then the dashboard builds", func() {
				report, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)
				So(err, ShouldBeNil)
				So(report.Rows, ShouldHaveLength, 1)
			})
		})

		Convey("When saved tokens exist", func() {
			tokens.tok = &oauth.Token{AccessToken: "saved", RefreshToken: "refresh", InstanceURL: "https://org.example.com"}
			sess := svc.Restore(ctx)

			Convey("Then they win over the password flow", func() {
				So(sess.Token.AccessToken, ShouldEqual, "saved")
				So(auth.loginCount(), ShouldEqual, 0)
			})
		})

		Convey("When the password is rejected", func() {
			auth.loginErr = oauth.ErrPasswordLogin
			sess := svc.Restore(ctx)

			Convey("Then the session stays signed out", func() {
				So(sess.Authenticated(), ShouldBeFalse)
				_, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)
				So(errors.Is(err, service.ErrNotAuthenticated), ShouldBeTrue)
			})
		})
	})

	Convey("Given a password session whose access token has expired", t, func() {
		auth := &fakeAuth{}
		svc := service.New(
			service.WithAuthenticator(auth),
			service.WithPasswordCredentials(creds),
			service.WithRestoreSavedTokens(true),
			service.WithQuerierFactory(func(ctx context.Context, tok oauth.Token) (salesforce.Querier, error) {
				if tok.AccessToken == "password-1" {
					tok.AccessToken = "expired"
				}
				return orgFactory(false)(ctx, tok)
			}),
		)
		sess := svc.Session(ctx, "")
		So(sess.Token.AccessToken, ShouldEqual, "password-1")

		Convey("When the dashboard is built", func() {
			report, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then it signs in again instead of refreshing", func() {
				So(err, ShouldBeNil)
				So(report.Rows, ShouldHaveLength, 1)
				So(auth.refreshes, ShouldEqual, 0)
				So(auth.loginCount(), ShouldEqual, 2)
				So(svc.Session(ctx, sess.ID).Token.AccessToken, ShouldEqual, "password-2")
			})
		})

		Convey("When the second sign-in is rejected", func() {
			auth.loginErr = oauth.ErrPasswordLogin
			_, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then the caller must sign in again", func() {
				So(errors.Is(err, service.ErrReauthenticate), ShouldBeTrue)
				So(svc.Session(ctx, sess.ID).Authenticated(), ShouldBeFalse)
			})
		})
	})
}

func TestService_SessionSaveFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a session that is swept while it is being restored", t, func() {
		clk := &clock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
		rec := &recordingLogger{}
		auth := &fakeAuth{}
		svc := service.New(
			service.WithAuthenticator(auth),
			service.WithPasswordCredentials(oauth.Credentials{Username: "ops@acme.com", Password: "hunter2"}),
			service.WithSessionTTL(time.Hour),
			service.WithSweepInterval(time.Millisecond),
			service.WithClock(clk.Now),
			service.WithLogger(rec),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		auth.onLogin = func() {
			clk.Advance(2 * time.Hour)
			deadline := time.Now().Add(2 * time.Second)
			for svc.GetStats()["sessions"] != 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
		}
		sess := svc.Restore(ctx)

		Convey("Then the failed save is logged", func() {
			So(rec.warnings(), ShouldContain, "failed to save session")
			So(svc.Session(ctx, sess.ID).ID, ShouldNotEqual, sess.ID)
		})
	})
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()

	Convey("Given a signed-in session", t, func() {
		auth := &fakeAuth{}
		tokens := &memTokens{}
		snaps := &memSnapshots{}
		svc := service.New(
			service.WithAuthenticator(auth),
			service.WithTokenStore(tokens),
			service.WithSnapshotStore(snaps),
			service.WithQuerierFactory(orgFactory(false)),
		)
		sess := login(ctx, svc, "code-1")

		Convey("When the dashboard is built", func() {
			report, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then the rows are derived from the org", func() {
				So(err, ShouldBeNil)
				So(report.Partial(), ShouldBeFalse)
				So(report.Rows, ShouldHaveLength, 1)
				row := report.Rows[0]
				So(row.AEName, ShouldEqual, "Avery Stone")
				So(row.Remainder, ShouldEqual, 35000)
				So(row.PipelineShouldHave, ShouldEqual, 175000)
				So(row.PipelineGap, ShouldEqual, -75000)
				So(row.MeetingsNeeded, ShouldEqual, 35)
				So(row.MeetingGap, ShouldEqual, -27)
				So(report.Range.StartDate(), ShouldEqual, "2025-03-01")
			})

			Convey("Then a snapshot is recorded", func() {
				So(report.SnapshotID, ShouldNotBeEmpty)
				list, err := svc.Snapshots(ctx, 10)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].RowCount, ShouldEqual, 1)

				snap, err := svc.Snapshot(ctx, report.SnapshotID)
				So(err, ShouldBeNil)
				So(snap.Month, ShouldEqual, time.March)
			})

			Convey("Then the period is remembered on the session", func() {
				got := svc.Session(ctx, sess.ID)
				So(got.Year, ShouldEqual, 2025)
				So(got.Month, ShouldEqual, time.March)
				So(svc.GetStats()["builds"], ShouldEqual, int64(1))
			})
		})

		Convey("When the month is invalid", func() {
			_, err := svc.Dashboard(ctx, sess.ID, 2025, 13)
			So(err, ShouldNotBeNil)
		})

		Convey("When the session is unknown or signed out", func() {
			_, err := svc.Dashboard(ctx, "missing", 2025, time.March)
			So(errors.Is(err, oauth.ErrSessionNotFound), ShouldBeTrue)

			So(svc.Logout(ctx, sess.ID), ShouldBeNil)
			fresh := svc.Session(ctx, sess.ID)
			So(fresh.ID, ShouldNotEqual, sess.ID)
			_, err = svc.Dashboard(ctx, fresh.ID, 2025, time.March)
			So(errors.Is(err, service.ErrNotAuthenticated), ShouldBeTrue)
		})
	})

	Convey("Given an org where forecasting is disabled", t, func() {
		auth := &fakeAuth{}

		Convey("When partial dashboards are allowed", func() {
			svc := service.New(service.WithAuthenticator(auth), service.WithQuerierFactory(orgFactory(true)))
			sess := login(ctx, svc, "code-2")
			report, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then the report carries a warning", func() {
				So(err, ShouldBeNil)
				So(report.Partial(), ShouldBeTrue)
				So(report.WarningMessages()[0], ShouldStartWith, salesforce.SourceForecast)
				So(report.Rows[0].ForecastAmount, ShouldEqual, 0)
			})
		})

		Convey("When partial dashboards are not allowed", func() {
			svc := service.New(
				service.WithAuthenticator(auth),
				service.WithQuerierFactory(orgFactory(true)),
				service.WithAllowPartial(false),
			)
			sess := login(ctx, svc, "code-3")
			_, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then the build fails", func() {
				So(errors.Is(err, service.ErrPartialData), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, salesforce.SourceForecast)
				So(svc.GetStats()["failures"], ShouldEqual, int64(1))
			})
		})
	})

	Convey("Given saved tokens whose access token has expired", t, func() {
		tokens := &memTokens{tok: &oauth.Token{AccessToken: "expired", RefreshToken: "refresh", InstanceURL: "https://org.example.com"}}

		Convey("When the refresh succeeds", func() {
			auth := &fakeAuth{}
			svc := service.New(service.WithAuthenticator(auth), service.WithTokenStore(tokens), service.WithQuerierFactory(orgFactory(false)))
			sess := svc.Restore(ctx)
			report, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then the build retries with the fresh token", func() {
				So(err, ShouldBeNil)
				So(report.Rows, ShouldHaveLength, 1)
				So(auth.refreshes, ShouldEqual, 1)
				So(tokens.tok.AccessToken, ShouldEqual, "fresh")
				So(svc.Session(ctx, sess.ID).Token.AccessToken, ShouldEqual, "fresh")
			})
		})

		Convey("When the refresh is rejected", func() {
			auth := &fakeAuth{refreshErr: oauth.ErrRefresh}
			svc := service.New(service.WithAuthenticator(auth), service.WithTokenStore(tokens), service.WithQuerierFactory(orgFactory(false)))
			sess := svc.Restore(ctx)
			_, err := svc.Dashboard(ctx, sess.ID, 2025, time.March)

			Convey("Then the session and saved tokens are cleared", func() {
				So(errors.Is(err, service.ErrReauthenticate), ShouldBeTrue)
				So(tokens.tok, ShouldBeNil)
				So(svc.Session(ctx, sess.ID).Authenticated(), ShouldBeFalse)
			})
		})
	})
}
