package service

import (
	"context"
	"time"

	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/okian/quotaboard/internal/adapters/salesforce"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/okian/quotaboard/internal/domain/dedupe"
	"github.com/okian/quotaboard/pkg/logger"
)

// QuerierFactory opens a query client for a token.
type QuerierFactory func(ctx context.Context, tok oauth.Token) (salesforce.Querier, error)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithAuthenticator sets the OAuth provider. Without one, login is disabled.
func WithAuthenticator(a Authenticator) Option {
	return func(s *Service) {
		if a != nil {
			s.auth = a
		}
	}
}

// WithQuerierFactory overrides how query clients are created.
func WithQuerierFactory(f QuerierFactory) Option {
	return func(s *Service) {
		if f != nil {
			s.newQuerier = f
		}
	}
}

// WithAPIVersion sets the REST API version used by the default query client.
func WithAPIVersion(version string) Option {
	return func(s *Service) {
		if version != "" {
			s.apiVersion = version
		}
	}
}

// WithTokenStore persists tokens between runs.
func WithTokenStore(ts repository.TokenStore) Option {
	return func(s *Service) {
		if ts != nil {
			s.tokens = ts
		}
	}
}

// WithPasswordCredentials enables the username-password login used when no
// saved tokens exist. It needs an authenticator that supports the flow.
func WithPasswordCredentials(c oauth.Credentials) Option {
	return func(s *Service) {
		s.creds = c
	}
}

// WithRestoreSavedTokens lets sessions created for unknown visitors start
// signed in with the saved tokens or the password login.
func WithRestoreSavedTokens(restore bool) Option {
	return func(s *Service) {
		s.restoreSaved = restore
	}
}

// WithSnapshotStore records every successful build.
func WithSnapshotStore(ss repository.SnapshotStore) Option {
	return func(s *Service) {
		if ss != nil {
			s.snapshots = ss
		}
	}
}

// WithCodeGuard sets the deduper used to reject replayed authorization codes.
func WithCodeGuard(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.codes = d
		}
	}
}

// WithBuilder sets the Row Builder.
func WithBuilder(b *dashboard.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithLoaderOptions are passed to every salesforce.Loader.
func WithLoaderOptions(opts ...salesforce.Option) Option {
	return func(s *Service) {
		s.loaderOpts = append(s.loaderOpts, opts...)
	}
}

// WithAllowPartial controls whether optional source failures still produce a dashboard.
func WithAllowPartial(allow bool) Option {
	return func(s *Service) {
		s.allowPartial = allow
	}
}

// WithSessionTTL sets how long idle sessions live.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithSweepInterval sets how often idle sessions are dropped.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
