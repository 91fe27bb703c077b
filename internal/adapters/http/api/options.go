package api

import (
	"time"

	"github.com/okian/quotaboard/pkg/logger"
)

// DefaultSnapshotLimit is the page size of /api/snapshots.
const DefaultSnapshotLimit = 20

// Option configures a Server.
type Option func(*Server)

// WithCookieSecure marks the session cookie Secure.
func WithCookieSecure(secure bool) Option {
	return func(s *Server) {
		s.cookieSecure = secure
	}
}

// WithSnapshotLimit sets the default number of snapshots listed.
func WithSnapshotLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.snapshotLimit = n
		}
	}
}

// WithClock overrides the time source used for default periods.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
