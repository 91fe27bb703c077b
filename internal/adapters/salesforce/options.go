package salesforce

import (
	"github.com/okian/quotaboard/internal/domain/period"
	"github.com/okian/quotaboard/pkg/logger"
)

// DefaultConcurrency bounds the optional queries run at once.
const DefaultConcurrency = 4

// Option configures a Loader.
type Option func(*Loader)

// WithQueries replaces the SOQL builders.
func WithQueries(q Queries) Option {
	return func(l *Loader) {
		l.queries = NewQueries(q.WonStage, q.MeetingKeywords)
	}
}

// WithHistoryMonths sets the historic coverage window length.
func WithHistoryMonths(months int) Option {
	return func(l *Loader) {
		if months > 0 {
			l.historyMonths = months
		}
	}
}

// WithConcurrency bounds how many optional queries run in parallel.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the loader logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Loader) {
		if lg != nil {
			l.logger = lg
		}
	}
}

func defaultLoader(q Querier) *Loader {
	return &Loader{
		querier:       q,
		queries:       NewQueries("", nil),
		historyMonths: period.DefaultHistoryMonths,
		concurrency:   DefaultConcurrency,
		logger:        logger.Nop(),
	}
}
