// Package repository persists OAuth tokens and dashboard snapshot history.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/okian/quotaboard/internal/adapters/oauth"
	"github.com/okian/quotaboard/internal/domain/dashboard"
)

// MaxSnapshotLimit caps ListSnapshots.
const MaxSnapshotLimit = 500

// TokenStore keeps one set of OAuth tokens between runs.
type TokenStore interface {
	// Save persists tok. Incomplete tokens return ErrInvalidToken.
	Save(ctx context.Context, tok oauth.Token) error
	// Load returns ErrNotFound when nothing usable is stored.
	Load(ctx context.Context) (oauth.Token, error)
	// Clear removes stored tokens; clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Snapshot is one recorded dashboard build.
type Snapshot struct {
	ID         uuid.UUID       `json:"id"`
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	RangeStart time.Time       `json:"range_start"`
	RangeEnd   time.Time       `json:"range_end"`
	BuiltAt    time.Time       `json:"built_at"`
	Duration   time.Duration   `json:"duration_ns"`
	RowCount   int             `json:"row_count"`
	Warnings   []string        `json:"warnings"`
	Rows       []dashboard.Row `json:"rows,omitempty"`
}

// SnapshotStore records dashboard builds.
type SnapshotStore interface {
	// SaveSnapshot stores s, assigning an id and build time when unset.
	SaveSnapshot(ctx context.Context, s Snapshot) (Snapshot, error)
	// ListSnapshots returns the newest builds first, without rows.
	ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error)
	// GetSnapshot returns one build with its rows, or ErrNotFound.
	GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error)
}

func validateLimit(limit int) error {
	if limit <= 0 || limit > MaxSnapshotLimit {
		return ErrInvalidLimit
	}
	return nil
}
