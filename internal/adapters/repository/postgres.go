package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/quotaboard/pkg/logger"
)

// DB represents a database connection pool.
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool in UTC and verifies it with a ping.
func NewConnection(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// PostgresStore is a SnapshotStore on Postgres.
type PostgresStore struct {
	db     *DB
	logger logger.Logger
	now    func() time.Time
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for build times.
func WithClock(now func() time.Time) Option {
	return func(s *PostgresStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPostgresStore returns a store on db. The schema must be migrated.
func NewPostgresStore(db *DB, opts ...Option) *PostgresStore {
	s := &PostgresStore{db: db, logger: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveSnapshot inserts s.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap Snapshot) (Snapshot, error) {
	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}
	if snap.BuiltAt.IsZero() {
		snap.BuiltAt = s.now()
	}
	snap.BuiltAt = snap.BuiltAt.UTC().Truncate(time.Microsecond)
	snap.RowCount = len(snap.Rows)
	if snap.Warnings == nil {
		snap.Warnings = []string{}
	}

	warnings, err := json.Marshal(snap.Warnings)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode warnings: %w", err)
	}
	rows, err := json.Marshal(snap.Rows)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode rows: %w", err)
	}

	const q = `
		INSERT INTO dashboard_snapshots
			(id, period_year, period_month, range_start, range_end, built_at, duration_ms, row_count, warnings, rows)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = s.db.Exec(ctx, q,
		snap.ID.String(), snap.Year, int(snap.Month), snap.RangeStart, snap.RangeEnd,
		snap.BuiltAt, snap.Duration.Milliseconds(), snap.RowCount, warnings, rows)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}

	s.logger.Debug(ctx, "snapshot saved",
		logger.String("id", snap.ID.String()), logger.Int("rows", snap.RowCount))
	return snap, nil
}

// ListSnapshots returns up to limit builds, newest first.
func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]Snapshot, error) {
	if err := validateLimit(limit); err != nil {
		return nil, err
	}

	const q = `
		SELECT id::text, period_year, period_month, range_start, range_end, built_at, duration_ms, row_count, warnings
		FROM dashboard_snapshots
		ORDER BY built_at DESC, id
		LIMIT $1`
	rows, err := s.db.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

// GetSnapshot returns one build including its rows.
func (s *PostgresStore) GetSnapshot(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	const q = `
		SELECT id::text, period_year, period_month, range_start, range_end, built_at, duration_ms, row_count, warnings, rows
		FROM dashboard_snapshots
		WHERE id = $1`
	snap, err := scanSnapshot(s.db.QueryRow(ctx, q, id.String()), true)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return snap, err
}

func scanSnapshot(row pgx.Row, withRows bool) (Snapshot, error) {
	var (
		snap               Snapshot
		id                 string
		month              int
		durationMs         int64
		warnings, rowsJSON []byte
	)
	dest := []any{&id, &snap.Year, &month, &snap.RangeStart, &snap.RangeEnd, &snap.BuiltAt, &durationMs, &snap.RowCount, &warnings}
	if withRows {
		dest = append(dest, &rowsJSON)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse snapshot id: %w", err)
	}
	snap.ID = parsed
	snap.Month = time.Month(month)
	snap.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal(warnings, &snap.Warnings); err != nil {
		return Snapshot{}, fmt.Errorf("decode warnings: %w", err)
	}
	if withRows {
		if err := json.Unmarshal(rowsJSON, &snap.Rows); err != nil {
			return Snapshot{}, fmt.Errorf("decode rows: %w", err)
		}
	}
	return snap, nil
}
