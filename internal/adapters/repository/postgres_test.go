package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/okian/quotaboard/internal/domain/dashboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type testDatabase struct {
	container *postgres.PostgresContainer
	db        *repository.DB
	url       string
}

func setupTestDatabase(t *testing.T) *testDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("quotaboard_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"test":      "quotaboard-repository",
			"test-name": t.Name(),
		}),
	)
	require.NoError(t, err)

	tdb := &testDatabase{container: container}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if tdb.db != nil {
			tdb.db.Close()
		}
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate test container: %v", err)
		}
	})

	tdb.url, err = container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	changed, err := repository.MigrateUp(tdb.url)
	require.NoError(t, err)
	require.True(t, changed)

	tdb.db, err = repository.NewConnection(ctx, tdb.url)
	require.NoError(t, err)
	return tdb
}

func TestMigrations(t *testing.T) {
	tdb := setupTestDatabase(t)

	status, err := repository.GetMigrationStatus(tdb.url)
	require.NoError(t, err)
	assert.True(t, status.Applied)
	assert.False(t, status.Dirty)
	assert.EqualValues(t, 1, status.Version)

	changed, err := repository.MigrateUp(tdb.url)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repository.MigrateDown(tdb.url, 1)
	require.NoError(t, err)
	assert.True(t, changed)

	status, err = repository.GetMigrationStatus(tdb.url)
	require.NoError(t, err)
	assert.False(t, status.Applied)

	_, err = repository.MigrateDown(tdb.url, 0)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	tdb := setupTestDatabase(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	store := repository.NewPostgresStore(tdb.db)

	rows := []dashboard.Row{
		{AEName: "Avery Stone", ManagerName: "Morgan Lee", QuotaAmount: 45000, ClosedWon: 10000, Remainder: 35000,
			PipelineCoverageRatio: dashboard.NoHistoricData, PipelineShouldHave: 175000, OpenPipeline: 100000,
			PipelineGap: -75000, MeetingsNeeded: 35, MeetingsScheduled: 8, MeetingGap: -27},
	}

	first, err := store.SaveSnapshot(ctx, repository.Snapshot{
		Year: 2025, Month: time.March,
		RangeStart: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		BuiltAt:    base,
		Duration:   1500 * time.Millisecond,
		Warnings:   []string{"forecast: salesforce: query failed"},
		Rows:       rows,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, 1, first.RowCount)

	second, err := store.SaveSnapshot(ctx, repository.Snapshot{
		Year: 2025, Month: time.February,
		RangeStart: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		BuiltAt:    base.Add(time.Hour),
	})
	require.NoError(t, err)

	t.Run("list newest first without rows", func(t *testing.T) {
		list, err := store.ListSnapshots(ctx, 10)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, time.February, list[0].Month)
		assert.Empty(t, list[0].Warnings)
		assert.Equal(t, first.ID, list[1].ID)
		assert.Nil(t, list[1].Rows)
		assert.Equal(t, []string{"forecast: salesforce: query failed"}, list[1].Warnings)
		assert.Equal(t, 1500*time.Millisecond, list[1].Duration)
	})

	t.Run("get returns rows", func(t *testing.T) {
		got, err := store.GetSnapshot(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, rows, got.Rows)
		assert.True(t, got.BuiltAt.Equal(base))
		assert.Equal(t, 31, got.RangeEnd.Day())
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.GetSnapshot(ctx, uuid.New())
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("limit validation", func(t *testing.T) {
		_, err := store.ListSnapshots(ctx, 0)
		assert.ErrorIs(t, err, repository.ErrInvalidLimit)
		_, err = store.ListSnapshots(ctx, repository.MaxSnapshotLimit+1)
		assert.ErrorIs(t, err, repository.ErrInvalidLimit)
	})
}
