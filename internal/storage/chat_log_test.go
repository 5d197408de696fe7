package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteRepo(t *testing.T) (*ChatLogRepository, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, DriverSQLite, ":memory:", PoolConfig{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewChatLogRepository(db, DriverSQLite)
	require.NoError(t, repo.Migrate(ctx))
	return repo, db
}

func TestChatLogRecordAndGet(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepo(t)

	ex := &ChatExchange{
		Message:   "What are your office hours?",
		Reply:     "Monday to Friday, 9:00 to 18:00.",
		Source:    "fallback",
		Kind:      "section",
		SectionID: "contact",
		Score:     9,
		LatencyMS: 3,
	}
	require.NoError(t, repo.Record(ctx, ex))
	assert.NotEqual(t, uuid.Nil, ex.ID)
	assert.False(t, ex.CreatedAt.IsZero())

	got, err := repo.Get(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, ex.ID, got.ID)
	assert.Equal(t, ex.Message, got.Message)
	assert.Equal(t, ex.Reply, got.Reply)
	assert.Equal(t, "contact", got.SectionID)
	assert.Equal(t, 9, got.Score)
	assert.False(t, got.Cached)
	assert.WithinDuration(t, ex.CreatedAt, got.CreatedAt, time.Second)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChatLogRecentAndCounts(t *testing.T) {
	ctx := context.Background()
	repo, _ := newSQLiteRepo(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []ChatExchange{
		{Message: "one", Reply: "r1", Source: "fallback", Kind: "generic", CreatedAt: base},
		{Message: "two", Reply: "r2", Source: "ai", Provider: "groq", Cached: true, CreatedAt: base.Add(time.Minute)},
		{Message: "three", Reply: "r3", Source: "ai", Provider: "groq", CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range entries {
		require.NoError(t, repo.Record(ctx, &entries[i]))
	}

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Message)
	assert.Equal(t, "two", recent[1].Message)
	assert.True(t, recent[1].Cached)

	counts, err := repo.CountBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ai": 2, "fallback": 1}, counts)
}

func TestMigrateIsIdempotent(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	assert.NoError(t, repo.Migrate(context.Background()))
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn", PoolConfig{})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	repo := NewChatLogRepository(nil, "mysql")
	assert.ErrorIs(t, repo.Migrate(context.Background()), ErrUnsupportedDriver)
}
