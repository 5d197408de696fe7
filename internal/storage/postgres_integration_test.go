//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestChatLogPostgresIntegration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("assistant_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/assistant_test?sslmode=disable", host, port.Port())

	db, err := Open(ctx, DriverPostgres, dsn, PoolConfig{MaxOpenConns: 4})
	require.NoError(t, err)
	defer db.Close()

	repo := NewChatLogRepository(db, DriverPostgres)
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx))

	ex := &ChatExchange{Message: "hi there", Reply: "Hello!", Source: "fallback", Kind: "greeting"}
	require.NoError(t, repo.Record(ctx, ex))

	got, err := repo.Get(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, "greeting", got.Kind)

	counts, err := repo.CountBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["fallback"])
}
