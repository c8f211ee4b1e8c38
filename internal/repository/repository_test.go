// Integration tests for the PostgreSQL and Redis stores.
// Containers are started with testcontainers-go; tests skip without Docker.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"saint-devil-lottery/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container with the lottery schema.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// setupTestRedis starts a Redis container and returns a client for it.
// Skips the test if Docker is not available.
func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())

	cleanup := func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	}

	return client, cleanup
}

func TestPostgresStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPostgresStore(pool)
	runStoreContract(t, func(t *testing.T) Store {
		require.NoError(t, store.ResetAll(context.Background()))
		return store
	})
}

func TestRedisStore(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, RedisStoreConfig{Prefix: "lottery-test"})
	runStoreContract(t, func(t *testing.T) Store {
		require.NoError(t, store.ResetAll(context.Background()))
		return store
	})
}

func TestRedisStoreResetDropsOldGenerationKeys(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	assertResetDropsOldGenerationKeys(t, client)
}

// assertResetDropsOldGenerationKeys checks that ResetAll bumps the generation
// and removes every key of the previous one.
func assertResetDropsOldGenerationKeys(t *testing.T, client *redis.Client) {
	t.Helper()

	ctx := context.Background()
	store := NewRedisStore(client, RedisStoreConfig{Prefix: "gen-test"})

	_, _, err := store.GetOrCreateDay(ctx, testDate, fixedPair(3, 7))
	require.NoError(t, err)
	require.NoError(t, store.Atomic(ctx, testDate, "5512345678|10.0.0.1", func(tx Tx) error {
		return tx.RecordPlay(ctx, "5512345678|10.0.0.1", time.Now())
	}))

	keys, err := client.Keys(ctx, "gen-test:0:*").Result()
	require.NoError(t, err)
	require.Len(t, keys, 2)

	require.NoError(t, store.ResetAll(ctx))

	keys, err = client.Keys(ctx, "gen-test:0:*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)

	gen, err := client.Get(ctx, "gen-test:gen").Int64()
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)
}
