package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/config"
	"saint-devil-lottery/internal/pkg/db"
	"saint-devil-lottery/internal/repository"
)

// storeBackend is the selected Store plus its health check and cleanup.
type storeBackend struct {
	store  repository.Store
	health func(ctx context.Context) error
	close  func()
}

// openStore connects the backend named by storage.driver.
func openStore(ctx context.Context, cfg *config.Config) (*storeBackend, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, &cfg.Database, cfg.Lottery.Timezone)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx, pool.Pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("failed to run database migrations: %w", err)
			}
		}
		return &storeBackend{
			store:  repository.NewPostgresStore(pool.Pool),
			health: pool.HealthCheck,
			close:  pool.Close,
		}, nil

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

		store := repository.NewRedisStore(client, repository.RedisStoreConfig{
			Prefix:     cfg.Redis.Prefix,
			PlayTTL:    cfg.Lottery.Window,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		return &storeBackend{
			store: store,
			health: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: func() {
				if err := store.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close Redis client")
				}
			},
		}, nil

	default:
		log.Warn().Msg("Using in-memory storage, state is lost on restart")
		store := repository.NewMemoryStore()
		return &storeBackend{
			store: store,
			close: func() { _ = store.Close() },
		}, nil
	}
}
