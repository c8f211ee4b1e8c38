// Package db provides PostgreSQL connection management for the lottery store.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/config"
)

// ApplicationName identifies lottery sessions in pg_stat_activity.
const ApplicationName = "saint-devil-lottery"

// Session and pool settings for play transactions.
const (
	// idleInTxTimeout ends sessions that keep a date row locked mid-transaction.
	idleInTxTimeout    = "15s"
	defaultConnTimeout = 10 * time.Second
	defaultLifetime    = time.Hour
	defaultIdleTime    = 30 * time.Minute
	healthCheckPeriod  = 30 * time.Second
	minIdleConns       = 2
)

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to PostgreSQL. Sessions run in timezone so that NOW() and
// date casts agree with the lottery day boundary.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig, timezone string) (*Pool, error) {
	poolConfig, err := buildPoolConfig(cfg, timezone)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", poolConfig.MaxConns).
		Str("timezone", poolConfig.ConnConfig.RuntimeParams["timezone"]).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")

	return &Pool{Pool: pool}, nil
}

// buildPoolConfig turns the database section into pool settings.
func buildPoolConfig(cfg *config.DatabaseConfig, timezone string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	// plays on one date serialize on its row, so a small warm floor is enough
	poolConfig.MinConns = min(int32(minIdleConns), poolConfig.MaxConns)

	poolConfig.ConnConfig.ConnectTimeout = durationOr(cfg.ConnectTimeout, defaultConnTimeout)
	poolConfig.MaxConnLifetime = durationOr(cfg.MaxConnLifetime, defaultLifetime)
	poolConfig.MaxConnIdleTime = durationOr(cfg.MaxConnIdleTime, defaultIdleTime)
	poolConfig.HealthCheckPeriod = healthCheckPeriod

	if timezone == "" {
		timezone = "UTC"
	}
	params := poolConfig.ConnConfig.RuntimeParams
	params["timezone"] = timezone
	params["application_name"] = ApplicationName
	params["idle_in_transaction_session_timeout"] = idleInTxTimeout

	return poolConfig, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Close closes the connection pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("PostgreSQL connection pool closed")
	}
}

// HealthCheck pings the database.
func (p *Pool) HealthCheck(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
