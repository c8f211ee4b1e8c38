package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// schema is idempotent; Migrate runs it on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_stats (
		day DATE PRIMARY KEY,
		total_players INTEGER NOT NULL DEFAULT 0 CHECK (total_players >= 0),
		saint_winner_position INTEGER NOT NULL CHECK (saint_winner_position > 0),
		devil_winner_position INTEGER NOT NULL CHECK (devil_winner_position > 0),
		saint_winner_found BOOLEAN NOT NULL DEFAULT FALSE,
		devil_winner_found BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT distinct_winner_positions CHECK (saint_winner_position <> devil_winner_position)
	)`,
	`CREATE TABLE IF NOT EXISTS play_records (
		identity_key TEXT PRIMARY KEY,
		last_played_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_play_records_last_played_at ON play_records (last_played_at)`,
}

// Migrate applies the lottery schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("Database schema applied")
	return nil
}
