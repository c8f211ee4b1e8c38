package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/model"
)

const dayColumns = `day, total_players, saint_winner_position, devil_winner_position,
	saint_winner_found, devil_winner_found, updated_at`

// PostgresStore implements Store on PostgreSQL.
// Plays on one date serialize on the daily_stats row lock; submissions of one
// identity serialize on a transaction scoped advisory lock.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore. The pool stays owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func parseDate(date string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d, nil
}

func scanDay(row pgx.Row) (*model.DailyStats, error) {
	var (
		stats model.DailyStats
		day   time.Time
	)
	err := row.Scan(
		&day,
		&stats.TotalPlayers,
		&stats.SaintWinnerPosition,
		&stats.DevilWinnerPosition,
		&stats.SaintWinnerFound,
		&stats.DevilWinnerFound,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDayNotFound
		}
		return nil, err
	}
	stats.Date = day.Format(model.DateLayout)
	return &stats, nil
}

// GetOrCreateDay implements Store.
func (s *PostgresStore) GetOrCreateDay(ctx context.Context, date string, pair PairFunc) (*model.DailyStats, bool, error) {
	stats, err := s.GetDay(ctx, date)
	if err == nil {
		return stats, false, nil
	}
	if !errors.Is(err, ErrDayNotFound) {
		return nil, false, err
	}

	d, err := parseDate(date)
	if err != nil {
		return nil, false, err
	}
	saintPos, devilPos := pair()
	if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
		return nil, false, err
	}

	stats, err = scanDay(s.pool.QueryRow(ctx, `
		INSERT INTO daily_stats (day, saint_winner_position, devil_winner_position, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (day) DO NOTHING
		RETURNING `+dayColumns,
		d, saintPos, devilPos,
	))
	if err == nil {
		return stats, true, nil
	}
	if !errors.Is(err, ErrDayNotFound) {
		return nil, false, fmt.Errorf("failed to create daily stats: %w", err)
	}

	// Lost the insert race; the winner's row is authoritative.
	stats, err = s.GetDay(ctx, date)
	return stats, false, err
}

// GetDay implements Store.
func (s *PostgresStore) GetDay(ctx context.Context, date string) (*model.DailyStats, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	return scanDay(s.pool.QueryRow(ctx,
		`SELECT `+dayColumns+` FROM daily_stats WHERE day = $1`, d))
}

// Atomic implements Store.
func (s *PostgresStore) Atomic(ctx context.Context, date, identityKey string, fn func(tx Tx) error) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, identityKey); err != nil {
		return fmt.Errorf("failed to lock identity: %w", err)
	}

	if err := fn(&postgresTx{tx: tx, date: date, day: d, key: identityKey}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetPositions implements Store.
func (s *PostgresStore) SetPositions(ctx context.Context, date string, saintPos, devilPos int) (*model.DailyStats, error) {
	if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
		return nil, err
	}
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	stats, err := scanDay(s.pool.QueryRow(ctx, `
		INSERT INTO daily_stats (day, saint_winner_position, devil_winner_position, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (day) DO UPDATE SET
			saint_winner_position = EXCLUDED.saint_winner_position,
			devil_winner_position = EXCLUDED.devil_winner_position,
			saint_winner_found = FALSE,
			devil_winner_found = FALSE,
			updated_at = NOW()
		RETURNING `+dayColumns,
		d, saintPos, devilPos,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to set winner positions: %w", err)
	}
	return stats, nil
}

// ResetAll implements Store. TRUNCATE waits for in-flight plays to commit.
func (s *PostgresStore) ResetAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE daily_stats, play_records`); err != nil {
		return fmt.Errorf("failed to reset lottery state: %w", err)
	}
	return nil
}

// PurgePlayRecords implements Store.
func (s *PostgresStore) PurgePlayRecords(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM play_records WHERE last_played_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge play records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return nil
}

type postgresTx struct {
	tx   pgx.Tx
	date string
	day  time.Time
	key  string
}

func (t *postgresTx) AllocateNext(ctx context.Context, date string) (int, *model.DailyStats, error) {
	if date != t.date {
		return 0, nil, ErrOutOfScope
	}
	after, err := scanDay(t.tx.QueryRow(ctx, `
		UPDATE daily_stats
		SET total_players = total_players + 1, updated_at = NOW()
		WHERE day = $1
		RETURNING `+dayColumns,
		t.day,
	))
	if err != nil {
		return 0, nil, err
	}
	before := after.Clone()
	before.TotalPlayers--
	return after.TotalPlayers, before, nil
}

func (t *postgresTx) MarkWinnerFound(ctx context.Context, date string, winner model.WinnerType) error {
	if date != t.date {
		return ErrOutOfScope
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE daily_stats
		SET saint_winner_found = saint_winner_found OR $2,
			devil_winner_found = devil_winner_found OR $3,
			updated_at = NOW()
		WHERE day = $1`,
		t.day, winner == model.WinnerSaint, winner == model.WinnerDevil,
	)
	if err != nil {
		return fmt.Errorf("failed to mark winner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDayNotFound
	}
	return nil
}

func (t *postgresTx) LastPlayed(ctx context.Context, key string) (time.Time, bool, error) {
	if key != t.key {
		return time.Time{}, false, ErrOutOfScope
	}
	var at time.Time
	err := t.tx.QueryRow(ctx,
		`SELECT last_played_at FROM play_records WHERE identity_key = $1`, key,
	).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read play record: %w", err)
	}
	return at, true, nil
}

func (t *postgresTx) RecordPlay(ctx context.Context, key string, at time.Time) error {
	if key != t.key {
		return ErrOutOfScope
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO play_records (identity_key, last_played_at)
		VALUES ($1, $2)
		ON CONFLICT (identity_key) DO UPDATE SET last_played_at = EXCLUDED.last_played_at`,
		key, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}
