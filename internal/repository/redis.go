package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/model"
)

// Hash fields of a day key.
const (
	fieldTotal      = "total"
	fieldSaint      = "saint"
	fieldDevil      = "devil"
	fieldSaintFound = "saint_found"
	fieldDevilFound = "devil_found"
	fieldUpdatedAt  = "updated_at"
)

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	// Prefix namespaces every key of the store.
	Prefix string

	// PlayTTL expires play records. It must not be shorter than the rate limit window.
	PlayTTL time.Duration

	// MaxRetries bounds optimistic transaction retries. Zero retries until
	// the context is done.
	MaxRetries int
}

// Backoff between optimistic transaction attempts.
const (
	retryInitialInterval = time.Millisecond
	retryMaxInterval     = 50 * time.Millisecond
)

// RedisStore implements Store on Redis with WATCH/MULTI transactions.
// Keys live under a generation number; ResetAll bumps the generation so
// every in-flight transaction aborts and later ones see an empty state.
type RedisStore struct {
	client *redis.Client
	cfg    RedisStoreConfig
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(client *redis.Client, cfg RedisStoreConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "lottery"
	}
	if cfg.PlayTTL <= 0 {
		cfg.PlayTTL = lottery.DefaultWindow
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &RedisStore{client: client, cfg: cfg}
}

func (s *RedisStore) genKey() string {
	return s.cfg.Prefix + ":gen"
}

func (s *RedisStore) dayKey(gen int64, date string) string {
	return fmt.Sprintf("%s:%d:day:%s", s.cfg.Prefix, gen, date)
}

func (s *RedisStore) playKey(gen int64, key string) string {
	return fmt.Sprintf("%s:%d:play:%s", s.cfg.Prefix, gen, key)
}

func readGen(ctx context.Context, c redis.Cmdable, key string) (int64, error) {
	gen, err := c.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func readDay(ctx context.Context, c redis.Cmdable, key, date string) (*model.DailyStats, error) {
	fields, err := c.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrDayNotFound
	}
	return decodeDay(date, fields)
}

func decodeDay(date string, fields map[string]string) (*model.DailyStats, error) {
	stats := &model.DailyStats{Date: date}
	var err error
	if stats.TotalPlayers, err = strconv.Atoi(fields[fieldTotal]); err != nil {
		return nil, fmt.Errorf("corrupt day %s: %w", date, err)
	}
	if stats.SaintWinnerPosition, err = strconv.Atoi(fields[fieldSaint]); err != nil {
		return nil, fmt.Errorf("corrupt day %s: %w", date, err)
	}
	if stats.DevilWinnerPosition, err = strconv.Atoi(fields[fieldDevil]); err != nil {
		return nil, fmt.Errorf("corrupt day %s: %w", date, err)
	}
	stats.SaintWinnerFound = fields[fieldSaintFound] == "1"
	stats.DevilWinnerFound = fields[fieldDevilFound] == "1"
	if ts := fields[fieldUpdatedAt]; ts != "" {
		if stats.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("corrupt day %s: %w", date, err)
		}
	}
	return stats, nil
}

func encodeDay(stats *model.DailyStats) map[string]any {
	return map[string]any{
		fieldTotal:      stats.TotalPlayers,
		fieldSaint:      stats.SaintWinnerPosition,
		fieldDevil:      stats.DevilWinnerPosition,
		fieldSaintFound: boolField(stats.SaintWinnerFound),
		fieldDevilFound: boolField(stats.DevilWinnerFound),
		fieldUpdatedAt:  stats.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// watch runs fn under WATCH on the generation key, retrying lost races with
// jittered exponential backoff until ctx is done or MaxRetries is reached.
// fn receives the current generation and may watch further keys itself.
func (s *RedisStore) watch(ctx context.Context, fn func(tx *redis.Tx, gen int64) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval
	policy.MaxElapsedTime = 0

	var b backoff.BackOff = policy
	if s.cfg.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries))
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			gen, err := readGen(ctx, tx, s.genKey())
			if err != nil {
				return err
			}
			return fn(tx, gen)
		}, s.genKey())
		if errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(b, ctx))

	if attempts > 1 {
		log.Debug().Int("attempts", attempts).Msg("Redis transaction retried after conflicts")
	}
	if errors.Is(err, redis.TxFailedErr) {
		return ErrTxConflict
	}
	return err
}

// GetOrCreateDay implements Store.
func (s *RedisStore) GetOrCreateDay(ctx context.Context, date string, pair PairFunc) (*model.DailyStats, bool, error) {
	var (
		stats   *model.DailyStats
		created bool
	)
	err := s.watch(ctx, func(tx *redis.Tx, gen int64) error {
		key := s.dayKey(gen, date)
		if err := tx.Watch(ctx, key).Err(); err != nil {
			return err
		}
		existing, err := readDay(ctx, tx, key, date)
		if err == nil {
			stats, created = existing, false
			return nil
		}
		if !errors.Is(err, ErrDayNotFound) {
			return err
		}

		saintPos, devilPos := pair()
		if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
			return err
		}
		fresh := model.NewDailyStats(date, saintPos, devilPos)
		fresh.UpdatedAt = time.Now()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeDay(fresh))
			return nil
		})
		if err != nil {
			return err
		}
		stats, created = fresh, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stats, created, nil
}

// GetDay implements Store.
func (s *RedisStore) GetDay(ctx context.Context, date string) (*model.DailyStats, error) {
	gen, err := readGen(ctx, s.client, s.genKey())
	if err != nil {
		return nil, err
	}
	return readDay(ctx, s.client, s.dayKey(gen, date), date)
}

// Atomic implements Store. fn runs again whenever another writer touches the
// watched keys before the transaction executes.
func (s *RedisStore) Atomic(ctx context.Context, date, identityKey string, fn func(tx Tx) error) error {
	return s.watch(ctx, func(tx *redis.Tx, gen int64) error {
		rtx := &redisTx{
			tx:      tx,
			date:    date,
			key:     identityKey,
			dayKey:  s.dayKey(gen, date),
			playKey: s.playKey(gen, identityKey),
		}
		if err := tx.Watch(ctx, rtx.dayKey, rtx.playKey).Err(); err != nil {
			return err
		}
		if err := fn(rtx); err != nil {
			return err
		}
		if rtx.day == nil && !rtx.recorded {
			return nil
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if rtx.day != nil {
				rtx.day.UpdatedAt = time.Now()
				pipe.HSet(ctx, rtx.dayKey, encodeDay(rtx.day))
			}
			if rtx.recorded {
				pipe.Set(ctx, rtx.playKey, rtx.playedAt.UTC().Format(time.RFC3339Nano), s.cfg.PlayTTL)
			}
			return nil
		})
		return err
	})
}

// SetPositions implements Store.
func (s *RedisStore) SetPositions(ctx context.Context, date string, saintPos, devilPos int) (*model.DailyStats, error) {
	if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
		return nil, err
	}

	var stats *model.DailyStats
	err := s.watch(ctx, func(tx *redis.Tx, gen int64) error {
		key := s.dayKey(gen, date)
		if err := tx.Watch(ctx, key).Err(); err != nil {
			return err
		}
		day, err := readDay(ctx, tx, key, date)
		if errors.Is(err, ErrDayNotFound) {
			day, err = model.NewDailyStats(date, saintPos, devilPos), nil
		}
		if err != nil {
			return err
		}
		day.SaintWinnerPosition = saintPos
		day.DevilWinnerPosition = devilPos
		day.SaintWinnerFound = false
		day.DevilWinnerFound = false
		day.UpdatedAt = time.Now()

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeDay(day))
			return nil
		})
		if err != nil {
			return err
		}
		stats = day
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ResetAll implements Store. Bumping the generation is the linearization
// point; keys of older generations are deleted afterwards.
func (s *RedisStore) ResetAll(ctx context.Context) error {
	gen, err := s.client.Incr(ctx, s.genKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}

	current := fmt.Sprintf("%s:%d:", s.cfg.Prefix, gen)
	var deleted int
	iter := s.client.Scan(ctx, 0, s.cfg.Prefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if key == s.genKey() || strings.HasPrefix(key, current) {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan old keys: %w", err)
	}

	log.Debug().Int64("generation", gen).Int("deleted_keys", deleted).Msg("Redis state reset")
	return nil
}

// PurgePlayRecords implements Store. Records normally expire through PlayTTL;
// this drops the ones older than before ahead of time.
func (s *RedisStore) PurgePlayRecords(ctx context.Context, before time.Time) (int64, error) {
	gen, err := readGen(ctx, s.client, s.genKey())
	if err != nil {
		return 0, err
	}

	var purged int64
	iter := s.client.Scan(ctx, 0, s.playKey(gen, "*"), 500).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return purged, err
		}
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil || !at.Before(before) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return purged, err
		}
		purged += n
	}
	if err := iter.Err(); err != nil {
		return purged, err
	}
	return purged, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisTx struct {
	tx      *redis.Tx
	date    string
	key     string
	dayKey  string
	playKey string

	day      *model.DailyStats
	recorded bool
	playedAt time.Time
}

func (t *redisTx) current(ctx context.Context) (*model.DailyStats, error) {
	if t.day != nil {
		return t.day, nil
	}
	day, err := readDay(ctx, t.tx, t.dayKey, t.date)
	if err != nil {
		return nil, err
	}
	t.day = day
	return day, nil
}

func (t *redisTx) AllocateNext(ctx context.Context, date string) (int, *model.DailyStats, error) {
	if date != t.date {
		return 0, nil, ErrOutOfScope
	}
	day, err := t.current(ctx)
	if err != nil {
		return 0, nil, err
	}
	before := day.Clone()
	day.TotalPlayers++
	return day.TotalPlayers, before, nil
}

func (t *redisTx) MarkWinnerFound(ctx context.Context, date string, winner model.WinnerType) error {
	if date != t.date {
		return ErrOutOfScope
	}
	day, err := t.current(ctx)
	if err != nil {
		return err
	}
	day.MarkWinnerFound(winner)
	return nil
}

func (t *redisTx) LastPlayed(ctx context.Context, key string) (time.Time, bool, error) {
	if key != t.key {
		return time.Time{}, false, ErrOutOfScope
	}
	if t.recorded {
		return t.playedAt, true, nil
	}
	raw, err := t.tx.Get(ctx, t.playKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt play record %s: %w", key, err)
	}
	return at, true, nil
}

func (t *redisTx) RecordPlay(ctx context.Context, key string, at time.Time) error {
	if key != t.key {
		return ErrOutOfScope
	}
	t.recorded = true
	t.playedAt = at
	return nil
}
