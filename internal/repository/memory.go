package repository

import (
	"context"
	"sync"
	"time"

	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/model"
	"saint-devil-lottery/internal/pkg/lock"
)

// MemoryStore keeps the lottery state in process memory.
// Plays on the same date are serialized by a per-date lock, submissions of the
// same identity by a per-identity lock, and ResetAll excludes everything.
type MemoryStore struct {
	reset sync.RWMutex
	keys  *lock.KeyLock

	mu    sync.RWMutex
	days  map[string]*model.DailyStats
	plays map[string]time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:  lock.NewKeyLock(),
		days:  make(map[string]*model.DailyStats),
		plays: make(map[string]time.Time),
	}
}

func dayLockKey(date string) string { return "day:" + date }
func playLockKey(key string) string { return "play:" + key }

func (s *MemoryStore) loadDay(date string) (*model.DailyStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day, ok := s.days[date]
	return day.Clone(), ok
}

// GetOrCreateDay implements Store.
func (s *MemoryStore) GetOrCreateDay(ctx context.Context, date string, pair PairFunc) (*model.DailyStats, bool, error) {
	s.reset.RLock()
	defer s.reset.RUnlock()

	if err := s.keys.LockContext(ctx, dayLockKey(date)); err != nil {
		return nil, false, err
	}
	defer s.keys.Unlock(dayLockKey(date))

	if day, ok := s.loadDay(date); ok {
		return day, false, nil
	}

	saintPos, devilPos := pair()
	if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
		return nil, false, err
	}
	day := model.NewDailyStats(date, saintPos, devilPos)
	day.UpdatedAt = time.Now()

	s.mu.Lock()
	s.days[date] = day
	s.mu.Unlock()

	return day.Clone(), true, nil
}

// GetDay implements Store.
func (s *MemoryStore) GetDay(_ context.Context, date string) (*model.DailyStats, error) {
	day, ok := s.loadDay(date)
	if !ok {
		return nil, ErrDayNotFound
	}
	return day, nil
}

// Atomic implements Store. Locks are taken in the order reset -> date -> identity;
// waiting for the date or identity lock ends when ctx is done.
func (s *MemoryStore) Atomic(ctx context.Context, date, identityKey string, fn func(tx Tx) error) error {
	s.reset.RLock()
	defer s.reset.RUnlock()

	if err := s.keys.LockContext(ctx, dayLockKey(date)); err != nil {
		return err
	}
	defer s.keys.Unlock(dayLockKey(date))

	if err := s.keys.LockContext(ctx, playLockKey(identityKey)); err != nil {
		return err
	}
	defer s.keys.Unlock(playLockKey(identityKey))

	tx := &memoryTx{store: s, date: date, key: identityKey}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.day != nil {
		tx.day.UpdatedAt = time.Now()
		s.days[date] = tx.day
	}
	if tx.recorded {
		s.plays[identityKey] = tx.playedAt
	}
	return nil
}

// SetPositions implements Store.
func (s *MemoryStore) SetPositions(ctx context.Context, date string, saintPos, devilPos int) (*model.DailyStats, error) {
	if err := lottery.ValidatePositions(saintPos, devilPos); err != nil {
		return nil, err
	}

	s.reset.RLock()
	defer s.reset.RUnlock()

	if err := s.keys.LockContext(ctx, dayLockKey(date)); err != nil {
		return nil, err
	}
	defer s.keys.Unlock(dayLockKey(date))

	day, ok := s.loadDay(date)
	if !ok {
		day = model.NewDailyStats(date, saintPos, devilPos)
	}
	day.SaintWinnerPosition = saintPos
	day.DevilWinnerPosition = devilPos
	day.SaintWinnerFound = false
	day.DevilWinnerFound = false
	day.UpdatedAt = time.Now()

	s.mu.Lock()
	s.days[date] = day
	s.mu.Unlock()

	return day.Clone(), nil
}

// ResetAll implements Store. It waits for in-flight plays and blocks new ones
// until the state is cleared.
func (s *MemoryStore) ResetAll(_ context.Context) error {
	s.reset.Lock()
	defer s.reset.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.days = make(map[string]*model.DailyStats)
	s.plays = make(map[string]time.Time)
	return nil
}

// PurgePlayRecords implements Store.
func (s *MemoryStore) PurgePlayRecords(_ context.Context, before time.Time) (int64, error) {
	s.reset.RLock()
	defer s.reset.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for key, at := range s.plays {
		if at.Before(before) {
			delete(s.plays, key)
			purged++
		}
	}
	return purged, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// memoryTx buffers the writes of one Atomic call.
type memoryTx struct {
	store *MemoryStore
	date  string
	key   string

	day      *model.DailyStats
	recorded bool
	playedAt time.Time
}

func (t *memoryTx) current() (*model.DailyStats, error) {
	if t.day != nil {
		return t.day, nil
	}
	day, ok := t.store.loadDay(t.date)
	if !ok {
		return nil, ErrDayNotFound
	}
	t.day = day
	return day, nil
}

func (t *memoryTx) AllocateNext(_ context.Context, date string) (int, *model.DailyStats, error) {
	if date != t.date {
		return 0, nil, ErrOutOfScope
	}
	day, err := t.current()
	if err != nil {
		return 0, nil, err
	}
	before := day.Clone()
	day.TotalPlayers++
	return day.TotalPlayers, before, nil
}

func (t *memoryTx) MarkWinnerFound(_ context.Context, date string, winner model.WinnerType) error {
	if date != t.date {
		return ErrOutOfScope
	}
	day, err := t.current()
	if err != nil {
		return err
	}
	day.MarkWinnerFound(winner)
	return nil
}

func (t *memoryTx) LastPlayed(_ context.Context, key string) (time.Time, bool, error) {
	if key != t.key {
		return time.Time{}, false, ErrOutOfScope
	}
	if t.recorded {
		return t.playedAt, true, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	at, ok := t.store.plays[key]
	return at, ok, nil
}

func (t *memoryTx) RecordPlay(_ context.Context, key string, at time.Time) error {
	if key != t.key {
		return ErrOutOfScope
	}
	t.recorded = true
	t.playedAt = at
	return nil
}
