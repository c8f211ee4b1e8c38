// Package repository provides the lottery storage backends.
// Every backend implements Store; all mutation of daily stats and play
// records goes through it.
package repository

import (
	"context"
	"errors"
	"time"

	"saint-devil-lottery/internal/model"
)

// Common errors for repository operations.
var (
	// ErrDayNotFound is returned when no DailyStats exists for a date.
	ErrDayNotFound = errors.New("daily stats not found")

	// ErrOutOfScope is returned when a Tx is used for a date or identity it was not opened for.
	ErrOutOfScope = errors.New("operation outside of transaction scope")

	// ErrTxConflict is returned when an optimistic transaction keeps losing races.
	ErrTxConflict = errors.New("transaction conflict, retries exhausted")
)

// PairFunc draws the saint and devil positions for a new day.
type PairFunc func() (saintPos, devilPos int)

// Tx is the view of the store inside Store.Atomic. Its writes become visible
// together when the enclosing function returns nil, and not at all otherwise.
type Tx interface {
	// AllocateNext increments the day's player count and returns the new
	// position together with the stats as they were before the increment.
	AllocateNext(ctx context.Context, date string) (int, *model.DailyStats, error)

	// MarkWinnerFound claims a winner slot. Claiming an already claimed slot is a no-op.
	MarkWinnerFound(ctx context.Context, date string, winner model.WinnerType) error

	// LastPlayed returns the last play time of an identity key; false if it never played.
	LastPlayed(ctx context.Context, key string) (time.Time, bool, error)

	// RecordPlay overwrites the last play time of an identity key.
	RecordPlay(ctx context.Context, key string, at time.Time) error
}

// Store owns DailyStats and PlayRecord storage.
type Store interface {
	// GetOrCreateDay returns the stats of date, creating them with positions
	// from pair if absent. The bool reports whether a record was created.
	GetOrCreateDay(ctx context.Context, date string, pair PairFunc) (*model.DailyStats, bool, error)

	// GetDay returns a snapshot of the stats of date or ErrDayNotFound.
	GetDay(ctx context.Context, date string) (*model.DailyStats, error)

	// Atomic runs fn with exclusive access to the stats of date and the play
	// record of identityKey. Writes made through the Tx commit iff fn returns nil.
	// fn may be invoked more than once by optimistic backends.
	Atomic(ctx context.Context, date, identityKey string, fn func(tx Tx) error) error

	// SetPositions overrides the winner positions of date, resetting both found
	// flags and keeping the player count. Creates the record if absent.
	SetPositions(ctx context.Context, date string, saintPos, devilPos int) (*model.DailyStats, error)

	// ResetAll removes every DailyStats and PlayRecord.
	ResetAll(ctx context.Context) error

	// PurgePlayRecords drops play records last played before the given time.
	PurgePlayRecords(ctx context.Context, before time.Time) (int64, error)

	// Close releases backend resources.
	Close() error
}
