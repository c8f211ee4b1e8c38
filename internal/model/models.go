// Package model defines the data models for the daily lottery.
package model

import "time"

// DateLayout is the layout of date keys (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// WinnerType identifies one of the two winner slots of a day.
type WinnerType string

// Winner slots.
const (
	WinnerSaint WinnerType = "saint"
	WinnerDevil WinnerType = "devil"
)

// Discount percentages granted by each winner slot.
const (
	SaintDiscountPercent = 15
	DevilDiscountPercent = 10
)

// DiscountPercent returns the informational discount for a winner slot.
func (w WinnerType) DiscountPercent() int {
	switch w {
	case WinnerSaint:
		return SaintDiscountPercent
	case WinnerDevil:
		return DevilDiscountPercent
	default:
		return 0
	}
}

// Valid reports whether w names a known winner slot.
func (w WinnerType) Valid() bool {
	return w == WinnerSaint || w == WinnerDevil
}

// DailyStats is the lottery state of a single calendar day.
// SaintWinnerPosition and DevilWinnerPosition always differ.
type DailyStats struct {
	Date                string    `db:"date" json:"date"`
	TotalPlayers        int       `db:"total_players" json:"totalPlayers"`
	SaintWinnerPosition int       `db:"saint_winner_position" json:"saintWinnerPosition"`
	DevilWinnerPosition int       `db:"devil_winner_position" json:"devilWinnerPosition"`
	SaintWinnerFound    bool      `db:"saint_winner_found" json:"saintWinnerFound"`
	DevilWinnerFound    bool      `db:"devil_winner_found" json:"devilWinnerFound"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

// NewDailyStats creates a fresh record for date with the given winner positions.
func NewDailyStats(date string, saintPos, devilPos int) *DailyStats {
	return &DailyStats{
		Date:                date,
		SaintWinnerPosition: saintPos,
		DevilWinnerPosition: devilPos,
	}
}

// Clone returns a copy of s.
func (s *DailyStats) Clone() *DailyStats {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// WinnerPosition returns the position of the given slot.
func (s *DailyStats) WinnerPosition(w WinnerType) int {
	if w == WinnerSaint {
		return s.SaintWinnerPosition
	}
	return s.DevilWinnerPosition
}

// WinnerFound reports whether the given slot has been claimed.
func (s *DailyStats) WinnerFound(w WinnerType) bool {
	if w == WinnerSaint {
		return s.SaintWinnerFound
	}
	return s.DevilWinnerFound
}

// MarkWinnerFound claims the given slot. Claiming twice is a no-op.
func (s *DailyStats) MarkWinnerFound(w WinnerType) {
	switch w {
	case WinnerSaint:
		s.SaintWinnerFound = true
	case WinnerDevil:
		s.DevilWinnerFound = true
	}
}

// PublicStats is the player-facing view of DailyStats; winner positions stay hidden.
type PublicStats struct {
	Date             string `json:"date"`
	TotalPlayers     int    `json:"totalPlayers"`
	SaintWinnerFound bool   `json:"saintWinnerFound"`
	DevilWinnerFound bool   `json:"devilWinnerFound"`
}

// Public strips the winner positions from s.
func (s *DailyStats) Public() PublicStats {
	return PublicStats{
		Date:             s.Date,
		TotalPlayers:     s.TotalPlayers,
		SaintWinnerFound: s.SaintWinnerFound,
		DevilWinnerFound: s.DevilWinnerFound,
	}
}

// PlayRecord holds the last successful play of an identity key.
type PlayRecord struct {
	Key          string    `db:"identity_key"`
	LastPlayedAt time.Time `db:"last_played_at"`
}

// PlayOutcome is the result of a single play. It is never persisted.
type PlayOutcome struct {
	IsWinner        bool       `json:"isWinner"`
	Type            WinnerType `json:"type,omitempty"`
	DiscountPercent int        `json:"discountPercent,omitempty"`
	Message         string     `json:"message"`

	// Position is the allocated place in the day's play order.
	Position int    `json:"-"`
	Date     string `json:"-"`
	PlayID   string `json:"-"`
}
