package lottery

import (
	"context"
	"time"
)

// DefaultWindow is the rolling window during which an identity may play once.
const DefaultWindow = 24 * time.Hour

// PlayRecords is the view of play records the rate limiter works on.
// repository.Tx satisfies it, so checks and records happen inside the
// same atomic unit as the position allocation.
type PlayRecords interface {
	LastPlayed(ctx context.Context, key string) (time.Time, bool, error)
	RecordPlay(ctx context.Context, key string, at time.Time) error
}

// RateLimiter enforces one play per identity per window.
type RateLimiter struct {
	window time.Duration
}

// NewRateLimiter creates a RateLimiter. A non-positive window means DefaultWindow.
func NewRateLimiter(window time.Duration) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{window: window}
}

// Window returns the configured window.
func (r *RateLimiter) Window() time.Duration {
	return r.window
}

// Allowed reports whether an identity last seen at last may play at now.
// played is false when no record exists.
func (r *RateLimiter) Allowed(last time.Time, played bool, now time.Time) bool {
	if !played {
		return true
	}
	return now.Sub(last) >= r.window
}

// Remaining returns how long until the identity may play again; 0 if it may play now.
func (r *RateLimiter) Remaining(last time.Time, played bool, now time.Time) time.Duration {
	if r.Allowed(last, played, now) {
		return 0
	}
	return last.Add(r.window).Sub(now)
}

// Check reports whether id may play at now.
func (r *RateLimiter) Check(ctx context.Context, records PlayRecords, id Identity, now time.Time) (bool, error) {
	last, played, err := records.LastPlayed(ctx, id.Key())
	if err != nil {
		return false, err
	}
	return r.Allowed(last, played, now), nil
}

// RetryAfter returns how long id must wait before playing at now; 0 means it may play.
func (r *RateLimiter) RetryAfter(ctx context.Context, records PlayRecords, id Identity, now time.Time) (time.Duration, error) {
	last, played, err := records.LastPlayed(ctx, id.Key())
	if err != nil {
		return 0, err
	}
	return r.Remaining(last, played, now), nil
}

// RecordPlay stores now as the last play of id, overwriting any previous record.
func (r *RateLimiter) RecordPlay(ctx context.Context, records PlayRecords, id Identity, now time.Time) error {
	return records.RecordPlay(ctx, id.Key(), now)
}
