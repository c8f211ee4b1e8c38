package lottery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// mapRecords is an in-test PlayRecords backed by a map.
type mapRecords struct {
	last map[string]time.Time
	err  error
}

func newMapRecords() *mapRecords {
	return &mapRecords{last: make(map[string]time.Time)}
}

func (m *mapRecords) LastPlayed(_ context.Context, key string) (time.Time, bool, error) {
	if m.err != nil {
		return time.Time{}, false, m.err
	}
	t, ok := m.last[key]
	return t, ok, nil
}

func (m *mapRecords) RecordPlay(_ context.Context, key string, at time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.last[key] = at
	return nil
}

func TestRateLimiter_WindowBoundary(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(0)
	records := newMapRecords()
	id, err := NewIdentity("Ana", "5512345678", "10.0.0.1")
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	allowed, err := limiter.Check(ctx, records, id, start)
	require.NoError(t, err)
	assert.True(t, allowed, "identity without record must be allowed")

	require.NoError(t, limiter.RecordPlay(ctx, records, id, start))

	allowed, err = limiter.Check(ctx, records, id, start.Add(23*time.Hour+59*time.Minute))
	require.NoError(t, err)
	assert.False(t, allowed, "second play at T+23h59m must be rejected")

	allowed, err = limiter.Check(ctx, records, id, start.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, allowed, "play at T+24h00m must be allowed")
}

func TestRateLimiter_KeyedByPhoneAndIP(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(24 * time.Hour)
	records := newMapRecords()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, _ := NewIdentity("Ana", "5512345678", "10.0.0.1")
	otherIP, _ := NewIdentity("Ana", "5512345678", "10.0.0.2")
	otherPhone, _ := NewIdentity("Ana", "5587654321", "10.0.0.1")

	require.NoError(t, limiter.RecordPlay(ctx, records, first, now))

	allowed, err := limiter.Check(ctx, records, otherIP, now)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Check(ctx, records, otherPhone, now)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(24 * time.Hour)
	records := newMapRecords()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, _ := NewIdentity("Ana", "5512345678", "10.0.0.1")

	wait, err := limiter.RetryAfter(ctx, records, id, start)
	require.NoError(t, err)
	assert.Zero(t, wait)

	require.NoError(t, limiter.RecordPlay(ctx, records, id, start))

	wait, err = limiter.RetryAfter(ctx, records, id, start.Add(20*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4*time.Hour, wait)

	wait, err = limiter.RetryAfter(ctx, records, id, start.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, wait)
}

func TestPlayedRecentlyErrorMatchesSentinel(t *testing.T) {
	var err error = &PlayedRecentlyError{RetryAfter: time.Hour}
	assert.ErrorIs(t, err, ErrAlreadyPlayedToday)

	var played *PlayedRecentlyError
	require.ErrorAs(t, err, &played)
	assert.Equal(t, time.Hour, played.RetryAfter)
}

func TestRateLimiter_PropagatesRecordErrors(t *testing.T) {
	records := newMapRecords()
	records.err = errors.New("backend down")
	id, _ := NewIdentity("Ana", "5512345678", "10.0.0.1")

	_, err := NewRateLimiter(0).Check(context.Background(), records, id, time.Now())
	assert.Error(t, err)
}

// TestRateLimiterEligibilityProperty mirrors the daily-claim eligibility property:
// a play is allowed iff there is no record or at least window has elapsed.
func TestRateLimiterEligibilityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		windowHours := rapid.IntRange(1, 72).Draw(t, "windowHours")
		elapsedMinutes := rapid.IntRange(0, 72*60*2).Draw(t, "elapsedMinutes")
		played := rapid.Bool().Draw(t, "played")

		limiter := NewRateLimiter(time.Duration(windowHours) * time.Hour)
		last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		now := last.Add(time.Duration(elapsedMinutes) * time.Minute)

		allowed := limiter.Allowed(last, played, now)
		remaining := limiter.Remaining(last, played, now)

		expected := !played || elapsedMinutes >= windowHours*60
		if allowed != expected {
			t.Fatalf("allowed=%v expected=%v (window=%dh elapsed=%dm played=%v)",
				allowed, expected, windowHours, elapsedMinutes, played)
		}
		if allowed && remaining != 0 {
			t.Fatalf("remaining must be 0 when allowed, got %v", remaining)
		}
		if !allowed {
			want := time.Duration(windowHours)*time.Hour - time.Duration(elapsedMinutes)*time.Minute
			if remaining != want {
				t.Fatalf("remaining=%v want %v", remaining, want)
			}
		}
	})
}
