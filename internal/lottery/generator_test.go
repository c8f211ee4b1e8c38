package lottery

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestGeneratePairDistinct draws 10,000 pairs and checks that saint and devil never collide.
func TestGeneratePairDistinct(t *testing.T) {
	gen := NewPositionGenerator(nil, rand.NewSource(42))

	for i := 0; i < 10000; i++ {
		saint, devil := gen.GeneratePair()
		require.NotEqual(t, saint, devil, "draw %d returned equal positions", i)
		require.GreaterOrEqual(t, saint, DefaultSpecialMinPosition)
		require.LessOrEqual(t, saint, DefaultMaxPosition)
		require.GreaterOrEqual(t, devil, DefaultSpecialMinPosition)
		require.LessOrEqual(t, devil, DefaultMaxPosition)
	}
}

// TestGeneratePairProperty checks distinctness and range for any seed and policy.
func TestGeneratePairProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Int64().Draw(t, "seed")
		maxPos := rapid.IntRange(2, 100).Draw(t, "maxPos")
		minPos := rapid.IntRange(1, maxPos-1).Draw(t, "minPos")
		specialMin := rapid.IntRange(1, minPos).Draw(t, "specialMin")
		chance := rapid.Float64Range(0, 1).Draw(t, "chance")

		gen := NewPositionGenerator(&GeneratorConfig{
			MinPosition:        minPos,
			SpecialMinPosition: specialMin,
			MaxPosition:        maxPos,
			SpecialChance:      chance,
		}, rand.NewSource(seed))

		saint, devil := gen.GeneratePair()
		if saint == devil {
			t.Fatalf("pair collided: saint=%d devil=%d", saint, devil)
		}
		for _, pos := range []int{saint, devil} {
			if pos < specialMin || pos > maxPos {
				t.Fatalf("position %d outside [%d, %d]", pos, specialMin, maxPos)
			}
		}
	})
}

func TestDrawRegularRangeWithoutSpecial(t *testing.T) {
	gen := NewPositionGenerator(&GeneratorConfig{SpecialChance: 0}, rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		pos := gen.Draw(0)
		assert.GreaterOrEqual(t, pos, DefaultMinPosition)
		assert.LessOrEqual(t, pos, DefaultMaxPosition)
	}
}

func TestDrawSpecialRangeReachesLowPositions(t *testing.T) {
	gen := NewPositionGenerator(&GeneratorConfig{SpecialChance: 1}, rand.NewSource(7))

	sawLow := false
	for i := 0; i < 2000; i++ {
		pos := gen.Draw(0)
		require.GreaterOrEqual(t, pos, DefaultSpecialMinPosition)
		require.LessOrEqual(t, pos, DefaultMaxPosition)
		if pos < DefaultMinPosition {
			sawLow = true
		}
	}
	assert.True(t, sawLow, "special draws should reach positions below %d", DefaultMinPosition)
}

// TestDrawFallbackAfterMaxRedraws uses a two-value range and a single redraw so the
// deterministic scan is exercised.
func TestDrawFallbackAfterMaxRedraws(t *testing.T) {
	gen := NewPositionGenerator(&GeneratorConfig{
		MinPosition:   1,
		MaxPosition:   2,
		SpecialChance: 0,
		MaxRedraws:    1,
	}, rand.NewSource(1))

	for i := 0; i < 500; i++ {
		assert.Equal(t, 2, gen.Draw(1))
		assert.Equal(t, 1, gen.Draw(2))
	}
}

func TestNewPositionGeneratorInvalidConfigFallsBack(t *testing.T) {
	gen := NewPositionGenerator(&GeneratorConfig{
		MinPosition:   -3,
		MaxPosition:   0,
		SpecialChance: 3,
		MaxRedraws:    -1,
	}, nil)

	cfg := gen.Config()
	assert.Equal(t, DefaultMinPosition, cfg.MinPosition)
	assert.Equal(t, DefaultMaxPosition, cfg.MaxPosition)
	assert.Equal(t, DefaultSpecialChance, cfg.SpecialChance)
	assert.Equal(t, DefaultMaxRedraws, cfg.MaxRedraws)
}

func TestValidatePositions(t *testing.T) {
	tests := []struct {
		name    string
		saint   int
		devil   int
		wantErr bool
	}{
		{"distinct positive", 5, 11, false},
		{"equal", 5, 5, true},
		{"zero saint", 0, 3, true},
		{"negative devil", 3, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositions(tt.saint, tt.devil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
