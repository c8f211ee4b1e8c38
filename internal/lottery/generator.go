package lottery

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultMinPosition is the lowest winner position of a regular day.
	DefaultMinPosition = 14

	// DefaultSpecialMinPosition is the lowest winner position of a weekly special draw.
	DefaultSpecialMinPosition = 1

	// DefaultMaxPosition is the highest winner position.
	DefaultMaxPosition = 50

	// DefaultSpecialChance is the probability of a weekly special draw.
	// Each draw rolls independently; nothing ties it to a calendar week.
	DefaultSpecialChance = 1.0 / 7.0

	// DefaultMaxRedraws bounds rejection sampling when a draw hits the excluded position.
	DefaultMaxRedraws = 64
)

// GeneratorConfig holds the winner position draw policy.
type GeneratorConfig struct {
	MinPosition        int
	SpecialMinPosition int
	MaxPosition        int
	SpecialChance      float64
	MaxRedraws         int
}

// PositionGenerator draws the saint and devil winner positions of a day.
// It is safe for concurrent use.
type PositionGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
	cfg GeneratorConfig
}

// NewPositionGenerator creates a generator. Invalid or zero config values fall
// back to the defaults. A nil src seeds from the current time.
func NewPositionGenerator(cfg *GeneratorConfig, src rand.Source) *PositionGenerator {
	c := GeneratorConfig{
		MinPosition:        DefaultMinPosition,
		SpecialMinPosition: DefaultSpecialMinPosition,
		MaxPosition:        DefaultMaxPosition,
		SpecialChance:      DefaultSpecialChance,
		MaxRedraws:         DefaultMaxRedraws,
	}
	if cfg != nil {
		if cfg.MaxPosition > 1 {
			c.MaxPosition = cfg.MaxPosition
		}
		if cfg.MinPosition > 0 && cfg.MinPosition < c.MaxPosition {
			c.MinPosition = cfg.MinPosition
		}
		if cfg.SpecialMinPosition > 0 && cfg.SpecialMinPosition < c.MaxPosition {
			c.SpecialMinPosition = cfg.SpecialMinPosition
		}
		if cfg.SpecialChance >= 0 && cfg.SpecialChance <= 1 {
			c.SpecialChance = cfg.SpecialChance
		}
		if cfg.MaxRedraws > 0 {
			c.MaxRedraws = cfg.MaxRedraws
		}
	}
	// Both ranges must hold at least two values so a pair always exists.
	if c.MinPosition >= c.MaxPosition {
		c.MinPosition = c.MaxPosition - 1
	}
	if c.SpecialMinPosition >= c.MaxPosition {
		c.SpecialMinPosition = c.MaxPosition - 1
	}

	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}

	return &PositionGenerator{
		rng: rand.New(src),
		cfg: c,
	}
}

// Config returns the effective draw policy.
func (g *PositionGenerator) Config() GeneratorConfig {
	return g.cfg
}

// Draw returns a winner position different from exclude (0 excludes nothing).
// With probability SpecialChance the draw covers [SpecialMinPosition, MaxPosition],
// otherwise [MinPosition, MaxPosition]. After MaxRedraws collisions the first
// position of the range that differs from exclude is returned.
func (g *PositionGenerator) Draw(exclude int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	low := g.cfg.MinPosition
	if g.rng.Float64() < g.cfg.SpecialChance {
		low = g.cfg.SpecialMinPosition
	}
	span := g.cfg.MaxPosition - low + 1

	for i := 0; i < g.cfg.MaxRedraws; i++ {
		pos := low + g.rng.Intn(span)
		if pos != exclude {
			return pos
		}
	}

	for pos := low; pos <= g.cfg.MaxPosition; pos++ {
		if pos != exclude {
			return pos
		}
	}
	return exclude + 1
}

// GeneratePair draws the saint position, then a devil position that differs from it.
func (g *PositionGenerator) GeneratePair() (saintPos, devilPos int) {
	saintPos = g.Draw(0)
	devilPos = g.Draw(saintPos)
	return saintPos, devilPos
}

// ValidatePositions checks an admin override: both positive and distinct.
func ValidatePositions(saintPos, devilPos int) error {
	if saintPos <= 0 || devilPos <= 0 || saintPos == devilPos {
		return ErrInvalidConfiguration
	}
	return nil
}
