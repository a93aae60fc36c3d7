// Package trigger decides, from the current reading alone, whether a poll
// cycle produced an event worth persisting.
package trigger

import (
	"math"

	"github.com/ghalamif/ModFlow/internal/domain"
	"github.com/ghalamif/ModFlow/internal/ports"
)

// Match modes for multi-position triggers.
const (
	MatchAll = "all"
	MatchAny = "any"
)

// DefaultPosition is the machine-on flag of the reference register map.
const DefaultPosition = 11

// Config selects the trigger positions (1-based).
type Config struct {
	Positions []int  `yaml:"positions"`
	Match     string `yaml:"match"`
}

func (c *Config) ApplyDefaults() {
	if len(c.Positions) == 0 {
		c.Positions = []int{DefaultPosition}
	}
	if c.Match == "" {
		c.Match = MatchAll
	}
}

// Validate checks the positions against the number of decoded values.
func (c *Config) Validate(values int) error {
	if len(c.Positions) == 0 {
		return domain.Configf("trigger.positions", "at least one position is required")
	}
	for _, p := range c.Positions {
		if p < 1 || p > values {
			return domain.Configf("trigger.positions", "position %d outside 1..%d", p, values)
		}
	}
	switch c.Match {
	case MatchAll, MatchAny:
	default:
		return domain.Configf("trigger.match", "unknown mode %q", c.Match)
	}
	return nil
}

// Level fires on every cycle whose trigger flags are high. It keeps no state
// between cycles.
type Level struct {
	positions []int
	any       bool
}

func NewLevel(cfg Config) *Level {
	cfg.ApplyDefaults()
	pos := make([]int, len(cfg.Positions))
	copy(pos, cfg.Positions)
	return &Level{positions: pos, any: cfg.Match == MatchAny}
}

// ShouldPersist never fails: a position missing from a short reading counts
// as low.
func (l *Level) ShouldPersist(r domain.Reading) bool {
	if len(l.positions) == 0 {
		return false
	}
	for _, p := range l.positions {
		v, ok := r.At(p)
		high := ok && Active(v)
		if l.any && high {
			return true
		}
		if !l.any && !high {
			return false
		}
	}
	return !l.any
}

// Active reports whether v rounds to exactly 1. Halves round to even, so 0.5
// is low and 1.5 is high-side 2, which is also not active.
func Active(v float32) bool {
	return Round(v) == 1
}

// Round rounds half to even. NaN and infinities yield NaN so they never
// compare equal to an integer.
func Round(v float32) float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN()
	}
	return math.RoundToEven(f)
}

var _ ports.Trigger = (*Level)(nil)
