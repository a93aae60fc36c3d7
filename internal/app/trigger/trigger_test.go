package trigger

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ghalamif/ModFlow/internal/domain"
)

func reading(n int, set map[int]float32) domain.Reading {
	r := make(domain.Reading, n)
	for pos, v := range set {
		r[pos-1] = v
	}
	return r
}

func TestLevelDefaultPosition(t *testing.T) {
	l := NewLevel(Config{})

	cases := []struct {
		name string
		v    float32
		want bool
	}{
		{"exact one", 1, true},
		{"rounds up", 0.9, true},
		{"rounds down", 1.4, true},
		{"zero", 0, false},
		{"half rounds to even", 0.5, false},
		{"one and a half", 1.5, false},
		{"two", 2, false},
		{"negative", -1, false},
		{"nan", float32(math.NaN()), false},
		{"inf", float32(math.Inf(1)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, l.ShouldPersist(reading(18, map[int]float32{11: tc.v})))
		})
	}
}

func TestLevelShortReadingIsNotAnError(t *testing.T) {
	l := NewLevel(Config{})
	assert.False(t, l.ShouldPersist(reading(10, nil)))
	assert.False(t, l.ShouldPersist(nil))
}

func TestLevelMatchModes(t *testing.T) {
	all := NewLevel(Config{Positions: []int{2, 3}, Match: MatchAll})
	either := NewLevel(Config{Positions: []int{2, 3}, Match: MatchAny})

	both := reading(4, map[int]float32{2: 1, 3: 1})
	one := reading(4, map[int]float32{2: 1})
	none := reading(4, nil)

	assert.True(t, all.ShouldPersist(both))
	assert.False(t, all.ShouldPersist(one))
	assert.False(t, all.ShouldPersist(none))

	assert.True(t, either.ShouldPersist(both))
	assert.True(t, either.ShouldPersist(one))
	assert.False(t, either.ShouldPersist(none))
}

func TestLevelHasNoMemory(t *testing.T) {
	l := NewLevel(Config{})
	high := reading(18, map[int]float32{11: 1})

	for i := 0; i < 3; i++ {
		assert.True(t, l.ShouldPersist(high), "cycle %d", i)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate(18))

	err := cfg.Validate(10)
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))

	bad := Config{Positions: []int{1}, Match: "most"}
	assert.True(t, errors.Is(bad.Validate(18), domain.ErrInvalidConfig))
}
