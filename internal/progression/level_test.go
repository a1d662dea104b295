package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLevel(t *testing.T) {
	cases := map[int]int{
		0:     1,
		99:    1,
		100:   2,
		299:   2,
		300:   3,
		1000:  5,
		9000:  10,
		12999: 10,
		13000: 11,
		50000: 11,
	}
	for xp, want := range cases {
		assert.Equal(t, want, ResolveLevel(xp), "xp=%d", xp)
	}
}

func TestResolveLevelMonotonic(t *testing.T) {
	prev := ResolveLevel(0)
	for xp := 1; xp <= 20000; xp += 7 {
		lvl := ResolveLevel(xp)
		assert.GreaterOrEqual(t, lvl, prev)
		prev = lvl
	}
}

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, 100, XPForNextLevel(1))
	assert.Equal(t, 300, XPForNextLevel(2))
	assert.Equal(t, 13000, XPForNextLevel(10))
	assert.Equal(t, 18000, XPForNextLevel(11))
	assert.Equal(t, 23000, XPForNextLevel(12))
}

func TestLevelProgress(t *testing.T) {
	assert.InDelta(t, 0, LevelProgress(0), 0.001)
	assert.InDelta(t, 50, LevelProgress(50), 0.001)
	assert.InDelta(t, 50, LevelProgress(200), 0.001)
	assert.InDelta(t, 10, LevelProgress(13500), 0.001)
}
