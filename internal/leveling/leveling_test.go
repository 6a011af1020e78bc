package leveling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelForFloor(t *testing.T) {
	assert.Equal(t, 1, LevelFor(0))
	assert.Equal(t, 1, LevelFor(-50))
	assert.Equal(t, 1, LevelFor(1))
	assert.Equal(t, 1, LevelFor(99))
}

func TestLevelForThresholdEdges(t *testing.T) {
	// Experience exactly at a threshold belongs to the higher level.
	assert.Equal(t, 2, LevelFor(100))
	assert.Equal(t, 2, LevelFor(249))
	assert.Equal(t, 3, LevelFor(250))
	assert.Equal(t, 4, LevelFor(500))
	assert.Equal(t, 5, LevelFor(1000))
}

func TestLevelForTopOfTable(t *testing.T) {
	assert.Equal(t, MaxLevel(), LevelFor(10000))
	assert.Equal(t, MaxLevel(), LevelFor(1000000))
}

func TestLevelForNonDecreasing(t *testing.T) {
	prev := LevelFor(0)
	for xp := 1; xp <= 12000; xp++ {
		level := LevelFor(xp)
		if level < prev {
			t.Fatalf("level decreased from %d to %d at xp=%d", prev, level, xp)
		}
		prev = level
	}
}

func TestLevelForStable(t *testing.T) {
	for _, xp := range []int{0, 99, 100, 777, 10000} {
		first := LevelFor(xp)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, LevelFor(xp), "xp=%d", xp)
		}
	}
}

func TestNextLevelAt(t *testing.T) {
	next, ok := NextLevelAt(0)
	assert.True(t, ok)
	assert.Equal(t, 100, next)

	next, ok = NextLevelAt(100)
	assert.True(t, ok)
	assert.Equal(t, 250, next)

	_, ok = NextLevelAt(10000)
	assert.False(t, ok)
}
