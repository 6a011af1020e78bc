package streakcalc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)

func day(offset int) time.Time {
	return now.AddDate(0, 0, offset)
}

func TestCurrentStreakEmpty(t *testing.T) {
	assert.Equal(t, 0, CurrentStreak(nil, now))
	assert.Equal(t, 0, CurrentStreak([]time.Time{}, now))
}

func TestCurrentStreakTodayOnly(t *testing.T) {
	assert.Equal(t, 1, CurrentStreak([]time.Time{day(0)}, now))
}

func TestCurrentStreakYesterdayKeepsItAlive(t *testing.T) {
	// No completion yet today, but yesterday's still counts.
	assert.Equal(t, 1, CurrentStreak([]time.Time{day(-1)}, now))
	assert.Equal(t, 3, CurrentStreak([]time.Time{day(-1), day(-2), day(-3)}, now))
}

func TestCurrentStreakBrokenBeforeYesterday(t *testing.T) {
	assert.Equal(t, 0, CurrentStreak([]time.Time{day(-2)}, now))
	assert.Equal(t, 0, CurrentStreak([]time.Time{day(-2), day(-3), day(-4)}, now))
}

func TestCurrentStreakStopsAtGap(t *testing.T) {
	completions := []time.Time{day(0), day(-1), day(-3), day(-4)}
	assert.Equal(t, 2, CurrentStreak(completions, now))
}

func TestCurrentStreakSameDayCountsOnce(t *testing.T) {
	completions := []time.Time{
		day(0),
		day(0).Add(2 * time.Hour),
		day(-1),
		day(-1).Add(-3 * time.Hour),
	}
	assert.Equal(t, 2, CurrentStreak(completions, now))
}

func TestCurrentStreakLongRun(t *testing.T) {
	var completions []time.Time
	for i := 0; i < 30; i++ {
		completions = append(completions, day(-i))
	}
	assert.Equal(t, 30, CurrentStreak(completions, now))
}
