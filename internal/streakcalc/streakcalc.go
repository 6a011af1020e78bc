package streakcalc

import "time"

// Streaks are computed over UTC calendar days so every server evaluates the
// same boundaries.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// CurrentStreak counts consecutive calendar days with at least one
// completion, walking backward from today. Multiple completions on the same
// day count once. A latest completion before yesterday means the streak is
// broken and the count is zero; a completion yesterday but not yet today
// keeps the streak alive.
func CurrentStreak(completions []time.Time, now time.Time) int {
	if len(completions) == 0 {
		return 0
	}

	days := make(map[string]bool, len(completions))
	for _, c := range completions {
		days[dayKey(c)] = true
	}

	cursor := now.UTC()
	if !days[dayKey(cursor)] {
		cursor = cursor.AddDate(0, 0, -1)
		if !days[dayKey(cursor)] {
			return 0
		}
	}

	streak := 0
	for days[dayKey(cursor)] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}
