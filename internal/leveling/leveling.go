package leveling

// thresholds[i] is the minimum experience for level i+1. Ascending, starts
// at zero. Experience exactly equal to a threshold belongs to the higher
// level (inclusive lower bound).
var thresholds = []int{0, 100, 250, 500, 1000, 1750, 2750, 4000, 5500, 7500, 10000}

// LevelFor maps accumulated experience to a level. Level 1 is the floor:
// zero, negative, or otherwise nonsensical experience still yields 1.
// Deterministic and side-effect-free so the same experience always produces
// the same level wherever it is evaluated.
func LevelFor(experience int) int {
	if experience <= 0 {
		return 1
	}
	level := 1
	for i := 1; i < len(thresholds); i++ {
		if experience < thresholds[i] {
			break
		}
		level = i + 1
	}
	return level
}

// NextLevelAt returns the experience required for the next level. The second
// return is false once the top of the table is reached.
func NextLevelAt(experience int) (int, bool) {
	level := LevelFor(experience)
	if level >= len(thresholds) {
		return 0, false
	}
	return thresholds[level], true
}

func MaxLevel() int {
	return len(thresholds)
}
