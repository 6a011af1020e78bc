package utils

import (
	"fmt"

	"github.com/google/uuid"

	"skillSwapAPI/internal/types/notification"
)

// Notifier is the trigger contract toward the notification pipeline. The
// implementation is fire-and-forget; triggers never learn about delivery
// failures.
type Notifier interface {
	Notify(userID uuid.UUID, event notification.Event, title, body string, data map[string]any)
}

func ChallengeCompleted(notifier Notifier, userID uuid.UUID, challengeTitle string, xpAwarded int) {
	if notifier == nil {
		return
	}
	notifier.Notify(userID, notification.EventChallengeCompleted,
		"Challenge completed!",
		fmt.Sprintf("You finished %q and earned %d XP.", challengeTitle, xpAwarded),
		map[string]any{
			"challenge_title": challengeTitle,
			"xp":              xpAwarded,
		},
	)
}

func BadgeEarned(notifier Notifier, userID uuid.UUID, badgeID, badgeName string) {
	if notifier == nil {
		return
	}
	notifier.Notify(userID, notification.EventBadgeEarned,
		"Badge earned!",
		fmt.Sprintf("You earned the %q badge.", badgeName),
		map[string]any{"badge_id": badgeID, "badge_name": badgeName},
	)
}

func LevelUp(notifier Notifier, userID uuid.UUID, newLevel int) {
	if notifier == nil {
		return
	}
	notifier.Notify(userID, notification.EventLevelUp,
		"Level up!",
		fmt.Sprintf("You reached level %d.", newLevel),
		map[string]any{"level": newLevel},
	)
}

func TierUnlocked(notifier Notifier, userID uuid.UUID, tier string) {
	if notifier == nil {
		return
	}
	notifier.Notify(userID, notification.EventTierUnlocked,
		"New tier unlocked",
		fmt.Sprintf("You can now join %s challenges.", tier),
		map[string]any{"tier": tier},
	)
}
