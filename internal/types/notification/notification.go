package notification

import (
	"time"

	"github.com/google/uuid"
)

type Event string

const (
	EventChallengeCompleted Event = "challenge_completed"
	EventBadgeEarned        Event = "badge_earned"
	EventLevelUp            Event = "level_up"
	EventStreakReminder     Event = "streak_reminder"
	EventTierUnlocked       Event = "tier_unlocked"
)

type Notification struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	UserID    uuid.UUID      `json:"user_id" db:"user_id"`
	Event     Event          `json:"event" db:"event"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	Data      map[string]any `json:"data" db:"data"`
	Read      bool           `json:"read" db:"read"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}
