package challenge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSkill      Type = "SKILL"
	TypeTrade      Type = "TRADE"
	TypeCollab     Type = "COLLAB"
	TypeCommunity  Type = "COMMUNITY"
	TypeMentorship Type = "MENTORSHIP"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusArchived Status = "ARCHIVED"
)

// ParticipationStatus is the state of one user's run at one challenge.
// COMPLETED and ABANDONED are terminal.
type ParticipationStatus string

const (
	ParticipationActive    ParticipationStatus = "ACTIVE"
	ParticipationCompleted ParticipationStatus = "COMPLETED"
	ParticipationAbandoned ParticipationStatus = "ABANDONED"
)

type Requirement struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Target      int    `json:"target"`
	Description string `json:"description"`
}

type BadgeReward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Rewards struct {
	XP                 int           `json:"xp"`
	Badges             []BadgeReward `json:"badges"`
	UnlockableFeatures []string      `json:"unlockable_features"`
}

type Challenge struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	Title            string        `json:"title" db:"title"`
	Type             Type          `json:"type" db:"type"`
	Category         string        `json:"category" db:"category"`
	Difficulty       string        `json:"difficulty" db:"difficulty"`
	Requirements     []Requirement `json:"requirements" db:"requirements"`
	Rewards          Rewards       `json:"rewards" db:"rewards"`
	StartDate        time.Time     `json:"start_date" db:"start_date"`
	EndDate          time.Time     `json:"end_date" db:"end_date"`
	Status           Status        `json:"status" db:"status"`
	ParticipantCount int           `json:"participant_count" db:"participant_count"`
	CompletionCount  int           `json:"completion_count" db:"completion_count"`
	Tags             []string      `json:"tags" db:"tags"`
	CreatedBy        *uuid.UUID    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

type UserChallenge struct {
	ID                    uuid.UUID           `json:"id" db:"id"`
	UserID                uuid.UUID           `json:"user_id" db:"user_id"`
	ChallengeID           uuid.UUID           `json:"challenge_id" db:"challenge_id"`
	Status                ParticipationStatus `json:"status" db:"status"`
	Progress              int                 `json:"progress" db:"progress"`
	MaxProgress           int                 `json:"max_progress" db:"max_progress"`
	StartedAt             time.Time           `json:"started_at" db:"started_at"`
	LastActivityAt        time.Time           `json:"last_activity_at" db:"last_activity_at"`
	CompletionTimeMinutes *int                `json:"completion_time_minutes,omitempty" db:"completion_time_minutes"`
	RewardsGranted        bool                `json:"rewards_granted" db:"rewards_granted"`
}

// Stats are always derived from the full user_challenges history on read,
// never from a stored counter.
type Stats struct {
	TotalCompleted int `json:"total_completed"`
	TotalActive    int `json:"total_active"`
	StreakCount    int `json:"streak_count"`
}

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeInactive = errors.New("challenge is not active")
	ErrTierLocked        = errors.New("challenge type requires a locked tier")
	ErrAlreadyJoined     = errors.New("challenge already joined")
	ErrNotJoined         = errors.New("challenge participation not found")
	ErrInvalidState      = errors.New("challenge participation is not active")
	ErrAlreadyCompleted  = errors.New("challenge already completed")

	// ErrTxConflict surfaces after the transaction runner exhausts its retry
	// budget on concurrent conflicts. Callers may retry the whole operation.
	ErrTxConflict = errors.New("transaction conflict, please retry")
)

// TotalTarget derives a participation's max progress from the challenge
// requirements at join time.
func TotalTarget(reqs []Requirement) int {
	total := 0
	for _, r := range reqs {
		total += r.Target
	}
	return total
}

// ClampProgress applies a progress delta, clamped to [0, maxProgress].
func ClampProgress(progress, delta, maxProgress int) int {
	next := progress + delta
	if next < 0 {
		return 0
	}
	if next > maxProgress {
		return maxProgress
	}
	return next
}
