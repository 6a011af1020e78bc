package progression

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Tier is a gating category unlocked progressively. Solo is available to
// every account from signup.
type Tier string

const (
	TierSolo       Tier = "SOLO"
	TierTrade      Tier = "TRADE"
	TierCollab     Tier = "COLLAB"
	TierCommunity  Tier = "COMMUNITY"
	TierMentorship Tier = "MENTORSHIP"
)

// ParseTier validates a tier name from a request body.
func ParseTier(s string) (Tier, bool) {
	switch t := Tier(s); t {
	case TierSolo, TierTrade, TierCollab, TierCommunity, TierMentorship:
		return t, true
	}
	return "", false
}

type Badge struct {
	ID          string    `json:"id" db:"badge_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Icon        string    `json:"icon" db:"icon"`
	EarnedAt    time.Time `json:"earned_at" db:"earned_at"`
}

type SkillLevel struct {
	Level      int `json:"level"`
	Experience int `json:"experience"`
}

type UserProgression struct {
	UserID     uuid.UUID `json:"user_id"`
	Experience int       `json:"experience"`
	// Level is recomputed from Experience on every read and never written
	// independently, so it cannot drift.
	Level        int                    `json:"level"`
	SkillLevels  map[string]SkillLevel  `json:"skill_levels"`
	Endorsements map[string][]uuid.UUID `json:"endorsements"`
	Badges       []Badge                `json:"badges"`
}

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSelfEndorsement = errors.New("cannot endorse yourself")
)
