package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/leveling"
	"skillSwapAPI/internal/types/challenge"
	"skillSwapAPI/utils"
)

// RewardService grants a completed challenge's experience and badges exactly
// once. The rewards_granted flag lives on the same record as the completion
// it guards, so no matter how many times the completion trigger fires the
// grant applies at most once.
type RewardService struct {
	db       *pgxpool.Pool
	notifier utils.Notifier
}

func NewRewardService(db *pgxpool.Pool) *RewardService {
	return &RewardService{db: db}
}

// SetNotifier enables the level-up trigger. Optional; grants work without it.
func (s *RewardService) SetNotifier(n utils.Notifier) {
	s.notifier = n
}

// GrantChallengeRewards is safe to call repeatedly with the same id: the
// whole grant runs in one transaction keyed on rewards_granted, so a retry
// after partial failure re-applies cleanly and a retry after success no-ops.
func (s *RewardService) GrantChallengeRewards(ctx context.Context, userChallengeID uuid.UUID) error {
	var grantedTo uuid.UUID
	var oldXP, newXP int
	var newBadges []challenge.BadgeReward

	err := runSerializable(ctx, s.db, func(tx pgx.Tx) error {
		grantedTo = uuid.Nil
		oldXP, newXP = 0, 0
		newBadges = nil
		var userID, challengeID uuid.UUID
		var status challenge.ParticipationStatus
		var granted bool

		err := tx.QueryRow(ctx, `
			SELECT user_id, challenge_id, status, rewards_granted
			FROM user_challenges
			WHERE id = $1
		`, userChallengeID).Scan(&userID, &challengeID, &status, &granted)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return challenge.ErrNotJoined
			}
			return fmt.Errorf("failed to read participation: %w", err)
		}

		if status != challenge.ParticipationCompleted {
			return challenge.ErrInvalidState
		}
		if granted {
			// Idempotency guard: already applied.
			return nil
		}
		grantedTo = userID

		var rewardsJSON []byte
		err = tx.QueryRow(ctx, `SELECT rewards FROM challenges WHERE id = $1`, challengeID).
			Scan(&rewardsJSON)
		if err != nil {
			return fmt.Errorf("failed to read challenge rewards: %w", err)
		}
		var rewards challenge.Rewards
		if err := json.Unmarshal(rewardsJSON, &rewards); err != nil {
			return fmt.Errorf("failed to decode rewards: %w", err)
		}

		if rewards.XP > 0 {
			err = tx.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, userID).
				Scan(&oldXP)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to read experience: %w", err)
			}
			if err := addExperience(ctx, tx, userID, rewards.XP); err != nil {
				return err
			}
			newXP = oldXP + rewards.XP
		}

		// Level is not written anywhere: it is recomputed from experience by
		// the leveling calculator on every read.

		for _, b := range rewards.Badges {
			result, err := tx.Exec(ctx, `
				INSERT INTO user_badges (user_id, badge_id, name, description, icon, earned_at)
				VALUES ($1, $2, $3, $4, $5, NOW())
				ON CONFLICT (user_id, badge_id) DO NOTHING
			`, userID, b.ID, b.Name, b.Description, b.Icon)
			if err != nil {
				return fmt.Errorf("failed to grant badge %s: %w", b.ID, err)
			}
			if result.RowsAffected() > 0 {
				newBadges = append(newBadges, b)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_challenges
			SET rewards_granted = true
			WHERE id = $1
		`, userChallengeID)
		if err != nil {
			return fmt.Errorf("failed to set rewards_granted: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if grantedTo != uuid.Nil {
		for _, b := range newBadges {
			utils.BadgeEarned(s.notifier, grantedTo, b.ID, b.Name)
		}
		if newLevel := leveling.LevelFor(newXP); newLevel > leveling.LevelFor(oldXP) {
			utils.LevelUp(s.notifier, grantedTo, newLevel)
		}
	}
	return nil
}

// addExperience upserts the progression row. Experience is monotonically
// non-decreasing outside administrative correction.
func addExperience(ctx context.Context, tx pgx.Tx, userID uuid.UUID, xp int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_progression (user_id, experience, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET experience = user_progression.experience + $2, updated_at = NOW()
	`, userID, xp)
	if err != nil {
		return fmt.Errorf("failed to add experience: %w", err)
	}
	return nil
}
