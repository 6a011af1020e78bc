package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/streakcalc"
	"skillSwapAPI/internal/tier"
	"skillSwapAPI/internal/types/challenge"
	"skillSwapAPI/utils"
)

// ChallengeService owns the participation state machine:
// absent -> ACTIVE -> {COMPLETED, ABANDONED}. Every transition runs as a
// single serializable transaction; reward issuance and notifications happen
// after commit and never roll the transition back.
type ChallengeService struct {
	db                  *pgxpool.Pool
	progressionService  *ProgressionService
	rewardService       *RewardService
	notificationService *NotificationService
	tierGatingEnabled   bool
}

func NewChallengeService(
	db *pgxpool.Pool,
	progressionService *ProgressionService,
	rewardService *RewardService,
	notificationService *NotificationService,
	tierGatingEnabled bool,
) *ChallengeService {
	return &ChallengeService{
		db:                  db,
		progressionService:  progressionService,
		rewardService:       rewardService,
		notificationService: notificationService,
		tierGatingEnabled:   tierGatingEnabled,
	}
}

const userChallengeColumns = `
	id, user_id, challenge_id, status, progress, max_progress,
	started_at, last_activity_at, completion_time_minutes, rewards_granted
`

func scanUserChallenge(row pgx.Row) (*challenge.UserChallenge, error) {
	uc := &challenge.UserChallenge{}
	err := row.Scan(
		&uc.ID,
		&uc.UserID,
		&uc.ChallengeID,
		&uc.Status,
		&uc.Progress,
		&uc.MaxProgress,
		&uc.StartedAt,
		&uc.LastActivityAt,
		&uc.CompletionTimeMinutes,
		&uc.RewardsGranted,
	)
	if err != nil {
		return nil, err
	}
	return uc, nil
}

func (s *ChallengeService) resolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("user not found")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}

// StartChallenge joins the user to a challenge. Exactly one concurrent call
// per (user, challenge) pair can succeed: the unique constraint on
// user_challenges plus the serializable transaction guarantee it.
func (s *ChallengeService) StartChallenge(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.UserChallenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	// Tier gate is a pre-check before the transaction. Tier unlocks change
	// rarely; a grant racing a denied join is resolved by the caller
	// retrying after re-checking.
	var chType challenge.Type
	var chStatus challenge.Status
	err = s.db.QueryRow(ctx, `SELECT type, status FROM challenges WHERE id = $1`, challengeID).
		Scan(&chType, &chStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}
	if chStatus != challenge.StatusActive {
		return nil, challenge.ErrChallengeInactive
	}

	unlocked, err := s.progressionService.GetUnlockedTiers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read unlocked tiers: %w", err)
	}
	if !tier.Allowed(chType, unlocked, s.tierGatingEnabled) {
		return nil, challenge.ErrTierLocked
	}

	var created *challenge.UserChallenge
	err = runSerializable(ctx, s.db, func(tx pgx.Tx) error {
		// Re-validate inside the transaction: the pre-check reads are not
		// part of its read set.
		var status challenge.Status
		var requirementsJSON []byte
		err := tx.QueryRow(ctx, `SELECT status, requirements FROM challenges WHERE id = $1`, challengeID).
			Scan(&status, &requirementsJSON)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return challenge.ErrChallengeNotFound
			}
			return fmt.Errorf("failed to read challenge: %w", err)
		}
		if status != challenge.StatusActive {
			return challenge.ErrChallengeInactive
		}

		var requirements []challenge.Requirement
		if err := json.Unmarshal(requirementsJSON, &requirements); err != nil {
			return fmt.Errorf("failed to decode requirements: %w", err)
		}
		maxProgress := challenge.TotalTarget(requirements)
		if maxProgress <= 0 {
			maxProgress = 1
		}

		// Any existing row, whatever its status, blocks a re-join. The row
		// is permanent history; abandoning does not free the slot.
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM user_challenges WHERE user_id = $1 AND challenge_id = $2)
		`, userID, challengeID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check participation: %w", err)
		}
		if exists {
			return challenge.ErrAlreadyJoined
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO user_challenges (user_id, challenge_id, status, progress, max_progress, started_at, last_activity_at, rewards_granted)
			VALUES ($1, $2, 'ACTIVE', 0, $3, NOW(), NOW(), false)
			RETURNING `+userChallengeColumns+`
		`, userID, challengeID, maxProgress)
		created, err = scanUserChallenge(row)
		if err != nil {
			return fmt.Errorf("failed to create participation: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE challenges
			SET participant_count = participant_count + 1, updated_at = NOW()
			WHERE id = $1
		`, challengeID)
		if err != nil {
			return fmt.Errorf("failed to increment participant count: %w", err)
		}

		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, challenge.ErrAlreadyJoined
		}
		return nil, err
	}

	return created, nil
}

// UpdateChallengeProgress applies a delta clamped to [0, maxProgress].
// Reaching maxProgress does not auto-complete; completion is an explicit,
// separate call.
func (s *ChallengeService) UpdateChallengeProgress(ctx context.Context, clerkID string, challengeID uuid.UUID, delta int) (*challenge.UserChallenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var updated *challenge.UserChallenge
	err = runSerializable(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+userChallengeColumns+`
			FROM user_challenges
			WHERE user_id = $1 AND challenge_id = $2
		`, userID, challengeID)
		uc, err := scanUserChallenge(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return challenge.ErrNotJoined
			}
			return fmt.Errorf("failed to read participation: %w", err)
		}

		if uc.Status != challenge.ParticipationActive {
			return challenge.ErrInvalidState
		}

		newProgress := challenge.ClampProgress(uc.Progress, delta, uc.MaxProgress)

		row = tx.QueryRow(ctx, `
			UPDATE user_challenges
			SET progress = $2, last_activity_at = NOW()
			WHERE id = $1
			RETURNING `+userChallengeColumns+`
		`, uc.ID, newProgress)
		updated, err = scanUserChallenge(row)
		if err != nil {
			return fmt.Errorf("failed to update progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CompleteChallenge finalizes an active participation and increments the
// challenge's completion counter. Rewards and the completion notification
// run after commit, best-effort: their failure never reverts COMPLETED.
func (s *ChallengeService) CompleteChallenge(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.UserChallenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var completed *challenge.UserChallenge
	var challengeTitle string
	var rewardXP int

	err = runSerializable(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+userChallengeColumns+`
			FROM user_challenges
			WHERE id = $1
		`, userChallengeID)
		uc, err := scanUserChallenge(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return challenge.ErrNotJoined
			}
			return fmt.Errorf("failed to read participation: %w", err)
		}
		if uc.UserID != userID {
			return challenge.ErrNotJoined
		}

		switch uc.Status {
		case challenge.ParticipationCompleted:
			return challenge.ErrAlreadyCompleted
		case challenge.ParticipationAbandoned:
			return challenge.ErrInvalidState
		}

		var rewardsJSON []byte
		err = tx.QueryRow(ctx, `SELECT title, rewards FROM challenges WHERE id = $1`, uc.ChallengeID).
			Scan(&challengeTitle, &rewardsJSON)
		if err != nil {
			return fmt.Errorf("failed to read challenge: %w", err)
		}
		var rewards challenge.Rewards
		if err := json.Unmarshal(rewardsJSON, &rewards); err != nil {
			return fmt.Errorf("failed to decode rewards: %w", err)
		}
		rewardXP = rewards.XP

		minutes := int(time.Now().UTC().Sub(uc.StartedAt).Minutes())
		if minutes < 0 {
			minutes = 0
		}

		row = tx.QueryRow(ctx, `
			UPDATE user_challenges
			SET status = 'COMPLETED', completion_time_minutes = $2, last_activity_at = NOW()
			WHERE id = $1
			RETURNING `+userChallengeColumns+`
		`, uc.ID, minutes)
		completed, err = scanUserChallenge(row)
		if err != nil {
			return fmt.Errorf("failed to complete participation: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE challenges
			SET completion_count = completion_count + 1, updated_at = NOW()
			WHERE id = $1
		`, uc.ChallengeID)
		if err != nil {
			return fmt.Errorf("failed to increment completion count: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Secondary effects. Reward issuance is guarded by rewards_granted, so a
	// retry after a failure here cannot double-grant.
	if err := s.rewardService.GrantChallengeRewards(context.WithoutCancel(ctx), completed.ID); err != nil {
		log.Printf("CompleteChallenge: reward issuance failed for %s, will retry out-of-band: %v", completed.ID, err)
	}
	utils.ChallengeCompleted(s.notificationService, userID, challengeTitle, rewardXP)

	return completed, nil
}

// AbandonChallenge marks an active participation ABANDONED. Same guard as
// completion, no rewards.
func (s *ChallengeService) AbandonChallenge(ctx context.Context, clerkID string, userChallengeID uuid.UUID) (*challenge.UserChallenge, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var abandoned *challenge.UserChallenge
	err = runSerializable(ctx, s.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT `+userChallengeColumns+`
			FROM user_challenges
			WHERE id = $1
		`, userChallengeID)
		uc, err := scanUserChallenge(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return challenge.ErrNotJoined
			}
			return fmt.Errorf("failed to read participation: %w", err)
		}
		if uc.UserID != userID {
			return challenge.ErrNotJoined
		}
		if uc.Status != challenge.ParticipationActive {
			return challenge.ErrInvalidState
		}

		row = tx.QueryRow(ctx, `
			UPDATE user_challenges
			SET status = 'ABANDONED', last_activity_at = NOW()
			WHERE id = $1
			RETURNING `+userChallengeColumns+`
		`, uc.ID)
		abandoned, err = scanUserChallenge(row)
		if err != nil {
			return fmt.Errorf("failed to abandon participation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return abandoned, nil
}

// GetChallengeStats folds over the user's complete participation history.
// Counters stored on challenge rows are never consulted here: a scan of the
// authoritative records cannot be forged by writing a counter field, and it
// self-heals any drift. The read is not transactional; slightly stale
// results are fine for informational stats.
func (s *ChallengeService) GetChallengeStats(ctx context.Context, clerkID string) (*challenge.Stats, error) {
	userID, err := s.resolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT status, last_activity_at
		FROM user_challenges
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge history: %w", err)
	}
	defer rows.Close()

	stats := &challenge.Stats{}
	var completions []time.Time

	for rows.Next() {
		var status challenge.ParticipationStatus
		var lastActivityAt time.Time
		if err := rows.Scan(&status, &lastActivityAt); err != nil {
			return nil, fmt.Errorf("failed to scan participation: %w", err)
		}

		switch status {
		case challenge.ParticipationCompleted:
			stats.TotalCompleted++
			completions = append(completions, lastActivityAt)
		case challenge.ParticipationActive:
			stats.TotalActive++
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	stats.StreakCount = streakcalc.CurrentStreak(completions, time.Now())

	return stats, nil
}
