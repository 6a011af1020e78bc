package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillSwapAPI/internal/types/challenge"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load()
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func createTestUser(t *testing.T, ctx context.Context, db *pgxpool.Pool) (uuid.UUID, string) {
	t.Helper()

	clerkID := "test_clerk_" + uuid.New().String()
	var userID uuid.UUID
	err := db.QueryRow(ctx, `
		INSERT INTO users (clerk_id, email, username)
		VALUES ($1, $2, $3)
		RETURNING id
	`, clerkID, clerkID+"@example.com", "tester_"+uuid.New().String()[:8]).Scan(&userID)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		db.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM user_badges WHERE user_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM endorsements WHERE user_id = $1 OR endorser_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM skill_levels WHERE user_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM user_tiers WHERE user_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM user_progression WHERE user_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM user_challenges WHERE user_id = $1`, userID)
		db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	})

	return userID, clerkID
}

func createTestChallenge(t *testing.T, ctx context.Context, db *pgxpool.Pool, xp int, targets ...int) uuid.UUID {
	t.Helper()
	return createTestChallengeOfType(t, ctx, db, challenge.TypeSkill, xp, targets...)
}

func createTestChallengeOfType(t *testing.T, ctx context.Context, db *pgxpool.Pool, chType challenge.Type, xp int, targets ...int) uuid.UUID {
	t.Helper()

	reqs := []challenge.Requirement{}
	for i, target := range targets {
		reqs = append(reqs, challenge.Requirement{
			ID:     fmt.Sprintf("req-%d", i+1),
			Type:   "actions_completed",
			Target: target,
		})
	}
	reqsJSON, err := json.Marshal(reqs)
	require.NoError(t, err)

	rewards := challenge.Rewards{
		XP: xp,
		Badges: []challenge.BadgeReward{
			{ID: "badge-finisher", Name: "Finisher", Description: "Completed a challenge", Icon: "medal"},
		},
	}
	rewardsJSON, err := json.Marshal(rewards)
	require.NoError(t, err)

	var challengeID uuid.UUID
	err = db.QueryRow(ctx, `
		INSERT INTO challenges (title, type, requirements, rewards, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, NOW() - INTERVAL '1 day', NOW() + INTERVAL '30 days', 'ACTIVE')
		RETURNING id
	`, "Test Challenge "+uuid.New().String()[:8], chType, reqsJSON, rewardsJSON).Scan(&challengeID)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		db.Exec(ctx, `DELETE FROM user_challenges WHERE challenge_id = $1`, challengeID)
		db.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, challengeID)
	})

	return challengeID
}

func newTestChallengeService(db *pgxpool.Pool) *ChallengeService {
	progressionSvc := NewProgressionService(db)
	rewardSvc := NewRewardService(db)
	notificationSvc := NewNotificationService(db)
	return NewChallengeService(db, progressionSvc, rewardSvc, notificationSvc, false)
}

func TestChallengeLifecycleFlow(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	userID, clerkID := createTestUser(t, ctx, db)
	challengeID := createTestChallenge(t, ctx, db, 150, 1)

	svc := newTestChallengeService(db)

	// Join: ACTIVE, zero progress, participant counted.
	uc, err := svc.StartChallenge(ctx, clerkID, challengeID)
	require.NoError(t, err)
	assert.Equal(t, challenge.ParticipationActive, uc.Status)
	assert.Equal(t, 0, uc.Progress)
	assert.Equal(t, 1, uc.MaxProgress)
	assert.False(t, uc.RewardsGranted)

	var participants int
	require.NoError(t, db.QueryRow(ctx, `SELECT participant_count FROM challenges WHERE id = $1`, challengeID).Scan(&participants))
	assert.Equal(t, 1, participants)

	// Double join is rejected.
	_, err = svc.StartChallenge(ctx, clerkID, challengeID)
	assert.ErrorIs(t, err, challenge.ErrAlreadyJoined)

	// Progress clamps and does not auto-complete.
	uc, err = svc.UpdateChallengeProgress(ctx, clerkID, challengeID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, uc.Progress)
	assert.Equal(t, challenge.ParticipationActive, uc.Status)

	uc, err = svc.UpdateChallengeProgress(ctx, clerkID, challengeID, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, uc.Progress)

	// Complete: terminal, counter bumped, rewards issued.
	completed, err := svc.CompleteChallenge(ctx, clerkID, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.ParticipationCompleted, completed.Status)
	require.NotNil(t, completed.CompletionTimeMinutes)

	var completions int
	require.NoError(t, db.QueryRow(ctx, `SELECT completion_count FROM challenges WHERE id = $1`, challengeID).Scan(&completions))
	assert.Equal(t, 1, completions)

	var xp int
	require.NoError(t, db.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, userID).Scan(&xp))
	assert.Equal(t, 150, xp)

	var granted bool
	require.NoError(t, db.QueryRow(ctx, `SELECT rewards_granted FROM user_challenges WHERE id = $1`, uc.ID).Scan(&granted))
	assert.True(t, granted)

	// Second completion fails and grants nothing extra.
	_, err = svc.CompleteChallenge(ctx, clerkID, uc.ID)
	assert.ErrorIs(t, err, challenge.ErrAlreadyCompleted)

	rewardSvc := NewRewardService(db)
	require.NoError(t, rewardSvc.GrantChallengeRewards(ctx, uc.ID))
	require.NoError(t, db.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, userID).Scan(&xp))
	assert.Equal(t, 150, xp)

	var badgeCount int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = $1 AND badge_id = 'badge-finisher'`, userID).Scan(&badgeCount))
	assert.Equal(t, 1, badgeCount)

	// Terminal records are immutable.
	_, err = svc.UpdateChallengeProgress(ctx, clerkID, challengeID, 1)
	assert.ErrorIs(t, err, challenge.ErrInvalidState)

	// Stats are derived from the history just written.
	stats, err := svc.GetChallengeStats(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCompleted)
	assert.Equal(t, 0, stats.TotalActive)
	assert.Equal(t, 1, stats.StreakCount)
}

func TestConcurrentStartSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, clerkID := createTestUser(t, ctx, db)
	challengeID := createTestChallenge(t, ctx, db, 50, 3)

	svc := newTestChallengeService(db)

	const callers = 5
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartChallenge(ctx, clerkID, challengeID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		// A loser either observes the winner's row or exhausts its conflict
		// retry budget; both are fine as long as exactly one call wins.
		if !errors.Is(err, challenge.ErrAlreadyJoined) && !errors.Is(err, challenge.ErrTxConflict) {
			t.Fatalf("unexpected start error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)

	var participants int
	require.NoError(t, db.QueryRow(ctx, `SELECT participant_count FROM challenges WHERE id = $1`, challengeID).Scan(&participants))
	assert.Equal(t, 1, participants)
}

func TestChallengeStatsAcrossRecords(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, clerkID := createTestUser(t, ctx, db)
	svc := newTestChallengeService(db)

	var joined []*challenge.UserChallenge
	for i := 0; i < 4; i++ {
		challengeID := createTestChallenge(t, ctx, db, 10, 1)
		uc, err := svc.StartChallenge(ctx, clerkID, challengeID)
		require.NoError(t, err)
		joined = append(joined, uc)
	}

	_, err := svc.CompleteChallenge(ctx, clerkID, joined[0].ID)
	require.NoError(t, err)
	_, err = svc.CompleteChallenge(ctx, clerkID, joined[1].ID)
	require.NoError(t, err)
	_, err = svc.AbandonChallenge(ctx, clerkID, joined[2].ID)
	require.NoError(t, err)
	// joined[3] stays ACTIVE.

	stats, err := svc.GetChallengeStats(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCompleted)
	assert.Equal(t, 1, stats.TotalActive)
	assert.Equal(t, 1, stats.StreakCount)
}

func TestAbandonChallenge(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	userID, clerkID := createTestUser(t, ctx, db)
	challengeID := createTestChallenge(t, ctx, db, 100, 2)

	svc := newTestChallengeService(db)

	uc, err := svc.StartChallenge(ctx, clerkID, challengeID)
	require.NoError(t, err)

	abandoned, err := svc.AbandonChallenge(ctx, clerkID, uc.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.ParticipationAbandoned, abandoned.Status)

	// No rewards for abandoning.
	var xp int
	err = db.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, userID).Scan(&xp)
	if err == nil {
		assert.Equal(t, 0, xp)
	}

	// Terminal: no second abandon, no completion, no restart.
	_, err = svc.AbandonChallenge(ctx, clerkID, uc.ID)
	assert.ErrorIs(t, err, challenge.ErrInvalidState)

	_, err = svc.CompleteChallenge(ctx, clerkID, uc.ID)
	assert.ErrorIs(t, err, challenge.ErrInvalidState)

	_, err = svc.StartChallenge(ctx, clerkID, challengeID)
	assert.ErrorIs(t, err, challenge.ErrAlreadyJoined)
}
