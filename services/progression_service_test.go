package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillSwapAPI/internal/types/challenge"
	"skillSwapAPI/internal/types/progression"
)

func TestUnlockTierOpensGatedChallenges(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	userID, clerkID := createTestUser(t, ctx, db)
	challengeID := createTestChallengeOfType(t, ctx, db, challenge.TypeTrade, 50, 1)

	progressionSvc := NewProgressionService(db)
	rewardSvc := NewRewardService(db)
	notificationSvc := NewNotificationService(db)
	svc := NewChallengeService(db, progressionSvc, rewardSvc, notificationSvc, true)

	// Only the solo tier is held at signup, so a TRADE challenge is locked.
	_, err := svc.StartChallenge(ctx, clerkID, challengeID)
	assert.ErrorIs(t, err, challenge.ErrTierLocked)

	require.NoError(t, progressionSvc.UnlockTier(ctx, userID, progression.TierTrade))

	unlocked, err := progressionSvc.GetUnlockedTiers(ctx, userID)
	require.NoError(t, err)
	assert.True(t, unlocked[progression.TierSolo])
	assert.True(t, unlocked[progression.TierTrade])

	_, err = svc.StartChallenge(ctx, clerkID, challengeID)
	require.NoError(t, err)

	// Re-unlocking an already-held tier is a no-op.
	require.NoError(t, progressionSvc.UnlockTier(ctx, userID, progression.TierTrade))

	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM user_tiers WHERE user_id = $1 AND tier = $2`, userID, progression.TierTrade).Scan(&count))
	assert.Equal(t, 1, count)
}
