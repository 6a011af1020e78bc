package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillSwapAPI/internal/types/progression"
)

func TestAddEndorsementSelfRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	userID, clerkID := createTestUser(t, ctx, db)
	svc := NewEndorsementService(db)

	err := svc.AddEndorsement(ctx, clerkID, userID, "guitar")
	assert.ErrorIs(t, err, progression.ErrSelfEndorsement)

	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM endorsements WHERE user_id = $1`, userID).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestAddEndorsementUnknownTarget(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, clerkID := createTestUser(t, ctx, db)
	svc := NewEndorsementService(db)

	err := svc.AddEndorsement(ctx, clerkID, uuid.New(), "guitar")
	assert.ErrorIs(t, err, progression.ErrUserNotFound)
}

func TestAddEndorsementExactlyOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	targetID, _ := createTestUser(t, ctx, db)
	_, endorserClerkID := createTestUser(t, ctx, db)
	_, secondClerkID := createTestUser(t, ctx, db)

	svc := NewEndorsementService(db)

	require.NoError(t, svc.AddEndorsement(ctx, endorserClerkID, targetID, "guitar"))

	var xp int
	require.NoError(t, db.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, targetID).Scan(&xp))
	assert.Equal(t, 25, xp)

	var skillXP int
	require.NoError(t, db.QueryRow(ctx, `SELECT experience FROM skill_levels WHERE user_id = $1 AND skill = 'guitar'`, targetID).Scan(&skillXP))
	assert.Equal(t, 25, skillXP)

	// Same endorser again: set semantics, no error, no extra XP.
	require.NoError(t, svc.AddEndorsement(ctx, endorserClerkID, targetID, "guitar"))

	var count int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM endorsements WHERE user_id = $1 AND skill = 'guitar'`, targetID).Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, db.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, targetID).Scan(&xp))
	assert.Equal(t, 25, xp)

	// A different endorser grows the set and awards again.
	require.NoError(t, svc.AddEndorsement(ctx, secondClerkID, targetID, "guitar"))

	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM endorsements WHERE user_id = $1 AND skill = 'guitar'`, targetID).Scan(&count))
	assert.Equal(t, 2, count)
	require.NoError(t, db.QueryRow(ctx, `SELECT experience FROM user_progression WHERE user_id = $1`, targetID).Scan(&xp))
	assert.Equal(t, 50, xp)

	// The progression read surfaces the endorser set.
	progressionSvc := NewProgressionService(db)
	p, err := progressionSvc.GetProgression(ctx, targetID)
	require.NoError(t, err)
	assert.Len(t, p.Endorsements["guitar"], 2)
	assert.Equal(t, 50, p.SkillLevels["guitar"].Experience)
}
