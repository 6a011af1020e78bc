package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/leveling"
	"skillSwapAPI/internal/types/progression"
)

// ProgressionService is the read side of a user's reputation. Levels are
// never stored: they are recomputed from experience on every read so a
// directly-written level field cannot exist, let alone drift.
type ProgressionService struct {
	db *pgxpool.Pool
}

func NewProgressionService(db *pgxpool.Pool) *ProgressionService {
	return &ProgressionService{db: db}
}

func (s *ProgressionService) GetProgression(ctx context.Context, userID uuid.UUID) (*progression.UserProgression, error) {
	p := &progression.UserProgression{
		UserID:       userID,
		SkillLevels:  map[string]progression.SkillLevel{},
		Endorsements: map[string][]uuid.UUID{},
		Badges:       []progression.Badge{},
	}

	err := s.db.QueryRow(ctx, `
		SELECT experience FROM user_progression WHERE user_id = $1
	`, userID).Scan(&p.Experience)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to get progression: %w", err)
	}
	// No row yet means a fresh account: zero experience, level 1.
	p.Level = leveling.LevelFor(p.Experience)

	rows, err := s.db.Query(ctx, `
		SELECT skill, experience FROM skill_levels WHERE user_id = $1 ORDER BY skill
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get skill levels: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var skill string
		var xp int
		if err := rows.Scan(&skill, &xp); err != nil {
			return nil, fmt.Errorf("failed to scan skill level: %w", err)
		}
		p.SkillLevels[skill] = progression.SkillLevel{
			Level:      leveling.LevelFor(xp),
			Experience: xp,
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	endorsementRows, err := s.db.Query(ctx, `
		SELECT skill, endorser_id FROM endorsements WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get endorsements: %w", err)
	}
	defer endorsementRows.Close()
	for endorsementRows.Next() {
		var skill string
		var endorserID uuid.UUID
		if err := endorsementRows.Scan(&skill, &endorserID); err != nil {
			return nil, fmt.Errorf("failed to scan endorsement: %w", err)
		}
		p.Endorsements[skill] = append(p.Endorsements[skill], endorserID)
	}
	if err = endorsementRows.Err(); err != nil {
		return nil, err
	}

	badgeRows, err := s.db.Query(ctx, `
		SELECT badge_id, name, description, icon, earned_at
		FROM user_badges
		WHERE user_id = $1
		ORDER BY earned_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	defer badgeRows.Close()
	for badgeRows.Next() {
		var b progression.Badge
		if err := badgeRows.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		p.Badges = append(p.Badges, b)
	}
	if err = badgeRows.Err(); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *ProgressionService) GetProgressionByClerkID(ctx context.Context, clerkID string) (*progression.UserProgression, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progression.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return s.GetProgression(ctx, userID)
}

// GetUnlockedTiers returns the user's unlocked-tier set. The solo tier is
// always present; the rest come from user_tiers rows.
func (s *ProgressionService) GetUnlockedTiers(ctx context.Context, userID uuid.UUID) (map[progression.Tier]bool, error) {
	unlocked := map[progression.Tier]bool{
		progression.TierSolo: true,
	}

	rows, err := s.db.Query(ctx, `SELECT tier FROM user_tiers WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t progression.Tier
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan tier: %w", err)
		}
		unlocked[t] = true
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return unlocked, nil
}

// UnlockTier grants a tier. Idempotent; used by tier soft-launch tooling.
func (s *ProgressionService) UnlockTier(ctx context.Context, userID uuid.UUID, t progression.Tier) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_tiers (user_id, tier, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, tier) DO NOTHING
	`, userID, t)
	if err != nil {
		return fmt.Errorf("failed to unlock tier: %w", err)
	}
	return nil
}
