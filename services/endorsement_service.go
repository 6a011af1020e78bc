package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/types/progression"
)

// endorsementXP is the fixed experience awarded to the endorsed user, once
// per unique (endorser, skill) pair.
const endorsementXP = 25

type EndorsementService struct {
	db *pgxpool.Pool
}

func NewEndorsementService(db *pgxpool.Pool) *EndorsementService {
	return &EndorsementService{db: db}
}

// AddEndorsement records endorserID vouching for userID on a skill. The
// endorser set has set semantics: endorsing the same skill twice is a no-op
// and grants nothing. Self-endorsement is rejected outright.
func (s *EndorsementService) AddEndorsement(ctx context.Context, endorserClerkID string, userID uuid.UUID, skill string) error {
	var endorserID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, endorserClerkID).Scan(&endorserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return progression.ErrUserNotFound
		}
		return fmt.Errorf("failed to resolve endorser: %w", err)
	}

	if endorserID == userID {
		return progression.ErrSelfEndorsement
	}

	var exists bool
	err = s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check endorsed user: %w", err)
	}
	if !exists {
		return progression.ErrUserNotFound
	}

	return runSerializable(ctx, s.db, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			INSERT INTO endorsements (user_id, endorser_id, skill, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (user_id, endorser_id, skill) DO NOTHING
		`, userID, endorserID, skill)
		if err != nil {
			return fmt.Errorf("failed to add endorsement: %w", err)
		}

		if result.RowsAffected() == 0 {
			// Already endorsed; the XP award stays exactly-once.
			return nil
		}

		if err := addExperience(ctx, tx, userID, endorsementXP); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO skill_levels (user_id, skill, experience)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, skill)
			DO UPDATE SET experience = skill_levels.experience + $3
		`, userID, skill, endorsementXP)
		if err != nil {
			return fmt.Errorf("failed to update skill experience: %w", err)
		}

		return nil
	})
}
