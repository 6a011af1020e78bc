package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"skillSwapAPI/internal/types/challenge"
)

// CatalogService is the read side of the challenge catalog. Challenges are
// created and archived by admin tooling; the lifecycle manager only touches
// their participant/completion counters.
type CatalogService struct {
	db *pgxpool.Pool
}

func NewCatalogService(db *pgxpool.Pool) *CatalogService {
	return &CatalogService{db: db}
}

const challengeColumns = `
	id, title, type, category, difficulty, requirements, rewards,
	start_date, end_date, status, participant_count, completion_count,
	tags, created_by, created_at, updated_at
`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	ch := &challenge.Challenge{}
	var requirementsJSON, rewardsJSON []byte

	err := row.Scan(
		&ch.ID,
		&ch.Title,
		&ch.Type,
		&ch.Category,
		&ch.Difficulty,
		&requirementsJSON,
		&rewardsJSON,
		&ch.StartDate,
		&ch.EndDate,
		&ch.Status,
		&ch.ParticipantCount,
		&ch.CompletionCount,
		&ch.Tags,
		&ch.CreatedBy,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(requirementsJSON, &ch.Requirements); err != nil {
		return nil, fmt.Errorf("failed to decode requirements: %w", err)
	}
	if err := json.Unmarshal(rewardsJSON, &ch.Rewards); err != nil {
		return nil, fmt.Errorf("failed to decode rewards: %w", err)
	}

	return ch, nil
}

func (s *CatalogService) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`

	ch, err := scanChallenge(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, challenge.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return ch, nil
}

// ListActiveChallenges returns currently joinable challenges, optionally
// filtered by type.
func (s *CatalogService) ListActiveChallenges(ctx context.Context, challengeType string) ([]*challenge.Challenge, error) {
	query := `
	SELECT ` + challengeColumns + `
	FROM challenges
	WHERE status = 'ACTIVE'
		AND start_date <= NOW()
		AND end_date >= NOW()
		AND ($1 = '' OR type = $1)
	ORDER BY end_date ASC
	LIMIT 100
	`

	rows, err := s.db.Query(ctx, query, challengeType)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := []*challenge.Challenge{}
	for rows.Next() {
		ch, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, ch)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return challenges, nil
}

// DeactivateExpired flips ACTIVE challenges past their end date to INACTIVE.
// Runs periodically from the scheduler. Participation records are untouched;
// already-joined users can still finish.
func (s *CatalogService) DeactivateExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	result, err := s.db.Exec(ctx, `
		UPDATE challenges
		SET status = 'INACTIVE', updated_at = NOW()
		WHERE status = 'ACTIVE' AND end_date < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired challenges: %w", err)
	}

	return result.RowsAffected(), nil
}
