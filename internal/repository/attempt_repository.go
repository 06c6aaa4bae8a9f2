package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnspire/testtrack-backend/internal/model"
)

// AttemptOverview combines candidate data with their attempt details for result listings.
type AttemptOverview struct {
	CandidateID    int                 `json:"candidate_id"`
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	Batch          string              `json:"batch"`
	Score          *int                `json:"score"`
	Percentage     *int                `json:"percentage"`
	Passed         *bool               `json:"passed"`
	Status         model.AttemptStatus `json:"status"`
	ViolationCount int                 `json:"violation_count"`
	StartedAt      time.Time           `json:"started_at"`
	FinishedAt     *time.Time          `json:"finished_at"`
}

// AttemptRepository handles test attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByTestAndCandidate retrieves an attempt for a specific test-candidate combination.
func (r *AttemptRepository) GetByTestAndCandidate(ctx context.Context, testID uuid.UUID, candidateID int) (*model.TestAttempt, error) {
	a := &model.TestAttempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, candidate_id, started_at, finished_at, status, score, percentage, passed, violation_count
		 FROM test_attempts
		 WHERE test_id = $1 AND candidate_id = $2`, testID, candidateID,
	).Scan(&a.ID, &a.TestID, &a.CandidateID, &a.StartedAt, &a.FinishedAt, &a.Status,
		&a.Score, &a.Percentage, &a.Passed, &a.ViolationCount)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt (candidate joins the test).
// A second join for the same test-candidate pair is a no-op.
func (r *AttemptRepository) Create(ctx context.Context, a *model.TestAttempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_attempts (test_id, candidate_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (test_id, candidate_id) DO NOTHING
		 RETURNING id, started_at`,
		a.TestID, a.CandidateID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// Complete marks an attempt as completed with its final score fields.
func (r *AttemptRepository) Complete(ctx context.Context, testID uuid.UUID, candidateID, score, percentage int, passed bool, violationCount int) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE test_attempts
		 SET status = $1, score = $2, percentage = $3, passed = $4, violation_count = $5, finished_at = $6
		 WHERE test_id = $7 AND candidate_id = $8`,
		model.AttemptStatusCompleted, score, percentage, passed, violationCount, now, testID, candidateID)
	return err
}

// ListByCandidate retrieves all attempts for a given candidate.
func (r *AttemptRepository) ListByCandidate(ctx context.Context, candidateID int) ([]model.TestAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, candidate_id, started_at, finished_at, status, score, percentage, passed, violation_count
		 FROM test_attempts
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.TestAttempt
	for rows.Next() {
		var a model.TestAttempt
		if err := rows.Scan(&a.ID, &a.TestID, &a.CandidateID, &a.StartedAt, &a.FinishedAt, &a.Status,
			&a.Score, &a.Percentage, &a.Passed, &a.ViolationCount); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListByTest retrieves all candidate attempts for a specific test, with optional filters and pagination.
func (r *AttemptRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int, batch *string, status *model.AttemptStatus) ([]AttemptOverview, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM test_attempts ta
		JOIN candidates c ON ta.candidate_id = c.id
		WHERE ta.test_id = $1
	`
	args := []any{testID}

	if batch != nil && *batch != "" {
		args = append(args, *batch)
		baseQuery += fmt.Sprintf(" AND c.batch = $%d", len(args))
	}
	if status != nil {
		args = append(args, *status)
		baseQuery += fmt.Sprintf(" AND ta.status = $%d", len(args))
	}

	var total int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			c.id, c.name, c.email, c.batch,
			ta.score, ta.percentage, ta.passed, ta.status, ta.violation_count, ta.started_at, ta.finished_at
		` + baseQuery + `
		ORDER BY c.batch ASC, c.name ASC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2) + `
	`
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var overviews []AttemptOverview
	for rows.Next() {
		var o AttemptOverview
		if err := rows.Scan(
			&o.CandidateID, &o.Name, &o.Email, &o.Batch,
			&o.Score, &o.Percentage, &o.Passed, &o.Status, &o.ViolationCount, &o.StartedAt, &o.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		overviews = append(overviews, o)
	}

	return overviews, total, rows.Err()
}
