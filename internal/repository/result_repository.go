package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnspire/testtrack-backend/internal/model"
)

// ResultRepository handles persisted test result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a result row. A duplicate test-candidate pair is a no-op;
// results are write-once.
func (r *ResultRepository) Create(ctx context.Context, res *model.TestResult) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_results (test_id, candidate_id, score, total_marks, percentage,
		                           correct_answers, incorrect_answers, passed,
		                           time_spent_seconds, violation_count, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (test_id, candidate_id) DO NOTHING
		 RETURNING id, created_at`,
		res.TestID, res.CandidateID, res.Score, res.TotalMarks, res.Percentage,
		res.CorrectAnswers, res.IncorrectAnswers, res.Passed,
		res.TimeSpentSeconds, res.ViolationCount, res.StartedAt, res.EndedAt,
	).Scan(&res.ID, &res.CreatedAt)
}

// BulkInsertResponses inserts a result's per-question audit rows via COPY.
func (r *ResultRepository) BulkInsertResponses(ctx context.Context, resultID uuid.UUID, responses []model.TestResponse) error {
	if len(responses) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(responses))
	for _, resp := range responses {
		rows = append(rows, []interface{}{
			resultID, resp.SectionID, resp.QuestionID, resp.Answer, resp.Answered, resp.IsCorrect, resp.Points,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"test_responses"},
		[]string{"result_id", "section_id", "question_id", "answer", "answered", "is_correct", "points"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// GetByTestAndCandidate retrieves the persisted result for a test-candidate pair.
func (r *ResultRepository) GetByTestAndCandidate(ctx context.Context, testID uuid.UUID, candidateID int) (*model.TestResult, error) {
	res := &model.TestResult{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, candidate_id, score, total_marks, percentage,
		        correct_answers, incorrect_answers, passed,
		        time_spent_seconds, violation_count, started_at, ended_at, created_at
		 FROM test_results
		 WHERE test_id = $1 AND candidate_id = $2`, testID, candidateID,
	).Scan(&res.ID, &res.TestID, &res.CandidateID, &res.Score, &res.TotalMarks, &res.Percentage,
		&res.CorrectAnswers, &res.IncorrectAnswers, &res.Passed,
		&res.TimeSpentSeconds, &res.ViolationCount, &res.StartedAt, &res.EndedAt, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListResponses retrieves the per-question audit rows for a result.
func (r *ResultRepository) ListResponses(ctx context.Context, resultID uuid.UUID) ([]model.TestResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, result_id, section_id, question_id, answer, answered, is_correct, points
		 FROM test_responses
		 WHERE result_id = $1`, resultID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.TestResponse
	for rows.Next() {
		var resp model.TestResponse
		if err := rows.Scan(&resp.ID, &resp.ResultID, &resp.SectionID, &resp.QuestionID,
			&resp.Answer, &resp.Answered, &resp.IsCorrect, &resp.Points); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
