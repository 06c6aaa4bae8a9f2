package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnspire/testtrack-backend/internal/model"
)

// TestRepository handles test, section, and question data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, author_id, duration_minutes, passing_score,
		        entry_token, scheduled_start, scheduled_end, status, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.AuthorID, &t.DurationMinutes, &t.PassingScore,
		&t.EntryToken, &t.ScheduledStart, &t.ScheduledEnd, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByEntryToken retrieves a published test by its entry token.
func (r *TestRepository) GetByEntryToken(ctx context.Context, token string) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, author_id, duration_minutes, passing_score,
		        entry_token, scheduled_start, scheduled_end, status, created_at, updated_at
		 FROM tests WHERE entry_token = $1 AND status = $2`, token, model.TestStatusPublished,
	).Scan(&t.ID, &t.Title, &t.Description, &t.AuthorID, &t.DurationMinutes, &t.PassingScore,
		&t.EntryToken, &t.ScheduledStart, &t.ScheduledEnd, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListByAuthorPaginated retrieves tests filtered by author with pagination.
// Pass authorID=0 to list all tests.
func (r *TestRepository) ListByAuthorPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Test, int, error) {
	countQuery := `SELECT COUNT(*) FROM tests`
	var countArgs []interface{}
	if authorID > 0 {
		countQuery += ` WHERE author_id = $1`
		countArgs = append(countArgs, authorID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, description, author_id, duration_minutes, passing_score,
	                 entry_token, scheduled_start, scheduled_end, status, created_at, updated_at
	          FROM tests`
	var args []interface{}
	argIdx := 1

	if authorID > 0 {
		query += ` WHERE author_id = $1`
		args = append(args, authorID)
		argIdx++
	}

	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.AuthorID, &t.DurationMinutes, &t.PassingScore,
			&t.EntryToken, &t.ScheduledStart, &t.ScheduledEnd, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// ListPublished returns all tests with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, author_id, duration_minutes, passing_score,
		        entry_token, scheduled_start, scheduled_end, status, created_at, updated_at
		 FROM tests WHERE status = $1
		 ORDER BY created_at DESC`, model.TestStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.AuthorID, &t.DurationMinutes, &t.PassingScore,
			&t.EntryToken, &t.ScheduledStart, &t.ScheduledEnd, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, description, author_id, duration_minutes, passing_score,
		                    entry_token, scheduled_start, scheduled_end, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.AuthorID, t.DurationMinutes, t.PassingScore,
		t.EntryToken, t.ScheduledStart, t.ScheduledEnd, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies a test's editable fields.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, description = $2, duration_minutes = $3, passing_score = $4,
		     entry_token = $5, scheduled_start = $6, scheduled_end = $7, updated_at = NOW()
		 WHERE id = $8`,
		t.Title, t.Description, t.DurationMinutes, t.PassingScore,
		t.EntryToken, t.ScheduledStart, t.ScheduledEnd, t.ID)
	return err
}

// UpdateStatus updates a test's status.
func (r *TestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a test and (via cascade) its sections and questions.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

// ListSections retrieves all sections for a test with their questions,
// ordered by order_num at both levels.
func (r *TestRepository) ListSections(ctx context.Context, testID uuid.UUID) ([]model.TestSection, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, title, description, order_num
		 FROM test_sections WHERE test_id = $1
		 ORDER BY order_num`, testID,
	)
	if err != nil {
		return nil, err
	}

	var sections []model.TestSection
	for rows.Next() {
		var s model.TestSection
		if err := rows.Scan(&s.ID, &s.TestID, &s.Title, &s.Description, &s.OrderNum); err != nil {
			rows.Close()
			return nil, err
		}
		sections = append(sections, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sections {
		questions, err := r.listQuestions(ctx, sections[i].ID)
		if err != nil {
			return nil, err
		}
		sections[i].Questions = questions
	}
	return sections, nil
}

func (r *TestRepository) listQuestions(ctx context.Context, sectionID uuid.UUID) ([]model.TestQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, section_id, prompt, question_type, options, correct_option, correct_text, points, order_num
		 FROM test_questions WHERE section_id = $1
		 ORDER BY order_num`, sectionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.TestQuestion
	for rows.Next() {
		var q model.TestQuestion
		if err := rows.Scan(&q.ID, &q.SectionID, &q.Prompt, &q.QuestionType, &q.Options,
			&q.CorrectOption, &q.CorrectText, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ReplaceSections atomically replaces a test's sections and questions.
// Existing sections cascade-delete their questions.
func (r *TestRepository) ReplaceSections(ctx context.Context, testID uuid.UUID, sections []model.TestSection) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM test_sections WHERE test_id = $1`, testID); err != nil {
		return err
	}

	for i := range sections {
		s := &sections[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO test_sections (test_id, title, description, order_num)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			testID, s.Title, s.Description, s.OrderNum,
		).Scan(&s.ID)
		if err != nil {
			return err
		}
		s.TestID = testID

		for j := range s.Questions {
			q := &s.Questions[j]
			err := tx.QueryRow(ctx,
				`INSERT INTO test_questions (section_id, prompt, question_type, options, correct_option, correct_text, points, order_num)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 RETURNING id`,
				s.ID, q.Prompt, q.QuestionType, q.Options, q.CorrectOption, q.CorrectText, q.Points, q.OrderNum,
			).Scan(&q.ID)
			if err != nil {
				return err
			}
			q.SectionID = s.ID
		}
	}

	return tx.Commit(ctx)
}
