package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MonitorRepository provides data access for the live proctoring dashboard.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// GetInProgressCandidateIDs returns all candidate IDs with an active attempt for the given test.
func (r *MonitorRepository) GetInProgressCandidateIDs(ctx context.Context, testID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id FROM test_attempts WHERE test_id = $1 AND status = 'IN_PROGRESS'`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetAnsweredCounts returns the count of autosaved answers for every candidate
// who has at least one answer recorded in the given test.
func (r *MonitorRepository) GetAnsweredCounts(ctx context.Context, testID uuid.UUID) (map[int]int64, error) {
	result := make(map[int]int64)

	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id, COUNT(*)
		 FROM candidate_answers
		 WHERE test_id = $1
		 GROUP BY candidate_id`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var count int64
		if err := rows.Scan(&cid, &count); err != nil {
			return nil, err
		}
		result[cid] = count
	}

	return result, rows.Err()
}

// GetViolationCounts returns the number of focus-loss events recorded for each candidate in the given test.
func (r *MonitorRepository) GetViolationCounts(ctx context.Context, testID uuid.UUID) (map[int]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT candidate_id, COUNT(*)
		 FROM attempt_violations
		 WHERE test_id = $1
		 GROUP BY candidate_id`,
		testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var cid int
		var count int64
		if err := rows.Scan(&cid, &count); err != nil {
			return nil, err
		}
		counts[cid] = count
	}

	return counts, rows.Err()
}
