package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/engine"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWorker consumes persist_results_queue and writes finished session
// results to PostgreSQL: the write-once result row, its per-question audit
// trail, and the attempt completion update.
type ResultWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]*engine.Result, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res engine.Result
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &res)
		}
	}
}

// ----------------------------------------------------------------
// Batch persistence wrapper
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []*engine.Result) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkCompleteAttempts(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk attempt completion failed, using fallback")

		for _, res := range batch {
			if err := w.persistSingle(ctx, res); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed — requeueing")
				raw, _ := json.Marshal(res)
				w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
			}
		}
		return
	}

	// Result rows and audit trails need per-result inserts (each audit row
	// references the generated result ID).
	for _, res := range batch {
		if err := w.insertResult(ctx, res); err != nil {
			w.log.Error().Err(err).
				Str("test_id", res.TestID.String()).
				Int("candidate_id", res.CandidateID).
				Msg("Result insert failed — requeueing")
			raw, _ := json.Marshal(res)
			w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw)
		}
	}

	// After successful persistence → delete autosave buffers in Redis
	w.bulkClearAutosavedAnswers(ctx, batch)
}

// ----------------------------------------------------------------
// BULK attempt completion using UNNEST + alias
// ----------------------------------------------------------------

func (w *ResultWorker) bulkCompleteAttempts(ctx context.Context, batch []*engine.Result) error {
	n := len(batch)

	testIDs := make([]uuid.UUID, 0, n)
	candidates := make([]int, 0, n)
	scores := make([]int, 0, n)
	percentages := make([]int, 0, n)
	passeds := make([]bool, 0, n)
	violations := make([]int, 0, n)
	finishedAts := make([]time.Time, 0, n)

	for _, res := range batch {
		testIDs = append(testIDs, res.TestID)
		candidates = append(candidates, res.CandidateID)
		scores = append(scores, res.Score)
		percentages = append(percentages, res.Percentage)
		passeds = append(passeds, res.Passed)
		violations = append(violations, res.ViolationCount)
		finishedAts = append(finishedAts, res.EndedAt)
	}

	query := `
		UPDATE test_attempts AS a
		SET status = 'COMPLETED',
		    score = t.score,
		    percentage = t.percentage,
		    passed = t.passed,
		    violation_count = t.violation_count,
		    finished_at = t.finished_at
		FROM (
			SELECT
				u.test_id,
				u.candidate_id,
				u.score,
				u.percentage,
				u.passed,
				u.violation_count,
				u.finished_at
			FROM UNNEST(
				$1::uuid[],
				$2::int[],
				$3::int[],
				$4::int[],
				$5::bool[],
				$6::int[],
				$7::timestamptz[]
			) AS u (test_id, candidate_id, score, percentage, passed, violation_count, finished_at)
		) AS t
		WHERE a.test_id = t.test_id
		  AND a.candidate_id = t.candidate_id
	`

	_, err := w.pool.Exec(ctx, query, testIDs, candidates, scores, percentages, passeds, violations, finishedAts)
	return err
}

// ----------------------------------------------------------------
// Result row + audit trail
// ----------------------------------------------------------------

func (w *ResultWorker) insertResult(ctx context.Context, res *engine.Result) error {
	var resultID uuid.UUID
	err := w.pool.QueryRow(ctx,
		`INSERT INTO test_results (test_id, candidate_id, score, total_marks, percentage,
		                           correct_answers, incorrect_answers, passed,
		                           time_spent_seconds, violation_count, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (test_id, candidate_id) DO NOTHING
		 RETURNING id`,
		res.TestID, res.CandidateID, res.Score, res.TotalMarks, res.Percentage,
		res.CorrectAnswers, res.IncorrectAnswers, res.Passed,
		res.TimeSpentSeconds, res.ViolationCount, res.StartedAt, res.EndedAt,
	).Scan(&resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Already persisted (retry after a partial failure). Results are
			// write-once, so nothing more to do.
			return nil
		}
		return err
	}

	if len(res.Responses) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(res.Responses))
	for _, resp := range res.Responses {
		answerJSON, err := json.Marshal(resp.Answer)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{
			resultID, resp.SectionID, resp.QuestionID, answerJSON, resp.Answered, resp.IsCorrect, resp.Points,
		})
	}

	_, err = w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"test_responses"},
		[]string{"result_id", "section_id", "question_id", "answer", "answered", "is_correct", "points"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ----------------------------------------------------------------
// BULK Redis DEL for clearing autosaved answers
// ----------------------------------------------------------------

func (w *ResultWorker) bulkClearAutosavedAnswers(ctx context.Context, batch []*engine.Result) {
	pipe := w.rdb.Pipeline()

	for _, res := range batch {
		key := config.CacheKey.CandidateAnswersKey(res.TestID.String(), res.CandidateID)
		pipe.Del(ctx, key)
	}

	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// FALLBACK single persist
// ----------------------------------------------------------------

func (w *ResultWorker) persistSingle(ctx context.Context, res *engine.Result) error {
	_, err := w.pool.Exec(ctx,
		`UPDATE test_attempts
		 SET status = 'COMPLETED',
		     score = $1,
		     percentage = $2,
		     passed = $3,
		     violation_count = $4,
		     finished_at = $5
		 WHERE test_id = $6 AND candidate_id = $7`,
		res.Score, res.Percentage, res.Passed, res.ViolationCount, res.EndedAt,
		res.TestID, res.CandidateID,
	)
	if err != nil {
		return err
	}

	if err := w.insertResult(ctx, res); err != nil {
		return err
	}

	key := config.CacheKey.CandidateAnswersKey(res.TestID.String(), res.CandidateID)
	_ = w.rdb.Del(ctx, key).Err()
	return nil
}
