package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/engine"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// QueueResultSink persists finished session results by pushing them onto the
// Redis results queue. The ResultWorker drains the queue into PostgreSQL, so
// a submit never waits on the database.
type QueueResultSink struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewQueueResultSink creates a new QueueResultSink.
func NewQueueResultSink(rdb *redis.Client, log zerolog.Logger) *QueueResultSink {
	return &QueueResultSink{
		rdb: rdb,
		log: log.With().Str("component", "result_sink").Logger(),
	}
}

// SaveResult enqueues a result for asynchronous persistence.
func (s *QueueResultSink) SaveResult(ctx context.Context, res *engine.Result) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		return fmt.Errorf("queue result: %w", err)
	}

	s.log.Debug().
		Str("test_id", res.TestID.String()).
		Int("candidate_id", res.CandidateID).
		Int("percentage", res.Percentage).
		Msg("Result queued")
	return nil
}
