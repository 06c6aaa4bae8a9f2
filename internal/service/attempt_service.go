package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt errors.
var (
	ErrAttemptCompleted  = errors.New("test attempt is already completed")
	ErrTestNotJoinable   = errors.New("test is not available for joining")
	ErrInvalidEntryToken = errors.New("invalid entry token")
)

// AttemptService handles test attempt business logic.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	testRepo    *repository.TestRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	testRepo *repository.TestRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		testRepo:    testRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// LobbyStatus represents the concrete state of a test in the candidate lobby.
type LobbyStatus string

const (
	LobbyStatusUpcoming   LobbyStatus = "UPCOMING"
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
)

// LobbyTest represents a test as displayed in the candidate lobby.
type LobbyTest struct {
	model.Test
	LobbyStatus   LobbyStatus          `json:"lobby_status"`
	AttemptStatus *model.AttemptStatus `json:"attempt_status,omitempty"`
	Score         *int                 `json:"score,omitempty"`
	Percentage    *int                 `json:"percentage,omitempty"`
	Passed        *bool                `json:"passed,omitempty"`
}

// GetLobby returns published tests overlaid with the candidate's attempt status.
// Entry tokens are stripped; candidates must supply them on join.
func (s *AttemptService) GetLobby(ctx context.Context, candidateID int) ([]LobbyTest, error) {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published tests: %w", err)
	}

	attempts, err := s.attemptRepo.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	attemptMap := make(map[uuid.UUID]*model.TestAttempt, len(attempts))
	for i := range attempts {
		attemptMap[attempts[i].TestID] = &attempts[i]
	}

	var lobby []LobbyTest
	now := time.Now()

	for i := range tests {
		test := tests[i]
		test.EntryToken = ""
		entry := LobbyTest{Test: test}

		if att, ok := attemptMap[test.ID]; ok {
			entry.AttemptStatus = &att.Status
			entry.Score = att.Score
			entry.Percentage = att.Percentage
			entry.Passed = att.Passed
			if att.Status == model.AttemptStatusCompleted {
				entry.LobbyStatus = LobbyStatusCompleted
			} else {
				entry.LobbyStatus = LobbyStatusInProgress
			}
		} else {
			if test.ScheduledStart != nil && test.ScheduledStart.After(now) {
				// Only surface upcoming tests scheduled for today.
				y1, m1, d1 := test.ScheduledStart.Date()
				y2, m2, d2 := now.Date()
				if y1 == y2 && m1 == m2 && d1 == d2 {
					entry.LobbyStatus = LobbyStatusUpcoming
				} else {
					continue
				}
			} else if test.ScheduledEnd != nil && test.ScheduledEnd.Before(now) {
				continue
			} else {
				entry.LobbyStatus = LobbyStatusAvailable
			}
		}

		lobby = append(lobby, entry)
	}

	return lobby, nil
}

// JoinTest validates the entry token and creates an attempt for the candidate.
// Joining twice is idempotent and returns the existing attempt.
func (s *AttemptService) JoinTest(ctx context.Context, testID uuid.UUID, candidateID int, entryToken string) (*model.TestAttempt, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotJoinable
	}

	now := time.Now()
	if test.ScheduledStart != nil && test.ScheduledStart.After(now) {
		return nil, ErrTestNotJoinable
	}
	if test.ScheduledEnd != nil && test.ScheduledEnd.Before(now) {
		return nil, ErrTestNotJoinable
	}

	if test.EntryToken != entryToken {
		return nil, ErrInvalidEntryToken
	}

	// Check if candidate already has an attempt.
	existing, err := s.attemptRepo.GetByTestAndCandidate(ctx, testID, candidateID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}

	// IDEMPOTENCY: if they already joined, re-sync the Redis start time.
	// Handles joins from another device or an immediate refresh.
	if existing != nil {
		if existing.Status == model.AttemptStatusCompleted {
			return nil, ErrAttemptCompleted
		}
		_ = s.rdb.Set(ctx, config.CacheKey.AttemptStartKey(testID.String(), candidateID), existing.StartedAt.Unix(), 0)
		return existing, nil
	}

	attempt := &model.TestAttempt{
		TestID:      testID,
		CandidateID: candidateID,
		// StartedAt is set by the DB default NOW(), echoed back via RETURNING.
		StartedAt: now,
	}

	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent join detected
			existing, fetchErr := s.attemptRepo.GetByTestAndCandidate(ctx, testID, candidateID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent join detected, but fetch failed: %w", fetchErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	// Store the start time in Redis, synced with the DB row.
	startKey := config.CacheKey.AttemptStartKey(attempt.TestID.String(), attempt.CandidateID)
	if err := s.rdb.Set(ctx, startKey, attempt.StartedAt.Unix(), 0).Err(); err != nil {
		// Do not fail the join. GetAttemptState falls back to PostgreSQL.
		s.log.Warn().Err(err).Str("test_id", testID.String()).Int("candidate_id", candidateID).
			Msg("Failed to cache attempt start time")
	}

	return attempt, nil
}

// VerifyActiveAttempt checks that a candidate has an active (IN_PROGRESS)
// attempt for the given test.
func (s *AttemptService) VerifyActiveAttempt(ctx context.Context, testID uuid.UUID, candidateID int) error {
	att, err := s.attemptRepo.GetByTestAndCandidate(ctx, testID, candidateID)
	if err != nil {
		return fmt.Errorf("no active attempt: %w", err)
	}
	if att.Status == model.AttemptStatusCompleted {
		return ErrAttemptCompleted
	}
	return nil
}

// GetAttempt retrieves a candidate's attempt for a test.
func (s *AttemptService) GetAttempt(ctx context.Context, testID uuid.UUID, candidateID int) (*model.TestAttempt, error) {
	return s.attemptRepo.GetByTestAndCandidate(ctx, testID, candidateID)
}

// GetAttemptState retrieves the reload-recovery snapshot for an in-progress
// attempt: autosaved answers plus authoritative remaining time.
func (s *AttemptService) GetAttemptState(ctx context.Context, testID uuid.UUID, candidateID int) (*model.AttemptState, error) {
	// 1. Autosaved answers from Redis.
	answersKey := config.CacheKey.CandidateAnswersKey(testID.String(), candidateID)
	answers, err := s.rdb.HGetAll(ctx, answersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	// 2. Test duration from Redis.
	durationStr, err := s.rdb.Get(ctx, config.CacheKey.TestDurationKey(testID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get test duration: %w", err)
	}
	durationMinutes, err := strconv.Atoi(durationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid duration format in redis: %w", err)
	}

	// 3. Attempt start time, with PostgreSQL fallback.
	var startTimeUnix int64
	startKey := config.CacheKey.AttemptStartKey(testID.String(), candidateID)

	val, err := s.rdb.Get(ctx, startKey).Result()
	if errors.Is(err, redis.Nil) {
		// Cache miss (evicted or legacy attempt). PostgreSQL is the source of truth.
		att, dbErr := s.attemptRepo.GetByTestAndCandidate(ctx, testID, candidateID)
		if dbErr != nil {
			return nil, fmt.Errorf("attempt not found in cache or db: %w", dbErr)
		}

		startTimeUnix = att.StartedAt.Unix()

		// Self-heal so the next request is fast.
		_ = s.rdb.Set(ctx, startKey, startTimeUnix, 0)
	} else if err != nil {
		return nil, fmt.Errorf("redis error getting start time: %w", err)
	} else {
		startTimeUnix, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in cache: %w", err)
		}
	}

	// 4. Remaining time from the server clock, never the client's.
	startTime := time.Unix(startTimeUnix, 0)
	endTime := startTime.Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}

	return &model.AttemptState{
		TestID:           testID,
		CandidateID:      candidateID,
		AutosavedAnswers: answers,
		RemainingSeconds: int(remaining.Seconds()),
	}, nil
}

// RemainingSeconds computes the authoritative remaining time for an attempt.
func (s *AttemptService) RemainingSeconds(ctx context.Context, testID uuid.UUID, candidateID int) (int, error) {
	state, err := s.GetAttemptState(ctx, testID, candidateID)
	if err != nil {
		return 0, err
	}
	return state.RemainingSeconds, nil
}

// GetTestResults retrieves paginated attempt overviews with optional filters.
func (s *AttemptService) GetTestResults(ctx context.Context, testID uuid.UUID, page, perPage int, batch *string, status *model.AttemptStatus) ([]repository.AttemptOverview, int64, error) {
	return s.attemptRepo.ListByTest(ctx, testID, page, perPage, batch, status)
}
