package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/engine"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/repository"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrNotTestAuthor    = errors.New("not the author of this test")
	ErrNoQuestions      = errors.New("test has no questions, cannot publish")
	ErrTestNotDraft     = errors.New("test status is not DRAFT")
	ErrTestNotPublished = errors.New("test status is not PUBLISHED")
)

// TestService handles test business logic and Redis caching.
type TestService struct {
	testRepo *repository.TestRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, rdb *redis.Client, log zerolog.Logger) *TestService {
	return &TestService{
		testRepo: testRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "test_service").Logger(),
	}
}

// GetByID retrieves a test by its UUID.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.testRepo.GetByID(ctx, id)
}

// GetByEntryToken retrieves a published test by its entry token.
func (s *TestService) GetByEntryToken(ctx context.Context, token string) (*model.Test, error) {
	return s.testRepo.GetByEntryToken(ctx, token)
}

// ListByAuthor retrieves tests, filtered by author if authorID is non-zero.
func (s *TestService) ListByAuthor(ctx context.Context, authorID, page, perPage int) ([]model.Test, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	tests, total, err := s.testRepo.ListByAuthorPaginated(ctx, authorID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if tests == nil {
		tests = []model.Test{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return tests, pagination, nil
}

// Create inserts a new test as DRAFT.
func (s *TestService) Create(ctx context.Context, test *model.Test) error {
	test.Status = model.TestStatusDraft
	return s.testRepo.Create(ctx, test)
}

// Update modifies an existing draft test.
func (s *TestService) Update(ctx context.Context, authorID int, test *model.Test) error {
	existing, err := s.testRepo.GetByID(ctx, test.ID)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.Update(ctx, test)
}

// Delete removes a draft test.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID, authorID int) error {
	existing, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.Delete(ctx, id)
}

// GetSections retrieves a test's sections with their questions.
func (s *TestService) GetSections(ctx context.Context, testID uuid.UUID) ([]model.TestSection, error) {
	return s.testRepo.ListSections(ctx, testID)
}

// ReplaceSections replaces a draft test's sections and questions.
func (s *TestService) ReplaceSections(ctx context.Context, testID uuid.UUID, authorID int, sections []model.TestSection) error {
	existing, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.ReplaceSections(ctx, testID, sections)
}

// Publish changes test status to PUBLISHED and caches the payload and
// scoring definition in Redis. This is the critical path that populates
// the fast lane every live session reads from.
func (s *TestService) Publish(ctx context.Context, testID uuid.UUID, authorID int) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if authorID != 0 && test.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if test.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}

	if err := s.WarmTestCache(ctx, test); err != nil {
		return err
	}

	if err := s.testRepo.UpdateStatus(ctx, testID, model.TestStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Test published")
	return nil
}

// Archive retires a published test. Its cached payload is removed so no new
// sessions can start; in-flight sessions are unaffected.
func (s *TestService) Archive(ctx context.Context, testID uuid.UUID, authorID int) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if authorID != 0 && test.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if test.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}

	if err := s.testRepo.UpdateStatus(ctx, testID, model.TestStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.TestPayloadKey(testID.String()))
	pipe.Del(ctx, config.CacheKey.TestDefinitionKey(testID.String()))
	pipe.Del(ctx, config.CacheKey.TestDurationKey(testID.String()))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Failed to evict archived test cache")
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Test archived")
	return nil
}

// RefreshCache re-caches the payload and definition for a published test.
func (s *TestService) RefreshCache(ctx context.Context, testID uuid.UUID, authorID int) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if authorID != 0 && test.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if test.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}

	if err := s.WarmTestCache(ctx, test); err != nil {
		return err
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Cache refreshed")
	return nil
}

// WarmTestCache loads a test's candidate payload and scoring definition from
// PostgreSQL into Redis. Used by Publish, RefreshCache, and PrewarmAllCaches.
func (s *TestService) WarmTestCache(ctx context.Context, test *model.Test) error {
	sections, err := s.testRepo.ListSections(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("list sections: %w", err)
	}

	def := buildDefinition(test, sections)
	if def.TotalQuestions() == 0 {
		return ErrNoQuestions
	}

	payload := buildPayload(test, sections)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	defJSON, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestPayloadKey(test.ID.String()), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.TestDefinitionKey(test.ID.String()), defJSON, 0)
	pipe.Set(ctx, config.CacheKey.TestDurationKey(test.ID.String()), test.DurationMinutes, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", test.ID.String()).
		Int("questions", def.TotalQuestions()).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published tests into Redis on application startup.
// This prevents any lazy-loading race conditions under thundering herd traffic.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(tests)).Msg("Prewarming published tests...")

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// GetTestPayload retrieves the cached candidate payload from Redis.
func (s *TestService) GetTestPayload(ctx context.Context, testID uuid.UUID) (*model.TestPayload, error) {
	key := config.CacheKey.TestPayloadKey(testID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("test not published or payload not cached")
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.TestPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// LoadDefinition retrieves the scoring definition for a published test.
// It reads the Redis cache first and falls back to PostgreSQL, re-warming
// the cache on the way out.
func (s *TestService) LoadDefinition(ctx context.Context, testID uuid.UUID) (*engine.TestDefinition, error) {
	key := config.CacheKey.TestDefinitionKey(testID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var def engine.TestDefinition
		if err := json.Unmarshal(data, &def); err == nil {
			return &def, nil
		}
		s.log.Warn().Str("test_id", testID.String()).Msg("Corrupt cached definition, reloading from DB")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get definition: %w", err)
	}

	// Cache miss. Rebuild from PostgreSQL and self-heal the cache.
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotPublished
	}
	sections, err := s.testRepo.ListSections(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	def := buildDefinition(test, sections)
	if defJSON, err := json.Marshal(def); err == nil {
		if err := s.rdb.Set(ctx, key, defJSON, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Failed to re-warm definition cache")
		}
	}

	return def, nil
}

// buildDefinition converts storage rows into the in-memory scoring definition.
func buildDefinition(test *model.Test, sections []model.TestSection) *engine.TestDefinition {
	def := &engine.TestDefinition{
		ID:              test.ID,
		Title:           test.Title,
		Description:     test.Description,
		DurationMinutes: test.DurationMinutes,
		PassingScore:    test.PassingScore,
		Sections:        make([]engine.Section, 0, len(sections)),
	}

	for _, sec := range sections {
		es := engine.Section{
			ID:          sec.ID,
			Title:       sec.Title,
			Description: sec.Description,
			Questions:   make([]engine.Question, 0, len(sec.Questions)),
		}
		for _, q := range sec.Questions {
			es.Questions = append(es.Questions, engine.Question{
				ID:            q.ID,
				Prompt:        q.Prompt,
				Kind:          engine.QuestionKind(q.QuestionType),
				Options:       q.Options,
				CorrectOption: q.CorrectOption,
				CorrectText:   q.CorrectText,
				Points:        q.Points,
			})
		}
		def.Sections = append(def.Sections, es)
	}

	return def
}

// buildPayload strips grading keys for the candidate-facing view.
func buildPayload(test *model.Test, sections []model.TestSection) *model.TestPayload {
	payload := &model.TestPayload{
		TestID:          test.ID,
		Title:           test.Title,
		Description:     test.Description,
		DurationMinutes: test.DurationMinutes,
		PassingScore:    test.PassingScore,
		Sections:        make([]model.SectionForTaker, 0, len(sections)),
	}

	for _, sec := range sections {
		st := model.SectionForTaker{
			ID:          sec.ID,
			Title:       sec.Title,
			Description: sec.Description,
			Questions:   make([]model.QuestionForTaker, 0, len(sec.Questions)),
		}
		for _, q := range sec.Questions {
			st.Questions = append(st.Questions, model.QuestionForTaker{
				ID:           q.ID,
				Prompt:       q.Prompt,
				QuestionType: q.QuestionType,
				Options:      q.Options,
				Points:       q.Points,
			})
		}
		payload.Sections = append(payload.Sections, st)
	}

	return payload
}
