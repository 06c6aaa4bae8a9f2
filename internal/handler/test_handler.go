package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/learnspire/testtrack-backend/internal/middleware"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/learnspire/testtrack-backend/internal/service"
	"github.com/learnspire/testtrack-backend/internal/validator"
)

// TestHandler handles test management endpoints.
type TestHandler struct {
	testService    *service.TestService
	attemptService *service.AttemptService
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(testService *service.TestService, attemptService *service.AttemptService) *TestHandler {
	return &TestHandler{
		testService:    testService,
		attemptService: attemptService,
	}
}

// authorFilter returns 0 (no filter) for admins who may manage every
// author's tests, otherwise the admin's own ID.
func authorFilter(claims *service.Claims) int {
	for _, p := range claims.Permissions {
		if p == string(model.PermissionTestsWriteAll) {
			return 0
		}
	}
	return claims.UserID
}

// ListTests godoc
// GET /api/v1/admin/tests
// Lists tests with pagination. Admins with tests:write_all see everything;
// others see only their own.
func (h *TestHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	tests, pagination, err := h.testService.ListByAuthor(c.Request.Context(), authorFilter(claims), page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// GetTest godoc
// GET /api/v1/admin/tests/:test_id
// Returns one test with its sections and questions, answer keys included.
func (h *TestHandler) GetTest(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	sections, err := h.testService.GetSections(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test, "sections": sections})
}

// CreateTest godoc
// POST /api/v1/admin/tests
// Creates a new draft test.
func (h *TestHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test := &model.Test{
		Title:           req.Title,
		Description:     req.Description,
		AuthorID:        claims.UserID,
		DurationMinutes: req.DurationMinutes,
		PassingScore:    req.PassingScore,
		EntryToken:      req.EntryToken,
		ScheduledStart:  req.ScheduledStart,
		ScheduledEnd:    req.ScheduledEnd,
	}

	if err := h.testService.Create(c.Request.Context(), test); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// UpdateTest godoc
// PUT /api/v1/admin/tests/:test_id
// Updates a draft test. Published and archived tests are immutable.
func (h *TestHandler) UpdateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Description != "" {
		test.Description = req.Description
	}
	if req.DurationMinutes != 0 {
		test.DurationMinutes = req.DurationMinutes
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.EntryToken != "" {
		test.EntryToken = req.EntryToken
	}
	if req.ScheduledStart != nil {
		test.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		test.ScheduledEnd = req.ScheduledEnd
	}

	if err := h.testService.Update(c.Request.Context(), authorFilter(claims), test); err != nil {
		h.failTestLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/admin/tests/:test_id
// Deletes a draft test and everything under it.
func (h *TestHandler) DeleteTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Delete(c.Request.Context(), testID, authorFilter(claims)); err != nil {
		h.failTestLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "test deleted successfully"})
}

// GetSections godoc
// GET /api/v1/admin/tests/:test_id/sections
// Returns the test's sections and questions, answer keys included.
func (h *TestHandler) GetSections(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sections, err := h.testService.GetSections(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sections": sections})
}

// ReplaceSections godoc
// PUT /api/v1/admin/tests/:test_id/sections
// Replaces the draft test's entire section and question set in one shot.
// Section and question order follows the order of the request body.
func (h *TestHandler) ReplaceSections(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.ReplaceSectionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sections := make([]model.TestSection, 0, len(req.Sections))
	for si, secIn := range req.Sections {
		section := model.TestSection{
			TestID:      testID,
			Title:       secIn.Title,
			Description: secIn.Description,
			OrderNum:    si + 1,
		}
		for qi, qIn := range secIn.Questions {
			section.Questions = append(section.Questions, model.TestQuestion{
				Prompt:        qIn.Prompt,
				QuestionType:  model.QuestionType(qIn.QuestionType),
				Options:       qIn.Options,
				CorrectOption: qIn.CorrectOption,
				CorrectText:   qIn.CorrectText,
				Points:        qIn.Points,
				OrderNum:      qi + 1,
			})
		}
		sections = append(sections, section)
	}

	if err := h.testService.ReplaceSections(c.Request.Context(), testID, authorFilter(claims), sections); err != nil {
		h.failTestLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sections": sections})
}

// PublishTest godoc
// POST /api/v1/admin/tests/:test_id/publish
// Publishes a test: caches the candidate payload and scoring definition to
// Redis, then flips the status.
func (h *TestHandler) PublishTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Publish(c.Request.Context(), testID, authorFilter(claims)); err != nil {
		h.failTestLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "test published successfully"})
}

// ArchiveTest godoc
// POST /api/v1/admin/tests/:test_id/archive
// Archives a published test and evicts its Redis cache.
func (h *TestHandler) ArchiveTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.Archive(c.Request.Context(), testID, authorFilter(claims)); err != nil {
		h.failTestLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "test archived successfully"})
}

// RefreshTestCache godoc
// POST /api/v1/admin/tests/:test_id/refresh-cache
// Re-caches the test payload and scoring definition after content changes.
func (h *TestHandler) RefreshTestCache(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.testService.RefreshCache(c.Request.Context(), testID, authorFilter(claims)); err != nil {
		h.failTestLifecycle(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "test cache refreshed successfully"})
}

// GetTestResults godoc
// GET /api/v1/admin/tests/:test_id/results
// Returns paginated candidate attempt overviews for a test, optionally
// filtered by batch and attempt status.
func (h *TestHandler) GetTestResults(c *gin.Context) {
	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	var batch *string
	if b := c.Query("batch"); b != "" {
		batch = &b
	}

	var status *model.AttemptStatus
	if s := c.Query("status"); s != "" {
		st := model.AttemptStatus(s)
		if st != model.AttemptStatusInProgress && st != model.AttemptStatusCompleted {
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
			return
		}
		status = &st
	}

	results, total, err := h.attemptService.GetTestResults(c.Request.Context(), testID, page, perPage, batch, status)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

// failTestLifecycle maps test lifecycle errors to HTTP responses.
func (h *TestHandler) failTestLifecycle(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotTestAuthor):
		response.Fail(c, http.StatusForbidden, response.ErrNotTestAuthor)
	case errors.Is(err, service.ErrNoQuestions):
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
	case errors.Is(err, service.ErrTestNotDraft):
		response.Fail(c, http.StatusBadRequest, response.ErrTestNotDraft)
	case errors.Is(err, service.ErrTestNotPublished):
		response.Fail(c, http.StatusBadRequest, response.ErrTestNotPublished)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
