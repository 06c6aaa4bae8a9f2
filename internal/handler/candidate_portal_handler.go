package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/learnspire/testtrack-backend/internal/middleware"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/repository"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/learnspire/testtrack-backend/internal/service"
	"github.com/learnspire/testtrack-backend/internal/validator"
)

// CandidatePortalHandler handles candidate-facing endpoints (lobby, test taking).
type CandidatePortalHandler struct {
	attemptService *service.AttemptService
	testService    *service.TestService
	resultRepo     *repository.ResultRepository
}

// NewCandidatePortalHandler creates a new CandidatePortalHandler.
func NewCandidatePortalHandler(
	attemptService *service.AttemptService,
	testService *service.TestService,
	resultRepo *repository.ResultRepository,
) *CandidatePortalHandler {
	return &CandidatePortalHandler{
		attemptService: attemptService,
		testService:    testService,
		resultRepo:     resultRepo,
	}
}

// GetLobby godoc
// GET /api/v1/candidate/lobby
// Returns published tests overlaid with the candidate's attempt status.
func (h *CandidatePortalHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, err := h.attemptService.GetLobby(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if lobby == nil {
		lobby = []service.LobbyTest{}
	}

	response.Success(c, http.StatusOK, gin.H{"tests": lobby})
}

// JoinTest godoc
// POST /api/v1/candidate/tests/:test_id/join
// Validates entry token and creates an attempt (idempotent).
func (h *CandidatePortalHandler) JoinTest(c *gin.Context) {
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

	var req model.JoinTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attemptService.JoinTest(c.Request.Context(), testID, claims.UserID, req.EntryToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEntryToken):
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidEntryToken)
		case errors.Is(err, service.ErrTestNotJoinable):
			response.Fail(c, http.StatusBadRequest, response.ErrTestNotAvailable)
		case errors.Is(err, service.ErrAttemptCompleted):
			response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetTestPaper godoc
// GET /api/v1/candidate/tests/:test_id/paper
// Returns the test payload from Redis (bypasses PostgreSQL).
// SECURITY: Requires an active attempt for this test — prevents IDOR.
func (h *CandidatePortalHandler) GetTestPaper(c *gin.Context) {
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

	// SECURITY: Verify the candidate has an active attempt for this test.
	// This prevents candidates from downloading papers they have not joined.
	if err := h.attemptService.VerifyActiveAttempt(c.Request.Context(), testID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	payload, err := h.testService.GetTestPayload(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrTestNotPublished)
		return
	}

	response.Success(c, http.StatusOK, payload)
}

// GetAttemptState godoc
// GET /api/v1/candidate/tests/:test_id/state
// Returns the reload-recovery snapshot: autosaved answers and remaining time.
func (h *CandidatePortalHandler) GetAttemptState(c *gin.Context) {
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

	// SECURITY: Verify the candidate has an active attempt for this test.
	if err := h.attemptService.VerifyActiveAttempt(c.Request.Context(), testID, claims.UserID); err != nil {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	state, err := h.attemptService.GetAttemptState(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// GetMyResult godoc
// GET /api/v1/candidate/tests/:test_id/result
// Returns the candidate's persisted result for a completed attempt.
// Persistence is asynchronous, so a fresh submit may briefly return 202.
func (h *CandidatePortalHandler) GetMyResult(c *gin.Context) {
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

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveAttempt)
		return
	}
	if attempt.Status != model.AttemptStatusCompleted {
		response.Fail(c, http.StatusConflict, response.ErrNoActiveAttempt)
		return
	}

	result, err := h.resultRepo.GetByTestAndCandidate(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The worker has not flushed the result row yet.
			response.Fail(c, http.StatusAccepted, response.ErrResultNotReady)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}
