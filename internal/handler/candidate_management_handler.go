package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/repository"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/learnspire/testtrack-backend/internal/service"
	"github.com/learnspire/testtrack-backend/internal/validator"
)

// CandidateManagementHandler handles admin-facing candidate management
// (CRUD, session reset).
type CandidateManagementHandler struct {
	candidateService *service.CandidateService
	authService      *service.AuthService
}

// NewCandidateManagementHandler creates a new CandidateManagementHandler.
func NewCandidateManagementHandler(
	candidateService *service.CandidateService,
	authService *service.AuthService,
) *CandidateManagementHandler {
	return &CandidateManagementHandler{
		candidateService: candidateService,
		authService:      authService,
	}
}

// ListCandidates godoc
// GET /api/v1/admin/candidates
// Lists candidates with pagination, optionally filtered by batch.
func (h *CandidateManagementHandler) ListCandidates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	var batch *string
	if b := c.Query("batch"); b != "" {
		batch = &b
	}

	candidates, pagination, err := h.candidateService.ListCandidates(c.Request.Context(), batch, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"candidates": candidates}, pagination)
}

// ResetCandidateSession godoc
// POST /api/v1/admin/candidates/:id/reset-session
// Clears a candidate's active Redis session, allowing them to log in on a
// new device.
func (h *CandidateManagementHandler) ResetCandidateSession(c *gin.Context) {
	candidateID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetCandidateSession(c.Request.Context(), candidateID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "candidate session reset successfully"})
}

// CreateCandidate godoc
// POST /api/v1/admin/candidates
// Creates a new candidate account.
func (h *CandidateManagementHandler) CreateCandidate(c *gin.Context) {
	var req model.CreateCandidateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	candidate := &model.Candidate{
		Email:        req.Email,
		Name:         req.Name,
		Batch:        req.Batch,
		PasswordHash: req.Password,
	}

	// Service will hash the password.
	if err := h.candidateService.Create(c.Request.Context(), candidate); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"candidate": candidate})
}

// UpdateCandidate godoc
// PUT /api/v1/admin/candidates/:id
// Updates a candidate's details, and optionally their password.
func (h *CandidateManagementHandler) UpdateCandidate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpdateCandidateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	candidate := &model.Candidate{
		ID:           id,
		Email:        req.Email,
		Name:         req.Name,
		Batch:        req.Batch,
		PasswordHash: req.Password,
	}

	updatePassword := req.Password != ""

	if err := h.candidateService.Update(c.Request.Context(), candidate, updatePassword); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	updatedCandidate, _ := h.candidateService.GetByID(c.Request.Context(), id)

	response.Success(c, http.StatusOK, gin.H{"candidate": updatedCandidate})
}

// DeleteCandidate godoc
// DELETE /api/v1/admin/candidates/:id
// Deletes a candidate by ID.
func (h *CandidateManagementHandler) DeleteCandidate(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.candidateService.Delete(c.Request.Context(), id); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "candidate deleted successfully"})
}
