package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/learnspire/testtrack-backend/internal/service"
	"github.com/learnspire/testtrack-backend/internal/validator"
)

// AdminManagementHandler handles admin account provisioning.
type AdminManagementHandler struct {
	adminService *service.AdminService
	authService  *service.AuthService
}

// NewAdminManagementHandler creates a new AdminManagementHandler.
func NewAdminManagementHandler(adminService *service.AdminService, authService *service.AuthService) *AdminManagementHandler {
	return &AdminManagementHandler{
		adminService: adminService,
		authService:  authService,
	}
}

// CreateAdminRequest is the payload for creating an admin account.
type CreateAdminRequest struct {
	Email       string   `json:"email" binding:"required,email,max=255"`
	Name        string   `json:"name" binding:"required,min=2,max=100"`
	Password    string   `json:"password" binding:"required,min=6,max=128"`
	Permissions []string `json:"permissions" binding:"required,min=1"`
}

// CreateAdmin godoc
// POST /api/v1/admin/admins
// Creates a new admin account with the given permission set.
func (h *AdminManagementHandler) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !validPermissions(req.Permissions) {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	admin := &model.Admin{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Permissions:  req.Permissions,
	}

	if err := h.adminService.Create(c.Request.Context(), admin); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"admin": admin})
}

// UpdatePermissionsRequest is the payload for replacing an admin's permissions.
type UpdatePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required,min=1"`
}

// UpdateAdminPermissions godoc
// PUT /api/v1/admin/admins/:id/permissions
// Replaces the admin's permission set. Takes effect on their next login.
func (h *AdminManagementHandler) UpdateAdminPermissions(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req UpdatePermissionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if !validPermissions(req.Permissions) {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	if err := h.adminService.UpdatePermissions(c.Request.Context(), id, req.Permissions); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	admin, _ := h.adminService.GetByID(c.Request.Context(), id)

	response.Success(c, http.StatusOK, gin.H{"admin": admin})
}

// validPermissions checks every entry against the known permission codes.
func validPermissions(perms []string) bool {
	for _, p := range perms {
		known := false
		for _, allowed := range model.AllPermissions {
			if p == string(allowed) {
				known = true
				break
			}
		}
		if !known {
			return false
		}
	}
	return true
}
