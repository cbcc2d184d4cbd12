package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type permissionService interface {
	Effective(ctx context.Context, role models.UserRole) (*models.EffectivePermissions, error)
	List(ctx context.Context, role models.UserRole) ([]models.Permission, error)
	Create(ctx context.Context, req service.CreatePermissionRequest) (*models.Permission, error)
	Delete(ctx context.Context, id string) error
}

// PermissionHandler manages role permissions.
type PermissionHandler struct {
	permissions permissionService
}

// NewPermissionHandler constructs PermissionHandler.
func NewPermissionHandler(permissions permissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// List godoc
// @Summary List permissions
// @Tags Permissions
// @Produce json
// @Param role query string false "Role"
// @Success 200 {object} response.Envelope
// @Router /permissions [get]
func (h *PermissionHandler) List(c *gin.Context) {
	perms, err := h.permissions.List(c.Request.Context(), models.UserRole(strings.ToUpper(c.Query("role"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, perms, nil)
}

// Mine godoc
// @Summary Effective permissions of the caller
// @Tags Permissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /permissions/me [get]
func (h *PermissionHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	effective, err := h.permissions.Effective(c.Request.Context(), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, effective, nil)
}

// Create godoc
// @Summary Grant permission
// @Tags Permissions
// @Accept json
// @Produce json
// @Param payload body service.CreatePermissionRequest true "Permission"
// @Success 201 {object} response.Envelope
// @Router /permissions [post]
func (h *PermissionHandler) Create(c *gin.Context) {
	var req service.CreatePermissionRequest
	if !bindJSON(c, &req, "invalid permission payload") {
		return
	}
	perm, err := h.permissions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, perm)
}

// Delete godoc
// @Summary Revoke permission
// @Tags Permissions
// @Param id path string true "Permission ID"
// @Success 204
// @Router /permissions/{id} [delete]
func (h *PermissionHandler) Delete(c *gin.Context) {
	if err := h.permissions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
