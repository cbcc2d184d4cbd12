package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type permissionRepository interface {
	List(ctx context.Context, role models.UserRole) ([]models.Permission, error)
	FindByID(ctx context.Context, id string) (*models.Permission, error)
	Create(ctx context.Context, perm *models.Permission) error
	Delete(ctx context.Context, id string) error
}

// CreatePermissionRequest grants one action on one resource to a role.
type CreatePermissionRequest struct {
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN TEACHER"`
	Resource string          `json:"resource" validate:"required"`
	Action   string          `json:"action" validate:"required,oneof=read create update delete"`
}

// PermissionService answers authorisation questions from the permissions table.
type PermissionService struct {
	repo      permissionRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(repo permissionRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PermissionService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Allowed reports whether role may perform action on resource. SUPERADMIN is always allowed.
func (s *PermissionService) Allowed(ctx context.Context, role models.UserRole, resource, action string) (bool, error) {
	if role == models.RoleSuperAdmin {
		return true, nil
	}
	keys, err := s.roleKeys(ctx, role)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		if key == resource+":"+action {
			return true, nil
		}
	}
	return false, nil
}

// Effective returns the permission set of a role grouped by resource.
func (s *PermissionService) Effective(ctx context.Context, role models.UserRole) (*models.EffectivePermissions, error) {
	result := &models.EffectivePermissions{Role: role, Permissions: map[string][]string{}}
	if role == models.RoleSuperAdmin {
		result.All = true
		for _, resource := range models.PermissionResources {
			result.Permissions[resource] = append([]string(nil), models.PermissionActions...)
		}
		return result, nil
	}
	perms, err := s.loadRole(ctx, role)
	if err != nil {
		return nil, err
	}
	for _, p := range perms {
		result.Permissions[p.Resource] = append(result.Permissions[p.Resource], p.Action)
	}
	for resource := range result.Permissions {
		sort.Strings(result.Permissions[resource])
	}
	return result, nil
}

// List returns permission rows, optionally for one role.
func (s *PermissionService) List(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	if role != "" && !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	perms, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	return perms, nil
}

// Create grants a permission and drops the role's cached set.
func (s *PermissionService) Create(ctx context.Context, req CreatePermissionRequest) (*models.Permission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid permission payload")
	}
	if !knownResource(req.Resource) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown resource "+req.Resource)
	}
	perm := &models.Permission{Role: req.Role, Resource: req.Resource, Action: req.Action}
	if err := s.repo.Create(ctx, perm); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to create permission")
	}
	s.cache.Invalidate(ctx, permissionCacheKey(perm.Role))
	return perm, nil
}

// Delete revokes a permission.
func (s *PermissionService) Delete(ctx context.Context, id string) error {
	perm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete permission")
	}
	s.cache.Invalidate(ctx, permissionCacheKey(perm.Role))
	return nil
}

func (s *PermissionService) roleKeys(ctx context.Context, role models.UserRole) ([]string, error) {
	key := permissionCacheKey(role)
	var cached []string
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	perms, err := s.loadRole(ctx, role)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key())
	}
	s.cache.Set(ctx, key, keys, 0)
	return keys, nil
}

func (s *PermissionService) loadRole(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	perms, err := s.repo.List(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permissions")
	}
	return perms, nil
}

func knownResource(resource string) bool {
	for _, r := range models.PermissionResources {
		if r == resource {
			return true
		}
	}
	return false
}
