package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type mockPermissionRepo struct {
	perms     []models.Permission
	listCalls int
}

func (m *mockPermissionRepo) List(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	m.listCalls++
	var out []models.Permission
	for _, p := range m.perms {
		if role == "" || p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPermissionRepo) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	for _, p := range m.perms {
		if p.ID == id {
			copy := p
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPermissionRepo) Create(ctx context.Context, perm *models.Permission) error {
	perm.ID = "new"
	m.perms = append(m.perms, *perm)
	return nil
}

func (m *mockPermissionRepo) Delete(ctx context.Context, id string) error {
	for i, p := range m.perms {
		if p.ID == id {
			m.perms = append(m.perms[:i], m.perms[i+1:]...)
			return nil
		}
	}
	return nil
}

func teacherPermissionRepo() *mockPermissionRepo {
	return &mockPermissionRepo{perms: []models.Permission{
		{ID: "p1", Role: models.RoleTeacher, Resource: models.ResourceGrades, Action: models.ActionCreate},
		{ID: "p2", Role: models.RoleTeacher, Resource: models.ResourceGrades, Action: models.ActionRead},
		{ID: "p3", Role: models.RoleAdmin, Resource: models.ResourceUsers, Action: models.ActionDelete},
	}}
}

func TestPermissionServiceAllowedUsesCache(t *testing.T) {
	repo := teacherPermissionRepo()
	cache := newMemoryCache()
	svc := NewPermissionService(repo, newTestCache(cache), nil, nil)
	ctx := context.Background()

	ok, err := svc.Allowed(ctx, models.RoleTeacher, models.ResourceGrades, models.ActionCreate)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.Allowed(ctx, models.RoleTeacher, models.ResourceUsers, models.ActionDelete)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, repo.listCalls)
	assert.True(t, cache.has("permissions:role:TEACHER"))
}

func TestPermissionServiceSuperAdminBypass(t *testing.T) {
	repo := &mockPermissionRepo{}
	svc := NewPermissionService(repo, nil, nil, nil)

	ok, err := svc.Allowed(context.Background(), models.RoleSuperAdmin, models.ResourcePermissions, models.ActionDelete)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, repo.listCalls)

	eff, err := svc.Effective(context.Background(), models.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, eff.All)
	assert.Len(t, eff.Permissions, len(models.PermissionResources))
}

func TestPermissionServiceEffective(t *testing.T) {
	svc := NewPermissionService(teacherPermissionRepo(), nil, nil, nil)
	eff, err := svc.Effective(context.Background(), models.RoleTeacher)
	require.NoError(t, err)
	assert.False(t, eff.All)
	assert.Equal(t, []string{"create", "read"}, eff.Permissions[models.ResourceGrades])
	assert.NotContains(t, eff.Permissions, models.ResourceUsers)
}

func TestPermissionServiceCreateInvalidatesRole(t *testing.T) {
	repo := teacherPermissionRepo()
	cache := newMemoryCache()
	svc := NewPermissionService(repo, newTestCache(cache), nil, nil)
	ctx := context.Background()

	_, err := svc.Allowed(ctx, models.RoleTeacher, models.ResourceStudents, models.ActionRead)
	require.NoError(t, err)

	perm, err := svc.Create(ctx, CreatePermissionRequest{Role: models.RoleTeacher, Resource: models.ResourceStudents, Action: models.ActionRead})
	require.NoError(t, err)
	assert.Equal(t, "new", perm.ID)
	assert.Contains(t, cache.invalidated, "permissions:role:TEACHER")

	ok, err := svc.Allowed(ctx, models.RoleTeacher, models.ResourceStudents, models.ActionRead)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Create(ctx, CreatePermissionRequest{Role: models.RoleTeacher, Resource: "spaceships", Action: models.ActionRead})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	_, err = svc.Create(ctx, CreatePermissionRequest{Role: models.RoleSuperAdmin, Resource: models.ResourceUsers, Action: models.ActionRead})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPermissionServiceDeleteMissing(t *testing.T) {
	svc := NewPermissionService(teacherPermissionRepo(), nil, nil, nil)
	err := svc.Delete(context.Background(), "nope")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	require.NoError(t, svc.Delete(context.Background(), "p1"))
}
