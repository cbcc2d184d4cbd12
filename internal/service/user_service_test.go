package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type mockUserRepo struct {
	users       map[string]*models.User
	listUsers   []models.User
	listCount   int
	listErr     error
	deactivated []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, u := range m.users {
		if id != excludeID && strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	m.users[id].Active = false
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "taken@example.com"}}}
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), adminClaims(), CreateUserRequest{Email: " USER@EXAMPLE.COM ", FullName: "User", Password: "secret123", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NotEqual(t, "secret123", user.PasswordHash)

	_, err = svc.Create(context.Background(), adminClaims(), CreateUserRequest{Email: "Taken@example.com", FullName: "Dup", Password: "secret123", Role: models.RoleTeacher})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), adminClaims(), CreateUserRequest{Email: "root@example.com", FullName: "Root", Password: "secret123", Role: models.RoleSuperAdmin})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), adminClaims(), CreateUserRequest{Email: "short@example.com", FullName: "Short", Password: "short", Role: models.RoleTeacher})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleTeacher, Active: true}}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())
	role := models.RoleAdmin
	user, err := svc.Update(context.Background(), adminClaims(), "1", UpdateUserRequest{FullName: ptr("New"), Role: &role, Active: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, "New", user.FullName)
	assert.False(t, user.Active)
	assert.Equal(t, "a@example.com", user.Email)
}

func TestUserServiceUpdateNormalizesEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"1": {ID: "1", Email: "a@example.com", Role: models.RoleTeacher, Active: true},
		"2": {ID: "2", Email: "b@example.com", Role: models.RoleTeacher, Active: true},
	}}
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Update(context.Background(), adminClaims(), "1", UpdateUserRequest{Email: ptr("  New.Mail@Example.COM ")})
	require.NoError(t, err)
	assert.Equal(t, "new.mail@example.com", user.Email)

	_, err = svc.Update(context.Background(), adminClaims(), "1", UpdateUserRequest{Email: ptr(" B@example.com")})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateSelfGuards(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"admin-1": {ID: "admin-1", Email: "me@example.com", Role: models.RoleAdmin, Active: true}}}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Update(context.Background(), adminClaims(), "admin-1", UpdateUserRequest{Active: ptr(false)})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	teacher := models.RoleTeacher
	_, err = svc.Update(context.Background(), adminClaims(), "admin-1", UpdateUserRequest{Role: &teacher})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"1":    {ID: "1", Email: "a@example.com", Role: models.RoleTeacher, Active: true},
		"root": {ID: "root", Email: "root@example.com", Role: models.RoleSuperAdmin, Active: true},
	}}
	svc := NewUserService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), adminClaims(), "1"))
	assert.False(t, repo.users["1"].Active)

	err := svc.Deactivate(context.Background(), adminClaims(), "admin-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Deactivate(context.Background(), adminClaims(), "root")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.Deactivate(context.Background(), adminClaims(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, []string{"1"}, repo.deactivated)
}
