package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

// PermissionRepository persists role permissions.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs a PermissionRepository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// List returns permissions, optionally for a single role.
func (r *PermissionRepository) List(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	query := `SELECT id, role, resource, action, created_at FROM permissions`
	var args []interface{}
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, role)
	}
	query += ` ORDER BY role, resource, action`
	var perms []models.Permission
	if err := r.db.SelectContext(ctx, &perms, query, args...); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return perms, nil
}

// FindByID returns a permission row.
func (r *PermissionRepository) FindByID(ctx context.Context, id string) (*models.Permission, error) {
	const query = `SELECT id, role, resource, action, created_at FROM permissions WHERE id = $1`
	var perm models.Permission
	if err := r.db.GetContext(ctx, &perm, query, id); err != nil {
		return nil, err
	}
	return &perm, nil
}

// Create inserts a permission.
func (r *PermissionRepository) Create(ctx context.Context, perm *models.Permission) error {
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	if perm.CreatedAt.IsZero() {
		perm.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO permissions (id, role, resource, action, created_at) VALUES (:id, :role, :resource, :action, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, perm); err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	return nil
}

// Delete removes a permission.
func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete permission: %w", err)
	}
	return nil
}
