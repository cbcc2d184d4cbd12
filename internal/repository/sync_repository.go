package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

// SyncRepository remembers which client operations were already applied.
type SyncRepository struct {
	db *sqlx.DB
}

// NewSyncRepository constructs a SyncRepository.
func NewSyncRepository(db *sqlx.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// Find returns the stored record for an operation, or sql.ErrNoRows.
func (r *SyncRepository) Find(ctx context.Context, clientID, opID string) (*models.SyncRecord, error) {
	var rec models.SyncRecord
	const query = `SELECT client_id, op_id, resource, action, record_id, applied_by, applied_at
        FROM sync_operations WHERE client_id = $1 AND op_id = $2`
	if err := r.db.GetContext(ctx, &rec, query, clientID, opID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Record marks an operation applied. A concurrent replay of the same operation is ignored.
func (r *SyncRepository) Record(ctx context.Context, rec *models.SyncRecord) error {
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sync_operations (client_id, op_id, resource, action, record_id, applied_by, applied_at)
        VALUES (:client_id, :op_id, :resource, :action, :record_id, :applied_by, :applied_at)
        ON CONFLICT (client_id, op_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("record sync operation: %w", err)
	}
	return nil
}
