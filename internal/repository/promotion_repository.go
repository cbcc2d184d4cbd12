package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

// PromotionRepository moves students between classes and keeps the history.
type PromotionRepository struct {
	db *sqlx.DB
}

// NewPromotionRepository constructs a PromotionRepository.
func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// Execute applies every record in a single transaction. Promoted students move to
// the record's target class; graduated students lose their class and change status.
func (r *PromotionRepository) Execute(ctx context.Context, records []*models.PromotionRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin promotion: %w", err)
	}
	now := time.Now().UTC()
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now

		switch rec.Outcome {
		case models.PromotionOutcomeGraduated:
			_, err = tx.ExecContext(ctx, `UPDATE students SET class_id = NULL, status = $1, updated_at = $2 WHERE id = $3`,
				models.StudentStatusGraduated, now, rec.StudentID)
		default:
			_, err = tx.ExecContext(ctx, `UPDATE students SET class_id = $1, updated_at = $2 WHERE id = $3`,
				rec.ToClassID, now, rec.StudentID)
		}
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("move student %s: %w", rec.StudentID, err)
		}

		const insert = `INSERT INTO promotion_records (id, student_id, from_class_id, to_class_id, academic_year, outcome,
            eligible, forced, average_score, attendance_rate, promoted_by, created_at)
            VALUES (:id, :student_id, :from_class_id, :to_class_id, :academic_year, :outcome,
            :eligible, :forced, :average_score, :attendance_rate, :promoted_by, :created_at)`
		if _, err = sqlx.NamedExecContext(ctx, tx, insert, rec); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert promotion record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit promotion: %w", err)
	}
	return nil
}

// History lists promotion records, newest first.
func (r *PromotionRepository) History(ctx context.Context, filter models.PromotionHistoryFilter) ([]models.PromotionRecordDetail, int, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("p.student_id = ?", filter.StudentID)
	}
	if filter.ClassID != "" {
		where.add("(p.from_class_id = ? OR p.to_class_id = ?)", filter.ClassID)
	}
	if filter.AcademicYear != "" {
		where.add("p.academic_year = ?", filter.AcademicYear)
	}
	clause := where.clause()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.from_class_id, p.to_class_id, p.academic_year, p.outcome, p.eligible,
        p.forced, p.average_score, p.attendance_rate, p.promoted_by, p.created_at,
        s.first_name || ' ' || s.last_name AS student_name, fc.name AS from_class_name, tc.name AS to_class_name
        FROM promotion_records p
        JOIN students s ON s.id = p.student_id
        JOIN classes fc ON fc.id = p.from_class_id
        LEFT JOIN classes tc ON tc.id = p.to_class_id
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, clause, limit, offset)
	var records []models.PromotionRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list promotion history: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM promotion_records p "+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count promotion history: %w", err)
	}
	return records, total, nil
}
