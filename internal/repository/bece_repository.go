package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

const beceDetailSelect = `SELECT b.id, b.student_id, b.index_number, b.exam_year, b.subject_id, b.grade, b.created_at, b.updated_at,
        st.student_number, st.first_name || ' ' || st.last_name AS student_name,
        sb.code AS subject_code, sb.name AS subject_name, sb.is_core
        FROM bece_results b
        JOIN students st ON st.id = b.student_id
        JOIN subjects sb ON sb.id = b.subject_id`

// BECERepository persists BECE results.
type BECERepository struct {
	db *sqlx.DB
}

// NewBECERepository constructs a BECERepository.
func NewBECERepository(db *sqlx.DB) *BECERepository {
	return &BECERepository{db: db}
}

// List returns results matching the filter.
func (r *BECERepository) List(ctx context.Context, filter models.BECEFilter) ([]models.BECEResultDetail, int, error) {
	var where whereBuilder
	if filter.ExamYear > 0 {
		where.add("b.exam_year = ?", filter.ExamYear)
	}
	if filter.StudentID != "" {
		where.add("b.student_id = ?", filter.StudentID)
	}
	if filter.IndexNumber != "" {
		where.add("b.index_number = ?", filter.IndexNumber)
	}
	clause := where.clause()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s %s ORDER BY b.exam_year DESC, st.last_name, sb.name LIMIT %d OFFSET %d", beceDetailSelect, clause, limit, offset)
	var results []models.BECEResultDetail
	if err := r.db.SelectContext(ctx, &results, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list bece results: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM bece_results b "+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count bece results: %w", err)
	}
	return results, total, nil
}

// FindByID returns a result.
func (r *BECERepository) FindByID(ctx context.Context, id string) (*models.BECEResult, error) {
	var result models.BECEResult
	const query = `SELECT id, student_id, index_number, exam_year, subject_id, grade, created_at, updated_at FROM bece_results WHERE id = $1`
	if err := r.db.GetContext(ctx, &result, query, id); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListForStudent returns a candidate's results for an exam year.
func (r *BECERepository) ListForStudent(ctx context.Context, studentID string, examYear int) ([]models.BECEResultDetail, error) {
	var results []models.BECEResultDetail
	query := beceDetailSelect + " WHERE b.student_id = $1 AND b.exam_year = $2 ORDER BY sb.is_core DESC, sb.name"
	if err := r.db.SelectContext(ctx, &results, query, studentID, examYear); err != nil {
		return nil, fmt.Errorf("list student bece results: %w", err)
	}
	return results, nil
}

// Create inserts a result.
func (r *BECERepository) Create(ctx context.Context, result *models.BECEResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	const query = `INSERT INTO bece_results (id, student_id, index_number, exam_year, subject_id, grade, created_at, updated_at)
        VALUES (:id, :student_id, :index_number, :exam_year, :subject_id, :grade, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("create bece result: %w", err)
	}
	return nil
}

// UpsertBatch imports results in one transaction, replacing grades already on file.
func (r *BECERepository) UpsertBatch(ctx context.Context, results []*models.BECEResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bece import: %w", err)
	}
	const query = `INSERT INTO bece_results (id, student_id, index_number, exam_year, subject_id, grade, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT ON CONSTRAINT bece_results_student_year_subject_key DO UPDATE SET
            index_number = EXCLUDED.index_number, grade = EXCLUDED.grade, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for _, res := range results {
		if res.ID == "" {
			res.ID = uuid.NewString()
		}
		res.CreatedAt, res.UpdatedAt = now, now
		if _, err := tx.ExecContext(ctx, query, res.ID, res.StudentID, res.IndexNumber, res.ExamYear, res.SubjectID, res.Grade, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("import bece result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bece import: %w", err)
	}
	return nil
}

// Update rewrites grade and index number.
func (r *BECERepository) Update(ctx context.Context, result *models.BECEResult) error {
	result.UpdatedAt = time.Now().UTC()
	const query = `UPDATE bece_results SET index_number = :index_number, grade = :grade, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("update bece result: %w", err)
	}
	return nil
}

// Delete removes a result.
func (r *BECERepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bece_results WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete bece result: %w", err)
	}
	return nil
}
