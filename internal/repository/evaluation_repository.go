package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

const evaluationColumns = `id, student_id, class_id, academic_year, term, conduct, attitude, interest,
        class_teacher_remark, head_teacher_remark, evaluated_by, created_at, updated_at`

// EvaluationRepository persists termly evaluations.
type EvaluationRepository struct {
	db *sqlx.DB
}

// NewEvaluationRepository constructs an EvaluationRepository.
func NewEvaluationRepository(db *sqlx.DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// List returns evaluations matching the filter.
func (r *EvaluationRepository) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error) {
	var where whereBuilder
	if filter.ClassID != "" {
		where.add("class_id = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		where.add("student_id = ?", filter.StudentID)
	}
	if filter.AcademicYear != "" {
		where.add("academic_year = ?", filter.AcademicYear)
	}
	if filter.Term > 0 {
		where.add("term = ?", filter.Term)
	}
	base := "FROM evaluations " + where.clause()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s ORDER BY academic_year DESC, term DESC, created_at DESC LIMIT %d OFFSET %d", evaluationColumns, base, limit, offset)
	var evaluations []models.Evaluation
	if err := r.db.SelectContext(ctx, &evaluations, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list evaluations: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count evaluations: %w", err)
	}
	return evaluations, total, nil
}

// FindByID returns an evaluation.
func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.GetContext(ctx, &evaluation, "SELECT "+evaluationColumns+" FROM evaluations WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// FindForTerm returns the evaluation of a student for a term.
func (r *EvaluationRepository) FindForTerm(ctx context.Context, studentID, academicYear string, term int) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	query := "SELECT " + evaluationColumns + " FROM evaluations WHERE student_id = $1 AND academic_year = $2 AND term = $3"
	if err := r.db.GetContext(ctx, &evaluation, query, studentID, academicYear, term); err != nil {
		return nil, err
	}
	return &evaluation, nil
}

// Upsert inserts or replaces the evaluation for the student and term.
func (r *EvaluationRepository) Upsert(ctx context.Context, evaluation *models.Evaluation) error {
	if evaluation.ID == "" {
		evaluation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = now
	}
	evaluation.UpdatedAt = now
	const query = `INSERT INTO evaluations (id, student_id, class_id, academic_year, term, conduct, attitude, interest,
        class_teacher_remark, head_teacher_remark, evaluated_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT ON CONSTRAINT evaluations_student_term_key DO UPDATE SET
            class_id = EXCLUDED.class_id, conduct = EXCLUDED.conduct, attitude = EXCLUDED.attitude,
            interest = EXCLUDED.interest, class_teacher_remark = EXCLUDED.class_teacher_remark,
            head_teacher_remark = EXCLUDED.head_teacher_remark, evaluated_by = EXCLUDED.evaluated_by,
            updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, evaluation.ID, evaluation.StudentID, evaluation.ClassID, evaluation.AcademicYear,
		evaluation.Term, evaluation.Conduct, evaluation.Attitude, evaluation.Interest, evaluation.ClassTeacherRemark,
		evaluation.HeadTeacherRemark, evaluation.EvaluatedBy, evaluation.CreatedAt, evaluation.UpdatedAt)
	if err := row.Scan(&evaluation.ID, &evaluation.CreatedAt); err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

// Update rewrites the assessment fields.
func (r *EvaluationRepository) Update(ctx context.Context, evaluation *models.Evaluation) error {
	evaluation.UpdatedAt = time.Now().UTC()
	const query = `UPDATE evaluations SET conduct = :conduct, attitude = :attitude, interest = :interest,
        class_teacher_remark = :class_teacher_remark, head_teacher_remark = :head_teacher_remark,
        evaluated_by = :evaluated_by, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, evaluation); err != nil {
		return fmt.Errorf("update evaluation: %w", err)
	}
	return nil
}

// Delete removes an evaluation.
func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM evaluations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete evaluation: %w", err)
	}
	return nil
}
