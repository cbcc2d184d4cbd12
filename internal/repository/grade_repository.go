package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

const gradeColumns = `g.id, g.student_id, g.subject_id, g.class_id, g.teacher_id, g.academic_year, g.term,
        g.class_score, g.exam_score, g.total_score, g.grade, g.remark, g.created_at, g.updated_at`

const gradeDetailFrom = `FROM grades g
        JOIN students st ON st.id = g.student_id
        JOIN subjects sb ON sb.id = g.subject_id`

const gradeDetailLabels = `st.student_number, st.first_name || ' ' || st.last_name AS student_name, sb.code AS subject_code, sb.name AS subject_name`

// GradeRepository persists termly subject grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grades matching the filter.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	var where whereBuilder
	if filter.StudentID != "" {
		where.add("g.student_id = ?", filter.StudentID)
	}
	if filter.ClassID != "" {
		where.add("g.class_id = ?", filter.ClassID)
	}
	if filter.SubjectID != "" {
		where.add("g.subject_id = ?", filter.SubjectID)
	}
	if filter.AcademicYear != "" {
		where.add("g.academic_year = ?", filter.AcademicYear)
	}
	if filter.Term > 0 {
		where.add("g.term = ?", filter.Term)
	}
	clause := where.clause()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s, %s %s %s ORDER BY g.academic_year DESC, g.term DESC, st.last_name, sb.name LIMIT %d OFFSET %d",
		gradeColumns, gradeDetailLabels, gradeDetailFrom, clause, limit, offset)
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM grades g "+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// FindByID returns a grade.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, "SELECT "+gradeColumns+" FROM grades g WHERE g.id = $1", id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Upsert inserts or replaces the grade for its student, subject, year and term.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	return r.upsert(ctx, r.db, grade)
}

// UpsertBatch writes all grades in a single transaction.
func (r *GradeRepository) UpsertBatch(ctx context.Context, grades []*models.Grade) error {
	if len(grades) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade batch: %w", err)
	}
	for _, g := range grades {
		if err := r.upsert(ctx, tx, g); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade batch: %w", err)
	}
	return nil
}

func (r *GradeRepository) upsert(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, subject_id, class_id, teacher_id, academic_year, term,
        class_score, exam_score, total_score, grade, remark, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT ON CONSTRAINT grades_student_subject_term_key DO UPDATE SET
            class_id = EXCLUDED.class_id, teacher_id = EXCLUDED.teacher_id,
            class_score = EXCLUDED.class_score, exam_score = EXCLUDED.exam_score, total_score = EXCLUDED.total_score,
            grade = EXCLUDED.grade, remark = EXCLUDED.remark, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := exec.QueryRowxContext(ctx, query, grade.ID, grade.StudentID, grade.SubjectID, grade.ClassID, grade.TeacherID,
		grade.AcademicYear, grade.Term, grade.ClassScore, grade.ExamScore, grade.TotalScore, grade.Grade, grade.Remark,
		grade.CreatedAt, grade.UpdatedAt)
	if err := row.Scan(&grade.ID, &grade.CreatedAt); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// Update rewrites the scores of an existing grade.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET class_score = :class_score, exam_score = :exam_score, total_score = :total_score,
        grade = :grade, remark = :remark, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// Delete removes a grade.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}

// ListForClassTerm returns every grade recorded in a class for a term.
func (r *GradeRepository) ListForClassTerm(ctx context.Context, classID, academicYear string, term int) ([]models.GradeDetail, error) {
	query := fmt.Sprintf("SELECT %s, %s %s WHERE g.class_id = $1 AND g.academic_year = $2 AND g.term = $3 ORDER BY sb.name, st.last_name",
		gradeColumns, gradeDetailLabels, gradeDetailFrom)
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, classID, academicYear, term); err != nil {
		return nil, fmt.Errorf("list class term grades: %w", err)
	}
	return grades, nil
}

// SubjectAverages averages each student's totals per subject across the terms
// recorded in the class for the year.
func (r *GradeRepository) SubjectAverages(ctx context.Context, classID, academicYear string) ([]models.StudentSubjectAverage, error) {
	const query = `SELECT g.student_id, g.subject_id, sb.name AS subject_name, ROUND(AVG(g.total_score)::numeric, 2)::float8 AS average
        FROM grades g JOIN subjects sb ON sb.id = g.subject_id
        WHERE g.class_id = $1 AND g.academic_year = $2
        GROUP BY g.student_id, g.subject_id, sb.name
        ORDER BY g.student_id, sb.name`
	var rows []models.StudentSubjectAverage
	if err := r.db.SelectContext(ctx, &rows, query, classID, academicYear); err != nil {
		return nil, fmt.Errorf("grade subject averages: %w", err)
	}
	return rows, nil
}
