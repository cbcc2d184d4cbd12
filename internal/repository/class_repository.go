package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

const classDetailSelect = `SELECT c.id, c.name, c.level, c.section, c.academic_year, c.class_teacher_id, c.capacity, c.created_at, c.updated_at,
        u.full_name AS class_teacher_name,
        (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.status = 'ACTIVE') AS student_count
        FROM classes c LEFT JOIN users u ON u.id = c.class_teacher_id`

// ClassRepository manages classes and their subject assignments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes matching the filter.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	var where whereBuilder
	if filter.Level != nil {
		where.add("c.level = ?", *filter.Level)
	}
	if filter.AcademicYear != "" {
		where.add("c.academic_year = ?", filter.AcademicYear)
	}
	if filter.Search != "" {
		where.add("LOWER(c.name) LIKE ?", likePattern(filter.Search))
	}
	if filter.TeacherID != "" {
		where.add("(c.class_teacher_id = ? OR EXISTS (SELECT 1 FROM class_subjects cs WHERE cs.class_id = c.id AND cs.teacher_id = ?))", filter.TeacherID)
	}
	clause := where.clause()

	sortOrder := filter.SortOrder
	if sortOrder == "" {
		sortOrder = "ASC"
	}
	order := orderClause(map[string]string{
		"name":       "c.name",
		"level":      "c.level",
		"created_at": "c.created_at",
	}, filter.SortBy, "level", sortOrder) + ", c.name ASC"
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s %s ORDER BY %s LIMIT %d OFFSET %d", classDetailSelect, clause, order, limit, offset)
	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes c "+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class detail.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	var class models.ClassDetail
	if err := r.db.GetContext(ctx, &class, classDetailSelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &class, nil
}

// ExistsByName checks for a case-insensitive name clash.
func (r *ClassRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	query := `SELECT 1 FROM classes WHERE LOWER(name) = LOWER($1)`
	args := []interface{}{name}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+` LIMIT 1`, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check class name: %w", err)
	}
	return true, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, name, level, section, academic_year, class_teacher_id, capacity, created_at, updated_at)
        VALUES (:id, :name, :level, :section, :academic_year, :class_teacher_id, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, level = :level, section = :section, academic_year = :academic_year,
        class_teacher_id = :class_teacher_id, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CountStudents counts students of any status still assigned to the class.
func (r *ClassRepository) CountStudents(ctx context.Context, classID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM students WHERE class_id = $1`, classID); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return count, nil
}

// IsClassTeacher reports whether the user leads the class or teaches any subject in it.
func (r *ClassRepository) IsClassTeacher(ctx context.Context, teacherID, classID string) (bool, error) {
	const query = `SELECT EXISTS (
        SELECT 1 FROM classes WHERE id = $1 AND class_teacher_id = $2
        UNION ALL
        SELECT 1 FROM class_subjects WHERE class_id = $1 AND teacher_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, teacherID); err != nil {
		return false, fmt.Errorf("check class teacher: %w", err)
	}
	return ok, nil
}

// IsSubjectTeacher reports whether the user is assigned to teach the subject in the class.
func (r *ClassRepository) IsSubjectTeacher(ctx context.Context, teacherID, classID, subjectID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM class_subjects WHERE class_id = $1 AND subject_id = $2 AND teacher_id = $3)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, subjectID, teacherID); err != nil {
		return false, fmt.Errorf("check subject teacher: %w", err)
	}
	return ok, nil
}

// ListSubjects returns subject assignments for a class.
func (r *ClassRepository) ListSubjects(ctx context.Context, classID string) ([]models.ClassSubjectDetail, error) {
	const query = `
SELECT cs.id, cs.class_id, cs.subject_id, cs.teacher_id, cs.created_at,
       s.name AS subject_name, s.code AS subject_code, s.is_core,
       u.full_name AS teacher_name
FROM class_subjects cs
JOIN subjects s ON s.id = cs.subject_id
LEFT JOIN users u ON u.id = cs.teacher_id
WHERE cs.class_id = $1
ORDER BY s.is_core DESC, s.name ASC`
	var subjects []models.ClassSubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list class subjects: %w", err)
	}
	return subjects, nil
}

// AssignSubject maps a subject to a class, replacing the teacher when the pair exists.
func (r *ClassRepository) AssignSubject(ctx context.Context, assignment *models.ClassSubject) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO class_subjects (id, class_id, subject_id, teacher_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT ON CONSTRAINT class_subjects_class_subject_key DO UPDATE SET teacher_id = EXCLUDED.teacher_id
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, assignment.ID, assignment.ClassID, assignment.SubjectID, assignment.TeacherID, assignment.CreatedAt)
	if err := row.Scan(&assignment.ID, &assignment.CreatedAt); err != nil {
		return fmt.Errorf("assign class subject: %w", err)
	}
	return nil
}

// RemoveSubject unmaps a subject. It reports false when nothing was removed.
func (r *ClassRepository) RemoveSubject(ctx context.Context, classID, subjectID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_subjects WHERE class_id = $1 AND subject_id = $2`, classID, subjectID)
	if err != nil {
		return false, fmt.Errorf("remove class subject: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove class subject: %w", err)
	}
	return n > 0, nil
}
