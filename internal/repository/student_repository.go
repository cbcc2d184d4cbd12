package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

const studentColumns = `s.id, s.student_number, s.first_name, s.last_name, s.other_names, s.gender, s.date_of_birth, s.class_id,
        s.guardian_name, s.guardian_phone, s.address, s.status, s.enrolled_at, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var where whereBuilder
	if filter.ClassID != "" {
		where.add("s.class_id = ?", filter.ClassID)
	}
	if filter.Status != "" {
		where.add("s.status = ?", filter.Status)
	}
	if filter.Gender != "" {
		where.add("s.gender = ?", filter.Gender)
	}
	if filter.Search != "" {
		where.add("(LOWER(s.first_name || ' ' || s.last_name) LIKE ? OR LOWER(s.student_number) LIKE ?)", likePattern(filter.Search))
	}
	base := "FROM students s LEFT JOIN classes c ON c.id = s.class_id " + where.clause()

	order := orderClause(map[string]string{
		"last_name":      "s.last_name",
		"first_name":     "s.first_name",
		"student_number": "s.student_number",
		"created_at":     "s.created_at",
	}, filter.SortBy, "created_at", filter.SortOrder)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s, c.name AS class_name, c.level AS class_level
        %s ORDER BY %s LIMIT %d OFFSET %d`, studentColumns, base, order, limit, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student detail by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT ` + studentColumns + `, c.name AS class_name, c.level AS class_level
        FROM students s LEFT JOIN classes c ON c.id = s.class_id
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByNumber fetches a student by student number.
func (r *StudentRepository) FindByNumber(ctx context.Context, number string) (*models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.student_number = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, number); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByNumber checks if a student number is taken, optionally excluding an ID.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, number string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE student_number = $1"
	args := []interface{}{number}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student number: %w", err)
	}
	return true, nil
}

// ListByClass returns the roster of a class, optionally restricted to a status.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string, status models.StudentStatus) ([]models.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.class_id = $1`
	args := []interface{}{classID}
	if status != "" {
		query += ` AND s.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY s.last_name, s.first_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list class roster: %w", err)
	}
	return students, nil
}

// FilterInClass returns the subset of studentIDs currently assigned to classID.
func (r *StudentRepository) FilterInClass(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	const query = `SELECT id FROM students WHERE class_id = $1 AND id = ANY($2)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("filter students in class: %w", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	return r.create(ctx, r.db, student)
}

// CreateBatch inserts students in one transaction.
func (r *StudentRepository) CreateBatch(ctx context.Context, students []*models.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin student batch: %w", err)
	}
	for _, s := range students {
		if err := r.create(ctx, tx, s); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit student batch: %w", err)
	}
	return nil
}

func (r *StudentRepository) create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	if student.EnrolledAt.IsZero() {
		student.EnrolledAt = now
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_number, first_name, last_name, other_names, gender, date_of_birth, class_id,
        guardian_name, guardian_phone, address, status, enrolled_at, created_at, updated_at)
        VALUES (:id, :student_number, :first_name, :last_name, :other_names, :gender, :date_of_birth, :class_id,
        :guardian_name, :guardian_phone, :address, :status, :enrolled_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_number = :student_number, first_name = :first_name, last_name = :last_name,
        other_names = :other_names, gender = :gender, date_of_birth = :date_of_birth, class_id = :class_id,
        guardian_name = :guardian_name, guardian_phone = :guardian_phone, address = :address, status = :status,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student. Foreign key violations surface unchanged so the
// caller can report that the record is still referenced.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
