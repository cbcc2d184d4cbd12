package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountActiveStudents counts students with ACTIVE status.
func (r *DashboardRepository) CountActiveStudents(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM students WHERE status = 'ACTIVE'`)
}

// CountClasses counts classes, optionally for one academic year.
func (r *DashboardRepository) CountClasses(ctx context.Context, academicYear string) (int, error) {
	if academicYear == "" {
		return r.count(ctx, `SELECT COUNT(*) FROM classes`)
	}
	return r.count(ctx, `SELECT COUNT(*) FROM classes WHERE academic_year = $1`, academicYear)
}

// CountSubjects counts subjects.
func (r *DashboardRepository) CountSubjects(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM subjects`)
}

// CountTeachers counts active teacher accounts.
func (r *DashboardRepository) CountTeachers(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users WHERE role = 'TEACHER' AND active = TRUE`)
}

// CountGrades counts grade rows recorded for a term.
func (r *DashboardRepository) CountGrades(ctx context.Context, academicYear string, term int) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM grades WHERE academic_year = $1 AND term = $2`, academicYear, term)
}

// AttendanceOn tallies attendance rows for a date; LATE counts as attended.
func (r *DashboardRepository) AttendanceOn(ctx context.Context, date time.Time) (*models.AttendanceTally, error) {
	var tally models.AttendanceTally
	const query = `SELECT COUNT(*) FILTER (WHERE status IN ('PRESENT', 'LATE')) AS attended, COUNT(*) AS total
        FROM attendance WHERE date = $1`
	if err := r.db.GetContext(ctx, &tally, query, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("tally attendance: %w", err)
	}
	return &tally, nil
}

// StudentsPerLevel groups active students by the level of their class.
func (r *DashboardRepository) StudentsPerLevel(ctx context.Context) ([]models.LevelCount, error) {
	var counts []models.LevelCount
	const query = `SELECT c.level, COUNT(s.id) AS students
        FROM students s JOIN classes c ON c.id = s.class_id
        WHERE s.status = 'ACTIVE'
        GROUP BY c.level ORDER BY c.level`
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("students per level: %w", err)
	}
	return counts, nil
}

// TeacherClasses lists classes a teacher runs or teaches a subject in.
func (r *DashboardRepository) TeacherClasses(ctx context.Context, teacherID string, date time.Time) ([]models.TeacherClass, error) {
	var classes []models.TeacherClass
	const query = `SELECT c.id AS class_id, c.name AS class_name, c.level,
        (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.status = 'ACTIVE') AS student_count,
        (c.class_teacher_id IS NOT NULL AND c.class_teacher_id = $1) AS is_class_teacher,
        EXISTS (SELECT 1 FROM attendance a WHERE a.class_id = c.id AND a.date = $2) AS attendance_marked
        FROM classes c
        WHERE c.class_teacher_id = $1
           OR EXISTS (SELECT 1 FROM class_subjects cs WHERE cs.class_id = c.id AND cs.teacher_id = $1)
        ORDER BY c.level, c.name`
	if err := r.db.SelectContext(ctx, &classes, query, teacherID, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list teacher classes: %w", err)
	}
	return classes, nil
}

func (r *DashboardRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("dashboard count: %w", err)
	}
	return total, nil
}
