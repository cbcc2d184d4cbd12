package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

const attendanceColumns = `a.id, a.student_id, a.class_id, a.date, a.status, a.remarks, a.recorded_by, a.created_at, a.updated_at`

const attendanceCounts = `COUNT(*) FILTER (WHERE a.status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE a.status = 'ABSENT') AS absent,
        COUNT(*) FILTER (WHERE a.status = 'LATE') AS late,
        COUNT(*) FILTER (WHERE a.status = 'EXCUSED') AS excused,
        COUNT(*) AS total`

// AttendanceRepository persists daily attendance.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func attendanceWhere(filter models.AttendanceFilter) whereBuilder {
	var where whereBuilder
	if filter.ClassID != "" {
		where.add("a.class_id = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		where.add("a.student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		where.add("a.status = ?", filter.Status)
	}
	if filter.From != nil {
		where.add("a.date >= ?", *filter.From)
	}
	if filter.To != nil {
		where.add("a.date <= ?", *filter.To)
	}
	return where
}

// List returns attendance rows matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	where := attendanceWhere(filter)
	clause := where.clause()
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s, st.student_number, st.first_name || ' ' || st.last_name AS student_name
        FROM attendance a JOIN students st ON st.id = a.student_id
        %s ORDER BY a.date DESC, st.last_name LIMIT %d OFFSET %d`, attendanceColumns, clause, limit, offset)
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance a "+clause, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

// FindByID returns an attendance row.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	var rec models.Attendance
	if err := r.db.GetContext(ctx, &rec, "SELECT "+attendanceColumns+" FROM attendance a WHERE a.id = $1", id); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert records a student's status for a day, replacing an earlier mark.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *models.Attendance) error {
	return r.upsert(ctx, r.db, rec)
}

// UpsertBatch writes a set of marks in one transaction.
func (r *AttendanceRepository) UpsertBatch(ctx context.Context, recs []*models.Attendance) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance batch: %w", err)
	}
	for _, rec := range recs {
		if err := r.upsert(ctx, tx, rec); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance batch: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) upsert(ctx context.Context, exec sqlx.ExtContext, rec *models.Attendance) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, class_id, date, status, remarks, recorded_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT ON CONSTRAINT attendance_student_date_key DO UPDATE SET
            class_id = EXCLUDED.class_id, status = EXCLUDED.status, remarks = EXCLUDED.remarks,
            recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := exec.QueryRowxContext(ctx, query, rec.ID, rec.StudentID, rec.ClassID, rec.Date, rec.Status, rec.Remarks,
		rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// Update changes status and remarks of a row.
func (r *AttendanceRepository) Update(ctx context.Context, rec *models.Attendance) error {
	rec.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance SET status = :status, remarks = :remarks, recorded_by = :recorded_by, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Delete removes a row.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// Summary counts statuses for the filter. Paging fields are ignored.
func (r *AttendanceRepository) Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error) {
	where := attendanceWhere(filter)
	var summary models.AttendanceSummary
	query := "SELECT " + attendanceCounts + " FROM attendance a " + where.clause()
	if err := r.db.GetContext(ctx, &summary, query, where.args...); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	summary.StudentID = filter.StudentID
	summary.ComputeRate()
	return &summary, nil
}

// SummaryByStudent counts statuses per student for a class and optional range.
// Students without rows are absent from the result.
func (r *AttendanceRepository) SummaryByStudent(ctx context.Context, classID string, from, to *time.Time) ([]models.AttendanceSummary, error) {
	where := attendanceWhere(models.AttendanceFilter{ClassID: classID, From: from, To: to})
	query := "SELECT a.student_id, " + attendanceCounts + " FROM attendance a " + where.clause() + " GROUP BY a.student_id"
	var rows []models.AttendanceSummary
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, fmt.Errorf("attendance summary by student: %w", err)
	}
	for i := range rows {
		rows[i].ComputeRate()
	}
	return rows, nil
}
