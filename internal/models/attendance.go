package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
	AttendanceStatusExcused AttendanceStatus = "EXCUSED"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance is one student's status for a school day.
type Attendance struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	ClassID    string           `db:"class_id" json:"class_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Remarks    string           `db:"remarks" json:"remarks"`
	RecordedBy *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceDetail adds the student name.
type AttendanceDetail struct {
	Attendance
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentName   string `db:"student_name" json:"student_name"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	Status    AttendanceStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// AttendanceSummary counts statuses. Rate is (present+late)/total and 0 when
// nothing was recorded.
type AttendanceSummary struct {
	StudentID string  `db:"student_id" json:"student_id,omitempty"`
	Present   int     `db:"present" json:"present"`
	Absent    int     `db:"absent" json:"absent"`
	Late      int     `db:"late" json:"late"`
	Excused   int     `db:"excused" json:"excused"`
	Total     int     `db:"total" json:"total"`
	Rate      float64 `db:"-" json:"rate"`
}

// ComputeRate fills Rate from the counts.
func (s *AttendanceSummary) ComputeRate() {
	if s.Total == 0 {
		s.Rate = 0
		return
	}
	s.Rate = float64(s.Present+s.Late) / float64(s.Total)
}
