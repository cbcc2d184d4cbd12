package models

import (
	"strings"
	"time"
)

// StudentStatus is the lifecycle state of a student record.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "ACTIVE"
	StudentStatusInactive    StudentStatus = "INACTIVE"
	StudentStatusGraduated   StudentStatus = "GRADUATED"
	StudentStatusTransferred StudentStatus = "TRANSFERRED"
)

// Student represents a learner registered in the school.
type Student struct {
	ID            string        `db:"id" json:"id"`
	StudentNumber string        `db:"student_number" json:"student_number"`
	FirstName     string        `db:"first_name" json:"first_name"`
	LastName      string        `db:"last_name" json:"last_name"`
	OtherNames    string        `db:"other_names" json:"other_names"`
	Gender        string        `db:"gender" json:"gender"`
	DateOfBirth   *time.Time    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	ClassID       *string       `db:"class_id" json:"class_id,omitempty"`
	GuardianName  string        `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string        `db:"guardian_phone" json:"guardian_phone"`
	Address       string        `db:"address" json:"address"`
	Status        StudentStatus `db:"status" json:"status"`
	EnrolledAt    time.Time     `db:"enrolled_at" json:"enrolled_at"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// FullName joins first, other and last names.
func (s Student) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.FirstName, s.OtherNames, s.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// StudentDetail adds the current class to a student.
type StudentDetail struct {
	Student
	ClassName  *string `db:"class_name" json:"class_name,omitempty"`
	ClassLevel *int    `db:"class_level" json:"class_level,omitempty"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Status    StudentStatus
	Gender    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ImportSkip explains why a spreadsheet row was not imported. Row is 1-based
// and counts the header row.
type ImportSkip struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarises a spreadsheet import.
type ImportResult struct {
	Imported int          `json:"imported"`
	Skipped  []ImportSkip `json:"skipped"`
}
