package models

import "time"

// Conduct ratings accepted on evaluations.
var ConductRatings = []string{"Excellent", "Very Good", "Good", "Fair", "Poor"}

// Evaluation holds the non-academic termly assessment of a student.
type Evaluation struct {
	ID                 string    `db:"id" json:"id"`
	StudentID          string    `db:"student_id" json:"student_id"`
	ClassID            string    `db:"class_id" json:"class_id"`
	AcademicYear       string    `db:"academic_year" json:"academic_year"`
	Term               int       `db:"term" json:"term"`
	Conduct            string    `db:"conduct" json:"conduct"`
	Attitude           string    `db:"attitude" json:"attitude"`
	Interest           string    `db:"interest" json:"interest"`
	ClassTeacherRemark string    `db:"class_teacher_remark" json:"class_teacher_remark"`
	HeadTeacherRemark  string    `db:"head_teacher_remark" json:"head_teacher_remark"`
	EvaluatedBy        *string   `db:"evaluated_by" json:"evaluated_by,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// EvaluationFilter narrows evaluation listings.
type EvaluationFilter struct {
	ClassID      string
	StudentID    string
	AcademicYear string
	Term         int
	Page         int
	PageSize     int
}
