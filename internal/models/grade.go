package models

import "time"

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// Grade is one student's result in a subject for a term.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	TeacherID    *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Term         int       `db:"term" json:"term"`
	ClassScore   float64   `db:"class_score" json:"class_score"`
	ExamScore    float64   `db:"exam_score" json:"exam_score"`
	TotalScore   float64   `db:"total_score" json:"total_score"`
	Grade        string    `db:"grade" json:"grade"`
	Remark       string    `db:"remark" json:"remark"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeDetail adds student and subject labels.
type GradeDetail struct {
	Grade
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentName   string `db:"student_name" json:"student_name"`
	SubjectCode   string `db:"subject_code" json:"subject_code"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
}

// GradeFilter narrows grade listings.
type GradeFilter struct {
	StudentID    string
	ClassID      string
	SubjectID    string
	AcademicYear string
	Term         int
	Page         int
	PageSize     int
}

// BulkItemError reports a rejected item of a bulk write.
type BulkItemError struct {
	Index     int    `json:"index"`
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

// BulkGradeResult summarises a bulk grade write.
type BulkGradeResult struct {
	Saved  int             `json:"saved"`
	Failed []BulkItemError `json:"failed"`
	Grades []Grade         `json:"grades"`
}

// StudentSubjectAverage is a student's average total in a subject across the
// terms recorded for a year.
type StudentSubjectAverage struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	Average     float64 `db:"average" json:"average"`
}
