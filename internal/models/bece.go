package models

import "time"

// BECEResult is a candidate's grade (1 best, 9 worst) in one BECE subject.
type BECEResult struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	IndexNumber string    `db:"index_number" json:"index_number"`
	ExamYear    int       `db:"exam_year" json:"exam_year"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	Grade       int       `db:"grade" json:"grade"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BECEResultDetail adds student and subject labels.
type BECEResultDetail struct {
	BECEResult
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentName   string `db:"student_name" json:"student_name"`
	SubjectCode   string `db:"subject_code" json:"subject_code"`
	SubjectName   string `db:"subject_name" json:"subject_name"`
	IsCore        bool   `db:"is_core" json:"is_core"`
}

// BECEFilter narrows BECE listings.
type BECEFilter struct {
	ExamYear    int
	StudentID   string
	IndexNumber string
	Page        int
	PageSize    int
}

// BECEAggregateReport is the aggregate for one candidate and exam year.
type BECEAggregateReport struct {
	StudentID   string             `json:"student_id"`
	ExamYear    int                `json:"exam_year"`
	IndexNumber string             `json:"index_number"`
	Subjects    []BECEResultDetail `json:"subjects"`
	Aggregate   int                `json:"aggregate"`
	Complete    bool               `json:"complete"`
	Missing     string             `json:"missing,omitempty"`
}
