package models

import "time"

// Class is a cohort of students at one level for an academic year.
type Class struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Level          int       `db:"level" json:"level"`
	Section        string    `db:"section" json:"section"`
	AcademicYear   string    `db:"academic_year" json:"academic_year"`
	ClassTeacherID *string   `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	Capacity       int       `db:"capacity" json:"capacity"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with the class teacher name and roster size.
type ClassDetail struct {
	Class
	ClassTeacherName *string `db:"class_teacher_name" json:"class_teacher_name,omitempty"`
	StudentCount     int     `db:"student_count" json:"student_count"`
}

// ClassFilter defines filter criteria for listing classes. TeacherID limits the
// result to classes the teacher leads or teaches a subject in.
type ClassFilter struct {
	Level        *int
	AcademicYear string
	Search       string
	TeacherID    string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// ClassSubject maps a subject and its teacher onto a class.
type ClassSubject struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassSubjectDetail includes subject and teacher info for responses.
type ClassSubjectDetail struct {
	ClassSubject
	SubjectName string  `db:"subject_name" json:"subject_name"`
	SubjectCode string  `db:"subject_code" json:"subject_code"`
	IsCore      bool    `db:"is_core" json:"is_core"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}
