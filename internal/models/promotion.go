package models

import "time"

// PromotionCriteria are the thresholds a student must meet to move up a level.
type PromotionCriteria struct {
	PassMark          float64 `json:"pass_mark" validate:"gte=0,lte=100"`
	MinAverage        float64 `json:"min_average" validate:"gte=0,lte=100"`
	MinAttendanceRate float64 `json:"min_attendance_rate" validate:"gte=0,lte=1"`
	MaxFailedSubjects int     `json:"max_failed_subjects" validate:"gte=0"`
}

// CriteriaOverride carries per-request thresholds. Nil fields keep the base value.
type CriteriaOverride struct {
	PassMark          *float64 `json:"pass_mark,omitempty"`
	MinAverage        *float64 `json:"min_average,omitempty"`
	MinAttendanceRate *float64 `json:"min_attendance_rate,omitempty"`
	MaxFailedSubjects *int     `json:"max_failed_subjects,omitempty"`
}

// Apply returns base with every set threshold replaced.
func (o *CriteriaOverride) Apply(base PromotionCriteria) PromotionCriteria {
	if o == nil {
		return base
	}
	if o.PassMark != nil {
		base.PassMark = *o.PassMark
	}
	if o.MinAverage != nil {
		base.MinAverage = *o.MinAverage
	}
	if o.MinAttendanceRate != nil {
		base.MinAttendanceRate = *o.MinAttendanceRate
	}
	if o.MaxFailedSubjects != nil {
		base.MaxFailedSubjects = *o.MaxFailedSubjects
	}
	return base
}

// SubjectAverage is a subject average inside an eligibility row.
type SubjectAverage struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Average     float64 `json:"average"`
	Passed      bool    `json:"passed"`
}

// StudentEligibility is the promotion verdict for one student. AttendanceRate
// is nil when no attendance was recorded.
type StudentEligibility struct {
	StudentID      string           `json:"student_id"`
	StudentNumber  string           `json:"student_number"`
	StudentName    string           `json:"student_name"`
	Subjects       []SubjectAverage `json:"subjects"`
	Average        float64          `json:"average"`
	FailedSubjects int              `json:"failed_subjects"`
	AttendanceRate *float64         `json:"attendance_rate,omitempty"`
	Eligible       bool             `json:"eligible"`
	Reasons        []string         `json:"reasons,omitempty"`
}

// ClassEligibility collects verdicts for a class roster.
type ClassEligibility struct {
	ClassID       string               `json:"class_id"`
	ClassName     string               `json:"class_name"`
	AcademicYear  string               `json:"academic_year"`
	Level         int                  `json:"level"`
	NextLevel     *int                 `json:"next_level,omitempty"`
	Graduating    bool                 `json:"graduating"`
	Criteria      PromotionCriteria    `json:"criteria"`
	Students      []StudentEligibility `json:"students"`
	EligibleCount int                  `json:"eligible_count"`
}

// Promotion outcomes.
const (
	PromotionOutcomePromoted  = "PROMOTED"
	PromotionOutcomeGraduated = "GRADUATED"
)

// PromotionRecord is the history row written for every promoted student.
type PromotionRecord struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	FromClassID    string    `db:"from_class_id" json:"from_class_id"`
	ToClassID      *string   `db:"to_class_id" json:"to_class_id,omitempty"`
	AcademicYear   string    `db:"academic_year" json:"academic_year"`
	Outcome        string    `db:"outcome" json:"outcome"`
	Eligible       bool      `db:"eligible" json:"eligible"`
	Forced         bool      `db:"forced" json:"forced"`
	AverageScore   float64   `db:"average_score" json:"average_score"`
	AttendanceRate *float64  `db:"attendance_rate" json:"attendance_rate,omitempty"`
	PromotedBy     *string   `db:"promoted_by" json:"promoted_by,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// PromotionRecordDetail adds student and class names for history views.
type PromotionRecordDetail struct {
	PromotionRecord
	StudentName   string  `db:"student_name" json:"student_name"`
	FromClassName string  `db:"from_class_name" json:"from_class_name"`
	ToClassName   *string `db:"to_class_name" json:"to_class_name,omitempty"`
}

// PromotionHistoryFilter narrows history listings.
type PromotionHistoryFilter struct {
	StudentID    string
	ClassID      string
	AcademicYear string
	Page         int
	PageSize     int
}

// PromotionOutcome is the per-student result of executing a promotion.
type PromotionOutcome struct {
	StudentID string `json:"student_id"`
	Outcome   string `json:"outcome"`
	Eligible  bool   `json:"eligible"`
	Forced    bool   `json:"forced"`
}

// PromotionResult summarises an executed promotion.
type PromotionResult struct {
	FromClassID string             `json:"from_class_id"`
	ToClassID   *string            `json:"to_class_id,omitempty"`
	Promoted    int                `json:"promoted"`
	Graduated   int                `json:"graduated"`
	Outcomes    []PromotionOutcome `json:"outcomes"`
}
