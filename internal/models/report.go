package models

// ReportFormat enumerates supported report renderings.
type ReportFormat string

const (
	ReportFormatJSON ReportFormat = "json"
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatPDF  ReportFormat = "pdf"
	ReportFormatXLSX ReportFormat = "xlsx"
)

// ReportCardSubject is one subject line of a terminal report.
type ReportCardSubject struct {
	SubjectID   string  `json:"subject_id"`
	SubjectCode string  `json:"subject_code"`
	SubjectName string  `json:"subject_name"`
	ClassScore  float64 `json:"class_score"`
	ExamScore   float64 `json:"exam_score"`
	Total       float64 `json:"total"`
	Grade       string  `json:"grade"`
	Remark      string  `json:"remark"`
	Position    int     `json:"position"`
	PositionStr string  `json:"position_label"`
}

// ReportCard is a student's terminal report.
type ReportCard struct {
	StudentID     string              `json:"student_id"`
	StudentNumber string              `json:"student_number"`
	StudentName   string              `json:"student_name"`
	ClassID       string              `json:"class_id"`
	ClassName     string              `json:"class_name"`
	AcademicYear  string              `json:"academic_year"`
	Term          int                 `json:"term"`
	Subjects      []ReportCardSubject `json:"subjects"`
	Average       float64             `json:"average"`
	Position      int                 `json:"position"`
	PositionStr   string              `json:"position_label"`
	ClassSize     int                 `json:"class_size"`
	Attendance    *AttendanceSummary  `json:"attendance"`
	Evaluation    *Evaluation         `json:"evaluation,omitempty"`
}

// BroadsheetSubject is a column of the broadsheet.
type BroadsheetSubject struct {
	SubjectID string `json:"subject_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// BroadsheetRow holds one student's totals keyed by subject id.
type BroadsheetRow struct {
	StudentID     string             `json:"student_id"`
	StudentNumber string             `json:"student_number"`
	StudentName   string             `json:"student_name"`
	Totals        map[string]float64 `json:"totals"`
	Average       float64            `json:"average"`
	Position      int                `json:"position"`
	PositionStr   string             `json:"position_label"`
}

// Broadsheet is the student by subject matrix of a class for a term.
type Broadsheet struct {
	ClassID      string              `json:"class_id"`
	ClassName    string              `json:"class_name"`
	AcademicYear string              `json:"academic_year"`
	Term         int                 `json:"term"`
	Subjects     []BroadsheetSubject `json:"subjects"`
	Rows         []BroadsheetRow     `json:"rows"`
}

// RenderedReport is a report serialised to a downloadable file.
type RenderedReport struct {
	Filename    string
	ContentType string
	Data        []byte
}
