package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
	"github.com/noah-isme/school-mgmt-api/pkg/grading"
)

type termGradeReader interface {
	ListForClassTerm(ctx context.Context, classID, academicYear string, term int) ([]models.GradeDetail, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type attendanceSummarizer interface {
	Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error)
}

type termEvaluationReader interface {
	FindForTerm(ctx context.Context, studentID, academicYear string, term int) (*models.Evaluation, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type summaryPDFRenderer interface {
	RenderWithSummary(data export.Dataset, title string, summary []export.SummaryLine) ([]byte, error)
}

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportQuery selects the term of a report. ClassID overrides the class used
// for a report card, which otherwise defaults to the student's current class.
type ReportQuery struct {
	AcademicYear string `validate:"required,academic_year"`
	Term         int    `validate:"required,min=1,max=3"`
	ClassID      string `validate:"omitempty,uuid"`
	Format       models.ReportFormat
}

// ReportService assembles terminal report cards and class broadsheets.
type ReportService struct {
	grades      termGradeReader
	students    studentReader
	classes     classLookup
	attendance  attendanceSummarizer
	evaluations termEvaluationReader
	assignments assignmentChecker
	csv         datasetRenderer
	xlsx        datasetRenderer
	pdf         summaryPDFRenderer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReportService constructs a ReportService rendering through pkg/export.
func NewReportService(grades termGradeReader, students studentReader, classes classLookup, attendance attendanceSummarizer, evaluations termEvaluationReader, assignments assignmentChecker, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	registerAcademicValidators(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		grades:      grades,
		students:    students,
		classes:     classes,
		attendance:  attendance,
		evaluations: evaluations,
		assignments: assignments,
		csv:         export.NewCSVExporter().WithBOM(),
		xlsx:        export.NewXLSXExporter("Broadsheet"),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
	}
}

// ReportCard builds a student's terminal report with subject and overall positions.
func (s *ReportService) ReportCard(ctx context.Context, actor *models.JWTClaims, studentID string, query ReportQuery) (*models.ReportCard, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, invalidPayload(err, "invalid report query")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	classID := query.ClassID
	if classID == "" && student.ClassID != nil {
		classID = *student.ClassID
	}
	if classID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "student is not assigned to a class")
	}
	if err := s.authorize(ctx, actor, classID); err != nil {
		return nil, err
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, classLoadError(err)
	}
	grades, err := s.grades.ListForClassTerm(ctx, classID, query.AcademicYear, query.Term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	bySubject := map[string][]grading.Score{}
	totals := map[string][]float64{}
	var own []models.GradeDetail
	for _, g := range grades {
		bySubject[g.SubjectID] = append(bySubject[g.SubjectID], grading.Score{ID: g.StudentID, Value: g.TotalScore})
		totals[g.StudentID] = append(totals[g.StudentID], g.TotalScore)
		if g.StudentID == studentID {
			own = append(own, g)
		}
	}
	if len(own) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no grades recorded for the student in this term")
	}

	card := &models.ReportCard{
		StudentID:     student.ID,
		StudentNumber: student.StudentNumber,
		StudentName:   student.FullName(),
		ClassID:       class.ID,
		ClassName:     class.Name,
		AcademicYear:  query.AcademicYear,
		Term:          query.Term,
		Subjects:      make([]models.ReportCardSubject, 0, len(own)),
		ClassSize:     len(totals),
	}
	for _, g := range own {
		position := grading.Rank(bySubject[g.SubjectID])[studentID]
		card.Subjects = append(card.Subjects, models.ReportCardSubject{
			SubjectID:   g.SubjectID,
			SubjectCode: g.SubjectCode,
			SubjectName: g.SubjectName,
			ClassScore:  g.ClassScore,
			ExamScore:   g.ExamScore,
			Total:       g.TotalScore,
			Grade:       g.Grade.Grade,
			Remark:      g.Remark,
			Position:    position,
			PositionStr: grading.Ordinal(position),
		})
	}

	averages := averageScores(totals)
	card.Position = grading.Rank(averages)[studentID]
	card.PositionStr = grading.Ordinal(card.Position)
	for _, avg := range averages {
		if avg.ID == studentID {
			card.Average = avg.Value
		}
	}

	if card.Attendance, err = s.termAttendance(ctx, studentID, classID, query); err != nil {
		return nil, err
	}
	evaluation, err := s.evaluations.FindForTerm(ctx, studentID, query.AcademicYear, query.Term)
	switch {
	case err == nil:
		card.Evaluation = evaluation
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return card, nil
}

// Broadsheet builds the student by subject matrix of a class for a term.
func (s *ReportService) Broadsheet(ctx context.Context, actor *models.JWTClaims, classID string, query ReportQuery) (*models.Broadsheet, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, invalidPayload(err, "invalid report query")
	}
	if err := s.authorize(ctx, actor, classID); err != nil {
		return nil, err
	}
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, classLoadError(err)
	}
	grades, err := s.grades.ListForClassTerm(ctx, classID, query.AcademicYear, query.Term)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	sheet := &models.Broadsheet{
		ClassID:      class.ID,
		ClassName:    class.Name,
		AcademicYear: query.AcademicYear,
		Term:         query.Term,
		Subjects:     []models.BroadsheetSubject{},
		Rows:         []models.BroadsheetRow{},
	}
	seenSubject := map[string]bool{}
	rowIndex := map[string]int{}
	totals := map[string][]float64{}
	for _, g := range grades {
		if !seenSubject[g.SubjectID] {
			seenSubject[g.SubjectID] = true
			sheet.Subjects = append(sheet.Subjects, models.BroadsheetSubject{SubjectID: g.SubjectID, Code: g.SubjectCode, Name: g.SubjectName})
		}
		idx, ok := rowIndex[g.StudentID]
		if !ok {
			idx = len(sheet.Rows)
			rowIndex[g.StudentID] = idx
			sheet.Rows = append(sheet.Rows, models.BroadsheetRow{
				StudentID:     g.StudentID,
				StudentNumber: g.StudentNumber,
				StudentName:   g.StudentName,
				Totals:        map[string]float64{},
			})
		}
		sheet.Rows[idx].Totals[g.SubjectID] = g.TotalScore
		totals[g.StudentID] = append(totals[g.StudentID], g.TotalScore)
	}

	averages := averageScores(totals)
	positions := grading.Rank(averages)
	for _, avg := range averages {
		row := &sheet.Rows[rowIndex[avg.ID]]
		row.Average = avg.Value
		row.Position = positions[avg.ID]
		row.PositionStr = grading.Ordinal(row.Position)
	}
	sort.SliceStable(sheet.Rows, func(i, j int) bool {
		if sheet.Rows[i].Position == sheet.Rows[j].Position {
			return sheet.Rows[i].StudentName < sheet.Rows[j].StudentName
		}
		return sheet.Rows[i].Position < sheet.Rows[j].Position
	})
	return sheet, nil
}

// RenderReportCard serialises a report card as CSV or PDF.
func (s *ReportService) RenderReportCard(card *models.ReportCard, format models.ReportFormat) (*models.RenderedReport, error) {
	dataset := export.Dataset{Headers: []string{"Subject", "Class Score", "Exam Score", "Total", "Grade", "Remark", "Position"}}
	for _, subj := range card.Subjects {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject":     subj.SubjectName,
			"Class Score": formatScore(subj.ClassScore),
			"Exam Score":  formatScore(subj.ExamScore),
			"Total":       formatScore(subj.Total),
			"Grade":       subj.Grade,
			"Remark":      subj.Remark,
			"Position":    subj.PositionStr,
		})
	}
	base := fmt.Sprintf("report-card_%s_%s_term%d", fileSlug(card.StudentNumber), fileSlug(card.AcademicYear), card.Term)

	switch format {
	case models.ReportFormatCSV:
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Subject":  "Overall",
			"Total":    formatScore(card.Average),
			"Position": card.PositionStr,
		})
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, s.renderError(err, format)
		}
		return &models.RenderedReport{Filename: base + ".csv", ContentType: contentTypeCSV, Data: data}, nil
	case models.ReportFormatPDF:
		title := fmt.Sprintf("Terminal Report: %s %s Term %d", card.StudentName, card.AcademicYear, card.Term)
		data, err := s.pdf.RenderWithSummary(dataset, title, reportCardSummary(card))
		if err != nil {
			return nil, s.renderError(err, format)
		}
		return &models.RenderedReport{Filename: base + ".pdf", ContentType: contentTypePDF, Data: data}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("report cards cannot be rendered as %q", format))
	}
}

// RenderBroadsheet serialises a broadsheet as CSV, PDF or XLSX.
func (s *ReportService) RenderBroadsheet(sheet *models.Broadsheet, format models.ReportFormat) (*models.RenderedReport, error) {
	headers := []string{"Student Number", "Student Name"}
	for _, subj := range sheet.Subjects {
		headers = append(headers, subj.Code)
	}
	headers = append(headers, "Average", "Position")
	dataset := export.Dataset{Headers: headers}
	for _, row := range sheet.Rows {
		record := map[string]string{
			"Student Number": row.StudentNumber,
			"Student Name":   row.StudentName,
			"Average":        formatScore(row.Average),
			"Position":       row.PositionStr,
		}
		for _, subj := range sheet.Subjects {
			if total, ok := row.Totals[subj.SubjectID]; ok {
				record[subj.Code] = formatScore(total)
			}
		}
		dataset.Rows = append(dataset.Rows, record)
	}
	base := fmt.Sprintf("broadsheet_%s_%s_term%d", fileSlug(sheet.ClassName), fileSlug(sheet.AcademicYear), sheet.Term)

	var (
		data        []byte
		err         error
		ext         string
		contentType string
	)
	switch format {
	case models.ReportFormatCSV:
		data, err = s.csv.Render(dataset)
		ext, contentType = "csv", contentTypeCSV
	case models.ReportFormatXLSX:
		data, err = s.xlsx.Render(dataset)
		ext, contentType = "xlsx", contentTypeXLSX
	case models.ReportFormatPDF:
		title := fmt.Sprintf("Broadsheet: %s %s Term %d", sheet.ClassName, sheet.AcademicYear, sheet.Term)
		data, err = s.pdf.RenderWithSummary(dataset, title, nil)
		ext, contentType = "pdf", contentTypePDF
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("broadsheets cannot be rendered as %q", format))
	}
	if err != nil {
		return nil, s.renderError(err, format)
	}
	return &models.RenderedReport{Filename: base + "." + ext, ContentType: contentType, Data: data}, nil
}

func (s *ReportService) termAttendance(ctx context.Context, studentID, classID string, query ReportQuery) (*models.AttendanceSummary, error) {
	from, to, err := models.TermDates(query.AcademicYear, query.Term)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	summary, err := s.attendance.Summary(ctx, models.AttendanceFilter{StudentID: studentID, ClassID: classID, From: &from, To: &to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	summary.ComputeRate()
	return summary, nil
}

func (s *ReportService) authorize(ctx context.Context, actor *models.JWTClaims, classID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role.IsAdmin() {
		return nil
	}
	ok, err := s.assignments.IsClassTeacher(ctx, actor.UserID, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teaching assignment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this class")
	}
	return nil
}

func (s *ReportService) renderError(err error, format models.ReportFormat) error {
	s.logger.Error("report render failed", zap.String("format", string(format)), zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
}

// averageScores returns each student's mean total rounded to two decimals.
func averageScores(totals map[string][]float64) []grading.Score {
	out := make([]grading.Score, 0, len(totals))
	for id, values := range totals {
		var sum float64
		for _, v := range values {
			sum += v
		}
		out = append(out, grading.Score{ID: id, Value: grading.Round2(sum / float64(len(values)))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func reportCardSummary(card *models.ReportCard) []export.SummaryLine {
	lines := []export.SummaryLine{
		{Label: "Student", Value: fmt.Sprintf("%s (%s)", card.StudentName, card.StudentNumber)},
		{Label: "Class", Value: card.ClassName},
		{Label: "Average", Value: formatScore(card.Average)},
		{Label: "Position", Value: fmt.Sprintf("%s of %d", card.PositionStr, card.ClassSize)},
	}
	if a := card.Attendance; a != nil {
		lines = append(lines, export.SummaryLine{Label: "Attendance", Value: fmt.Sprintf("%d of %d days (%.1f%%)", a.Present+a.Late, a.Total, a.Rate*100)})
	}
	if e := card.Evaluation; e != nil {
		lines = append(lines,
			export.SummaryLine{Label: "Conduct", Value: e.Conduct},
			export.SummaryLine{Label: "Attitude", Value: e.Attitude},
			export.SummaryLine{Label: "Interest", Value: e.Interest},
			export.SummaryLine{Label: "Class teacher", Value: e.ClassTeacherRemark},
			export.SummaryLine{Label: "Head teacher", Value: e.HeadTeacherRemark},
		)
	}
	return lines
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func fileSlug(raw string) string {
	replacer := strings.NewReplacer(" ", "-", "/", "-", "\\", "-", ":", "-", "..", ".")
	slug := strings.ToLower(replacer.Replace(strings.TrimSpace(raw)))
	if slug == "" {
		return "na"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return slug
}
