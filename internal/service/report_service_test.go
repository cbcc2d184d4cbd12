package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
)

type stubTermGrades []models.GradeDetail

func (s stubTermGrades) ListForClassTerm(ctx context.Context, classID, academicYear string, term int) ([]models.GradeDetail, error) {
	var out []models.GradeDetail
	for _, g := range s {
		if g.ClassID == classID && g.AcademicYear == academicYear && g.Term == term {
			out = append(out, g)
		}
	}
	return out, nil
}

type stubSummarizer struct {
	summary models.AttendanceSummary
	filter  models.AttendanceFilter
}

func (s *stubSummarizer) Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error) {
	s.filter = filter
	out := s.summary
	return &out, nil
}

func termGrade(studentID, name, subjectID, code string, total float64) models.GradeDetail {
	return models.GradeDetail{
		Grade: models.Grade{
			StudentID:    studentID,
			SubjectID:    subjectID,
			ClassID:      testClassID,
			AcademicYear: "2024/2025",
			Term:         1,
			ClassScore:   total,
			ExamScore:    total,
			TotalScore:   total,
			Grade:        "2",
			Remark:       "Higher",
		},
		StudentNumber: "N-" + studentID,
		StudentName:   name,
		SubjectCode:   code,
		SubjectName:   code + " name",
	}
}

func newTestReportService(assignments assignmentChecker) (*ReportService, *stubSummarizer) {
	grades := stubTermGrades{
		termGrade("s1", "Ama Mensah", "math", "MATH", 80),
		termGrade("s2", "Kofi Boateng", "math", "MATH", 90),
		termGrade("s3", "Yaw Asare", "math", "MATH", 80),
		termGrade("s1", "Ama Mensah", "eng", "ENG", 70),
		termGrade("s2", "Kofi Boateng", "eng", "ENG", 60),
		termGrade("s3", "Yaw Asare", "eng", "ENG", 50),
	}
	students := newMockStudentRepo(
		&models.Student{ID: "s1", StudentNumber: "N-s1", FirstName: "Ama", LastName: "Mensah", ClassID: ptr(testClassID)},
		&models.Student{ID: "s4", StudentNumber: "N-s4", FirstName: "Esi", LastName: "Owusu"},
	)
	evaluations := &mockEvaluationRepo{items: map[string]*models.Evaluation{
		termKey("s1", "2024/2025", 1): {StudentID: "s1", Conduct: "Very Good", ClassTeacherRemark: "Hardworking"},
	}}
	attendance := &stubSummarizer{summary: models.AttendanceSummary{Present: 8, Late: 1, Absent: 1, Total: 10}}
	svc := NewReportService(grades, students, classLookupWith(testClassID), attendance, evaluations, assignments, nil, nil)
	return svc, attendance
}

func TestReportServiceReportCard(t *testing.T) {
	svc, attendance := newTestReportService(mockAssignments{})
	card, err := svc.ReportCard(context.Background(), adminClaims(), "s1", ReportQuery{AcademicYear: "2024/2025", Term: 1})
	require.NoError(t, err)

	assert.Equal(t, "Ama Mensah", card.StudentName)
	assert.Equal(t, "JHS 1A", card.ClassName)
	require.Len(t, card.Subjects, 2)
	positions := map[string]string{}
	for _, subj := range card.Subjects {
		positions[subj.SubjectCode] = subj.PositionStr
		assert.Equal(t, "2", subj.Grade)
		assert.Equal(t, "Higher", subj.Remark)
	}
	assert.Equal(t, "2nd", positions["MATH"])
	assert.Equal(t, "1st", positions["ENG"])
	assert.Equal(t, 75.0, card.Average)
	assert.Equal(t, 1, card.Position)
	assert.Equal(t, 3, card.ClassSize)

	require.NotNil(t, card.Attendance)
	assert.InDelta(t, 0.9, card.Attendance.Rate, 1e-9)
	require.NotNil(t, attendance.filter.From)
	assert.Equal(t, time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC), *attendance.filter.From)
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), *attendance.filter.To)

	require.NotNil(t, card.Evaluation)
	assert.Equal(t, "Hardworking", card.Evaluation.ClassTeacherRemark)
}

func TestReportServiceReportCardErrors(t *testing.T) {
	svc, _ := newTestReportService(mockAssignments{})
	ctx := context.Background()
	query := ReportQuery{AcademicYear: "2024/2025", Term: 1}

	_, err := svc.ReportCard(ctx, adminClaims(), "s1", ReportQuery{AcademicYear: "2024-2025", Term: 1})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.ReportCard(ctx, adminClaims(), "missing", query)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.ReportCard(ctx, adminClaims(), "s4", query)
	assert.Equal(t, appErrors.ErrUnprocessable.Code, appErrors.FromError(err).Code)

	_, err = svc.ReportCard(ctx, teacherClaims("t1"), "s1", query)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ReportCard(ctx, adminClaims(), "s1", ReportQuery{AcademicYear: "2024/2025", Term: 2})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceBroadsheet(t *testing.T) {
	svc, _ := newTestReportService(mockAssignments{"t1": {testClassID: nil}})
	sheet, err := svc.Broadsheet(context.Background(), teacherClaims("t1"), testClassID, ReportQuery{AcademicYear: "2024/2025", Term: 1})
	require.NoError(t, err)

	require.Len(t, sheet.Subjects, 2)
	assert.Equal(t, "MATH", sheet.Subjects[0].Code)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "s1", sheet.Rows[0].StudentID)
	assert.Equal(t, "s2", sheet.Rows[1].StudentID)
	assert.Equal(t, 1, sheet.Rows[1].Position)
	assert.Equal(t, "s3", sheet.Rows[2].StudentID)
	assert.Equal(t, "3rd", sheet.Rows[2].PositionStr)
	assert.Equal(t, 50.0, sheet.Rows[2].Totals["eng"])
}

func TestReportServiceRenderBroadsheet(t *testing.T) {
	svc, _ := newTestReportService(mockAssignments{})
	sheet, err := svc.Broadsheet(context.Background(), adminClaims(), testClassID, ReportQuery{AcademicYear: "2024/2025", Term: 1})
	require.NoError(t, err)

	csvOut, err := svc.RenderBroadsheet(sheet, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "broadsheet_jhs-1a_2024-2025_term1.csv", csvOut.Filename)
	assert.Contains(t, string(csvOut.Data), "Student Number,Student Name,MATH,ENG,Average,Position")

	xlsxOut, err := svc.RenderBroadsheet(sheet, models.ReportFormatXLSX)
	require.NoError(t, err)
	headers, rows, err := export.ReadFirstSheet(xlsxOut.Data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Student Number", "Student Name", "MATH", "ENG", "Average", "Position"}, headers)
	assert.Len(t, rows, 3)

	pdfOut, err := svc.RenderBroadsheet(sheet, models.ReportFormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfOut.Data, []byte("%PDF")))
}

func TestReportServiceRenderReportCard(t *testing.T) {
	svc, _ := newTestReportService(mockAssignments{})
	card, err := svc.ReportCard(context.Background(), adminClaims(), "s1", ReportQuery{AcademicYear: "2024/2025", Term: 1})
	require.NoError(t, err)

	pdfOut, err := svc.RenderReportCard(card, models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfOut.ContentType)
	assert.True(t, bytes.HasPrefix(pdfOut.Data, []byte("%PDF")))

	csvOut, err := svc.RenderReportCard(card, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Contains(t, string(csvOut.Data), "Overall")

	_, err = svc.RenderReportCard(card, models.ReportFormatXLSX)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
