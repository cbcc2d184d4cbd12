package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
)

type mockBECERepo struct {
	results  map[string]*models.BECEResult
	details  []models.BECEResultDetail
	upserted []*models.BECEResult
}

func (m *mockBECERepo) List(ctx context.Context, filter models.BECEFilter) ([]models.BECEResultDetail, int, error) {
	return m.details, len(m.details), nil
}

func (m *mockBECERepo) FindByID(ctx context.Context, id string) (*models.BECEResult, error) {
	r, ok := m.results[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *r
	return &copy, nil
}

func (m *mockBECERepo) ListForStudent(ctx context.Context, studentID string, examYear int) ([]models.BECEResultDetail, error) {
	var out []models.BECEResultDetail
	for _, d := range m.details {
		if d.StudentID == studentID && d.ExamYear == examYear {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockBECERepo) Create(ctx context.Context, result *models.BECEResult) error {
	result.ID = "b-new"
	m.results[result.ID] = result
	return nil
}

func (m *mockBECERepo) UpsertBatch(ctx context.Context, results []*models.BECEResult) error {
	m.upserted = append(m.upserted, results...)
	return nil
}

func (m *mockBECERepo) Update(ctx context.Context, result *models.BECEResult) error {
	m.results[result.ID] = result
	return nil
}

func (m *mockBECERepo) Delete(ctx context.Context, id string) error {
	delete(m.results, id)
	return nil
}

type mockStudentNumbers map[string]*models.Student

func (m mockStudentNumbers) FindByNumber(ctx context.Context, number string) (*models.Student, error) {
	s, ok := m[number]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func beceDetail(subject string, core bool, grade int) models.BECEResultDetail {
	return models.BECEResultDetail{
		BECEResult: models.BECEResult{StudentID: "s1", IndexNumber: "0123456789", ExamYear: 2024, SubjectID: subject, Grade: grade},
		IsCore:     core,
	}
}

func TestBECEServiceAggregate(t *testing.T) {
	repo := &mockBECERepo{results: map[string]*models.BECEResult{}, details: []models.BECEResultDetail{
		beceDetail("eng", true, 2),
		beceDetail("math", true, 1),
		beceDetail("sci", true, 3),
		beceDetail("soc", true, 2),
		beceDetail("ict", false, 4),
		beceDetail("french", false, 1),
		beceDetail("rme", false, 7),
	}}
	svc := NewBECEService(repo, mockStudentNumbers{}, newMockSubjectRepo(), nil, nil)

	report, err := svc.Aggregate(context.Background(), "s1", 2024)
	require.NoError(t, err)
	assert.Equal(t, 13, report.Aggregate)
	assert.True(t, report.Complete)
	assert.Equal(t, "0123456789", report.IndexNumber)
	assert.Len(t, report.Subjects, 7)

	_, err = svc.Aggregate(context.Background(), "s1", 2023)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	_, err = svc.Aggregate(context.Background(), "s1", 0)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBECEServiceCreateAndUpdate(t *testing.T) {
	repo := &mockBECERepo{results: map[string]*models.BECEResult{}}
	svc := NewBECEService(repo, mockStudentNumbers{}, newMockSubjectRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateBECEResultRequest{StudentID: "s1", IndexNumber: "0123", ExamYear: 2024, SubjectID: "eng", Grade: 10})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	created, err := svc.Create(ctx, CreateBECEResultRequest{StudentID: "s1", IndexNumber: " 0123 ", ExamYear: 2024, SubjectID: "eng", Grade: 3})
	require.NoError(t, err)
	assert.Equal(t, "0123", created.IndexNumber)

	updated, err := svc.Update(ctx, created.ID, UpdateBECEResultRequest{Grade: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Grade)

	_, err = svc.Update(ctx, created.ID, UpdateBECEResultRequest{Grade: ptr(0)})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(svc.Delete(ctx, created.ID)).Code)
}

func TestBECEServiceImport(t *testing.T) {
	workbook, err := export.NewXLSXExporter("BECE").Render(export.Dataset{
		Headers: []string{"student_number", "index_number", "subject_code", "grade"},
		Rows: []map[string]string{
			{"student_number": "STU-001", "index_number": "0101", "subject_code": "eng", "grade": "2"},
			{"student_number": "STU-001", "index_number": "0101", "subject_code": "MATH", "grade": "1"},
			{"student_number": "STU-404", "index_number": "0102", "subject_code": "ENG", "grade": "3"},
			{"student_number": "STU-001", "index_number": "0101", "subject_code": "LATIN", "grade": "3"},
			{"student_number": "STU-001", "index_number": "0101", "subject_code": "ENG", "grade": "A1"},
			{"student_number": "", "index_number": "0101", "subject_code": "ENG", "grade": "4"},
		},
	})
	require.NoError(t, err)

	repo := &mockBECERepo{results: map[string]*models.BECEResult{}}
	students := mockStudentNumbers{"STU-001": {ID: "s1", StudentNumber: "STU-001"}}
	subjects := newMockSubjectRepo(models.Subject{ID: "eng", Code: "ENG", IsCore: true}, models.Subject{ID: "math", Code: "MATH", IsCore: true})
	svc := NewBECEService(repo, students, subjects, nil, nil)

	result, err := svc.Import(context.Background(), workbook, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, repo.upserted, 2)
	assert.Equal(t, "eng", repo.upserted[0].SubjectID)
	assert.Equal(t, 2024, repo.upserted[0].ExamYear)

	require.Len(t, result.Skipped, 4)
	assert.Equal(t, models.ImportSkip{Row: 4, Reason: "unknown student STU-404"}, result.Skipped[0])
	assert.Equal(t, models.ImportSkip{Row: 5, Reason: "unknown subject LATIN"}, result.Skipped[1])
	assert.Equal(t, 6, result.Skipped[2].Row)
	assert.Equal(t, 7, result.Skipped[3].Row)

	_, err = svc.Import(context.Background(), workbook, 0)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
