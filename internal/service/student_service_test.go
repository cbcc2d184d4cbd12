package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	batches  int
	deleteFn func(id string) error
}

func newMockStudentRepo(students ...*models.Student) *mockStudentRepo {
	repo := &mockStudentRepo{students: map[string]*models.Student{}}
	for _, s := range students {
		repo.students[s.ID] = s
	}
	return repo
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	for _, s := range m.students {
		out = append(out, models.StudentDetail{Student: *s})
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.StudentDetail{Student: *s}, nil
}

func (m *mockStudentRepo) ExistsByNumber(ctx context.Context, number string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.StudentNumber == number && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) ListByClass(ctx context.Context, classID string, status models.StudentStatus) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.ClassID != nil && *s.ClassID == classID && (status == "" || s.Status == status) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "stu-" + student.StudentNumber
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) CreateBatch(ctx context.Context, students []*models.Student) error {
	m.batches++
	for _, s := range students {
		if err := m.Create(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(id)
	}
	delete(m.students, id)
	return nil
}

type mockClassLookup struct {
	classes map[string]*models.ClassDetail
}

func (m *mockClassLookup) FindByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

const testClassID = "8a1f0c52-4a0e-4bd4-9a53-2f9e1c6b7d10"

func classLookupWith(ids ...string) *mockClassLookup {
	lookup := &mockClassLookup{classes: map[string]*models.ClassDetail{}}
	for _, id := range ids {
		lookup.classes[id] = &models.ClassDetail{Class: models.Class{ID: id, Name: "JHS 1A", Level: 7}}
	}
	return lookup
}

func TestStudentServiceCreate(t *testing.T) {
	repo := newMockStudentRepo(&models.Student{ID: "s1", StudentNumber: "STU-001"})
	svc := NewStudentService(repo, classLookupWith(testClassID), nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		StudentNumber: " STU-002 ",
		FirstName:     "Ama",
		LastName:      "Mensah",
		Gender:        "F",
		DateOfBirth:   "2012-03-09",
		ClassID:       ptr(testClassID),
	})
	require.NoError(t, err)
	assert.Equal(t, "STU-002", student.StudentNumber)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	require.NotNil(t, student.DateOfBirth)
	assert.Equal(t, 2012, student.DateOfBirth.Year())

	_, err = svc.Create(context.Background(), CreateStudentRequest{StudentNumber: "STU-001", FirstName: "Kofi", LastName: "Boateng", Gender: "M"})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateStudentRequest{StudentNumber: "STU-003", FirstName: "Kofi", LastName: "Boateng", Gender: "X"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, appErrors.FieldError{Field: "gender", Rule: "oneof", Param: "M F"}, appErr.Details[0])

	missingClass := "0d8e3c0a-7f0d-4b59-8ad5-3f3c5e8f4a11"
	_, err = svc.Create(context.Background(), CreateStudentRequest{StudentNumber: "STU-004", FirstName: "Kofi", LastName: "Boateng", Gender: "M", ClassID: &missingClass})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdatePartial(t *testing.T) {
	repo := newMockStudentRepo(
		&models.Student{ID: "s1", StudentNumber: "STU-001", FirstName: "Ama", LastName: "Mensah", Gender: "F", Status: models.StudentStatusActive},
		&models.Student{ID: "s2", StudentNumber: "STU-002"},
	)
	svc := NewStudentService(repo, classLookupWith(testClassID), nil, nil)

	updated, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		LastName: ptr("Owusu"),
		ClassID:  ptr(testClassID),
		Status:   ptr(models.StudentStatusTransferred),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ama", updated.FirstName)
	assert.Equal(t, "Owusu", updated.LastName)
	assert.Equal(t, testClassID, *updated.ClassID)
	assert.Equal(t, models.StudentStatusTransferred, updated.Status)

	_, err = svc.Update(context.Background(), "s1", UpdateStudentRequest{StudentNumber: ptr("STU-002")})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "missing", UpdateStudentRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceDeleteReferenced(t *testing.T) {
	repo := newMockStudentRepo(&models.Student{ID: "s1", StudentNumber: "STU-001"})
	repo.deleteFn = func(id string) error {
		return errors.New(`pq: update or delete on table "students" violates foreign key constraint "grades_student_id_fkey" on table "grades"`)
	}
	svc := NewStudentService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "s1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "record is still referenced by other records", appErr.Message)
}

func TestStudentServiceImport(t *testing.T) {
	headers := []string{"student_number", "first_name", "last_name", "gender", "date_of_birth", "guardian_name", "guardian_phone"}
	workbook, err := export.NewXLSXExporter("Students").Render(export.Dataset{
		Headers: headers,
		Rows: []map[string]string{
			{"student_number": "STU-010", "first_name": "Esi", "last_name": "Addo", "gender": "f", "date_of_birth": "2011-07-01"},
			{"student_number": "STU-001", "first_name": "Yaw", "last_name": "Darko", "gender": "M"},
			{"student_number": "STU-011", "first_name": "", "last_name": "Asare", "gender": "M"},
			{"student_number": "STU-010", "first_name": "Esi", "last_name": "Addo", "gender": "F"},
			{"student_number": "STU-012", "first_name": "Kwame", "last_name": "Nkrumah", "gender": "M", "date_of_birth": "01/02/2011"},
			{"student_number": "STU-013", "first_name": "Akua", "last_name": "Sarpong", "gender": "F", "guardian_phone": "0244000000"},
		},
	})
	require.NoError(t, err)

	repo := newMockStudentRepo(&models.Student{ID: "s1", StudentNumber: "STU-001"})
	svc := NewStudentService(repo, classLookupWith(testClassID), nil, nil)

	result, err := svc.Import(context.Background(), workbook, testClassID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, repo.batches)
	require.Len(t, result.Skipped, 4)
	assert.Equal(t, 3, result.Skipped[0].Row)
	assert.Equal(t, "student number already exists", result.Skipped[0].Reason)
	assert.Equal(t, 4, result.Skipped[1].Row)
	assert.Equal(t, "duplicate student number in file", result.Skipped[2].Reason)
	assert.Equal(t, 6, result.Skipped[3].Row)

	imported := repo.students["stu-STU-010"]
	require.NotNil(t, imported)
	assert.Equal(t, "F", imported.Gender)
	assert.Equal(t, testClassID, *imported.ClassID)

	_, err = svc.Import(context.Background(), []byte("not a workbook"), "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceRoster(t *testing.T) {
	classID := testClassID
	repo := newMockStudentRepo(
		&models.Student{ID: "s1", ClassID: &classID, Status: models.StudentStatusActive},
		&models.Student{ID: "s2", ClassID: &classID, Status: models.StudentStatusInactive},
	)
	svc := NewStudentService(repo, classLookupWith(testClassID), nil, nil)
	roster, err := svc.Roster(context.Background(), classID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "s1", roster[0].ID)

	_, err = svc.Roster(context.Background(), "other")
	assert.Error(t, err)
}
