package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
)

const dateLayout = "2006-01-02"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByNumber(ctx context.Context, number string, excludeID string) (bool, error)
	ListByClass(ctx context.Context, classID string, status models.StudentStatus) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	CreateBatch(ctx context.Context, students []*models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	StudentNumber string  `json:"student_number" validate:"required,max=32"`
	FirstName     string  `json:"first_name" validate:"required"`
	LastName      string  `json:"last_name" validate:"required"`
	OtherNames    string  `json:"other_names"`
	Gender        string  `json:"gender" validate:"required,oneof=M F"`
	DateOfBirth   string  `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	ClassID       *string `json:"class_id" validate:"omitempty,uuid"`
	GuardianName  string  `json:"guardian_name"`
	GuardianPhone string  `json:"guardian_phone"`
	Address       string  `json:"address"`
}

// UpdateStudentRequest holds a partial student update. Nil fields are left
// unchanged; an empty class_id removes the student from their class.
type UpdateStudentRequest struct {
	StudentNumber *string               `json:"student_number" validate:"omitempty,max=32"`
	FirstName     *string               `json:"first_name" validate:"omitempty,min=1"`
	LastName      *string               `json:"last_name" validate:"omitempty,min=1"`
	OtherNames    *string               `json:"other_names"`
	Gender        *string               `json:"gender" validate:"omitempty,oneof=M F"`
	DateOfBirth   *string               `json:"date_of_birth"`
	ClassID       *string               `json:"class_id"`
	GuardianName  *string               `json:"guardian_name"`
	GuardianPhone *string               `json:"guardian_phone"`
	Address       *string               `json:"address"`
	Status        *models.StudentStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE GRADUATED TRANSFERRED"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	classes   classLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, classes classLookup, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Roster lists the active students of a class.
func (s *StudentService) Roster(ctx context.Context, classID string) ([]models.Student, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	students, err := s.repo.ListByClass(ctx, classID, models.StudentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	return students, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid student payload")
	}
	number := strings.TrimSpace(req.StudentNumber)
	exists, err := s.repo.ExistsByNumber(ctx, number, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
	}
	if req.ClassID != nil {
		if err := s.ensureClass(ctx, *req.ClassID); err != nil {
			return nil, err
		}
	}
	dob, err := parseOptionalDate(req.DateOfBirth)
	if err != nil {
		return nil, err
	}
	student := &models.Student{
		StudentNumber: number,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		OtherNames:    strings.TrimSpace(req.OtherNames),
		Gender:        req.Gender,
		DateOfBirth:   dob,
		ClassID:       req.ClassID,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Address:       req.Address,
		Status:        models.StudentStatusActive,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to create student")
	}
	return student, nil
}

// Update applies a partial update to a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid student payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student := detail.Student
	if req.StudentNumber != nil {
		number := strings.TrimSpace(*req.StudentNumber)
		exists, err := s.repo.ExistsByNumber(ctx, number, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
		}
		student.StudentNumber = number
	}
	if req.ClassID != nil {
		if *req.ClassID == "" {
			student.ClassID = nil
		} else {
			if err := s.ensureClass(ctx, *req.ClassID); err != nil {
				return nil, err
			}
			student.ClassID = req.ClassID
		}
	}
	if req.DateOfBirth != nil {
		dob, err := parseOptionalDate(*req.DateOfBirth)
		if err != nil {
			return nil, err
		}
		student.DateOfBirth = dob
	}
	assignString(&student.FirstName, req.FirstName)
	assignString(&student.LastName, req.LastName)
	assignString(&student.OtherNames, req.OtherNames)
	assignString(&student.Gender, req.Gender)
	assignString(&student.GuardianName, req.GuardianName)
	assignString(&student.GuardianPhone, req.GuardianPhone)
	assignString(&student.Address, req.Address)
	if req.Status != nil {
		student.Status = *req.Status
	}
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to update student")
	}
	return &student, nil
}

// Delete removes a student. Students with grades or attendance cannot be removed.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete student")
	}
	return nil
}

// Import reads students from the first sheet of an xlsx workbook. Columns are
// student_number, first_name, last_name, gender, date_of_birth, guardian_name
// and guardian_phone. Invalid rows are skipped and reported; valid rows are
// created together.
func (s *StudentService) Import(ctx context.Context, data []byte, classID string) (*models.ImportResult, error) {
	_, rows, err := export.ReadFirstSheet(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid spreadsheet")
	}
	var class *string
	if classID != "" {
		if err := s.ensureClass(ctx, classID); err != nil {
			return nil, err
		}
		class = &classID
	}

	result := &models.ImportResult{Skipped: []models.ImportSkip{}}
	seen := make(map[string]bool, len(rows))
	students := make([]*models.Student, 0, len(rows))
	for i, row := range rows {
		rowNumber := i + 2
		if isBlankRow(row) {
			continue
		}
		req := CreateStudentRequest{
			StudentNumber: strings.TrimSpace(cell(row, 0)),
			FirstName:     strings.TrimSpace(cell(row, 1)),
			LastName:      strings.TrimSpace(cell(row, 2)),
			Gender:        strings.ToUpper(strings.TrimSpace(cell(row, 3))),
			DateOfBirth:   strings.TrimSpace(cell(row, 4)),
			GuardianName:  strings.TrimSpace(cell(row, 5)),
			GuardianPhone: strings.TrimSpace(cell(row, 6)),
		}
		if err := s.validator.Struct(req); err != nil {
			result.Skipped = append(result.Skipped, models.ImportSkip{Row: rowNumber, Reason: describeValidation(err)})
			continue
		}
		if seen[req.StudentNumber] {
			result.Skipped = append(result.Skipped, models.ImportSkip{Row: rowNumber, Reason: "duplicate student number in file"})
			continue
		}
		exists, err := s.repo.ExistsByNumber(ctx, req.StudentNumber, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student number")
		}
		if exists {
			result.Skipped = append(result.Skipped, models.ImportSkip{Row: rowNumber, Reason: "student number already exists"})
			continue
		}
		dob, _ := parseOptionalDate(req.DateOfBirth)
		seen[req.StudentNumber] = true
		students = append(students, &models.Student{
			StudentNumber: req.StudentNumber,
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Gender:        req.Gender,
			DateOfBirth:   dob,
			ClassID:       class,
			GuardianName:  req.GuardianName,
			GuardianPhone: req.GuardianPhone,
			Status:        models.StudentStatusActive,
		})
	}
	if len(students) > 0 {
		if err := s.repo.CreateBatch(ctx, students); err != nil {
			return nil, appErrors.FromDatabase(err, "failed to import students")
		}
	}
	result.Imported = len(students)
	s.logger.Info("students imported", zap.Int("imported", result.Imported), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *StudentService) ensureClass(ctx context.Context, classID string) error {
	if s.classes == nil {
		return nil
	}
	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return nil
}

func parseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(value))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
	}
	return &t, nil
}

func assignString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
