package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	CountStudents(ctx context.Context, classID string) (int, error)
	ListSubjects(ctx context.Context, classID string) ([]models.ClassSubjectDetail, error)
	AssignSubject(ctx context.Context, assignment *models.ClassSubject) error
	RemoveSubject(ctx context.Context, classID, subjectID string) (bool, error)
}

type subjectLookup interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name           string  `json:"name" validate:"required"`
	Level          int     `json:"level" validate:"required,min=1,max=20"`
	Section        string  `json:"section"`
	AcademicYear   string  `json:"academic_year" validate:"required,academic_year"`
	ClassTeacherID *string `json:"class_teacher_id" validate:"omitempty,uuid"`
	Capacity       int     `json:"capacity" validate:"omitempty,min=1"`
}

// UpdateClassRequest is a partial class update.
type UpdateClassRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	Level          *int    `json:"level" validate:"omitempty,min=1,max=20"`
	Section        *string `json:"section"`
	AcademicYear   *string `json:"academic_year" validate:"omitempty,academic_year"`
	ClassTeacherID *string `json:"class_teacher_id"`
	Capacity       *int    `json:"capacity" validate:"omitempty,min=1"`
}

// AssignSubjectRequest maps a subject, and optionally its teacher, onto a class.
type AssignSubjectRequest struct {
	SubjectID string  `json:"subject_id" validate:"required,uuid"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
}

// ClassService orchestrates class operations.
type ClassService struct {
	repo      classRepository
	subjects  subjectLookup
	users     teacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, subjects subjectLookup, users teacherLookup, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	registerAcademicValidators(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, subjects: subjects, users: users, validator: validate, logger: logger}
}

// List returns classes. Teachers only see classes they lead or teach in.
func (s *ClassService) List(ctx context.Context, actor *models.JWTClaims, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	if actor != nil && actor.Role == models.RoleTeacher {
		filter.TeacherID = actor.UserID
	}
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns class detail.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, classLoadError(err)
	}
	return class, nil
}

// Create adds a class.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid class payload")
	}
	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}
	if req.ClassTeacherID != nil {
		if err := s.ensureTeacher(ctx, *req.ClassTeacherID); err != nil {
			return nil, err
		}
	}
	class := &models.Class{
		Name:           name,
		Level:          req.Level,
		Section:        strings.TrimSpace(req.Section),
		AcademicYear:   req.AcademicYear,
		ClassTeacherID: req.ClassTeacherID,
		Capacity:       req.Capacity,
	}
	if class.Capacity == 0 {
		class.Capacity = 40
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to create class")
	}
	return class, nil
}

// Update modifies a class.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid class payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	class := detail.Class
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := s.ensureUniqueName(ctx, name, id); err != nil {
			return nil, err
		}
		class.Name = name
	}
	if req.ClassTeacherID != nil {
		if *req.ClassTeacherID == "" {
			class.ClassTeacherID = nil
		} else {
			if err := s.ensureTeacher(ctx, *req.ClassTeacherID); err != nil {
				return nil, err
			}
			class.ClassTeacherID = req.ClassTeacherID
		}
	}
	if req.Level != nil {
		class.Level = *req.Level
	}
	if req.AcademicYear != nil {
		class.AcademicYear = *req.AcademicYear
	}
	if req.Capacity != nil {
		class.Capacity = *req.Capacity
	}
	assignString(&class.Section, req.Section)
	if err := s.repo.Update(ctx, &class); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to update class")
	}
	return &class, nil
}

// Delete removes a class that no longer has students assigned.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountStudents(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count class students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class still has students assigned")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete class")
	}
	return nil
}

// Subjects lists the subjects taught in a class.
func (s *ClassService) Subjects(ctx context.Context, classID string) ([]models.ClassSubjectDetail, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	subjects, err := s.repo.ListSubjects(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class subjects")
	}
	return subjects, nil
}

// AssignSubject adds or replaces a subject assignment for the class.
func (s *ClassService) AssignSubject(ctx context.Context, classID string, req AssignSubjectRequest) (*models.ClassSubject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid subject assignment")
	}
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if req.TeacherID != nil {
		if err := s.ensureTeacher(ctx, *req.TeacherID); err != nil {
			return nil, err
		}
	}
	assignment := &models.ClassSubject{ClassID: classID, SubjectID: req.SubjectID, TeacherID: req.TeacherID}
	if err := s.repo.AssignSubject(ctx, assignment); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to assign subject")
	}
	return assignment, nil
}

// RemoveSubject unassigns a subject from the class.
func (s *ClassService) RemoveSubject(ctx context.Context, classID, subjectID string) error {
	removed, err := s.repo.RemoveSubject(ctx, classID, subjectID)
	if err != nil {
		return appErrors.FromDatabase(err, "failed to remove class subject")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "subject is not assigned to the class")
	}
	return nil
}

func (s *ClassService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "class name already used")
	}
	return nil
}

func (s *ClassService) ensureTeacher(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "teacher does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher || !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, "assigned user must be an active teacher")
	}
	return nil
}

func classLoadError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
}
