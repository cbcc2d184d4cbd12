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

type evaluationRepository interface {
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, int, error)
	FindByID(ctx context.Context, id string) (*models.Evaluation, error)
	FindForTerm(ctx context.Context, studentID, academicYear string, term int) (*models.Evaluation, error)
	Upsert(ctx context.Context, evaluation *models.Evaluation) error
	Update(ctx context.Context, evaluation *models.Evaluation) error
	Delete(ctx context.Context, id string) error
}

// UpsertEvaluationRequest records a student's termly conduct assessment.
type UpsertEvaluationRequest struct {
	StudentID          string `json:"student_id" validate:"required"`
	ClassID            string `json:"class_id" validate:"required"`
	AcademicYear       string `json:"academic_year" validate:"required,academic_year"`
	Term               int    `json:"term" validate:"required,min=1,max=3"`
	Conduct            string `json:"conduct" validate:"required,conduct"`
	Attitude           string `json:"attitude" validate:"max=120"`
	Interest           string `json:"interest" validate:"max=120"`
	ClassTeacherRemark string `json:"class_teacher_remark" validate:"max=500"`
	HeadTeacherRemark  string `json:"head_teacher_remark" validate:"max=500"`
}

// UpdateEvaluationRequest is a partial evaluation update.
type UpdateEvaluationRequest struct {
	Conduct            *string `json:"conduct" validate:"omitempty,conduct"`
	Attitude           *string `json:"attitude" validate:"omitempty,max=120"`
	Interest           *string `json:"interest" validate:"omitempty,max=120"`
	ClassTeacherRemark *string `json:"class_teacher_remark" validate:"omitempty,max=500"`
	HeadTeacherRemark  *string `json:"head_teacher_remark" validate:"omitempty,max=500"`
}

// EvaluationService manages termly conduct evaluations.
type EvaluationService struct {
	repo        evaluationRepository
	assignments assignmentChecker
	students    classMembership
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEvaluationService constructs EvaluationService.
func NewEvaluationService(repo evaluationRepository, assignments assignmentChecker, students classMembership, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	registerAcademicValidators(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{repo: repo, assignments: assignments, students: students, validator: validate, logger: logger}
}

// List returns evaluations.
func (s *EvaluationService) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evaluations")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one evaluation.
func (s *EvaluationService) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	evaluation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evaluation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
	}
	return evaluation, nil
}

// Upsert creates or replaces the evaluation for a student and term. Only
// admins may write the head teacher remark; a teacher's upsert keeps the
// remark already on record.
func (s *EvaluationService) Upsert(ctx context.Context, actor *models.JWTClaims, req UpsertEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid evaluation payload")
	}
	if err := s.authorize(ctx, actor, req.ClassID); err != nil {
		return nil, err
	}
	isAdmin := actor.Role.IsAdmin()
	if !isAdmin && strings.TrimSpace(req.HeadTeacherRemark) != "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may set the head teacher remark")
	}
	members, err := s.students.FilterInClass(ctx, req.ClassID, []string{req.StudentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class membership")
	}
	if !members[req.StudentID] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student does not belong to the class")
	}

	evaluation := &models.Evaluation{
		StudentID:          req.StudentID,
		ClassID:            req.ClassID,
		AcademicYear:       req.AcademicYear,
		Term:               req.Term,
		Conduct:            req.Conduct,
		Attitude:           strings.TrimSpace(req.Attitude),
		Interest:           strings.TrimSpace(req.Interest),
		ClassTeacherRemark: strings.TrimSpace(req.ClassTeacherRemark),
		HeadTeacherRemark:  strings.TrimSpace(req.HeadTeacherRemark),
		EvaluatedBy:        actorID(actor),
	}
	if !isAdmin {
		existing, err := s.repo.FindForTerm(ctx, req.StudentID, req.AcademicYear, req.Term)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evaluation")
		}
		if existing != nil {
			evaluation.HeadTeacherRemark = existing.HeadTeacherRemark
		}
	}
	if err := s.repo.Upsert(ctx, evaluation); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to save evaluation")
	}
	return evaluation, nil
}

// Update applies a partial update.
func (s *EvaluationService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateEvaluationRequest) (*models.Evaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid evaluation payload")
	}
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, evaluation.ClassID); err != nil {
		return nil, err
	}
	if req.HeadTeacherRemark != nil && !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may set the head teacher remark")
	}
	if req.Conduct != nil {
		evaluation.Conduct = *req.Conduct
	}
	assignString(&evaluation.Attitude, req.Attitude)
	assignString(&evaluation.Interest, req.Interest)
	assignString(&evaluation.ClassTeacherRemark, req.ClassTeacherRemark)
	assignString(&evaluation.HeadTeacherRemark, req.HeadTeacherRemark)
	evaluation.EvaluatedBy = actorID(actor)
	if err := s.repo.Update(ctx, evaluation); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to update evaluation")
	}
	return evaluation, nil
}

// Delete removes an evaluation.
func (s *EvaluationService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	evaluation, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, evaluation.ClassID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete evaluation")
	}
	return nil
}

func (s *EvaluationService) authorize(ctx context.Context, actor *models.JWTClaims, classID string) error {
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
