package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/grading"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	UpsertBatch(ctx context.Context, grades []*models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
}

// assignmentChecker answers whether a teacher is responsible for a class or
// a class subject.
type assignmentChecker interface {
	IsClassTeacher(ctx context.Context, teacherID, classID string) (bool, error)
	IsSubjectTeacher(ctx context.Context, teacherID, classID, subjectID string) (bool, error)
}

type classMembership interface {
	FilterInClass(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error)
}

// UpsertGradeRequest records one student's scores for a subject and term.
type UpsertGradeRequest struct {
	StudentID    string  `json:"student_id" validate:"required"`
	SubjectID    string  `json:"subject_id" validate:"required"`
	ClassID      string  `json:"class_id" validate:"required"`
	AcademicYear string  `json:"academic_year" validate:"required,academic_year"`
	Term         int     `json:"term" validate:"required,min=1,max=3"`
	ClassScore   float64 `json:"class_score" validate:"min=0,max=100"`
	ExamScore    float64 `json:"exam_score" validate:"min=0,max=100"`
}

// BulkGradeItem is one row of a bulk grade upload.
type BulkGradeItem struct {
	StudentID  string  `json:"student_id" validate:"required"`
	ClassScore float64 `json:"class_score"`
	ExamScore  float64 `json:"exam_score"`
}

// BulkGradesRequest uploads a class's scores for one subject and term.
type BulkGradesRequest struct {
	ClassID      string          `json:"class_id" validate:"required"`
	SubjectID    string          `json:"subject_id" validate:"required"`
	AcademicYear string          `json:"academic_year" validate:"required,academic_year"`
	Term         int             `json:"term" validate:"required,min=1,max=3"`
	Mode         string          `json:"mode" validate:"omitempty,oneof=atomic partialOnError"`
	Items        []BulkGradeItem `json:"items" validate:"required,min=1,dive"`
}

// UpdateGradeRequest changes the raw scores of a grade.
type UpdateGradeRequest struct {
	ClassScore *float64 `json:"class_score" validate:"omitempty,min=0,max=100"`
	ExamScore  *float64 `json:"exam_score" validate:"omitempty,min=0,max=100"`
}

// GradeService records term results and derives totals, grades and remarks.
type GradeService struct {
	repo        gradeRepository
	assignments assignmentChecker
	students    classMembership
	calculator  *grading.Calculator
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs GradeService. A nil calculator uses the default weights and scale.
func NewGradeService(repo gradeRepository, assignments assignmentChecker, students classMembership, calculator *grading.Calculator, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	registerAcademicValidators(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	if calculator == nil {
		calculator, _ = grading.NewCalculator(grading.DefaultWeights, nil)
	}
	return &GradeService{
		repo:        repo,
		assignments: assignments,
		students:    students,
		calculator:  calculator,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns grades.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error) {
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Upsert records a single grade, replacing any existing entry for the same
// student, subject and term.
func (s *GradeService) Upsert(ctx context.Context, actor *models.JWTClaims, req UpsertGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid grade payload")
	}
	if err := s.authorize(ctx, actor, req.ClassID, req.SubjectID); err != nil {
		return nil, err
	}
	members, err := s.students.FilterInClass(ctx, req.ClassID, []string{req.StudentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class membership")
	}
	if !members[req.StudentID] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student does not belong to the class")
	}
	grade := &models.Grade{
		StudentID:    req.StudentID,
		SubjectID:    req.SubjectID,
		ClassID:      req.ClassID,
		TeacherID:    actorID(actor),
		AcademicYear: req.AcademicYear,
		Term:         req.Term,
	}
	if err := s.score(grade, req.ClassScore, req.ExamScore); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, grade); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to save grade")
	}
	s.written(ctx, 1)
	return grade, nil
}

// BulkUpsert records a class's grades for one subject and term. In atomic mode
// (the default) any invalid item rejects the whole batch; in partialOnError
// mode valid items are saved and the rest reported.
func (s *GradeService) BulkUpsert(ctx context.Context, actor *models.JWTClaims, req BulkGradesRequest) (*models.BulkGradeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid bulk payload")
	}
	if err := s.authorize(ctx, actor, req.ClassID, req.SubjectID); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.StudentID)
	}
	members, err := s.students.FilterInClass(ctx, req.ClassID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class membership")
	}

	atomic := models.BulkOperationMode(req.Mode) != models.BulkModePartialOnError
	result := &models.BulkGradeResult{Failed: []models.BulkItemError{}, Grades: []models.Grade{}}
	seen := make(map[string]bool, len(req.Items))
	grades := make([]*models.Grade, 0, len(req.Items))
	for i, item := range req.Items {
		var reason string
		grade := &models.Grade{
			StudentID:    item.StudentID,
			SubjectID:    req.SubjectID,
			ClassID:      req.ClassID,
			TeacherID:    actorID(actor),
			AcademicYear: req.AcademicYear,
			Term:         req.Term,
		}
		switch {
		case !members[item.StudentID]:
			reason = "student does not belong to the class"
		case seen[item.StudentID]:
			reason = "student appears more than once"
		default:
			if err := s.score(grade, item.ClassScore, item.ExamScore); err != nil {
				reason = appErrors.FromError(err).Message
			}
		}
		if reason != "" {
			if atomic {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item %d (%s): %s", i, item.StudentID, reason))
			}
			result.Failed = append(result.Failed, models.BulkItemError{Index: i, StudentID: item.StudentID, Message: reason})
			continue
		}
		seen[item.StudentID] = true
		grades = append(grades, grade)
	}

	if len(grades) > 0 {
		if err := s.repo.UpsertBatch(ctx, grades); err != nil {
			return nil, appErrors.FromDatabase(err, "failed to save grades")
		}
	}
	for _, g := range grades {
		result.Grades = append(result.Grades, *g)
	}
	result.Saved = len(grades)
	s.written(ctx, result.Saved)
	s.logger.Info("bulk grades saved",
		zap.String("class_id", req.ClassID),
		zap.String("subject_id", req.SubjectID),
		zap.Int("saved", result.Saved),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// Update changes scores and recomputes the total, grade and remark.
func (s *GradeService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid grade payload")
	}
	grade, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, grade.ClassID, grade.SubjectID); err != nil {
		return nil, err
	}
	classScore, examScore := grade.ClassScore, grade.ExamScore
	if req.ClassScore != nil {
		classScore = *req.ClassScore
	}
	if req.ExamScore != nil {
		examScore = *req.ExamScore
	}
	if err := s.score(grade, classScore, examScore); err != nil {
		return nil, err
	}
	grade.TeacherID = actorID(actor)
	if err := s.repo.Update(ctx, grade); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to update grade")
	}
	s.written(ctx, 1)
	return grade, nil
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	grade, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, grade.ClassID, grade.SubjectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete grade")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

func (s *GradeService) load(ctx context.Context, id string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

func (s *GradeService) score(grade *models.Grade, classScore, examScore float64) error {
	res, err := s.calculator.Compute(classScore, examScore)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	grade.ClassScore = classScore
	grade.ExamScore = examScore
	grade.TotalScore = res.Total
	grade.Grade = res.Grade
	grade.Remark = res.Remark
	return nil
}

// authorize lets admins through and limits teachers to their class subjects.
func (s *GradeService) authorize(ctx context.Context, actor *models.JWTClaims, classID, subjectID string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role.IsAdmin() {
		return nil
	}
	ok, err := s.assignments.IsSubjectTeacher(ctx, actor.UserID, classID, subjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teaching assignment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to teach this subject in the class")
	}
	return nil
}

func (s *GradeService) written(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	s.metrics.AddGradesWritten(n)
	s.cache.InvalidateDashboards(ctx)
}

func actorID(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}
