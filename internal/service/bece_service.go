package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
	"github.com/noah-isme/school-mgmt-api/pkg/grading"
)

type beceRepository interface {
	List(ctx context.Context, filter models.BECEFilter) ([]models.BECEResultDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.BECEResult, error)
	ListForStudent(ctx context.Context, studentID string, examYear int) ([]models.BECEResultDetail, error)
	Create(ctx context.Context, result *models.BECEResult) error
	UpsertBatch(ctx context.Context, results []*models.BECEResult) error
	Update(ctx context.Context, result *models.BECEResult) error
	Delete(ctx context.Context, id string) error
}

type studentNumberLookup interface {
	FindByNumber(ctx context.Context, number string) (*models.Student, error)
}

type subjectCodeLookup interface {
	FindByCode(ctx context.Context, code string) (*models.Subject, error)
}

// CreateBECEResultRequest records one subject grade for a candidate.
type CreateBECEResultRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	IndexNumber string `json:"index_number" validate:"required,max=32"`
	ExamYear    int    `json:"exam_year" validate:"required,min=2000,max=2100"`
	SubjectID   string `json:"subject_id" validate:"required"`
	Grade       int    `json:"grade" validate:"required,min=1,max=9"`
}

// UpdateBECEResultRequest changes a recorded grade or index number.
type UpdateBECEResultRequest struct {
	IndexNumber *string `json:"index_number" validate:"omitempty,max=32"`
	Grade       *int    `json:"grade" validate:"omitempty,min=1,max=9"`
}

// BECEService manages Basic Education Certificate Examination results.
type BECEService struct {
	repo      beceRepository
	students  studentNumberLookup
	subjects  subjectCodeLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBECEService constructs BECEService.
func NewBECEService(repo beceRepository, students studentNumberLookup, subjects subjectCodeLookup, validate *validator.Validate, logger *zap.Logger) *BECEService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BECEService{repo: repo, students: students, subjects: subjects, validator: validate, logger: logger}
}

// List returns BECE results.
func (s *BECEService) List(ctx context.Context, filter models.BECEFilter) ([]models.BECEResultDetail, *models.Pagination, error) {
	results, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list BECE results")
	}
	return results, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Create records a result.
func (s *BECEService) Create(ctx context.Context, req CreateBECEResultRequest) (*models.BECEResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid BECE result payload")
	}
	result := &models.BECEResult{
		StudentID:   req.StudentID,
		IndexNumber: strings.TrimSpace(req.IndexNumber),
		ExamYear:    req.ExamYear,
		SubjectID:   req.SubjectID,
		Grade:       req.Grade,
	}
	if err := s.repo.Create(ctx, result); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to create BECE result")
	}
	return result, nil
}

// Update changes a result.
func (s *BECEService) Update(ctx context.Context, id string, req UpdateBECEResultRequest) (*models.BECEResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid BECE result payload")
	}
	result, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	assignString(&result.IndexNumber, req.IndexNumber)
	if req.Grade != nil {
		result.Grade = *req.Grade
	}
	if err := s.repo.Update(ctx, result); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to update BECE result")
	}
	return result, nil
}

// Delete removes a result.
func (s *BECEService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete BECE result")
	}
	return nil
}

// Aggregate computes a candidate's aggregate for an exam year from the best
// four core and best two elective grades.
func (s *BECEService) Aggregate(ctx context.Context, studentID string, examYear int) (*models.BECEAggregateReport, error) {
	if examYear <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "examYear is required")
	}
	results, err := s.repo.ListForStudent(ctx, studentID, examYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BECE results")
	}
	if len(results) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no BECE results recorded for the student and year")
	}
	grades := make([]grading.BECESubjectGrade, 0, len(results))
	for _, r := range results {
		grades = append(grades, grading.BECESubjectGrade{SubjectID: r.SubjectID, Core: r.IsCore, Grade: r.Grade})
	}
	agg, err := grading.ComputeBECEAggregate(grades)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored BECE grade is invalid")
	}
	return &models.BECEAggregateReport{
		StudentID:   studentID,
		ExamYear:    examYear,
		IndexNumber: results[0].IndexNumber,
		Subjects:    results,
		Aggregate:   agg.Aggregate,
		Complete:    agg.Complete,
		Missing:     agg.Missing,
	}, nil
}

// Import reads student_number, index_number, subject_code and grade columns
// from the first sheet of a workbook. Rows naming unknown students or
// subjects, or carrying invalid grades, are skipped with a reason.
func (s *BECEService) Import(ctx context.Context, data []byte, examYear int) (*models.ImportResult, error) {
	if examYear < 2000 || examYear > 2100 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam_year is invalid")
	}
	_, rows, err := export.ReadFirstSheet(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid spreadsheet")
	}
	result := &models.ImportResult{Skipped: []models.ImportSkip{}}
	students := map[string]*models.Student{}
	subjects := map[string]*models.Subject{}
	records := make([]*models.BECEResult, 0, len(rows))
	for i, row := range rows {
		rowNumber := i + 2
		if isBlankRow(row) {
			continue
		}
		skip := func(reason string) {
			result.Skipped = append(result.Skipped, models.ImportSkip{Row: rowNumber, Reason: reason})
		}
		number := strings.TrimSpace(cell(row, 0))
		index := strings.TrimSpace(cell(row, 1))
		code := normalizeCode(cell(row, 2))
		grade, convErr := strconv.Atoi(strings.TrimSpace(cell(row, 3)))
		switch {
		case number == "" || index == "" || code == "":
			skip("student_number, index_number and subject_code are required")
			continue
		case convErr != nil || !grading.ValidBECEGrade(grade):
			skip("grade must be a whole number from 1 to 9")
			continue
		}

		student, err := s.lookupStudent(ctx, students, number)
		if err != nil {
			return nil, err
		}
		if student == nil {
			skip(fmt.Sprintf("unknown student %s", number))
			continue
		}
		subject, err := s.lookupSubject(ctx, subjects, code)
		if err != nil {
			return nil, err
		}
		if subject == nil {
			skip(fmt.Sprintf("unknown subject %s", code))
			continue
		}
		records = append(records, &models.BECEResult{
			StudentID:   student.ID,
			IndexNumber: index,
			ExamYear:    examYear,
			SubjectID:   subject.ID,
			Grade:       grade,
		})
	}
	if len(records) > 0 {
		if err := s.repo.UpsertBatch(ctx, records); err != nil {
			return nil, appErrors.FromDatabase(err, "failed to import BECE results")
		}
	}
	result.Imported = len(records)
	s.logger.Info("bece results imported", zap.Int("exam_year", examYear), zap.Int("imported", result.Imported), zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *BECEService) load(ctx context.Context, id string) (*models.BECEResult, error) {
	result, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "BECE result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load BECE result")
	}
	return result, nil
}

func (s *BECEService) lookupStudent(ctx context.Context, seen map[string]*models.Student, number string) (*models.Student, error) {
	if student, ok := seen[number]; ok {
		return student, nil
	}
	student, err := s.students.FindByNumber(ctx, number)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}
	seen[number] = student
	return student, nil
}

func (s *BECEService) lookupSubject(ctx context.Context, seen map[string]*models.Subject, code string) (*models.Subject, error) {
	if subject, ok := seen[code]; ok {
		return subject, nil
	}
	subject, err := s.subjects.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up subject")
	}
	seen[code] = subject
	return subject, nil
}
