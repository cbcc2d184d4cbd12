package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	Upsert(ctx context.Context, rec *models.Attendance) error
	UpsertBatch(ctx context.Context, recs []*models.Attendance) error
	Update(ctx context.Context, rec *models.Attendance) error
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error)
}

// MarkAttendanceRequest records one student's status for a day.
type MarkAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Remarks   string `json:"remarks" validate:"max=255"`
}

// ClassAttendanceRecord is one student's mark inside a class register.
type ClassAttendanceRecord struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Remarks   string `json:"remarks" validate:"max=255"`
}

// BulkAttendanceRequest marks a whole class register for a day.
type BulkAttendanceRequest struct {
	ClassID string                  `json:"class_id" validate:"required"`
	Date    string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Records []ClassAttendanceRecord `json:"records" validate:"required,min=1,dive"`
}

// UpdateAttendanceRequest changes the status or remarks of a mark.
type UpdateAttendanceRequest struct {
	Status  *string `json:"status" validate:"omitempty,oneof=PRESENT ABSENT LATE EXCUSED"`
	Remarks *string `json:"remarks" validate:"omitempty,max=255"`
}

// AttendanceService records the daily class register.
type AttendanceService struct {
	repo        attendanceRepository
	assignments assignmentChecker
	students    classMembership
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, assignments assignmentChecker, students classMembership, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, assignments: assignments, students: students, cache: cache, validator: validate, logger: logger}
}

// List returns attendance rows.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status")
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Mark records or replaces one student's mark for a day.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.JWTClaims, req MarkAttendanceRequest) (*models.Attendance, error) {
	req.Status = strings.ToUpper(req.Status)
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid attendance payload")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, req.ClassID); err != nil {
		return nil, err
	}
	members, err := s.students.FilterInClass(ctx, req.ClassID, []string{req.StudentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class membership")
	}
	if !members[req.StudentID] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student does not belong to the class")
	}
	rec := &models.Attendance{
		StudentID:  req.StudentID,
		ClassID:    req.ClassID,
		Date:       date,
		Status:     models.AttendanceStatus(req.Status),
		Remarks:    strings.TrimSpace(req.Remarks),
		RecordedBy: actorID(actor),
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to record attendance")
	}
	s.cache.InvalidateDashboards(ctx)
	return rec, nil
}

// MarkClass records a class register in one transaction. Any student outside
// the class rejects the whole register.
func (s *AttendanceService) MarkClass(ctx context.Context, actor *models.JWTClaims, req BulkAttendanceRequest) ([]models.Attendance, error) {
	for i := range req.Records {
		req.Records[i].Status = strings.ToUpper(req.Records[i].Status)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid attendance payload")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, req.ClassID); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(req.Records))
	for _, r := range req.Records {
		ids = append(ids, r.StudentID)
	}
	members, err := s.students.FilterInClass(ctx, req.ClassID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class membership")
	}
	var outsiders []string
	seen := make(map[string]bool, len(req.Records))
	recs := make([]*models.Attendance, 0, len(req.Records))
	for _, r := range req.Records {
		if !members[r.StudentID] {
			outsiders = append(outsiders, r.StudentID)
			continue
		}
		if seen[r.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once", r.StudentID))
		}
		seen[r.StudentID] = true
		recs = append(recs, &models.Attendance{
			StudentID:  r.StudentID,
			ClassID:    req.ClassID,
			Date:       date,
			Status:     models.AttendanceStatus(r.Status),
			Remarks:    strings.TrimSpace(r.Remarks),
			RecordedBy: actorID(actor),
		})
	}
	if len(outsiders) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students not in class: "+strings.Join(outsiders, ", "))
	}
	if err := s.repo.UpsertBatch(ctx, recs); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to record class attendance")
	}
	s.cache.InvalidateDashboards(ctx)
	out := make([]models.Attendance, 0, len(recs))
	for _, r := range recs {
		out = append(out, *r)
	}
	return out, nil
}

// Update changes status or remarks.
func (s *AttendanceService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if req.Status != nil {
		upper := strings.ToUpper(*req.Status)
		req.Status = &upper
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid attendance payload")
	}
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, rec.ClassID); err != nil {
		return nil, err
	}
	if req.Status != nil {
		rec.Status = models.AttendanceStatus(*req.Status)
	}
	assignString(&rec.Remarks, req.Remarks)
	rec.RecordedBy = actorID(actor)
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to update attendance")
	}
	s.cache.InvalidateDashboards(ctx)
	return rec, nil
}

// Delete removes a mark.
func (s *AttendanceService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, rec.ClassID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.FromDatabase(err, "failed to delete attendance")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// Summary counts statuses for a student or class over an optional date range.
func (s *AttendanceService) Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error) {
	if filter.StudentID == "" && filter.ClassID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId or classId is required")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	summary, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

func (s *AttendanceService) load(ctx context.Context, id string) (*models.Attendance, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return rec, nil
}

func (s *AttendanceService) authorize(ctx context.Context, actor *models.JWTClaims, classID string) error {
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

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "dates must use YYYY-MM-DD")
	}
	return t, nil
}
