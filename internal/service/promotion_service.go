package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/grading"
)

type promotionRepository interface {
	Execute(ctx context.Context, records []*models.PromotionRecord) error
	History(ctx context.Context, filter models.PromotionHistoryFilter) ([]models.PromotionRecordDetail, int, error)
}

type subjectAverageReader interface {
	SubjectAverages(ctx context.Context, classID, academicYear string) ([]models.StudentSubjectAverage, error)
}

type attendanceSummaryReader interface {
	SummaryByStudent(ctx context.Context, classID string, from, to *time.Time) ([]models.AttendanceSummary, error)
}

type rosterReader interface {
	ListByClass(ctx context.Context, classID string, status models.StudentStatus) ([]models.Student, error)
}

// PromotionPolicy fixes the last class level and the default criteria.
type PromotionPolicy struct {
	FinalLevel int
	Defaults   models.PromotionCriteria
}

// DefaultPromotionPolicy graduates after level 9 (JHS 3).
var DefaultPromotionPolicy = PromotionPolicy{
	FinalLevel: 9,
	Defaults:   models.PromotionCriteria{PassMark: 40, MinAverage: 50, MinAttendanceRate: 0.75, MaxFailedSubjects: 2},
}

// ExecutePromotionRequest moves students of one class to the next level.
type ExecutePromotionRequest struct {
	FromClassID  string                   `json:"from_class_id" validate:"required"`
	ToClassID    string                   `json:"to_class_id"`
	AcademicYear string                   `json:"academic_year" validate:"required,academic_year"`
	StudentIDs   []string                 `json:"student_ids" validate:"omitempty,dive,required"`
	Force        bool                     `json:"force"`
	Criteria     *models.CriteriaOverride `json:"criteria"`
}

// PromotionService evaluates and executes end-of-year promotions.
type PromotionService struct {
	repo       promotionRepository
	classes    classLookup
	students   rosterReader
	grades     subjectAverageReader
	attendance attendanceSummaryReader
	policy     PromotionPolicy
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(
	repo promotionRepository,
	classes classLookup,
	students rosterReader,
	grades subjectAverageReader,
	attendance attendanceSummaryReader,
	policy PromotionPolicy,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	registerAcademicValidators(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.FinalLevel <= 0 {
		policy.FinalLevel = DefaultPromotionPolicy.FinalLevel
	}
	return &PromotionService{
		repo:       repo,
		classes:    classes,
		students:   students,
		grades:     grades,
		attendance: attendance,
		policy:     policy,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// Criteria merges an override onto the configured defaults.
func (s *PromotionService) Criteria(override *models.CriteriaOverride) (models.PromotionCriteria, error) {
	merged := override.Apply(s.policy.Defaults)
	if err := s.validator.Struct(merged); err != nil {
		return models.PromotionCriteria{}, invalidPayload(err, "invalid promotion criteria")
	}
	return merged, nil
}

// Eligibility evaluates every active student of a class against the criteria.
func (s *PromotionService) Eligibility(ctx context.Context, classID, academicYear string, override *models.CriteriaOverride) (*models.ClassEligibility, error) {
	if classID == "" || !models.ValidAcademicYear(academicYear) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "classId and a valid academicYear are required")
	}
	criteria, err := s.Criteria(override)
	if err != nil {
		return nil, err
	}
	class, err := s.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	roster, err := s.students.ListByClass(ctx, classID, models.StudentStatusActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	averages, err := s.grades.SubjectAverages(ctx, classID, academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade averages")
	}
	from, _, _ := models.TermDates(academicYear, 1)
	_, to, _ := models.TermDates(academicYear, 3)
	summaries, err := s.attendance.SummaryByStudent(ctx, classID, &from, &to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	bySubject := make(map[string][]models.StudentSubjectAverage, len(roster))
	for _, a := range averages {
		bySubject[a.StudentID] = append(bySubject[a.StudentID], a)
	}
	byAttendance := make(map[string]models.AttendanceSummary, len(summaries))
	for _, sum := range summaries {
		byAttendance[sum.StudentID] = sum
	}

	result := &models.ClassEligibility{
		ClassID:      class.ID,
		ClassName:    class.Name,
		AcademicYear: academicYear,
		Level:        class.Level,
		Criteria:     criteria,
		Students:     make([]models.StudentEligibility, 0, len(roster)),
	}
	if class.Level >= s.policy.FinalLevel {
		result.Graduating = true
	} else {
		next := class.Level + 1
		result.NextLevel = &next
	}
	for _, student := range roster {
		var rate *float64
		if sum, ok := byAttendance[student.ID]; ok && sum.Total > 0 {
			r := sum.Rate
			rate = &r
		}
		row := evaluateStudent(student, bySubject[student.ID], rate, criteria)
		if row.Eligible {
			result.EligibleCount++
		}
		result.Students = append(result.Students, row)
	}
	sort.SliceStable(result.Students, func(i, j int) bool {
		return result.Students[i].StudentName < result.Students[j].StudentName
	})
	return result, nil
}

// evaluateStudent applies the criteria to one student's averages. A student
// with no attendance rows is not penalised for attendance.
func evaluateStudent(student models.Student, averages []models.StudentSubjectAverage, rate *float64, c models.PromotionCriteria) models.StudentEligibility {
	row := models.StudentEligibility{
		StudentID:      student.ID,
		StudentNumber:  student.StudentNumber,
		StudentName:    student.FullName(),
		Subjects:       make([]models.SubjectAverage, 0, len(averages)),
		AttendanceRate: rate,
	}
	if len(averages) == 0 {
		row.Reasons = []string{"no grades recorded"}
		return row
	}
	var sum float64
	for _, a := range averages {
		passed := a.Average >= c.PassMark
		if !passed {
			row.FailedSubjects++
		}
		sum += a.Average
		row.Subjects = append(row.Subjects, models.SubjectAverage{SubjectID: a.SubjectID, SubjectName: a.SubjectName, Average: a.Average, Passed: passed})
	}
	row.Average = grading.Round2(sum / float64(len(averages)))

	if row.Average < c.MinAverage {
		row.Reasons = append(row.Reasons, fmt.Sprintf("average %.2f is below %.2f", row.Average, c.MinAverage))
	}
	if row.FailedSubjects > c.MaxFailedSubjects {
		row.Reasons = append(row.Reasons, fmt.Sprintf("failed %d subjects, at most %d allowed", row.FailedSubjects, c.MaxFailedSubjects))
	}
	if rate != nil && *rate < c.MinAttendanceRate {
		row.Reasons = append(row.Reasons, fmt.Sprintf("attendance rate %.2f is below %.2f", *rate, c.MinAttendanceRate))
	}
	row.Eligible = len(row.Reasons) == 0
	return row
}

// Execute promotes or graduates students in one transaction. Without
// student_ids every eligible student moves; listed ineligible students are
// refused unless an administrator forces the promotion.
func (s *PromotionService) Execute(ctx context.Context, actor *models.JWTClaims, req ExecutePromotionRequest) (*models.PromotionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid promotion payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Force && !actor.Role.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators may force promotions")
	}
	eligibility, err := s.Eligibility(ctx, req.FromClassID, req.AcademicYear, req.Criteria)
	if err != nil {
		return nil, err
	}

	var toClassID *string
	outcome := models.PromotionOutcomePromoted
	if eligibility.Graduating {
		if req.ToClassID != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "students in the final level graduate; to_class_id must be empty")
		}
		outcome = models.PromotionOutcomeGraduated
	} else {
		if req.ToClassID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "to_class_id is required")
		}
		to, err := s.loadClass(ctx, req.ToClassID)
		if err != nil {
			return nil, err
		}
		if to.Level != eligibility.Level+1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("target class must be level %d", eligibility.Level+1))
		}
		toClassID = &to.ID
	}

	selected, err := selectForPromotion(eligibility.Students, req.StudentIDs, req.Force)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "no eligible students to promote")
	}

	records := make([]*models.PromotionRecord, 0, len(selected))
	result := &models.PromotionResult{FromClassID: req.FromClassID, ToClassID: toClassID, Outcomes: make([]models.PromotionOutcome, 0, len(selected))}
	for _, st := range selected {
		records = append(records, &models.PromotionRecord{
			StudentID:      st.StudentID,
			FromClassID:    req.FromClassID,
			ToClassID:      toClassID,
			AcademicYear:   req.AcademicYear,
			Outcome:        outcome,
			Eligible:       st.Eligible,
			Forced:         !st.Eligible,
			AverageScore:   st.Average,
			AttendanceRate: st.AttendanceRate,
			PromotedBy:     actorID(actor),
		})
		result.Outcomes = append(result.Outcomes, models.PromotionOutcome{StudentID: st.StudentID, Outcome: outcome, Eligible: st.Eligible, Forced: !st.Eligible})
	}
	if err := s.repo.Execute(ctx, records); err != nil {
		return nil, appErrors.FromDatabase(err, "failed to execute promotion")
	}
	if outcome == models.PromotionOutcomeGraduated {
		result.Graduated = len(records)
	} else {
		result.Promoted = len(records)
	}
	for range records {
		s.metrics.RecordPromotion(outcome)
	}
	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("promotion executed",
		zap.String("from_class_id", req.FromClassID),
		zap.String("outcome", outcome),
		zap.Int("students", len(records)),
		zap.String("actor", actor.UserID),
	)
	return result, nil
}

func selectForPromotion(rows []models.StudentEligibility, studentIDs []string, force bool) ([]models.StudentEligibility, error) {
	if len(studentIDs) == 0 {
		var out []models.StudentEligibility
		for _, r := range rows {
			if r.Eligible {
				out = append(out, r)
			}
		}
		return out, nil
	}
	byID := make(map[string]models.StudentEligibility, len(rows))
	for _, r := range rows {
		byID[r.StudentID] = r
	}
	var (
		out        []models.StudentEligibility
		missing    []string
		ineligible []string
	)
	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		row, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case !row.Eligible && !force:
			ineligible = append(ineligible, fmt.Sprintf("%s (%s)", id, strings.Join(row.Reasons, "; ")))
		default:
			out = append(out, row)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "students not active in the class: "+strings.Join(missing, ", "))
	}
	if len(ineligible) > 0 {
		return nil, appErrors.Clone(appErrors.ErrUnprocessable, "ineligible students: "+strings.Join(ineligible, ", "))
	}
	return out, nil
}

// History lists executed promotions.
func (s *PromotionService) History(ctx context.Context, filter models.PromotionHistoryFilter) ([]models.PromotionRecordDetail, *models.Pagination, error) {
	records, total, err := s.repo.History(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promotion history")
	}
	return records, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *PromotionService) loadClass(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		return nil, classLoadError(err)
	}
	return class, nil
}
