package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/school-mgmt-api/internal/dto"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type dashboardRepository interface {
	CountActiveStudents(ctx context.Context) (int, error)
	CountClasses(ctx context.Context, academicYear string) (int, error)
	CountSubjects(ctx context.Context) (int, error)
	CountTeachers(ctx context.Context) (int, error)
	CountGrades(ctx context.Context, academicYear string, term int) (int, error)
	AttendanceOn(ctx context.Context, date time.Time) (*models.AttendanceTally, error)
	StudentsPerLevel(ctx context.Context) ([]models.LevelCount, error)
	TeacherClasses(ctx context.Context, teacherID string, date time.Time) ([]models.TeacherClass, error)
}

// DashboardService composes the admin and teacher dashboards.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService constructs a DashboardService. A zero ttl uses the cache default.
func NewDashboardService(repo dashboardRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, ttl: ttl, logger: logger, now: time.Now}
}

// Admin returns the school-wide summary for the current term and whether it
// was served from cache.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	academicYear, term := models.AcademicPeriodAt(now)
	key := adminDashboardKey(academicYear, term, today)

	var cached dto.AdminDashboardResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	resp := &dto.AdminDashboardResponse{AcademicYear: academicYear, Term: term, Date: today.Format(dateLayout)}
	var tally *models.AttendanceTally

	g, gCtx := errgroup.WithContext(ctx)
	count := func(dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gCtx)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		})
	}
	count(&resp.ActiveStudents, s.repo.CountActiveStudents)
	count(&resp.Subjects, s.repo.CountSubjects)
	count(&resp.Teachers, s.repo.CountTeachers)
	count(&resp.Classes, func(ctx context.Context) (int, error) { return s.repo.CountClasses(ctx, academicYear) })
	count(&resp.GradesThisTerm, func(ctx context.Context) (int, error) { return s.repo.CountGrades(ctx, academicYear, term) })
	g.Go(func() error {
		t, err := s.repo.AttendanceOn(gCtx, today)
		tally = t
		return err
	})
	g.Go(func() error {
		levels, err := s.repo.StudentsPerLevel(gCtx)
		resp.StudentsPerLevel = levels
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("admin dashboard query failed", zap.Error(err))
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build dashboard")
	}

	if tally != nil {
		resp.AttendanceToday = tally.Total
		if tally.Total > 0 {
			resp.AttendanceRateToday = float64(tally.Attended) / float64(tally.Total)
		}
	}
	if resp.StudentsPerLevel == nil {
		resp.StudentsPerLevel = []models.LevelCount{}
	}
	s.cache.Set(ctx, key, resp, s.ttl)
	return resp, false, nil
}

// Teacher returns the classes a teacher leads or teaches with today's
// attendance state.
func (s *DashboardService) Teacher(ctx context.Context, actor *models.JWTClaims) (*dto.TeacherDashboardResponse, bool, error) {
	if actor == nil || actor.UserID == "" {
		return nil, false, appErrors.ErrUnauthorized
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	key := teacherDashboardKey(actor.UserID, today)

	var cached dto.TeacherDashboardResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	classes, err := s.repo.TeacherClasses(ctx, actor.UserID, today)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher classes")
	}
	if classes == nil {
		classes = []models.TeacherClass{}
	}
	resp := &dto.TeacherDashboardResponse{TeacherID: actor.UserID, Date: today.Format(dateLayout), Classes: classes}
	for _, c := range classes {
		if c.IsClassTeacher && !c.AttendanceMarked {
			resp.PendingAttendance++
		}
	}
	s.cache.Set(ctx, key, resp, s.ttl)
	return resp, false, nil
}
