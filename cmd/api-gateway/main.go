package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-mgmt-api/api/swagger"
	"github.com/noah-isme/school-mgmt-api/internal/handler"
	"github.com/noah-isme/school-mgmt-api/internal/repository"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/cache"
	"github.com/noah-isme/school-mgmt-api/pkg/config"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
	"github.com/noah-isme/school-mgmt-api/pkg/grading"
	"github.com/noah-isme/school-mgmt-api/pkg/logger"
)

// @title School Management API
// @version 1.0.0
// @description Students, classes, grading, attendance, reports and promotions for junior high schools
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	redisClient, cacheSvc := setupCache(cfg, metrics, logr)
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var auditRecorder service.AuditRecorder
	if cfg.Audit.Enabled {
		dispatcher := service.NewAuditDispatcher(repository.NewAuditRepository(db), metrics, logr, service.AuditConfig{
			Workers:      cfg.Audit.Workers,
			BufferSize:   cfg.Audit.BufferSize,
			MaxRetries:   cfg.Audit.MaxRetries,
			DrainTimeout: cfg.Audit.DrainTimeout,
		})
		dispatcher.Start(context.Background())
		defer dispatcher.Stop()
		auditRecorder = dispatcher
	}

	app, err := buildApp(cfg, db, cacheSvc, metrics, auditRecorder, logr)
	if err != nil {
		logr.Fatal("failed to build services", zap.Error(err))
	}

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	router := newRouter(cfg, app, metrics, checks, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// setupCache connects to Redis behind a circuit breaker. The API keeps
// serving from Postgres when caching is disabled or Redis is unreachable.
func setupCache(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*redis.Client, *service.CacheService) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	client, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		return nil, nil
	}
	breaker := cache.NewBreaker("redis", cfg.Cache.BreakerFailures, cfg.Cache.BreakerOpenDelay, func(name string, from, to gobreaker.State) {
		logr.Warn("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		metrics.SetBreakerState(name, int(to))
	})
	repo := repository.NewCacheRepository(client, breaker, logr)
	return client, service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr, true)
}

type app struct {
	auth        *service.AuthService
	users       *service.UserService
	permissions *service.PermissionService
	students    *service.StudentService
	classes     *service.ClassService
	subjects    *service.SubjectService
	grades      *service.GradeService
	attendance  *service.AttendanceService
	evaluations *service.EvaluationService
	bece        *service.BECEService
	promotions  *service.PromotionService
	reports     *service.ReportService
	dashboard   *service.DashboardService
	sync        *service.SyncService
	audit       service.AuditRecorder
}

func buildApp(cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, metrics *service.MetricsService, audit service.AuditRecorder, logr *zap.Logger) (*app, error) {
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	beceRepo := repository.NewBECERepository(db)
	promotionRepo := repository.NewPromotionRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	syncRepo := repository.NewSyncRepository(db)

	weights := grading.DefaultWeights
	if cfg.Grading.ClassScoreWeight > 0 || cfg.Grading.ExamScoreWeight > 0 {
		weights = grading.Weights{ClassScore: cfg.Grading.ClassScoreWeight, ExamScore: cfg.Grading.ExamScoreWeight}
	}
	calculator, err := grading.NewCalculator(weights, grading.MustDefaultScale())
	if err != nil {
		return nil, fmt.Errorf("grading weights: %w", err)
	}

	policy := service.DefaultPromotionPolicy
	if cfg.Promotion.FinalLevel > 0 {
		policy.FinalLevel = cfg.Promotion.FinalLevel
	}
	if cfg.Promotion.PassMark > 0 {
		policy.Defaults.PassMark = cfg.Promotion.PassMark
	}
	if cfg.Promotion.MinAverage > 0 {
		policy.Defaults.MinAverage = cfg.Promotion.MinAverage
	}
	if cfg.Promotion.MinAttendanceRate > 0 {
		policy.Defaults.MinAttendanceRate = cfg.Promotion.MinAttendanceRate
	}
	if cfg.Promotion.MaxFailedSubjects > 0 {
		policy.Defaults.MaxFailedSubjects = cfg.Promotion.MaxFailedSubjects
	}

	a := &app{audit: audit}
	a.auth = service.NewAuthService(userRepo, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	a.users = service.NewUserService(userRepo, validate, logr)
	a.permissions = service.NewPermissionService(permissionRepo, cacheSvc, validate, logr)
	a.students = service.NewStudentService(studentRepo, classRepo, validate, logr)
	a.classes = service.NewClassService(classRepo, subjectRepo, userRepo, validate, logr)
	a.subjects = service.NewSubjectService(subjectRepo, validate, logr)
	a.grades = service.NewGradeService(gradeRepo, classRepo, studentRepo, calculator, cacheSvc, metrics, validate, logr)
	a.attendance = service.NewAttendanceService(attendanceRepo, classRepo, studentRepo, cacheSvc, validate, logr)
	a.evaluations = service.NewEvaluationService(evaluationRepo, classRepo, studentRepo, validate, logr)
	a.bece = service.NewBECEService(beceRepo, studentRepo, subjectRepo, validate, logr)
	a.promotions = service.NewPromotionService(promotionRepo, classRepo, studentRepo, gradeRepo, attendanceRepo, policy, cacheSvc, metrics, validate, logr)
	a.reports = service.NewReportService(gradeRepo, studentRepo, classRepo, attendanceRepo, evaluationRepo, classRepo, validate, logr)
	a.dashboard = service.NewDashboardService(dashboardRepo, cacheSvc, cfg.Cache.TTL, logr)
	a.sync = service.NewSyncService(syncRepo, a.permissions, a.grades, a.attendance, a.evaluations, metrics, cfg.Sync.MaxBatchSize, validate, logr)
	return a, nil
}
