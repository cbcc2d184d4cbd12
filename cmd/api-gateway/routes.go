package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/handler"
	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/config"
	"github.com/noah-isme/school-mgmt-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-mgmt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-mgmt-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, a *app, metrics *service.MetricsService, checks map[string]handler.Pinger, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.ResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authHandler := handler.NewAuthHandler(a.auth, cfg.Cookie)
	cookieName := authHandler.CookieName()
	authGroup := api.Group("/auth")
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(a.auth, cookieName))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)

	perm := func(resource, action string) gin.HandlerFunc {
		return middleware.RequirePermission(a.permissions, resource, action, logr)
	}
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(a.audit, action, resource)
	}

	users := handler.NewUserHandler(a.users)
	userGroup := secured.Group("/users")
	userGroup.GET("", perm("users", "read"), users.List)
	userGroup.GET("/:id", perm("users", "read"), users.Get)
	userGroup.POST("", perm("users", "create"), audit(models.AuditActionCreate, "users"), users.Create)
	userGroup.PATCH("/:id", perm("users", "update"), audit(models.AuditActionUpdate, "users"), users.Update)
	userGroup.DELETE("/:id", perm("users", "delete"), audit(models.AuditActionDelete, "users"), users.Delete)

	permissions := handler.NewPermissionHandler(a.permissions)
	permGroup := secured.Group("/permissions")
	permGroup.GET("/me", permissions.Mine)
	permGroup.GET("", middleware.RequireRoles(models.RoleAdmin), permissions.List)
	permGroup.POST("", middleware.RequireRoles(models.RoleAdmin), audit(models.AuditActionCreate, "permissions"), permissions.Create)
	permGroup.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), audit(models.AuditActionDelete, "permissions"), permissions.Delete)

	students := handler.NewStudentHandler(a.students, cfg.Imports.MaxFileSizeBytes)
	studentGroup := secured.Group("/students")
	studentGroup.GET("", perm("students", "read"), students.List)
	studentGroup.GET("/:id", perm("students", "read"), students.Get)
	studentGroup.POST("", perm("students", "create"), audit(models.AuditActionCreate, "students"), students.Create)
	studentGroup.POST("/import", perm("students", "create"), audit(models.AuditActionImport, "students"), students.Import)
	studentGroup.PATCH("/:id", perm("students", "update"), audit(models.AuditActionUpdate, "students"), students.Update)
	studentGroup.DELETE("/:id", perm("students", "delete"), audit(models.AuditActionDelete, "students"), students.Delete)

	classes := handler.NewClassHandler(a.classes, a.students)
	classGroup := secured.Group("/classes")
	classGroup.GET("", perm("classes", "read"), classes.List)
	classGroup.GET("/:id", perm("classes", "read"), classes.Get)
	classGroup.GET("/:id/students", perm("students", "read"), classes.Students)
	classGroup.GET("/:id/subjects", perm("classes", "read"), classes.Subjects)
	classGroup.POST("", perm("classes", "create"), audit(models.AuditActionCreate, "classes"), classes.Create)
	classGroup.PATCH("/:id", perm("classes", "update"), audit(models.AuditActionUpdate, "classes"), classes.Update)
	classGroup.DELETE("/:id", perm("classes", "delete"), audit(models.AuditActionDelete, "classes"), classes.Delete)
	classGroup.POST("/:id/subjects", perm("classes", "update"), audit(models.AuditActionUpdate, "class_subjects"), classes.AssignSubject)
	classGroup.DELETE("/:id/subjects/:subjectId", perm("classes", "update"), audit(models.AuditActionDelete, "class_subjects"), classes.RemoveSubject)

	subjects := handler.NewSubjectHandler(a.subjects)
	subjectGroup := secured.Group("/subjects")
	subjectGroup.GET("", perm("subjects", "read"), subjects.List)
	subjectGroup.GET("/:id", perm("subjects", "read"), subjects.Get)
	subjectGroup.POST("", perm("subjects", "create"), audit(models.AuditActionCreate, "subjects"), subjects.Create)
	subjectGroup.PATCH("/:id", perm("subjects", "update"), audit(models.AuditActionUpdate, "subjects"), subjects.Update)
	subjectGroup.DELETE("/:id", perm("subjects", "delete"), audit(models.AuditActionDelete, "subjects"), subjects.Delete)

	grades := handler.NewGradeHandler(a.grades)
	gradeGroup := secured.Group("/grades")
	gradeGroup.GET("", perm("grades", "read"), grades.List)
	gradeGroup.POST("", perm("grades", "create"), audit(models.AuditActionCreate, "grades"), grades.Upsert)
	gradeGroup.POST("/bulk", perm("grades", "create"), audit(models.AuditActionCreate, "grades"), grades.Bulk)
	gradeGroup.PATCH("/:id", perm("grades", "update"), audit(models.AuditActionUpdate, "grades"), grades.Update)
	gradeGroup.DELETE("/:id", perm("grades", "delete"), audit(models.AuditActionDelete, "grades"), grades.Delete)

	attendance := handler.NewAttendanceHandler(a.attendance)
	attendanceGroup := secured.Group("/attendance")
	attendanceGroup.GET("", perm("attendance", "read"), attendance.List)
	attendanceGroup.GET("/summary", perm("attendance", "read"), attendance.Summary)
	attendanceGroup.POST("", perm("attendance", "create"), audit(models.AuditActionCreate, "attendance"), attendance.Mark)
	attendanceGroup.POST("/bulk", perm("attendance", "create"), audit(models.AuditActionCreate, "attendance"), attendance.MarkClass)
	attendanceGroup.PATCH("/:id", perm("attendance", "update"), audit(models.AuditActionUpdate, "attendance"), attendance.Update)
	attendanceGroup.DELETE("/:id", perm("attendance", "delete"), audit(models.AuditActionDelete, "attendance"), attendance.Delete)

	evaluations := handler.NewEvaluationHandler(a.evaluations)
	evaluationGroup := secured.Group("/evaluations")
	evaluationGroup.GET("", perm("evaluations", "read"), evaluations.List)
	evaluationGroup.GET("/:id", perm("evaluations", "read"), evaluations.Get)
	evaluationGroup.POST("", perm("evaluations", "create"), audit(models.AuditActionCreate, "evaluations"), evaluations.Upsert)
	evaluationGroup.PATCH("/:id", perm("evaluations", "update"), audit(models.AuditActionUpdate, "evaluations"), evaluations.Update)
	evaluationGroup.DELETE("/:id", perm("evaluations", "delete"), audit(models.AuditActionDelete, "evaluations"), evaluations.Delete)

	bece := handler.NewBECEHandler(a.bece, cfg.Imports.MaxFileSizeBytes)
	beceGroup := secured.Group("/bece-results")
	beceGroup.GET("", perm("bece_results", "read"), bece.List)
	beceGroup.GET("/students/:studentId/aggregate", perm("bece_results", "read"), bece.Aggregate)
	beceGroup.POST("", perm("bece_results", "create"), audit(models.AuditActionCreate, "bece_results"), bece.Create)
	beceGroup.POST("/import", perm("bece_results", "create"), audit(models.AuditActionImport, "bece_results"), bece.Import)
	beceGroup.PATCH("/:id", perm("bece_results", "update"), audit(models.AuditActionUpdate, "bece_results"), bece.Update)
	beceGroup.DELETE("/:id", perm("bece_results", "delete"), audit(models.AuditActionDelete, "bece_results"), bece.Delete)

	promotions := handler.NewPromotionHandler(a.promotions)
	promotionGroup := secured.Group("/promotions")
	promotionGroup.GET("/eligibility", perm("promotions", "read"), promotions.Eligibility)
	promotionGroup.GET("/history", perm("promotions", "read"), promotions.History)
	promotionGroup.POST("", perm("promotions", "create"), audit(models.AuditActionPromote, "promotions"), promotions.Execute)

	reports := handler.NewReportHandler(a.reports)
	reportGroup := secured.Group("/reports")
	reportGroup.GET("/students/:id/report-card", perm("reports", "read"), reports.ReportCard)
	reportGroup.GET("/classes/:id/broadsheet", perm("reports", "read"), reports.Broadsheet)

	dashboard := handler.NewDashboardHandler(a.dashboard)
	secured.GET("/dashboard/admin", middleware.RequireRoles(models.RoleAdmin), dashboard.Admin)
	secured.GET("/dashboard/teacher", middleware.RequireRoles(models.RoleTeacher), dashboard.Teacher)

	syncHandler := handler.NewSyncHandler(a.sync)
	secured.POST("/sync", perm("sync", "create"), audit(models.AuditActionSync, "sync"), syncHandler.Replay)

	secured.GET("/admin/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)

	return r
}
