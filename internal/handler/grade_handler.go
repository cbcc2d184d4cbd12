package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type gradeService interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error)
	Upsert(ctx context.Context, actor *models.JWTClaims, req service.UpsertGradeRequest) (*models.Grade, error)
	BulkUpsert(ctx context.Context, actor *models.JWTClaims, req service.BulkGradesRequest) (*models.BulkGradeResult, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.UpdateGradeRequest) (*models.Grade, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// GradeHandler exposes grade entry.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Param studentId query string false "Student"
// @Param classId query string false "Class"
// @Param subjectId query string false "Subject"
// @Param academicYear query string false "Academic year"
// @Param term query int false "Term 1-3"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	term, err := queryInt(c, "term")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.GradeFilter{
		StudentID:    c.Query("studentId"),
		ClassID:      c.Query("classId"),
		SubjectID:    c.Query("subjectId"),
		AcademicYear: c.Query("academicYear"),
		Term:         term,
	}
	filter.Page, filter.PageSize = pageParams(c)
	grades, pagination, err := h.grades.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, pagination)
}

// Upsert godoc
// @Summary Record a grade
// @Description Creates or replaces the grade for a student, subject and term; total, grade and remark are computed
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.UpsertGradeRequest true "Scores"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Upsert(c *gin.Context) {
	var req service.UpsertGradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	grade, err := h.grades.Upsert(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Bulk godoc
// @Summary Record grades for a class and subject
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.BulkGradesRequest true "Scores"
// @Success 200 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) Bulk(c *gin.Context) {
	var req service.BulkGradesRequest
	if !bindJSON(c, &req, "invalid bulk grade payload") {
		return
	}
	result, err := h.grades.BulkUpsert(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update grade scores
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Scores"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [patch]
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.UpdateGradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	grade, err := h.grades.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Delete grade
// @Tags Grades
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.grades.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
