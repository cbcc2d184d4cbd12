package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type evaluationService interface {
	List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Evaluation, error)
	Upsert(ctx context.Context, actor *models.JWTClaims, req service.UpsertEvaluationRequest) (*models.Evaluation, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req service.UpdateEvaluationRequest) (*models.Evaluation, error)
	Delete(ctx context.Context, actor *models.JWTClaims, id string) error
}

// EvaluationHandler exposes termly conduct and remarks.
type EvaluationHandler struct {
	evaluations evaluationService
}

// NewEvaluationHandler constructs EvaluationHandler.
func NewEvaluationHandler(evaluations evaluationService) *EvaluationHandler {
	return &EvaluationHandler{evaluations: evaluations}
}

// List godoc
// @Summary List evaluations
// @Tags Evaluations
// @Produce json
// @Param classId query string false "Class"
// @Param studentId query string false "Student"
// @Param academicYear query string false "Academic year"
// @Param term query int false "Term 1-3"
// @Success 200 {object} response.Envelope
// @Router /evaluations [get]
func (h *EvaluationHandler) List(c *gin.Context) {
	term, err := queryInt(c, "term")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.EvaluationFilter{
		ClassID:      c.Query("classId"),
		StudentID:    c.Query("studentId"),
		AcademicYear: c.Query("academicYear"),
		Term:         term,
	}
	filter.Page, filter.PageSize = pageParams(c)
	items, pagination, err := h.evaluations.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get evaluation
// @Tags Evaluations
// @Produce json
// @Param id path string true "Evaluation ID"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [get]
func (h *EvaluationHandler) Get(c *gin.Context) {
	item, err := h.evaluations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Upsert godoc
// @Summary Record an evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param payload body service.UpsertEvaluationRequest true "Evaluation"
// @Success 201 {object} response.Envelope
// @Router /evaluations [post]
func (h *EvaluationHandler) Upsert(c *gin.Context) {
	var req service.UpsertEvaluationRequest
	if !bindJSON(c, &req, "invalid evaluation payload") {
		return
	}
	item, err := h.evaluations.Upsert(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update evaluation
// @Tags Evaluations
// @Accept json
// @Produce json
// @Param id path string true "Evaluation ID"
// @Param payload body service.UpdateEvaluationRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /evaluations/{id} [patch]
func (h *EvaluationHandler) Update(c *gin.Context) {
	var req service.UpdateEvaluationRequest
	if !bindJSON(c, &req, "invalid evaluation payload") {
		return
	}
	item, err := h.evaluations.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete evaluation
// @Tags Evaluations
// @Param id path string true "Evaluation ID"
// @Success 204
// @Router /evaluations/{id} [delete]
func (h *EvaluationHandler) Delete(c *gin.Context) {
	if err := h.evaluations.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
