package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type promotionService interface {
	Eligibility(ctx context.Context, classID, academicYear string, override *models.CriteriaOverride) (*models.ClassEligibility, error)
	Execute(ctx context.Context, actor *models.JWTClaims, req service.ExecutePromotionRequest) (*models.PromotionResult, error)
	History(ctx context.Context, filter models.PromotionHistoryFilter) ([]models.PromotionRecordDetail, *models.Pagination, error)
}

// PromotionHandler exposes end-of-year promotion.
type PromotionHandler struct {
	promotions promotionService
}

// NewPromotionHandler constructs PromotionHandler.
func NewPromotionHandler(promotions promotionService) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// criteriaOverride builds a criteria override when any threshold is passed.
// Absent thresholds are taken from the configured policy by the service.
func criteriaOverride(c *gin.Context) (*models.CriteriaOverride, error) {
	override := &models.CriteriaOverride{}
	present := false
	floats := map[string]**float64{
		"passMark":          &override.PassMark,
		"minAverage":        &override.MinAverage,
		"minAttendanceRate": &override.MinAttendanceRate,
	}
	for key, dst := range floats {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a number")
		}
		*dst = &v
		present = true
	}
	if raw := c.Query("maxFailedSubjects"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "maxFailedSubjects must be a number")
		}
		override.MaxFailedSubjects = &v
		present = true
	}
	if !present {
		return nil, nil
	}
	return override, nil
}

// Eligibility godoc
// @Summary Promotion eligibility for a class
// @Tags Promotions
// @Produce json
// @Param classId query string true "Class"
// @Param academicYear query string true "Academic year"
// @Param passMark query number false "Override pass mark"
// @Param minAverage query number false "Override minimum average"
// @Param minAttendanceRate query number false "Override minimum attendance rate (0-1)"
// @Param maxFailedSubjects query int false "Override failed subject allowance"
// @Success 200 {object} response.Envelope
// @Router /promotions/eligibility [get]
func (h *PromotionHandler) Eligibility(c *gin.Context) {
	classID := c.Query("classId")
	year := c.Query("academicYear")
	if classID == "" || year == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and academicYear are required"))
		return
	}
	override, err := criteriaOverride(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.promotions.Eligibility(c.Request.Context(), classID, year, override)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Execute godoc
// @Summary Promote a class
// @Description Moves eligible students to the target class, or graduates them from the final level
// @Tags Promotions
// @Accept json
// @Produce json
// @Param payload body service.ExecutePromotionRequest true "Promotion"
// @Success 200 {object} response.Envelope
// @Router /promotions [post]
func (h *PromotionHandler) Execute(c *gin.Context) {
	var req service.ExecutePromotionRequest
	if !bindJSON(c, &req, "invalid promotion payload") {
		return
	}
	result, err := h.promotions.Execute(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary Promotion history
// @Tags Promotions
// @Produce json
// @Param studentId query string false "Student"
// @Param classId query string false "Source class"
// @Param academicYear query string false "Academic year"
// @Success 200 {object} response.Envelope
// @Router /promotions/history [get]
func (h *PromotionHandler) History(c *gin.Context) {
	filter := models.PromotionHistoryFilter{
		StudentID:    c.Query("studentId"),
		ClassID:      c.Query("classId"),
		AcademicYear: c.Query("academicYear"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	records, pagination, err := h.promotions.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}
