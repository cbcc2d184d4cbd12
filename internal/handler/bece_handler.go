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

type beceService interface {
	List(ctx context.Context, filter models.BECEFilter) ([]models.BECEResultDetail, *models.Pagination, error)
	Create(ctx context.Context, req service.CreateBECEResultRequest) (*models.BECEResult, error)
	Update(ctx context.Context, id string, req service.UpdateBECEResultRequest) (*models.BECEResult, error)
	Delete(ctx context.Context, id string) error
	Aggregate(ctx context.Context, studentID string, examYear int) (*models.BECEAggregateReport, error)
	Import(ctx context.Context, data []byte, examYear int) (*models.ImportResult, error)
}

// BECEHandler exposes external exam results.
type BECEHandler struct {
	results       beceService
	maxUploadSize int64
}

// NewBECEHandler constructs BECEHandler.
func NewBECEHandler(results beceService, maxUploadSize int64) *BECEHandler {
	return &BECEHandler{results: results, maxUploadSize: maxUploadSize}
}

// List godoc
// @Summary List BECE results
// @Tags BECE
// @Produce json
// @Param examYear query int false "Exam year"
// @Param studentId query string false "Student"
// @Param indexNumber query string false "Candidate index number"
// @Success 200 {object} response.Envelope
// @Router /bece-results [get]
func (h *BECEHandler) List(c *gin.Context) {
	year, err := queryInt(c, "examYear")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.BECEFilter{
		ExamYear:    year,
		StudentID:   c.Query("studentId"),
		IndexNumber: c.Query("indexNumber"),
	}
	filter.Page, filter.PageSize = pageParams(c)
	results, pagination, err := h.results.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, pagination)
}

// Create godoc
// @Summary Record a BECE subject result
// @Tags BECE
// @Accept json
// @Produce json
// @Param payload body service.CreateBECEResultRequest true "Result"
// @Success 201 {object} response.Envelope
// @Router /bece-results [post]
func (h *BECEHandler) Create(c *gin.Context) {
	var req service.CreateBECEResultRequest
	if !bindJSON(c, &req, "invalid BECE result payload") {
		return
	}
	result, err := h.results.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Update a BECE result
// @Tags BECE
// @Accept json
// @Produce json
// @Param id path string true "Result ID"
// @Param payload body service.UpdateBECEResultRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /bece-results/{id} [patch]
func (h *BECEHandler) Update(c *gin.Context) {
	var req service.UpdateBECEResultRequest
	if !bindJSON(c, &req, "invalid BECE result payload") {
		return
	}
	result, err := h.results.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a BECE result
// @Tags BECE
// @Param id path string true "Result ID"
// @Success 204
// @Router /bece-results/{id} [delete]
func (h *BECEHandler) Delete(c *gin.Context) {
	if err := h.results.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Aggregate godoc
// @Summary Candidate aggregate
// @Description Best four core plus best two elective grades
// @Tags BECE
// @Produce json
// @Param studentId path string true "Student ID"
// @Param examYear query int true "Exam year"
// @Success 200 {object} response.Envelope
// @Router /bece-results/students/{studentId}/aggregate [get]
func (h *BECEHandler) Aggregate(c *gin.Context) {
	year, err := queryInt(c, "examYear")
	if err != nil {
		response.Error(c, err)
		return
	}
	if year == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examYear is required"))
		return
	}
	report, err := h.results.Aggregate(c.Request.Context(), c.Param("studentId"), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Import godoc
// @Summary Import BECE results from CSV
// @Tags BECE
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV with student_number,index_number,subject_code,grade"
// @Param exam_year formData int true "Exam year"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /bece-results/import [post]
func (h *BECEHandler) Import(c *gin.Context) {
	year, err := strconv.Atoi(c.PostForm("exam_year"))
	if err != nil || year == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_year is required"))
		return
	}
	data, err := readUpload(c, "file", h.maxUploadSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.results.Import(c.Request.Context(), data, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
