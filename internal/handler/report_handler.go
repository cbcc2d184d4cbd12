package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type reportService interface {
	ReportCard(ctx context.Context, actor *models.JWTClaims, studentID string, query service.ReportQuery) (*models.ReportCard, error)
	Broadsheet(ctx context.Context, actor *models.JWTClaims, classID string, query service.ReportQuery) (*models.Broadsheet, error)
	RenderReportCard(card *models.ReportCard, format models.ReportFormat) (*models.RenderedReport, error)
	RenderBroadsheet(sheet *models.Broadsheet, format models.ReportFormat) (*models.RenderedReport, error)
}

// ReportHandler exposes report cards and class broadsheets.
type ReportHandler struct {
	reports reportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports reportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func reportQuery(c *gin.Context) (service.ReportQuery, error) {
	term, err := queryInt(c, "term")
	if err != nil {
		return service.ReportQuery{}, err
	}
	format := models.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ReportFormatJSON))))
	return service.ReportQuery{
		AcademicYear: c.Query("academicYear"),
		Term:         term,
		ClassID:      c.Query("classId"),
		Format:       format,
	}, nil
}

// ReportCard godoc
// @Summary Student terminal report
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Student ID"
// @Param academicYear query string true "Academic year"
// @Param term query int true "Term 1-3"
// @Param classId query string false "Class, defaults to the student's current class"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{id}/report-card [get]
func (h *ReportHandler) ReportCard(c *gin.Context) {
	query, err := reportQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	card, err := h.reports.ReportCard(c.Request.Context(), claimsFromContext(c), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if query.Format == models.ReportFormatJSON {
		response.JSON(c, http.StatusOK, card, nil)
		return
	}
	file, err := h.reports.RenderReportCard(card, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file)
}

// Broadsheet godoc
// @Summary Class broadsheet
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param academicYear query string true "Academic year"
// @Param term query int true "Term 1-3"
// @Param format query string false "json, csv, xlsx or pdf"
// @Success 200 {object} response.Envelope
// @Router /reports/classes/{id}/broadsheet [get]
func (h *ReportHandler) Broadsheet(c *gin.Context) {
	query, err := reportQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sheet, err := h.reports.Broadsheet(c.Request.Context(), claimsFromContext(c), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if query.Format == models.ReportFormatJSON {
		response.JSON(c, http.StatusOK, sheet, nil)
		return
	}
	file, err := h.reports.RenderBroadsheet(sheet, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file)
}
