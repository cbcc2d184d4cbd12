package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type reportServiceMock struct {
	card       *models.ReportCard
	sheet      *models.Broadsheet
	err        error
	lastQuery  service.ReportQuery
	lastID     string
	renderFile *models.RenderedReport
	renderErr  error
	rendered   models.ReportFormat
}

func (m *reportServiceMock) ReportCard(ctx context.Context, actor *models.JWTClaims, studentID string, query service.ReportQuery) (*models.ReportCard, error) {
	m.lastID = studentID
	m.lastQuery = query
	return m.card, m.err
}

func (m *reportServiceMock) Broadsheet(ctx context.Context, actor *models.JWTClaims, classID string, query service.ReportQuery) (*models.Broadsheet, error) {
	m.lastID = classID
	m.lastQuery = query
	return m.sheet, m.err
}

func (m *reportServiceMock) RenderReportCard(card *models.ReportCard, format models.ReportFormat) (*models.RenderedReport, error) {
	m.rendered = format
	return m.renderFile, m.renderErr
}

func (m *reportServiceMock) RenderBroadsheet(sheet *models.Broadsheet, format models.ReportFormat) (*models.RenderedReport, error) {
	m.rendered = format
	return m.renderFile, m.renderErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerReportCardJSON(t *testing.T) {
	mock := &reportServiceMock{card: &models.ReportCard{StudentID: "s1", Average: 75}}
	handler := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/reports/students/s1?academicYear=2024/2025&term=1&classId=c1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.ReportCard(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mock.lastID)
	assert.Equal(t, service.ReportQuery{AcademicYear: "2024/2025", Term: 1, ClassID: "c1", Format: models.ReportFormatJSON}, mock.lastQuery)
	assert.Empty(t, mock.rendered)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(75), envelope.Data["average"])
}

func TestReportHandlerReportCardPDF(t *testing.T) {
	mock := &reportServiceMock{
		card:       &models.ReportCard{StudentID: "s1"},
		renderFile: &models.RenderedReport{Filename: "report-card_N1_2024-2025_term1.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
	}
	handler := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/reports/students/s1?academicYear=2024/2025&term=1&format=PDF", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	handler.ReportCard(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReportFormatPDF, mock.rendered)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report-card_N1_2024-2025_term1.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

func TestReportHandlerRejectsBadTerm(t *testing.T) {
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/students/s1?academicYear=2024/2025&term=first", nil)
	handler.ReportCard(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerBroadsheetForbidden(t *testing.T) {
	mock := &reportServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "not your class")}
	handler := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/reports/classes/c1/broadsheet?academicYear=2024/2025&term=2&format=xlsx", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.Broadsheet(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "c1", mock.lastID)
	assert.Equal(t, 2, mock.lastQuery.Term)
	assert.Empty(t, mock.rendered)
}

func TestReportHandlerBroadsheetXLSX(t *testing.T) {
	mock := &reportServiceMock{
		sheet:      &models.Broadsheet{ClassID: "c1"},
		renderFile: &models.RenderedReport{Filename: "broadsheet.xlsx", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: []byte("PK")},
	}
	handler := NewReportHandler(mock)

	c, w := newGinContext(http.MethodGet, "/reports/classes/c1/broadsheet?academicYear=2024/2025&term=1&format=xlsx", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}
	handler.Broadsheet(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReportFormatXLSX, mock.rendered)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "broadsheet.xlsx")
}
