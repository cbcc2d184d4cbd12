package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
)

type fakeBECESrv struct {
	imported []byte
	year     int
	student  string
}

func (f *fakeBECESrv) List(ctx context.Context, filter models.BECEFilter) ([]models.BECEResultDetail, *models.Pagination, error) {
	f.year = filter.ExamYear
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeBECESrv) Create(ctx context.Context, req service.CreateBECEResultRequest) (*models.BECEResult, error) {
	return &models.BECEResult{ID: "b1"}, nil
}

func (f *fakeBECESrv) Update(ctx context.Context, id string, req service.UpdateBECEResultRequest) (*models.BECEResult, error) {
	return &models.BECEResult{ID: id}, nil
}

func (f *fakeBECESrv) Delete(ctx context.Context, id string) error { return nil }

func (f *fakeBECESrv) Aggregate(ctx context.Context, studentID string, examYear int) (*models.BECEAggregateReport, error) {
	f.student = studentID
	f.year = examYear
	return &models.BECEAggregateReport{StudentID: studentID, ExamYear: examYear}, nil
}

func (f *fakeBECESrv) Import(ctx context.Context, data []byte, examYear int) (*models.ImportResult, error) {
	f.imported = data
	f.year = examYear
	return &models.ImportResult{Imported: 1}, nil
}

func multipartContext(t *testing.T, fields map[string]string, file []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		part, err := writer.CreateFormFile("file", "results.csv")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/bece-results/import", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	return c, w
}

func TestBECEHandlerImport(t *testing.T) {
	srv := &fakeBECESrv{}
	handler := NewBECEHandler(srv, 1<<20)
	csv := []byte("student_number,index_number,subject_code,grade\nN1,0102030405,MATH,1\n")

	c, w := multipartContext(t, map[string]string{"exam_year": "2025"}, csv)
	handler.Import(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2025, srv.year)
	assert.Equal(t, csv, srv.imported)
}

func TestBECEHandlerImportTooLarge(t *testing.T) {
	srv := &fakeBECESrv{}
	handler := NewBECEHandler(srv, 16)

	c, w := multipartContext(t, map[string]string{"exam_year": "2025"}, bytes.Repeat([]byte("x"), 64))
	handler.Import(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Nil(t, srv.imported)
}

func TestBECEHandlerImportRequiresYearAndFile(t *testing.T) {
	handler := NewBECEHandler(&fakeBECESrv{}, 1<<20)

	c, w := multipartContext(t, nil, []byte("a,b"))
	handler.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = multipartContext(t, map[string]string{"exam_year": "2025"}, nil)
	handler.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBECEHandlerAggregate(t *testing.T) {
	srv := &fakeBECESrv{}
	handler := NewBECEHandler(srv, 0)

	c, w := newGinContext(http.MethodGet, "/bece-results/students/s1/aggregate?examYear=2025", nil)
	c.Params = gin.Params{{Key: "studentId", Value: "s1"}}
	handler.Aggregate(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", srv.student)
	assert.Equal(t, 2025, srv.year)

	c, w = newGinContext(http.MethodGet, "/bece-results/students/s1/aggregate", nil)
	handler.Aggregate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
