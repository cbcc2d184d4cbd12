package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type fakeGradeSrv struct {
	filter   models.GradeFilter
	upserted service.UpsertGradeRequest
	bulk     service.BulkGradesRequest
	actor    *models.JWTClaims
	err      error
}

func (f *fakeGradeSrv) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, *models.Pagination, error) {
	f.filter = filter
	return []models.GradeDetail{{Grade: models.Grade{ID: "g1"}}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, f.err
}

func (f *fakeGradeSrv) Upsert(ctx context.Context, actor *models.JWTClaims, req service.UpsertGradeRequest) (*models.Grade, error) {
	f.actor = actor
	f.upserted = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Grade{ID: "g1", TotalScore: 72, Grade: "2"}, nil
}

func (f *fakeGradeSrv) BulkUpsert(ctx context.Context, actor *models.JWTClaims, req service.BulkGradesRequest) (*models.BulkGradeResult, error) {
	f.bulk = req
	return &models.BulkGradeResult{Saved: len(req.Items)}, f.err
}

func (f *fakeGradeSrv) Update(ctx context.Context, actor *models.JWTClaims, id string, req service.UpdateGradeRequest) (*models.Grade, error) {
	return &models.Grade{ID: id}, f.err
}

func (f *fakeGradeSrv) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	return f.err
}

func TestGradeHandlerListParsesFilter(t *testing.T) {
	srv := &fakeGradeSrv{}
	handler := NewGradeHandler(srv)

	c, w := newGinContext(http.MethodGet, "/grades?classId=c1&subjectId=math&academicYear=2024/2025&term=2&page=3&limit=10", nil)
	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.GradeFilter{ClassID: "c1", SubjectID: "math", AcademicYear: "2024/2025", Term: 2, Page: 3, PageSize: 10}, srv.filter)
}

func TestGradeHandlerUpsert(t *testing.T) {
	srv := &fakeGradeSrv{}
	handler := NewGradeHandler(srv)
	payload, _ := json.Marshal(service.UpsertGradeRequest{StudentID: "s1", SubjectID: "math", ClassID: "c1", AcademicYear: "2024/2025", Term: 1, ClassScore: 80, ExamScore: 68})

	c, w := newGinContext(http.MethodPost, "/grades", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	handler.Upsert(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 68.0, srv.upserted.ExamScore)
	require.NotNil(t, srv.actor)
	assert.Equal(t, "t1", srv.actor.UserID)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "2", envelope.Data["grade"])
}

func TestGradeHandlerUpsertMalformedBody(t *testing.T) {
	handler := NewGradeHandler(&fakeGradeSrv{})

	c, w := newGinContext(http.MethodPost, "/grades", []byte(`{"class_score":`))
	handler.Upsert(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradeHandlerBulkPropagatesServiceError(t *testing.T) {
	srv := &fakeGradeSrv{err: appErrors.Clone(appErrors.ErrForbidden, "not assigned to subject")}
	handler := NewGradeHandler(srv)
	payload := []byte(`{"class_id":"c1","subject_id":"math","academic_year":"2024/2025","term":1,"items":[{"student_id":"s1","class_score":20,"exam_score":50}]}`)

	c, w := newGinContext(http.MethodPost, "/grades/bulk", payload)
	handler.Bulk(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, srv.bulk.Items, 1)
}

func TestGradeHandlerDelete(t *testing.T) {
	handler := NewGradeHandler(&fakeGradeSrv{})

	c, w := newGinContext(http.MethodDelete, "/grades/g1", nil)
	c.Params = gin.Params{{Key: "id", Value: "g1"}}
	handler.Delete(c)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
