package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type fakeEvaluationSrv struct {
	filter models.EvaluationFilter
	actor  *models.JWTClaims
	req    service.UpsertEvaluationRequest
	err    error
}

func (f *fakeEvaluationSrv) List(ctx context.Context, filter models.EvaluationFilter) ([]models.Evaluation, *models.Pagination, error) {
	f.filter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (f *fakeEvaluationSrv) Get(ctx context.Context, id string) (*models.Evaluation, error) {
	return &models.Evaluation{ID: id}, nil
}

func (f *fakeEvaluationSrv) Upsert(ctx context.Context, actor *models.JWTClaims, req service.UpsertEvaluationRequest) (*models.Evaluation, error) {
	f.actor, f.req = actor, req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Evaluation{ID: "e1", StudentID: req.StudentID, Conduct: req.Conduct}, nil
}

func (f *fakeEvaluationSrv) Update(ctx context.Context, actor *models.JWTClaims, id string, req service.UpdateEvaluationRequest) (*models.Evaluation, error) {
	return &models.Evaluation{ID: id}, nil
}

func (f *fakeEvaluationSrv) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	return nil
}

func TestEvaluationHandlerListParsesTerm(t *testing.T) {
	srv := &fakeEvaluationSrv{}
	c, w := newGinContext(http.MethodGet, "/evaluations?classId=c1&academicYear=2024/2025&term=2", nil)
	NewEvaluationHandler(srv).List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", srv.filter.ClassID)
	assert.Equal(t, "2024/2025", srv.filter.AcademicYear)
	assert.Equal(t, 2, srv.filter.Term)

	c, w = newGinContext(http.MethodGet, "/evaluations?term=second", nil)
	NewEvaluationHandler(srv).List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluationHandlerUpsertPassesCaller(t *testing.T) {
	srv := &fakeEvaluationSrv{}
	body := []byte(`{"student_id":"s1","class_id":"c1","academic_year":"2024/2025","term":1,"conduct":"Very Good"}`)
	c, w := newGinContext(http.MethodPost, "/evaluations", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	NewEvaluationHandler(srv).Upsert(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, srv.actor)
	assert.Equal(t, "t1", srv.actor.UserID)
	assert.Equal(t, "Very Good", srv.req.Conduct)
}

func TestEvaluationHandlerUpsertForbidden(t *testing.T) {
	srv := &fakeEvaluationSrv{err: appErrors.Clone(appErrors.ErrForbidden, "only administrators may set the head teacher remark")}
	body := []byte(`{"student_id":"s1","class_id":"c1","academic_year":"2024/2025","term":1,"conduct":"Good","head_teacher_remark":"Promoted"}`)
	c, w := newGinContext(http.MethodPost, "/evaluations", body)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	NewEvaluationHandler(srv).Upsert(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}
