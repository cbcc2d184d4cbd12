package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

type stubChecker struct {
	allowed map[string]bool
	err     error
}

func (s stubChecker) Allowed(ctx context.Context, role models.UserRole, resource, action string) (bool, error) {
	return s.allowed[string(role)+":"+resource+":"+action], s.err
}

type captureAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (c *captureAudit) Record(ctx context.Context, log *models.AuditLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, log)
}

var tokens = stubValidator{
	"admin-token":   {UserID: "u-admin", Role: models.RoleAdmin},
	"teacher-token": {UserID: "u-teacher", Role: models.RoleTeacher},
	"root-token":    {UserID: "u-root", Role: models.RoleSuperAdmin},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(tokens, "access_token"))
	chain := append(handlers, func(c *gin.Context) {
		claims, _ := CurrentUser(c)
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/resource/:id", chain...)
	r.POST("/resource/:id", chain...)
	return r
}

func do(r http.Handler, method string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/resource/42", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func TestJWTAcceptsBearerAndCookie(t *testing.T) {
	r := newRouter()

	rec := do(r, http.MethodGet, bearer("admin-token"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-admin", rec.Body.String())

	rec = do(r, http.MethodGet, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "access_token", Value: "teacher-token"})
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-teacher", rec.Body.String())
}

func TestJWTRejectsMissingOrInvalidToken(t *testing.T) {
	r := newRouter()

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, bearer("forged")).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, func(req *http.Request) {
		req.Header.Set("Authorization", "Basic abc")
	}).Code)
}

func TestRequireRoles(t *testing.T) {
	r := newRouter(RequireRoles(models.RoleAdmin))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, bearer("admin-token")).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, bearer("root-token")).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, bearer("teacher-token")).Code)
}

func TestRequirePermission(t *testing.T) {
	checker := stubChecker{allowed: map[string]bool{"TEACHER:grades:create": true}}
	r := newRouter(RequirePermission(checker, "grades", "create", nil))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, bearer("teacher-token")).Code)
	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, bearer("admin-token")).Code)

	failing := newRouter(RequirePermission(stubChecker{err: errors.New("redis down")}, "grades", "create", nil))
	assert.Equal(t, http.StatusInternalServerError, do(failing, http.MethodGet, bearer("teacher-token")).Code)
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &captureAudit{}
	r := newRouter(Audit(recorder, models.AuditActionUpdate, "students"))

	rec := do(r, http.MethodPost, bearer("admin-token"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	assert.Equal(t, models.AuditActionUpdate, entry.Action)
	assert.Equal(t, "students", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-admin", *entry.UserID)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "42", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"status":200`)
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	recorder := &captureAudit{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/fail", Audit(recorder, models.AuditActionDelete, "students"), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/fail", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, recorder.logs)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	assert.Nil(t, Meta(c))

	ResponseMeta()(c)
	SetCacheHit(c, true)
	meta := Meta(c)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.NotContains(t, meta, "started_at")
}

type routeCounter struct {
	routes []string
}

func (r *routeCounter) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	r.routes = append(r.routes, method+" "+route)
}

func TestMetricsUsesRouteTemplateAndSkipsProbes(t *testing.T) {
	observer := &routeCounter{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(observer, "/health"))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/students/1", "/students/2", "/health", "/wp-login.php"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"GET /students/:id", "GET /students/:id", "GET unmatched"}, observer.routes)
}
