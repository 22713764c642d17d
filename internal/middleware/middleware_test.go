package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.seen = token
	return v.claims, v.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/attendance", chain...)
	return r
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/attendance", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}}

	w := serve(newRouter(JWT(stub)), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(newRouter(JWT(stub)), "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(newRouter(JWT(stub)), "Bearer abc")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "abc", stub.seen)

	stub.err = appErrors.Clone(appErrors.ErrUnauthorized, "token expired")
	w = serve(newRouter(JWT(stub)), "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestRBAC(t *testing.T) {
	cases := []struct {
		name    string
		claims  *models.JWTClaims
		allowed []string
		want    int
	}{
		{"no claims", nil, []string{RoleAdministrative}, http.StatusUnauthorized},
		{"explicit role", &models.JWTClaims{Role: models.RoleAdmin}, []string{string(models.RoleAdmin)}, http.StatusNoContent},
		{"administrative group", &models.JWTClaims{Role: models.RoleTeacher}, []string{RoleAdministrative}, http.StatusNoContent},
		{"student denied admin route", &models.JWTClaims{Role: models.RoleStudent, StudentID: "S1"}, []string{RoleAdministrative}, http.StatusForbidden},
		{"bound student on self route", &models.JWTClaims{Role: models.RoleStudent, StudentID: "S1"}, []string{RoleSelf}, http.StatusNoContent},
		{"unbound parent on self route", &models.JWTClaims{Role: models.RoleParent}, []string{RoleSelf}, http.StatusForbidden},
		{"admin on self route", &models.JWTClaims{Role: models.RoleAdmin}, []string{RoleSelf}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(newRouter(withClaims(tc.claims), RBAC(tc.allowed...)), "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuditLogsActor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	claims := &models.JWTClaims{UserID: "u9", Role: models.RoleStudent, StudentID: "S1"}

	w := serve(newRouter(withClaims(claims), Audit(zap.New(core), "attendance.mark_own")), "")
	require.Equal(t, http.StatusNoContent, w.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "attendance.mark_own", fields["action"])
	assert.Equal(t, "u9", fields["user_id"])
	assert.Equal(t, "S1", fields["student_id"])
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}

func TestAuditWarnsOnFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/attendance", Audit(zap.New(core), "attendance.set_status"), func(c *gin.Context) {
		c.Status(http.StatusForbidden)
	})

	serve(r, "")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestMetricsMiddleware(t *testing.T) {
	w := serve(newRouter(Metrics(nil)), "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc := service.NewMetricsService()
	serve(newRouter(Metrics(svc)), "")
	serve(newRouter(Metrics(svc)), "")
	assert.EqualValues(t, 2, svc.Snapshot().RequestsTotal)
}

type observerStub struct {
	routes []string
	codes  []int
}

func (o *observerStub) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	o.routes = append(o.routes, path)
	o.codes = append(o.codes, status)
}

func TestMetricsMiddlewareLabelsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/attendance/courses/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/attendance/courses/X", "/attendance/courses/Y", "/nope/123"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"/attendance/courses/:id", "/attendance/courses/:id", "unmatched"}, obs.routes)
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusNotFound}, obs.codes)
}
