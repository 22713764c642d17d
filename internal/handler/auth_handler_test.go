package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
)

func TestAuthHandlerIssueTokenRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "sma-attendance"})
	h := NewAuthHandler(auth)

	r := gin.New()
	r.POST("/auth/token", h.IssueToken)
	r.GET("/auth/me", middleware.JWT(auth), h.Me)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"user_id":"u1","role":"student","student_id":"S1","full_name":"Siti Aminah"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Data IssueTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.NotEmpty(t, payload.Data.AccessToken)
	assert.Equal(t, "Bearer", payload.Data.TokenType)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+payload.Data.AccessToken)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"student_id":"S1"`)
	assert.Contains(t, w.Body.String(), string(models.RoleStudent))
}

func TestAuthHandlerIssueTokenRejectsUnboundStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(zap.NewNop(), service.AuthConfig{AccessTokenSecret: "secret"})
	h := NewAuthHandler(auth)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"role":"PARENT"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.IssueToken(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.IssueToken(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
