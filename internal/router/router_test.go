package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-scheduler-api/internal/handler"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/internal/service"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/config"
)

func newTestRouter(t *testing.T, env string) (*gin.Engine, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(service.AuthConfig{Secret: "secret"}, nil)
	metrics := service.NewMetricsService()
	cfg := &config.Config{Env: env, APIPrefix: "/api/v1"}

	r := New(Options{Config: cfg, Auth: auth, Metrics: metrics}, Handlers{
		Sessions:     handler.NewSessionHandler(nil),
		Availability: handler.NewAvailabilityHandler(nil),
		Export:       handler.NewExportHandler(nil),
		Metrics:      handler.NewMetricsHandler(metrics, nil),
	})
	return r, auth
}

func perform(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterPublicEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, config.EnvDevelopment)

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/metrics", "").Code)
}

func TestRouterRequiresTokenUnderPrefix(t *testing.T) {
	r, _ := newTestRouter(t, config.EnvDevelopment)

	w := perform(r, http.MethodGet, "/api/v1/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = perform(r, http.MethodPost, "/api/v1/sessions/session-1/start", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterAvailabilityWriteIsSelfOrAdmin(t *testing.T) {
	r, auth := newTestRouter(t, config.EnvDevelopment)
	token, err := auth.IssueToken("tutor-1", models.RoleTutor, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodPut, "/api/v1/tutors/tutor-2/availability", token).Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/api/v1/tutors/tutor-2/sessions/export", token).Code)
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	r, _ := newTestRouter(t, config.EnvProduction)
	defer gin.SetMode(gin.TestMode)

	assert.Equal(t, http.StatusNotFound, perform(r, http.MethodGet, "/docs/index.html", "").Code)
}
