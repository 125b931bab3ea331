package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"serial2pipe/internal/config"
	"serial2pipe/internal/discovery"
	"serial2pipe/internal/model"
)

type stubRelay struct{}

func (stubRelay) Status() model.RelayStatus { return model.RelayStatus{InstanceID: "stub"} }
func (stubRelay) Ready() bool               { return false }

type stubScanner struct{}

func (stubScanner) Scan(context.Context) ([]discovery.PortInfo, error) { return nil, nil }

type stubEvents struct{}

func (stubEvents) Subscribe(int) (<-chan model.RelayEvent, func()) {
	return make(chan model.RelayEvent), func() {}
}

func newTestRouter(t *testing.T) (*Router, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		HTTP: config.HTTPConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		App:  config.AppConfig{Name: "serial2pipe", Environment: "test"},
	}
	r := NewRouter(cfg, zap.NewNop(), stubRelay{}, stubScanner{}, stubEvents{})
	return r, r.SetupRouter()
}

func TestRouter_Routes(t *testing.T) {
	r, engine := newTestRouter(t)
	require.NotNil(t, r.WebSocketHandler())

	cases := map[string]int{
		"/health":       http.StatusOK,
		"/live":         http.StatusOK,
		"/ready":        http.StatusServiceUnavailable,
		"/api/v1/stats": http.StatusOK,
		"/api/v1/ports": http.StatusOK,
		"/api/v1/nope":  http.StatusNotFound,
		"/ws/stats":     http.StatusOK,
	}
	for path, code := range cases {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, code, w.Code, path)
	}
}

func TestRouter_RequestIDAndCORS(t *testing.T) {
	_, engine := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("X-Request-ID", "abc-123")
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	require.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, w.Body.String(), `"request_id":"abc-123"`)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
