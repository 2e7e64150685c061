package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth(t *testing.T) {
	t.Helper()
	healthChecker = NewHealthChecker()
}

func TestUpdateComponent(t *testing.T) {
	resetHealth(t)

	RegisterComponent(ComponentDatabase, true, "opened")
	UpdateComponent(ComponentDatabase, false, "disk full")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components[ComponentDatabase]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "disk full", comp.Message)
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		want       string
	}{
		{name: "no components", want: StatusHealthy},
		{name: "all healthy", components: map[string]bool{ComponentListener: true, ComponentDatabase: true}, want: StatusHealthy},
		{name: "one unhealthy", components: map[string]bool{ComponentListener: true, ComponentStorage: false}, want: StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			SetVersion("test")
			for name, healthy := range tt.components {
				UpdateComponent(name, healthy, "broken")
			}

			health := GetHealth()
			assert.Equal(t, tt.want, health.Status)
			assert.Len(t, health.Components, len(tt.components))
			assert.Equal(t, "test", health.Version)
		})
	}
}

func TestGetReadiness(t *testing.T) {
	tests := []struct {
		name       string
		components map[string]bool
		want       string
		listener   string
	}{
		{name: "nothing registered", want: StatusNotReady, listener: "not registered"},
		{name: "database missing", components: map[string]bool{ComponentListener: true}, want: StatusNotReady, listener: StatusReady},
		{name: "listener down", components: map[string]bool{ComponentListener: false, ComponentDatabase: true}, want: StatusNotReady, listener: "not ready: bind failed"},
		{name: "ready", components: map[string]bool{ComponentListener: true, ComponentDatabase: true}, want: StatusReady, listener: StatusReady},
		{name: "non critical unhealthy", components: map[string]bool{ComponentListener: true, ComponentDatabase: true, ComponentLedger: false}, want: StatusReady, listener: StatusReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth(t)
			for name, healthy := range tt.components {
				UpdateComponent(name, healthy, "bind failed")
			}

			readiness := GetReadiness()
			assert.Equal(t, tt.want, readiness.Status)
			assert.Equal(t, tt.listener, readiness.Components[ComponentListener])
			if tt.want == StatusNotReady {
				assert.NotEmpty(t, readiness.Message)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	resetHealth(t)
	UpdateComponent(ComponentListener, true, "")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    int
		status  string
	}{
		{name: "health", handler: HealthHandler(), code: http.StatusOK, status: StatusHealthy},
		{name: "ready without database", handler: ReadyHandler(), code: http.StatusServiceUnavailable, status: StatusNotReady},
		{name: "live", handler: LivenessHandler(), code: http.StatusOK, status: "alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	resetHealth(t)
	UpdateComponent(ComponentStorage, false, "no credentials")

	rec := httptest.NewRecorder()
	HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var health HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
	assert.Equal(t, "unhealthy: no credentials", health.Components[ComponentStorage])
}

func TestNewServeMux(t *testing.T) {
	resetHealth(t)
	ConnectionsTotal.WithLabelValues("PING").Inc()
	srv := httptest.NewServer(NewServeMux())
	defer srv.Close()

	for _, path := range []string{"/metrics", "/health", "/live"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
