package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Components the worker reports
const (
	ComponentListener = "listener"
	ComponentDatabase = "database"
	ComponentStorage  = "storage"
	ComponentLedger   = "ledger"
)

// Health and readiness states
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// criticalComponents must be registered and healthy for the worker to be ready
var criticalComponents = []string{ComponentListener, ComponentDatabase}

// HealthStatus is the JSON body of the health and readiness endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last reported state of one component
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker tracks component health for the process
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
}

// NewHealthChecker returns an empty checker whose uptime starts now
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

var healthChecker = NewHealthChecker()

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// UpdateComponent records the current health of a component, registering it
// on first use
func UpdateComponent(name string, healthy bool, message string) {
	healthChecker.set(name, healthy, message)
}

// RegisterComponent is UpdateComponent for call sites that announce a component
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.set(name, healthy, message)
}

func (h *HealthChecker) set(name string, healthy bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.components[name] = ComponentHealth{
		Name:    name,
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

func (h *HealthChecker) status(state, message string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     state,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}
}

// GetHealth reports unhealthy if any registered component is unhealthy
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	state := StatusHealthy
	components := make(map[string]string, len(healthChecker.components))
	for name, comp := range healthChecker.components {
		if comp.Healthy {
			components[name] = StatusHealthy
			continue
		}
		state = StatusUnhealthy
		components[name] = StatusUnhealthy + ": " + comp.Message
	}

	return healthChecker.status(state, "", components)
}

// GetReadiness reports ready once the listener is bound and the database is
// reachable
func GetReadiness() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	state := StatusReady
	message := ""
	components := make(map[string]string, len(criticalComponents))
	for _, name := range criticalComponents {
		comp, ok := healthChecker.components[name]
		switch {
		case !ok:
			state = StatusNotReady
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		case !comp.Healthy:
			state = StatusNotReady
			message = "waiting for " + name
			components[name] = "not ready: " + comp.Message
		default:
			components[name] = StatusReady
		}
	}

	return healthChecker.status(state, message, components)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves /health
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// ReadyHandler serves /ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, readiness)
	}
}

// LivenessHandler serves /live, always 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}
