package healthprobe

import (
	"net/http"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker backs the liveness and readiness endpoints. Liveness is
// unconditional; readiness flips on once the engine components are started.
type HealthChecker struct {
	startTime time.Time
	ready     atomic.Bool
}

// New creates a health checker.
func New() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the engine ready (or not) to serve traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Message string `json:"message,omitempty"`
}

// Health returns the liveness handler. 200 whenever the process is up.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, http.StatusOK, probeResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns the readiness handler. 503 until SetReady(true).
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			writeProbe(w, http.StatusServiceUnavailable, probeResponse{
				Status:  "not_ready",
				Message: "engine is starting",
			})
			return
		}
		writeProbe(w, http.StatusOK, probeResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func writeProbe(w http.ResponseWriter, status int, resp probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
