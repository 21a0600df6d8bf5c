// Package health provides HTTP health and readiness handlers.
//
// Three endpoints are exposed:
//
//   - /health  — public service status; always 200 so clients behind flaky
//     networks can still read the payload. Includes a "ready" flag derived
//     from the registered checkers.
//   - /healthz — liveness probe; always 200.
//   - /readyz  — readiness probe; 200 only when every registered [Checker]
//     passes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named dependency probe. Check returns nil when healthy and
// must respect context cancellation.
type Checker struct {
	// Name keys the check's result in the JSON response ("database",
	// "tts", ...).
	Name string

	Check func(ctx context.Context) error
}

// probeResult is the JSON body for /healthz and /readyz.
type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// serviceStatus is the JSON body for the public /health endpoint.
type serviceStatus struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Ready     bool   `json:"ready"`
}

// Handler serves the health endpoints. The checker list is fixed at
// construction; Handler is safe for concurrent use.
type Handler struct {
	service  string
	version  string
	checkers []Checker
	now      func() time.Time
}

// New creates a [Handler] evaluating the given checkers in order on each
// readiness request.
func New(service, version string, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{service: service, version: version, checkers: c, now: time.Now}
}

// Health is the public status endpoint. It always answers 200: an emergency
// client must be able to read the ready flag even when a dependency is down.
// Degradation is encoded in the body, never in the status code.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.ready(r.Context())
	status := "healthy"
	if !ready {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, serviceStatus{
		Status:    status,
		Service:   h.service,
		Version:   h.version,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Ready:     ready,
	})
}

// Healthz is a liveness probe. A process that serves HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResult{Status: "ok"})
}

// Readyz answers 200 only when every registered [Checker] passes. Each check
// runs with a [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := probeResult{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// ready reports whether every checker currently passes.
func (h *Handler) ready(ctx context.Context) bool {
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()
		if err != nil {
			return false
		}
	}
	return true
}

// Register adds the health routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
