// Package health implements the liveness and readiness endpoints. Liveness
// only says the process is up; readiness runs registered dependency checks
// and fails when a critical one fails.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/minimart/order-service/pkg/httputil"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	mu           sync.RWMutex
	checks       []check
	checkTimeout time.Duration
}

// NewHandler returns a Handler whose individual checks are bounded by
// checkTimeout (defaulting to 2s when non-positive).
func NewHandler(checkTimeout time.Duration) *Handler {
	if checkTimeout <= 0 {
		checkTimeout = 2 * time.Second
	}
	return &Handler{checkTimeout: checkTimeout}
}

// Register adds a named dependency check. Critical checks gate readiness;
// non-critical ones are reported but do not fail it.
func (h *Handler) Register(name string, critical bool, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check{name: name, critical: critical, fn: fn})
}

// Live reports process liveness.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Critical bool   `json:"critical"`
}

// Ready runs all registered checks and reports per-dependency status. Any
// failing critical check turns the response into a 503.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := make([]check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	results := make(map[string]checkResult, len(checks))
	ready := true

	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
		err := c.fn(ctx)
		cancel()

		result := checkResult{Status: "ok", Critical: c.critical}
		if err != nil {
			result.Status = "failing"
			result.Error = err.Error()
			if c.critical {
				ready = false
			}
		}
		results[c.name] = result
	}

	status := http.StatusOK
	overall := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		overall = "not ready"
	}

	httputil.WriteJSON(w, status, map[string]any{
		"status": overall,
		"checks": results,
	})
}
