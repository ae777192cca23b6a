// Package health provides HTTP health and readiness check handlers.
//
// The package exposes two endpoints:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 unless a required [Checker]
//     fails.
//
// Scoring needs only the content store; the analyzer and recognizer are
// optional dependencies. Checks marked [Checker.Optional] therefore report a
// "degraded" status without failing readiness.
//
// Responses are JSON objects with a top-level "status" field ("ok",
// "degraded" or "fail") and a "checks" map containing the result of each
// named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Status values reported in the response body.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker probes one dependency of the scoring service.
type Checker struct {
	// Name keys the check in the response, e.g. "content" or "analyzer".
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error

	// Optional marks a dependency the service can work without. Its failure
	// degrades readiness instead of failing it.
	Optional bool
}

// Pinger is implemented by dependencies that can probe their own backend,
// such as content stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a required [Checker] that calls p.Ping.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: slices.Clone(checkers)}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: StatusOK})
}

// Readyz returns 503 when a required [Checker] fails and 200 otherwise.
// Failed optional checkers turn the status into "degraded". Checkers run
// concurrently, each bounded by [checkTimeout] on top of the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	outcomes := h.run(r.Context())

	res := result{Status: StatusOK, Checks: make(map[string]string, len(outcomes))}
	code := http.StatusOK
	for i, c := range h.checkers {
		err := outcomes[i]
		switch {
		case err == nil:
			res.Checks[c.Name] = StatusOK
		case c.Optional:
			res.Checks[c.Name] = StatusDegraded + ": " + err.Error()
			if res.Status == StatusOK {
				res.Status = StatusDegraded
			}
		default:
			res.Checks[c.Name] = StatusFail + ": " + err.Error()
			res.Status = StatusFail
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, res)
}

// run evaluates every checker and returns their errors in checker order.
func (h *Handler) run(parent context.Context) []error {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(parent, checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
		})
	}
	wg.Wait()
	return errs
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, v result) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
