package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker is one named dependency probed by /health.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// Pinger is anything that can report its own availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts a Pinger (archive, media store) to HealthChecker.
type PingChecker struct {
	Target  Pinger
	Timeout time.Duration
}

func (p PingChecker) Check(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Target.Ping(ctx)
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// runChecks probes all checkers in parallel; one failure marks the whole
// service unhealthy.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) HealthStatus {
	health := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckStatus, len(checkers)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := CheckStatus{Status: "healthy"}
			if err := checker.Check(ctx); err != nil {
				st = CheckStatus{Status: "unhealthy", Message: err.Error()}
			}
			mu.Lock()
			health.Checks[name] = st
			if st.Status != "healthy" {
				health.Status = "unhealthy"
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return health
}

// HealthHandler answers 200 when every checker passes and 503 otherwise.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := runChecks(ctx, checkers)
		code := http.StatusOK
		if health.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// ReadinessHandler reports whether the service can take uploads.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := runChecks(ctx, checkers)
		if health.Status != "healthy" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "timestamp": health.Timestamp})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "timestamp": health.Timestamp})
	}
}

// LivenessHandler only proves the process is serving.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
