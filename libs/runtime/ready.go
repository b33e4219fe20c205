package runtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
// Optional checks are reported in the body but never fail readiness.
type ReadyCheck struct {
	Name     string
	Check    func(context.Context) error
	Optional bool
}

func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		failures, warnings := RunChecks(r.Context(), checks)
		if len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Join(append(failures, warnings...), "; ")))
			return
		}
		w.WriteHeader(http.StatusOK)
		if len(warnings) > 0 {
			_, _ = w.Write([]byte("ok (degraded: " + strings.Join(warnings, "; ") + ")"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// RunChecks runs every check concurrently with a 2s budget each.
func RunChecks(ctx context.Context, checks []ReadyCheck) (failures []string, warnings []string) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		wg.Add(1)
		go func(check ReadyCheck) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := check.Check(checkCtx)
			cancel()
			if err == nil {
				return
			}
			name := check.Name
			if name == "" {
				name = "dependency"
			}
			mu.Lock()
			defer mu.Unlock()
			if check.Optional {
				warnings = append(warnings, name+": "+err.Error())
			} else {
				failures = append(failures, name+": "+err.Error())
			}
		}(check)
	}
	wg.Wait()
	return failures, warnings
}
