package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSPreflight(t *testing.T) {
	h := WithCORS(CORSPolicy{
		AllowedOrigins: []string{"https://shop.example.com"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Idempotency-Key"},
		ExposedHeaders: []string{RequestIDHeader},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("preflight must not reach the handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookings", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rw.Code)
	}
	if got := rw.Header().Get("Access-Control-Allow-Headers"); got != "Authorization, Idempotency-Key" {
		t.Fatalf("unexpected allow headers %q", got)
	}
	if got := rw.Header().Get("Access-Control-Expose-Headers"); got != RequestIDHeader {
		t.Fatalf("unexpected expose headers %q", got)
	}
}

func TestCORSUnknownOriginPassesThrough(t *testing.T) {
	called := false
	h := WithCORS(CORSPolicy{AllowedOrigins: []string{"https://shop.example.com"}})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if !called {
		t.Fatal("expected handler to run")
	}
	if rw.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers for unknown origin")
	}
}
