package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestRateLimitConcurrentClients(t *testing.T) {
	h := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 100, 100)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
				req.RemoteAddr = fmt.Sprintf("10.0.%d.%d:4242", n, j)
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				if rec.Code != http.StatusOK {
					t.Errorf("fresh client rejected: %d", rec.Code)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	h := RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), 2, 1)

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/v1/loans", nil)
		req.RemoteAddr = "203.0.113.7:9000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first request rejected: %d", code)
	}
	if code := do(); code != http.StatusOK {
		t.Fatalf("second request rejected: %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("burst overflow not limited: %d", code)
	}

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodGet, "/v1/loans", nil)
	req.RemoteAddr = "203.0.113.8:9000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unrelated client limited: %d", rec.Code)
	}
}
