package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// loginBurst mirrors the limiter the server wires in front of
// /api/auth/login/: five quick attempts, then one every six seconds.
const loginBurst = 5

func newLoginLimiter() *IPRateLimiter {
	return NewIPRateLimiter(rate.Every(6*time.Second), loginBurst)
}

func attemptLogin(handler http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLoginLimiter_AllowsBurst(t *testing.T) {
	handler := RateLimitHandler(newLoginLimiter(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	for i := 0; i < loginBurst; i++ {
		if rec := attemptLogin(handler, "192.168.1.10"); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected the login handler to run, got %d", i+1, rec.Code)
		}
	}
}

func TestLoginLimiter_ThrottlesAfterBurst(t *testing.T) {
	handler := RateLimitHandler(newLoginLimiter(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < loginBurst; i++ {
		attemptLogin(handler, "10.0.0.1")
	}

	rec := attemptLogin(handler, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "too many requests" {
		t.Errorf("expected throttle error body, got %q", body["error"])
	}
}

func TestLoginLimiter_OneGuessingClientDoesNotLockOutOthers(t *testing.T) {
	handler := RateLimitHandler(newLoginLimiter(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < loginBurst+1; i++ {
		attemptLogin(handler, "203.0.113.5")
	}
	if rec := attemptLogin(handler, "203.0.113.5"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("guessing client: expected 429, got %d", rec.Code)
	}

	if rec := attemptLogin(handler, "203.0.113.9"); rec.Code != http.StatusOK {
		t.Fatalf("other client: expected 200, got %d", rec.Code)
	}
}

func TestLoginLimiter_ProxiedClientsKeyOnForwardedIP(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(6*time.Second), 1)
	handler := RateLimitHandler(limiter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Both requests arrive from the proxy's address; the forwarded client
	// decides the bucket.
	send := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil)
		req.RemoteAddr = "172.16.0.2:443"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("198.51.100.7, 172.16.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("first client: expected 200, got %d", rec.Code)
	}
	if rec := send("198.51.100.7, 172.16.0.2"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first client again: expected 429, got %d", rec.Code)
	}
	if rec := send("198.51.100.8, 172.16.0.2"); rec.Code != http.StatusOK {
		t.Fatalf("second client behind same proxy: expected 200, got %d", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	cases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr only", "192.0.2.1:54321", nil, "192.0.2.1"},
		{"x-forwarded-for first hop", "172.16.0.2:443", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, "203.0.113.50"},
		{"x-real-ip", "172.16.0.2:443", map[string]string{"X-Real-IP": "198.51.100.10"}, "198.51.100.10"},
		{"forwarded-for wins over real-ip", "172.16.0.2:443", map[string]string{"X-Forwarded-For": "203.0.113.50", "X-Real-IP": "198.51.100.10"}, "203.0.113.50"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRateLimitHandlerFunc_WrapsLoginHandler(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Every(6*time.Second), 1)
	handler := RateLimitHandlerFunc(limiter, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login/", nil)
	req.RemoteAddr = "10.0.0.5:9999"

	rec := httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}
