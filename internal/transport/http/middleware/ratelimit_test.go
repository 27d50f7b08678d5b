package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/ratelimit"
)

func TestClientID(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded-for single", map[string]string{"X-Forwarded-For": "1.2.3.4"}, "1.2.3.4"},
		{"forwarded-for chain takes first hop", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "1.2.3.4"},
		{"real-ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "5.6.7.8"},
		{"cf-connecting-ip", map[string]string{"CF-Connecting-IP": "9.9.9.9"}, "9.9.9.9"},
		{"forwarded-for wins over real-ip", map[string]string{"X-Forwarded-For": "1.1.1.1", "X-Real-IP": "2.2.2.2"}, "1.1.1.1"},
		{"no headers", nil, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientID(r); got != tt.want {
				t.Errorf("ClientID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRateLimitDenial(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 2)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/download", nil)
		r.Header.Set("X-Forwarded-For", "1.2.3.4")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("denied response must carry Retry-After")
	}

	var body domain.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != domain.ErrRateLimited.Error() {
		t.Errorf("error = %q, want %q", body.Error, domain.ErrRateLimited.Error())
	}
	if body.RemainingRequests == nil || *body.RemainingRequests != 0 {
		t.Errorf("remainingRequests = %v, want 0", body.RemainingRequests)
	}
	if body.ResetTime == nil || *body.ResetTime <= time.Now().Add(-time.Second).UnixMilli() {
		t.Errorf("resetTime = %v, want a future epoch-millis timestamp", body.ResetTime)
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/download", nil)
		r.Header.Set("X-Real-IP", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	if send("1.1.1.1") != http.StatusOK {
		t.Fatal("first client's first request must pass")
	}
	if send("1.1.1.1") != http.StatusTooManyRequests {
		t.Fatal("first client's second request must be denied")
	}
	if send("2.2.2.2") != http.StatusOK {
		t.Fatal("second client must not share the first client's window")
	}
}

func TestRateLimitExposesRemaining(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 5)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodPost, "/api/download", nil)
	r.Header.Set("X-Real-IP", "1.2.3.4")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}
}
