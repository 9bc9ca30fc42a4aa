package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginLimiterBurst(t *testing.T) {
	limiter := newLoginLimiter()

	for i := 0; i < loginBurst; i++ {
		if !limiter.allow("10.0.0.1") {
			t.Fatalf("attempt %d within burst was denied", i+1)
		}
	}
	if limiter.allow("10.0.0.1") {
		t.Fatal("attempt past burst was allowed")
	}
	if !limiter.allow("10.0.0.2") {
		t.Fatal("separate client was denied")
	}
}

func TestLoginLimiterPrune(t *testing.T) {
	limiter := newLoginLimiter()
	limiter.allow("stale")
	limiter.limiters["stale"].lastSeen = time.Now().Add(-2 * limiterIdleTTL)

	limiter.prune(time.Now())
	if _, ok := limiter.limiters["stale"]; ok {
		t.Fatal("stale entry survived prune")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	if got := clientKey(req); got != "192.0.2.1" {
		t.Errorf("clientKey = %q, want %q", got, "192.0.2.1")
	}

	req.RemoteAddr = "192.0.2.2"
	if got := clientKey(req); got != "192.0.2.2" {
		t.Errorf("clientKey = %q, want %q", got, "192.0.2.2")
	}
}
