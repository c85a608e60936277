package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/persistorai/credsync/internal/middleware"
)

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.RemoteAddr = ip + ":1234"
	return req
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := okRouter(middleware.NewRateLimiter(ctx, 1, 2).Handler())

	for i := range 3 {
		w := serve(t, r, requestFrom("1.2.3.4"))

		if i < 2 && w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
		if i == 2 && w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d: expected 429, got %d", i, w.Code)
		}
	}
}

func TestRateLimiter_IndependentClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := okRouter(middleware.NewRateLimiter(ctx, 1, 1).Handler())

	serve(t, r, requestFrom("1.1.1.1"))

	if w := serve(t, r, requestFrom("2.2.2.2")); w.Code != http.StatusOK {
		t.Fatalf("different IP should not be rate limited, got %d", w.Code)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := okRouter(middleware.NewRateLimiter(ctx, 1e6, 2).Handler())

	for range 2 {
		serve(t, r, requestFrom("5.5.5.5"))
	}

	if w := serve(t, r, requestFrom("5.5.5.5")); w.Code != http.StatusOK {
		t.Fatalf("expected tokens to refill, got %d", w.Code)
	}
}
