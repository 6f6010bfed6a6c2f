package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/mbehosting/internal/model"
)

func testRateLimiterConfig(burst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    burst,
		PaymentRate:     rate.Limit(1.0 / 60.0),
		PaymentBurst:    burst,
		CleanupInterval: time.Minute,
	}
}

func authedRequest(userID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	ctx := ContextWithSessionUser(req.Context(), model.SessionUser{ID: userID, Email: "a@example.com"})
	return req.WithContext(ctx)
}

func TestGeneralMiddleware_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(3))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, authedRequest(1))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func TestGeneralMiddleware_RejectsOverBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry Retry-After")
	}
}

func TestGeneralMiddleware_LimitsPerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(1))

	// 別ユーザーは独立したリミッター
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(2))
	if rec.Code != http.StatusOK {
		t.Errorf("other user: status = %d, want 200", rec.Code)
	}
	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestPaymentMiddleware_IndependentOfGeneral(t *testing.T) {
	config := testRateLimiterConfig(1)
	config.GeneralBurst = 100
	rl := NewRateLimiter(config)
	defer rl.Stop()

	paymentHandler := rl.PaymentMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	rec := httptest.NewRecorder()
	paymentHandler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusOK {
		t.Fatalf("first payment request: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	paymentHandler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second payment request: status = %d, want 429", rec.Code)
	}

	// 決済系が枯渇してもAPI全般は通る
	rec = httptest.NewRecorder()
	generalHandler.ServeHTTP(rec, authedRequest(1))
	if rec.Code != http.StatusOK {
		t.Errorf("general request: status = %d, want 200", rec.Code)
	}
}

func TestGeneralMiddleware_UnauthenticatedReturns401(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
