package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/mbehosting/internal/middleware"
	"github.com/hitoshi/mbehosting/internal/model"
)

// mockSessionFinder はmiddleware.SessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func newTestRouter(finder middleware.SessionFinder) http.Handler {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     1000,
		GeneralBurst:    1000,
		PaymentRate:     1000,
		PaymentBurst:    1000,
		CleanupInterval: time.Minute,
	})

	return NewRouter(&RouterDeps{
		Logger:               slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
		SessionFinder:        finder,
		CORSAllowedOrigin:    "http://localhost:3000",
		CSRFConfig:           middleware.CSRFConfig{},
		RateLimiter:          rl,
		AuthService:          &mockAuthService{},
		AuthConfig:           testAuthConfig(),
		UserService:          &mockUserService{},
		PlanLister:           &mockPlanLister{},
		OrderService:         &mockOrderService{},
		OrderLister:          &mockOrderLister{},
		PaymentService:       &mockPaymentService{},
		ServerByOrderFinder:  &mockServerByOrderFinder{},
		StripeWebhookSecret:  testWebhookSecret,
		StripePublishableKey: "pk_test_123",
		ProvisionService:     &mockProvisionService{},
		ServerLister:         &mockServerLister{},
	})
}

func TestRouter_PublicRoutes(t *testing.T) {
	router := newTestRouter(&mockSessionFinder{})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/csrf-token", http.StatusOK},
		{http.MethodGet, "/api/plans", http.StatusOK},
		{http.MethodPost, "/api/plans/custom/calculate", http.StatusBadRequest}, // 空ボディ
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRouter_AuthedRoutesRequireSession(t *testing.T) {
	router := newTestRouter(&mockSessionFinder{})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/dashboard"},
		{http.MethodGet, "/api/profile"},
		{http.MethodGet, "/api/orders/1"},
		{http.MethodGet, "/api/servers"},
		{http.MethodPost, "/api/payment/intent"},
		{http.MethodGet, "/auth/me"},
	}
	for _, tt := range paths {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRouter_SessionCookieGrantsAccess(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id != "session-abc" {
				return nil, nil
			}
			return &model.Session{
				ID:     id,
				UserID: 42,
				User:   model.SessionUser{ID: 42, Email: "taro@example.com"},
			}, nil
		},
	}
	router := newTestRouter(finder)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRouter_MutatingRouteRequiresCSRF(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: 42, User: model.SessionUser{ID: 42}}, nil
		},
	}
	router := newTestRouter(finder)

	// セッションはあるがCSRFトークンがない
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{"planId":1}`))
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_WebhookBypassesSessionAuth(t *testing.T) {
	router := newTestRouter(&mockSessionFinder{})

	// セッションなしで到達できるが、署名がなければ400
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(&mockSessionFinder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}
