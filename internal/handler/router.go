package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mbehosting/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// 監視
	MetricsHandler http.Handler

	// 認証・ユーザー
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	UserService UserServiceInterface

	// プラン・注文
	PlanLister   PlanListerInterface
	OrderService OrderServiceInterface
	OrderLister  DashboardOrderLister
	OrderMetrics OrderMetricsRecorder

	// 決済
	PaymentService       PaymentServiceInterface
	ServerByOrderFinder  ServerByOrderFinder
	StripeWebhookSecret  string
	StripePublishableKey string

	// サーバー
	ProvisionService ProvisionServiceInterface
	ServerLister     DashboardServerLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → (認証ルートのみ) Session → CSRF → RateLimit(General)
//
// Webhook・ヘルスチェック・プラン参照・登録/ログインは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	planHandler := NewPlanHandler(deps.PlanLister)
	orderHandler := NewOrderHandler(deps.OrderService, deps.OrderMetrics)
	paymentHandler := NewPaymentHandler(
		deps.PaymentService,
		deps.OrderService,
		deps.ServerByOrderFinder,
		deps.StripeWebhookSecret,
		deps.StripePublishableKey,
	)
	serverHandler := NewServerHandler(deps.ProvisionService)
	dashboardHandler := NewDashboardHandler(deps.OrderLister, deps.ServerLister)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// プラン参照（未ログインでも料金を確認できる）
	r.Get("/api/plans", planHandler.List)
	r.Post("/api/plans/custom/calculate", planHandler.CalculateCustom)

	// 登録・ログイン
	r.Post("/auth/register", authHandler.Register)
	r.Post("/auth/login", authHandler.Login)

	// Stripe Webhook（署名検証がCookieの代わりの認証になる）
	r.Post("/payment/webhook", paymentHandler.Webhook)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// セッション管理
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)

		// ダッシュボード・プロフィール
		r.Get("/api/dashboard", dashboardHandler.Show)
		r.Get("/api/profile", userHandler.Profile)
		r.Delete("/api/users/me", userHandler.Withdraw)

		// 注文管理
		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", orderHandler.Create)
			r.Get("/{id}", orderHandler.Get)
		})

		// サーバー管理
		r.Route("/api/servers", func(r chi.Router) {
			r.Get("/", serverHandler.List)
			r.Post("/", serverHandler.Reprovision)
			r.Get("/{id}", serverHandler.Get)
		})

		// 決済（決済専用レート制限を追加）
		r.Route("/api/payment", func(r chi.Router) {
			r.With(deps.RateLimiter.PaymentMiddleware()).Post("/intent", paymentHandler.CreateIntent)
			r.With(deps.RateLimiter.PaymentMiddleware()).Get("/checkout/{orderID}", paymentHandler.Checkout)
			r.With(deps.RateLimiter.PaymentMiddleware()).Get("/success/{orderID}", paymentHandler.Success)
		})
	})

	return r
}
