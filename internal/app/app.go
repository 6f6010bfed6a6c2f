// Package app はアプリケーションの起動と依存関係の組み立てを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"golang.org/x/time/rate"

	"github.com/hitoshi/mbehosting/internal/auth"
	"github.com/hitoshi/mbehosting/internal/config"
	"github.com/hitoshi/mbehosting/internal/database"
	"github.com/hitoshi/mbehosting/internal/handler"
	"github.com/hitoshi/mbehosting/internal/logger"
	"github.com/hitoshi/mbehosting/internal/metrics"
	"github.com/hitoshi/mbehosting/internal/middleware"
	"github.com/hitoshi/mbehosting/internal/order"
	"github.com/hitoshi/mbehosting/internal/panel"
	"github.com/hitoshi/mbehosting/internal/payment"
	"github.com/hitoshi/mbehosting/internal/provision"
	"github.com/hitoshi/mbehosting/internal/repository"
	"github.com/hitoshi/mbehosting/internal/security"
	"github.com/hitoshi/mbehosting/internal/user"
	"github.com/hitoshi/mbehosting/internal/worker/cleanup"
	"github.com/hitoshi/mbehosting/internal/worker/provisionworker"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionCleanupInterval は期限切れセッション削除の実行間隔。
const sessionCleanupInterval = 24 * time.Hour

// shutdownTimeout はGraceful Shutdownの待機時間。
const shutdownTimeout = 10 * time.Second

// Run はサブコマンドを解釈してアプリケーションを起動する。
//
//	serve       APIサーバーとプロビジョニングワーカーを起動する（デフォルト）
//	worker      ワーカーのみを起動する（API・ワーカー分離デプロイ用）
//	migrate     マイグレーションを適用して終了する
//	healthcheck ローカルのAPIサーバーの死活確認を行う
func Run(w io.Writer, args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		return runServe(w, true)
	case "worker":
		return runWorker(w)
	case "migrate":
		return runMigrate(w)
	case "healthcheck":
		return runHealthcheck()
	default:
		return fmt.Errorf("unknown command %q (expected serve, worker, migrate, or healthcheck)", cmd)
	}
}

// deps はserve/workerで共有する組み立て済みの依存関係。
type deps struct {
	cfg       *config.Config
	log       *slog.Logger
	db        io.Closer
	collector *metrics.Collector
	registry  *prometheus.Registry

	sessionRepo repository.SessionRepository
	planRepo    repository.PlanRepository

	authSvc      *auth.Service
	userSvc      *user.Service
	orderSvc     *order.Service
	provisionSvc *provision.Service
	paymentSvc   *payment.Service

	serverRepoRaw *repository.PostgresServerRepo
	cleanupJob    *cleanup.SessionCleanupJob
}

// build は設定読み込みからサービス層までの依存関係を組み立てる。
func build(w io.Writer) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Setup(w, slog.LevelInfo)
	slog.SetDefault(log)

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := database.SeedDefaultPlans(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed plans: %w", err)
	}

	cipher, err := security.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize field cipher: %w", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	planRepo := repository.NewPostgresPlanRepo(db)
	orderRepo := repository.NewPostgresOrderRepo(db)
	serverRepo := repository.NewPostgresServerRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)

	authSvc := auth.NewService(userRepo, sessionRepo, cipher, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	userSvc := user.NewService(userRepo, sessionRepo, cipher)
	orderSvc := order.NewService(orderRepo, planRepo)

	// パネル未設定の場合はnilのままにし、プロビジョニングはpending_setupに縮退する
	var panelAPI provision.PanelAPI
	if cfg.PanelConfigured() {
		panelAPI = panel.NewClient(
			&http.Client{Timeout: cfg.PanelTimeout},
			log,
			cfg.PanelURL,
			cfg.PanelAPIKey,
		)
	} else {
		log.Warn("pterodactyl panel is not configured; servers will be created in pending_setup state")
	}
	provisionSvc := provision.NewService(serverRepo, orderRepo, panelAPI, collector, cfg.PanelTimeout)

	intents := &paymentintent.Client{
		B:   stripe.GetBackend(stripe.APIBackend),
		Key: cfg.StripeSecretKey,
	}
	paymentSvc := payment.NewService(intents, orderSvc, paymentRepo, provisionSvc, collector, cfg.StripePublishableKey)

	return &deps{
		cfg:           cfg,
		log:           log,
		db:            db,
		collector:     collector,
		registry:      registry,
		sessionRepo:   sessionRepo,
		planRepo:      planRepo,
		authSvc:       authSvc,
		userSvc:       userSvc,
		orderSvc:      orderSvc,
		provisionSvc:  provisionSvc,
		paymentSvc:    paymentSvc,
		serverRepoRaw: serverRepo,
		cleanupJob:    cleanup.NewSessionCleanupJob(db, log),
	}, nil
}

// runServe はAPIサーバーを起動する。withWorkerがtrueの場合は
// プロビジョニングワーカーとセッションクリーンアップも同一プロセスで動かす。
func runServe(w io.Writer, withWorker bool) error {
	d, err := build(w)
	if err != nil {
		return err
	}
	defer d.db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(d.cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    d.cfg.RateLimitGeneral,
		PaymentRate:     rate.Limit(float64(d.cfg.RateLimitPayment) / 60.0),
		PaymentBurst:    d.cfg.RateLimitPayment,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	authConfig := handler.AuthHandlerConfig{
		CookieDomain:  d.cfg.CookieDomain,
		CookieSecure:  d.cfg.CookieSecure,
		SessionMaxAge: d.cfg.SessionMaxAge,
	}
	csrfConfig := middleware.CSRFConfig{
		CookieSecure: d.cfg.CookieSecure,
		CookieDomain: d.cfg.CookieDomain,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:               d.log,
		SessionFinder:        d.sessionRepo,
		CORSAllowedOrigin:    d.cfg.CORSAllowedOrigin,
		CSRFConfig:           csrfConfig,
		RateLimiter:          rateLimiter,
		StatusRecorder:       d.collector,
		MetricsHandler:       metrics.Handler(d.registry),
		AuthService:          d.authSvc,
		AuthConfig:           authConfig,
		UserService:          d.userSvc,
		PlanLister:           d.planRepo,
		OrderService:         d.orderSvc,
		OrderLister:          d.orderSvc,
		OrderMetrics:         d.collector,
		PaymentService:       d.paymentSvc,
		ServerByOrderFinder:  d.serverRepoRaw,
		StripeWebhookSecret:  d.cfg.StripeWebhookSecret,
		StripePublishableKey: d.cfg.StripePublishableKey,
		ProvisionService:     d.provisionSvc,
		ServerLister:         d.provisionSvc,
	})

	if withWorker {
		go startWorkers(ctx, d)
	}

	srv := &http.Server{
		Addr:              ":" + d.cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("starting http server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	d.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runWorker はワーカーのみを起動する。API・ワーカーを分離してデプロイする場合に使う。
func runWorker(w io.Writer) error {
	d, err := build(w)
	if err != nil {
		return err
	}
	defer d.db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startWorkers(ctx, d)
	return nil
}

// startWorkers はプロビジョニングスケジューラとセッションクリーンアップを起動し、
// ctxがキャンセルされるまでブロックする。
func startWorkers(ctx context.Context, d *deps) {
	scheduler := provisionworker.NewScheduler(d.provisionSvc, d.log, d.cfg.ProvisionMaxConcurrent)

	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.cleanupJob.Run(ctx); err != nil {
					d.log.Error("session cleanup failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	scheduler.Start(ctx, d.cfg.ProvisionInterval)
}

// runMigrate はマイグレーションとシードだけを実行して終了する。
func runMigrate(w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Setup(w, slog.LevelInfo)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.SeedDefaultPlans(context.Background(), db); err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}

	log.Info("migrations applied")
	return nil
}

// runHealthcheck はローカルのAPIサーバーに対して死活確認を行う。
// コンテナのHEALTHCHECK用。
func runHealthcheck() error {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/health")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}
