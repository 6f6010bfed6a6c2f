package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/hitoshi/mbehosting/internal/middleware"
	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/payment"
)

// stripeWebhookBodyLimit はWebhookボディの最大サイズ（1MiB）。
const stripeWebhookBodyLimit = 1 << 20

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	// CreateIntent は注文に対するPayment Intentを発行する。
	CreateIntent(ctx context.Context, userID, orderID int64) (*payment.IntentResult, error)
	// HandleEvent は署名検証済みのWebhookイベントを処理する。
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// ServerByOrderFinder は注文IDでのサーバー検索インターフェース。
// 決済完了ページでプロビジョニング状況を返すために使用する。
type ServerByOrderFinder interface {
	FindByOrderID(ctx context.Context, orderID int64) (*model.Server, error)
}

// PaymentHandler は決済関連のHTTPハンドラー。
type PaymentHandler struct {
	service        PaymentServiceInterface
	orders         OrderServiceInterface
	servers        ServerByOrderFinder
	webhookSecret  string
	publishableKey string
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface, orders OrderServiceInterface, servers ServerByOrderFinder, webhookSecret, publishableKey string) *PaymentHandler {
	return &PaymentHandler{
		service:        service,
		orders:         orders,
		servers:        servers,
		webhookSecret:  webhookSecret,
		publishableKey: publishableKey,
	}
}

// createIntentRequest はPayment Intent発行リクエストのボディ。
type createIntentRequest struct {
	OrderID int64 `json:"orderId"`
}

// checkoutResponse はチェックアウトページ表示用のAPIレスポンス。
type checkoutResponse struct {
	Order          orderResponse `json:"order"`
	PublishableKey string        `json:"publishableKey"`
}

// paymentStatusResponse は決済完了ページ表示用のAPIレスポンス。
// サーバーはプロビジョニング行が作られるまでnull。
type paymentStatusResponse struct {
	Order  orderResponse   `json:"order"`
	Server *serverResponse `json:"server"`
}

// CreateIntent はPayment Intentを発行する。
// POST /api/payment/intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.OrderID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("orderIdは必須です"))
		return
	}

	result, err := h.service.CreateIntent(r.Context(), userID, req.OrderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Checkout はチェックアウトページ表示用の注文情報を返す。
// GET /api/payment/checkout/{orderID}
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewOrderNotFoundError())
		return
	}

	order, err := h.orders.Get(r.Context(), orderID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if order.Status != model.OrderStatusPending {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("この注文は支払い待ちではありません"))
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Order:          toOrderResponse(order),
		PublishableKey: h.publishableKey,
	})
}

// Success は決済後の注文とプロビジョニング状況を返す。
// Webhook処理は非同期のため、フロントエンドはこのエンドポイントをポーリングする。
// GET /api/payment/success/{orderID}
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewOrderNotFoundError())
		return
	}

	order, err := h.orders.Get(r.Context(), orderID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := paymentStatusResponse{Order: toOrderResponse(order)}
	server, err := h.servers.FindByOrderID(r.Context(), orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if server != nil {
		sr := toServerResponse(server)
		resp.Server = &sr
	}

	writeJSON(w, http.StatusOK, resp)
}

// Webhook はStripeからのWebhookを処理する。
// 署名検証に失敗した場合は一切の状態変更なしに400を返す。
// POST /payment/webhook
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, stripeWebhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		slog.Warn("stripe webhook signature verification failed",
			slog.String("error", err.Error()),
		)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	if err := h.service.HandleEvent(r.Context(), &event); err != nil {
		slog.Error("stripe webhook processing failed",
			slog.String("event_id", event.ID),
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
