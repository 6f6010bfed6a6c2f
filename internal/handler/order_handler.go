package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mbehosting/internal/middleware"
	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/order"
)

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	// Create は注文を作成する。プラン注文はプランのリソースと価格をスナップショットする。
	Create(ctx context.Context, userID int64, input order.CreateInput) (*model.Order, error)
	// Get は本人の注文を取得する。
	Get(ctx context.Context, orderID, userID int64) (*model.Order, error)
}

// OrderMetricsRecorder は注文作成メトリクスの記録インターフェース。
type OrderMetricsRecorder interface {
	OrderCreated()
}

// OrderHandler は注文管理のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
	metrics OrderMetricsRecorder
}

// NewOrderHandler はOrderHandlerを生成する。metricsはnil許容。
func NewOrderHandler(service OrderServiceInterface, metrics OrderMetricsRecorder) *OrderHandler {
	return &OrderHandler{
		service: service,
		metrics: metrics,
	}
}

// createOrderRequest は注文作成リクエストのボディ。
// planIdを指定するとプラン注文、省略するとカスタム注文になる。
type createOrderRequest struct {
	PlanID       *int64 `json:"planId"`
	NodeLocation string `json:"nodeLocation"`
	CPU          int    `json:"cpu"`
	RAMMB        int    `json:"ramMb"`
	DiskGB       int    `json:"diskGb"`
	Databases    int    `json:"databases"`
	Backups      int    `json:"backups"`
}

// orderResponse は注文情報のAPIレスポンス。
type orderResponse struct {
	ID           int64     `json:"id"`
	PlanID       *int64    `json:"planId"`
	PlanName     string    `json:"planName"`
	NodeLocation string    `json:"nodeLocation"`
	CPU          int       `json:"cpu"`
	RAMMB        int       `json:"ramMb"`
	DiskGB       int       `json:"diskGb"`
	Databases    int       `json:"databases"`
	Backups      int       `json:"backups"`
	Price        float64   `json:"price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Create は注文作成を処理する。
// POST /api/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	created, err := h.service.Create(r.Context(), userID, order.CreateInput{
		PlanID:       req.PlanID,
		NodeLocation: req.NodeLocation,
		CPU:          req.CPU,
		RAMMB:        req.RAMMB,
		DiskGB:       req.DiskGB,
		Databases:    req.Databases,
		Backups:      req.Backups,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.OrderCreated()
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

// Get は注文詳細を取得する。本人の注文以外は404を返す。
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewOrderNotFoundError())
		return
	}

	found, err := h.service.Get(r.Context(), orderID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(found))
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		PlanID:       o.PlanID,
		PlanName:     o.PlanName,
		NodeLocation: o.NodeLocation,
		CPU:          o.CPU,
		RAMMB:        o.RAMMB,
		DiskGB:       o.DiskGB,
		Databases:    o.Databases,
		Backups:      o.Backups,
		Price:        o.Price,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
	}
}
