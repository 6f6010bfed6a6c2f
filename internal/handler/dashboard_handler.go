package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/mbehosting/internal/middleware"
	"github.com/hitoshi/mbehosting/internal/model"
)

// DashboardOrderLister はダッシュボードが必要とする注文一覧インターフェース。
type DashboardOrderLister interface {
	// ListRecent はユーザーの直近の注文を新しい順に返す。
	ListRecent(ctx context.Context, userID int64) ([]*model.Order, error)
}

// DashboardServerLister はダッシュボードが必要とするサーバー一覧インターフェース。
type DashboardServerLister interface {
	// List はユーザーのサーバー一覧を返す。
	List(ctx context.Context, userID int64) ([]*model.Server, error)
}

// DashboardHandler はダッシュボード表示用のHTTPハンドラー。
// 注文とサーバーを1リクエストでまとめて返す。
type DashboardHandler struct {
	orders  DashboardOrderLister
	servers DashboardServerLister
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(orders DashboardOrderLister, servers DashboardServerLister) *DashboardHandler {
	return &DashboardHandler{
		orders:  orders,
		servers: servers,
	}
}

// dashboardResponse はダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	Orders  []orderResponse  `json:"orders"`
	Servers []serverResponse `json:"servers"`
}

// Show はダッシュボードデータを返す。
// GET /api/dashboard
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	orders, err := h.orders.ListRecent(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	servers, err := h.servers.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := dashboardResponse{
		Orders:  make([]orderResponse, len(orders)),
		Servers: make([]serverResponse, len(servers)),
	}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	for i, s := range servers {
		resp.Servers[i] = toServerResponse(s)
	}

	writeJSON(w, http.StatusOK, resp)
}
