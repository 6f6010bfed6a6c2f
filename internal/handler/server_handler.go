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
)

// ProvisionServiceInterface はサーバーハンドラーが必要とするサービスインターフェース。
type ProvisionServiceInterface interface {
	// Get は本人のサーバーを取得する。
	Get(ctx context.Context, serverID, userID int64) (*model.Server, error)
	// List は本人のサーバー一覧を返す。
	List(ctx context.Context, userID int64) ([]*model.Server, error)
	// Reprovision は支払い済み注文のプロビジョニングを再始動する。
	Reprovision(ctx context.Context, orderID, userID int64) (*model.Server, error)
}

// ServerHandler はサーバー管理のHTTPハンドラー。
type ServerHandler struct {
	service ProvisionServiceInterface
}

// NewServerHandler はServerHandlerを生成する。
func NewServerHandler(service ProvisionServiceInterface) *ServerHandler {
	return &ServerHandler{service: service}
}

// reprovisionRequest はプロビジョニング再始動リクエストのボディ。
type reprovisionRequest struct {
	OrderID int64 `json:"orderId"`
}

// serverResponse はサーバー情報のAPIレスポンス。
type serverResponse struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"orderId"`
	PanelServerID *int64    `json:"panelServerId"`
	ServerName    string    `json:"serverName"`
	NodeLocation  string    `json:"nodeLocation"`
	CPU           int       `json:"cpu"`
	RAMMB         int       `json:"ramMb"`
	DiskGB        int       `json:"diskGb"`
	Status        string    `json:"status"`
	IPAddress     string    `json:"ipAddress"`
	Port          int       `json:"port"`
	CreatedAt     time.Time `json:"createdAt"`
}

// List はユーザーのサーバー一覧を返す。
// GET /api/servers
func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	servers, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]serverResponse, len(servers))
	for i, s := range servers {
		results[i] = toServerResponse(s)
	}
	writeJSON(w, http.StatusOK, results)
}

// Get はサーバー詳細を取得する。本人のサーバー以外は404を返す。
// GET /api/servers/{id}
func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	serverID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewServerNotFoundError())
		return
	}

	server, err := h.service.Get(r.Context(), serverID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toServerResponse(server))
}

// Reprovision は支払い済み注文のプロビジョニングを再始動する。
// 失敗状態のサーバーは作成待ちに戻し、ワーカーが再処理する。
// POST /api/servers
func (h *ServerHandler) Reprovision(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req reprovisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.OrderID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("orderIdは必須です"))
		return
	}

	server, err := h.service.Reprovision(r.Context(), req.OrderID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toServerResponse(server))
}

func toServerResponse(s *model.Server) serverResponse {
	return serverResponse{
		ID:            s.ID,
		OrderID:       s.OrderID,
		PanelServerID: s.PanelServerID,
		ServerName:    s.ServerName,
		NodeLocation:  s.NodeLocation,
		CPU:           s.CPU,
		RAMMB:         s.RAMMB,
		DiskGB:        s.DiskGB,
		Status:        string(s.Status),
		IPAddress:     s.IPAddress,
		Port:          s.Port,
		CreatedAt:     s.CreatedAt,
	}
}
