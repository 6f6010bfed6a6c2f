package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/pricing"
)

// PlanListerInterface はプランハンドラーが必要とするリポジトリインターフェース。
type PlanListerInterface interface {
	// ListActive は有効なプランを価格の昇順で返す。
	ListActive(ctx context.Context) ([]*model.Plan, error)
}

// PlanHandler はプラン一覧・カスタム料金計算のHTTPハンドラー。
type PlanHandler struct {
	plans PlanListerInterface
}

// NewPlanHandler はPlanHandlerを生成する。
func NewPlanHandler(plans PlanListerInterface) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// planResponse はプラン情報のAPIレスポンス。
type planResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	CPU          int     `json:"cpu"`
	RAMMB        int     `json:"ramMb"`
	DiskGB       int     `json:"diskGb"`
	Databases    int     `json:"databases"`
	Backups      int     `json:"backups"`
	PriceMonthly float64 `json:"priceMonthly"`
	IsCustom     bool    `json:"isCustom"`
}

// calculateRequest はカスタムプラン料金計算リクエストのボディ。
type calculateRequest struct {
	CPU       int `json:"cpu"`
	RAMMB     int `json:"ramMb"`
	DiskGB    int `json:"diskGb"`
	Databases int `json:"databases"`
	Backups   int `json:"backups"`
}

// List は販売中プランの一覧を返す。
// GET /api/plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]planResponse, len(plans))
	for i, p := range plans {
		results[i] = toPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, results)
}

// CalculateCustom はカスタムプランの月額料金見積もりを返す。
// 認証不要の参照系エンドポイントで、状態は一切変更しない。
// POST /api/plans/custom/calculate
func (h *PlanHandler) CalculateCustom(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if req.CPU < 1 || req.RAMMB < 512 || req.DiskGB < 1 || req.Databases < 0 || req.Backups < 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リソース量が許容範囲外です"))
		return
	}

	quote := pricing.Calculate(pricing.ResourceSpec{
		CPU:       req.CPU,
		RAMMB:     req.RAMMB,
		DiskGB:    req.DiskGB,
		Databases: req.Databases,
		Backups:   req.Backups,
	})
	writeJSON(w, http.StatusOK, quote)
}

func toPlanResponse(p *model.Plan) planResponse {
	return planResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		CPU:          p.CPU,
		RAMMB:        p.RAMMB,
		DiskGB:       p.DiskGB,
		Databases:    p.Databases,
		Backups:      p.Backups,
		PriceMonthly: p.PriceMonthly,
		IsCustom:     p.IsCustom,
	}
}
