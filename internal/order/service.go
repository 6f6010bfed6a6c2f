// Package order は注文ライフサイクルのドメインロジックを提供する。
package order

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/pricing"
	"github.com/hitoshi/mbehosting/internal/repository"
)

// recentOrdersLimit はダッシュボードに表示する注文件数の上限。
const recentOrdersLimit = 20

// Service は注文に関するビジネスロジックを提供する。
type Service struct {
	orderRepo repository.OrderRepository
	planRepo  repository.PlanRepository
}

// NewService はServiceを生成する。
func NewService(orderRepo repository.OrderRepository, planRepo repository.PlanRepository) *Service {
	return &Service{
		orderRepo: orderRepo,
		planRepo:  planRepo,
	}
}

// CreateInput は注文作成の入力。
// PlanIDが非nilならプラン注文、nilならカスタム注文として扱う。
// カスタム注文の価格はクライアントの申告値を使わず、常にサーバー側で再計算する。
type CreateInput struct {
	PlanID       *int64
	NodeLocation string
	CPU          int
	RAMMB        int
	DiskGB       int
	Databases    int
	Backups      int
}

// Create は注文をpending状態で作成する。
// プラン注文はプランのリソース量と価格をその時点のスナップショットとして保存し、
// 以後のプラン変更の影響を受けない。
func (s *Service) Create(ctx context.Context, userID int64, input CreateInput) (*model.Order, error) {
	order := &model.Order{
		UserID:       userID,
		NodeLocation: input.NodeLocation,
		Status:       model.OrderStatusPending,
	}

	if input.PlanID != nil {
		plan, err := s.planRepo.FindByID(ctx, *input.PlanID)
		if err != nil {
			return nil, fmt.Errorf("プランの取得に失敗しました: %w", err)
		}
		if plan == nil {
			return nil, model.NewPlanNotFoundError(*input.PlanID)
		}

		if plan.IsCustom {
			// Customプラン行はカタログ上のプレースホルダ。リソースは入力から取る。
			if err := validateResources(input); err != nil {
				return nil, err
			}
			quote := pricing.Calculate(pricing.ResourceSpec{
				CPU:       input.CPU,
				RAMMB:     input.RAMMB,
				DiskGB:    input.DiskGB,
				Databases: input.Databases,
				Backups:   input.Backups,
			})
			order.PlanID = input.PlanID
			order.CPU = input.CPU
			order.RAMMB = input.RAMMB
			order.DiskGB = input.DiskGB
			order.Databases = input.Databases
			order.Backups = input.Backups
			order.Price = quote.Total
		} else {
			order.PlanID = input.PlanID
			order.CPU = plan.CPU
			order.RAMMB = plan.RAMMB
			order.DiskGB = plan.DiskGB
			order.Databases = plan.Databases
			order.Backups = plan.Backups
			order.Price = plan.PriceMonthly
		}
	} else {
		if err := validateResources(input); err != nil {
			return nil, err
		}
		quote := pricing.Calculate(pricing.ResourceSpec{
			CPU:       input.CPU,
			RAMMB:     input.RAMMB,
			DiskGB:    input.DiskGB,
			Databases: input.Databases,
			Backups:   input.Backups,
		})
		order.CPU = input.CPU
		order.RAMMB = input.RAMMB
		order.DiskGB = input.DiskGB
		order.Databases = input.Databases
		order.Backups = input.Backups
		order.Price = quote.Total
	}

	id, err := s.orderRepo.Create(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("注文の作成に失敗しました: %w", err)
	}
	order.ID = id

	slog.Info("注文を作成しました",
		slog.Int64("order_id", id),
		slog.Int64("user_id", userID),
		slog.Float64("price", order.Price),
	)

	return order, nil
}

// validateResources はカスタム注文のリソース量を検証する。
func validateResources(input CreateInput) error {
	if input.CPU < 1 {
		return model.NewValidationError("CPUコア数は1以上を指定してください")
	}
	if input.RAMMB < 512 {
		return model.NewValidationError("RAMは512MB以上を指定してください")
	}
	if input.DiskGB < 1 {
		return model.NewValidationError("ディスクは1GB以上を指定してください")
	}
	if input.Databases < 0 || input.Backups < 0 {
		return model.NewValidationError("データベース数とバックアップ数は0以上を指定してください")
	}
	return nil
}

// Get は指定ユーザーの注文を取得する。
// 他ユーザーの注文はORDER_NOT_FOUNDになる（存在の漏洩を防ぐ）。
func (s *Service) Get(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	order, err := s.orderRepo.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError()
	}
	return order, nil
}

// ListRecent は指定ユーザーの注文を新しい順に返す。
func (s *Service) ListRecent(ctx context.Context, userID int64) ([]*model.Order, error) {
	orders, err := s.orderRepo.ListRecentByUser(ctx, userID, recentOrdersLimit)
	if err != nil {
		return nil, fmt.Errorf("注文一覧の取得に失敗しました: %w", err)
	}
	return orders, nil
}

// FindByIntent はintent参照で注文を検索する。見つからない場合はnilを返す。
// Webhook処理の内部用でユーザースコープはない。
func (s *Service) FindByIntent(ctx context.Context, intentID string) (*model.Order, error) {
	order, err := s.orderRepo.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("注文の検索に失敗しました: %w", err)
	}
	return order, nil
}

// AttachPaymentIntent は注文にpayment intent参照を記録する。
// 対象の注文が存在しない（発行と記録の間に消えた）場合はエラーを返し、
// 未記録のintentを残さない。
func (s *Service) AttachPaymentIntent(ctx context.Context, orderID, userID int64, intentID string) error {
	affected, err := s.orderRepo.SetPaymentIntent(ctx, orderID, userID, intentID)
	if err != nil {
		return fmt.Errorf("payment intentの記録に失敗しました: %w", err)
	}
	if affected == 0 {
		return model.NewOrderNotFoundError()
	}
	return nil
}

// MarkPaidByIntent はintent参照が一致する注文をpaidにする。
// 更新対象がなくてもエラーにしない（Webhook再配送に対して冪等）。
func (s *Service) MarkPaidByIntent(ctx context.Context, intentID string) error {
	affected, err := s.orderRepo.UpdateStatusByPaymentIntent(ctx, intentID, model.OrderStatusPaid)
	if err != nil {
		return fmt.Errorf("注文の支払い済み更新に失敗しました: %w", err)
	}
	if affected == 0 {
		slog.Warn("intent参照に一致する注文がありません",
			slog.String("payment_intent_id", intentID),
		)
	}
	return nil
}

// MarkFailedByIntent はintent参照が一致する注文をfailedにする。
func (s *Service) MarkFailedByIntent(ctx context.Context, intentID string) error {
	affected, err := s.orderRepo.UpdateStatusByPaymentIntent(ctx, intentID, model.OrderStatusFailed)
	if err != nil {
		return fmt.Errorf("注文の失敗更新に失敗しました: %w", err)
	}
	if affected == 0 {
		slog.Warn("intent参照に一致する注文がありません",
			slog.String("payment_intent_id", intentID),
		)
	}
	return nil
}
