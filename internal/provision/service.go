// Package provision はホスティングサーバーのプロビジョニングロジックを提供する。
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mbehosting/internal/model"
	"github.com/hitoshi/mbehosting/internal/panel"
	"github.com/hitoshi/mbehosting/internal/repository"
)

// PanelAPI はパネルのサーバー作成インターフェース。
// パネルが未設定の環境ではnilになり、縮退モード（pending_setup）で動作する。
type PanelAPI interface {
	CreateServer(ctx context.Context, input panel.CreateServerInput) (int64, error)
}

// MetricsRecorder はプロビジョニング結果の計測インターフェース。nil可。
type MetricsRecorder interface {
	ProvisionSucceeded(duration time.Duration)
	ProvisionFailed()
	ProvisionPendingSetup()
}

// Service はプロビジョニングのサービス層。
type Service struct {
	serverRepo repository.ServerRepository
	orderRepo  repository.OrderRepository
	panelAPI   PanelAPI
	metrics    MetricsRecorder
	timeout    time.Duration
}

// NewService はServiceを生成する。panelAPIとmetricsはnil可。
func NewService(
	serverRepo repository.ServerRepository,
	orderRepo repository.OrderRepository,
	panelAPI PanelAPI,
	metrics MetricsRecorder,
	timeout time.Duration,
) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		serverRepo: serverRepo,
		orderRepo:  orderRepo,
		panelAPI:   panelAPI,
		metrics:    metrics,
		timeout:    timeout,
	}
}

// Enqueue は支払い済み注文に対するサーバー行をcreating状態で作成する。
// 既に同じ注文のサーバーが存在する場合は何もせず既存行を返す
// （Webhook再配送に対して冪等）。
func (s *Service) Enqueue(ctx context.Context, order *model.Order) (*model.Server, error) {
	existing, err := s.serverRepo.FindByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("サーバーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	server := &model.Server{
		OrderID:      order.ID,
		UserID:       order.UserID,
		ServerName:   fmt.Sprintf("MBE-Server-%d", order.ID),
		NodeLocation: order.NodeLocation,
		CPU:          order.CPU,
		RAMMB:        order.RAMMB,
		DiskGB:       order.DiskGB,
		Status:       model.ServerStatusCreating,
	}

	id, err := s.serverRepo.Create(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("サーバー行の作成に失敗しました: %w", err)
	}
	server.ID = id

	slog.Info("プロビジョニングをキューに登録しました",
		slog.Int64("server_id", id),
		slog.Int64("order_id", order.ID),
	)

	return server, nil
}

// Provision はcreating状態のサーバー1件をパネル上に作成する。
// パネル呼び出しまで到達した試行は必ずactive、failed、pending_setupの
// いずれかに確定する。パネル呼び出し前のDB読み取りに失敗した場合だけは
// creatingのまま残し、次のサイクルで再試行させる。
func (s *Service) Provision(ctx context.Context, server *model.Server) error {
	if s.panelAPI == nil {
		// 縮退モード: パネル未設定ならオペレーターの手動セットアップ待ちにする
		if err := s.serverRepo.UpdateProvisionOutcome(ctx, server.ID, nil, model.ServerStatusPendingSetup); err != nil {
			return fmt.Errorf("pending_setupへの更新に失敗しました: %w", err)
		}
		slog.Warn("パネル未設定のためpending_setupにしました",
			slog.Int64("server_id", server.ID),
		)
		if s.metrics != nil {
			s.metrics.ProvisionPendingSetup()
		}
		return nil
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// 注文から引き継いだfeature limitsを取得。
	// 取得できないままパネルを呼ぶとdatabases/backupsが0で作成され、
	// 購入内容より少ないリソースで確定してしまうため、ここでは失敗させる。
	order, err := s.orderRepo.FindByID(ctx, server.OrderID)
	if err != nil {
		return fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	databases, backups := 0, 0
	if order != nil {
		databases = order.Databases
		backups = order.Backups
	} else {
		slog.Warn("サーバーに対応する注文が見つかりません",
			slog.Int64("server_id", server.ID),
			slog.Int64("order_id", server.OrderID),
		)
	}

	panelID, err := s.panelAPI.CreateServer(callCtx, panel.CreateServerInput{
		Name:      server.ServerName,
		CPU:       server.CPU,
		RAMMB:     server.RAMMB,
		DiskGB:    server.DiskGB,
		Databases: databases,
		Backups:   backups,
	})
	if err != nil {
		if updErr := s.serverRepo.UpdateProvisionOutcome(ctx, server.ID, nil, model.ServerStatusFailed); updErr != nil {
			return fmt.Errorf("failedへの更新に失敗しました: %w", updErr)
		}
		slog.Error("プロビジョニングに失敗しました",
			slog.Int64("server_id", server.ID),
			slog.String("error", err.Error()),
		)
		if s.metrics != nil {
			s.metrics.ProvisionFailed()
		}
		return fmt.Errorf("パネルでのサーバー作成に失敗しました: %w", err)
	}

	if err := s.serverRepo.UpdateProvisionOutcome(ctx, server.ID, &panelID, model.ServerStatusActive); err != nil {
		return fmt.Errorf("activeへの更新に失敗しました: %w", err)
	}

	slog.Info("プロビジョニングが完了しました",
		slog.Int64("server_id", server.ID),
		slog.Int64("panel_server_id", panelID),
	)
	if s.metrics != nil {
		s.metrics.ProvisionSucceeded(time.Since(start))
	}

	return nil
}

// Reprovision はユーザーの手動リクエストでプロビジョニングを再開始する。
// 対象注文は支払い済みであること。failedのサーバーはcreatingに戻して
// ワーカーに再処理させ、それ以外の状態のサーバーが既にあればエラー。
func (s *Service) Reprovision(ctx context.Context, orderID, userID int64) (*model.Server, error) {
	order, err := s.orderRepo.FindByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("注文の取得に失敗しました: %w", err)
	}
	if order == nil {
		return nil, model.NewOrderNotFoundError()
	}
	if order.Status != model.OrderStatusPaid {
		return nil, model.NewOrderNotPaidError()
	}

	existing, err := s.serverRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("サーバーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		if existing.Status != model.ServerStatusFailed {
			return nil, model.NewServerExistsError()
		}
		if err := s.serverRepo.UpdateProvisionOutcome(ctx, existing.ID, nil, model.ServerStatusCreating); err != nil {
			return nil, fmt.Errorf("creatingへの更新に失敗しました: %w", err)
		}
		existing.Status = model.ServerStatusCreating
		existing.PanelServerID = nil
		slog.Info("失敗したサーバーのプロビジョニングを再登録しました",
			slog.Int64("server_id", existing.ID),
			slog.Int64("order_id", orderID),
		)
		return existing, nil
	}

	return s.Enqueue(ctx, order)
}

// Get は指定ユーザーのサーバーを取得する。
// 他ユーザーのサーバーはSERVER_NOT_FOUNDになる（存在の漏洩を防ぐ）。
func (s *Service) Get(ctx context.Context, serverID, userID int64) (*model.Server, error) {
	server, err := s.serverRepo.FindByIDAndUser(ctx, serverID, userID)
	if err != nil {
		return nil, fmt.Errorf("サーバーの取得に失敗しました: %w", err)
	}
	if server == nil {
		return nil, model.NewServerNotFoundError()
	}
	return server, nil
}

// List は指定ユーザーのサーバーを新しい順に返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Server, error) {
	servers, err := s.serverRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("サーバー一覧の取得に失敗しました: %w", err)
	}
	return servers, nil
}

// ListPending はプロビジョニング待ちのサーバーを取得する。ワーカー専用。
func (s *Service) ListPending(ctx context.Context, limit int) ([]*model.Server, error) {
	servers, err := s.serverRepo.ListPendingProvision(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("プロビジョニング待ち一覧の取得に失敗しました: %w", err)
	}
	return servers, nil
}
