// Package provisionworker はサーバープロビジョニングのバックグラウンド処理を提供する。
// ティッカー駆動のスケジューラでcreating状態のサーバーを取り込み、
// 並列数を制御しながらパネルへの作成を実行する。
package provisionworker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/mbehosting/internal/model"
)

// batchSize は1サイクルあたりの取り込み上限。
const batchSize = 20

// ProvisionService はプロビジョニングの実行インターフェース。
type ProvisionService interface {
	// ListPending はcreating状態のサーバーを排他的に取得する。
	ListPending(ctx context.Context, limit int) ([]*model.Server, error)
	// Provision はサーバー1件の結果をactive/failed/pending_setupに確定させる。
	Provision(ctx context.Context, server *model.Server) error
}

// Scheduler はプロビジョニングのスケジューリングと並列制御を行う。
// ティッカーで対象サーバーを取得し、semaphoreパターンで
// 最大並列数を制御しながらプロビジョニングを実行する。
type Scheduler struct {
	provisioner    ProvisionService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値4を使用する。
func NewScheduler(provisioner ProvisionService, logger *slog.Logger, maxConcurrency int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		provisioner:    provisioner,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("プロビジョニングスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("プロビジョニングサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("プロビジョニングスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("プロビジョニングサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はプロビジョニング待ちサーバーを1回取得し、並列で処理する。
// 個々の失敗はfailedとして確定済みなのでサイクル全体は止めない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	servers, err := s.provisioner.ListPending(ctx, batchSize)
	if err != nil {
		return err
	}

	if len(servers) == 0 {
		return nil
	}

	s.logger.Info("プロビジョニングサイクルを開始します",
		slog.Int("server_count", len(servers)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, server := range servers {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(sv *model.Server) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.provisioner.Provision(ctx, sv); err != nil {
				s.logger.Error("サーバープロビジョニングに失敗しました",
					slog.Int64("server_id", sv.ID),
					slog.Int64("order_id", sv.OrderID),
					slog.String("error", err.Error()),
				)
			}
		}(server)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("プロビジョニングサイクルが完了しました",
		slog.Int("server_count", len(servers)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
