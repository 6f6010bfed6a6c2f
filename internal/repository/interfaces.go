// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/mbehosting/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDを返す。
	Create(ctx context.Context, user *model.User) (int64, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// orders、servers、payments、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id int64) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error
}

// PlanRepository はプラン参照データの読み取りインターフェース。
type PlanRepository interface {
	// ListActive は有効なプランを価格の昇順で返す。
	ListActive(ctx context.Context) ([]*model.Plan, error)

	// FindByID は指定IDの有効なプランを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Plan, error)
}

// OrderRepository は注文データの永続化インターフェース。
type OrderRepository interface {
	// Create は注文を作成し、採番されたIDを返す。
	Create(ctx context.Context, order *model.Order) (int64, error)

	// FindByIDAndUser は指定ユーザーの注文を取得する。
	// 他ユーザーの注文や存在しないIDの場合はnilを返す（存在の漏洩を防ぐ）。
	FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Order, error)

	// FindByID は指定IDの注文を取得する。見つからない場合はnilを返す。
	// ユーザースコープなし。ワーカーなど内部処理専用で、
	// ユーザー向けルートからは使用しないこと。
	FindByID(ctx context.Context, id int64) (*model.Order, error)

	// ListRecentByUser は指定ユーザーの注文を新しい順に最大limit件返す。
	ListRecentByUser(ctx context.Context, userID int64, limit int) ([]*model.Order, error)

	// SetPaymentIntent は指定ユーザーの注文にpayment intent参照を記録し、
	// 更新された行数を返す。
	SetPaymentIntent(ctx context.Context, orderID, userID int64, intentID string) (int64, error)

	// FindByPaymentIntent はintent参照で注文を検索する。見つからない場合はnilを返す。
	FindByPaymentIntent(ctx context.Context, intentID string) (*model.Order, error)

	// UpdateStatusByPaymentIntent はintent参照が一致する注文の状態を更新し、
	// 更新された行数を返す。
	UpdateStatusByPaymentIntent(ctx context.Context, intentID string, status model.OrderStatus) (int64, error)
}

// ServerRepository はサーバーデータの永続化インターフェース。
type ServerRepository interface {
	// Create はサーバー行を作成し、採番されたIDを返す。
	Create(ctx context.Context, server *model.Server) (int64, error)

	// FindByIDAndUser は指定ユーザーのサーバーを取得する。
	// 他ユーザーのサーバーや存在しないIDの場合はnilを返す（存在の漏洩を防ぐ）。
	FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Server, error)

	// FindByOrderID は注文IDでサーバーを検索する。見つからない場合はnilを返す。
	FindByOrderID(ctx context.Context, orderID int64) (*model.Server, error)

	// ListByUser は指定ユーザーのサーバーを新しい順に返す。
	ListByUser(ctx context.Context, userID int64) ([]*model.Server, error)

	// ListPendingProvision はプロビジョニング待ち（status = 'creating'）の
	// サーバーをFOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListPendingProvision(ctx context.Context, limit int) ([]*model.Server, error)

	// UpdateProvisionOutcome はプロビジョニング結果を記録する。
	// panelServerIDはactiveになった場合のみ非nil。
	UpdateProvisionOutcome(ctx context.Context, id int64, panelServerID *int64, status model.ServerStatus) error
}

// PaymentRepository は決済レコードの永続化インターフェース。
type PaymentRepository interface {
	// Create は決済レコードを作成する。
	// 同一intentのcompleted行が既に存在する場合は一意制約違反になる。
	Create(ctx context.Context, payment *model.Payment) error

	// FindByPaymentIntent はintent参照で完了済み決済を検索する。
	// 見つからない場合はnilを返す。
	FindByPaymentIntent(ctx context.Context, intentID string) (*model.Payment, error)
}
