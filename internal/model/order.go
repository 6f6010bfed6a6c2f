// Package model はドメインモデルを定義する。
package model

import "time"

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	// OrderStatusPending は支払い待ちの状態。
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid は支払い完了の状態。
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusFailed は支払い失敗の状態。
	OrderStatusFailed OrderStatus = "failed"
)

// Order はユーザーのリソースバンドル購入リクエストを表す。
// リソース量と価格は作成時点のスナップショットであり、
// 後からPlanが変更されても既存の注文には影響しない。
type Order struct {
	ID           int64
	UserID       int64
	PlanID       *int64
	PlanName     string // plansとのLEFT JOINで取得する表示用の名前
	NodeLocation string
	CPU          int
	RAMMB        int
	DiskGB       int
	Databases    int
	Backups      int
	Price        float64
	Status       OrderStatus
	// StripePaymentIntentID は決済プロバイダ側のintent参照。
	// intent作成前は空文字列。
	StripePaymentIntentID string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
