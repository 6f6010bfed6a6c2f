// Package model はドメインモデルを定義する。
package model

import "time"

// PaymentStatus は決済レコードの状態を表す。
type PaymentStatus string

const (
	// PaymentStatusCompleted は完了した決済。
	PaymentStatusCompleted PaymentStatus = "completed"
)

// Payment は完了した決済のイミュータブルな記録を表す。
// 同一のpayment intentに対しては最大1行しか存在しない
// （Webhookの再配送に対する冪等性の根拠）。
type Payment struct {
	ID                    int64
	OrderID               int64
	UserID                int64
	Amount                float64
	Currency              string
	StripePaymentIntentID string
	StripeChargeID        string
	Status                PaymentStatus
	CardLast4             string
	CardBrand             string
	CreatedAt             time.Time
}
