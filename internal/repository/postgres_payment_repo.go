package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mbehosting/internal/model"
)

// PostgresPaymentRepo はPostgreSQLを使用した決済リポジトリ。
type PostgresPaymentRepo struct {
	db *sql.DB
}

// NewPostgresPaymentRepo はPostgresPaymentRepoを生成する。
func NewPostgresPaymentRepo(db *sql.DB) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{db: db}
}

// Create は決済レコードを作成する。
// 同一intentのcompleted行が既にある場合は部分一意インデックスに弾かれる。
func (r *PostgresPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (order_id, user_id, amount, currency, stripe_payment_intent_id, stripe_charge_id, status, card_last4, card_brand)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		payment.OrderID, payment.UserID, payment.Amount, payment.Currency,
		payment.StripePaymentIntentID, payment.StripeChargeID, payment.Status,
		payment.CardLast4, payment.CardBrand,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// FindByPaymentIntent はintent参照で完了済み決済を検索する。見つからない場合はnilを返す。
func (r *PostgresPaymentRepo) FindByPaymentIntent(ctx context.Context, intentID string) (*model.Payment, error) {
	payment := &model.Payment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, order_id, user_id, amount, currency, stripe_payment_intent_id,
		        stripe_charge_id, status, card_last4, card_brand, created_at
		 FROM payments
		 WHERE stripe_payment_intent_id = $1 AND status = $2`,
		intentID, model.PaymentStatusCompleted,
	).Scan(
		&payment.ID, &payment.OrderID, &payment.UserID, &payment.Amount,
		&payment.Currency, &payment.StripePaymentIntentID, &payment.StripeChargeID,
		&payment.Status, &payment.CardLast4, &payment.CardBrand, &payment.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	return payment, nil
}

// compile-time interface check
var _ PaymentRepository = (*PostgresPaymentRepo)(nil)
