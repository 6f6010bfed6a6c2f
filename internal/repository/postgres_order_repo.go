package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mbehosting/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// orderColumns はplansとのLEFT JOINを前提とした注文の取得カラム。
const orderColumns = `o.id, o.user_id, o.plan_id, COALESCE(p.name, ''), o.node_location,
	o.cpu, o.ram_mb, o.disk_gb, o.databases, o.backups, o.price, o.status,
	COALESCE(o.stripe_payment_intent_id, ''), o.created_at, o.updated_at`

func scanOrder(scan func(dest ...interface{}) error) (*model.Order, error) {
	order := &model.Order{}
	err := scan(
		&order.ID, &order.UserID, &order.PlanID, &order.PlanName, &order.NodeLocation,
		&order.CPU, &order.RAMMB, &order.DiskGB, &order.Databases, &order.Backups,
		&order.Price, &order.Status, &order.StripePaymentIntentID,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Create は注文をpending状態で作成し、採番されたIDを返す。
// リソース量と価格は呼び出し時点のスナップショットとして保存する。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, plan_id, node_location, cpu, ram_mb, disk_gb, databases, backups, price, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		order.UserID, order.PlanID, order.NodeLocation, order.CPU, order.RAMMB, order.DiskGB,
		order.Databases, order.Backups, order.Price, model.OrderStatusPending,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}

	return id, nil
}

// FindByIDAndUser は指定ユーザーの注文を取得する。
// 他ユーザーの注文や存在しないIDの場合はnilを返す。
func (r *PostgresOrderRepo) FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 LEFT JOIN plans p ON o.plan_id = p.id
		 WHERE o.id = $1 AND o.user_id = $2`,
		id, userID,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return order, nil
}

// FindByID は指定IDの注文を取得する。ユーザースコープなしの内部処理専用。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id int64) (*model.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 LEFT JOIN plans p ON o.plan_id = p.id
		 WHERE o.id = $1`,
		id,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	return order, nil
}

// ListRecentByUser は指定ユーザーの注文を新しい順に最大limit件返す。
func (r *PostgresOrderRepo) ListRecentByUser(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 LEFT JOIN plans p ON o.plan_id = p.id
		 WHERE o.user_id = $1
		 ORDER BY o.created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// SetPaymentIntent は指定ユーザーの注文にpayment intent参照を記録し、
// 更新された行数を返す。
func (r *PostgresOrderRepo) SetPaymentIntent(ctx context.Context, orderID, userID int64, intentID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders
		 SET stripe_payment_intent_id = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3`,
		intentID, orderID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to set payment intent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// FindByPaymentIntent はintent参照で注文を検索する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByPaymentIntent(ctx context.Context, intentID string) (*model.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 LEFT JOIN plans p ON o.plan_id = p.id
		 WHERE o.stripe_payment_intent_id = $1`,
		intentID,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order by payment intent: %w", err)
	}

	return order, nil
}

// UpdateStatusByPaymentIntent はintent参照が一致する注文の状態を更新し、
// 更新された行数を返す。同じ状態への再更新も成功扱い（Webhook再配送に対して冪等）。
func (r *PostgresOrderRepo) UpdateStatusByPaymentIntent(ctx context.Context, intentID string, status model.OrderStatus) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = now()
		 WHERE stripe_payment_intent_id = $2`,
		status, intentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
