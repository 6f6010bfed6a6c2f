package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mbehosting/internal/model"
)

// PostgresPlanRepo はPostgreSQLを使用したプランリポジトリ。
// プランは参照データであり、このリポジトリは読み取り専用。
type PostgresPlanRepo struct {
	db *sql.DB
}

// NewPostgresPlanRepo はPostgresPlanRepoを生成する。
func NewPostgresPlanRepo(db *sql.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

const planColumns = `id, name, description, cpu, ram_mb, disk_gb, databases, backups, price_monthly, is_custom, is_active, created_at`

// ListActive は有効なプランを価格の昇順で返す。
func (r *PostgresPlanRepo) ListActive(ctx context.Context) ([]*model.Plan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE is_active = true ORDER BY price_monthly ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*model.Plan
	for rows.Next() {
		plan := &model.Plan{}
		err := rows.Scan(
			&plan.ID, &plan.Name, &plan.Description, &plan.CPU, &plan.RAMMB, &plan.DiskGB,
			&plan.Databases, &plan.Backups, &plan.PriceMonthly, &plan.IsCustom, &plan.IsActive,
			&plan.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate plans: %w", err)
	}

	return plans, nil
}

// FindByID は指定IDの有効なプランを取得する。見つからない場合はnilを返す。
func (r *PostgresPlanRepo) FindByID(ctx context.Context, id int64) (*model.Plan, error) {
	plan := &model.Plan{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1 AND is_active = true`,
		id,
	).Scan(
		&plan.ID, &plan.Name, &plan.Description, &plan.CPU, &plan.RAMMB, &plan.DiskGB,
		&plan.Databases, &plan.Backups, &plan.PriceMonthly, &plan.IsCustom, &plan.IsActive,
		&plan.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}

	return plan, nil
}

// compile-time interface check
var _ PlanRepository = (*PostgresPlanRepo)(nil)
