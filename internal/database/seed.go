package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// defaultPlan はシード用のプラン定義。
type defaultPlan struct {
	name        string
	description string
	cpu         int
	ramMB       int
	diskGB      int
	databases   int
	backups     int
	price       float64
	isCustom    bool
}

// defaultPlans は初回起動時に投入するプラン一覧。
// 最後の"Custom"はリソース0のセンチネルプランで、カスタムプランの入口になる。
var defaultPlans = []defaultPlan{
	{"Starter", "Perfect for small projects and testing", 1, 2048, 20, 1, 2, 5.99, false},
	{"Basic", "Ideal for small websites and applications", 2, 4096, 40, 2, 5, 12.99, false},
	{"Professional", "Great for growing businesses", 4, 8192, 80, 5, 10, 24.99, false},
	{"Enterprise", "Maximum performance for large applications", 8, 16384, 160, 10, 20, 49.99, false},
	{"Custom", "Build your own plan", 0, 0, 0, 0, 0, 0, true},
}

// SeedDefaultPlans はplansテーブルが空の場合にデフォルトプランを投入する。
// 判定と投入は同一トランザクションで行い、失敗時はロールバックする。
// 既にプランが存在する場合は何もしない。
func SeedDefaultPlans(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM plans`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range defaultPlans {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO plans (name, description, cpu, ram_mb, disk_gb, databases, backups, price_monthly, is_custom)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.name, p.description, p.cpu, p.ramMB, p.diskGB, p.databases, p.backups, p.price, p.isCustom,
		)
		if err != nil {
			return fmt.Errorf("failed to insert plan %q: %w", p.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("default plans seeded",
		slog.Int("count", len(defaultPlans)),
	)

	return nil
}
