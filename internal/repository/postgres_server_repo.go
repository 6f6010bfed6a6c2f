package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mbehosting/internal/model"
)

// PostgresServerRepo はPostgreSQLを使用したサーバーリポジトリ。
type PostgresServerRepo struct {
	db *sql.DB
}

// NewPostgresServerRepo はPostgresServerRepoを生成する。
func NewPostgresServerRepo(db *sql.DB) *PostgresServerRepo {
	return &PostgresServerRepo{db: db}
}

const serverColumns = `id, order_id, user_id, panel_server_id, server_name, node_location,
	cpu, ram_mb, disk_gb, status, ip_address, port, created_at, updated_at`

func scanServer(scan func(dest ...interface{}) error) (*model.Server, error) {
	server := &model.Server{}
	err := scan(
		&server.ID, &server.OrderID, &server.UserID, &server.PanelServerID,
		&server.ServerName, &server.NodeLocation, &server.CPU, &server.RAMMB,
		&server.DiskGB, &server.Status, &server.IPAddress, &server.Port,
		&server.CreatedAt, &server.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// Create はサーバー行を作成し、採番されたIDを返す。
func (r *PostgresServerRepo) Create(ctx context.Context, server *model.Server) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO servers (order_id, user_id, server_name, node_location, cpu, ram_mb, disk_gb, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		server.OrderID, server.UserID, server.ServerName, server.NodeLocation,
		server.CPU, server.RAMMB, server.DiskGB, server.Status,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert server: %w", err)
	}

	return id, nil
}

// FindByIDAndUser は指定ユーザーのサーバーを取得する。
// 他ユーザーのサーバーや存在しないIDの場合はnilを返す。
func (r *PostgresServerRepo) FindByIDAndUser(ctx context.Context, id, userID int64) (*model.Server, error) {
	server, err := scanServer(r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find server: %w", err)
	}

	return server, nil
}

// FindByOrderID は注文IDでサーバーを検索する。見つからない場合はnilを返す。
func (r *PostgresServerRepo) FindByOrderID(ctx context.Context, orderID int64) (*model.Server, error) {
	server, err := scanServer(r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE order_id = $1`,
		orderID,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find server by order: %w", err)
	}

	return server, nil
}

// ListByUser は指定ユーザーのサーバーを新しい順に返す。
func (r *PostgresServerRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Server, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	var servers []*model.Server
	for rows.Next() {
		server, err := scanServer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate servers: %w", err)
	}

	return servers, nil
}

// ListPendingProvision はプロビジョニング待ちのサーバーを古い順に最大limit件取得する。
// FOR UPDATE SKIP LOCKEDにより、複数のワーカーが同じ行を処理することはない。
func (r *PostgresServerRepo) ListPendingProvision(ctx context.Context, limit int) ([]*model.Server, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serverColumns+`
		 FROM servers
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		model.ServerStatusCreating, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending servers: %w", err)
	}
	defer rows.Close()

	var servers []*model.Server
	for rows.Next() {
		server, err := scanServer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server: %w", err)
		}
		servers = append(servers, server)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending servers: %w", err)
	}

	return servers, nil
}

// UpdateProvisionOutcome はプロビジョニング結果を記録する。
func (r *PostgresServerRepo) UpdateProvisionOutcome(ctx context.Context, id int64, panelServerID *int64, status model.ServerStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE servers
		 SET panel_server_id = $1, status = $2, updated_at = now()
		 WHERE id = $3`,
		panelServerID, status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update provision outcome: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ServerRepository = (*PostgresServerRepo)(nil)
