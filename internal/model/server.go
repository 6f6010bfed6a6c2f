// Package model はドメインモデルを定義する。
package model

import "time"

// ServerStatus はプロビジョニング済みサーバーの状態を表す。
type ServerStatus string

const (
	// ServerStatusCreating はプロビジョニング待ちまたは実行中の状態。
	ServerStatusCreating ServerStatus = "creating"
	// ServerStatusActive はパネル上で稼働中の状態。
	ServerStatusActive ServerStatus = "active"
	// ServerStatusFailed はプロビジョニング失敗の状態。
	ServerStatusFailed ServerStatus = "failed"
	// ServerStatusPendingSetup はパネル未設定のためオペレーターの
	// 手動セットアップ待ちの状態。エラーではなく明示的な縮退モード。
	ServerStatusPendingSetup ServerStatus = "pending_setup"
)

// Server は支払い済み注文に1:1で対応するホスティングインスタンスを表す。
type Server struct {
	ID      int64
	OrderID int64
	UserID  int64
	// PanelServerID はパネルが払い出したサーバーID。activeになるまではnil。
	PanelServerID *int64
	ServerName    string
	NodeLocation  string
	CPU           int
	RAMMB         int
	DiskGB        int
	Status        ServerStatus
	IPAddress     string
	Port          int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
