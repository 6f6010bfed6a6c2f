// Package model はドメインモデルを定義する。
package model

import "time"

// Plan は販売するリソースバンドルを表す。
// is_customフラグ付きのセンチネルプラン（リソース0）はカスタムプランの入口。
// 初回起動時にシードされ、通常運用中はイミュータブルな参照データとして扱う。
type Plan struct {
	ID           int64
	Name         string
	Description  string
	CPU          int
	RAMMB        int
	DiskGB       int
	Databases    int
	Backups      int
	PriceMonthly float64
	IsCustom     bool
	IsActive     bool
	CreatedAt    time.Time
}
