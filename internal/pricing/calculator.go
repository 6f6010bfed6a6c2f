// Package pricing はカスタムプランの月額料金計算を提供する。
// 副作用のない純粋な計算のみを行う。
package pricing

import "math"

// 単価。リソース1単位あたりの月額（USD）。
const (
	cpuUnitPrice      = 2.5 // CPUコアあたり
	ramUnitPrice      = 3.0 // RAM 1GBあたり
	diskUnitPrice     = 0.5 // ディスク10GBあたり
	databaseUnitPrice = 2.0 // データベース1個あたり
	backupUnitPrice   = 1.0 // バックアップ1個あたり
)

// MinimumPrice は月額料金の下限（USD）。
const MinimumPrice = 3.99

// ResourceSpec は料金計算の入力となるリソース量。
type ResourceSpec struct {
	CPU       int
	RAMMB     int
	DiskGB    int
	Databases int
	Backups   int
}

// Quote は料金計算の結果。表示用の項目別内訳と合計を含む。
// 各項目は小数点以下2桁に丸めた値。
type Quote struct {
	CPU       float64 `json:"cpu"`
	RAM       float64 `json:"ram"`
	Disk      float64 `json:"disk"`
	Databases float64 `json:"databases"`
	Backups   float64 `json:"backups"`
	Total     float64 `json:"total"`
}

// Calculate はリソース量から月額料金を計算する。
// 合計はMinimumPriceを下限とし、小数点以下2桁に丸める。
// 決定的であり、同じ入力には常に同じ結果を返す。
func Calculate(spec ResourceSpec) Quote {
	cpuPrice := float64(spec.CPU) * cpuUnitPrice
	ramPrice := float64(spec.RAMMB) / 1024 * ramUnitPrice
	diskPrice := float64(spec.DiskGB) / 10 * diskUnitPrice
	databasePrice := float64(spec.Databases) * databaseUnitPrice
	backupPrice := float64(spec.Backups) * backupUnitPrice

	total := cpuPrice + ramPrice + diskPrice + databasePrice + backupPrice

	return Quote{
		CPU:       round2(cpuPrice),
		RAM:       round2(ramPrice),
		Disk:      round2(diskPrice),
		Databases: round2(databasePrice),
		Backups:   round2(backupPrice),
		Total:     round2(math.Max(total, MinimumPrice)),
	}
}

// round2 は小数点以下2桁に丸める。
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
