// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Field cipher
	// 32バイトの鍵（環境変数では64文字のhex文字列）。
	// 未設定の場合は起動に失敗する。自動生成へのフォールバックは行わない
	// （再起動のたびに鍵が変わり、保存済み暗号文が復号不能になるため）。
	EncryptionKey []byte

	// Stripe
	StripeSecretKey      string
	StripeWebhookSecret  string
	StripePublishableKey string

	// Pterodactyl panel（未設定の場合はプロビジョニングはpending_setupになる）
	PanelURL    string
	PanelAPIKey string

	// Session
	SessionMaxAge int

	// Provisioning worker
	ProvisionInterval      time.Duration
	ProvisionMaxConcurrent int
	PanelTimeout           time.Duration

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitPayment int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	encryptionKeyHex := os.Getenv("ENCRYPTION_KEY")
	if encryptionKeyHex == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}

	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	if cfg.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}

	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	if cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	key, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be a hex string: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
	}
	cfg.EncryptionKey = key

	// Optional fields with defaults
	cfg.StripePublishableKey = getEnvString("STRIPE_PUBLISHABLE_KEY", "")
	cfg.PanelURL = getEnvString("PTERODACTYL_URL", "")
	cfg.PanelAPIKey = getEnvString("PTERODACTYL_API_KEY", "")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.ProvisionInterval = getEnvDuration("PROVISION_INTERVAL", 15*time.Second)
	cfg.ProvisionMaxConcurrent = getEnvInt("PROVISION_MAX_CONCURRENT", 4)
	cfg.PanelTimeout = getEnvDuration("PANEL_TIMEOUT", 30*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPayment = getEnvInt("RATE_LIMIT_PAYMENT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// PanelConfigured はPterodactylパネルの接続情報が設定済みかどうかを返す。
func (c *Config) PanelConfigured() bool {
	return c.PanelURL != "" && c.PanelAPIKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
