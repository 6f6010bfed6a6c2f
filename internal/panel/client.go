// Package panel はPterodactylパネルのアプリケーションAPIクライアントを提供する。
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// パネル上のサーバー作成に使う既定値。
// 環境構築時にパネル側で用意しておくテンプレートを指す。
const (
	defaultEggID       = 1
	defaultPanelUserID = 1
	defaultDockerImage = "ghcr.io/pterodactyl/yolks:java_17"
	defaultStartupCmd  = "java -Xms128M -Xmx{{SERVER_MEMORY}}M -jar {{SERVER_JARFILE}}"
	defaultLocationID  = 1
)

// Client はPterodactylアプリケーションAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはパネルのルートURL（例: https://panel.example.com）。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// CreateServerInput はサーバー作成の入力。リソース量は注文のスナップショット単位
// （RAMはMB、ディスクはGB、CPUはコア数）で受け取り、パネルの単位へはClientが変換する。
type CreateServerInput struct {
	Name      string
	CPU       int
	RAMMB     int
	DiskGB    int
	Databases int
	Backups   int
}

// createServerRequest はPterodactylのサーバー作成リクエストボディ。
type createServerRequest struct {
	Name          string            `json:"name"`
	User          int               `json:"user"`
	Egg           int               `json:"egg"`
	DockerImage   string            `json:"docker_image"`
	Startup       string            `json:"startup"`
	Environment   map[string]string `json:"environment"`
	Limits        serverLimits      `json:"limits"`
	FeatureLimits featureLimits     `json:"feature_limits"`
	Deploy        deploySpec        `json:"deploy"`
}

type serverLimits struct {
	Memory int `json:"memory"` // MB
	Swap   int `json:"swap"`
	Disk   int `json:"disk"` // MB
	IO     int `json:"io"`
	CPU    int `json:"cpu"` // 100 = 1コア
}

type featureLimits struct {
	Databases   int `json:"databases"`
	Backups     int `json:"backups"`
	Allocations int `json:"allocations"`
}

type deploySpec struct {
	Locations   []int    `json:"locations"`
	DedicatedIP bool     `json:"dedicated_ip"`
	PortRange   []string `json:"port_range"`
}

// createServerResponse はPterodactylのサーバー作成レスポンス。
type createServerResponse struct {
	Object     string `json:"object"`
	Attributes struct {
		ID         int64  `json:"id"`
		Identifier string `json:"identifier"`
		Name       string `json:"name"`
	} `json:"attributes"`
}

// CreateServer はパネル上にサーバーを作成し、パネル側のサーバーIDを返す。
// 単位変換: memory=RAM(MB)、disk=ディスク(GB)*1024、cpu=コア数*100。
func (c *Client) CreateServer(ctx context.Context, input CreateServerInput) (int64, error) {
	reqBody := createServerRequest{
		Name:        input.Name,
		User:        defaultPanelUserID,
		Egg:         defaultEggID,
		DockerImage: defaultDockerImage,
		Startup:     defaultStartupCmd,
		Environment: map[string]string{
			"SERVER_JARFILE": "server.jar",
		},
		Limits: serverLimits{
			Memory: input.RAMMB,
			Swap:   0,
			Disk:   input.DiskGB * 1024,
			IO:     500,
			CPU:    input.CPU * 100,
		},
		FeatureLimits: featureLimits{
			Databases:   input.Databases,
			Backups:     input.Backups,
			Allocations: 1,
		},
		Deploy: deploySpec{
			Locations:   []int{defaultLocationID},
			DedicatedIP: false,
			PortRange:   []string{},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/application/servers", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("パネルAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("server_name", input.Name),
		)
		return 0, fmt.Errorf("パネルAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		c.logger.Error("パネルAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("server_name", input.Name),
		)
		return 0, fmt.Errorf("パネルAPIがステータス %d を返しました", resp.StatusCode)
	}

	var result createServerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.Attributes.ID == 0 {
		return 0, fmt.Errorf("パネルAPIのレスポンスにサーバーIDがありません")
	}

	c.logger.Info("パネル上にサーバーを作成しました",
		slog.Int64("panel_server_id", result.Attributes.ID),
		slog.String("server_name", input.Name),
	)

	return result.Attributes.ID, nil
}
