// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Phoneには保存時はFieldCipherの暗号トークンが入り、
// プロフィール表示時に復号された平文が入る。
type User struct {
	ID            int64
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Phone         string
	IsActive      bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionUser はセッションに保持する最小限のユーザー投影。
// User行全体ではなくこの投影だけをセッションに載せることで露出を抑える。
type SessionUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    int64
	User      SessionUser
	ExpiresAt time.Time
	CreatedAt time.Time
}
