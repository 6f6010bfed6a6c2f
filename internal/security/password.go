package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 8
	// bcryptCost はbcryptのコストパラメータ。
	bcryptCost = 10
)

// ErrPasswordTooShort はパスワードが最小文字数未満の場合のエラー。
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// HashPassword はパスワードをbcryptでハッシュ化する。
// 最小文字数チェックはハッシュ化の前に行う。
// 平文パスワードは保存もログ出力もしない。
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// VerifyPassword はパスワードとハッシュの一致を検証する。
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
