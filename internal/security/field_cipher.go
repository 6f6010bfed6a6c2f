// Package security はフィールド暗号化とパスワードハッシュを提供する。
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// fieldCipherIVSize は暗号トークンのIV長（バイト）。
	fieldCipherIVSize = 16
	// fieldCipherTagSize はGCM認証タグ長（バイト）。
	fieldCipherTagSize = 16
	// fieldCipherKeySize はAES-256の鍵長（バイト）。
	fieldCipherKeySize = 32
)

// DecryptionError は暗号トークンの認証失敗を表す。
// 改ざんされたトークンや別の鍵で暗号化されたトークンの復号で発生する。
// 呼び出し元はフィールドを空扱いにするなどのフォールバックを行い、
// リクエスト全体は失敗させない。
type DecryptionError struct {
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *DecryptionError) Error() string {
	return fmt.Sprintf("field decryption failed: %s", e.Reason)
}

// FieldCipher は機微なプロフィールフィールドの可逆暗号化を行う。
// AES-256-GCMを使用し、トークンは iv:authTag:ciphertext の
// コロン区切りhex 3セグメント形式。
// 鍵は設定から渡される固定の32バイト秘密鍵であり、
// 未設定時のランダム生成フォールバックは行わない（起動時に設定層で拒否する）。
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher はFieldCipherを生成する。
// keyは32バイトでなければならない。
func NewFieldCipher(key []byte) (*FieldCipher, error) {
	if len(key) != fieldCipherKeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", fieldCipherKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	// トークン形式互換のため16バイトIVのGCMを使用する
	aead, err := cipher.NewGCMWithNonceSize(block, fieldCipherIVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &FieldCipher{aead: aead}, nil
}

// Encrypt は平文を暗号化し、iv:authTag:ciphertext 形式のトークンを返す。
// IVは呼び出しごとにランダム生成する。
func (c *FieldCipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, fieldCipherIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	// Sealの出力は ciphertext || authTag
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-fieldCipherTagSize]
	tag := sealed[len(sealed)-fieldCipherTagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt は暗号トークンを復号して平文を返す。
// トークン形式の不備や認証タグの検証失敗は*DecryptionErrorを返す。
// 検証に失敗した場合に壊れた平文を返すことはない。
func (c *FieldCipher) Decrypt(token string) (string, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return "", &DecryptionError{Reason: "malformed token"}
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != fieldCipherIVSize {
		return "", &DecryptionError{Reason: "malformed iv"}
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != fieldCipherTagSize {
		return "", &DecryptionError{Reason: "malformed auth tag"}
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", &DecryptionError{Reason: "malformed ciphertext"}
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed"}
	}

	return string(plaintext), nil
}
