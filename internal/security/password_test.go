package security

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword_TooShort(t *testing.T) {
	for _, password := range []string{"", "short", "1234567"} {
		_, err := HashPassword(password)
		if !errors.Is(err, ErrPasswordTooShort) {
			t.Errorf("HashPassword(%q): error = %v, want ErrPasswordTooShort", password, err)
		}
	}
}

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	// 平文がそのまま保存されていないこと
	if strings.Contains(hash, "correct horse") {
		t.Error("hash contains plaintext password")
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("VerifyPassword with correct password = false, want true")
	}
	if VerifyPassword("wrong password!", hash) {
		t.Error("VerifyPassword with wrong password = true, want false")
	}
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	h1, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if h1 == h2 {
		t.Error("two hashes of the same password are identical; salt is not applied")
	}
}
