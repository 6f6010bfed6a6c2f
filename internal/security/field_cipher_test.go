package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0xAB}, 32)
}

func TestNewFieldCipher_InvalidKeyLength(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		if _, err := NewFieldCipher(bytes.Repeat([]byte{0x01}, size)); err == nil {
			t.Errorf("NewFieldCipher with %d-byte key: expected error", size)
		}
	}
}

func TestFieldCipher_RoundTrip(t *testing.T) {
	c, err := NewFieldCipher(testKey())
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}

	tests := []string{
		"",
		"090-1234-5678",
		"+52 55 1234 5678",
		"日本語の文字列も暗号化できる",
		strings.Repeat("x", 4096),
	}

	for _, plaintext := range tests {
		token, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}

		// トークンは iv:tag:ct の3セグメント
		parts := strings.Split(token, ":")
		if len(parts) != 3 {
			t.Fatalf("token segments = %d, want 3", len(parts))
		}
		if len(parts[0]) != 32 {
			t.Errorf("iv hex length = %d, want 32", len(parts[0]))
		}
		if len(parts[1]) != 32 {
			t.Errorf("tag hex length = %d, want 32", len(parts[1]))
		}

		got, err := c.Decrypt(token)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", token, err)
		}
		if got != plaintext {
			t.Errorf("round-trip = %q, want %q", got, plaintext)
		}
	}
}

func TestFieldCipher_EncryptIsRandomized(t *testing.T) {
	c, _ := NewFieldCipher(testKey())

	t1, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	t2, err := c.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if t1 == t2 {
		t.Error("two encryptions of the same plaintext produced identical tokens")
	}
}

func TestFieldCipher_TamperedCiphertext_ReturnsDecryptionError(t *testing.T) {
	c, _ := NewFieldCipher(testKey())

	token, err := c.Encrypt("secret value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	parts := strings.Split(token, ":")

	// 暗号文の先頭バイトを反転
	flip := func(s string) string {
		b := []byte(s)
		if b[0] == 'a' {
			b[0] = 'b'
		} else {
			b[0] = 'a'
		}
		return string(b)
	}

	cases := map[string]string{
		"tampered ciphertext": parts[0] + ":" + parts[1] + ":" + flip(parts[2]),
		"tampered tag":        parts[0] + ":" + flip(parts[1]) + ":" + parts[2],
		"tampered iv":         flip(parts[0]) + ":" + parts[1] + ":" + parts[2],
	}

	for name, tampered := range cases {
		_, err := c.Decrypt(tampered)
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		var decErr *DecryptionError
		if !errors.As(err, &decErr) {
			t.Errorf("%s: error type = %T, want *DecryptionError", name, err)
		}
	}
}

func TestFieldCipher_MalformedToken_ReturnsDecryptionError(t *testing.T) {
	c, _ := NewFieldCipher(testKey())

	for _, token := range []string{
		"",
		"not-a-token",
		"aabb:ccdd",
		"zz:zz:zz",
		"aabb:ccdd:eeff:0011",
	} {
		_, err := c.Decrypt(token)
		var decErr *DecryptionError
		if !errors.As(err, &decErr) {
			t.Errorf("Decrypt(%q): error = %v, want *DecryptionError", token, err)
		}
	}
}

func TestFieldCipher_DifferentKey_FailsAuthentication(t *testing.T) {
	c1, _ := NewFieldCipher(testKey())
	c2, _ := NewFieldCipher(bytes.Repeat([]byte{0xCD}, 32))

	token, err := c1.Encrypt("secret value")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = c2.Decrypt(token)
	var decErr *DecryptionError
	if !errors.As(err, &decErr) {
		t.Errorf("decrypt with wrong key: error = %v, want *DecryptionError", err)
	}
}
