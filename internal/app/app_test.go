package app

import (
	"bytes"
	"strings"
	"testing"
)

func clearRequiredEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "ENCRYPTION_KEY", "STRIPE_SECRET_KEY",
		"STRIPE_WEBHOOK_SECRET", "BASE_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	err := Run(&bytes.Buffer{}, []string{"bogus"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "bogus") {
		t.Errorf("error should name the command: %v", err)
	}
}

func TestRun_ServeFailsWithoutConfig(t *testing.T) {
	// 必須環境変数なしでは起動前に失敗する
	clearRequiredEnvVars(t)

	err := Run(&bytes.Buffer{}, nil)
	if err == nil {
		t.Fatal("expected error when required env vars are missing")
	}
	if !strings.Contains(err.Error(), "config") {
		t.Errorf("error should mention config: %v", err)
	}
}

func TestRun_MigrateFailsWithoutConfig(t *testing.T) {
	clearRequiredEnvVars(t)

	err := Run(&bytes.Buffer{}, []string{"migrate"})
	if err == nil {
		t.Fatal("expected error when required env vars are missing")
	}
}
