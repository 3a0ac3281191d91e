package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/stockledger-go/internal/billing"
	"github.com/boddenberg/stockledger-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("USE_SUPABASE", "false")

	cfg := config.Load()

	if cfg.Port != 8080 || cfg.LogLevel != "info" {
		t.Errorf("server defaults = %d/%s", cfg.Port, cfg.LogLevel)
	}
	if cfg.CacheTTL != 5*time.Minute || cfg.MaxRetries != 3 {
		t.Errorf("cache/retry defaults = %v/%d", cfg.CacheTTL, cfg.MaxRetries)
	}
	if cfg.InstallmentRemainder != billing.RemainderNone {
		t.Errorf("remainder = %s, want none", cfg.InstallmentRemainder)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("INSTALLMENT_REMAINDER", "LAST")
	t.Setenv("DEV_AUTH", "true")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	if cfg.Port != 9090 || cfg.CacheTTL != 30*time.Second || !cfg.DevAuth {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.InstallmentRemainder != billing.RemainderLast {
		t.Errorf("remainder = %s, want last", cfg.InstallmentRemainder)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("unparsable int should fall back to default, got %d", cfg.MaxRetries)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &config.Config{
		Port:                 0,
		MaxConcurrency:       0,
		HTTPTimeout:          time.Second,
		CacheTTL:             time.Minute,
		UseSupabase:          true,
		InstallmentRemainder: "first",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"PORT", "MAX_CONCURRENCY", "INSTALLMENT_REMAINDER", "SUPABASE_URL", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %s in %q", want, err)
		}
	}
}

func TestValidate_DevConfigIsValid(t *testing.T) {
	cfg := &config.Config{
		Port:           8080,
		MaxConcurrency: 10,
		HTTPTimeout:    time.Second,
		CacheTTL:       time.Minute,
		DevAuth:        true,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEDGER_TEST_A=from-file\nLEDGER_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEDGER_TEST_A", "from-env")
	t.Setenv("LEDGER_TEST_B", "")
	os.Unsetenv("LEDGER_TEST_B")

	if err := config.LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("LEDGER_TEST_A"); got != "from-env" {
		t.Errorf("LEDGER_TEST_A = %s, want from-env", got)
	}
	if got := os.Getenv("LEDGER_TEST_B"); got != "quoted" {
		t.Errorf("LEDGER_TEST_B = %s, want quoted", got)
	}
}
