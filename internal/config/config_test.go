package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("ALIPAY_PRODUCTION", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPListenAddr != ":8080" || cfg.DatabaseDriver != "postgres" || cfg.SessionCookie != "lf_session" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SignupCredits != 3 || cfg.ProviderTimeout != 15*time.Second || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected numeric defaults: %+v", cfg)
	}
	if cfg.StripeEnabled() || cfg.AlipayEnabled() || cfg.S3Enabled() {
		t.Fatal("integrations should be disabled by default")
	}
	if !cfg.AlipayProduction {
		t.Fatal("alipay should default to the production gateway")
	}
}

func TestLoadAlipaySandbox(t *testing.T) {
	setRequired(t)
	t.Setenv("ALIPAY_PRODUCTION", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AlipayProduction {
		t.Fatal("ALIPAY_PRODUCTION=false should select the sandbox")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("CONFIG_ENV_PATH", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"SESSION_SECRET", "ADMIN_PASSWORD", "STRIPE_WEBHOOK_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoadEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "app.env")
	content := "LLM_BASE_URL=llm.example.com\nLOG_LEVEL=debug\nRATE_LIMIT_RPS=2.5\nALIPAY_PRIVATE_KEY=line1\\nline2\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CONFIG_ENV_PATH", path)
	for _, key := range []string{"LLM_BASE_URL", "LOG_LEVEL", "RATE_LIMIT_RPS", "ALIPAY_PRIVATE_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLMBaseURL != "https://llm.example.com" {
		t.Errorf("LLMBaseURL = %q", cfg.LLMBaseURL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("RateLimitRPS = %v", cfg.RateLimitRPS)
	}
	if cfg.AlipayPrivateKey != "line1\nline2" {
		t.Errorf("AlipayPrivateKey = %q", cfg.AlipayPrivateKey)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                         "https://fallback",
		"api.example.com":          "https://api.example.com",
		"http://localhost:8000/":   "http://localhost:8000",
		"https://api.example.com/": "https://api.example.com",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in, "https://fallback"); got != want {
			t.Errorf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
