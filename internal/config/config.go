package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the web service and its payment integrations.
type Config struct {
	HTTPListenAddr string
	PublicBaseURL  string
	LogLevel       slog.Level

	DatabaseDriver string
	DatabaseDSN    string

	SessionSecret string
	SessionCookie string

	SignupCredits      int
	FollowBonusCredits int
	FollowUnlockCode   string
	PromoBonusCredits  int

	ProviderTimeout time.Duration
	SweepInterval   time.Duration
	SweepGrace      time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	NodeID          int64

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeAPIURL        string

	AlipayAppID      string
	AlipayPrivateKey string
	AlipayPublicKey  string
	AlipayProduction bool

	DefaultPlanTitle          string
	DefaultPlanCredits        int
	DefaultPlanCurrency       string
	DefaultPlanPrice          int
	DefaultPlanWalletPrice    int
	DefaultPlanWalletCurrency string

	LLMAPIKey     string
	LLMBaseURL    string
	LLMModel      string
	LLMTimeout    time.Duration
	GenerationTTL time.Duration
	SharedPageTTL time.Duration

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string

	AlertTelegramToken  string
	AlertTelegramChatID int64

	AdminUsername string
	AdminPassword string
}

// StripeEnabled reports whether card checkout is configured.
func (c Config) StripeEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// AlipayEnabled reports whether wallet checkout is configured.
func (c Config) AlipayEnabled() bool {
	return c.AlipayAppID != "" && c.AlipayPrivateKey != "" && c.AlipayPublicKey != ""
}

// S3Enabled reports whether saved pages are mirrored to object storage.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	const defaultLLMBaseURL = "https://api.openai.com"

	cfg := Config{
		HTTPListenAddr:            getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBaseURL:             strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		LogLevel:                  parseLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseDriver:            strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseDSN:               os.Getenv("DATABASE_DSN"),
		SessionCookie:             getEnv("SESSION_COOKIE", "lf_session"),
		SignupCredits:             getInt("SIGNUP_CREDITS", 3),
		FollowBonusCredits:        getInt("FOLLOW_BONUS_CREDITS", 5),
		FollowUnlockCode:          strings.TrimSpace(os.Getenv("FOLLOW_UNLOCK_CODE")),
		PromoBonusCredits:         getInt("PROMO_BONUS_CREDITS", 10),
		ProviderTimeout:           time.Second * time.Duration(getInt("PROVIDER_TIMEOUT_SECONDS", 15)),
		SweepInterval:             time.Second * time.Duration(getInt("SWEEP_INTERVAL_SECONDS", 60)),
		SweepGrace:                time.Second * time.Duration(getInt("SWEEP_GRACE_SECONDS", 120)),
		RateLimitRPS:              getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:            getInt("RATE_LIMIT_BURST", 20),
		NodeID:                    getInt64("NODE_ID", 1),
		StripeSecretKey:           os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeAPIURL:              os.Getenv("STRIPE_API_URL"),
		AlipayAppID:               os.Getenv("ALIPAY_APP_ID"),
		AlipayPrivateKey:          readKey("ALIPAY_PRIVATE_KEY"),
		AlipayPublicKey:           readKey("ALIPAY_PUBLIC_KEY"),
		AlipayProduction:          getBool("ALIPAY_PRODUCTION", true),
		DefaultPlanTitle:          getEnv("DEFAULT_PLAN_TITLE", "Starter pack"),
		DefaultPlanCredits:        getInt("DEFAULT_PLAN_CREDITS", 50),
		DefaultPlanCurrency:       strings.ToUpper(getEnv("DEFAULT_PLAN_CURRENCY", "USD")),
		DefaultPlanPrice:          getInt("DEFAULT_PLAN_PRICE_MINOR_UNITS", 999),
		DefaultPlanWalletPrice:    getInt("DEFAULT_PLAN_WALLET_PRICE_MINOR_UNITS", 6900),
		DefaultPlanWalletCurrency: strings.ToUpper(getEnv("DEFAULT_PLAN_WALLET_CURRENCY", "CNY")),
		LLMAPIKey:                 os.Getenv("LLM_API_KEY"),
		LLMBaseURL:                normalizeBaseURL(getEnv("LLM_BASE_URL", defaultLLMBaseURL), defaultLLMBaseURL),
		LLMModel:                  getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:                time.Second * time.Duration(getInt("LLM_TIMEOUT_SECONDS", 45)),
		GenerationTTL:             time.Minute * time.Duration(getInt("GENERATION_CACHE_MINUTES", 10)),
		SharedPageTTL:             time.Minute * time.Duration(getInt("SHARED_PAGE_CACHE_MINUTES", 5)),
		S3Endpoint:                getEnv("S3_ENDPOINT", ""),
		S3Region:                  os.Getenv("S3_REGION"),
		S3AccessKey:               os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:               os.Getenv("S3_SECRET_KEY"),
		S3Bucket:                  os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:           os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:            getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:                  getEnv("S3_PREFIX", "pages"),
		AlertTelegramToken:        os.Getenv("ALERT_TELEGRAM_TOKEN"),
		AlertTelegramChatID:       getInt64("ALERT_TELEGRAM_CHAT_ID", 0),
		AdminUsername:             getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:             os.Getenv("ADMIN_PASSWORD"),
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")

	var missing []string
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if cfg.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "mysql" {
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if cfg.AlipayAppID != "" {
		if cfg.AlipayPrivateKey == "" {
			missing = append(missing, "ALIPAY_PRIVATE_KEY")
		}
		if cfg.AlipayPublicKey == "" {
			missing = append(missing, "ALIPAY_PUBLIC_KEY")
		}
	}
	if cfg.AlertTelegramToken != "" && cfg.AlertTelegramChatID == 0 {
		missing = append(missing, "ALERT_TELEGRAM_CHAT_ID")
	}
	if cfg.S3Bucket != "" && cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// normalizeBaseURL accepts bare hosts ("api.example.com") and trims trailing slashes.
func normalizeBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	return strings.TrimRight(parsed.String(), "/")
}

// readKey returns the PEM material from KEY or from the file named by KEY_FILE.
func readKey(key string) string {
	if v := os.Getenv(key); v != "" {
		return strings.ReplaceAll(v, `\n`, "\n")
	}
	path := os.Getenv(key + "_FILE")
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func parseLevel(v string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// loadEnvFile overlays the first env file found. A missing file is not an error:
// production deployments inject the environment directly.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
