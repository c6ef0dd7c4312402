package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Provider selects the active payment provider adapter.
	Provider     string
	ProviderLive bool

	Xenpay XenpayConfig

	// SandboxWebhookSecret signs sandbox webhook payloads in dev setups.
	SandboxWebhookSecret string

	Poll  PollConfig
	Sweep SweepConfig
}

// XenpayConfig carries credentials for the xenpay provider.
type XenpayConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
}

// PollConfig controls the short-lived per-payment poll loop.
type PollConfig struct {
	InitialDelay time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	MaxAttempts  int
}

// SweepConfig controls the periodic non-terminal record sweep.
type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "aruspay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "aruspay"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		Provider:     strings.ToLower(getenv("PAYMENT_PROVIDER", "sandbox")),
		ProviderLive: getenvBool("PAYMENT_PROVIDER_LIVE", false),

		Xenpay: XenpayConfig{
			BaseURL:       getenv("XENPAY_BASE_URL", "https://api.xenpay.co"),
			APIKey:        strings.TrimSpace(getenv("XENPAY_API_KEY", "")),
			WebhookSecret: strings.TrimSpace(getenv("XENPAY_WEBHOOK_SECRET", "")),
		},

		SandboxWebhookSecret: strings.TrimSpace(getenv("SANDBOX_WEBHOOK_SECRET", "sandbox_secret")),

		Poll: PollConfig{
			InitialDelay: getenvDuration("POLL_INITIAL_DELAY", 5*time.Second),
			BaseBackoff:  getenvDuration("POLL_BASE_BACKOFF", 10*time.Second),
			MaxBackoff:   getenvDuration("POLL_MAX_BACKOFF", 2*time.Minute),
			MaxAttempts:  getenvInt("POLL_MAX_ATTEMPTS", 10),
		},
		Sweep: SweepConfig{
			Interval:  getenvDuration("SWEEP_INTERVAL", 5*time.Minute),
			BatchSize: getenvInt("SWEEP_BATCH_SIZE", 100),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
