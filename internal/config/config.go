package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AI        AIConfig
	Billing   BillingConfig
	RateLimit RateLimitConfig
}

// RateLimitConfig throttles the inbound webhook per account address.
type RateLimitConfig struct {
	Enabled        bool
	WebhookRate    float64
	WebhookBurst   int
	LockTTLSeconds int
}

// AIConfig configures the model provider boundary.
type AIConfig struct {
	BaseURL             string
	APIKey              string
	DefaultModel        string
	TimeoutSeconds      int
	PromptCostPer1K     float64
	CompletionCostPer1K float64
	ContextWindowLength int
}

// BillingConfig carries the per-unit prices and overage policy.
// Amounts are in minor units of the local currency.
type BillingConfig struct {
	Currency                      string
	AIMessageCost                 int64
	ProductMessageCost            int64
	MediaCost                     int64
	OverageEnabled                bool
	OverageMinimumWalletBalance   int64
	MaxLinkedPerAgent             int
	MaxSentPerMessage             int
	UsageAlertThresholdPercentage int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "chatwire"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "chatwire"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		AI: AIConfig{
			BaseURL:             getenv("AI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:              strings.TrimSpace(getenv("AI_API_KEY", "")),
			DefaultModel:        getenv("AI_DEFAULT_MODEL", "gpt-4o-mini"),
			TimeoutSeconds:      getenvInt("AI_TIMEOUT_SECONDS", 45),
			PromptCostPer1K:     getenvFloat("AI_PROMPT_COST_PER_1K", 0.00015),
			CompletionCostPer1K: getenvFloat("AI_COMPLETION_COST_PER_1K", 0.0006),
			ContextWindowLength: getenvInt("AI_CONTEXT_WINDOW_LENGTH", 20),
		},
		Billing: BillingConfig{
			Currency:                      getenv("BILLING_CURRENCY", "XAF"),
			AIMessageCost:                 getenvInt64("AI_MESSAGE_COST", 15),
			ProductMessageCost:            getenvInt64("PRODUCT_MESSAGE_COST", 10),
			MediaCost:                     getenvInt64("MEDIA_COST", 5),
			OverageEnabled:                getenvBool("OVERAGE_ENABLED", true),
			OverageMinimumWalletBalance:   getenvInt64("OVERAGE_MINIMUM_WALLET_BALANCE", 0),
			MaxLinkedPerAgent:             getenvInt("PRODUCTS_MAX_LINKED_PER_AGENT", 50),
			MaxSentPerMessage:             getenvInt("PRODUCTS_MAX_SENT_PER_MESSAGE", 10),
			UsageAlertThresholdPercentage: getenvInt("USAGE_ALERT_THRESHOLD_PERCENTAGE", 80),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getenvBool("RATE_LIMIT_ENABLED", false),
			WebhookRate:    getenvFloat("RATE_LIMIT_WEBHOOK_RATE", 2),
			WebhookBurst:   getenvInt("RATE_LIMIT_WEBHOOK_BURST", 10),
			LockTTLSeconds: getenvInt("RATE_LIMIT_LOCK_TTL_SECONDS", 60),
		},
	}

	return cfg
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

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
