// Package config loads orderbot settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Catalog backends.
const (
	CatalogFile   = "file"
	CatalogSQLite = "sqlite"
	CatalogNATS   = "nats"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string
	LogFormat string
	UserName  string

	LLM   LLMConfig
	Store StoreConfig

	Catalog     string
	CatalogPath string

	NATSURL         string
	NATSTimeout     time.Duration
	CheckoutSubject string

	HTTPAddr     string
	MaxInputSize int
}

// LLMConfig selects the model and its call policy.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// StoreConfig selects the checkpoint store.
type StoreConfig struct {
	Backend       string
	Dir           string
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SessionTTL    time.Duration
	LockTTL       time.Duration
	LockWait      time.Duration
	// EncryptionKey enables at-rest encryption of checkpoints when set
	// (base64, 16/24/32 bytes decoded).
	EncryptionKey string
}

// Load reads .env (if present) and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	provider := strings.ToLower(getEnv("ORDERBOT_LLM_PROVIDER", "googleai"))
	cfg := &Config{
		LogLevel:  getEnv("ORDERBOT_LOG_LEVEL", "info"),
		LogFormat: getEnv("ORDERBOT_LOG_FORMAT", "text"),
		UserName:  getEnv("ORDERBOT_USER_NAME", "Lê Hoàng"),
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("ORDERBOT_LLM_MODEL", defaultModel(provider)),
			APIKey:      apiKey(provider),
			Temperature: getFloatEnv("ORDERBOT_LLM_TEMPERATURE", 0.7),
			Timeout:     getDurationEnv("ORDERBOT_LLM_TIMEOUT", 30*time.Second),
			MaxAttempts: getIntEnv("ORDERBOT_LLM_MAX_ATTEMPTS", 3),
			Backoff:     getDurationEnv("ORDERBOT_LLM_BACKOFF", 500*time.Millisecond),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("ORDERBOT_STORE", StoreFile)),
			Dir:           getEnv("ORDERBOT_STORE_DIR", ".orderbot/sessions"),
			SQLitePath:    getEnv("ORDERBOT_SQLITE_PATH", ".orderbot/orderbot.db"),
			RedisAddr:     getEnv("ORDERBOT_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("ORDERBOT_REDIS_PASSWORD", ""),
			RedisDB:       getIntEnv("ORDERBOT_REDIS_DB", 0),
			SessionTTL:    getDurationEnv("ORDERBOT_SESSION_TTL", 24*time.Hour),
			LockTTL:       getDurationEnv("ORDERBOT_LOCK_TTL", 2*time.Minute),
			LockWait:      getDurationEnv("ORDERBOT_LOCK_WAIT", 0),
			EncryptionKey: getEnv("ORDERBOT_STORE_KEY", ""),
		},
		Catalog:         strings.ToLower(getEnv("ORDERBOT_CATALOG", CatalogFile)),
		CatalogPath:     getEnv("ORDERBOT_CATALOG_PATH", "configs/menu.yaml"),
		NATSURL:         getEnv("ORDERBOT_NATS_URL", ""),
		NATSTimeout:     getDurationEnv("ORDERBOT_NATS_TIMEOUT", 2*time.Second),
		CheckoutSubject: getEnv("ORDERBOT_CHECKOUT_SUBJECT", "orderbot.checkout"),
		HTTPAddr:        getEnv("ORDERBOT_HTTP_ADDR", ":8080"),
		MaxInputSize:    getIntEnv("ORDERBOT_MAX_INPUT_SIZE", 4096),
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown backends and nonsensical limits.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("config: unknown store %q", c.Store.Backend)
	}
	switch c.Catalog {
	case CatalogFile, CatalogSQLite:
	case CatalogNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("config: catalog %q needs ORDERBOT_NATS_URL", c.Catalog)
		}
	default:
		return fmt.Errorf("config: unknown catalog %q", c.Catalog)
	}
	if c.MaxInputSize <= 0 {
		return fmt.Errorf("config: ORDERBOT_MAX_INPUT_SIZE must be positive")
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("config: ORDERBOT_LLM_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "anthropic":
		return "claude-3-5-haiku-latest"
	default:
		return "gemini-2.0-flash"
	}
}

func apiKey(provider string) string {
	switch provider {
	case "openai":
		return getEnv("OPENAI_API_KEY", "")
	case "anthropic":
		return getEnv("ANTHROPIC_API_KEY", "")
	default:
		return getEnv("GEMINI_API_KEY", "")
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := getEnv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := getEnv(key, ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
