package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	Port      string `validate:"required,numeric"`
	RedisHost string `validate:"required"`
	RedisPort string `validate:"required,numeric"`
	RateLimit int    `validate:"gte=0"`

	TrustProxy    bool
	UseCloudflare bool
	Debug         bool

	// Websocket origin policy
	AllowedDomain   string
	SkipOriginCheck bool

	// Validator
	WorkerURL      string        `validate:"omitempty,url"`
	ProxyTimeout   time.Duration `validate:"gt=0"`
	WorkerTimeout  time.Duration `validate:"gt=0"`
	WorkerRPS      float64       `validate:"gt=0"`
	WorkerBurst    int           `validate:"gte=1"`
	DNSResolver    string        `validate:"omitempty,hostname_port"`
	ReportCacheTTL time.Duration `validate:"gte=0"`

	// Link tester
	HistoryLimit int           `validate:"gte=1,lte=100"`
	HistoryTTL   time.Duration `validate:"gt=0"`

	WatchSchedule string
}

// LoadConfig reads the environment, after merging a .env file from the
// working directory when one exists. Real environment variables win.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "5000"),
		RedisHost:       getEnv("REDIS_HOST", "localhost"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		TrustProxy:      getEnvBool("TRUST_PROXY", true),
		UseCloudflare:   getEnvBool("USE_CLOUDFLARE", false),
		RateLimit:       getEnvInt("RATE_LIMIT", 20),
		Debug:           getEnvBool("DEBUG", false),
		AllowedDomain:   getEnv("ALLOWED_DOMAIN", ""),
		SkipOriginCheck: getEnvBool("SKIP_ORIGIN_CHECK", false),
		WorkerURL:       getEnv("WORKER_URL", "https://deeplink-validator.pongsupavit.workers.dev"),
		ProxyTimeout:    getEnvDuration("PROXY_TIMEOUT", 8*time.Second),
		WorkerTimeout:   getEnvDuration("WORKER_TIMEOUT", 8*time.Second),
		WorkerRPS:       getEnvFloat("WORKER_RPS", 1),
		WorkerBurst:     getEnvInt("WORKER_BURST", 5),
		DNSResolver:     getEnv("DNS_RESOLVER", "8.8.8.8:53"),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", 10),
		HistoryTTL:      getEnvDuration("HISTORY_TTL", 7*24*time.Hour),
		WatchSchedule:   getEnv("WATCH_SCHEDULE", "0 3 * * *"),
	}

	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return nil, formatValidationErrors(validationErrors)
		}
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func formatValidationErrors(errs validator.ValidationErrors) error {
	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", err.Field(), err.Tag()))
	}
	return fmt.Errorf("validation errors: %v", msgs)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("8s") and bare integers as milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
