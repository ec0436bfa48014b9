package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the upstream traffic-information endpoint. The suffix
// selects the response codec (.xml or .json).
const DefaultBaseURL = "https://api.trafikinfo.trafikverket.se/v2/data.xml"

// Config holds all service settings, populated from environment variables.
// A .env file in the working directory is honored for local development.
type Config struct {
	APIKey  string
	BaseURL string

	DBPath   string
	DaysBack int

	PageSize      int
	MaxPages      int
	FutureHorizon time.Duration // 0 disables the future cap on speculative incidents

	RequestTimeout time.Duration
	MaxRetries     int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RefreshInterval time.Duration // 0 disables periodic refresh in serve mode

	WebhookURL     string
	WebhookTimeout time.Duration

	// Row-count sanity bounds; a run outside them raises a warning
	// notification. Zero disables the corresponding bound.
	ExpectMinRows int
	ExpectMaxRows int

	// Optional Kafka fan-out of normalized incidents.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from the environment, applying defaults where
// unset. Missing credentials are a fatal startup error, caught before any
// network call.
func Load() (*Config, error) {
	// Best effort: absent .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:    os.Getenv("TRV_API_KEY"),
		BaseURL:   envOrDefault("TRV_BASE_URL", DefaultBaseURL),
		DBPath:    envOrDefault("DB_PATH", "trafik.db"),
		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		WebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),

		KafkaTopic: envOrDefault("KAFKA_TOPIC", "normalized-incidents"),
	}

	var err error
	if cfg.DaysBack, err = envInt("DAYS_BACK", 1); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = envInt("PAGE_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = envInt("MAX_PAGES", 20); err != nil {
		return nil, err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.ExpectMinRows, err = envInt("EXPECT_MIN_ROWS", 0); err != nil {
		return nil, err
	}
	if cfg.ExpectMaxRows, err = envInt("EXPECT_MAX_ROWS", 0); err != nil {
		return nil, err
	}

	futureDays, err := envInt("FUTURE_DAYS_LIMIT", 14)
	if err != nil {
		return nil, err
	}
	cfg.FutureHorizon = time.Duration(futureDays) * 24 * time.Hour

	if cfg.RequestTimeout, err = envDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = envDuration("REFRESH_INTERVAL", 0); err != nil {
		return nil, err
	}
	if cfg.WebhookTimeout, err = envDuration("WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.KafkaBrokers = splitBrokers(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	if cfg.APIKey == "" {
		return nil, errors.New("TRV_API_KEY is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("TRV_BASE_URL must not be empty")
	}
	if cfg.DaysBack <= 0 {
		return nil, errors.New("DAYS_BACK must be positive")
	}
	if cfg.PageSize <= 0 {
		return nil, errors.New("PAGE_SIZE must be positive")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func splitBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
