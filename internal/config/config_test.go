package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRV_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testAPIKey, cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "trafik.db", cfg.DBPath)
	assert.Equal(t, 1, cfg.DaysBack)
	assert.Equal(t, 500, cfg.PageSize)
	assert.Equal(t, 20, cfg.MaxPages)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 14*24*time.Hour, cfg.FutureHorizon)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.RefreshInterval)
	assert.Empty(t, cfg.WebhookURL)
	assert.Zero(t, cfg.ExpectMinRows)
	assert.Zero(t, cfg.ExpectMaxRows)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("TRV_API_KEY", testAPIKey)
	t.Setenv("TRV_BASE_URL", "https://api.trafikinfo.trafikverket.se/v2/data.json")
	t.Setenv("DB_PATH", "/var/lib/trafik/incidents.db")
	t.Setenv("DAYS_BACK", "7")
	t.Setenv("PAGE_SIZE", "250")
	t.Setenv("MAX_PAGES", "5")
	t.Setenv("FUTURE_DAYS_LIMIT", "3")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/x")
	t.Setenv("EXPECT_MIN_ROWS", "10")
	t.Setenv("EXPECT_MAX_ROWS", "5000")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.trafikinfo.trafikverket.se/v2/data.json", cfg.BaseURL)
	assert.Equal(t, "/var/lib/trafik/incidents.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.DaysBack)
	assert.Equal(t, 250, cfg.PageSize)
	assert.Equal(t, 5, cfg.MaxPages)
	assert.Equal(t, 3*24*time.Hour, cfg.FutureHorizon)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 10, cfg.ExpectMinRows)
	assert.Equal(t, 5000, cfg.ExpectMaxRows)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("TRV_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRV_API_KEY")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric days back", "DAYS_BACK", "imorgon"},
		{"zero page size", "PAGE_SIZE", "0"},
		{"bad duration", "REQUEST_TIMEOUT", "snart"},
		{"negative duration", "REFRESH_INTERVAL", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRV_API_KEY", testAPIKey)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("TRV_API_KEY", testAPIKey)
	t.Setenv("KAFKA_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
