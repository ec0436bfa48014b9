package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_DeliversPayload(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(string(body))
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second, slog.Default())
	w.Notify(context.Background(), LevelSuccess, "ETL klar • rader=42")

	raw, _ := got.Load().(string)
	require.NotEmpty(t, raw)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Contains(t, payload["text"], "ETL klar")
	assert.Contains(t, payload["text"], "✅")
}

func TestWebhook_EmptyURLSkipsDelivery(t *testing.T) {
	w := NewWebhook("", 5*time.Second, slog.Default())
	assert.NotPanics(t, func() {
		w.Notify(context.Background(), LevelInfo, "hello")
	})
}

func TestWebhook_FailuresAreSwallowed(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second, slog.Default())
	assert.NotPanics(t, func() {
		w.Notify(context.Background(), LevelError, "boom")
	})
	assert.EqualValues(t, 1, calls.Load())

	// Unreachable endpoint is equally non-fatal.
	srv.Close()
	assert.NotPanics(t, func() {
		w.Notify(context.Background(), LevelWarning, "still fine")
	})
}

func TestWebhook_UnknownLevelFallsBackToInfo(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.Store(string(body))
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 5*time.Second, slog.Default())
	w.Notify(context.Background(), "shrug", "meddelande")

	raw, _ := got.Load().(string)
	assert.Contains(t, raw, "ℹ️")
}
