package trv

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQuery() Query {
	return Query{Since: time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), PageSize: 10}
}

func TestClient_FetchPage(t *testing.T) {
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody.Store(string(body))
		w.Write([]byte(sampleXML))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, 5*time.Second, 3, slog.Default())
	situations, err := c.FetchPage(context.Background(), testQuery())

	require.NoError(t, err)
	require.Len(t, situations, 1)
	assert.Equal(t, "SIT_A", situations[0].ID)

	sent, _ := gotBody.Load().(string)
	assert.Contains(t, sent, `objecttype="Situation"`)
	assert.Contains(t, sent, `authenticationkey="key"`)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`<RESPONSE><RESULT></RESULT></RESPONSE>`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, 5*time.Second, 3, slog.Default())
	c.backoffBase = time.Millisecond
	_, err := c.FetchPage(context.Background(), testQuery())

	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_NonRetryableStatusFailsImmediately(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	c := NewClient("wrong", srv.URL, 5*time.Second, 3, slog.Default())
	_, err := c.FetchPage(context.Background(), testQuery())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, 5*time.Second, 2, slog.Default())
	c.backoffBase = time.Millisecond
	_, err := c.FetchPage(context.Background(), testQuery())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_JSONEndpointUsesJSONDecoder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleJSON))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient("key", srv.URL+"/v2/data.json", 5*time.Second, 3, slog.Default())
	situations, err := c.FetchPage(context.Background(), testQuery())

	require.NoError(t, err)
	require.Len(t, situations, 1)
	assert.Equal(t, "SIT_A", situations[0].ID)
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client disconnect and
		// cancel the request context; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, 30*time.Second, 3, slog.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchPage(ctx, testQuery())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "deadline") || strings.Contains(err.Error(), "cancel"))
}
