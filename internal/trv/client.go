package trv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vagdata/trafik-etl/internal/domain"
)

// Client posts query documents to the upstream traffic-information API and
// decodes the response. It implements Transport.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	maxRetries  int
	backoffBase time.Duration
}

// NewClient creates an upstream API client. The endpoint suffix selects the
// response codec: a base URL ending in .json uses the JSON decoder, anything
// else the XML decoder.
func NewClient(apiKey, baseURL string, timeout time.Duration, maxRetries int, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:      logger,
		maxRetries:  maxRetries,
		backoffBase: time.Second,
	}
}

// FetchPage issues one page query. Transient failures (network errors, 429,
// 5xx) are retried with exponential backoff up to the configured attempt
// count; exhaustion surfaces as a fetch error. Non-retryable statuses (bad
// key, bad query) fail immediately.
func (c *Client) FetchPage(ctx context.Context, q Query) ([]domain.RawSituation, error) {
	payload := []byte(BuildRequestXML(c.apiKey, q))

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if !sleepBackoff(ctx, c.backoffBase, attempt) {
				return nil, ctx.Err()
			}
		}

		body, retryable, err := c.post(ctx, payload)
		if err == nil {
			return c.decode(body)
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("upstream request failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("upstream unavailable after %d attempts: %w", c.maxRetries, lastErr)
}

// post performs one POST. The second return reports whether the failure is
// worth retrying.
func (c *Client) post(ctx context.Context, payload []byte) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("post query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, false, nil
	}

	err = fmt.Errorf("upstream status %d: %s", resp.StatusCode, truncate(body, 500))
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return nil, true, err
	default:
		return nil, false, err
	}
}

func (c *Client) decode(body []byte) ([]domain.RawSituation, error) {
	if strings.HasSuffix(c.baseURL, ".json") {
		return DecodeJSON(body)
	}
	return DecodeXML(body)
}

// sleepBackoff waits base*2^attempt capped at 10s, honoring cancellation.
// Returns false if the context ended first.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) bool {
	d := base << attempt
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
