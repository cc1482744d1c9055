package markets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

const (
	defaultTickSize     = 0.01
	defaultMinOrderSize = 5.0
)

// MetadataClient fetches per-token venue metadata from the CLOB REST API.
// Transient failures are retried with a short backoff since tick size gates
// order placement.
type MetadataClient struct {
	baseURL      string
	httpClient   *http.Client
	retries      int
	retryBackoff time.Duration
	logger       *zap.Logger
}

// MetadataConfig holds metadata client configuration.
type MetadataConfig struct {
	BaseURL      string
	Retries      int
	RetryBackoff time.Duration
	HTTPClient   *http.Client // optional
	Logger       *zap.Logger
}

// NewMetadataClient creates a metadata client.
func NewMetadataClient(cfg *MetadataConfig) *MetadataClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	return &MetadataClient{
		baseURL:      cfg.BaseURL,
		httpClient:   httpClient,
		retries:      retries,
		retryBackoff: backoff,
		logger:       cfg.Logger,
	}
}

// FetchTickSize returns the minimum tick size for a token.
func (c *MetadataClient) FetchTickSize(ctx context.Context, tokenID string) (float64, error) {
	body, err := c.get(ctx, "/tick-size?token_id="+url.QueryEscape(tokenID))
	if err != nil {
		return 0, err
	}

	var resp types.TickSizeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse tick size: %w", err)
	}
	if resp.MinimumTickSize <= 0 {
		return 0, fmt.Errorf("tick size missing for token %s", tokenID)
	}
	return resp.MinimumTickSize, nil
}

// FetchMinOrderSize returns the venue's minimum order size for a token. The
// API does not always expose it; absent values fall back to the venue
// default.
func (c *MetadataClient) FetchMinOrderSize(ctx context.Context, tokenID string) (float64, error) {
	body, err := c.get(ctx, "/book?token_id="+url.QueryEscape(tokenID))
	if err != nil {
		return defaultMinOrderSize, nil
	}

	var resp struct {
		MinSize float64 `json:"min_size"`
		Market  struct {
			MinSize float64 `json:"minimum_order_size"`
		} `json:"market"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return defaultMinOrderSize, nil
	}

	if resp.MinSize > 0 {
		return resp.MinSize, nil
	}
	if resp.Market.MinSize > 0 {
		return resp.Market.MinSize, nil
	}
	return defaultMinOrderSize, nil
}

// get issues a GET with retries on transport errors and 5xx responses.
func (c *MetadataClient) get(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}

		start := time.Now()
		body, err := c.getOnce(ctx, path)
		MetadataFetchDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			return body, nil
		}
		lastErr = err
		MetadataFetchErrorsTotal.Inc()
		c.logger.Debug("metadata-fetch-retry",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("metadata fetch failed after %d attempts: %w", c.retries, lastErr)
}

func (c *MetadataClient) getOnce(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
