package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// maxBatchSize is the largest page the Gamma API serves per request.
const maxBatchSize = 100

// Client fetches market listings from the Polymarket Gamma API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// FetchActiveMarkets fetches open markets ordered by 24h volume, paginating
// when limit exceeds a single page. A limit of zero fetches everything.
func (c *Client) FetchActiveMarkets(ctx context.Context, limit int) ([]types.Market, error) {
	fetchAll := limit == 0

	var all []types.Market
	offset := 0
	for {
		pageSize := maxBatchSize
		if !fetchAll && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}
		if pageSize <= 0 {
			break
		}

		page, err := c.fetchPage(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) < pageSize {
			break
		}
		offset += len(page)
	}

	return all, nil
}

// FetchMarketsBySlugs fetches an explicit set of markets by slug. One slug
// failing does not fail the rest.
func (c *Client) FetchMarketsBySlugs(ctx context.Context, slugs []string) ([]types.Market, error) {
	all := make([]types.Market, 0, len(slugs))
	for _, slug := range slugs {
		markets, err := c.fetch(ctx, url.Values{"slug": []string{slug}})
		if err != nil {
			c.logger.Warn("fetch-market-by-slug-failed",
				zap.String("slug", slug),
				zap.Error(err))
			continue
		}
		all = append(all, markets...)
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, limit, offset int) ([]types.Market, error) {
	params := url.Values{}
	params.Add("closed", "false")
	params.Add("active", "true")
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	params.Add("order", "volume24hr")
	params.Add("ascending", "false")

	c.logger.Debug("fetching-markets",
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	return c.fetch(ctx, params)
}

func (c *Client) fetch(ctx context.Context, params url.Values) ([]types.Market, error) {
	requestURL := fmt.Sprintf("%s/markets?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	// The Gamma API returns a bare array.
	var markets []types.Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("unmarshal markets: %w", err)
	}
	return markets, nil
}
