package markets

import (
	"context"
	"time"

	"github.com/mselser95/polymarket-engine/pkg/cache"
)

// TokenMetadata is the cached per-token venue metadata.
type TokenMetadata struct {
	TickSize     float64
	MinOrderSize float64
	FetchedAt    time.Time
}

// CachedMetadataClient fronts the metadata API with the shared cache so the
// order path never waits on HTTP for a token it has traded before. It is the
// tick-size source for order price rounding.
type CachedMetadataClient struct {
	client *MetadataClient
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedMetadataClient wraps the client with a cache. Tick sizes change
// rarely; a long TTL is fine.
func NewCachedMetadataClient(client *MetadataClient, c cache.Cache, ttl time.Duration) *CachedMetadataClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedMetadataClient{client: client, cache: c, ttl: ttl}
}

// TickSize returns the tick size for a token, cached.
func (c *CachedMetadataClient) TickSize(ctx context.Context, tokenID string) (float64, error) {
	meta, err := c.metadata(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return meta.TickSize, nil
}

// MinOrderSize returns the minimum order size for a token, cached.
func (c *CachedMetadataClient) MinOrderSize(ctx context.Context, tokenID string) (float64, error) {
	meta, err := c.metadata(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	return meta.MinOrderSize, nil
}

// UpdateTickSize patches a cached entry when the venue announces a tick size
// change. Uncached tokens are left alone and fetched on next use.
func (c *CachedMetadataClient) UpdateTickSize(tokenID string, tickSize float64) {
	if c.cache == nil {
		return
	}
	cached, ok := c.cache.Get(metadataKey(tokenID))
	if !ok {
		return
	}
	meta, ok := cached.(*TokenMetadata)
	if !ok {
		return
	}
	c.cache.Set(metadataKey(tokenID), &TokenMetadata{
		TickSize:     tickSize,
		MinOrderSize: meta.MinOrderSize,
		FetchedAt:    time.Now(),
	}, c.ttl)
}

func (c *CachedMetadataClient) metadata(ctx context.Context, tokenID string) (*TokenMetadata, error) {
	key := metadataKey(tokenID)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			if meta, ok := cached.(*TokenMetadata); ok {
				return meta, nil
			}
		}
	}

	tickSize, err := c.client.FetchTickSize(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	minSize, err := c.client.FetchMinOrderSize(ctx, tokenID)
	if err != nil {
		minSize = defaultMinOrderSize
	}

	meta := &TokenMetadata{
		TickSize:     tickSize,
		MinOrderSize: minSize,
		FetchedAt:    time.Now(),
	}
	if c.cache != nil {
		c.cache.Set(key, meta, c.ttl)
	}
	return meta, nil
}

func metadataKey(tokenID string) string {
	return "metadata:" + tokenID
}
