package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache backs Cache with a ristretto in-process cache. Cost is one
// per item since the cached values are tiny metadata structs.
type RistrettoCache struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds cache sizing.
type RistrettoConfig struct {
	NumCounters int64 // frequency counters, roughly 10x expected items
	MaxItems    int64
	Logger      *zap.Logger
}

// NewRistrettoCache creates a ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (Cache, error) {
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxItems,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoCache{cache: inner, logger: cfg.Logger}, nil
}

func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	value, found := r.cache.Get(key)
	if found {
		HitsTotal.Inc()
	} else {
		MissesTotal.Inc()
	}
	return value, found
}

func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	admitted := r.cache.SetWithTTL(key, value, 1, ttl)
	if !admitted {
		r.logger.Debug("cache-set-rejected", zap.String("key", key))
	}
	return admitted
}

func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
}

func (r *RistrettoCache) Close() {
	r.cache.Close()
}
