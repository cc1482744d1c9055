package marketdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-engine/pkg/types"
	ws "github.com/mselser95/polymarket-engine/pkg/websocket"
)

// Ingestor drains the feed channel and keeps the store current. All wire
// validation happens here, before anything reaches a strategy: prices must
// be finite and inside [0, 1], sizes strictly positive, and levels are
// re-sorted so the store never holds an ill-ordered book.
type Ingestor struct {
	store  *Store
	logger *zap.Logger
	events <-chan *ws.Envelope
	wg     sync.WaitGroup
}

// IngestorConfig holds ingestor configuration.
type IngestorConfig struct {
	Store  *Store
	Events <-chan *ws.Envelope
	Logger *zap.Logger
}

// NewIngestor creates a feed ingestor.
func NewIngestor(cfg IngestorConfig) *Ingestor {
	return &Ingestor{
		store:  cfg.Store,
		logger: cfg.Logger,
		events: cfg.Events,
	}
}

// Start launches the ingest loop.
func (i *Ingestor) Start(ctx context.Context) error {
	i.logger.Info("marketdata-ingestor-starting")

	i.wg.Add(1)
	go i.run(ctx)

	return nil
}

func (i *Ingestor) run(ctx context.Context) {
	defer i.wg.Done()

	for {
		select {
		case <-ctx.Done():
			i.logger.Info("marketdata-ingestor-stopping")
			return
		case env, ok := <-i.events:
			if !ok {
				i.logger.Info("feed-channel-closed")
				return
			}

			err := i.handle(env)
			if err != nil {
				UpdatesRejectedTotal.WithLabelValues(env.EventType).Inc()
				i.logger.Warn("feed-event-rejected",
					zap.Error(err),
					zap.String("event-type", env.EventType))
			}
		}
	}
}

func (i *Ingestor) handle(env *ws.Envelope) error {
	timer := prometheus.NewTimer(UpdateProcessingDuration)
	defer timer.ObserveDuration()

	UpdatesTotal.WithLabelValues(env.EventType).Inc()

	switch env.EventType {
	case "book":
		return i.handleBook(env)
	case "price_change":
		return i.handlePriceChange(env)
	default:
		// last_trade_price and friends carry nothing the store needs.
		return nil
	}
}

func (i *Ingestor) handleBook(env *ws.Envelope) error {
	var msg types.BookMessage
	err := json.Unmarshal(env.Data, &msg)
	if err != nil {
		return fmt.Errorf("decode book event: %w", err)
	}
	if msg.AssetID == "" {
		return fmt.Errorf("book event without asset id")
	}

	bids, err := parseLevels(msg.Bids, false)
	if err != nil {
		return fmt.Errorf("parse bids for %s: %w", msg.AssetID, err)
	}
	asks, err := parseLevels(msg.Asks, true)
	if err != nil {
		return fmt.Errorf("parse asks for %s: %w", msg.AssetID, err)
	}

	book := &types.OrderBook{
		TokenID:   msg.AssetID,
		Market:    msg.Market,
		Bids:      bids,
		Asks:      asks,
		Timestamp: msg.Timestamp,
		Received:  env.Received,
		Hash:      msg.Hash,
	}

	if !i.store.Update(book) {
		UpdatesStaleTotal.Inc()
		i.logger.Debug("stale-book-dropped",
			zap.String("token-id", msg.AssetID),
			zap.Int64("timestamp", msg.Timestamp))
		return nil
	}

	TokensTracked.Set(float64(i.store.TokenCount()))

	i.logger.Debug("book-updated",
		zap.String("token-id", msg.AssetID),
		zap.Int("bid-levels", len(bids)),
		zap.Int("ask-levels", len(asks)))

	return nil
}

// handlePriceChange patches the top of an existing book. The full depth
// arrives only in "book" events; a price change for an unknown token is
// ignored rather than treated as a one-level book.
func (i *Ingestor) handlePriceChange(env *ws.Envelope) error {
	var msg types.PriceChangeMessage
	err := json.Unmarshal(env.Data, &msg)
	if err != nil {
		return fmt.Errorf("decode price_change event: %w", err)
	}

	for _, pc := range msg.PriceChanges {
		cur, ok := i.store.Snapshot(pc.AssetID)
		if !ok {
			continue
		}

		book := *cur
		book.Timestamp = msg.Timestamp
		book.Received = env.Received

		if bid, err := parsePrice(pc.BestBid); err == nil {
			book.Bids = patchTop(cur.Bids, bid)
		}
		if ask, err := parsePrice(pc.BestAsk); err == nil {
			book.Asks = patchTop(cur.Asks, ask)
		}

		if !i.store.Update(&book) {
			UpdatesStaleTotal.Inc()
		}
	}

	return nil
}

// patchTop replaces the best level's price, keeping its displayed size.
// Books are immutable, so the side is copied before patching.
func patchTop(levels []types.Level, price float64) []types.Level {
	if len(levels) == 0 {
		return []types.Level{}
	}
	out := make([]types.Level, len(levels))
	copy(out, levels)
	out[0].Price = price
	return out
}

func parsePrice(s string) (float64, error) {
	p, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1 {
		return 0, fmt.Errorf("price %v outside [0, 1]", p)
	}
	return p, nil
}

// parseLevels converts wire levels to validated floats and sorts them into
// canonical order: asks ascending, bids descending. Duplicate prices are
// merged. Levels with zero or negative size are dropped; a malformed price
// rejects the whole update.
func parseLevels(wire []types.WireLevel, ascending bool) ([]types.Level, error) {
	levels := make([]types.Level, 0, len(wire))
	for _, wl := range wire {
		price, err := parsePrice(wl.Price)
		if err != nil {
			return nil, err
		}

		size, err := strconv.ParseFloat(wl.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("parse size %q: %w", wl.Size, err)
		}
		if math.IsNaN(size) || math.IsInf(size, 0) {
			return nil, fmt.Errorf("size %v is not finite", size)
		}
		if size <= 0 {
			continue
		}

		levels = append(levels, types.Level{Price: price, Size: size})
	}

	sort.Slice(levels, func(a, b int) bool {
		if ascending {
			return levels[a].Price < levels[b].Price
		}
		return levels[a].Price > levels[b].Price
	})

	// Merge duplicate price levels.
	out := levels[:0]
	for _, lvl := range levels {
		if n := len(out); n > 0 && out[n-1].Price == lvl.Price {
			out[n-1].Size += lvl.Size
			continue
		}
		out = append(out, lvl)
	}

	return out, nil
}

// Close waits for the ingest loop to drain.
func (i *Ingestor) Close() error {
	i.logger.Info("closing-marketdata-ingestor")
	i.wg.Wait()
	i.logger.Info("marketdata-ingestor-closed")
	return nil
}
