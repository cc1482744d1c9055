package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// BookMessage is a message from the Polymarket market-data WebSocket.
// EventType is one of "book", "price_change" or "last_trade_price".
type BookMessage struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Timestamp int64       `json:"-"` // milliseconds, sent as a string on the wire
	Hash      string      `json:"hash,omitempty"`
	Bids      []WireLevel `json:"bids,omitempty"`
	Asks      []WireLevel `json:"asks,omitempty"`
}

// UnmarshalJSON handles the string-encoded timestamp.
func (m *BookMessage) UnmarshalJSON(data []byte) error {
	type Alias BookMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		ts, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		m.Timestamp = ts
	}

	return nil
}

// PriceChangeMessage carries incremental best-price updates for one or more
// assets in a market. The engine treats these as freshness signals only; depth
// comes from full "book" events.
type PriceChangeMessage struct {
	EventType    string        `json:"event_type"`
	Market       string        `json:"market"`
	Timestamp    int64         `json:"-"`
	PriceChanges []PriceChange `json:"price_changes"`
}

// PriceChange is a single asset entry within a PriceChangeMessage.
type PriceChange struct {
	AssetID string `json:"asset_id"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// UnmarshalJSON handles the string-encoded timestamp.
func (m *PriceChangeMessage) UnmarshalJSON(data []byte) error {
	type Alias PriceChangeMessage
	aux := &struct {
		TimestampStr string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.TimestampStr != "" {
		ts, err := strconv.ParseInt(aux.TimestampStr, 10, 64)
		if err != nil {
			return err
		}
		m.Timestamp = ts
	}

	return nil
}

// WireLevel is a price level as transmitted by the exchange (decimal strings).
type WireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Level is a parsed, validated price level.
type Level struct {
	Price float64
	Size  float64
}

// Side selects one side of a book.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderBook is an immutable depth snapshot for a single token. Once published
// to the market-data store a book is never mutated; updates replace the whole
// value. Bids are sorted descending by price, asks ascending.
type OrderBook struct {
	TokenID   string
	Market    string
	Bids      []Level
	Asks      []Level
	Timestamp int64 // exchange timestamp, milliseconds
	Received  time.Time
	Hash      string
}

// BestBid returns the highest bid, or false when the side is empty.
func (b *OrderBook) BestBid() (Level, bool) {
	if len(b.Bids) == 0 {
		return Level{}, false
	}
	return b.Bids[0], true
}

// BestAsk returns the lowest ask, or false when the side is empty.
func (b *OrderBook) BestAsk() (Level, bool) {
	if len(b.Asks) == 0 {
		return Level{}, false
	}
	return b.Asks[0], true
}

// MidPrice returns the bid/ask midpoint, or false when either side is empty.
func (b *OrderBook) MidPrice() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// DepthAt sums displayed size on one side.
func (b *OrderBook) DepthAt(side Side) float64 {
	levels := b.Asks
	if side == SideSell {
		levels = b.Bids
	}
	var total float64
	for _, lvl := range levels {
		total += lvl.Size
	}
	return total
}

// VwapResult is the outcome of walking book depth for a target volume.
type VwapResult struct {
	Price      float64 // volume-weighted average price over the walk
	Filled     float64 // volume available at or better than Price
	WorstPrice float64 // deepest level touched
	Levels     int     // number of levels consumed
}
