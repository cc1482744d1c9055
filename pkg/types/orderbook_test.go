package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookMessage_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, msg *BookMessage)
	}{
		{
			name: "full_book_event",
			input: `{
				"event_type": "book",
				"asset_id": "token-yes",
				"market": "0xabc",
				"timestamp": "1700000000123",
				"bids": [{"price": "0.44", "size": "120"}],
				"asks": [{"price": "0.46", "size": "80"}, {"price": "0.47", "size": "40"}]
			}`,
			check: func(t *testing.T, msg *BookMessage) {
				assert.Equal(t, "book", msg.EventType)
				assert.Equal(t, "token-yes", msg.AssetID)
				assert.Equal(t, int64(1700000000123), msg.Timestamp)
				require.Len(t, msg.Asks, 2)
				assert.Equal(t, "0.46", msg.Asks[0].Price)
			},
		},
		{
			name:    "non_numeric_timestamp",
			input:   `{"event_type": "book", "asset_id": "t", "timestamp": "soon"}`,
			wantErr: true,
		},
		{
			name:  "missing_timestamp_is_zero",
			input: `{"event_type": "book", "asset_id": "t"}`,
			check: func(t *testing.T, msg *BookMessage) {
				assert.Zero(t, msg.Timestamp)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var msg BookMessage
			err := json.Unmarshal([]byte(tt.input), &msg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, &msg)
		})
	}
}

func TestPriceChangeMessage_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	input := `{
		"event_type": "price_change",
		"market": "0xdef",
		"timestamp": "1700000000500",
		"price_changes": [
			{"asset_id": "t1", "best_bid": "0.52", "best_ask": "0.53"},
			{"asset_id": "t2", "best_bid": "0.46", "best_ask": "0.48"}
		]
	}`

	var msg PriceChangeMessage
	require.NoError(t, json.Unmarshal([]byte(input), &msg))
	assert.Equal(t, int64(1700000000500), msg.Timestamp)
	require.Len(t, msg.PriceChanges, 2)
	assert.Equal(t, "0.53", msg.PriceChanges[0].BestAsk)
}

func TestOrderBook_Accessors(t *testing.T) {
	t.Parallel()

	book := &OrderBook{
		TokenID: "token-yes",
		Bids:    []Level{{Price: 0.44, Size: 100}, {Price: 0.43, Size: 50}},
		Asks:    []Level{{Price: 0.46, Size: 80}, {Price: 0.47, Size: 40}},
	}

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, 0.44, bid.Price)

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 0.46, ask.Price)

	mid, ok := book.MidPrice()
	require.True(t, ok)
	assert.InDelta(t, 0.45, mid, 1e-12)

	assert.Equal(t, 120.0, book.DepthAt(SideBuy))
	assert.Equal(t, 150.0, book.DepthAt(SideSell))

	empty := &OrderBook{TokenID: "t"}
	_, ok = empty.BestBid()
	assert.False(t, ok)
	_, ok = empty.MidPrice()
	assert.False(t, ok)
}
