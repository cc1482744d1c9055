package marketdata

import "github.com/mselser95/polymarket-engine/pkg/types"

// VWAP walks one side of a token's book and returns the volume-weighted
// average price for acquiring targetVolume shares. Asks are walked for buys,
// bids for sells. Returns false when the book is missing or its displayed
// depth cannot cover the target volume; a partial walk is never priced.
func (s *Store) VWAP(tokenID string, side types.Side, targetVolume float64) (types.VwapResult, bool) {
	if targetVolume <= 0 {
		return types.VwapResult{}, false
	}

	book, ok := s.Snapshot(tokenID)
	if !ok {
		return types.VwapResult{}, false
	}
	return WalkLevels(bookSide(book, side), targetVolume)
}

func bookSide(book *types.OrderBook, side types.Side) []types.Level {
	if side == types.SideSell {
		return book.Bids
	}
	return book.Asks
}

// WalkLevels computes the VWAP over pre-sorted levels for a target volume.
// Returns false when the levels run out before the target is met.
func WalkLevels(levels []types.Level, targetVolume float64) (types.VwapResult, bool) {
	var (
		remaining = targetVolume
		cost      float64
		worst     float64
		consumed  int
	)

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		cost += take * lvl.Price
		worst = lvl.Price
		remaining -= take
		consumed++
	}

	if remaining > 1e-9 {
		return types.VwapResult{}, false
	}

	return types.VwapResult{
		Price:      cost / targetVolume,
		Filled:     targetVolume,
		WorstPrice: worst,
		Levels:     consumed,
	}, true
}
