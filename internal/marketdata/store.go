// Package marketdata holds the shared order-book state read by every
// strategy on every evaluation tick. The store is lock-free on the hot path:
// books are immutable values swapped in atomically, so a slow reader can
// never stall the feed handler and a burst of updates never blocks a reader.
package marketdata

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mselser95/polymarket-engine/pkg/types"
)

// entry is the per-token slot. The book and its receive time travel behind
// one pointer so ordering is enforced by a single CAS: a writer that loses
// the race re-reads and either retries or drops, and the stored book always
// matches the timestamp that admitted it.
type entry struct {
	state atomic.Pointer[bookState]
}

// bookState is an immutable (book, local receive time) pair.
type bookState struct {
	book     *types.OrderBook
	storedNs int64
}

// Store is the concurrent market-data store. Writers (the feed ingestor)
// and readers (strategies, paper trader, HTTP handlers) never share a lock.
type Store struct {
	entries sync.Map // token id -> *entry

	pairMu sync.RWMutex
	pairs  map[string]types.MarketPair // market id -> pair
	byTok  map[string]string           // token id -> market id
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		pairs: make(map[string]types.MarketPair),
		byTok: make(map[string]string),
	}
}

// Update publishes a new book for its token. Returns false when the update
// was dropped because a book with an equal or newer exchange timestamp is
// already stored.
func (s *Store) Update(book *types.OrderBook) bool {
	v, _ := s.entries.LoadOrStore(book.TokenID, &entry{})
	e := v.(*entry)

	next := &bookState{book: book, storedNs: time.Now().UnixNano()}
	for {
		cur := e.state.Load()
		if cur != nil && book.Timestamp != 0 && cur.book.Timestamp != 0 &&
			cur.book.Timestamp >= book.Timestamp {
			return false
		}
		if e.state.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Snapshot returns the current book for a token. The returned book is
// immutable; callers may walk its levels without copying.
func (s *Store) Snapshot(tokenID string) (*types.OrderBook, bool) {
	v, ok := s.entries.Load(tokenID)
	if !ok {
		return nil, false
	}
	st := v.(*entry).state.Load()
	if st == nil {
		return nil, false
	}
	return st.book, true
}

// Age returns how long ago the token's book was stored locally. Returns
// false when no book exists yet.
func (s *Store) Age(tokenID string) (time.Duration, bool) {
	v, ok := s.entries.Load(tokenID)
	if !ok {
		return 0, false
	}
	st := v.(*entry).state.Load()
	if st == nil {
		return 0, false
	}
	return time.Duration(time.Now().UnixNano() - st.storedNs), true
}

// BestAsk returns the best ask for a token, or false when the book is
// missing or one-sided.
func (s *Store) BestAsk(tokenID string) (types.Level, bool) {
	book, ok := s.Snapshot(tokenID)
	if !ok {
		return types.Level{}, false
	}
	return book.BestAsk()
}

// BestBid returns the best bid for a token, or false when the book is
// missing or one-sided.
func (s *Store) BestBid(tokenID string) (types.Level, bool) {
	book, ok := s.Snapshot(tokenID)
	if !ok {
		return types.Level{}, false
	}
	return book.BestBid()
}

// MidPrice returns the midpoint for a token, or false when either side of
// the book is empty.
func (s *Store) MidPrice(tokenID string) (float64, bool) {
	book, ok := s.Snapshot(tokenID)
	if !ok {
		return 0, false
	}
	return book.MidPrice()
}

// HasData reports whether at least one book has been stored. The strategy
// engine skips evaluation ticks until this turns true.
func (s *Store) HasData() bool {
	has := false
	s.entries.Range(func(_, v any) bool {
		if v.(*entry).state.Load() != nil {
			has = true
			return false
		}
		return true
	})
	return has
}

// TokenCount returns the number of tokens with a stored book.
func (s *Store) TokenCount() int {
	n := 0
	s.entries.Range(func(_, v any) bool {
		if v.(*entry).state.Load() != nil {
			n++
		}
		return true
	})
	return n
}

// RegisterPair records a YES/NO token pair for a market.
func (s *Store) RegisterPair(pair types.MarketPair) {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()
	s.pairs[pair.Market] = pair
	s.byTok[pair.YesToken] = pair.Market
	s.byTok[pair.NoToken] = pair.Market
}

// Pair returns the registered pair for a market id.
func (s *Store) Pair(market string) (types.MarketPair, bool) {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()
	p, ok := s.pairs[market]
	return p, ok
}

// PairForToken returns the pair a token belongs to.
func (s *Store) PairForToken(tokenID string) (types.MarketPair, bool) {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()
	market, ok := s.byTok[tokenID]
	if !ok {
		return types.MarketPair{}, false
	}
	p, ok := s.pairs[market]
	return p, ok
}

// Complement returns the opposite token of a pair, or false when the token
// is not registered.
func (s *Store) Complement(tokenID string) (string, bool) {
	pair, ok := s.PairForToken(tokenID)
	if !ok {
		return "", false
	}
	if pair.YesToken == tokenID {
		return pair.NoToken, true
	}
	return pair.YesToken, true
}

// Pairs returns all registered pairs.
func (s *Store) Pairs() []types.MarketPair {
	s.pairMu.RLock()
	defer s.pairMu.RUnlock()
	out := make([]types.MarketPair, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p)
	}
	return out
}
