package store

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

const DefaultTradeWindow = 10

// Snapshot is one consistent view: book, trades and prices all come from the
// same poll cycle, identified by Seq.
type Snapshot struct {
	Book      market.OrderBook  `json:"book"`
	Trades    []market.Trade    `json:"trades"` // most recent first
	Prices    market.BestPrices `json:"prices"`
	Seq       uint64            `json:"seq"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Store holds the latest server view. Apply is its only mutator.
type Store struct {
	mu      sync.RWMutex
	current Snapshot
	applied bool

	window      int
	dedupTrades bool
	now         func() time.Time

	obsMu     sync.RWMutex
	observers []func(Snapshot)
}

type Option func(*Store)

// WithTradeWindow bounds how many trades are kept (default 10).
func WithTradeWindow(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithTradeDedup drops repeated tradeIds from a response before truncating it.
func WithTradeDedup(enabled bool) Option {
	return func(s *Store) { s.dedupTrades = enabled }
}

func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		window: DefaultTradeWindow,
		now:    time.Now,
		current: Snapshot{
			Book:   market.OrderBook{Bids: []market.OrderBookLevel{}, Asks: []market.OrderBookLevel{}},
			Trades: []market.Trade{},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply replaces book, trades and prices in one step. Results from a cycle
// that is not newer than the last applied one are dropped and Apply returns
// false.
func (s *Store) Apply(seq uint64, book market.OrderBook, trades []market.Trade, prices market.BestPrices) bool {
	window := s.recentTrades(trades)

	s.mu.Lock()
	if s.applied && seq <= s.current.Seq {
		s.mu.Unlock()
		return false
	}
	s.current = Snapshot{
		Book:      copyBook(book),
		Trades:    window,
		Prices:    prices,
		Seq:       seq,
		UpdatedAt: s.now(),
	}
	s.applied = true
	snap := s.current
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Snapshot returns the current view. Slices are shared with the store but are
// never written to after Apply, so callers must treat them as read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastSeq is the sequence number of the last applied cycle (0 before any).
func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Seq
}

// OnApply registers fn to run after every successful Apply, outside the lock.
func (s *Store) OnApply(fn func(Snapshot)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *Store) notify(snap Snapshot) {
	s.obsMu.RLock()
	observers := s.observers
	s.obsMu.RUnlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// recentTrades keeps the last window trades by arrival order and reverses them
// so index 0 is the newest.
func (s *Store) recentTrades(trades []market.Trade) []market.Trade {
	if s.dedupTrades {
		trades = lo.UniqBy(trades, func(t market.Trade) string { return t.TradeID })
	}
	tail := lo.Subset(trades, -s.window, uint(s.window))
	return lo.Reverse(append([]market.Trade{}, tail...))
}

func copyBook(b market.OrderBook) market.OrderBook {
	return market.OrderBook{
		Bids: append([]market.OrderBookLevel{}, b.Bids...),
		Asks: append([]market.OrderBookLevel{}, b.Asks...),
	}
}
