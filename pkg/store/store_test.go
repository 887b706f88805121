package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

func trades(n int) []market.Trade {
	out := make([]market.Trade, n)
	for i := range out {
		out[i] = market.Trade{
			TradeID:   fmt.Sprintf("t%d", i+1),
			Price:     decimal.NewFromInt(int64(100 + i)),
			Quantity:  1,
			Timestamp: int64(i + 1),
		}
	}
	return out
}

func book(bid, ask string) market.OrderBook {
	return market.OrderBook{
		Bids: []market.OrderBookLevel{{Price: decimal.RequireFromString(bid), Quantity: 5, Orders: 1}},
		Asks: []market.OrderBookLevel{{Price: decimal.RequireFromString(ask), Quantity: 7, Orders: 2}},
	}
}

func prices(bid, ask string) market.BestPrices {
	return market.BestPrices{
		BestBid: decimal.NewNullDecimal(decimal.RequireFromString(bid)),
		BestAsk: decimal.NewNullDecimal(decimal.RequireFromString(ask)),
	}
}

func TestNewStoreIsEmpty(t *testing.T) {
	s := New()
	snap := s.Snapshot()

	assert.Empty(t, snap.Book.Bids)
	assert.Empty(t, snap.Book.Asks)
	assert.Empty(t, snap.Trades)
	assert.False(t, snap.Prices.BestBid.Valid)
	assert.False(t, snap.Prices.BestAsk.Valid)
	assert.Zero(t, s.LastSeq())
}

func TestApplyKeepsMostRecentWindowNewestFirst(t *testing.T) {
	s := New()
	require.True(t, s.Apply(1, book("99", "101"), trades(15), prices("99", "101")))

	got := s.Snapshot().Trades
	require.Len(t, got, 10)
	assert.Equal(t, "t15", got[0].TradeID)
	assert.Equal(t, "t6", got[9].TradeID)
}

func TestApplyShortHistory(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		first string
	}{
		{"empty", 0, ""},
		{"one", 1, "t1"},
		{"exactly window", 10, "t10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			s.Apply(1, book("1", "2"), trades(tt.n), market.BestPrices{})
			got := s.Snapshot().Trades
			require.Len(t, got, tt.n)
			if tt.n > 0 {
				assert.Equal(t, tt.first, got[0].TradeID)
				assert.Equal(t, "t1", got[len(got)-1].TradeID)
			}
		})
	}
}

func TestApplyCustomWindow(t *testing.T) {
	s := New(WithTradeWindow(3))
	s.Apply(1, book("1", "2"), trades(5), market.BestPrices{})

	got := s.Snapshot().Trades
	require.Len(t, got, 3)
	assert.Equal(t, []string{"t5", "t4", "t3"}, []string{got[0].TradeID, got[1].TradeID, got[2].TradeID})
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := trades(4)
	s := New()
	s.Apply(1, book("1", "2"), in, market.BestPrices{})

	assert.Equal(t, "t1", in[0].TradeID)
	assert.Equal(t, "t4", in[3].TradeID)
}

func TestApplyIsIdempotentForSameResponses(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithNow(func() time.Time { return now }))

	require.True(t, s.Apply(1, book("99", "101"), trades(12), prices("99", "101")))
	first := s.Snapshot()
	require.True(t, s.Apply(2, book("99", "101"), trades(12), prices("99", "101")))
	second := s.Snapshot()

	assert.Equal(t, first.Book, second.Book)
	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Prices, second.Prices)
}

func TestApplyDropsStaleCycle(t *testing.T) {
	s := New()
	require.True(t, s.Apply(2, book("200", "201"), trades(2), prices("200", "201")))
	assert.False(t, s.Apply(1, book("100", "101"), trades(5), prices("100", "101")))
	assert.False(t, s.Apply(2, book("100", "101"), trades(5), prices("100", "101")))

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Seq)
	assert.True(t, snap.Book.Bids[0].Price.Equal(decimal.NewFromInt(200)))
	assert.Len(t, snap.Trades, 2)
}

func TestApplyEmptySideClearsBestPrice(t *testing.T) {
	s := New()
	s.Apply(1, book("99", "101"), nil, prices("99", "101"))
	s.Apply(2, market.OrderBook{}, nil, market.BestPrices{})

	snap := s.Snapshot()
	assert.False(t, snap.Prices.BestBid.Valid)
	assert.False(t, snap.Prices.BestAsk.Valid)
	assert.NotNil(t, snap.Book.Bids)
	assert.NotNil(t, snap.Trades)
}

func TestTradeDedup(t *testing.T) {
	in := append(trades(3), market.Trade{TradeID: "t2", Price: decimal.NewFromInt(1), Quantity: 1})

	plain := New()
	plain.Apply(1, book("1", "2"), in, market.BestPrices{})
	assert.Len(t, plain.Snapshot().Trades, 4)

	dedup := New(WithTradeDedup(true))
	dedup.Apply(1, book("1", "2"), in, market.BestPrices{})
	got := dedup.Snapshot().Trades
	require.Len(t, got, 3)
	assert.Equal(t, "t3", got[0].TradeID)
}

func TestOnApplyObservesOnlyAppliedSnapshots(t *testing.T) {
	s := New()
	var seen []uint64
	s.OnApply(func(snap Snapshot) { seen = append(seen, snap.Seq) })

	s.Apply(1, book("1", "2"), nil, market.BestPrices{})
	s.Apply(3, book("1", "2"), nil, market.BestPrices{})
	s.Apply(2, book("1", "2"), nil, market.BestPrices{})

	assert.Equal(t, []uint64{1, 3}, seen)
}
