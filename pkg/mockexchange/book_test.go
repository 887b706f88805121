package mockexchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestBook() *Book {
	ts := int64(0)
	return NewBook(func() int64 { ts++; return ts })
}

func order(id string, side market.Side, price string, qty int64) market.Order {
	return market.Order{OrderID: id, Side: side, Price: d(price), Quantity: qty}
}

func TestBookLevelsAreSortedAndAggregated(t *testing.T) {
	b := newTestBook()
	for _, o := range []market.Order{
		order("b1", market.Buy, "99", 5),
		order("b2", market.Buy, "100", 3),
		order("b3", market.Buy, "100", 4),
		order("a1", market.Sell, "102", 1),
		order("a2", market.Sell, "101", 2),
	} {
		trades, err := b.Process(o)
		require.NoError(t, err)
		require.Empty(t, trades)
	}

	snap := b.Snapshot()
	require.Len(t, snap.Bids, 2)
	assert.True(t, snap.Bids[0].Price.Equal(d("100")))
	assert.Equal(t, int64(7), snap.Bids[0].Quantity)
	assert.Equal(t, 2, snap.Bids[0].Orders)
	assert.True(t, snap.Bids[1].Price.Equal(d("99")))

	require.Len(t, snap.Asks, 2)
	assert.True(t, snap.Asks[0].Price.Equal(d("101")))
	assert.True(t, snap.Asks[1].Price.Equal(d("102")))

	best := b.BestPrices()
	assert.True(t, best.BestBid.Decimal.Equal(d("100")))
	assert.True(t, best.BestAsk.Decimal.Equal(d("101")))
}

func TestBookMatchesPriceTimeAtRestingPrice(t *testing.T) {
	b := newTestBook()
	_, _ = b.Process(order("a1", market.Sell, "101", 2))
	_, _ = b.Process(order("a2", market.Sell, "101", 3))
	_, _ = b.Process(order("a3", market.Sell, "102", 5))

	trades, err := b.Process(order("buy", market.Buy, "102", 6))
	require.NoError(t, err)
	require.Len(t, trades, 3)

	assert.Equal(t, "a1", trades[0].SellOrderID)
	assert.Equal(t, "buy", trades[0].BuyOrderID)
	assert.True(t, trades[0].Price.Equal(d("101")))
	assert.Equal(t, int64(2), trades[0].Quantity)
	assert.Equal(t, "a2", trades[1].SellOrderID)
	assert.Equal(t, int64(3), trades[1].Quantity)
	assert.True(t, trades[2].Price.Equal(d("102")))
	assert.Equal(t, int64(1), trades[2].Quantity)
	assert.Equal(t, "trade_3", trades[2].TradeID)

	snap := b.Snapshot()
	assert.Empty(t, snap.Bids)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, int64(4), snap.Asks[0].Quantity)
	assert.Len(t, b.Trades(), 3)
}

func TestBookRestsRemainder(t *testing.T) {
	b := newTestBook()
	_, _ = b.Process(order("b1", market.Buy, "100", 2))

	trades, err := b.Process(order("s1", market.Sell, "99", 5))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "b1", trades[0].BuyOrderID)

	best := b.BestPrices()
	assert.False(t, best.BestBid.Valid)
	assert.True(t, best.BestAsk.Decimal.Equal(d("99")))
	assert.Equal(t, int64(3), b.Snapshot().Asks[0].Quantity)
}

func TestBookRejectsDuplicateID(t *testing.T) {
	b := newTestBook()
	_, err := b.Process(order("x", market.Buy, "1", 1))
	require.NoError(t, err)
	_, err = b.Process(order("x", market.Buy, "1", 1))
	assert.Error(t, err)
}

func TestBookRejectsReuseOfFilledOrCancelledID(t *testing.T) {
	b := newTestBook()
	_, _ = b.Process(order("maker", market.Sell, "100", 1))
	trades, err := b.Process(order("taker", market.Buy, "100", 1))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	for _, id := range []string{"maker", "taker"} {
		_, err := b.Process(order(id, market.Buy, "90", 1))
		assert.Error(t, err, id)
	}

	_, _ = b.Process(order("resting", market.Buy, "80", 1))
	require.True(t, b.Cancel("resting"))
	_, err = b.Process(order("resting", market.Buy, "80", 1))
	assert.Error(t, err)
	assert.Empty(t, b.Snapshot().Bids)
}

func TestBookCancel(t *testing.T) {
	b := newTestBook()
	_, _ = b.Process(order("b1", market.Buy, "100", 2))
	_, _ = b.Process(order("b2", market.Buy, "100", 3))

	assert.True(t, b.Cancel("b1"))
	assert.False(t, b.Cancel("b1"))
	assert.False(t, b.Cancel("missing"))

	snap := b.Snapshot()
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(3), snap.Bids[0].Quantity)
	assert.Equal(t, 1, snap.Bids[0].Orders)

	assert.True(t, b.Cancel("b2"))
	assert.Empty(t, b.Snapshot().Bids)
	assert.False(t, b.BestPrices().BestBid.Valid)
}
