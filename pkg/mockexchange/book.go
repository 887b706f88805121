package mockexchange

import (
	"fmt"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

type restingOrder struct {
	id        string
	side      market.Side
	price     decimal.Decimal
	remaining int64
}

// level is the FIFO queue of resting orders at one price.
type level struct {
	orders []*restingOrder
}

// Book is a price-time priority limit order book. Both trees iterate best
// price first. Not safe for concurrent use; Exchange serializes access.
type Book struct {
	bids    *rbt.Tree // decimal.Decimal -> *level, high to low
	asks    *rbt.Tree // decimal.Decimal -> *level, low to high
	byID    map[string]*restingOrder
	seen    map[string]struct{} // every id ever accepted, filled or not
	trades  []market.Trade
	tradeNo int
	now     func() int64
}

func NewBook(now func() int64) *Book {
	return &Book{
		bids: rbt.NewWith(BidComparator),
		asks: rbt.NewWith(AskComparator),
		byID: make(map[string]*restingOrder),
		seen: make(map[string]struct{}),
		now:  now,
	}
}

// Process matches o against the opposite side and rests any remainder.
// Trades execute at the resting order's price.
func (b *Book) Process(o market.Order) ([]market.Trade, error) {
	if _, exists := b.seen[o.OrderID]; exists {
		return nil, fmt.Errorf("duplicate orderId %s", o.OrderID)
	}
	b.seen[o.OrderID] = struct{}{}

	taker := &restingOrder{id: o.OrderID, side: o.Side, price: o.Price, remaining: o.Quantity}
	opposite, crosses := b.asks, func(p decimal.Decimal) bool { return taker.price.GreaterThanOrEqual(p) }
	if o.Side == market.Sell {
		opposite, crosses = b.bids, func(p decimal.Decimal) bool { return taker.price.LessThanOrEqual(p) }
	}

	var executed []market.Trade
	for taker.remaining > 0 && !opposite.Empty() {
		best := opposite.Left()
		price := best.Key.(decimal.Decimal)
		if !crosses(price) {
			break
		}
		lvl := best.Value.(*level)
		maker := lvl.orders[0]

		qty := min(taker.remaining, maker.remaining)
		taker.remaining -= qty
		maker.remaining -= qty
		executed = append(executed, b.trade(taker, maker, price, qty))

		if maker.remaining == 0 {
			lvl.orders = lvl.orders[1:]
			delete(b.byID, maker.id)
			if len(lvl.orders) == 0 {
				opposite.Remove(price)
			}
		}
	}

	if taker.remaining > 0 {
		b.rest(taker)
	}
	return executed, nil
}

// Cancel removes a resting order. It reports false when the id is unknown
// or already fully filled.
func (b *Book) Cancel(orderID string) bool {
	o, ok := b.byID[orderID]
	if !ok {
		return false
	}
	delete(b.byID, orderID)

	tree := b.side(o.side)
	node, found := tree.Get(o.price)
	if !found {
		return true
	}
	lvl := node.(*level)
	lvl.orders = lo.Reject(lvl.orders, func(r *restingOrder, _ int) bool { return r.id == orderID })
	if len(lvl.orders) == 0 {
		tree.Remove(o.price)
	}
	return true
}

func (b *Book) Snapshot() market.OrderBook {
	return market.OrderBook{Bids: levels(b.bids), Asks: levels(b.asks)}
}

func (b *Book) BestPrices() market.BestPrices {
	var p market.BestPrices
	if node := b.bids.Left(); node != nil {
		p.BestBid = decimal.NewNullDecimal(node.Key.(decimal.Decimal))
	}
	if node := b.asks.Left(); node != nil {
		p.BestAsk = decimal.NewNullDecimal(node.Key.(decimal.Decimal))
	}
	return p
}

// Trades returns the full history in execution order.
func (b *Book) Trades() []market.Trade {
	return append([]market.Trade{}, b.trades...)
}

func (b *Book) rest(o *restingOrder) {
	tree := b.side(o.side)
	if node, found := tree.Get(o.price); found {
		lvl := node.(*level)
		lvl.orders = append(lvl.orders, o)
	} else {
		tree.Put(o.price, &level{orders: []*restingOrder{o}})
	}
	b.byID[o.id] = o
}

func (b *Book) trade(taker, maker *restingOrder, price decimal.Decimal, qty int64) market.Trade {
	b.tradeNo++
	buyID, sellID := taker.id, maker.id
	if taker.side == market.Sell {
		buyID, sellID = maker.id, taker.id
	}
	t := market.Trade{
		TradeID:     fmt.Sprintf("trade_%d", b.tradeNo),
		BuyOrderID:  buyID,
		SellOrderID: sellID,
		Price:       price,
		Quantity:    qty,
		Timestamp:   b.now(),
	}
	b.trades = append(b.trades, t)
	return t
}

func (b *Book) side(s market.Side) *rbt.Tree {
	if s == market.Buy {
		return b.bids
	}
	return b.asks
}

func levels(tree *rbt.Tree) []market.OrderBookLevel {
	out := make([]market.OrderBookLevel, 0, tree.Size())
	it := tree.Iterator()
	for it.Next() {
		lvl := it.Value().(*level)
		out = append(out, market.OrderBookLevel{
			Price:    it.Key().(decimal.Decimal),
			Quantity: lo.SumBy(lvl.orders, func(o *restingOrder) int64 { return o.remaining }),
			Orders:   len(lvl.orders),
		})
	}
	return out
}

func AskComparator(a, b interface{}) int {
	aAsserted := a.(decimal.Decimal)
	bAsserted := b.(decimal.Decimal)
	return aAsserted.Cmp(bAsserted)
}

func BidComparator(a, b interface{}) int {
	return -AskComparator(a, b)
}
