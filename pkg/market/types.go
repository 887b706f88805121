package market

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Wire types shared by the client, the store and the mock exchange.
// Prices travel as JSON numbers, never as quoted strings.

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	}
	return "", fmt.Errorf("unsupported side: %q", s)
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// Order is the submission payload for POST /api/order.
type Order struct {
	OrderID   string          `json:"orderId"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds, client clock
}

func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OrderID   string      `json:"orderId"`
		Side      Side        `json:"side"`
		Price     json.Number `json:"price"`
		Quantity  int64       `json:"quantity"`
		Timestamp int64       `json:"timestamp"`
	}{o.OrderID, o.Side, number(o.Price), o.Quantity, o.Timestamp})
}

// Trade is server-authoritative and never modified once observed.
type Trade struct {
	TradeID     string          `json:"tradeId"`
	BuyOrderID  string          `json:"buyOrderId"`
	SellOrderID string          `json:"sellOrderId"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Timestamp   int64           `json:"timestamp"`
}

func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TradeID     string      `json:"tradeId"`
		BuyOrderID  string      `json:"buyOrderId"`
		SellOrderID string      `json:"sellOrderId"`
		Price       json.Number `json:"price"`
		Quantity    int64       `json:"quantity"`
		Timestamp   int64       `json:"timestamp"`
	}{t.TradeID, t.BuyOrderID, t.SellOrderID, number(t.Price), t.Quantity, t.Timestamp})
}

// OrderBookLevel collapses every resting order at one price.
type OrderBookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"` // aggregate resting quantity
	Orders   int             `json:"orders"`   // resting order count
}

func (l OrderBookLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Price    json.Number `json:"price"`
		Quantity int64       `json:"quantity"`
		Orders   int         `json:"orders"`
	}{number(l.Price), l.Quantity, l.Orders})
}

// OrderBook keeps levels in the order the server sent them:
// bids high to low, asks low to high.
type OrderBook struct {
	Bids []OrderBookLevel `json:"bids"`
	Asks []OrderBookLevel `json:"asks"`
}

// BestPrices holds the top of each side; a side is invalid when it is empty.
type BestPrices struct {
	BestBid decimal.NullDecimal `json:"bestBid"`
	BestAsk decimal.NullDecimal `json:"bestAsk"`
}

func (b BestPrices) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BestBid *json.Number `json:"bestBid"`
		BestAsk *json.Number `json:"bestAsk"`
	}{nullableNumber(b.BestBid), nullableNumber(b.BestAsk)})
}

// SubmitResult is the server's answer to POST /api/order. Order and Trades are
// only present when the server echoes them.
type SubmitResult struct {
	TradesExecuted int     `json:"tradesExecuted"`
	Order          *Order  `json:"order,omitempty"`
	Trades         []Trade `json:"trades,omitempty"`
}

type CancelResult struct {
	OrderID   string `json:"orderId"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func nullableNumber(d decimal.NullDecimal) *json.Number {
	if !d.Valid {
		return nil
	}
	n := number(d.Decimal)
	return &n
}
