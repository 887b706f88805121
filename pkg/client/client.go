package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	opBook   = "fetch book"
	opTrades = "fetch trades"
	opPrices = "fetch prices"
	opSubmit = "submit order"
	opCancel = "cancel order"
	opHealth = "health"
)

// Client talks to the matching service's fixed /api contract. It never retries;
// retry policy belongs to the caller.
type Client struct {
	baseURL string
	http    *http.Client

	Logger *zap.SugaredLogger
}

// NewClient returns a client for baseURL (scheme://host:port). A zero timeout
// leaves requests bounded only by their context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		Logger:  zap.NewNop().Sugar(),
	}
}

// ==============================
// Response shapes
// ==============================

// Pointer fields mark what must be present for a response to be accepted.

type levelWire struct {
	Price    *decimal.Decimal `json:"price"`
	Quantity *int64           `json:"quantity"`
	Orders   *int             `json:"orders"`
}

type bookWire struct {
	Bids *[]levelWire `json:"bids"`
	Asks *[]levelWire `json:"asks"`
}

type tradeWire struct {
	TradeID     *string          `json:"tradeId"`
	BuyOrderID  string           `json:"buyOrderId"`
	SellOrderID string           `json:"sellOrderId"`
	Price       *decimal.Decimal `json:"price"`
	Quantity    *int64           `json:"quantity"`
	Timestamp   int64            `json:"timestamp"`
}

type submitWire struct {
	TradesExecuted *int           `json:"tradesExecuted"`
	Order          *market.Order  `json:"order"`
	Trades         []market.Trade `json:"trades"`
}

type cancelWire struct {
	OrderID   string `json:"orderId"`
	Cancelled *bool  `json:"cancelled"`
	Message   string `json:"message"`
}

// ==============================
// Reads
// ==============================

func (c *Client) FetchBook(ctx context.Context) (market.OrderBook, error) {
	var w bookWire
	if err := c.getJSON(ctx, opBook, "/api/book", &w); err != nil {
		return market.OrderBook{}, err
	}
	if w.Bids == nil || w.Asks == nil {
		return market.OrderBook{}, &ProtocolError{Op: opBook, Err: errors.New("missing bids or asks")}
	}
	bids, err := convertLevels(*w.Bids)
	if err != nil {
		return market.OrderBook{}, &ProtocolError{Op: opBook, Err: errors.WithMessage(err, "bids")}
	}
	asks, err := convertLevels(*w.Asks)
	if err != nil {
		return market.OrderBook{}, &ProtocolError{Op: opBook, Err: errors.WithMessage(err, "asks")}
	}
	return market.OrderBook{Bids: bids, Asks: asks}, nil
}

// FetchTrades returns trades in the order the server sent them. Nothing is
// assumed about that order beyond chronological append.
func (c *Client) FetchTrades(ctx context.Context) ([]market.Trade, error) {
	var ws *[]tradeWire
	if err := c.getJSON(ctx, opTrades, "/api/trades", &ws); err != nil {
		return nil, err
	}
	if ws == nil {
		return nil, &ProtocolError{Op: opTrades, Err: errors.New("expected a trade array, got null")}
	}
	trades := make([]market.Trade, 0, len(*ws))
	for i, w := range *ws {
		if w.TradeID == nil || w.Price == nil || w.Quantity == nil {
			return nil, &ProtocolError{Op: opTrades, Err: errors.Errorf("trade %d: missing tradeId, price or quantity", i)}
		}
		trades = append(trades, market.Trade{
			TradeID:     *w.TradeID,
			BuyOrderID:  w.BuyOrderID,
			SellOrderID: w.SellOrderID,
			Price:       *w.Price,
			Quantity:    *w.Quantity,
			Timestamp:   w.Timestamp,
		})
	}
	return trades, nil
}

// FetchBestPrices requires both keys to be present. A side may be null when it
// is empty, but a missing key is a protocol error.
func (c *Client) FetchBestPrices(ctx context.Context) (market.BestPrices, error) {
	var w map[string]jsoniter.RawMessage
	if err := c.getJSON(ctx, opPrices, "/api/prices", &w); err != nil {
		return market.BestPrices{}, err
	}
	if w == nil {
		return market.BestPrices{}, &ProtocolError{Op: opPrices, Err: errors.New("expected an object, got null")}
	}
	bid, err := nullablePrice(w, "bestBid")
	if err != nil {
		return market.BestPrices{}, &ProtocolError{Op: opPrices, Err: err}
	}
	ask, err := nullablePrice(w, "bestAsk")
	if err != nil {
		return market.BestPrices{}, &ProtocolError{Op: opPrices, Err: err}
	}
	return market.BestPrices{BestBid: bid, BestAsk: ask}, nil
}

func (c *Client) Health(ctx context.Context) error {
	status, body, err := c.do(ctx, opHealth, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &ProtocolError{Op: opHealth, Status: status, Err: errors.New(string(body))}
	}
	return nil
}

// ==============================
// Writes
// ==============================

// SubmitOrder posts the order once. A non-2xx answer becomes *SubmissionRejected.
func (c *Client) SubmitOrder(ctx context.Context, o market.Order) (market.SubmitResult, error) {
	if err := ValidateOrder(o); err != nil {
		return market.SubmitResult{}, err
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return market.SubmitResult{}, errors.Wrap(err, "encode order")
	}

	status, body, err := c.do(ctx, opSubmit, http.MethodPost, "/api/order", payload)
	if err != nil {
		return market.SubmitResult{}, err
	}
	if !isSuccess(status) {
		return market.SubmitResult{}, &SubmissionRejected{Op: opSubmit, Status: status, Body: string(body)}
	}

	var w submitWire
	if err := json.Unmarshal(body, &w); err != nil {
		return market.SubmitResult{}, &ProtocolError{Op: opSubmit, Err: err}
	}
	if w.TradesExecuted == nil {
		return market.SubmitResult{}, &ProtocolError{Op: opSubmit, Err: errors.New("missing tradesExecuted")}
	}

	c.Logger.Debugw("order_submitted", "order_id", o.OrderID, "trades_executed", *w.TradesExecuted)
	return market.SubmitResult{TradesExecuted: *w.TradesExecuted, Order: w.Order, Trades: w.Trades}, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (market.CancelResult, error) {
	if orderID == "" {
		return market.CancelResult{}, &ValidationError{Field: "orderId", Reason: "empty"}
	}
	status, body, err := c.do(ctx, opCancel, http.MethodDelete, "/api/order/"+url.PathEscape(orderID), nil)
	if err != nil {
		return market.CancelResult{}, err
	}
	if !isSuccess(status) {
		return market.CancelResult{}, &SubmissionRejected{Op: opCancel, Status: status, Body: string(body)}
	}

	var w cancelWire
	if err := json.Unmarshal(body, &w); err != nil {
		return market.CancelResult{}, &ProtocolError{Op: opCancel, Err: err}
	}
	if w.Cancelled == nil {
		return market.CancelResult{}, &ProtocolError{Op: opCancel, Err: errors.New("missing cancelled")}
	}
	if w.OrderID == "" {
		w.OrderID = orderID
	}
	return market.CancelResult{OrderID: w.OrderID, Cancelled: *w.Cancelled, Message: w.Message}, nil
}

// ValidateOrder checks the request shape the server contract requires.
func ValidateOrder(o market.Order) error {
	switch {
	case o.OrderID == "":
		return &ValidationError{Field: "orderId", Reason: "empty"}
	case !o.Side.Valid():
		return &ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	case !o.Price.IsPositive():
		return &ValidationError{Field: "price", Reason: "must be positive"}
	case o.Quantity <= 0:
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	return nil
}

// ==============================
// Helpers
// ==============================

func (c *Client) getJSON(ctx context.Context, op, path string, v interface{}) error {
	status, body, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return &ProtocolError{Op: op, Status: status, Err: errors.Errorf("unexpected status: %s", bytes.TrimSpace(body))}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ProtocolError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, payload []byte) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &NetworkError{Op: op, Err: err}
	}
	return resp.StatusCode, body, nil
}

func convertLevels(ws []levelWire) ([]market.OrderBookLevel, error) {
	levels := make([]market.OrderBookLevel, 0, len(ws))
	for i, w := range ws {
		if w.Price == nil || w.Quantity == nil {
			return nil, errors.Errorf("level %d: missing price or quantity", i)
		}
		level := market.OrderBookLevel{Price: *w.Price, Quantity: *w.Quantity}
		if w.Orders != nil {
			level.Orders = *w.Orders
		}
		levels = append(levels, level)
	}
	return levels, nil
}

func nullablePrice(w map[string]jsoniter.RawMessage, key string) (decimal.NullDecimal, error) {
	raw, ok := w[key]
	if !ok || len(raw) == 0 {
		return decimal.NullDecimal{}, errors.Errorf("missing %s", key)
	}
	var d decimal.NullDecimal
	if err := d.UnmarshalJSON(raw); err != nil {
		return decimal.NullDecimal{}, errors.WithMessage(err, key)
	}
	return d, nil
}

func isSuccess(status int) bool { return status >= 200 && status < 300 }
