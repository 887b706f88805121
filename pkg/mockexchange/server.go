package mockexchange

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

// Endpoint names used for call counting and hooks.
const (
	EndpointBook   = "book"
	EndpointTrades = "trades"
	EndpointPrices = "prices"
	EndpointOrder  = "order"
	EndpointCancel = "cancel"
	EndpointHealth = "health"
)

// Hook runs before an endpoint's handler. Returning true means the hook wrote
// the response itself and the handler is skipped.
type Hook func(endpoint string, w http.ResponseWriter, r *http.Request) bool

// Exchange serves the matching service's /api contract over an in-memory
// book. It exists for tests and local development.
type Exchange struct {
	router *mux.Router
	Logger *zap.SugaredLogger

	mu   sync.Mutex
	book *Book

	hookMu sync.RWMutex
	hook   Hook
	calls  map[string]int
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type submitResponse struct {
	Order          market.Order   `json:"order"`
	TradesExecuted int            `json:"tradesExecuted"`
	Trades         []market.Trade `json:"trades"`
}

func New() *Exchange {
	e := &Exchange{
		router: mux.NewRouter(),
		Logger: zap.NewNop().Sugar(),
		book:   NewBook(func() int64 { return time.Now().UnixMilli() }),
		calls:  make(map[string]int),
	}
	e.setupRoutes()
	return e
}

func (e *Exchange) setupRoutes() {
	api := e.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/book", e.wrap(EndpointBook, e.handleGetBook)).Methods("GET")
	api.HandleFunc("/trades", e.wrap(EndpointTrades, e.handleGetTrades)).Methods("GET")
	api.HandleFunc("/prices", e.wrap(EndpointPrices, e.handleGetPrices)).Methods("GET")
	api.HandleFunc("/order", e.wrap(EndpointOrder, e.handleSubmitOrder)).Methods("POST")
	api.HandleFunc("/order/{orderId}", e.wrap(EndpointCancel, e.handleCancelOrder)).Methods("DELETE")
	api.HandleFunc("/health", e.wrap(EndpointHealth, e.handleHealth)).Methods("GET")
}

func (e *Exchange) Handler() http.Handler { return e.router }

// SetHook installs h, replacing any previous hook. nil removes it.
func (e *Exchange) SetHook(h Hook) {
	e.hookMu.Lock()
	e.hook = h
	e.hookMu.Unlock()
}

// Calls reports how many requests reached endpoint, hooked or not.
func (e *Exchange) Calls(endpoint string) int {
	e.hookMu.RLock()
	defer e.hookMu.RUnlock()
	return e.calls[endpoint]
}

func (e *Exchange) ResetCalls() {
	e.hookMu.Lock()
	e.calls = make(map[string]int)
	e.hookMu.Unlock()
}

// Place runs an order through the book directly, bypassing HTTP.
func (e *Exchange) Place(o market.Order) ([]market.Trade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Process(o)
}

func (e *Exchange) wrap(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.hookMu.Lock()
		e.calls[endpoint]++
		hook := e.hook
		e.hookMu.Unlock()

		if hook != nil && hook(endpoint, w, r) {
			return
		}
		h(w, r)
	}
}

// ==============================
// REST Handlers
// ==============================

func (e *Exchange) handleGetBook(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	snap := e.book.Snapshot()
	e.mu.Unlock()
	respondJSON(w, snap)
}

func (e *Exchange) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	trades := e.book.Trades()
	e.mu.Unlock()
	respondJSON(w, trades)
}

func (e *Exchange) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	prices := e.book.BestPrices()
	e.mu.Unlock()
	respondJSON(w, prices)
}

func (e *Exchange) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var o market.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	switch {
	case o.OrderID == "":
		respondError(w, http.StatusBadRequest, "missing orderId", "")
		return
	case !o.Side.Valid():
		respondError(w, http.StatusBadRequest, "invalid side", "expected BUY or SELL")
		return
	case !o.Price.IsPositive():
		respondError(w, http.StatusBadRequest, "invalid price", "price must be positive")
		return
	case o.Quantity <= 0:
		respondError(w, http.StatusBadRequest, "invalid quantity", "quantity must be positive")
		return
	}
	if o.Timestamp == 0 {
		o.Timestamp = time.Now().UnixMilli()
	}

	trades, err := e.Place(o)
	if err != nil {
		respondError(w, http.StatusConflict, "order rejected", err.Error())
		return
	}
	if trades == nil {
		trades = []market.Trade{}
	}

	e.Logger.Infow("order_processed", "order_id", o.OrderID, "side", o.Side, "price", o.Price.String(), "trades", len(trades))
	respondJSON(w, submitResponse{Order: o, TradesExecuted: len(trades), Trades: trades})
}

func (e *Exchange) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["orderId"]

	e.mu.Lock()
	cancelled := e.book.Cancel(orderID)
	e.mu.Unlock()

	msg := "Order not found"
	if cancelled {
		msg = "Order cancelled successfully"
	}
	respondJSON(w, market.CancelResult{OrderID: orderID, Cancelled: cancelled, Message: msg})
}

func (e *Exchange) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// Seed rests a small ladder on both sides around mid, for local development.
func (e *Exchange) Seed(mid decimal.Decimal, step decimal.Decimal, levels int) {
	now := time.Now().UnixMilli()
	for i := 1; i <= levels; i++ {
		off := step.Mul(decimal.NewFromInt(int64(i)))
		_, _ = e.Place(market.Order{OrderID: seedID("bid", i), Side: market.Buy, Price: mid.Sub(off), Quantity: int64(10 * i), Timestamp: now})
		_, _ = e.Place(market.Order{OrderID: seedID("ask", i), Side: market.Sell, Price: mid.Add(off), Quantity: int64(10 * i), Timestamp: now})
	}
}

func seedID(side string, i int) string {
	return "seed_" + side + "_" + strconv.Itoa(i)
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
