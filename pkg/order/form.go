package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/bookwatch/pkg/client"
	"github.com/uhyunpark/bookwatch/pkg/market"
)

// Phase of the draft order. Confirmed and Failed are only ever reported as a
// View.Outcome; the phase itself returns to Editing once a submission resolves.
type Phase string

const (
	Editing    Phase = "editing"
	Submitting Phase = "submitting"
	Confirmed  Phase = "confirmed"
	Failed     Phase = "failed"
)

// Form is the draft as the user typed it. Price and quantity stay free text
// until submit.
type Form struct {
	Side     market.Side `json:"side"`
	Price    string      `json:"price"`
	Quantity string      `json:"quantity"`
}

// parse turns the draft into typed values or a *client.ValidationError.
func (f Form) parse() (market.Side, decimal.Decimal, int64, error) {
	if !f.Side.Valid() {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}

	priceText := strings.TrimSpace(f.Price)
	if priceText == "" {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "price", Reason: "required"}
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "price", Reason: fmt.Sprintf("%q is not a number", priceText)}
	}
	if !price.IsPositive() {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "price", Reason: "must be positive"}
	}

	qtyText := strings.TrimSpace(f.Quantity)
	if qtyText == "" {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "quantity", Reason: "required"}
	}
	qty, err := strconv.ParseInt(qtyText, 10, 64)
	if err != nil {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "quantity", Reason: fmt.Sprintf("%q is not an integer", qtyText)}
	}
	if qty <= 0 {
		return "", decimal.Zero, 0, &client.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	return f.Side, price, qty, nil
}

// IDGenerator produces a client order id for a submission made at now.
type IDGenerator func(now time.Time) string

// NewOrderID combines the submission instant with a random token, so two
// submissions in the same millisecond still get distinct ids.
func NewOrderID(now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("order_%d_%s", now.UnixMilli(), token[:12])
}
