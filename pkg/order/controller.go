package order

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/bookwatch/pkg/client"
	"github.com/uhyunpark/bookwatch/pkg/journal"
	"github.com/uhyunpark/bookwatch/pkg/market"
	"github.com/uhyunpark/bookwatch/pkg/metrics"
	"github.com/uhyunpark/bookwatch/pkg/util"
)

// ErrSubmitInFlight is returned when Submit is called while an earlier
// submission from the same form has not resolved yet.
var ErrSubmitInFlight = errors.New("a submission is already in flight")

const msgSubmitFailed = "Error submitting order"

// Submitter is the write side of the matching service API.
type Submitter interface {
	SubmitOrder(ctx context.Context, o market.Order) (market.SubmitResult, error)
	CancelOrder(ctx context.Context, orderID string) (market.CancelResult, error)
}

// Refresher forces an out-of-cycle store refresh.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// View is what the form renders. Phase is Editing or Submitting; the result of
// the last resolved submission stays in Outcome until the next one starts.
type View struct {
	Form
	Phase          Phase  `json:"phase"`
	Outcome        Phase  `json:"outcome,omitempty"` // Confirmed or Failed
	Message        string `json:"message,omitempty"`
	TradesExecuted int    `json:"tradesExecuted"`
	LastOrderID    string `json:"lastOrderId,omitempty"`
}

// Controller owns one draft order form. Submissions are serialized: only one
// can be in flight at a time.
type Controller struct {
	API       Submitter
	Refresher Refresher
	Clock     util.Clock
	NewID     IDGenerator
	Journal   journal.Journal

	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics

	mu   sync.Mutex
	view View
}

func NewController(api Submitter, refresher Refresher, clock util.Clock) *Controller {
	return &Controller{
		API:       api,
		Refresher: refresher,
		Clock:     clock,
		NewID:     NewOrderID,
		Journal:   journal.NewNopJournal(),
		Logger:    zap.NewNop().Sugar(),
		view:      View{Form: Form{Side: market.Buy}, Phase: Editing},
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) SetSide(side market.Side) error {
	if !side.Valid() {
		return &client.ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	c.edit(func(f *Form) { f.Side = side })
	return nil
}

func (c *Controller) SetPrice(price string) { c.edit(func(f *Form) { f.Price = price }) }

func (c *Controller) SetQuantity(qty string) { c.edit(func(f *Form) { f.Quantity = qty }) }

// edit never blocks, not even while a submission is in flight.
func (c *Controller) edit(fn func(*Form)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.view.Form)
}

// resolve ends a submission: the form is editable again straight away and
// outcome is kept for display.
func (c *Controller) resolve(outcome Phase, msg string) {
	c.view.Phase = Editing
	c.view.Outcome = outcome
	c.view.Message = msg
}

// Submit validates the draft, sends it once, and on success clears price and
// quantity and refreshes the store straight away. A field edited while the
// request was in flight is kept. Validation failures never reach the network.
func (c *Controller) Submit(ctx context.Context) (market.SubmitResult, error) {
	c.mu.Lock()
	if c.view.Phase == Submitting {
		c.mu.Unlock()
		return market.SubmitResult{}, ErrSubmitInFlight
	}
	draft := c.view.Form
	side, price, qty, err := draft.parse()
	if err != nil {
		c.resolve(Failed, "Invalid order: "+err.Error())
		c.mu.Unlock()
		c.Metrics.Submission(metrics.SubmitInvalid)
		return market.SubmitResult{}, err
	}

	now := c.Clock.Now()
	o := market.Order{
		OrderID:   c.NewID(now),
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Timestamp: now.UnixMilli(),
	}
	c.view.Phase = Submitting
	c.view.Outcome = ""
	c.view.Message = ""
	c.view.LastOrderID = o.OrderID
	c.mu.Unlock()

	res, err := c.API.SubmitOrder(ctx, o)
	if err != nil {
		outcome, msg := metrics.SubmitFailed, msgSubmitFailed
		var rejected *client.SubmissionRejected
		if errors.As(err, &rejected) {
			outcome = metrics.SubmitRejected
			msg = fmt.Sprintf("Order rejected (status %d)", rejected.Status)
		}

		c.mu.Lock()
		c.resolve(Failed, msg)
		c.mu.Unlock()

		c.Metrics.Submission(outcome)
		c.record(journal.Entry{Kind: journal.KindSubmit, OrderID: o.OrderID, Order: &o, Outcome: outcome, Error: err.Error()})
		c.Logger.Warnw("order_submit_failed", "order_id", o.OrderID, "err", err)
		return market.SubmitResult{}, err
	}

	c.mu.Lock()
	c.resolve(Confirmed, fmt.Sprintf("Order submitted! %d trades executed.", res.TradesExecuted))
	c.view.TradesExecuted = res.TradesExecuted
	if c.view.Price == draft.Price {
		c.view.Price = ""
	}
	if c.view.Quantity == draft.Quantity {
		c.view.Quantity = ""
	}
	c.mu.Unlock()

	c.Metrics.Submission(metrics.SubmitConfirmed)
	c.record(journal.Entry{Kind: journal.KindSubmit, OrderID: o.OrderID, Order: &o, Outcome: metrics.SubmitConfirmed, TradesExecuted: res.TradesExecuted})
	c.Logger.Infow("order_submitted",
		"order_id", o.OrderID,
		"side", o.Side,
		"price", o.Price.String(),
		"quantity", o.Quantity,
		"trades_executed", res.TradesExecuted)

	c.refresh(ctx)
	return res, nil
}

// Cancel asks the server to drop a resting order and refreshes the store if
// the request went through. It does not touch the draft.
func (c *Controller) Cancel(ctx context.Context, orderID string) (market.CancelResult, error) {
	res, err := c.API.CancelOrder(ctx, orderID)
	if err != nil {
		c.mu.Lock()
		c.view.Message = "Error cancelling order " + orderID
		c.mu.Unlock()

		c.Metrics.Submission(metrics.CancelFailed)
		c.record(journal.Entry{Kind: journal.KindCancel, OrderID: orderID, Outcome: metrics.CancelFailed, Error: err.Error()})
		c.Logger.Warnw("order_cancel_failed", "order_id", orderID, "err", err)
		return market.CancelResult{}, err
	}

	msg := "Order " + orderID + " cancelled"
	if !res.Cancelled {
		msg = "Order " + orderID + " not found"
	}
	c.mu.Lock()
	c.view.Message = msg
	c.mu.Unlock()

	c.Metrics.Submission(metrics.CancelConfirmed)
	c.record(journal.Entry{Kind: journal.KindCancel, OrderID: orderID, Outcome: metrics.CancelConfirmed})
	c.Logger.Infow("order_cancelled", "order_id", orderID, "cancelled", res.Cancelled)

	c.refresh(ctx)
	return res, nil
}

func (c *Controller) refresh(ctx context.Context) {
	if c.Refresher == nil {
		return
	}
	if err := c.Refresher.Refresh(ctx); err != nil {
		c.Logger.Warnw("forced_refresh_failed", "err", err)
	}
}

func (c *Controller) record(e journal.Entry) {
	e.At = c.Clock.Now()
	if err := c.Journal.Record(e); err != nil {
		c.Logger.Warnw("journal_record_failed", "order_id", e.OrderID, "err", err)
	}
}
