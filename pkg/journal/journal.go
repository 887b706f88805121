package journal

import (
	"time"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

// Kinds of journal entries.
const (
	KindSubmit = "submit"
	KindCancel = "cancel"
)

// Entry records one write attempt and how it ended. The journal is an audit
// trail only; nothing reads it back into the live view.
type Entry struct {
	Kind           string        `json:"kind"`
	OrderID        string        `json:"orderId"`
	Order          *market.Order `json:"order,omitempty"`
	Outcome        string        `json:"outcome"`
	TradesExecuted int           `json:"tradesExecuted,omitempty"`
	Error          string        `json:"error,omitempty"`
	At             time.Time     `json:"at"`
}

type Journal interface {
	Record(e Entry) error
	Recent(limit int) ([]Entry, error)
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal               { return &NopJournal{} }
func (NopJournal) Record(Entry) error          { return nil }
func (NopJournal) Recent(int) ([]Entry, error) { return nil, nil }
func (NopJournal) Close() error                { return nil }

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*PebbleJournal)(nil)
