package dashboard

import (
	"github.com/uhyunpark/bookwatch/pkg/journal"
	"github.com/uhyunpark/bookwatch/pkg/order"
	"github.com/uhyunpark/bookwatch/pkg/store"
)

// Channels a WebSocket client can subscribe to.
const (
	ChannelView = "view" // store snapshot after every apply
	ChannelForm = "form" // form state after every edit, submit or cancel
)

// ==============================
// REST Types
// ==============================

// FormEditRequest is the payload for POST /form. Absent fields are left alone.
type FormEditRequest struct {
	Side     *string `json:"side"`
	Price    *string `json:"price"`
	Quantity *string `json:"quantity"`
}

// SubmitResponse is returned by POST /form/submit and POST /orders/{id}/cancel.
// Error is the short status shown to the user; Form always reflects the
// controller state after the attempt.
type SubmitResponse struct {
	Form  order.View `json:"form"`
	Error string     `json:"error,omitempty"`
}

type JournalResponse struct {
	Entries []journal.Entry `json:"entries"`
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope for everything pushed to WebSocket clients
type WSMessage struct {
	Type string      `json:"type"` // ChannelView or ChannelForm
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g. ["view", "form"]
}

func viewMessage(s store.Snapshot) WSMessage { return WSMessage{Type: ChannelView, Data: s} }
func formMessage(v order.View) WSMessage     { return WSMessage{Type: ChannelForm, Data: v} }
