package mockexchange

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, e *Exchange, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `{`, http.StatusBadRequest},
		{"missing id", `{"side":"BUY","price":1,"quantity":1}`, http.StatusBadRequest},
		{"bad side", `{"orderId":"x","side":"HOLD","price":1,"quantity":1}`, http.StatusBadRequest},
		{"zero price", `{"orderId":"x","side":"BUY","price":0,"quantity":1}`, http.StatusBadRequest},
		{"zero quantity", `{"orderId":"x","side":"BUY","price":1,"quantity":0}`, http.StatusBadRequest},
		{"ok", `{"orderId":"x","side":"BUY","price":1.5,"quantity":1}`, http.StatusOK},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, "POST", "/api/order", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(t, e, "POST", "/api/order", `{"orderId":"x","side":"BUY","price":1.5,"quantity":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, len(tests)+1, e.Calls(EndpointOrder))
}

func TestPricesAreNumbers(t *testing.T) {
	e := New()
	e.Seed(decimal.NewFromInt(100), decimal.NewFromInt(1), 1)

	rec := do(t, e, "GET", "/api/prices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bestBid":99,"bestAsk":101}`, rec.Body.String())

	rec = do(t, e, "GET", "/api/book", "")
	var book map[string][]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	assert.IsType(t, float64(0), book["bids"][0]["price"])
}

func TestHookShortCircuits(t *testing.T) {
	e := New()
	e.SetHook(func(endpoint string, w http.ResponseWriter, r *http.Request) bool {
		if endpoint == EndpointTrades {
			w.WriteHeader(http.StatusInternalServerError)
			return true
		}
		return false
	})

	assert.Equal(t, http.StatusInternalServerError, do(t, e, "GET", "/api/trades", "").Code)
	assert.Equal(t, http.StatusOK, do(t, e, "GET", "/api/book", "").Code)
	assert.Equal(t, 1, e.Calls(EndpointTrades))

	e.SetHook(nil)
	e.ResetCalls()
	rec := do(t, e, "GET", "/api/trades", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, 1, e.Calls(EndpointTrades))
}

func TestCancelEndpoint(t *testing.T) {
	e := New()
	rec := do(t, e, "POST", "/api/order", `{"orderId":"r1","side":"SELL","price":10,"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, "DELETE", "/api/order/r1", "")
	assert.JSONEq(t, `{"orderId":"r1","cancelled":true,"message":"Order cancelled successfully"}`, rec.Body.String())

	rec = do(t, e, "DELETE", "/api/order/r1", "")
	assert.Contains(t, rec.Body.String(), `"cancelled":false`)
}
