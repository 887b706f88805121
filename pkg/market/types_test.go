package market

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"BUY", Buy, false},
		{"SELL", Sell, false},
		{"buy", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestOrderPriceIsEncodedAsNumber(t *testing.T) {
	o := Order{OrderID: "order_1_abc", Side: Buy, Price: decimal.RequireFromString("100.50"), Quantity: 10, Timestamp: 1700000000000}

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId":"order_1_abc","side":"BUY","price":100.5,"quantity":10,"timestamp":1700000000000}`, string(data))
	assert.Contains(t, string(data), `"price":100.5`)
}

func TestBestPricesNullSide(t *testing.T) {
	p := BestPrices{BestAsk: decimal.NewNullDecimal(decimal.NewFromInt(101))}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bestBid":null,"bestAsk":101}`, string(data))

	var back BestPrices
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.BestBid.Valid)
	assert.True(t, back.BestAsk.Decimal.Equal(decimal.NewFromInt(101)))
}

func TestTradeDecodesNumericPrice(t *testing.T) {
	var tr Trade
	require.NoError(t, json.Unmarshal([]byte(`{"tradeId":"trade_1","buyOrderId":"b","sellOrderId":"s","price":99.75,"quantity":3,"timestamp":5}`), &tr))
	assert.True(t, tr.Price.Equal(decimal.RequireFromString("99.75")))
	assert.Equal(t, int64(3), tr.Quantity)
}
