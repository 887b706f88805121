package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/bookwatch/pkg/market"
)

func TestPebbleJournalRecentNewestFirst(t *testing.T) {
	j, err := OpenPebble(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := market.Order{OrderID: "order_1", Side: market.Buy, Price: decimal.RequireFromString("100.5"), Quantity: 10}
	require.NoError(t, j.Record(Entry{Kind: KindSubmit, OrderID: "order_1", Order: &o, Outcome: "confirmed", TradesExecuted: 2, At: base}))
	require.NoError(t, j.Record(Entry{Kind: KindSubmit, OrderID: "order_2", Outcome: "rejected", Error: "status 400", At: base.Add(time.Second)}))
	require.NoError(t, j.Record(Entry{Kind: KindCancel, OrderID: "order_1", Outcome: "cancel_confirmed", At: base.Add(2 * time.Second)}))

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, KindCancel, got[0].Kind)
	assert.Equal(t, "order_2", got[1].OrderID)
	assert.Equal(t, "order_1", got[2].OrderID)
	require.NotNil(t, got[2].Order)
	assert.True(t, got[2].Order.Price.Equal(o.Price))
	assert.Equal(t, 2, got[2].TradesExecuted)

	limited, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "order_2", limited[1].OrderID)
}

func TestPebbleJournalSameInstant(t *testing.T) {
	j, err := OpenPebble(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	defer j.Close()

	at := time.Unix(1700000000, 0)
	require.NoError(t, j.Record(Entry{Kind: KindSubmit, OrderID: "b", At: at}))
	require.NoError(t, j.Record(Entry{Kind: KindSubmit, OrderID: "a", At: at}))

	got, err := j.Recent(5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].OrderID)
}

func TestPebbleJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	j, err := OpenPebble(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(Entry{Kind: KindSubmit, OrderID: "order_1", At: time.Now()}))
	require.NoError(t, j.Close())

	j, err = OpenPebble(path)
	require.NoError(t, err)
	defer j.Close()
	got, err := j.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order_1", got[0].OrderID)
}

func TestNopJournal(t *testing.T) {
	j := NewNopJournal()
	assert.NoError(t, j.Record(Entry{OrderID: "x"}))
	got, err := j.Recent(10)
	assert.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, j.Close())
}
