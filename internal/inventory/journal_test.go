package inventory

import (
	"testing"

	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplay_MatchesLedger(t *testing.T) {
	p := orders.Product{Name: "Widget"}
	var entries []orders.JournalEntry
	record := func(e orders.JournalEntry, err error) {
		t.Helper()
		require.NoError(t, err)
		entries = append(entries, e)
	}

	record(Add(&p, 5, nil, "", now))
	record(Reserve(&p, 3, 1, now))
	record(Reserve(&p, 2, 2, now))
	e, ok, err := Release(&p, 3, 3, 1, ReasonExpired, now)
	require.NoError(t, err)
	require.True(t, ok)
	entries = append(entries, e)
	record(Commit(&p, 2, 2, now))
	record(SetExact(&p, 10, nil, "", now))
	record(Deduct(&p, 1, nil, "", now))

	stock, reserved, err := Replay(entries)
	require.NoError(t, err)
	assert.Equal(t, p.StockQuantity, stock)
	assert.Equal(t, p.ReservedQuantity, reserved)
	assert.Equal(t, 9, stock)
	assert.Equal(t, 0, reserved)
}

func TestReplay_UnknownType(t *testing.T) {
	_, _, err := Replay([]orders.JournalEntry{{ID: 3, ChangeType: "teleport"}})
	assert.Error(t, err)
}

func TestOutstanding(t *testing.T) {
	one, two := int64(1), int64(2)
	entries := []orders.JournalEntry{
		{Product: "Widget", ChangeType: orders.ChangeReserve, QuantityDelta: 3, OrderID: &one},
		{Product: "Gadget", ChangeType: orders.ChangeReserve, QuantityDelta: 1, OrderID: &one},
		{Product: "Widget", ChangeType: orders.ChangeReserve, QuantityDelta: 2, OrderID: &two},
		{Product: "Widget", ChangeType: orders.ChangeAdd, QuantityDelta: 10},
		{Product: "Widget", ChangeType: orders.ChangeRelease, QuantityDelta: -3, OrderID: &one},
	}
	assert.Equal(t, 0, Outstanding(entries, 1, "Widget"))
	assert.Equal(t, 1, Outstanding(entries, 1, "Gadget"))
	assert.Equal(t, 2, Outstanding(entries, 2, "Widget"))
	assert.Equal(t, 0, Outstanding(entries, 3, "Widget"))
}
