package inventory

import (
	"testing"
	"time"

	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func widget(stock, reserved int) orders.Product {
	return orders.Product{Name: "Widget", StockQuantity: stock, ReservedQuantity: reserved}
}

func TestReserve(t *testing.T) {
	p := widget(5, 0)
	e, err := Reserve(&p, 3, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 3, p.ReservedQuantity)
	assert.Equal(t, 2, p.Available())
	assert.Equal(t, orders.ChangeReserve, e.ChangeType)
	assert.Equal(t, 3, e.QuantityDelta)
	require.NotNil(t, e.OrderID)
	assert.Equal(t, int64(1), *e.OrderID)

	_, err = Reserve(&p, 3, 2, now)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Equal(t, 3, p.ReservedQuantity, "failed reserve must not touch the product")

	_, err = Reserve(&p, 0, 2, now)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)
}

func TestRelease_ClampsToHeld(t *testing.T) {
	p := widget(5, 3)
	e, ok, err := Release(&p, 3, 3, 1, ReasonCancelled, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, orders.ChangeRelease, e.ChangeType)
	assert.Equal(t, -3, e.QuantityDelta)

	// nothing held any more: no-op, no entry
	_, ok, err = Release(&p, 3, 0, 1, ReasonCancelled, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, p.ReservedQuantity)
}

func TestRelease_ExpiredChangeType(t *testing.T) {
	p := widget(5, 2)
	e, ok, err := Release(&p, 2, 2, 9, ReasonExpired, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orders.ChangeExpired, e.ChangeType)
}

func TestCommit(t *testing.T) {
	p := widget(5, 3)
	e, err := Commit(&p, 3, 4, now)
	require.NoError(t, err)
	assert.Equal(t, 2, p.StockQuantity)
	assert.Equal(t, 0, p.ReservedQuantity)
	assert.Equal(t, orders.ChangeDeduct, e.ChangeType)
	assert.Equal(t, -3, e.QuantityDelta)
	require.NotNil(t, e.OrderID)

	p = widget(5, 1)
	_, err = Commit(&p, 3, 4, now)
	assert.ErrorIs(t, err, orders.ErrInvariantViolation)
	assert.Equal(t, widget(5, 1), p)
}

func TestSetExact(t *testing.T) {
	p := widget(5, 3)
	e, err := SetExact(&p, 10, nil, "", now)
	require.NoError(t, err)
	assert.Equal(t, 10, p.StockQuantity)
	assert.Equal(t, orders.ChangeManual, e.ChangeType)
	assert.Equal(t, 5, e.QuantityDelta)

	_, err = SetExact(&p, 2, nil, "", now)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity, "stock may not drop below reserved")
	assert.Equal(t, 10, p.StockQuantity)

	_, err = SetExact(&p, -1, nil, "", now)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)
}

func TestAddAndDeduct(t *testing.T) {
	admin := int64(42)
	p := widget(5, 3)
	e, err := Add(&p, 4, &admin, "", now)
	require.NoError(t, err)
	assert.Equal(t, 9, p.StockQuantity)
	assert.Equal(t, &admin, e.ActorID)
	assert.Equal(t, "added 4 units", e.Comment)

	_, err = Add(&p, -1, nil, "", now)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	e, err = Deduct(&p, 6, nil, "damaged", now)
	require.NoError(t, err)
	assert.Equal(t, 3, p.StockQuantity)
	assert.Equal(t, -6, e.QuantityDelta)
	assert.Nil(t, e.OrderID)

	_, err = Deduct(&p, 1, nil, "", now)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
}

func TestCheckInvariant(t *testing.T) {
	assert.NoError(t, CheckInvariant(widget(5, 5)))
	assert.ErrorIs(t, CheckInvariant(widget(2, 3)), orders.ErrInvariantViolation)
	assert.ErrorIs(t, CheckInvariant(widget(2, -1)), orders.ErrInvariantViolation)
}
