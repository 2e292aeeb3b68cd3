package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateProduct(ctx, orders.Product{Name: "Widget", StockQuantity: 5}))
		_, err := tx.AppendJournal(ctx, orders.JournalEntry{Product: "Widget", ChangeType: orders.ChangeAdd, QuantityDelta: 5})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetProduct(ctx, "Widget")
		assert.ErrorIs(t, err, orders.ErrNotFound)
		entries, err := tx.ProductJournal(ctx, "Widget")
		assert.Empty(t, entries)
		return err
	}))
}

func TestWithTx_CancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithTx(ctx, func(store.Tx) error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOrders(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(m int) *time.Time { v := base.Add(time.Duration(m) * time.Minute); return &v }

	var ids []int64
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		for i, code := range []string{"AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD"} {
			o := &orders.Order{Code: code, BuyerID: 1, TotalPrice: decimal.NewFromInt(10), Status: orders.StatusReserved,
				Items: []orders.OrderItem{{Product: "Widget", Quantity: 1}}}
			if err := tx.CreateOrder(ctx, o); err != nil {
				return err
			}
			o.ReservedUntil = at(10 - i*5)
			if err := tx.UpdateOrder(ctx, *o); err != nil {
				return err
			}
			ids = append(ids, o.ID)
		}
		dup := &orders.Order{Code: "AAAAAA"}
		assert.ErrorIs(t, tx.CreateOrder(ctx, dup), orders.ErrAlreadyExists)
		return nil
	}))

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.LockOrder(ctx, ids[3])
		require.NoError(t, err)
		o.Status = orders.StatusConfirmed
		o.ReservedUntil = nil
		require.NoError(t, tx.UpdateOrder(ctx, o))

		// deadlines: ids[0]=+10m ids[1]=+5m ids[2]=+0m, ids[3] confirmed
		due, err := tx.ExpiredReservations(ctx, base.Add(5*time.Minute), 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[2], ids[1]}, due)

		due, err = tx.ExpiredReservations(ctx, base.Add(time.Hour), 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[2]}, due)

		taken, err := tx.OrderCodeExists(ctx, "BBBBBB")
		assert.True(t, taken)
		return err
	}))
}

func TestGetOrderReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	var id int64
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		o := &orders.Order{Code: "QWERTY", Items: []orders.OrderItem{{Product: "Widget", Quantity: 2}}}
		err := tx.CreateOrder(ctx, o)
		id = o.ID
		return err
	}))
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, id)
		o.Items[0].Quantity = 99
		return err
	}))
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrder(ctx, id)
		assert.Equal(t, 2, o.Items[0].Quantity)
		return err
	}))
}

func TestCustomersAndCodes(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.CreateUser(ctx, orders.User{ID: 1}))
		ref := int64(1)
		require.NoError(t, tx.CreateUser(ctx, orders.User{ID: 2, ReferralID: &ref}))
		missing := int64(77)
		assert.ErrorIs(t, tx.CreateUser(ctx, orders.User{ID: 3, ReferralID: &missing}), orders.ErrNotFound)
		assert.ErrorIs(t, tx.CreateUser(ctx, orders.User{ID: 1}), orders.ErrAlreadyExists)

		c, err := tx.LockCustomer(ctx, 2)
		require.NoError(t, err)
		assert.True(t, c.BonusBalance.IsZero())
		_, err = tx.LockCustomer(ctx, 77)
		assert.ErrorIs(t, err, orders.ErrNotFound)

		require.NoError(t, tx.CreateCode(ctx, orders.ReferenceCode{Code: "SAVE10", CreatedBy: 1, IsActive: true}))
		_, err = tx.LockCode(ctx, "NOPE")
		assert.ErrorIs(t, err, orders.ErrCodeNotFound)
		require.NoError(t, tx.InsertCodeUsage(ctx, orders.ReferenceCodeUsage{Code: "SAVE10", UsedBy: 2}))
		assert.ErrorIs(t, tx.InsertCodeUsage(ctx, orders.ReferenceCodeUsage{Code: "SAVE10", UsedBy: 2}), orders.ErrAlreadyUsed)
		return nil
	}))
}
