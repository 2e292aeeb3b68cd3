package referral

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/shop-fulfillment/internal/memstore"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seed creates users; a user mapped to a non-zero value was referred by it.
func seed(t *testing.T, users map[int64]int64, balances map[int64]string) *memstore.Store {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		// referrers first
		for id, ref := range users {
			if ref == 0 {
				if err := tx.CreateUser(ctx, orders.User{ID: id}); err != nil {
					return err
				}
			}
		}
		for id, ref := range users {
			if ref != 0 {
				r := ref
				if err := tx.CreateUser(ctx, orders.User{ID: id, ReferralID: &r}); err != nil {
					return err
				}
			}
		}
		for id, b := range balances {
			c, err := tx.LockCustomer(ctx, id)
			if err != nil {
				return err
			}
			c.BonusBalance = dec(b)
			if err := tx.UpdateCustomer(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))
	return st
}

func customer(t *testing.T, st store.Store, id int64) orders.CustomerInfo {
	t.Helper()
	var c orders.CustomerInfo
	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		c, err = tx.LockCustomer(context.Background(), id)
		return err
	}))
	return c
}
