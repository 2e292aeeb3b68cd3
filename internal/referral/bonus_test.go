package referral

import (
	"context"
	"testing"

	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarning(t *testing.T) {
	assert.Equal(t, "5.00", Earning(dec("100"), dec("5")).StringFixed(2))
	assert.Equal(t, "1.23", Earning(dec("24.69"), dec("5")).StringFixed(2))
	assert.True(t, Earning(dec("100"), decimal.Zero).IsZero())
}

func TestApplyBonus(t *testing.T) {
	st := seed(t, map[int64]int64{1: 0}, map[int64]string{1: "10.00"})
	ctx := context.Background()
	apply := func(bonus, total string) error {
		return st.WithTx(ctx, func(tx store.Tx) error {
			return ApplyBonus(ctx, tx, 1, dec(bonus), dec(total), now)
		})
	}

	assert.ErrorIs(t, apply("-1", "50"), orders.ErrInvalidInput)
	assert.ErrorIs(t, apply("10.01", "50"), orders.ErrBonusExceedsBalance)
	assert.ErrorIs(t, apply("8", "7.99"), orders.ErrBonusExceedsBalance)
	assert.Equal(t, "10.00", customer(t, st, 1).BonusBalance.StringFixed(2))

	require.NoError(t, apply("0", "50"))
	require.NoError(t, apply("4", "50"))
	assert.Equal(t, "6.00", customer(t, st, 1).BonusBalance.StringFixed(2))

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return RefundBonus(ctx, tx, 1, dec("4"), now)
	}))
	assert.Equal(t, "10.00", customer(t, st, 1).BonusBalance.StringFixed(2))
}

func TestCreditDelivery_Referred(t *testing.T) {
	st := seed(t, map[int64]int64{1: 0, 2: 1}, nil)
	ctx := context.Background()
	o := orders.Order{ID: 9, BuyerID: 2, TotalPrice: dec("100.00"), BonusApplied: dec("20.00")}

	var e *orders.ReferralEarning
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = CreditDelivery(ctx, tx, o, dec("5"), now)
		return err
	}))
	require.NotNil(t, e)
	assert.Equal(t, int64(1), e.ReferrerID)
	assert.Equal(t, "5.00", e.Amount.StringFixed(2))
	assert.Equal(t, "100.00", e.OriginalAmount.StringFixed(2))

	buyer := customer(t, st, 2)
	assert.Equal(t, "80.00", buyer.TotalSpendings.StringFixed(2))
	assert.Equal(t, 1, buyer.CompletedOrdersCount)
	assert.Equal(t, "5.00", customer(t, st, 1).BonusBalance.StringFixed(2))

	var list []orders.ReferralEarning
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		list, err = tx.ListEarnings(ctx, 1)
		return err
	}))
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), *list[0].ReferralID)
}

func TestCreditDelivery_NoReferrerOrZeroPercent(t *testing.T) {
	st := seed(t, map[int64]int64{1: 0, 2: 1}, nil)
	ctx := context.Background()

	for _, tc := range []struct {
		buyer   int64
		percent string
	}{{1, "5"}, {2, "0"}} {
		var e *orders.ReferralEarning
		require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
			var err error
			e, err = CreditDelivery(ctx, tx, orders.Order{BuyerID: tc.buyer, TotalPrice: dec("10")}, dec(tc.percent), now)
			return err
		}))
		assert.Nil(t, e)
	}
	assert.True(t, customer(t, st, 1).BonusBalance.IsZero())
	assert.Equal(t, 1, customer(t, st, 2).CompletedOrdersCount)
}

func TestGrant(t *testing.T) {
	st := seed(t, map[int64]int64{1: 0}, nil)
	ctx := context.Background()

	var e orders.ReferralEarning
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		var err error
		e, err = Grant(ctx, tx, 1, dec("12.345"), now)
		return err
	}))
	assert.Nil(t, e.ReferralID)
	assert.Equal(t, "12.35", e.Amount.StringFixed(2))
	assert.Equal(t, "12.35", customer(t, st, 1).BonusBalance.StringFixed(2))

	err := st.WithTx(ctx, func(tx store.Tx) error {
		_, err := Grant(ctx, tx, 1, dec("0"), now)
		return err
	})
	assert.ErrorIs(t, err, orders.ErrInvalidInput)
}
