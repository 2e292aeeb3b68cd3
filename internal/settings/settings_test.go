package settings

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/shop-fulfillment/internal/memstore"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider() *Provider {
	return &Provider{
		Store: memstore.New(),
		Defaults: Defaults{
			ReservationTimeout: 30 * time.Minute,
			ReferralPercent:    decimal.NewFromInt(5),
		},
	}
}

func TestDefaultsWhenUnset(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	d, err := p.ReservationTimeout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	pct, err := p.ReferralPercent(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(pct))
}

func TestSetAppliesImmediately(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, KeyReservationTimeout, "10"))
	d, err := p.ReservationTimeout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)

	require.NoError(t, p.Set(ctx, KeyReferralPercent, "7.5"))
	pct, err := p.ReferralPercent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7.5", pct.String())
}

func TestSetRejectsBadValues(t *testing.T) {
	p := newProvider()
	ctx := context.Background()

	for _, tc := range []struct{ key, value string }{
		{KeyReservationTimeout, "0"},
		{KeyReservationTimeout, "soon"},
		{KeyReferralPercent, "-1"},
		{KeyReferralPercent, "101"},
		{"max_discount", "3"},
	} {
		err := p.Set(ctx, tc.key, tc.value)
		assert.ErrorIs(t, err, orders.ErrInvalidInput, "%s=%s", tc.key, tc.value)
	}

	d, err := p.ReservationTimeout(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)
}
