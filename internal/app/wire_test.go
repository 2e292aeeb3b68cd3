package app

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/shop-fulfillment/internal/config"
	"github.com/ariefcatur/shop-fulfillment/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpen_MemoryStoreIsProcessLocal(t *testing.T) {
	cfg := config.Config{Store: "memory", ReferralPercent: "7.5", ReservationTimeout: 20 * time.Minute}
	b, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.False(t, b.Shared)
	assert.IsType(t, &memstore.Store{}, b.Store)
	assert.NoError(t, b.Ping(context.Background()))

	d, err := b.Settings.ReservationTimeout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, d)
	p, err := b.Settings.ReferralPercent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7.5", p.String())
}

func TestOpen_RejectsBadPercent(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: "memory", ReferralPercent: "five"}, zap.NewNop())
	assert.ErrorContains(t, err, "REFERRAL_PERCENT")
}
