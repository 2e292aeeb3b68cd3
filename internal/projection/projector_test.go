package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memCache struct {
	seen      map[string]bool
	statuses  map[int64]redisx.CachedStatus
	inventory map[string]orders.InventoryStatus
	failSet   error
}

func newMemCache() *memCache {
	return &memCache{
		seen:      map[string]bool{},
		statuses:  map[int64]redisx.CachedStatus{},
		inventory: map[string]orders.InventoryStatus{},
	}
}

func (c *memCache) MarkSeen(_ context.Context, consumer, eventID string) (bool, error) {
	k := consumer + "/" + eventID
	if c.seen[k] {
		return false, nil
	}
	c.seen[k] = true
	return true, nil
}

func (c *memCache) Forget(_ context.Context, consumer, eventID string) error {
	delete(c.seen, consumer+"/"+eventID)
	return nil
}

func (c *memCache) SetStatus(_ context.Context, s redisx.CachedStatus) error {
	if c.failSet != nil {
		return c.failSet
	}
	c.statuses[s.OrderID] = s
	return nil
}

func (c *memCache) SetInventory(_ context.Context, st orders.InventoryStatus) error {
	c.inventory[st.Product] = st
	return nil
}

func message(t *testing.T, eventType string, payload any) (kafkago.Message, orders.Envelope) {
	t.Helper()
	env, err := orders.NewEnvelope(eventType, "test", "", payload)
	require.NoError(t, err)
	return kafkago.Message{Value: kafkax.MustMarshal(env)}, env
}

func TestHandleStatusChanged(t *testing.T) {
	cache := newMemCache()
	p := &Projector{Cache: cache, Log: zap.NewNop(), Name: "status"}
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

	m, _ := message(t, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID: 7, OrderCode: "ABCDEF", BuyerID: 3, From: orders.StatusPending, To: orders.StatusReserved, ChangedAt: at,
	})
	require.NoError(t, p.HandleStatusChanged(ctx, m))
	assert.Equal(t, redisx.CachedStatus{OrderID: 7, Code: "ABCDEF", BuyerID: 3, Status: orders.StatusReserved, UpdatedAt: at},
		cache.statuses[7])

	// a redelivered event must not roll the view back
	cache.statuses[7] = redisx.CachedStatus{OrderID: 7, Status: orders.StatusConfirmed}
	require.NoError(t, p.HandleStatusChanged(ctx, m))
	assert.Equal(t, orders.StatusConfirmed, cache.statuses[7].Status)
}

func TestHandleStatusChanged_FailureClearsMarker(t *testing.T) {
	cache := newMemCache()
	cache.failSet = errors.New("redis down")
	p := &Projector{Cache: cache, Log: zap.NewNop(), Name: "status"}
	ctx := context.Background()

	m, env := message(t, orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{OrderID: 9, To: orders.StatusExpired})
	require.Error(t, p.HandleStatusChanged(ctx, m))
	assert.False(t, cache.seen["status/"+env.EventID])

	cache.failSet = nil
	require.NoError(t, p.HandleStatusChanged(ctx, m))
	assert.Equal(t, orders.StatusExpired, cache.statuses[9].Status)
}

func TestHandlersDropWhatTheyCannotUse(t *testing.T) {
	cache := newMemCache()
	p := &Projector{Cache: cache, Log: zap.NewNop(), Name: "status"}
	ctx := context.Background()

	assert.NoError(t, p.HandleStatusChanged(ctx, kafkago.Message{Value: []byte("{not json")}))
	assert.NoError(t, p.HandleInventoryChanged(ctx, kafkago.Message{Value: []byte("{not json")}))

	m, _ := message(t, orders.EventStockAdjusted, orders.StockAdjustedPayload{Product: "Widget"})
	assert.NoError(t, p.HandleStatusChanged(ctx, m))
	assert.Empty(t, cache.statuses)
	assert.Empty(t, cache.seen)
}

func TestHandleInventoryChanged(t *testing.T) {
	cache := newMemCache()
	p := &Projector{Cache: cache, Log: zap.NewNop(), Name: "stock"}

	m, _ := message(t, orders.EventStockAdjusted, orders.StockAdjustedPayload{
		Product: "Widget", Change: orders.ChangeAdd, Delta: 3, Stock: 8, Reserved: 2,
	})
	require.NoError(t, p.HandleInventoryChanged(context.Background(), m))
	assert.Equal(t, orders.InventoryStatus{Product: "Widget", Stock: 8, Reserved: 2, Available: 6}, cache.inventory["Widget"])
}
