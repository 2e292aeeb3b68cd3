package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/ariefcatur/shop-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/memstore"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capture struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (c *capture) Publish(_, value []byte, _ ...kafka.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, value)
}

func newService(t *testing.T) (*inventory.Service, *memstore.Store, *capture) {
	t.Helper()
	st := memstore.New()
	pub := &capture{}
	svc := &inventory.Service{Store: st, Log: zap.NewNop(), Events: pub, ServiceName: "test"}
	_, err := svc.CreateProduct(context.Background(), inventory.NewProduct{
		Name: "Widget", Price: decimal.RequireFromString("9.99"), InitialStock: 5,
	})
	require.NoError(t, err)
	return svc, st, pub
}

func TestCreateProduct_JournalsInitialStock(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	entries, err := svc.Journal(ctx, "Widget")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, orders.ChangeAdd, entries[0].ChangeType)
	assert.Equal(t, 5, entries[0].QuantityDelta)

	_, err = svc.CreateProduct(ctx, inventory.NewProduct{Name: "Widget", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, orders.ErrAlreadyExists)

	_, err = svc.CreateProduct(ctx, inventory.NewProduct{Name: "  ", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, orders.ErrInvalidInput)
}

func TestAdjustStock(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()
	admin := int64(1)

	st, err := svc.AdjustStock(ctx, "Widget", inventory.OpAdd, 3, &admin, "restock")
	require.NoError(t, err)
	assert.Equal(t, orders.InventoryStatus{Product: "Widget", Stock: 8, Available: 8}, st)

	st, err = svc.AdjustStock(ctx, "Widget", inventory.OpRemove, 2, &admin, "")
	require.NoError(t, err)
	assert.Equal(t, 6, st.Stock)

	st, err = svc.AdjustStock(ctx, "Widget", inventory.OpSet, 4, &admin, "")
	require.NoError(t, err)
	assert.Equal(t, 4, st.Stock)

	_, err = svc.AdjustStock(ctx, "Widget", inventory.OpRemove, 5, &admin, "")
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	_, err = svc.AdjustStock(ctx, "Widget", "double", 1, &admin, "")
	assert.ErrorIs(t, err, orders.ErrInvalidInput)

	_, err = svc.AdjustStock(ctx, "Gizmo", inventory.OpAdd, 1, &admin, "")
	assert.ErrorIs(t, err, orders.ErrNotFound)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.msgs, 3)
	env, err := kafkax.UnmarshalEnvelope(pub.msgs[2])
	require.NoError(t, err)
	assert.Equal(t, orders.EventStockAdjusted, env.EventType)
	ev, err := kafkax.UnwrapPayload[orders.StockAdjustedPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, orders.ChangeManual, ev.Change)
	assert.Equal(t, -2, ev.Delta)
	assert.Equal(t, 4, ev.Stock)
}

func TestSetBelowReservedIsBlocked(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, "Widget")
		if err != nil {
			return err
		}
		e, err := inventory.Reserve(&p, 3, 1, p.UpdatedAt)
		if err != nil {
			return err
		}
		if err := tx.UpdateProductQuantities(ctx, p); err != nil {
			return err
		}
		_, err = tx.AppendJournal(ctx, e)
		return err
	}))

	_, err := svc.AdjustStock(ctx, "Widget", inventory.OpSet, 2, nil, "")
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	status, err := svc.Status(ctx, "Widget")
	require.NoError(t, err)
	assert.Equal(t, orders.InventoryStatus{Product: "Widget", Stock: 5, Reserved: 3, Available: 2}, status)
}

func TestReconcile(t *testing.T) {
	svc, st, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, "Widget", inventory.OpAdd, 2, nil, "")
	require.NoError(t, err)
	_, err = svc.Reconcile(ctx, "Widget")
	require.NoError(t, err)

	// a quantity change without its journal entry
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, "Widget")
		if err != nil {
			return err
		}
		p.StockQuantity++
		return tx.UpdateProductQuantities(ctx, p)
	}))
	_, err = svc.Reconcile(ctx, "Widget")
	assert.ErrorIs(t, err, orders.ErrInvariantViolation)
}
