// Package projection keeps the redis read model in step with the event
// stream.
package projection

import (
	"context"
	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Cache is implemented by *redisx.StatusCache.
type Cache interface {
	MarkSeen(ctx context.Context, consumer, eventID string) (bool, error)
	Forget(ctx context.Context, consumer, eventID string) error
	SetStatus(ctx context.Context, s redisx.CachedStatus) error
	SetInventory(ctx context.Context, st orders.InventoryStatus) error
}

type Projector struct {
	Cache Cache
	Log   *zap.Logger
	Name  string // consumer name in dedup keys
}

// once runs apply for env unless this consumer has already seen the event.
// A failed apply clears the marker so redelivery retries it.
func (p *Projector) once(ctx context.Context, env orders.Envelope, apply func() error) error {
	fresh, err := p.Cache.MarkSeen(ctx, p.Name, env.EventID)
	if err != nil {
		return err
	}
	if !fresh {
		p.Log.Debug("duplicate event skipped", zap.String("event_id", env.EventID))
		return nil
	}
	if err := apply(); err != nil {
		if ferr := p.Cache.Forget(ctx, p.Name, env.EventID); ferr != nil {
			p.Log.Warn("clear dedup marker", zap.Error(ferr), zap.String("event_id", env.EventID))
		}
		return err
	}
	return nil
}

// HandleStatusChanged is the consumer handler for order.status.changed.
func (p *Projector) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		p.Log.Warn("undecodable message dropped", zap.Error(err), zap.Int64("offset", m.Offset))
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}
	ev, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
	if err != nil {
		p.Log.Warn("bad status payload dropped", zap.Error(err), zap.String("event_id", env.EventID))
		return nil
	}
	return p.once(ctx, env, func() error {
		return p.Cache.SetStatus(ctx, redisx.CachedStatus{
			OrderID:       ev.OrderID,
			Code:          ev.OrderCode,
			BuyerID:       ev.BuyerID,
			Status:        ev.To,
			ReservedUntil: ev.ReservedUntil,
			UpdatedAt:     ev.ChangedAt,
		})
	})
}

// HandleInventoryChanged is the consumer handler for inventory.changed.
func (p *Projector) HandleInventoryChanged(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		p.Log.Warn("undecodable message dropped", zap.Error(err), zap.Int64("offset", m.Offset))
		return nil
	}
	if env.EventType != orders.EventStockAdjusted {
		return nil
	}
	ev, err := kafkax.UnwrapPayload[orders.StockAdjustedPayload](env.Payload)
	if err != nil {
		p.Log.Warn("bad stock payload dropped", zap.Error(err), zap.String("event_id", env.EventID))
		return nil
	}
	return p.once(ctx, env, func() error {
		return p.Cache.SetInventory(ctx, orders.StatusOf(orders.Product{
			Name:             ev.Product,
			StockQuantity:    ev.Stock,
			ReservedQuantity: ev.Reserved,
		}))
	})
}
