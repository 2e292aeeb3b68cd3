// Package fulfillment drives orders through their lifecycle. Each operation
// runs as one store transaction: the status change and its inventory and
// bonus effects commit together or not at all.
package fulfillment

import (
	"context"
	"fmt"
	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/retry"
	"github.com/ariefcatur/shop-fulfillment/internal/settings"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"time"
)

type Engine struct {
	Store    store.Store
	Settings *settings.Provider
	Log      *zap.Logger
	Events   kafkax.Publisher
	Producer string // envelope producer name
	Now      func() time.Time
	Reads    retry.Policy

	tracer trace.Tracer
}

func New(st store.Store, sp *settings.Provider, log *zap.Logger, events kafkax.Publisher, producer string) *Engine {
	return &Engine{
		Store:    st,
		Settings: sp,
		Log:      log,
		Events:   events,
		Producer: producer,
		Reads:    retry.Policy{Attempts: 3, Base: 50 * time.Millisecond, Max: time.Second, Retryable: orders.Transient},
		tracer:   otel.Tracer("github.com/ariefcatur/shop-fulfillment/internal/fulfillment"),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) start(ctx context.Context, op string, orderID int64) (context.Context, trace.Span) {
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/ariefcatur/shop-fulfillment/internal/fulfillment")
	}
	return e.tracer.Start(ctx, "fulfillment."+op, trace.WithAttributes(attribute.Int64("order.id", orderID)))
}

// end records err on the span and logs invariant violations with the full
// operation context.
func (e *Engine) end(span trace.Span, op string, orderID int64, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	kind := orders.Classify(err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("error.kind", kind.String()))
	span.SetStatus(codes.Error, err.Error())
	if kind == orders.KindInvariant {
		e.Log.Error("invariant violation", zap.Error(err), zap.String("op", op), zap.Int64("order_id", orderID))
	}
}

// changed publishes a status change once the transaction has committed.
func (e *Engine) changed(o orders.Order, from orders.Status) {
	e.Log.Info("order status changed",
		zap.Int64("order_id", o.ID), zap.String("code", o.Code),
		zap.String("from", string(from)), zap.String("to", string(o.Status)))

	env, err := orders.NewEnvelope(orders.EventOrderStatusChanged, e.Producer, fmt.Sprint(o.ID), orders.OrderStatusChangedPayload{
		OrderID:       o.ID,
		OrderCode:     o.Code,
		BuyerID:       o.BuyerID,
		From:          from,
		To:            o.Status,
		ReservedUntil: o.ReservedUntil,
		ChangedAt:     e.now(),
	})
	if err != nil {
		e.Log.Warn("build status event", zap.Error(err), zap.Int64("order_id", o.ID))
		return
	}
	kafkax.PublishEnvelope(e.Events, orders.PartitionKey(o.ID), env)
}

func (e *Engine) GetOrder(ctx context.Context, orderID int64) (orders.Order, error) {
	var o orders.Order
	err := retry.Do(ctx, e.Reads, func(ctx context.Context) error {
		return e.Store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			o, err = tx.GetOrder(ctx, orderID)
			return err
		})
	})
	return o, err
}
