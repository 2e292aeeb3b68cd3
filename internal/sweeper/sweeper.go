// Package sweeper expires reservations whose deadline has passed.
package sweeper

import (
	"context"
	"errors"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/retry"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"go.uber.org/zap"
	"time"
)

// Expirer is the part of the engine the sweeper drives.
type Expirer interface {
	ExpireOrder(ctx context.Context, orderID int64) (orders.Order, error)
}

type Sweeper struct {
	Store    store.Store
	Engine   Expirer
	Log      *zap.Logger
	Interval time.Duration
	Batch    int
	Retry    retry.Policy
	Now      func() time.Time
}

type Failure struct {
	OrderID int64
	Err     error
}

// Report summarises one tick. Skipped orders were moved on by someone else
// between listing and expiring.
type Report struct {
	Expired []int64
	Skipped []int64
	Failed  []Failure
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Run ticks until ctx is cancelled. A failing tick is logged and the loop
// carries on.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	s.Log.Info("sweeper started", zap.Duration("interval", interval), zap.Int("batch", s.Batch))
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("sweeper stopped")
			return nil
		case <-t.C:
			r, err := s.Tick(ctx)
			if err != nil {
				s.Log.Warn("sweep tick failed", zap.Error(err))
				continue
			}
			if len(r.Expired)+len(r.Skipped)+len(r.Failed) > 0 {
				s.Log.Info("sweep tick",
					zap.Int("expired", len(r.Expired)), zap.Int("skipped", len(r.Skipped)), zap.Int("failed", len(r.Failed)))
			}
		}
	}
}

// Tick expires one batch. The error is only about listing candidates; per
// order failures go into the report.
func (s *Sweeper) Tick(ctx context.Context) (Report, error) {
	batch := s.Batch
	if batch <= 0 {
		batch = 100
	}
	var ids []int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ids, err = tx.ExpiredReservations(ctx, s.now(), batch)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	policy := s.Retry
	if policy.Attempts == 0 {
		policy = retry.Default
	}
	policy.Retryable = orders.Transient

	var r Report
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			_, err := s.Engine.ExpireOrder(ctx, id)
			return err
		})
		switch {
		case err == nil:
			r.Expired = append(r.Expired, id)
		case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrNotExpired):
			r.Skipped = append(r.Skipped, id)
		default:
			r.Failed = append(r.Failed, Failure{OrderID: id, Err: err})
			s.Log.Warn("expire order failed", zap.Int64("order_id", id), zap.Error(err),
				zap.String("kind", orders.Classify(err).String()))
		}
	}
	return r, nil
}
