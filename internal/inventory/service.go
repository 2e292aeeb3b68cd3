package inventory

import (
	"context"
	"fmt"
	kafkax "github.com/ariefcatur/shop-fulfillment/internal/kafka"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/retry"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
	"time"
)

// Op is an admin stock adjustment.
type Op string

const (
	OpAdd    Op = "add"
	OpSet    Op = "set"
	OpRemove Op = "remove"
)

// Service is the stock ledger: admin-side mutations and reads. Every
// mutation writes its journal entry in the same transaction.
type Service struct {
	Store       store.Store
	Log         *zap.Logger
	Events      kafkax.Publisher // publish inventory.changed
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type NewProduct struct {
	Name         string
	Price        decimal.Decimal
	Description  string
	Category     string
	InitialStock int
	ActorID      *int64
}

func (s *Service) CreateProduct(ctx context.Context, in NewProduct) (orders.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || len(in.Name) > 100 {
		return orders.Product{}, fmt.Errorf("%w: product name must be 1-100 characters", orders.ErrInvalidInput)
	}
	if in.Price.IsNegative() {
		return orders.Product{}, fmt.Errorf("%w: negative price", orders.ErrInvalidInput)
	}
	if in.InitialStock < 0 {
		return orders.Product{}, fmt.Errorf("%w: initial stock %d", orders.ErrInvalidQuantity, in.InitialStock)
	}

	now := s.now()
	p := orders.Product{
		Name:        in.Name,
		Price:       in.Price.Round(2),
		Description: in.Description,
		Category:    in.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateProduct(ctx, p); err != nil {
			return err
		}
		// initial stock goes through the journal so replay starts at zero
		e, err := Add(&p, in.InitialStock, in.ActorID, "initial stock", now)
		if err != nil {
			return err
		}
		if err := tx.UpdateProductQuantities(ctx, p); err != nil {
			return err
		}
		_, err = tx.AppendJournal(ctx, e)
		return err
	})
	if err != nil {
		return orders.Product{}, err
	}
	s.Log.Info("product created", zap.String("product", p.Name), zap.Int("stock", p.StockQuantity))
	return p, nil
}

// AdjustStock applies op to product and returns the resulting status.
func (s *Service) AdjustStock(ctx context.Context, product string, op Op, qty int, actorID *int64, comment string) (orders.InventoryStatus, error) {
	var mutate func(p *orders.Product, now time.Time) (orders.JournalEntry, error)
	switch op {
	case OpAdd:
		mutate = func(p *orders.Product, now time.Time) (orders.JournalEntry, error) {
			return Add(p, qty, actorID, comment, now)
		}
	case OpSet:
		mutate = func(p *orders.Product, now time.Time) (orders.JournalEntry, error) {
			return SetExact(p, qty, actorID, comment, now)
		}
	case OpRemove:
		mutate = func(p *orders.Product, now time.Time) (orders.JournalEntry, error) {
			return Deduct(p, qty, actorID, comment, now)
		}
	default:
		return orders.InventoryStatus{}, fmt.Errorf("%w: unknown stock operation %q", orders.ErrInvalidInput, op)
	}

	var (
		p orders.Product
		e orders.JournalEntry
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if p, err = tx.LockProduct(ctx, product); err != nil {
			return err
		}
		if e, err = mutate(&p, s.now()); err != nil {
			return err
		}
		if err := CheckInvariant(p); err != nil {
			return err
		}
		if err := tx.UpdateProductQuantities(ctx, p); err != nil {
			return err
		}
		_, err = tx.AppendJournal(ctx, e)
		return err
	})
	if err != nil {
		if orders.Classify(err) == orders.KindInvariant {
			s.Log.Error("stock adjustment broke invariant", zap.Error(err),
				zap.String("product", product), zap.String("op", string(op)), zap.Int("qty", qty))
		}
		return orders.InventoryStatus{}, err
	}

	s.Log.Info("stock adjusted",
		zap.String("product", product), zap.String("op", string(op)), zap.Int("delta", e.QuantityDelta),
		zap.Int("stock", p.StockQuantity), zap.Int("reserved", p.ReservedQuantity), zap.Int64p("actor", actorID))
	s.publish(p, e)
	return orders.StatusOf(p), nil
}

func (s *Service) publish(p orders.Product, e orders.JournalEntry) {
	env, err := orders.NewEnvelope(orders.EventStockAdjusted, s.ServiceName, p.Name, orders.StockAdjustedPayload{
		Product:  p.Name,
		Change:   e.ChangeType,
		Delta:    e.QuantityDelta,
		Stock:    p.StockQuantity,
		Reserved: p.ReservedQuantity,
		ActorID:  e.ActorID,
	})
	if err != nil {
		s.Log.Warn("build stock event", zap.Error(err))
		return
	}
	kafkax.PublishEnvelope(s.Events, []byte(p.Name), env)
}

var readPolicy = retry.Policy{Attempts: 3, Base: 50 * time.Millisecond, Max: time.Second, Retryable: orders.Transient}

func (s *Service) Status(ctx context.Context, product string) (orders.InventoryStatus, error) {
	var p orders.Product
	err := retry.Do(ctx, readPolicy, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			p, err = tx.GetProduct(ctx, product)
			return err
		})
	})
	if err != nil {
		return orders.InventoryStatus{}, err
	}
	return orders.StatusOf(p), nil
}

func (s *Service) List(ctx context.Context) ([]orders.Product, error) {
	var ps []orders.Product
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		ps, err = tx.ListProducts(ctx)
		return err
	})
	return ps, err
}

func (s *Service) Journal(ctx context.Context, product string) ([]orders.JournalEntry, error) {
	var out []orders.JournalEntry
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetProduct(ctx, product); err != nil {
			return err
		}
		var err error
		out, err = tx.ProductJournal(ctx, product)
		return err
	})
	return out, err
}

// Reconcile replays the journal and compares it with the stored quantities.
// A mismatch is reported as an invariant violation.
func (s *Service) Reconcile(ctx context.Context, product string) (orders.InventoryStatus, error) {
	var (
		p       orders.Product
		entries []orders.JournalEntry
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if p, err = tx.LockProduct(ctx, product); err != nil {
			return err
		}
		entries, err = tx.ProductJournal(ctx, product)
		return err
	})
	if err != nil {
		return orders.InventoryStatus{}, err
	}
	stock, reserved, err := Replay(entries)
	if err != nil {
		return orders.InventoryStatus{}, err
	}
	if stock != p.StockQuantity || reserved != p.ReservedQuantity {
		err := fmt.Errorf("%w: %q journal says stock=%d reserved=%d, row has stock=%d reserved=%d",
			orders.ErrInvariantViolation, product, stock, reserved, p.StockQuantity, p.ReservedQuantity)
		s.Log.Error("journal does not reconcile", zap.Error(err), zap.String("product", product),
			zap.Int("entries", len(entries)))
		return orders.StatusOf(p), err
	}
	return orders.StatusOf(p), nil
}
