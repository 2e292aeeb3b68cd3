package fulfillment

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/inventory"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"slices"
	"strings"
	"time"
)

// byProduct returns the items sorted by product name. Product rows are always
// locked in this order so two orders sharing products cannot deadlock.
func byProduct(items []orders.OrderItem) []orders.OrderItem {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b orders.OrderItem) int { return strings.Compare(a.Product, b.Product) })
	return out
}

// write persists p and its journal entry after re-checking the invariant.
func write(ctx context.Context, tx store.Tx, p orders.Product, e orders.JournalEntry) error {
	if err := inventory.CheckInvariant(p); err != nil {
		return err
	}
	if err := tx.UpdateProductQuantities(ctx, p); err != nil {
		return err
	}
	_, err := tx.AppendJournal(ctx, e)
	return err
}

func reserveLines(ctx context.Context, tx store.Tx, o orders.Order, now time.Time) error {
	for _, it := range byProduct(o.Items) {
		p, err := tx.LockProduct(ctx, it.Product)
		if err != nil {
			return err
		}
		e, err := inventory.Reserve(&p, it.Quantity, o.ID, now)
		if err != nil {
			return err
		}
		if err := write(ctx, tx, p, e); err != nil {
			return err
		}
	}
	return nil
}

// releaseLines gives back whatever the order still holds. Lines with nothing
// outstanding are skipped without a journal entry.
func releaseLines(ctx context.Context, tx store.Tx, o orders.Order, reason inventory.ReleaseReason, now time.Time) (released int, err error) {
	journal, err := tx.OrderJournal(ctx, o.ID)
	if err != nil {
		return 0, err
	}
	for _, it := range byProduct(o.Items) {
		p, err := tx.LockProduct(ctx, it.Product)
		if err != nil {
			return released, err
		}
		held := inventory.Outstanding(journal, o.ID, it.Product)
		e, ok, err := inventory.Release(&p, it.Quantity, held, o.ID, reason, now)
		if err != nil {
			return released, err
		}
		if !ok {
			continue
		}
		if err := write(ctx, tx, p, e); err != nil {
			return released, err
		}
		released -= e.QuantityDelta
	}
	return released, nil
}

func commitLines(ctx context.Context, tx store.Tx, o orders.Order, now time.Time) error {
	journal, err := tx.OrderJournal(ctx, o.ID)
	if err != nil {
		return err
	}
	for _, it := range byProduct(o.Items) {
		p, err := tx.LockProduct(ctx, it.Product)
		if err != nil {
			return err
		}
		if held := inventory.Outstanding(journal, o.ID, it.Product); held != it.Quantity {
			return fmt.Errorf("%w: order %d holds %d of %q, expected %d",
				orders.ErrInvariantViolation, o.ID, held, it.Product, it.Quantity)
		}
		e, err := inventory.Commit(&p, it.Quantity, o.ID, now)
		if err != nil {
			return err
		}
		if err := write(ctx, tx, p, e); err != nil {
			return err
		}
	}
	return nil
}
