package inventory

import (
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"time"
)

// The functions below mutate a product that the caller holds locked inside a
// transaction and return the journal entry that must be written in that same
// transaction. On error the product is left untouched.

type ReleaseReason string

const (
	ReasonCancelled ReleaseReason = "cancelled"
	ReasonExpired   ReleaseReason = "expired"
)

func (r ReleaseReason) changeType() orders.ChangeType {
	if r == ReasonExpired {
		return orders.ChangeExpired
	}
	return orders.ChangeRelease
}

func entry(p *orders.Product, ct orders.ChangeType, delta int, orderID, actorID *int64, now time.Time, comment string) orders.JournalEntry {
	return orders.JournalEntry{
		Product:       p.Name,
		ChangeType:    ct,
		QuantityDelta: delta,
		OrderID:       orderID,
		ActorID:       actorID,
		Timestamp:     now,
		Comment:       comment,
	}
}

// CheckInvariant verifies 0 <= reserved <= stock.
func CheckInvariant(p orders.Product) error {
	if p.StockQuantity < 0 || p.ReservedQuantity < 0 || p.ReservedQuantity > p.StockQuantity {
		return fmt.Errorf("%w: product %q stock=%d reserved=%d",
			orders.ErrInvariantViolation, p.Name, p.StockQuantity, p.ReservedQuantity)
	}
	return nil
}

func Add(p *orders.Product, delta int, actorID *int64, comment string, now time.Time) (orders.JournalEntry, error) {
	if delta < 0 {
		return orders.JournalEntry{}, fmt.Errorf("%w: add %d", orders.ErrInvalidQuantity, delta)
	}
	p.StockQuantity += delta
	p.UpdatedAt = now
	if comment == "" {
		comment = fmt.Sprintf("added %d units", delta)
	}
	return entry(p, orders.ChangeAdd, delta, nil, actorID, now, comment), nil
}

// SetExact sets stock to an exact value. Stock may not drop below what is held.
func SetExact(p *orders.Product, newQuantity int, actorID *int64, comment string, now time.Time) (orders.JournalEntry, error) {
	if newQuantity < 0 {
		return orders.JournalEntry{}, fmt.Errorf("%w: set %d", orders.ErrInvalidQuantity, newQuantity)
	}
	if newQuantity < p.ReservedQuantity {
		return orders.JournalEntry{}, fmt.Errorf("%w: %q has %d units reserved, cannot set stock to %d",
			orders.ErrInvalidQuantity, p.Name, p.ReservedQuantity, newQuantity)
	}
	old := p.StockQuantity
	p.StockQuantity = newQuantity
	p.UpdatedAt = now
	if comment == "" {
		comment = fmt.Sprintf("stock set to %d (was %d)", newQuantity, old)
	}
	return entry(p, orders.ChangeManual, newQuantity-old, nil, actorID, now, comment), nil
}

// Deduct removes units outside of any order.
func Deduct(p *orders.Product, delta int, actorID *int64, comment string, now time.Time) (orders.JournalEntry, error) {
	if delta < 0 {
		return orders.JournalEntry{}, fmt.Errorf("%w: remove %d", orders.ErrInvalidQuantity, delta)
	}
	if delta > p.Available() {
		return orders.JournalEntry{}, fmt.Errorf("%w: %q requested %d, available %d",
			orders.ErrInsufficientStock, p.Name, delta, p.Available())
	}
	p.StockQuantity -= delta
	p.UpdatedAt = now
	if comment == "" {
		comment = fmt.Sprintf("removed %d units", delta)
	}
	return entry(p, orders.ChangeDeduct, -delta, nil, actorID, now, comment), nil
}

func Reserve(p *orders.Product, qty int, orderID int64, now time.Time) (orders.JournalEntry, error) {
	if qty <= 0 {
		return orders.JournalEntry{}, fmt.Errorf("%w: reserve %d", orders.ErrInvalidQuantity, qty)
	}
	if p.Available() < qty {
		return orders.JournalEntry{}, fmt.Errorf("%w: %q requested %d, available %d",
			orders.ErrInsufficientStock, p.Name, qty, p.Available())
	}
	p.ReservedQuantity += qty
	p.UpdatedAt = now
	return entry(p, orders.ChangeReserve, qty, &orderID, nil, now, fmt.Sprintf("reserved for order %d", orderID)), nil
}

// Release gives back up to qty units held by an order. held is what the
// journal says the order still holds for this product. The returned bool is
// false when nothing was left to release; no entry must be written then.
func Release(p *orders.Product, qty, held int, orderID int64, reason ReleaseReason, now time.Time) (orders.JournalEntry, bool, error) {
	if qty <= 0 {
		return orders.JournalEntry{}, false, fmt.Errorf("%w: release %d", orders.ErrInvalidQuantity, qty)
	}
	n := min(qty, held, p.ReservedQuantity)
	if n <= 0 {
		return orders.JournalEntry{}, false, nil
	}
	p.ReservedQuantity -= n
	p.UpdatedAt = now
	return entry(p, reason.changeType(), -n, &orderID, nil, now,
		fmt.Sprintf("order %d %s", orderID, reason)), true, nil
}

// Commit turns a hold into a permanent deduction.
func Commit(p *orders.Product, qty int, orderID int64, now time.Time) (orders.JournalEntry, error) {
	if qty <= 0 {
		return orders.JournalEntry{}, fmt.Errorf("%w: commit %d", orders.ErrInvalidQuantity, qty)
	}
	if p.ReservedQuantity < qty || p.StockQuantity < qty {
		return orders.JournalEntry{}, fmt.Errorf("%w: commit %d of %q for order %d but reserved=%d stock=%d",
			orders.ErrInvariantViolation, qty, p.Name, orderID, p.ReservedQuantity, p.StockQuantity)
	}
	p.ReservedQuantity -= qty
	p.StockQuantity -= qty
	p.UpdatedAt = now
	return entry(p, orders.ChangeDeduct, -qty, &orderID, nil, now, fmt.Sprintf("delivered order %d", orderID)), nil
}
