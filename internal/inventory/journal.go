package inventory

import (
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
)

// Replay rebuilds stock and reserved quantities from a product's journal,
// oldest entry first.
func Replay(entries []orders.JournalEntry) (stock, reserved int, err error) {
	for _, e := range entries {
		switch e.ChangeType {
		case orders.ChangeAdd, orders.ChangeManual:
			stock += e.QuantityDelta
		case orders.ChangeReserve, orders.ChangeRelease, orders.ChangeExpired:
			reserved += e.QuantityDelta
		case orders.ChangeDeduct:
			stock += e.QuantityDelta
			if e.OrderID != nil {
				reserved += e.QuantityDelta
			}
		default:
			return 0, 0, fmt.Errorf("journal entry %d: unknown change type %q", e.ID, e.ChangeType)
		}
	}
	return stock, reserved, nil
}

// Outstanding is how many units of product an order still holds according to
// the journal: reserved minus released, expired and committed.
func Outstanding(entries []orders.JournalEntry, orderID int64, product string) int {
	held := 0
	for _, e := range entries {
		if e.OrderID == nil || *e.OrderID != orderID || e.Product != product {
			continue
		}
		switch e.ChangeType {
		case orders.ChangeReserve, orders.ChangeRelease, orders.ChangeExpired, orders.ChangeDeduct:
			held += e.QuantityDelta
		}
	}
	return held
}
