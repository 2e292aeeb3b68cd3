package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/inventory"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/referral"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strings"
	"time"
)

const codeAttempts = 10

type ItemRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type OrderRequest struct {
	BuyerID         int64         `json:"buyer_id"`
	Items           []ItemRequest `json:"items"`
	PaymentMethod   string        `json:"payment_method"`
	DeliveryAddress string        `json:"delivery_address"`
	Phone           string        `json:"phone"`
	DeliveryNote    string        `json:"delivery_note"`
}

type CheckoutRequest struct {
	OrderRequest
	Bonus decimal.Decimal `json:"bonus"`
}

// mergeItems folds repeated products into one line, keeping first-seen order.
func mergeItems(in []ItemRequest) ([]ItemRequest, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: order has no items", orders.ErrInvalidInput)
	}
	idx := make(map[string]int, len(in))
	out := make([]ItemRequest, 0, len(in))
	for _, it := range in {
		name := strings.TrimSpace(it.Product)
		if name == "" {
			return nil, fmt.Errorf("%w: item without product", orders.ErrInvalidInput)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %q quantity %d", orders.ErrInvalidQuantity, name, it.Quantity)
		}
		if i, ok := idx[name]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[name] = len(out)
		out = append(out, ItemRequest{Product: name, Quantity: it.Quantity})
	}
	return out, nil
}

func (e *Engine) createOrder(ctx context.Context, tx store.Tx, req OrderRequest, now time.Time) (orders.Order, error) {
	items, err := mergeItems(req.Items)
	if err != nil {
		return orders.Order{}, err
	}
	if !orders.ValidPaymentMethod(req.PaymentMethod) {
		return orders.Order{}, fmt.Errorf("%w: payment method %q", orders.ErrInvalidInput, req.PaymentMethod)
	}
	if _, err := tx.GetUser(ctx, req.BuyerID); err != nil {
		return orders.Order{}, fmt.Errorf("buyer %d: %w", req.BuyerID, err)
	}

	o := orders.Order{
		BuyerID:         req.BuyerID,
		TotalPrice:      decimal.Zero,
		BonusApplied:    decimal.Zero,
		PaymentMethod:   req.PaymentMethod,
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		Phone:           strings.TrimSpace(req.Phone),
		DeliveryNote:    req.DeliveryNote,
		Status:          orders.StatusPending,
		CreatedAt:       now,
	}
	for _, it := range items {
		p, err := tx.GetProduct(ctx, it.Product)
		if err != nil {
			return orders.Order{}, fmt.Errorf("product %q: %w", it.Product, err)
		}
		o.Items = append(o.Items, orders.OrderItem{Product: p.Name, UnitPrice: p.Price, Quantity: it.Quantity})
		o.TotalPrice = o.TotalPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	for i := 0; o.Code == "" && i < codeAttempts; i++ {
		code, err := orders.NewOrderCode()
		if err != nil {
			return orders.Order{}, err
		}
		taken, err := tx.OrderCodeExists(ctx, code)
		if err != nil {
			return orders.Order{}, err
		}
		if !taken {
			o.Code = code
		}
	}
	if o.Code == "" {
		return orders.Order{}, errors.New("no free order code after retries")
	}

	if err := tx.CreateOrder(ctx, &o); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

// reserve moves a pending order to reserved. The caller holds the order lock.
func (e *Engine) reserve(ctx context.Context, tx store.Tx, o *orders.Order, bonus decimal.Decimal, timeout time.Duration, now time.Time) error {
	if err := orders.Transition(o.Status, orders.StatusReserved); err != nil {
		return err
	}
	if err := reserveLines(ctx, tx, *o, now); err != nil {
		return err
	}
	if err := referral.ApplyBonus(ctx, tx, o.BuyerID, bonus, o.TotalPrice, now); err != nil {
		return err
	}
	until := now.Add(timeout)
	o.BonusApplied = bonus
	o.Status = orders.StatusReserved
	o.ReservedUntil = &until
	return tx.UpdateOrder(ctx, *o)
}

// CreateOrder stores a pending order. Unit prices are taken from the catalog
// at this moment; no stock is held yet.
func (e *Engine) CreateOrder(ctx context.Context, req OrderRequest) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "CreateOrder", 0)
	defer func() { e.end(span, "CreateOrder", o.ID, err) }()

	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		o, err = e.createOrder(ctx, tx, req, e.now())
		return err
	})
	if err != nil {
		return orders.Order{}, err
	}
	e.Log.Info("order created", zap.Int64("order_id", o.ID), zap.String("code", o.Code),
		zap.Int64("buyer_id", o.BuyerID), zap.String("total", o.TotalPrice.StringFixed(2)))
	return o, nil
}

// ReserveOrder holds stock for every line and takes bonus from the buyer's
// balance. Calling it on an order that is already reserved returns the order
// unchanged.
func (e *Engine) ReserveOrder(ctx context.Context, orderID int64, bonus decimal.Decimal) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "ReserveOrder", orderID)
	defer func() { e.end(span, "ReserveOrder", orderID, err) }()

	timeout, err := e.Settings.ReservationTimeout(ctx)
	if err != nil {
		return orders.Order{}, err
	}
	var from orders.Status
	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		from = o.Status
		if o.Status == orders.StatusReserved {
			return nil
		}
		return e.reserve(ctx, tx, &o, bonus, timeout, e.now())
	})
	if err != nil {
		return orders.Order{}, err
	}
	if from != o.Status {
		e.changed(o, from)
	}
	return o, nil
}

// Checkout creates and reserves an order in one transaction. Nothing is
// stored when any line cannot be reserved.
func (e *Engine) Checkout(ctx context.Context, req CheckoutRequest) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "Checkout", 0)
	defer func() { e.end(span, "Checkout", o.ID, err) }()

	timeout, err := e.Settings.ReservationTimeout(ctx)
	if err != nil {
		return orders.Order{}, err
	}
	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		now := e.now()
		var err error
		if o, err = e.createOrder(ctx, tx, req.OrderRequest, now); err != nil {
			return err
		}
		return e.reserve(ctx, tx, &o, req.Bonus, timeout, now)
	})
	if err != nil {
		e.Log.Info("checkout rejected", zap.Int64("buyer_id", req.BuyerID), zap.String("reason", orders.Reason(err)))
		return orders.Order{}, err
	}
	e.changed(o, orders.StatusPending)
	return o, nil
}

// ConfirmOrder keeps the hold but clears the deadline, so the sweeper no
// longer expires the order.
func (e *Engine) ConfirmOrder(ctx context.Context, orderID int64) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "ConfirmOrder", orderID)
	defer func() { e.end(span, "ConfirmOrder", orderID, err) }()

	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := orders.Transition(o.Status, orders.StatusConfirmed); err != nil {
			return err
		}
		o.Status = orders.StatusConfirmed
		o.ReservedUntil = nil
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return orders.Order{}, err
	}
	e.changed(o, orders.StatusReserved)
	return o, nil
}

// MarkDelivered commits the held stock and settles the buyer and referrer
// aggregates. completed_at guards against crediting twice.
func (e *Engine) MarkDelivered(ctx context.Context, orderID int64) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "MarkDelivered", orderID)
	defer func() { e.end(span, "MarkDelivered", orderID, err) }()

	percent, err := e.Settings.ReferralPercent(ctx)
	if err != nil {
		return orders.Order{}, err
	}
	var earning *orders.ReferralEarning
	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if o.Status == orders.StatusDelivered || o.CompletedAt != nil {
			return fmt.Errorf("%w: %w: order %d delivered at %v",
				orders.ErrAlreadyProcessed, orders.ErrInvalidTransition, o.ID, o.CompletedAt)
		}
		if err := orders.Transition(o.Status, orders.StatusDelivered); err != nil {
			return err
		}
		now := e.now()
		if err := commitLines(ctx, tx, o, now); err != nil {
			return err
		}
		if earning, err = referral.CreditDelivery(ctx, tx, o, percent, now); err != nil {
			return err
		}
		o.Status = orders.StatusDelivered
		o.CompletedAt = &now
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return orders.Order{}, err
	}
	if earning != nil {
		e.Log.Info("referral credited", zap.Int64("order_id", o.ID), zap.Int64("referrer_id", earning.ReferrerID),
			zap.String("amount", earning.Amount.StringFixed(2)))
	}
	e.changed(o, orders.StatusConfirmed)
	return o, nil
}

// Actor is who asked for a cancellation. Only admins may cancel a confirmed
// order.
type Actor struct {
	UserID int64
	Admin  bool
}

// CancelOrder releases what the order holds and refunds its bonus. A nil
// actor is an internal caller with admin rights.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64, actor *Actor) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "CancelOrder", orderID)
	defer func() { e.end(span, "CancelOrder", orderID, err) }()

	var (
		from     orders.Status
		released int
	)
	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		from = o.Status
		if err := orders.Transition(o.Status, orders.StatusCancelled); err != nil {
			return err
		}
		if o.Status == orders.StatusConfirmed && actor != nil && !actor.Admin {
			return fmt.Errorf("%w: order %d is confirmed, only an admin may cancel it", orders.ErrInvalidTransition, o.ID)
		}
		now := e.now()
		if released, err = releaseLines(ctx, tx, o, inventory.ReasonCancelled, now); err != nil {
			return err
		}
		if err := referral.RefundBonus(ctx, tx, o.BuyerID, o.BonusApplied, now); err != nil {
			return err
		}
		o.Status = orders.StatusCancelled
		o.ReservedUntil = nil
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return orders.Order{}, err
	}
	var actorID *int64
	if actor != nil {
		actorID = &actor.UserID
	}
	e.Log.Info("order cancelled", zap.Int64("order_id", o.ID), zap.Int64p("actor_id", actorID), zap.Int("released", released))
	e.changed(o, from)
	return o, nil
}

// ExpireOrder releases a reservation whose deadline has passed.
func (e *Engine) ExpireOrder(ctx context.Context, orderID int64) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "ExpireOrder", orderID)
	defer func() { e.end(span, "ExpireOrder", orderID, err) }()

	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if err := orders.Transition(o.Status, orders.StatusExpired); err != nil {
			return err
		}
		now := e.now()
		if o.ReservedUntil == nil || now.Before(*o.ReservedUntil) {
			return fmt.Errorf("%w: order %d reserved until %v", orders.ErrNotExpired, o.ID, o.ReservedUntil)
		}
		if _, err := releaseLines(ctx, tx, o, inventory.ReasonExpired, now); err != nil {
			return err
		}
		if err := referral.RefundBonus(ctx, tx, o.BuyerID, o.BonusApplied, now); err != nil {
			return err
		}
		o.Status = orders.StatusExpired
		o.ReservedUntil = nil
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return orders.Order{}, err
	}
	e.changed(o, orders.StatusReserved)
	return o, nil
}

// SetDeliveryTime records when a confirmed order will be handed over.
func (e *Engine) SetDeliveryTime(ctx context.Context, orderID int64, at time.Time) (o orders.Order, err error) {
	ctx, span := e.start(ctx, "SetDeliveryTime", orderID)
	defer func() { e.end(span, "SetDeliveryTime", orderID, err) }()

	if at.IsZero() {
		return orders.Order{}, fmt.Errorf("%w: empty delivery time", orders.ErrInvalidInput)
	}
	at = at.UTC()
	err = e.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if o, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if o.Status != orders.StatusConfirmed {
			return fmt.Errorf("%w: delivery time needs a confirmed order, order %d is %s",
				orders.ErrInvalidTransition, o.ID, o.Status)
		}
		o.DeliveryTime = &at
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return orders.Order{}, err
	}
	return o, nil
}
