package referral

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"time"
)

var hundred = decimal.NewFromInt(100)

// Earning is original × percent / 100, rounded to cents.
func Earning(original, percent decimal.Decimal) decimal.Decimal {
	return original.Mul(percent).Div(hundred).Round(2)
}

// ApplyBonus takes bonus from the buyer's balance for an order being
// reserved. It must run in the reservation transaction.
func ApplyBonus(ctx context.Context, tx store.Tx, buyerID int64, bonus, total decimal.Decimal, now time.Time) error {
	if bonus.IsZero() {
		return nil
	}
	if bonus.IsNegative() {
		return fmt.Errorf("%w: negative bonus %s", orders.ErrInvalidInput, bonus)
	}
	if bonus.GreaterThan(total) {
		return fmt.Errorf("%w: bonus %s is more than order total %s", orders.ErrBonusExceedsBalance, bonus, total)
	}
	c, err := tx.LockCustomer(ctx, buyerID)
	if err != nil {
		return err
	}
	if bonus.GreaterThan(c.BonusBalance) {
		return fmt.Errorf("%w: bonus %s, balance %s", orders.ErrBonusExceedsBalance, bonus, c.BonusBalance)
	}
	c.BonusBalance = c.BonusBalance.Sub(bonus)
	c.UpdatedAt = now
	return tx.UpdateCustomer(ctx, c)
}

// RefundBonus returns a cancelled or expired order's bonus to the buyer.
func RefundBonus(ctx context.Context, tx store.Tx, buyerID int64, bonus decimal.Decimal, now time.Time) error {
	if !bonus.IsPositive() {
		return nil
	}
	c, err := tx.LockCustomer(ctx, buyerID)
	if err != nil {
		return err
	}
	c.BonusBalance = c.BonusBalance.Add(bonus)
	c.UpdatedAt = now
	return tx.UpdateCustomer(ctx, c)
}

// CreditDelivery updates the buyer aggregate and, when the buyer was
// referred, credits the referrer. The caller guarantees it runs once per
// order, inside the delivery transaction. The returned earning is nil when
// nothing was credited.
func CreditDelivery(ctx context.Context, tx store.Tx, o orders.Order, percent decimal.Decimal, now time.Time) (*orders.ReferralEarning, error) {
	buyer, err := tx.GetUser(ctx, o.BuyerID)
	if err != nil {
		return nil, err
	}

	var earning *orders.ReferralEarning
	if buyer.ReferralID != nil && *buyer.ReferralID != buyer.ID && percent.IsPositive() {
		if amount := Earning(o.TotalPrice, percent); amount.IsPositive() {
			earning = &orders.ReferralEarning{
				ReferrerID:     *buyer.ReferralID,
				ReferralID:     &buyer.ID,
				Amount:         amount,
				OriginalAmount: o.TotalPrice,
				CreatedAt:      now,
			}
		}
	}

	// customer rows are locked in id order
	ids := []int64{buyer.ID}
	if earning != nil {
		if earning.ReferrerID < buyer.ID {
			ids = []int64{earning.ReferrerID, buyer.ID}
		} else {
			ids = append(ids, earning.ReferrerID)
		}
	}
	locked := make(map[int64]orders.CustomerInfo, len(ids))
	for _, id := range ids {
		c, err := tx.LockCustomer(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = c
	}

	c := locked[buyer.ID]
	c.TotalSpendings = c.TotalSpendings.Add(o.Payable())
	c.CompletedOrdersCount++
	c.UpdatedAt = now
	if err := tx.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}

	if earning == nil {
		return nil, nil
	}
	if earning.ID, err = tx.InsertEarning(ctx, *earning); err != nil {
		return nil, err
	}
	r := locked[earning.ReferrerID]
	r.BonusBalance = r.BonusBalance.Add(earning.Amount)
	r.UpdatedAt = now
	if err := tx.UpdateCustomer(ctx, r); err != nil {
		return nil, err
	}
	return earning, nil
}

// Grant records an admin-issued bonus for userID.
func Grant(ctx context.Context, tx store.Tx, userID int64, amount decimal.Decimal, now time.Time) (orders.ReferralEarning, error) {
	if !amount.IsPositive() {
		return orders.ReferralEarning{}, fmt.Errorf("%w: bonus amount must be positive, got %s", orders.ErrInvalidInput, amount)
	}
	amount = amount.Round(2)
	c, err := tx.LockCustomer(ctx, userID)
	if err != nil {
		return orders.ReferralEarning{}, err
	}
	e := orders.ReferralEarning{
		ReferrerID:     userID,
		Amount:         amount,
		OriginalAmount: amount,
		CreatedAt:      now,
	}
	if e.ID, err = tx.InsertEarning(ctx, e); err != nil {
		return orders.ReferralEarning{}, err
	}
	c.BonusBalance = c.BonusBalance.Add(amount)
	c.UpdatedAt = now
	return e, tx.UpdateCustomer(ctx, c)
}
