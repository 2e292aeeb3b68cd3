package referral

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"strings"
	"time"
)

// Redeem consumes one use of code for userID. The code row is locked for the
// rest of the transaction and the unique (code, user) usage row rejects a
// second redemption by the same user.
func Redeem(ctx context.Context, tx store.Tx, code string, userID int64, now time.Time) (orders.ReferenceCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	c, err := tx.LockCode(ctx, code)
	if err != nil {
		return orders.ReferenceCode{}, err
	}
	if !c.IsActive {
		return orders.ReferenceCode{}, fmt.Errorf("%w: %q is inactive", orders.ErrCodeNotFound, code)
	}
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return orders.ReferenceCode{}, fmt.Errorf("%w: %q expired at %s", orders.ErrCodeExpired, code, c.ExpiresAt.UTC().Format(time.RFC3339))
	}
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return orders.ReferenceCode{}, err
	}
	if err := tx.InsertCodeUsage(ctx, orders.ReferenceCodeUsage{Code: c.Code, UsedBy: userID, UsedAt: now}); err != nil {
		return orders.ReferenceCode{}, err
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return orders.ReferenceCode{}, fmt.Errorf("%w: %q used %d of %d times", orders.ErrCodeExhausted, code, c.CurrentUses, *c.MaxUses)
	}
	c.CurrentUses++
	if err := tx.UpdateCode(ctx, c); err != nil {
		return orders.ReferenceCode{}, err
	}

	if !c.IsAdminCode && c.CreatedBy != userID && u.ReferralID == nil {
		if err := tx.SetReferrer(ctx, userID, c.CreatedBy); err != nil {
			return orders.ReferenceCode{}, err
		}
	}
	return c, nil
}

type NewCode struct {
	Code      string // generated when empty
	CreatedBy int64
	ExpiresAt *time.Time
	MaxUses   *int
	Note      string
	Admin     bool
}

func Create(ctx context.Context, tx store.Tx, in NewCode, now time.Time) (orders.ReferenceCode, error) {
	if in.MaxUses != nil && *in.MaxUses <= 0 {
		return orders.ReferenceCode{}, fmt.Errorf("%w: max uses must be positive", orders.ErrInvalidInput)
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return orders.ReferenceCode{}, fmt.Errorf("%w: expiry is in the past", orders.ErrInvalidInput)
	}
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		var err error
		if code, err = orders.NewReferenceCode(); err != nil {
			return orders.ReferenceCode{}, err
		}
	}
	if len(code) > orders.ReferenceCodeLength {
		return orders.ReferenceCode{}, fmt.Errorf("%w: code longer than %d characters", orders.ErrInvalidInput, orders.ReferenceCodeLength)
	}
	if _, err := tx.GetUser(ctx, in.CreatedBy); err != nil {
		return orders.ReferenceCode{}, err
	}
	c := orders.ReferenceCode{
		Code:        code,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		ExpiresAt:   in.ExpiresAt,
		MaxUses:     in.MaxUses,
		Note:        in.Note,
		IsActive:    true,
		IsAdminCode: in.Admin,
	}
	return c, tx.CreateCode(ctx, c)
}

func Deactivate(ctx context.Context, tx store.Tx, code string) error {
	c, err := tx.LockCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return err
	}
	c.IsActive = false
	return tx.UpdateCode(ctx, c)
}
