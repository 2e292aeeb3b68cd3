package referral

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"time"
)

// Service runs the referral and code operations in their own transactions.
type Service struct {
	Store store.Store
	Log   *zap.Logger
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateUser registers a user, optionally referred by referrerID.
func (s *Service) CreateUser(ctx context.Context, id int64, referrerID *int64) (orders.User, error) {
	if id <= 0 {
		return orders.User{}, fmt.Errorf("%w: user id %d", orders.ErrInvalidInput, id)
	}
	if referrerID != nil && *referrerID == id {
		return orders.User{}, fmt.Errorf("%w: user %d cannot refer themselves", orders.ErrInvalidInput, id)
	}
	u := orders.User{ID: id, ReferralID: referrerID, RegisteredAt: s.now()}
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.CreateUser(ctx, u)
	})
	if err != nil {
		return orders.User{}, err
	}
	s.Log.Info("user registered", zap.Int64("user_id", id), zap.Int64p("referrer_id", referrerID))
	return u, nil
}

func (s *Service) Redeem(ctx context.Context, code string, userID int64) (orders.ReferenceCode, error) {
	var c orders.ReferenceCode
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = Redeem(ctx, tx, code, userID, s.now())
		return err
	})
	if err != nil {
		return orders.ReferenceCode{}, err
	}
	s.Log.Info("code redeemed", zap.String("code", c.Code), zap.Int64("user_id", userID), zap.Int("uses", c.CurrentUses))
	return c, nil
}

func (s *Service) CreateCode(ctx context.Context, in NewCode) (orders.ReferenceCode, error) {
	var c orders.ReferenceCode
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		c, err = Create(ctx, tx, in, s.now())
		return err
	})
	if err != nil {
		return orders.ReferenceCode{}, err
	}
	s.Log.Info("code created", zap.String("code", c.Code), zap.Int64("created_by", c.CreatedBy), zap.Bool("admin", c.IsAdminCode))
	return c, nil
}

func (s *Service) DeactivateCode(ctx context.Context, code string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return Deactivate(ctx, tx, code)
	})
}

// GrantBonus credits amount to userID on behalf of adminID.
func (s *Service) GrantBonus(ctx context.Context, adminID, userID int64, amount decimal.Decimal) (orders.ReferralEarning, error) {
	var e orders.ReferralEarning
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		e, err = Grant(ctx, tx, userID, amount, s.now())
		return err
	})
	if err != nil {
		return orders.ReferralEarning{}, err
	}
	s.Log.Info("bonus granted", zap.Int64("admin_id", adminID), zap.Int64("user_id", userID), zap.String("amount", e.Amount.StringFixed(2)))
	return e, nil
}

// Customer returns the user's aggregate, zero-valued if they never ordered.
func (s *Service) Customer(ctx context.Context, userID int64) (orders.CustomerInfo, error) {
	var c orders.CustomerInfo
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		c, err = tx.LockCustomer(ctx, userID)
		return err
	})
	return c, err
}

func (s *Service) Earnings(ctx context.Context, referrerID int64) ([]orders.ReferralEarning, error) {
	var out []orders.ReferralEarning
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUser(ctx, referrerID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListEarnings(ctx, referrerID)
		return err
	})
	return out, err
}
