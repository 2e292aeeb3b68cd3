// Package settings serves admin-adjustable values. Every read goes to the
// store so a change applies to the next operation without a restart.
package settings

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"strconv"
	"time"
)

const (
	KeyReservationTimeout = "reservation_timeout_minutes"
	KeyReferralPercent    = "referral_percent"
)

type Defaults struct {
	ReservationTimeout time.Duration
	ReferralPercent    decimal.Decimal
}

type Provider struct {
	Store    store.Store
	Defaults Defaults
}

func (p *Provider) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	var ok bool
	err := p.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		v, ok, err = tx.GetSetting(ctx, key)
		return err
	})
	return v, ok, err
}

func (p *Provider) ReservationTimeout(ctx context.Context) (time.Duration, error) {
	v, ok, err := p.get(ctx, KeyReservationTimeout)
	if err != nil || !ok {
		return p.Defaults.ReservationTimeout, err
	}
	return parseTimeout(v)
}

// ReferralPercent is a percentage, e.g. 5 means 5% of the order total.
func (p *Provider) ReferralPercent(ctx context.Context) (decimal.Decimal, error) {
	v, ok, err := p.get(ctx, KeyReferralPercent)
	if err != nil || !ok {
		return p.Defaults.ReferralPercent, err
	}
	return parsePercent(v)
}

// Set validates and stores a value.
func (p *Provider) Set(ctx context.Context, key, value string) error {
	var err error
	switch key {
	case KeyReservationTimeout:
		_, err = parseTimeout(value)
	case KeyReferralPercent:
		_, err = parsePercent(value)
	default:
		err = fmt.Errorf("%w: unknown setting %q", orders.ErrInvalidInput, key)
	}
	if err != nil {
		return err
	}
	return p.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.PutSetting(ctx, key, value)
	})
}

func parseTimeout(v string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number of minutes, got %q",
			orders.ErrInvalidInput, KeyReservationTimeout, v)
	}
	return time.Duration(n) * time.Minute, nil
}

func parsePercent(v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("%w: %s must be between 0 and 100, got %q",
			orders.ErrInvalidInput, KeyReferralPercent, v)
	}
	return d, nil
}
