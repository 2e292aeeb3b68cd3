// Package app holds the wiring shared by the binaries.
package app

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/config"
	"github.com/ariefcatur/shop-fulfillment/internal/memstore"
	"github.com/ariefcatur/shop-fulfillment/internal/postgres"
	"github.com/ariefcatur/shop-fulfillment/internal/settings"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Backend struct {
	Store    store.Store
	Settings *settings.Provider
	Ping     func(context.Context) error
	Close    func()
	// Shared is false for a store that lives only in this process.
	Shared bool
}

// Open connects the configured store and migrates the schema.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger) (*Backend, error) {
	percent, err := decimal.NewFromString(cfg.ReferralPercent)
	if err != nil {
		return nil, fmt.Errorf("REFERRAL_PERCENT: %w", err)
	}
	b := &Backend{
		Ping:  func(context.Context) error { return nil },
		Close: func() {},
	}
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store, data is lost on exit")
		b.Store = memstore.New()
	default:
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		b.Store = &postgres.Store{DB: pool, Timeout: cfg.DBTimeout}
		b.Ping = pool.Ping
		b.Close = pool.Close
		b.Shared = true
	}
	b.Settings = &settings.Provider{
		Store: b.Store,
		Defaults: settings.Defaults{
			ReservationTimeout: cfg.ReservationTimeout,
			ReferralPercent:    percent,
		},
	}
	return b, nil
}
