// Package store defines the transactional unit of work the engine runs on.
// Lock* methods take a row lock that is held until the transaction ends, so
// callers that read-check-write must go through them.
package store

import (
	"context"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"time"
)

type Store interface {
	// WithTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

type Tx interface {
	Products
	Journal
	Orders
	Customers
	Codes
	Settings
}

type Products interface {
	CreateProduct(ctx context.Context, p orders.Product) error
	GetProduct(ctx context.Context, name string) (orders.Product, error)
	LockProduct(ctx context.Context, name string) (orders.Product, error)
	UpdateProductQuantities(ctx context.Context, p orders.Product) error
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type Journal interface {
	AppendJournal(ctx context.Context, e orders.JournalEntry) (int64, error)
	// ProductJournal returns entries oldest first.
	ProductJournal(ctx context.Context, product string) ([]orders.JournalEntry, error)
	OrderJournal(ctx context.Context, orderID int64) ([]orders.JournalEntry, error)
}

type Orders interface {
	// CreateOrder inserts the order and its items and sets o.ID.
	CreateOrder(ctx context.Context, o *orders.Order) error
	GetOrder(ctx context.Context, id int64) (orders.Order, error)
	LockOrder(ctx context.Context, id int64) (orders.Order, error)
	// UpdateOrder persists the mutable columns: status, reserved_until,
	// delivery_time, bonus_applied, completed_at.
	UpdateOrder(ctx context.Context, o orders.Order) error
	OrderCodeExists(ctx context.Context, code string) (bool, error)
	// ExpiredReservations lists reserved orders whose deadline is <= now,
	// oldest deadline first.
	ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]int64, error)
}

type Customers interface {
	CreateUser(ctx context.Context, u orders.User) error
	GetUser(ctx context.Context, id int64) (orders.User, error)
	SetReferrer(ctx context.Context, userID, referrerID int64) error
	// LockCustomer returns the aggregate row, creating a zero row if missing.
	LockCustomer(ctx context.Context, userID int64) (orders.CustomerInfo, error)
	UpdateCustomer(ctx context.Context, c orders.CustomerInfo) error
	InsertEarning(ctx context.Context, e orders.ReferralEarning) (int64, error)
	ListEarnings(ctx context.Context, referrerID int64) ([]orders.ReferralEarning, error)
}

type Codes interface {
	CreateCode(ctx context.Context, c orders.ReferenceCode) error
	LockCode(ctx context.Context, code string) (orders.ReferenceCode, error)
	UpdateCode(ctx context.Context, c orders.ReferenceCode) error
	// InsertCodeUsage fails with orders.ErrAlreadyUsed on a duplicate (code, user).
	InsertCodeUsage(ctx context.Context, u orders.ReferenceCodeUsage) error
}

type Settings interface {
	// GetSetting reports ok=false when the key was never set.
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	PutSetting(ctx context.Context, key, value string) error
}
