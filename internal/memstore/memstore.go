// Package memstore is an in-process store.Store. Transactions are serialised
// by one mutex and applied copy-on-commit, so a failed transaction leaves no
// trace. It backs the tests and STORE=memory runs.
package memstore

import (
	"context"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

type usageKey struct {
	code string
	user int64
}

type state struct {
	products  map[string]orders.Product
	journal   []orders.JournalEntry
	orders    map[int64]orders.Order
	users     map[int64]orders.User
	customers map[int64]orders.CustomerInfo
	earnings  []orders.ReferralEarning
	codes     map[string]orders.ReferenceCode
	usages    map[usageKey]orders.ReferenceCodeUsage
	settings  map[string]string

	nextJournalID int64
	nextOrderID   int64
	nextEarningID int64
}

func (s *state) clone() *state {
	c := *s
	c.products = maps.Clone(s.products)
	c.journal = slices.Clone(s.journal)
	c.orders = make(map[int64]orders.Order, len(s.orders))
	for id, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		c.orders[id] = o
	}
	c.users = maps.Clone(s.users)
	c.customers = maps.Clone(s.customers)
	c.earnings = slices.Clone(s.earnings)
	c.codes = maps.Clone(s.codes)
	c.usages = maps.Clone(s.usages)
	c.settings = maps.Clone(s.settings)
	return &c
}

type Store struct {
	mu  sync.Mutex
	cur *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{cur: &state{
		products:  map[string]orders.Product{},
		orders:    map[int64]orders.Order{},
		users:     map[int64]orders.User{},
		customers: map[int64]orders.CustomerInfo{},
		codes:     map[string]orders.ReferenceCode{},
		usages:    map[usageKey]orders.ReferenceCodeUsage{},
		settings:  map[string]string{},
	}}
}

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := &tx{st: s.cur.clone()}
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cur = work.st
	return nil
}

type tx struct{ st *state }

func notFound(what string, key any) error {
	return fmt.Errorf("%w: %s %v", orders.ErrNotFound, what, key)
}

// products

func (t *tx) CreateProduct(_ context.Context, p orders.Product) error {
	if _, ok := t.st.products[p.Name]; ok {
		return fmt.Errorf("%w: product %q", orders.ErrAlreadyExists, p.Name)
	}
	t.st.products[p.Name] = p
	return nil
}

func (t *tx) GetProduct(_ context.Context, name string) (orders.Product, error) {
	p, ok := t.st.products[name]
	if !ok {
		return orders.Product{}, notFound("product", name)
	}
	return p, nil
}

func (t *tx) LockProduct(ctx context.Context, name string) (orders.Product, error) {
	return t.GetProduct(ctx, name)
}

func (t *tx) UpdateProductQuantities(_ context.Context, p orders.Product) error {
	cur, ok := t.st.products[p.Name]
	if !ok {
		return notFound("product", p.Name)
	}
	cur.StockQuantity = p.StockQuantity
	cur.ReservedQuantity = p.ReservedQuantity
	cur.UpdatedAt = p.UpdatedAt
	t.st.products[p.Name] = cur
	return nil
}

func (t *tx) ListProducts(_ context.Context) ([]orders.Product, error) {
	out := make([]orders.Product, 0, len(t.st.products))
	for _, p := range t.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// journal

func (t *tx) AppendJournal(_ context.Context, e orders.JournalEntry) (int64, error) {
	t.st.nextJournalID++
	e.ID = t.st.nextJournalID
	t.st.journal = append(t.st.journal, e)
	return e.ID, nil
}

func (t *tx) ProductJournal(_ context.Context, product string) ([]orders.JournalEntry, error) {
	var out []orders.JournalEntry
	for _, e := range t.st.journal {
		if e.Product == product {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *tx) OrderJournal(_ context.Context, orderID int64) ([]orders.JournalEntry, error) {
	var out []orders.JournalEntry
	for _, e := range t.st.journal {
		if e.OrderID != nil && *e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

// orders

func (t *tx) CreateOrder(_ context.Context, o *orders.Order) error {
	for _, ex := range t.st.orders {
		if ex.Code == o.Code {
			return fmt.Errorf("%w: order code %q", orders.ErrAlreadyExists, o.Code)
		}
	}
	t.st.nextOrderID++
	o.ID = t.st.nextOrderID
	cp := *o
	cp.Items = slices.Clone(o.Items)
	t.st.orders[o.ID] = cp
	return nil
}

func (t *tx) GetOrder(_ context.Context, id int64) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, notFound("order", id)
	}
	o.Items = slices.Clone(o.Items)
	return o, nil
}

func (t *tx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.GetOrder(ctx, id)
}

func (t *tx) UpdateOrder(_ context.Context, o orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return notFound("order", o.ID)
	}
	cur.Status = o.Status
	cur.ReservedUntil = o.ReservedUntil
	cur.DeliveryTime = o.DeliveryTime
	cur.BonusApplied = o.BonusApplied
	cur.CompletedAt = o.CompletedAt
	t.st.orders[o.ID] = cur
	return nil
}

func (t *tx) OrderCodeExists(_ context.Context, code string) (bool, error) {
	for _, o := range t.st.orders {
		if o.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ExpiredReservations(_ context.Context, now time.Time, limit int) ([]int64, error) {
	var due []orders.Order
	for _, o := range t.st.orders {
		if o.Status == orders.StatusReserved && o.ReservedUntil != nil && !o.ReservedUntil.After(now) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].ReservedUntil.Equal(*due[j].ReservedUntil) {
			return due[i].ID < due[j].ID
		}
		return due[i].ReservedUntil.Before(*due[j].ReservedUntil)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]int64, 0, len(due))
	for _, o := range due {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

// customers

func (t *tx) CreateUser(_ context.Context, u orders.User) error {
	if _, ok := t.st.users[u.ID]; ok {
		return fmt.Errorf("%w: user %d", orders.ErrAlreadyExists, u.ID)
	}
	if u.ReferralID != nil {
		if _, ok := t.st.users[*u.ReferralID]; !ok {
			return notFound("referrer", *u.ReferralID)
		}
	}
	t.st.users[u.ID] = u
	return nil
}

func (t *tx) GetUser(_ context.Context, id int64) (orders.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return orders.User{}, notFound("user", id)
	}
	return u, nil
}

func (t *tx) SetReferrer(_ context.Context, userID, referrerID int64) error {
	u, ok := t.st.users[userID]
	if !ok {
		return notFound("user", userID)
	}
	u.ReferralID = &referrerID
	t.st.users[userID] = u
	return nil
}

func (t *tx) LockCustomer(_ context.Context, userID int64) (orders.CustomerInfo, error) {
	if c, ok := t.st.customers[userID]; ok {
		return c, nil
	}
	if _, ok := t.st.users[userID]; !ok {
		return orders.CustomerInfo{}, notFound("user", userID)
	}
	c := orders.CustomerInfo{UserID: userID}
	t.st.customers[userID] = c
	return c, nil
}

func (t *tx) UpdateCustomer(_ context.Context, c orders.CustomerInfo) error {
	if _, ok := t.st.customers[c.UserID]; !ok {
		return notFound("customer", c.UserID)
	}
	t.st.customers[c.UserID] = c
	return nil
}

func (t *tx) InsertEarning(_ context.Context, e orders.ReferralEarning) (int64, error) {
	t.st.nextEarningID++
	e.ID = t.st.nextEarningID
	t.st.earnings = append(t.st.earnings, e)
	return e.ID, nil
}

func (t *tx) ListEarnings(_ context.Context, referrerID int64) ([]orders.ReferralEarning, error) {
	var out []orders.ReferralEarning
	for _, e := range t.st.earnings {
		if e.ReferrerID == referrerID {
			out = append(out, e)
		}
	}
	return out, nil
}

// codes

func (t *tx) CreateCode(_ context.Context, c orders.ReferenceCode) error {
	if _, ok := t.st.codes[c.Code]; ok {
		return fmt.Errorf("%w: code %q", orders.ErrAlreadyExists, c.Code)
	}
	t.st.codes[c.Code] = c
	return nil
}

func (t *tx) LockCode(_ context.Context, code string) (orders.ReferenceCode, error) {
	c, ok := t.st.codes[code]
	if !ok {
		return orders.ReferenceCode{}, fmt.Errorf("%w: %q", orders.ErrCodeNotFound, code)
	}
	return c, nil
}

func (t *tx) UpdateCode(_ context.Context, c orders.ReferenceCode) error {
	if _, ok := t.st.codes[c.Code]; !ok {
		return fmt.Errorf("%w: %q", orders.ErrCodeNotFound, c.Code)
	}
	t.st.codes[c.Code] = c
	return nil
}

func (t *tx) InsertCodeUsage(_ context.Context, u orders.ReferenceCodeUsage) error {
	k := usageKey{code: u.Code, user: u.UsedBy}
	if _, ok := t.st.usages[k]; ok {
		return fmt.Errorf("%w: %q by user %d", orders.ErrAlreadyUsed, u.Code, u.UsedBy)
	}
	t.st.usages[k] = u
	return nil
}

// settings

func (t *tx) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := t.st.settings[key]
	return v, ok, nil
}

func (t *tx) PutSetting(_ context.Context, key, value string) error {
	t.st.settings[key] = value
	return nil
}
