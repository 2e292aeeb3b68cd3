package postgres

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/ariefcatur/shop-fulfillment/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"time"
)

const pgUniqueViolation = "23505"

// Store runs every unit of work in a read-committed transaction. Row locks
// come from SELECT ... FOR UPDATE in the Lock* methods.
type Store struct {
	DB      *pgxpool.Pool
	Timeout time.Duration // per transaction; 0 means no extra deadline
}

var _ store.Store = (*Store)(nil)

func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

func noRows(err error, what string, key any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %v", orders.ErrNotFound, what, key)
	}
	return err
}

func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ---- products ----

const productCols = `name, price, description, category, stock_quantity, reserved_quantity, created_at, updated_at`

func scanProduct(row pgx.Row) (orders.Product, error) {
	var p orders.Product
	err := row.Scan(&p.Name, &p.Price, &p.Description, &p.Category,
		&p.StockQuantity, &p.ReservedQuantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *pgTx) CreateProduct(ctx context.Context, p orders.Product) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO products(`+productCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.Name, p.Price, p.Description, p.Category, p.StockQuantity, p.ReservedQuantity, p.CreatedAt, p.UpdatedAt)
	if isUnique(err) {
		return fmt.Errorf("%w: product %q", orders.ErrAlreadyExists, p.Name)
	}
	return err
}

func (t *pgTx) GetProduct(ctx context.Context, name string) (orders.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE name=$1`, name))
	return p, noRows(err, "product", name)
}

func (t *pgTx) LockProduct(ctx context.Context, name string) (orders.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE name=$1 FOR UPDATE`, name))
	return p, noRows(err, "product", name)
}

func (t *pgTx) UpdateProductQuantities(ctx context.Context, p orders.Product) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock_quantity=$2, reserved_quantity=$3, updated_at=$4
		WHERE name=$1`, p.Name, p.StockQuantity, p.ReservedQuantity, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: product %q", orders.ErrNotFound, p.Name)
	}
	return nil
}

func (t *pgTx) ListProducts(ctx context.Context) ([]orders.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productCols+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- journal ----

const journalCols = `id, item_name, change_type, quantity_change, order_id, admin_id, ts, comment`

func (t *pgTx) AppendJournal(ctx context.Context, e orders.JournalEntry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO inventory_log(item_name, change_type, quantity_change, order_id, admin_id, ts, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		e.Product, string(e.ChangeType), e.QuantityDelta, e.OrderID, e.ActorID, e.Timestamp, e.Comment,
	).Scan(&id)
	return id, err
}

func (t *pgTx) queryJournal(ctx context.Context, where string, arg any) ([]orders.JournalEntry, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+journalCols+` FROM inventory_log WHERE `+where+` ORDER BY ts, id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.JournalEntry
	for rows.Next() {
		var e orders.JournalEntry
		var ct string
		if err := rows.Scan(&e.ID, &e.Product, &ct, &e.QuantityDelta, &e.OrderID, &e.ActorID, &e.Timestamp, &e.Comment); err != nil {
			return nil, err
		}
		e.ChangeType = orders.ChangeType(ct)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) ProductJournal(ctx context.Context, product string) ([]orders.JournalEntry, error) {
	return t.queryJournal(ctx, `item_name=$1`, product)
}

func (t *pgTx) OrderJournal(ctx context.Context, orderID int64) ([]orders.JournalEntry, error) {
	return t.queryJournal(ctx, `order_id=$1`, orderID)
}

// ---- orders ----

const orderCols = `id, order_code, buyer_id, total_price, bonus_applied, payment_method, delivery_address,
	phone_number, delivery_note, order_status, reserved_until, delivery_time, created_at, completed_at`

func (t *pgTx) CreateOrder(ctx context.Context, o *orders.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(order_code, buyer_id, total_price, bonus_applied, payment_method, delivery_address,
		                   phone_number, delivery_note, order_status, reserved_until, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		o.Code, o.BuyerID, o.TotalPrice, o.BonusApplied, o.PaymentMethod, o.DeliveryAddress,
		o.Phone, o.DeliveryNote, string(o.Status), o.ReservedUntil, o.CreatedAt,
	).Scan(&o.ID)
	if isUnique(err) {
		return fmt.Errorf("%w: order code %q", orders.ErrAlreadyExists, o.Code)
	}
	if err != nil {
		return err
	}

	// insert items
	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, item_name, price, quantity)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, i, it.Product, it.UnitPrice, it.Quantity,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) loadOrder(ctx context.Context, id int64, lock bool) (orders.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	var o orders.Order
	var status string
	var buyer *int64
	err := t.tx.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.Code, &buyer, &o.TotalPrice, &o.BonusApplied, &o.PaymentMethod, &o.DeliveryAddress,
		&o.Phone, &o.DeliveryNote, &status, &o.ReservedUntil, &o.DeliveryTime, &o.CreatedAt, &o.CompletedAt,
	)
	if err != nil {
		return orders.Order{}, noRows(err, "order", id)
	}
	o.Status = orders.Status(status)
	if buyer != nil {
		o.BuyerID = *buyer
	}

	rows, err := t.tx.Query(ctx, `SELECT item_name, price, quantity FROM order_items WHERE order_id=$1 ORDER BY position`, id)
	if err != nil {
		return orders.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.Product, &it.UnitPrice, &it.Quantity); err != nil {
			return orders.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (t *pgTx) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.loadOrder(ctx, id, false)
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return t.loadOrder(ctx, id, true)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o orders.Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET order_status=$2, reserved_until=$3, delivery_time=$4, bonus_applied=$5, completed_at=$6
		WHERE id=$1`,
		o.ID, string(o.Status), o.ReservedUntil, o.DeliveryTime, o.BonusApplied, o.CompletedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order %d", orders.ErrNotFound, o.ID)
	}
	return nil
}

func (t *pgTx) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_code=$1)`, code).Scan(&exists)
	return exists, err
}

func (t *pgTx) ExpiredReservations(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM orders
		WHERE order_status='reserved' AND reserved_until <= $1
		ORDER BY reserved_until, id
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ---- customers ----

func (t *pgTx) CreateUser(ctx context.Context, u orders.User) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO users(id, referral_id, registered_at) VALUES ($1,$2,$3)`,
		u.ID, u.ReferralID, u.RegisteredAt)
	if isUnique(err) {
		return fmt.Errorf("%w: user %d", orders.ErrAlreadyExists, u.ID)
	}
	return err
}

func (t *pgTx) GetUser(ctx context.Context, id int64) (orders.User, error) {
	var u orders.User
	err := t.tx.QueryRow(ctx, `SELECT id, referral_id, registered_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.ReferralID, &u.RegisteredAt)
	return u, noRows(err, "user", id)
}

func (t *pgTx) SetReferrer(ctx context.Context, userID, referrerID int64) error {
	ct, err := t.tx.Exec(ctx, `UPDATE users SET referral_id=$2 WHERE id=$1`, userID, referrerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: user %d", orders.ErrNotFound, userID)
	}
	return nil
}

func (t *pgTx) LockCustomer(ctx context.Context, userID int64) (orders.CustomerInfo, error) {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO customer_info(user_id) SELECT id FROM users WHERE id=$1
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return orders.CustomerInfo{}, err
	}
	var c orders.CustomerInfo
	err := t.tx.QueryRow(ctx, `
		SELECT user_id, total_spendings, completed_orders_count, bonus_balance, updated_at
		FROM customer_info WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&c.UserID, &c.TotalSpendings, &c.CompletedOrdersCount, &c.BonusBalance, &c.UpdatedAt)
	return c, noRows(err, "user", userID)
}

func (t *pgTx) UpdateCustomer(ctx context.Context, c orders.CustomerInfo) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE customer_info SET total_spendings=$2, completed_orders_count=$3, bonus_balance=$4, updated_at=$5
		WHERE user_id=$1`, c.UserID, c.TotalSpendings, c.CompletedOrdersCount, c.BonusBalance, c.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: customer %d", orders.ErrNotFound, c.UserID)
	}
	return nil
}

func (t *pgTx) InsertEarning(ctx context.Context, e orders.ReferralEarning) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO referral_earnings(referrer_id, referral_id, amount, original_amount, created_at)
		VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		e.ReferrerID, e.ReferralID, e.Amount, e.OriginalAmount, e.CreatedAt).Scan(&id)
	return id, err
}

func (t *pgTx) ListEarnings(ctx context.Context, referrerID int64) ([]orders.ReferralEarning, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, referrer_id, referral_id, amount, original_amount, created_at
		FROM referral_earnings WHERE referrer_id=$1 ORDER BY created_at, id`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.ReferralEarning
	for rows.Next() {
		var e orders.ReferralEarning
		if err := rows.Scan(&e.ID, &e.ReferrerID, &e.ReferralID, &e.Amount, &e.OriginalAmount, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- codes ----

func (t *pgTx) CreateCode(ctx context.Context, c orders.ReferenceCode) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO reference_codes(code, created_by, created_at, expires_at, max_uses, current_uses, note, is_active, is_admin_code)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.Code, c.CreatedBy, c.CreatedAt, c.ExpiresAt, c.MaxUses, c.CurrentUses, c.Note, c.IsActive, c.IsAdminCode)
	if isUnique(err) {
		return fmt.Errorf("%w: code %q", orders.ErrAlreadyExists, c.Code)
	}
	return err
}

func (t *pgTx) LockCode(ctx context.Context, code string) (orders.ReferenceCode, error) {
	var c orders.ReferenceCode
	err := t.tx.QueryRow(ctx, `
		SELECT code, created_by, created_at, expires_at, max_uses, current_uses, note, is_active, is_admin_code
		FROM reference_codes WHERE code=$1 FOR UPDATE`, code,
	).Scan(&c.Code, &c.CreatedBy, &c.CreatedAt, &c.ExpiresAt, &c.MaxUses, &c.CurrentUses, &c.Note, &c.IsActive, &c.IsAdminCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("%w: %q", orders.ErrCodeNotFound, code)
	}
	return c, err
}

func (t *pgTx) UpdateCode(ctx context.Context, c orders.ReferenceCode) error {
	ct, err := t.tx.Exec(ctx, `UPDATE reference_codes SET current_uses=$2, is_active=$3 WHERE code=$1`,
		c.Code, c.CurrentUses, c.IsActive)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: %q", orders.ErrCodeNotFound, c.Code)
	}
	return nil
}

func (t *pgTx) InsertCodeUsage(ctx context.Context, u orders.ReferenceCodeUsage) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO reference_code_usages(code, used_by, used_at) VALUES ($1,$2,$3)`,
		u.Code, u.UsedBy, u.UsedAt)
	if isUnique(err) {
		return fmt.Errorf("%w: %q by user %d", orders.ErrAlreadyUsed, u.Code, u.UsedBy)
	}
	return err
}

// ---- settings ----

func (t *pgTx) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := t.tx.QueryRow(ctx, `SELECT setting_value FROM settings WHERE setting_key=$1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (t *pgTx) PutSetting(ctx context.Context, key, value string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO settings(setting_key, setting_value, updated_at) VALUES ($1,$2,now())
		ON CONFLICT (setting_key) DO UPDATE SET setting_value=EXCLUDED.setting_value, updated_at=now()`,
		key, value)
	return err
}
