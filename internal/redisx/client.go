package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/redis/go-redis/v9"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// CachedStatus is the read-side view of an order kept by the projector.
type CachedStatus struct {
	OrderID       int64         `json:"order_id"`
	Code          string        `json:"code"`
	BuyerID       int64         `json:"buyer_id"`
	Status        orders.Status `json:"status"`
	ReservedUntil *time.Time    `json:"reserved_until,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// StatusCache holds order statuses and per-consumer event dedup markers.
type StatusCache struct {
	R *redis.Client
}

func (c *StatusCache) SetStatus(ctx context.Context, s CachedStatus) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, s.OrderID), b, TTLStatusCache).Err()
}

// Status reports ok=false on a cache miss.
func (c *StatusCache) Status(ctx context.Context, orderID int64) (CachedStatus, bool, error) {
	var s CachedStatus
	b, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, false, fmt.Errorf("decode cached status %d: %w", orderID, err)
	}
	return s, true, nil
}

// MarkSeen records eventID for consumer and reports whether it was new.
func (c *StatusCache) MarkSeen(ctx context.Context, consumer, eventID string) (bool, error) {
	return c.R.SetNX(ctx, fmt.Sprintf(KeyDedup, consumer, eventID), 1, TTLDedup).Result()
}

// Forget removes a dedup marker so the event can be processed again.
func (c *StatusCache) Forget(ctx context.Context, consumer, eventID string) error {
	return c.R.Del(ctx, fmt.Sprintf(KeyDedup, consumer, eventID)).Err()
}

func (c *StatusCache) SetInventory(ctx context.Context, st orders.InventoryStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyInventory, st.Product), b, TTLInventory).Err()
}

func (c *StatusCache) Ping(ctx context.Context) error {
	return c.R.Ping(ctx).Err()
}
