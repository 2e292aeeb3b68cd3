package redisx

import "time"

const (
	// order_status:{order_id} -> JSON CachedStatus
	KeyOrderStatus = "order_status:%d"

	// dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// inventory:{product} -> JSON InventoryStatus
	KeyInventory = "inventory:%s"
)

var (
	TTLStatusCache = 30 * time.Minute
	TTLInventory   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
