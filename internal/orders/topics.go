package orders

import "strconv"

const (
	TopicOrderStatus      = "order.status.changed"
	TopicInventoryChanged = "inventory.changed"
)

// All events of one order share a partition so their order is kept.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
