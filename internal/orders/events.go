package orders

import (
	"encoding/json"
	"fmt"
	"github.com/google/uuid"
	"time"
)

const (
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockAdjusted      = "StockAdjusted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id or product name
	Payload       json.RawMessage `json:"payload"`
}

type OrderStatusChangedPayload struct {
	OrderID       int64      `json:"order_id"`
	OrderCode     string     `json:"order_code"`
	BuyerID       int64      `json:"buyer_id"`
	From          Status     `json:"from"`
	To            Status     `json:"to"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
	ChangedAt     time.Time  `json:"changed_at"`
}

type StockAdjustedPayload struct {
	Product  string     `json:"product"`
	Change   ChangeType `json:"change"`
	Delta    int        `json:"delta"`
	Stock    int        `json:"stock"`
	Reserved int        `json:"reserved"`
	ActorID  *int64     `json:"actor_id,omitempty"`
}

// NewEnvelope wraps payload into a v1 envelope with a fresh event id.
func NewEnvelope(eventType, producer, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}
