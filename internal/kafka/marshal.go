package kafka

import (
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *Producer. Services take it so tests can run
// without a broker.
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func UnmarshalEnvelope(b []byte) (orders.Envelope, error) {
	var env orders.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes the event-specific payload.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// PublishEnvelope sends env keyed by key. A nil publisher is a no-op.
func PublishEnvelope(p Publisher, key []byte, env orders.Envelope) {
	if p == nil {
		return
	}
	p.Publish(key, MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(env.EventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(fmt.Sprint(env.EventVersion))},
	)
}
