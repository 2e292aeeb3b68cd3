package kafka

import (
	"context"
	"github.com/ariefcatur/shop-fulfillment/internal/retry"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Handler returns nil only when the message was processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *zap.Logger
	backoff retry.Policy
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit per message
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:       r,
		workers: workers,
		log:     log.With(zap.String("topic", topic), zap.String("group", group)),
		backoff: retry.Policy{Base: 200 * time.Millisecond, Max: 10 * time.Second},
	}
}

// Start fetches messages and hands them to a pool of workers until ctx ends.
// A failed message is retried until it succeeds; a worker never moves past
// it. Offsets are committed per message, so with more than one worker a
// message still failing at shutdown can be passed by a later commit on the
// same partition and is then not redelivered.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := c.process(ctx, h, m); err != nil {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Warn("commit offset", zap.Error(err), zap.Int64("offset", m.Offset))
				}
			}
		}()
	}
	defer wg.Wait()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			close(jobs)
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			close(jobs)
			return nil
		}
	}
}

// process runs h until it succeeds or ctx ends.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return nil
		}
		c.log.Warn("handle message", zap.Error(err), zap.Int("attempt", attempt),
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		t := time.NewTimer(c.backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
