package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"party-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus publishes over Redis pub/sub so that every process sees every session topic.
type RedisBus struct {
	rdb    *redis.Client
	buffer int
	log    *zap.Logger
}

func NewRedisBus(rdb *redis.Client, buffer int, log *zap.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, buffer: buffer, log: logger.Named(log, "bus")}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topics...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", topics, err)
	}

	done := make(chan struct{})
	sub := newSubscription(b.buffer, func() {
		close(done)
		_ = ps.Close()
	})

	go func() {
		defer close(sub.ch)
		in := ps.Channel()
		for {
			select {
			case <-done:
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					b.log.Warn("drop malformed bus message", zap.String("topic", raw.Channel), zap.Error(err))
					continue
				}
				select {
				case sub.ch <- msg:
				case <-done:
					return
				default:
					b.log.Warn("subscriber channel full",
						zap.String("topic", raw.Channel),
						zap.String("type", msg.Type),
					)
				}
			}
		}
	}()
	return sub, nil
}
