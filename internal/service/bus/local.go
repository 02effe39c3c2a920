package bus

import (
	"context"
	"sync"

	"party-service/pkg/logger"

	"go.uber.org/zap"
)

// LocalBus fans messages out to in-process subscribers. A subscriber whose
// buffer is full misses the message.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	buffer int
	log    *zap.Logger
}

func NewLocalBus(buffer int, log *zap.Logger) *LocalBus {
	return &LocalBus{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		log:    logger.Named(log, "bus"),
	}
}

func (b *LocalBus) Publish(_ context.Context, topic string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
			b.log.Warn("subscriber channel full",
				zap.String("topic", topic),
				zap.String("type", msg.Type),
			)
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, topics ...string) (*Subscription, error) {
	var sub *Subscription
	sub = newSubscription(b.buffer, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, topic := range topics {
			delete(b.subs[topic], sub)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		}
		close(sub.ch)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		set, ok := b.subs[topic]
		if !ok {
			set = make(map[*Subscription]struct{})
			b.subs[topic] = set
		}
		set[sub] = struct{}{}
	}
	return sub, nil
}
