package bus_test

import (
	"context"
	"testing"
	"time"

	"party-service/internal/service/bus"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type phasePayload struct {
	Phase string `json:"phase"`
	Day   int    `json:"day"`
}

func receive(t *testing.T, sub *bus.Subscription) bus.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		if !ok {
			t.Fatalf("subscription closed")
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return bus.Message{}
}

func exerciseBus(t *testing.T, b bus.Bus) {
	ctx := context.Background()
	broadcast := bus.SessionTopic("s1")
	private := bus.PlayerTopic("s1", "p1")

	sub, err := b.Subscribe(ctx, broadcast, private)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()

	msg, err := bus.NewMessage("phase_changed", "s1", phasePayload{Phase: "NIGHT", Day: 1})
	if err != nil {
		t.Fatalf("new message failed: %v", err)
	}
	if err := b.Publish(ctx, broadcast, msg); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	got := receive(t, sub)
	var payload phasePayload
	if err := got.Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Type != "phase_changed" || payload.Phase != "NIGHT" || payload.Day != 1 {
		t.Fatalf("unexpected message %+v %+v", got, payload)
	}

	role, _ := bus.NewMessage("role_assigned", "s1", map[string]string{"role": "Doctor"})
	if err := b.Publish(ctx, private, role); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if got := receive(t, sub); got.Type != "role_assigned" {
		t.Fatalf("expected private message, got %s", got.Type)
	}

	other, _ := bus.NewMessage("role_assigned", "s1", nil)
	if err := b.Publish(ctx, bus.PlayerTopic("s1", "p2"), other); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	select {
	case msg := <-sub.C():
		t.Fatalf("received another player's message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBus(t *testing.T) {
	exerciseBus(t, bus.NewLocalBus(8, zap.NewNop()))
}

func TestRedisBus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	exerciseBus(t, bus.NewRedisBus(rdb, 8, zap.NewNop()))
}

func TestLocalBusDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	b := bus.NewLocalBus(1, zap.NewNop())
	sub, err := b.Subscribe(ctx, "t")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = b.Publish(ctx, "t", bus.Message{Type: "tick"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if len(sub.C()) != 1 {
		t.Fatalf("expected one buffered message, got %d", len(sub.C()))
	}

	sub.Close()
	sub.Close()
	<-sub.C()
	if _, ok := <-sub.C(); ok {
		t.Fatalf("expected closed channel")
	}
	if err := b.Publish(ctx, "t", bus.Message{Type: "after"}); err != nil {
		t.Fatalf("publish after close failed: %v", err)
	}
}
