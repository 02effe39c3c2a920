package ws

import (
	"context"
	"testing"
	"time"
)

func TestReplyWaitsForWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &client{ctx: ctx, cancel: cancel, replies: make(chan any, 1)}

	c.reply("first")
	done := make(chan struct{})
	go func() {
		c.reply("second")
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("reply returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	if got := <-c.replies; got != "first" {
		t.Fatalf("unexpected first reply %v", got)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reply still blocked after the writer drained")
	}
	if got := <-c.replies; got != "second" {
		t.Fatalf("second reply was dropped, got %v", got)
	}
}

func TestReplyReturnsWhenConnectionCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{ctx: ctx, cancel: cancel, replies: make(chan any)}

	done := make(chan struct{})
	go func() {
		c.reply("result")
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reply blocked after the connection closed")
	}
}
