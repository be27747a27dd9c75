package bus

import (
	"context"
	"testing"
	"time"
)

func recvOne(t *testing.T, sub Subscription) []byte {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

func TestMemoryPublishOrder(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, ChannelPromptIntercept)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	for _, msg := range []string{"one", "two", "three"} {
		if err := b.Publish(ctx, ChannelPromptIntercept, []byte(msg)); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		if got := string(recvOne(t, sub)); got != want {
			t.Errorf("received %q, want %q", got, want)
		}
	}
}

func TestMemoryChannelIsolation(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	prompts, _ := b.Subscribe(ctx, ChannelPromptIntercept)
	defer prompts.Close()
	activity, _ := b.Subscribe(ctx, ChannelAgentActivity)
	defer activity.Close()

	b.Publish(ctx, ChannelAgentActivity, []byte("tick"))

	if got := string(recvOne(t, activity)); got != "tick" {
		t.Errorf("activity received %q", got)
	}
	select {
	case msg := <-prompts.C():
		t.Errorf("prompt channel received %q from another channel", msg)
	default:
	}
}

func TestMemoryDropsOnFullBuffer(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, ChannelPromptIntercept)
	defer sub.Close()

	// Nobody draining: the buffer fills, then publishes drop without
	// blocking. A blocked publisher would hang the test.
	for i := 0; i < subscriberBuffer+10; i++ {
		if err := b.Publish(ctx, ChannelPromptIntercept, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	n := 0
	for {
		select {
		case <-sub.C():
			n++
		default:
			if n != subscriberBuffer {
				t.Errorf("buffered %d messages, want %d", n, subscriberBuffer)
			}
			return
		}
	}
}

func TestMemorySubscriberIndependence(t *testing.T) {
	b := NewMemory()
	defer b.Close()
	ctx := context.Background()

	a, _ := b.Subscribe(ctx, ChannelPromptIntercept)
	defer a.Close()
	c, _ := b.Subscribe(ctx, ChannelPromptIntercept)

	b.Publish(ctx, ChannelPromptIntercept, []byte("both"))
	if got := string(recvOne(t, a)); got != "both" {
		t.Errorf("a received %q", got)
	}
	if got := string(recvOne(t, c)); got != "both" {
		t.Errorf("c received %q", got)
	}

	// After c unsubscribes, only a receives.
	c.Close()
	b.Publish(ctx, ChannelPromptIntercept, []byte("only-a"))
	if got := string(recvOne(t, a)); got != "only-a" {
		t.Errorf("a received %q", got)
	}
}

func TestMemoryClose(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()

	sub, _ := b.Subscribe(ctx, ChannelPromptIntercept)
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	if _, ok := <-sub.C(); ok {
		t.Error("subscription channel not closed on bus close")
	}
	if err := b.Publish(ctx, ChannelPromptIntercept, []byte("x")); err == nil {
		t.Error("publish after close must fail")
	}
	if _, err := b.Subscribe(ctx, ChannelPromptIntercept); err == nil {
		t.Error("subscribe after close must fail")
	}
	// Idempotent.
	if err := b.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
