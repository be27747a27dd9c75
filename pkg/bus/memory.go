package bus

import (
	"context"
	"errors"
	"sync"

	"github.com/scrubgate/scrubgate/pkg/observability"
)

// subscriberBuffer is the per-subscriber queue depth. Observer events are
// advisory; when a subscriber falls this far behind, messages are dropped
// for it rather than stalling request handling.
const subscriberBuffer = 64

// Memory is an in-process Bus backed by buffered channels.
// Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

// NewMemory creates an in-process bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*memorySub]struct{})}
}

// Publish delivers payload to every subscriber of channel, dropping it for
// subscribers whose buffers are full.
func (b *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New("bus is closed")
	}

	for sub := range b.subs[channel] {
		select {
		case sub.ch <- payload:
		default:
			observability.ObserverEventsDropped.WithLabelValues(channel).Inc()
		}
	}
	return nil
}

// Subscribe registers a subscriber on channel.
func (b *Memory) Subscribe(_ context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("bus is closed")
	}

	sub := &memorySub{
		bus:     b,
		channel: channel,
		ch:      make(chan []byte, subscriberBuffer),
	}
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*memorySub]struct{})
	}
	b.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Close shuts down the bus and closes all subscriptions.
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			close(sub.ch)
		}
	}
	b.subs = nil
	return nil
}

type memorySub struct {
	bus     *Memory
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *memorySub) C() <-chan []byte {
	return s.ch
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if s.bus.closed {
			return
		}
		delete(s.bus.subs[s.channel], s)
		close(s.ch)
	})
	return nil
}
