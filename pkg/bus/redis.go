package bus

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/scrubgate/scrubgate/pkg/observability"
)

// Redis is a Bus backed by Redis Pub/Sub. It carries the same at-most-once
// contract as the in-process bus: Redis itself drops messages for absent
// or lagging subscribers.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a Redis-backed bus and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &Redis{client: client}, nil
}

// Publish sends payload on channel via Redis Pub/Sub.
func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe opens a Redis subscription on channel and pumps its messages
// into a Subscription.
func (b *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Force the subscription to be established before first publish.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	sub := &redisSub{ps: ps, channel: channel, ch: make(chan []byte, subscriberBuffer)}
	go sub.pump()
	return sub, nil
}

// Close closes the underlying Redis client.
func (b *Redis) Close() error {
	return b.client.Close()
}

type redisSub struct {
	ps      *redis.PubSub
	channel string
	ch      chan []byte
}

// pump moves messages from the Redis subscription into the buffered channel,
// dropping on a full buffer so a stalled reader never wedges the goroutine.
// Close on the PubSub ends the range and the pump exits.
func (s *redisSub) pump() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		select {
		case s.ch <- []byte(msg.Payload):
		default:
			observability.ObserverEventsDropped.WithLabelValues(s.channel).Inc()
		}
	}
}

func (s *redisSub) C() <-chan []byte {
	return s.ch
}

func (s *redisSub) Close() error {
	return s.ps.Close()
}
