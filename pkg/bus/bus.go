// Package bus provides the publish/subscribe fabric carrying interception
// events to connected observers.
//
// Delivery is best-effort, at-most-once: publishers never block on slow
// subscribers beyond a small buffer, and events dropped on overflow are
// counted, not retried. Within one subscriber, messages arrive in publish
// order; no ordering is guaranteed between subscribers.
//
// Two backends implement the interface: an in-process one (the default, so
// a single binary needs no external services) and a Redis Pub/Sub one for
// multi-process deployments.
package bus

import "context"

// Channel names used by the gateway.
const (
	ChannelPromptIntercept = "prompt_intercept"
	ChannelAgentActivity   = "agent_activity"
	ChannelDebugTraces     = "debug_traces"
)

// Bus is a named-channel publish/subscribe abstraction.
type Bus interface {
	// Publish delivers payload to current subscribers of channel.
	// Fire-and-forget: a full subscriber buffer drops the message for
	// that subscriber rather than blocking the publisher.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers a new subscriber on channel. Closing the
	// subscription unsubscribes.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Close releases the bus and all subscriptions.
	Close() error
}

// Subscription is one subscriber's view of a channel.
type Subscription interface {
	// C yields one payload per publish, in publish order. The channel is
	// closed when the subscription is closed or the bus shuts down.
	C() <-chan []byte

	// Close unsubscribes and closes C.
	Close() error
}
