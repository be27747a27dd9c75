// Package monitor publishes agent activity events with correlated timings.
//
// States follow a _start / _complete / _error suffix convention. A _start
// records a wall-clock mark keyed by agent, session, and the state's base
// name; the matching _complete or _error attaches the elapsed time as
// duration_ms. Events are fire-and-forget: publish failures are logged and
// never gate request handling.
package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/scrubgate/scrubgate/pkg/bus"
	"github.com/scrubgate/scrubgate/pkg/observability"
)

// Event is the JSON document published on the agent_activity channel.
type Event struct {
	Agent     string         `json:"agent"`
	SessionID string         `json:"session_id"`
	Model     string         `json:"model,omitempty"`
	State     string         `json:"state"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Monitor tracks in-flight agent operations and publishes activity events.
// Safe for concurrent use.
type Monitor struct {
	bus    bus.Bus
	logger *slog.Logger

	mu     sync.Mutex
	starts map[string]time.Time
}

// New creates a Monitor publishing on the given bus.
func New(b bus.Bus, logger *slog.Logger) *Monitor {
	return &Monitor{
		bus:    b,
		logger: logger,
		starts: make(map[string]time.Time),
	}
}

// Publish records timing for the state transition and emits the event.
//
// The data map may be nil; duration_ms is added to a copy, never to the
// caller's map.
func (m *Monitor) Publish(ctx context.Context, agent, sessionID, model, state string, data map[string]any) {
	if m == nil {
		return
	}

	payload := make(map[string]any, len(data)+1)
	for k, v := range data {
		payload[k] = v
	}

	if d, ok := m.track(agent, sessionID, state); ok {
		payload["duration_ms"] = d.Milliseconds()
		if base, outcome, ok := splitState(state); ok && base == "detector" {
			observability.DetectorLatency.WithLabelValues(outcome).Observe(d.Seconds())
		}
	}

	evt := Event{
		Agent:     agent,
		SessionID: sessionID,
		Model:     model,
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      payload,
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		m.logger.Warn("encoding activity event", "error", err)
		return
	}
	if err := m.bus.Publish(ctx, bus.ChannelAgentActivity, raw); err != nil {
		m.logger.Warn("publishing activity event", "channel", bus.ChannelAgentActivity, "error", err)
	}
}

// track updates the timing state machine and returns the elapsed duration
// when the state closes an open interval.
func (m *Monitor) track(agent, sessionID, state string) (time.Duration, bool) {
	base, outcome, ok := splitState(state)
	if !ok {
		return 0, false
	}
	key := agent + ":" + sessionID + ":" + base

	m.mu.Lock()
	defer m.mu.Unlock()

	if outcome == "start" {
		m.starts[key] = time.Now()
		return 0, false
	}
	started, found := m.starts[key]
	if !found {
		return 0, false
	}
	delete(m.starts, key)
	return time.Since(started), true
}

// splitState splits "detector_complete" into ("detector", "complete").
func splitState(state string) (base, outcome string, ok bool) {
	for _, suffix := range []string{"_start", "_complete", "_error"} {
		if strings.HasSuffix(state, suffix) {
			return strings.TrimSuffix(state, suffix), suffix[1:], true
		}
	}
	return "", "", false
}
