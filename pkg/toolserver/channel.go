package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/debug"
	"github.com/scrubgate/scrubgate/pkg/observability"
)

// State describes the channel's lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateInitializing
	StateReady
	StateBroken
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

var (
	// ErrTimeout is returned when the child does not answer within the
	// per-call deadline. The child has been killed by the time this is
	// returned, so a late response can never collide with the next call.
	ErrTimeout = errors.New("tool call timed out")

	// ErrIDMismatch is returned when a response frame carries an id other
	// than the one just sent. The frame stream is out of sync and cannot be
	// recovered, so the child is killed and the channel marked broken.
	ErrIDMismatch = errors.New("tool response id mismatch")
)

// Channel is the serialized JSON-RPC channel to the scrub tool child.
// All methods are safe for concurrent use; calls are processed one at a
// time in arrival order.
type Channel struct {
	command []string
	timeout time.Duration
	spawn   spawnFunc
	logger  *slog.Logger

	mu    sync.Mutex
	proc  childProcess
	state State
	reqID int64
}

// Option configures a Channel.
type Option func(*Channel)

// WithSpawner overrides how the child process is created. Used by tests to
// wire an in-process fake over pipes.
func WithSpawner(spawn spawnFunc) Option {
	return func(c *Channel) { c.spawn = spawn }
}

// WithTimeout overrides the per-call response deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// NewChannel creates a channel for the given child command. The child is
// not spawned until the first call.
func NewChannel(command []string, logger *slog.Logger, opts ...Option) *Channel {
	c := &Channel{
		command: command,
		timeout: 30 * time.Second,
		logger:  logger,
		state:   StateNotStarted,
	}
	c.spawn = func() (childProcess, error) { return spawnExec(c.command) }
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Call invokes a tool on the child via MCP tools/call and returns the
// tool's JSON result. The child is spawned and handshaken on demand; a
// write failure triggers one respawn-and-retry.
func (c *Channel) Call(ctx context.Context, tool string, args any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStartedLocked(ctx); err != nil {
		return nil, err
	}

	raw, err := c.callLocked(ctx, tool, args)
	if err != nil && isRestartable(err) && ctx.Err() == nil {
		c.logger.Warn("tool channel write failed, respawning", "tool", tool, "error", err)
		c.killLocked("broken_pipe")
		if err := c.ensureStartedLocked(ctx); err != nil {
			return nil, err
		}
		raw, err = c.callLocked(ctx, tool, args)
	}
	if err != nil {
		return nil, err
	}
	return unwrapToolResult(raw)
}

// ScrubPrompt scrubs chat prompt text with the given item types.
func (c *Channel) ScrubPrompt(ctx context.Context, text string, itemTypes []api.ItemType) (*api.ScrubResult, error) {
	raw, err := c.Call(ctx, "scrub_prompt", map[string]any{
		"text":       text,
		"item_types": itemTypes,
	})
	if err != nil {
		return nil, err
	}
	var res api.ScrubResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding scrub_prompt result: %w", err)
	}
	return &res, nil
}

// ScrubLogAsPrompt scrubs log-like text pasted into a chat with the
// merged pattern vocabulary.
func (c *Channel) ScrubLogAsPrompt(ctx context.Context, text string, itemTypes []api.ItemType) (*api.ScrubResult, error) {
	raw, err := c.Call(ctx, "scrub_log_as_prompt", map[string]any{
		"text":       text,
		"item_types": itemTypes,
	})
	if err != nil {
		return nil, err
	}
	var res api.ScrubResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding scrub_log_as_prompt result: %w", err)
	}
	return &res, nil
}

// ScrubLogAsFile scrubs a staged file line by line. Both paths are
// sandbox-relative names resolved inside the tool.
func (c *Channel) ScrubLogAsFile(ctx context.Context, inputPath, outputPath string, itemTypes []api.ItemType) (*api.FileScrubResult, error) {
	raw, err := c.Call(ctx, "scrub_log_as_file", map[string]any{
		"input_path":  inputPath,
		"output_path": outputPath,
		"item_types":  itemTypes,
	})
	if err != nil {
		return nil, err
	}
	var res api.FileScrubResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decoding scrub_log_as_file result: %w", err)
	}
	return &res, nil
}

// Close terminates the child process if one is running.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proc != nil {
		c.proc.Kill()
		c.proc = nil
	}
	c.state = StateNotStarted
}

// ensureStartedLocked spawns the child and replays the MCP handshake when
// no live child exists. Caller holds c.mu.
func (c *Channel) ensureStartedLocked(ctx context.Context) error {
	if c.proc != nil && !c.proc.Exited() {
		return nil
	}
	if c.proc != nil {
		// The child died on its own since the last call.
		c.proc.Kill()
		c.proc = nil
		observability.ToolRestartsTotal.WithLabelValues("crash").Inc()
	}

	c.state = StateInitializing
	c.logger.Info("spawning scrub tool child", "command", c.command)

	proc, err := c.spawn()
	if err != nil {
		c.state = StateBroken
		return fmt.Errorf("spawning tool child: %w", err)
	}
	c.proc = proc

	if err := c.handshakeLocked(ctx); err != nil {
		c.killLocked("handshake")
		c.state = StateBroken
		return fmt.Errorf("tool handshake: %w", err)
	}
	c.state = StateReady
	return nil
}

// handshakeLocked performs initialize + notifications/initialized.
func (c *Channel) handshakeLocked(ctx context.Context) error {
	raw, err := c.roundTripLocked(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "scrubgate",
			"version": "1.0",
		},
	})
	if err != nil {
		return err
	}
	debug.Trace("toolserver", "initialize result", "result", debug.Truncate(string(raw), 512))

	note := rpcNotification{JSONRPC: "2.0", Method: "notifications/initialized"}
	frame, err := json.Marshal(note)
	if err != nil {
		return err
	}
	return c.proc.WriteLine(frame)
}

// callLocked performs one tools/call round trip. Caller holds c.mu.
func (c *Channel) callLocked(ctx context.Context, tool string, args any) (json.RawMessage, error) {
	debug.Log("toolserver", "tool call", "tool", tool, "state", c.state.String())
	return c.roundTripLocked(ctx, "tools/call", toolCallParams{Name: tool, Arguments: args})
}

// roundTripLocked sends one request and reads exactly one response,
// enforcing the id discipline and the read deadline. Caller holds c.mu.
func (c *Channel) roundTripLocked(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.reqID++
	id := c.reqID

	frame, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	if err := c.proc.WriteLine(frame); err != nil {
		return nil, &writeError{err}
	}

	line, err := c.readLineLocked(ctx)
	if err != nil {
		return nil, err
	}

	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("malformed response frame: %w", err)
	}
	if resp.ID != id {
		c.logger.Error("tool response id mismatch, killing child", "want", id, "got", resp.ID)
		c.killLocked("id_mismatch")
		c.state = StateBroken
		return nil, fmt.Errorf("%w: want %d, got %d", ErrIDMismatch, id, resp.ID)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

// readLineLocked reads one frame with the per-call deadline. On timeout or
// cancellation the child is hard-killed before returning, which guarantees
// its late response can never be read by a later call.
func (c *Channel) readLineLocked(ctx context.Context) ([]byte, error) {
	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	proc := c.proc
	go func() {
		line, err := proc.ReadLine()
		ch <- readResult{line, err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, &writeError{fmt.Errorf("reading response: %w", res.err)}
		}
		return res.line, nil
	case <-timer.C:
		c.logger.Error("tool call timed out, killing child", "timeout", c.timeout)
		c.killLocked("timeout")
		return nil, ErrTimeout
	case <-ctx.Done():
		c.logger.Warn("tool call canceled, killing child", "error", ctx.Err())
		c.killLocked("canceled")
		return nil, ctx.Err()
	}
}

// killLocked terminates the current child and counts the restart cause.
// Caller holds c.mu.
func (c *Channel) killLocked(cause string) {
	if c.proc != nil {
		c.proc.Kill()
		c.proc = nil
	}
	observability.ToolRestartsTotal.WithLabelValues(cause).Inc()
}

// writeError marks faults where the child is gone but the request never
// reached it, so a single respawn-and-retry is safe.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

func isRestartable(err error) bool {
	var we *writeError
	return errors.As(err, &we)
}
