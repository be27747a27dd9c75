// Package toolserver manages the long-lived scrub tool child process and
// the framed JSON-RPC 2.0 channel over its standard streams.
//
// The channel is a single shared instance whose internal mutex serializes
// calls: at most one request is in flight, and response frames are
// order-coupled to monotonically increasing request ids. The child is
// (re)spawned lazily, the MCP handshake is replayed after every spawn, and
// recovery is built in: a broken pipe respawns and retries the call once,
// a timed-out call hard-kills the child so no late response can corrupt
// the next call's read, and a response-id mismatch is treated as fatal.
package toolserver
