// Package api defines the wire types shared across the scrubgate gateway.
//
// This package provides the data types exchanged between the gateway, the
// detection agent, the scrub tool server, and connected observers: detection
// verdicts, the closed item-type vocabulary, scrub results, interception
// events, OpenAI-compatible chat-completion shapes, the Open WebUI file
// envelope, structured errors, and ID generation.
//
// The package performs no I/O. All types serialize to self-contained JSON
// documents; observers must tolerate unknown fields.
package api
