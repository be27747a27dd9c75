// Package gateway serves the interception API over HTTP.
//
// The adapter sits between an OpenAI-compatible chat UI and the downstream
// inference server. With scrubbing enabled, chat completions and file
// uploads are intercepted: content is classified, sensitive values are
// replaced with placeholders, observers are notified on the bus, and the
// caller receives a short status envelope instead of model output. With
// scrubbing disabled, requests are proxied through unmodified.
package gateway
