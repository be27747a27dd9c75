package toolserver

import (
	"encoding/json"
	"fmt"
)

// protocolVersion is the MCP protocol revision sent during the handshake.
const protocolVersion = "2024-11-05"

// rpcRequest is an outbound JSON-RPC 2.0 request frame.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcNotification is an outbound frame without an id; no response follows.
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is an inbound JSON-RPC 2.0 response frame.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("tool error %d: %s", e.Code, e.Message)
}

// toolCallParams is the params shape for a tools/call request.
type toolCallParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// toolCallResult is the MCP result envelope for a tool call. The tool's
// actual return value is a JSON document inside the first text content block.
type toolCallResult struct {
	Content []toolContent `json:"content"`
	IsError bool          `json:"isError"`
}

type toolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// unwrapToolResult extracts the inner JSON document from an MCP tool call
// result. Results with no text content are returned as-is so callers can
// decide what to do with them.
func unwrapToolResult(raw json.RawMessage) (json.RawMessage, error) {
	var res toolCallResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("malformed tool result: %w", err)
	}
	if res.IsError {
		if len(res.Content) > 0 && res.Content[0].Type == "text" {
			return nil, fmt.Errorf("tool failed: %s", res.Content[0].Text)
		}
		return nil, fmt.Errorf("tool failed")
	}
	for _, c := range res.Content {
		if c.Type == "text" {
			return json.RawMessage(c.Text), nil
		}
	}
	return raw, nil
}
