// Package llm provides the HTTP client for the downstream
// OpenAI-compatible inference server.
//
// The gateway uses it on two paths: the detector's classification call and
// the models-list passthrough. Chat-completion passthrough streams the raw
// body instead and lives in the gateway itself.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/scrubgate/scrubgate/pkg/api"
)

// Message is one chat message sent to the downstream model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client performs requests against a Chat Completions backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewClient creates a Client for the backend at baseURL. The timeout
// bounds each request end to end; the detector relies on it as its
// fail-closed backstop.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if model == "" {
		model = "local"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Model returns the model name sent with completion requests.
func (c *Client) Model() string {
	return c.model
}

// Complete performs a non-streaming chat completion and returns the
// assistant message content.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float64) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": temperature,
	})
	if err != nil {
		return "", api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", api.NewUpstreamError(fmt.Sprintf("backend request failed: %s", err.Error()))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return "", api.NewUpstreamError(fmt.Sprintf("backend returned %d: %s", httpResp.StatusCode, snippet))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return "", api.NewUpstreamError(fmt.Sprintf("failed to parse backend response: %s", err.Error()))
	}
	if len(parsed.Choices) == 0 {
		return "", api.NewUpstreamError("backend response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Models fetches the backend's model list verbatim so the chat UI can
// discover available models through the gateway.
func (c *Client) Models(ctx context.Context) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, api.NewUpstreamError(fmt.Sprintf("backend request failed: %s", err.Error()))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, api.NewUpstreamError(fmt.Sprintf("backend returned %d", httpResp.StatusCode))
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, api.NewUpstreamError(fmt.Sprintf("failed to read backend response: %s", err.Error()))
	}
	return json.RawMessage(body), nil
}
