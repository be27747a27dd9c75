package api

import "encoding/json"

// ChatMessage is one message of an OpenAI-compatible conversation.
// Content is either a plain string or an array of typed parts; it is kept
// raw so passthrough forwarding never reshapes the caller's body.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Text returns the message content as plain text. String content is
// returned as-is; part arrays contribute their text parts concatenated.
func (m *ChatMessage) Text() string {
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return ""
	}
	var out string
	for _, p := range parts {
		if p.Type == "" || p.Type == "text" || p.Type == "input_text" {
			out += p.Text
		}
	}
	return out
}

// ChatCompletionRequest is the subset of the Chat Completions request the
// gateway inspects. Unknown fields pass through untouched on the proxy
// path because the raw body is forwarded, not this struct.
type ChatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// LastUserText returns the content of the last user-role message, or ""
// when the conversation has none.
func (r *ChatCompletionRequest) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Text()
		}
	}
	return ""
}

// ChatCompletionResponse is the non-streaming status envelope returned to
// the chat UI when scrubbing is enabled. The single choice carries a short
// status string instead of model output, so the UI treats the turn as
// complete without displaying anything from the downstream LLM.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatChoice is one completion choice.
type ChatChoice struct {
	Index        int             `json:"index"`
	Message      *AssistantTurn  `json:"message,omitempty"`
	Delta        *AssistantDelta `json:"delta,omitempty"`
	FinishReason string          `json:"finish_reason"`
}

// AssistantTurn is a complete assistant message.
type AssistantTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AssistantDelta is a streaming assistant fragment.
type AssistantDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChatUsage reports token counts. The status envelope always reports zero.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StatusCompletion builds the non-streaming status envelope for content.
func StatusCompletion(model, content string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:     "intercepted",
		Object: "chat.completion",
		Model:  model,
		Choices: []ChatChoice{{
			Message:      &AssistantTurn{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	}
}

// StatusChunk builds the single streaming chunk carrying the status string.
func StatusChunk(model, content string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:     "intercepted",
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []ChatChoice{{
			Delta:        &AssistantDelta{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	}
}
