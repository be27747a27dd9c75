package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/debug"
	"github.com/scrubgate/scrubgate/pkg/observability"
)

// maxChatBodySize bounds the chat-completion request body. The prompt-size
// ceiling is enforced separately on the extracted user text.
const maxChatBodySize = 10 << 20 // 10 MB

// handleChatCompletions handles POST /v1/chat/completions.
func (a *Adapter) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteErrorResponse(w,
				api.NewTooLargeError(fmt.Sprintf("request body too large (max %d bytes)", maxChatBodySize)),
				http.StatusRequestEntityTooLarge)
			return
		}
		WriteErrorResponse(w, api.NewInvalidRequestError("body", "failed to read body"), http.StatusBadRequest)
		return
	}

	if !a.scrubbing.Load() {
		a.proxyChatCompletion(w, r, body)
		return
	}

	var req api.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest)
		return
	}

	a.interceptChatCompletion(w, r, &req)
}

// interceptChatCompletion runs the detect and scrub sequence and answers
// with a status envelope. Raw prompt text never reaches the downstream LLM
// on this path.
func (a *Adapter) interceptChatCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest) {
	ctx := r.Context()
	prompt := req.LastUserText()
	sessionID := api.NewSessionID()

	debug.Log("gateway", "intercepted prompt", "session_id", sessionID, "chars", len(prompt))

	if len(prompt) > a.cfg.PromptLimitBytes() {
		status := fmt.Sprintf("[ERROR] Content too large (%d KB). Max %d KB.",
			len(prompt)/1024, a.cfg.Scrub.PromptLimitKB)
		a.publishIntercept(ctx, &api.InterceptEvent{
			Prompt:  prompt,
			Status:  "Error: content too large",
			Warning: status,
		})
		observability.InterceptionsTotal.WithLabelValues("prompt", "oversize").Inc()
		a.respondStatus(w, req, status)
		return
	}

	a.publishIntercept(ctx, &api.InterceptEvent{Prompt: prompt, Status: "Processing…"})

	verdict := a.detector.Detect(ctx, sessionID, prompt)

	switch {
	case verdict.Failed():
		status := "[ERROR] Detection failed: " + verdict.Summary
		a.publishIntercept(ctx, &api.InterceptEvent{
			Prompt:    prompt,
			Status:    "Error: detection failed",
			Warning:   verdict.Summary,
			Detection: verdict,
		})
		observability.InterceptionsTotal.WithLabelValues("prompt", "error").Inc()
		a.respondStatus(w, req, status)

	case verdict.Clean():
		a.publishIntercept(ctx, &api.InterceptEvent{
			Prompt:    prompt,
			Sanitized: prompt,
			Status:    "🛡️ Clean — no sensitive data detected",
			Detection: verdict,
		})
		observability.InterceptionsTotal.WithLabelValues("prompt", "clean").Inc()
		a.respondStatus(w, req, "[CLEAN] No sensitive data detected.")

	case len(verdict.ItemTypes) == 0:
		warning := "Detection incomplete — content not scrubbed."
		a.publishIntercept(ctx, &api.InterceptEvent{
			Prompt:    prompt,
			Status:    "Warning: detection incomplete",
			Warning:   warning,
			Detection: verdict,
		})
		observability.InterceptionsTotal.WithLabelValues("prompt", "warning").Inc()
		a.respondStatus(w, req, "[WARNING] "+warning)

	default:
		a.scrubChatPrompt(w, r, req, prompt, verdict)
	}
}

// scrubChatPrompt scrubs the prompt through the tool channel. The merged
// pattern vocabulary is used regardless of the detected category: log data
// pasted into prompts routinely carries prompt-type items and vice versa.
func (a *Adapter) scrubChatPrompt(w http.ResponseWriter, r *http.Request, req *api.ChatCompletionRequest, prompt string, verdict *api.Verdict) {
	ctx := r.Context()

	result, err := a.scrubber.ScrubLogAsPrompt(ctx, prompt, api.AllItemTypes())
	if err != nil {
		a.logger.Error("scrub failed", "error", err)
		a.publishIntercept(ctx, &api.InterceptEvent{
			Prompt:    prompt,
			Status:    "Error: scrub failed",
			Warning:   err.Error(),
			Detection: verdict,
		})
		observability.InterceptionsTotal.WithLabelValues("prompt", "scrub_error").Inc()
		a.respondStatus(w, req, "[ERROR] Scrubbing failed: "+err.Error())
		return
	}

	for t, n := range result.Summary {
		observability.ItemsScrubbed.WithLabelValues(string(t)).Add(float64(n))
	}

	status := fmt.Sprintf("[SCRUBBED] %d items replaced", len(result.Replacements))
	if breakdown := summaryBreakdown(result.Summary); breakdown != "" {
		status += " (" + breakdown + ")"
	}

	a.publishIntercept(ctx, &api.InterceptEvent{
		Type:             api.EventPromptResult,
		Prompt:           prompt,
		Sanitized:        result.SanitizedText,
		Status:           status,
		Category:         verdict.Category,
		Detection:        verdict,
		ReplacementCount: len(result.Replacements),
		Summary:          result.Summary,
	})
	observability.InterceptionsTotal.WithLabelValues("prompt", "scrubbed").Inc()
	a.respondStatus(w, req, status)
}

// respondStatus writes the status envelope. Streaming requests get exactly
// one chunk frame followed by the DONE sentinel.
func (a *Adapter) respondStatus(w http.ResponseWriter, req *api.ChatCompletionRequest, content string) {
	if !req.Stream {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.StatusCompletion(req.Model, content))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	chunk, err := json.Marshal(api.StatusChunk(req.Model, content))
	if err != nil {
		WriteAPIError(w, api.NewServerError("failed to encode status chunk"))
		return
	}
	fmt.Fprintf(w, "data: %s\n\ndata: [DONE]\n\n", chunk)
	http.NewResponseController(w).Flush()
}

// proxyChatCompletion byte-forwards the request to the downstream LLM.
// Streaming responses are relayed chunk by chunk unmodified.
func (a *Adapter) proxyChatCompletion(w http.ResponseWriter, r *http.Request, body []byte) {
	url := strings.TrimRight(a.cfg.LLM.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		WriteAPIError(w, api.NewServerError("failed to create proxy request"))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := a.proxyClient.Do(req)
	if err != nil {
		WriteAPIError(w, api.NewUpstreamError("downstream LLM unreachable: "+err.Error()))
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)

	rc := http.NewResponseController(w)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				return
			}
			rc.Flush()
		}
		if readErr != nil {
			return
		}
	}
}

// handleModels handles GET /v1/models by passing the downstream list
// through, so the chat UI can discover available models.
func (a *Adapter) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.models.Models(r.Context())
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			WriteAPIError(w, apiErr)
		} else {
			WriteAPIError(w, api.NewUpstreamError(err.Error()))
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(models)
}

// summaryBreakdown renders a summary map as "type: n, type: n" in stable
// key order.
func summaryBreakdown(summary map[api.ItemType]int) string {
	if len(summary) == 0 {
		return ""
	}
	keys := make([]string, 0, len(summary))
	for t := range summary {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, summary[api.ItemType(k)]))
	}
	return strings.Join(parts, ", ")
}
