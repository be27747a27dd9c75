// Command mock-llm runs a deterministic Chat Completions server standing
// in for the inference backend during development and conformance testing.
// It answers detection requests with canned verdicts chosen by simple
// content heuristics, so the full interception flow can be exercised
// without a real model.
//
// Configuration:
//
//	MOCK_PORT - Listen port (default: 9090)
//
// Trigger phrases in the user message select failure modes:
//
//	"trigger-slow"      - sleeps 30s to provoke the detector timeout
//	"trigger-malformed" - returns a non-JSON body
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock llm starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock llm failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock llm shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

var logLinePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}`)

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":{"message":"invalid request","type":"invalid_request_error"}}`, http.StatusBadRequest)
		return
	}

	text := lastUserText(&req)
	text = strings.TrimPrefix(text, "/no_think\n")

	if strings.Contains(text, "trigger-slow") {
		time.Sleep(30 * time.Second)
	}
	if strings.Contains(text, "trigger-malformed") {
		writeCompletion(w, req.Model, "I think this content is sensitive but I cannot say why.")
		return
	}

	writeCompletion(w, req.Model, classify(text))
}

// classify returns the canned verdict JSON for the given text.
func classify(text string) string {
	switch {
	case strings.Contains(text, "whoami") || strings.Contains(text, "/home/") ||
		strings.Contains(text, "~/"):
		return verdict(true, "pii",
			"Terminal output reveals username and home directory path.",
			[]string{"terminal_user", "path"})
	case strings.Contains(text, "export ") && strings.Contains(text, "://"):
		return verdict(true, "credentials",
			"Environment variable contains database credentials.",
			[]string{"secret", "ip"})
	case logLinePattern.MatchString(text):
		return verdict(true, "log_file",
			"Server log contains usernames, IPs, endpoints, and timestamps.",
			[]string{"user", "endpoint", "ip", "timestamp"})
	case strings.Contains(text, "Bearer ") || strings.Contains(text, "api_key"):
		return verdict(true, "credentials",
			"Text contains an API token.",
			[]string{"bearer", "api_key"})
	case regexp.MustCompile(`\b[\w.-]+@[\w-]+\.[\w.-]+\b`).MatchString(text):
		return verdict(true, "pii", "Text contains an email address.", []string{"email"})
	default:
		return verdict(false, "clean", "No sensitive data detected.", []string{})
	}
}

func verdict(needs bool, category, summary string, itemTypes []string) string {
	v := map[string]any{
		"needs_sanitization": needs,
		"category":           category,
		"summary":            summary,
		"items_detected":     []string{},
		"item_types":         itemTypes,
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}

func writeCompletion(w http.ResponseWriter, model, content string) {
	if model == "" {
		model = "mock-model"
	}
	resp := map[string]any{
		"id":     "chatcmpl-mock",
		"object": "chat.completion",
		"model":  model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"object": "list",
		"data": []map[string]any{
			{"id": "mock-model", "object": "model", "owned_by": "scrubgate-mock"},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func lastUserText(req *chatRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		switch v := req.Messages[i].Content.(type) {
		case string:
			return v
		case []any:
			for _, part := range v {
				if m, ok := part.(map[string]any); ok {
					if t, ok := m["type"].(string); ok && (t == "text" || t == "input_text") {
						if text, ok := m["text"].(string); ok {
							return text
						}
					}
				}
			}
		}
	}
	return ""
}
