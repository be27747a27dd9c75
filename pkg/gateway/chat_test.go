package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/config"
)

func TestChatCleanPrompt(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, envelope := g.postChat(t, "what is the capital of France?", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if envelope.Object != "chat.completion" {
		t.Errorf("Object = %q", envelope.Object)
	}
	if got := statusContent(t, envelope); got != "[CLEAN] No sensitive data detected." {
		t.Errorf("content = %q", got)
	}

	processing := g.nextEvent(t)
	if processing.Status != "Processing…" {
		t.Errorf("first event status = %q", processing.Status)
	}
	done := g.nextEvent(t)
	if done.Sanitized != done.Prompt || done.Prompt != "what is the capital of France?" {
		t.Errorf("clean event = %+v", done)
	}
	if !strings.Contains(done.Status, "Clean") {
		t.Errorf("clean event status = %q", done.Status)
	}
}

func TestChatScrubbedPrompt(t *testing.T) {
	g := newTestGateway(t, nil)
	g.detector.verdict = &api.Verdict{
		NeedsSanitization: true,
		Category:          api.CategoryPII,
		Summary:           "Email address found.",
		ItemsDetected:     []string{"a@b.com"},
		ItemTypes:         []api.ItemType{api.ItemEmail},
	}
	g.scrubber.promptResult = &api.ScrubResult{
		SanitizedText: "mail [EMAIL_1]",
		Replacements:  []api.Replacement{{Placeholder: "[EMAIL_1]", ItemType: api.ItemEmail}},
		Summary:       map[api.ItemType]int{api.ItemEmail: 1},
	}

	_, envelope := g.postChat(t, "mail a@b.com", false)
	if got := statusContent(t, envelope); got != "[SCRUBBED] 1 items replaced (email: 1)" {
		t.Errorf("content = %q", got)
	}

	// The scrub always runs against the full vocabulary so items outside
	// the detected category are still caught.
	g.scrubber.mu.Lock()
	gotTypes := len(g.scrubber.gotItemTypes)
	g.scrubber.mu.Unlock()
	if gotTypes != len(api.AllItemTypes()) {
		t.Errorf("scrub item types = %d, want full vocabulary (%d)", gotTypes, len(api.AllItemTypes()))
	}

	g.nextEvent(t) // Processing…
	result := g.nextEvent(t)
	if result.Type != api.EventPromptResult {
		t.Errorf("event type = %q", result.Type)
	}
	if result.Sanitized != "mail [EMAIL_1]" || result.ReplacementCount != 1 {
		t.Errorf("result event = %+v", result)
	}
	if result.Category != api.CategoryPII || result.Summary[api.ItemEmail] != 1 {
		t.Errorf("result event = %+v", result)
	}
}

func TestChatDetectionFailure(t *testing.T) {
	g := newTestGateway(t, nil)
	g.detector.verdict = api.ErrorVerdict("The LLM took too long to respond.")

	resp, envelope := g.postChat(t, "secret stuff", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, blocked turns still answer 200", resp.StatusCode)
	}
	if got := statusContent(t, envelope); !strings.HasPrefix(got, "[ERROR] Detection failed: ") {
		t.Errorf("content = %q", got)
	}

	g.nextEvent(t) // Processing…
	evt := g.nextEvent(t)
	if evt.Warning != "The LLM took too long to respond." {
		t.Errorf("event warning = %q", evt.Warning)
	}
	// The raw prompt must never be presented as sanitized output.
	if evt.Sanitized != "" {
		t.Errorf("failed detection leaked sanitized = %q", evt.Sanitized)
	}
}

func TestChatOversizePrompt(t *testing.T) {
	g := newTestGateway(t, func(cfg *config.Config) {
		cfg.Scrub.PromptLimitKB = 1
	})

	prompt := strings.Repeat("x", 2048)
	_, envelope := g.postChat(t, prompt, false)
	if got := statusContent(t, envelope); got != "[ERROR] Content too large (2 KB). Max 1 KB." {
		t.Errorf("content = %q", got)
	}
	if g.detector.callCount() != 0 {
		t.Error("oversize prompt must not reach the detector")
	}

	evt := g.nextEvent(t)
	if evt.Status != "Error: content too large" {
		t.Errorf("event status = %q", evt.Status)
	}
}

func TestChatDetectionIncomplete(t *testing.T) {
	g := newTestGateway(t, nil)
	g.detector.verdict = &api.Verdict{
		NeedsSanitization: true,
		Category:          api.CategoryPII,
		Summary:           "Something sensitive.",
		ItemsDetected:     []string{},
		ItemTypes:         []api.ItemType{},
	}

	_, envelope := g.postChat(t, "vague prompt", false)
	if got := statusContent(t, envelope); got != "[WARNING] Detection incomplete — content not scrubbed." {
		t.Errorf("content = %q", got)
	}
}

func TestChatScrubFailure(t *testing.T) {
	g := newTestGateway(t, nil)
	g.detector.verdict = &api.Verdict{
		NeedsSanitization: true,
		Category:          api.CategoryCredentials,
		Summary:           "API key.",
		ItemTypes:         []api.ItemType{api.ItemAPIKey},
	}
	g.scrubber.promptErr = api.NewServerError("tool call timed out")

	_, envelope := g.postChat(t, "sk-something", false)
	if got := statusContent(t, envelope); !strings.HasPrefix(got, "[ERROR] Scrubbing failed: ") {
		t.Errorf("content = %q", got)
	}
}

func TestChatStreamingSingleChunk(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, _ := g.postChat(t, "hello", true)
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	frames := strings.Split(strings.TrimSuffix(string(body), "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want chunk + DONE:\n%s", len(frames), body)
	}
	if frames[1] != "data: [DONE]" {
		t.Errorf("sentinel = %q", frames[1])
	}

	var chunk api.ChatCompletionResponse
	if err := json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &chunk); err != nil {
		t.Fatalf("decoding chunk: %v", err)
	}
	if chunk.Object != "chat.completion.chunk" {
		t.Errorf("chunk Object = %q", chunk.Object)
	}
	if chunk.Choices[0].Delta == nil || chunk.Choices[0].Delta.Content != "[CLEAN] No sensitive data detected." {
		t.Errorf("chunk = %+v", chunk.Choices)
	}
}

func TestChatInvalidJSON(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, err := http.Post(g.server.URL+"/v1/chat/completions", "application/json",
		strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if apiErr := decodeError(t, resp); apiErr.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q", apiErr.Type)
	}
}

func TestChatPassthroughProxy(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("downstream path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chatcmpl-real","object":"chat.completion"}`))
	}))
	defer downstream.Close()

	g := newTestGateway(t, func(cfg *config.Config) {
		cfg.LLM.BaseURL = downstream.URL
	})
	g.adapter.SetScrubbing(false)

	body := []byte(`{"model":"m1","messages":[{"role":"user","content":"raw secret"}],"custom_field":7}`)
	req, _ := http.NewRequest(http.MethodPost, g.server.URL+"/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer user-key")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	relayed, _ := io.ReadAll(resp.Body)
	if string(relayed) != `{"id":"chatcmpl-real","object":"chat.completion"}` {
		t.Errorf("relayed body = %s", relayed)
	}
	// The body passes through byte for byte, unknown fields included.
	if !bytes.Equal(gotBody, body) {
		t.Errorf("downstream body = %s", gotBody)
	}
	if gotAuth != "Bearer user-key" {
		t.Errorf("downstream auth = %q", gotAuth)
	}
	if g.detector.callCount() != 0 {
		t.Error("passthrough must not run detection")
	}
}

func TestModeToggle(t *testing.T) {
	g := newTestGateway(t, nil)

	get := func() bool {
		resp, err := http.Get(g.server.URL + "/v1/mode")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var body map[string]bool
		json.NewDecoder(resp.Body).Decode(&body)
		return body["scrubbing"]
	}

	if !get() {
		t.Fatal("scrubbing must default to enabled")
	}

	resp, err := http.Post(g.server.URL+"/v1/mode", "application/json",
		strings.NewReader(`{"scrubbing":false}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if get() {
		t.Error("mode not disabled")
	}
	if g.adapter.ScrubbingEnabled() {
		t.Error("adapter flag not updated")
	}
}

func TestModeRejectsMissingField(t *testing.T) {
	g := newTestGateway(t, nil)

	for _, body := range []string{`{}`, `{"scrub":true}`, `not json`} {
		resp, err := http.Post(g.server.URL+"/v1/mode", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
	}
	if !g.adapter.ScrubbingEnabled() {
		t.Error("rejected bodies must not change the mode")
	}
}

func TestModelsPassthrough(t *testing.T) {
	g := newTestGateway(t, nil)
	g.models.raw = json.RawMessage(`{"object":"list","data":[{"id":"m1"}]}`)

	resp, err := http.Get(g.server.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"object":"list","data":[{"id":"m1"}]}` {
		t.Errorf("body = %s", body)
	}
}

func TestModelsUpstreamError(t *testing.T) {
	g := newTestGateway(t, nil)
	g.models.raw = nil
	g.models.err = api.NewUpstreamError("backend returned 500")

	resp, err := http.Get(g.server.URL + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	g := newTestGateway(t, nil)

	resp, err := http.Get(g.server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestConfigEndpoint(t *testing.T) {
	g := newTestGateway(t, func(cfg *config.Config) {
		cfg.DevMode = true
	})

	resp, err := http.Get(g.server.URL + "/api/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]bool
	json.NewDecoder(resp.Body).Decode(&body)
	if !body["dev_mode"] {
		t.Errorf("body = %v", body)
	}
}

func TestSummaryBreakdown(t *testing.T) {
	tests := []struct {
		name    string
		summary map[api.ItemType]int
		want    string
	}{
		{"empty", nil, ""},
		{"single", map[api.ItemType]int{api.ItemEmail: 2}, "email: 2"},
		{
			"sorted",
			map[api.ItemType]int{api.ItemUser: 1, api.ItemEmail: 2, api.ItemIP: 3},
			"email: 2, ip: 3, user: 1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summaryBreakdown(tt.summary); got != tt.want {
				t.Errorf("summaryBreakdown = %q, want %q", got, tt.want)
			}
		})
	}
}
