package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/bus"
	"github.com/scrubgate/scrubgate/pkg/config"
	"github.com/scrubgate/scrubgate/pkg/monitor"
	"github.com/scrubgate/scrubgate/pkg/sandbox"
)

type fakeDetector struct {
	verdict *api.Verdict

	mu       sync.Mutex
	calls    int
	lastText string
}

func (f *fakeDetector) Detect(_ context.Context, _, text string) *api.Verdict {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastText = text
	return f.verdict
}

func (f *fakeDetector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeScrubber struct {
	promptResult *api.ScrubResult
	promptErr    error
	fileResult   *api.FileScrubResult
	fileErr      error

	mu           sync.Mutex
	gotText      string
	gotItemTypes []api.ItemType
	gotInput     string
	gotOutput    string
}

func (f *fakeScrubber) ScrubLogAsPrompt(_ context.Context, text string, itemTypes []api.ItemType) (*api.ScrubResult, error) {
	f.mu.Lock()
	f.gotText = text
	f.gotItemTypes = itemTypes
	f.mu.Unlock()
	return f.promptResult, f.promptErr
}

func (f *fakeScrubber) ScrubLogAsFile(_ context.Context, inputPath, outputPath string, itemTypes []api.ItemType) (*api.FileScrubResult, error) {
	f.mu.Lock()
	f.gotInput = inputPath
	f.gotOutput = outputPath
	f.gotItemTypes = itemTypes
	f.mu.Unlock()
	return f.fileResult, f.fileErr
}

type fakeModels struct {
	raw json.RawMessage
	err error
}

func (f *fakeModels) Models(context.Context) (json.RawMessage, error) {
	return f.raw, f.err
}

func cleanVerdict() *api.Verdict {
	return &api.Verdict{
		NeedsSanitization: false,
		Category:          api.CategoryClean,
		Summary:           "No sensitive data detected.",
		ItemsDetected:     []string{},
		ItemTypes:         []api.ItemType{},
	}
}

type testGateway struct {
	cfg      *config.Config
	adapter  *Adapter
	server   *httptest.Server
	bus      *bus.Memory
	events   bus.Subscription
	detector *fakeDetector
	scrubber *fakeScrubber
	models   *fakeModels
}

func newTestGateway(t *testing.T, mutate func(cfg *config.Config)) *testGateway {
	t.Helper()

	cfg := config.Defaults()
	cfg.Scrub.DataPath = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}

	b := bus.NewMemory()
	events, err := b.Subscribe(context.Background(), bus.ChannelPromptIntercept)
	if err != nil {
		t.Fatal(err)
	}

	box, err := sandbox.New(cfg.Scrub.DataPath)
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.DiscardHandler)
	g := &testGateway{
		cfg:      &cfg,
		bus:      b,
		events:   events,
		detector: &fakeDetector{verdict: cleanVerdict()},
		scrubber: &fakeScrubber{},
		models:   &fakeModels{raw: json.RawMessage(`{"object":"list","data":[]}`)},
	}
	g.adapter = NewAdapter(&cfg, logger, g.detector, g.scrubber, g.models, b, monitor.New(b, logger), box)
	g.server = httptest.NewServer(g.adapter.Handler())
	t.Cleanup(func() {
		g.server.Close()
		b.Close()
	})
	return g
}

// nextEvent waits for the next intercept event.
func (g *testGateway) nextEvent(t *testing.T) api.InterceptEvent {
	t.Helper()
	select {
	case raw, ok := <-g.events.C():
		if !ok {
			t.Fatal("event subscription closed")
		}
		var evt api.InterceptEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("no intercept event published")
	}
	return api.InterceptEvent{}
}

func (g *testGateway) noEvent(t *testing.T) {
	t.Helper()
	select {
	case raw := <-g.events.C():
		t.Fatalf("unexpected event: %s", raw)
	default:
	}
}

// postChat sends a chat completion and decodes the status envelope.
func (g *testGateway) postChat(t *testing.T, prompt string, stream bool) (*http.Response, *api.ChatCompletionResponse) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"model":    "m1",
		"messages": []map[string]any{{"role": "user", "content": prompt}},
		"stream":   stream,
	})
	resp, err := http.Post(g.server.URL+"/v1/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	if stream {
		return resp, nil
	}
	var envelope api.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return resp, &envelope
}

func statusContent(t *testing.T, envelope *api.ChatCompletionResponse) string {
	t.Helper()
	if len(envelope.Choices) != 1 || envelope.Choices[0].Message == nil {
		t.Fatalf("envelope choices = %+v", envelope.Choices)
	}
	return envelope.Choices[0].Message.Content
}

// postFile uploads a multipart file and returns the response.
func (g *testGateway) postFile(t *testing.T, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(g.server.URL+"/api/v1/files", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) *api.APIError {
	t.Helper()
	var wrapper api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	return wrapper.Error
}
