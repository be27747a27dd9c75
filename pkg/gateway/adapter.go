package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scrubgate/scrubgate/pkg/api"
	"github.com/scrubgate/scrubgate/pkg/bus"
	"github.com/scrubgate/scrubgate/pkg/config"
	"github.com/scrubgate/scrubgate/pkg/monitor"
	"github.com/scrubgate/scrubgate/pkg/sandbox"
)

// Detector classifies text; failures surface as the error verdict.
type Detector interface {
	Detect(ctx context.Context, sessionID, text string) *api.Verdict
}

// Scrubber is the slice of the tool channel the adapter calls.
type Scrubber interface {
	ScrubLogAsPrompt(ctx context.Context, text string, itemTypes []api.ItemType) (*api.ScrubResult, error)
	ScrubLogAsFile(ctx context.Context, inputPath, outputPath string, itemTypes []api.ItemType) (*api.FileScrubResult, error)
}

// ModelLister fetches the downstream model list.
type ModelLister interface {
	Models(ctx context.Context) (json.RawMessage, error)
}

// Adapter serves the interception API. It routes requests to the
// appropriate handler and serializes responses.
type Adapter struct {
	cfg      *config.Config
	logger   *slog.Logger
	detector Detector
	scrubber Scrubber
	models   ModelLister
	bus      bus.Bus
	monitor  *monitor.Monitor
	box      *sandbox.Sandbox

	// scrubbing is the process-wide mode flag. Toggles take effect on the
	// next request; no request spans the toggle.
	scrubbing atomic.Bool

	proxyClient *http.Client
	upgrader    websocket.Upgrader
	mux         *http.ServeMux
}

// NewAdapter creates the adapter and registers its routes.
func NewAdapter(
	cfg *config.Config,
	logger *slog.Logger,
	detector Detector,
	scrubber Scrubber,
	models ModelLister,
	b bus.Bus,
	mon *monitor.Monitor,
	box *sandbox.Sandbox,
) *Adapter {
	a := &Adapter{
		cfg:      cfg,
		logger:   logger,
		detector: detector,
		scrubber: scrubber,
		models:   models,
		bus:      b,
		monitor:  mon,
		box:      box,
		proxyClient: &http.Client{
			// Streaming passthrough; the per-request context bounds it.
			Timeout: 0,
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Loopback-only deployment contract; the panel frontend is
			// served from a different origin in dev.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	a.scrubbing.Store(true)

	a.mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletions)
	a.mux.HandleFunc("GET /v1/models", a.handleModels)
	a.mux.HandleFunc("GET /v1/mode", a.handleGetMode)
	a.mux.HandleFunc("POST /v1/mode", a.handleSetMode)
	a.mux.HandleFunc("POST /api/v1/files", a.handleFileUpload)
	a.mux.HandleFunc("GET /api/v1/files/download/{job_id}", a.handleFileDownload)
	a.mux.HandleFunc("GET /ws/prompts", a.handleObserverSocket(bus.ChannelPromptIntercept))
	a.mux.HandleFunc("GET /api/config", a.handleConfig)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	if cfg.DevMode {
		a.mux.HandleFunc("GET /ws/debug", a.handleObserverSocket(bus.ChannelDebugTraces))
	}
	if cfg.Observability.Metrics.Enabled {
		a.mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	return a
}

// Handler returns the adapter's handler with the default middleware chain.
func (a *Adapter) Handler() http.Handler {
	return Chain(
		Recovery(a.logger),
		RequestID(),
		Logging(a.logger),
		Metrics(),
	)(a.mux)
}

// ScrubbingEnabled reports the current mode flag.
func (a *Adapter) ScrubbingEnabled() bool {
	return a.scrubbing.Load()
}

// SetScrubbing sets the mode flag. Effective on the next request.
func (a *Adapter) SetScrubbing(enabled bool) {
	a.scrubbing.Store(enabled)
}

// publishIntercept emits an event on the prompt_intercept channel.
// Publish failures are logged and swallowed; observers never gate requests.
func (a *Adapter) publishIntercept(ctx context.Context, evt *api.InterceptEvent) {
	raw, err := json.Marshal(evt)
	if err != nil {
		a.logger.Warn("encoding intercept event", "error", err)
		return
	}
	if err := a.bus.Publish(ctx, bus.ChannelPromptIntercept, raw); err != nil {
		a.logger.Warn("publishing intercept event", "error", err)
	}
}

// handleHealthz reports liveness.
func (a *Adapter) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleConfig exposes the settings the panel frontend needs.
func (a *Adapter) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"dev_mode": a.cfg.DevMode})
}

// handleGetMode handles GET /v1/mode.
func (a *Adapter) handleGetMode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"scrubbing": a.scrubbing.Load()})
}

// handleSetMode handles POST /v1/mode.
func (a *Adapter) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scrubbing *bool `json:"scrubbing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Scrubbing == nil {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("scrubbing", "body must be {\"scrubbing\": true|false}"),
			http.StatusBadRequest)
		return
	}
	a.scrubbing.Store(*body.Scrubbing)
	a.logger.Info("scrubbing mode changed", "enabled", *body.Scrubbing)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"scrubbing": *body.Scrubbing})
}
