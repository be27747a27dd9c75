// Command gateway runs the scrubgate interception gateway.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (see SCRUBGATE_CONFIG), then environment overrides:
//
//	LLM_BASE_URL         - downstream inference server (default: http://llm:8080)
//	LLM_TIMEOUT          - detector timeout in seconds (default: 15)
//	SCRUB_PROMPT_LIMIT_KB - prompt-size ceiling (default: 32)
//	SCRUB_FILE_LIMIT_KB  - upload-size ceiling (default: 2048)
//	SCRUB_DATA_PATH      - file-scrub sandbox root (default: /data/scrub)
//	OPENWEBUI_URL        - downstream chat UI (default: http://open-webui:8081)
//	REDIS_ADDR           - selects the Redis observer broker when set
//	SCRUBGATE_PORT       - listen port (default: 8188)
//	DEV_MODE             - enables the /ws/debug trace channel
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/scrubgate/scrubgate/pkg/bus"
	"github.com/scrubgate/scrubgate/pkg/config"
	"github.com/scrubgate/scrubgate/pkg/debug"
	"github.com/scrubgate/scrubgate/pkg/detect"
	"github.com/scrubgate/scrubgate/pkg/gateway"
	"github.com/scrubgate/scrubgate/pkg/llm"
	"github.com/scrubgate/scrubgate/pkg/monitor"
	"github.com/scrubgate/scrubgate/pkg/sandbox"
	"github.com/scrubgate/scrubgate/pkg/toolserver"
)

func main() {
	if err := run(); err != nil {
		slog.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	debug.Init(cfg.Debug.Categories, cfg.Debug.Level)
	logger := slog.Default()

	observerBus, err := newBus(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating observer bus: %w", err)
	}
	defer observerBus.Close()

	box, err := sandbox.New(cfg.Scrub.DataPath)
	if err != nil {
		return fmt.Errorf("creating sandbox at %s: %w", cfg.Scrub.DataPath, err)
	}

	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	mon := monitor.New(observerBus, logger)
	detector := detect.New(llmClient, mon, logger)

	channel := toolserver.NewChannel(cfg.Scrub.ToolCommand, logger,
		toolserver.WithTimeout(cfg.Scrub.ToolTimeout))
	defer channel.Close()

	adapter := gateway.NewAdapter(cfg, logger, detector, channel, llmClient, observerBus, mon, box)
	server := gateway.NewServer(cfg, adapter, logger)

	logger.Info("scrubgate starting",
		"port", cfg.Server.Port,
		"llm", cfg.LLM.BaseURL,
		"broker", cfg.Observer.Broker,
		"dev_mode", cfg.DevMode)
	return server.ListenAndServe()
}

func newBus(cfg *config.Config, logger *slog.Logger) (bus.Bus, error) {
	if cfg.Observer.Broker == "redis" {
		logger.Info("observer broker", "type", "redis", "addr", cfg.Observer.RedisAddr)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return bus.NewRedis(ctx, cfg.Observer.RedisAddr)
	}
	logger.Info("observer broker", "type", "memory")
	return bus.NewMemory(), nil
}
