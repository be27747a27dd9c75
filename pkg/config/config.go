// Package config provides unified configuration for the scrubgate gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (deployment contract names)
//  4. Validation
package config

import "time"

// Config holds all configuration for the scrubgate gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Scrub         ScrubConfig         `yaml:"scrub"`
	Passthrough   PassthroughConfig   `yaml:"passthrough"`
	Observer      ObserverConfig      `yaml:"observer"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
	DevMode       bool                `yaml:"dev_mode"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8188
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// LLMConfig holds downstream inference server settings.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"` // default: http://llm:8080
	APIKey  string        `yaml:"api_key"`  // optional
	Model   string        `yaml:"model"`    // default: "local"
	Timeout time.Duration `yaml:"timeout"`  // detector backstop, default: 15s
}

// ScrubConfig holds interception and tool-server settings.
type ScrubConfig struct {
	PromptLimitKB int           `yaml:"prompt_limit_kb"` // default: 32
	FileLimitKB   int           `yaml:"file_limit_kb"`   // default: 2048
	DataPath      string        `yaml:"data_path"`       // default: /data/scrub
	ToolCommand   []string      `yaml:"tool_command"`    // default: [scrub-server]
	ToolTimeout   time.Duration `yaml:"tool_timeout"`    // per-call, default: 30s
}

// PassthroughConfig holds the downstream chat UI settings used when
// scrubbing is disabled.
type PassthroughConfig struct {
	OpenWebUIURL string        `yaml:"openwebui_url"` // default: http://open-webui:8081
	FileTimeout  time.Duration `yaml:"file_timeout"`  // upload total, default: 60s
}

// ObserverConfig holds observer-bus settings.
type ObserverConfig struct {
	Broker    string `yaml:"broker"`     // "memory" or "redis", default: "memory"
	RedisAddr string `yaml:"redis_addr"` // required for broker=redis
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	Categories string `yaml:"categories"` // comma-separated, see pkg/debug
	Level      string `yaml:"level"`      // ERROR..TRACE, default: INFO
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8188,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL: "http://llm:8080",
			Model:   "local",
			Timeout: 15 * time.Second,
		},
		Scrub: ScrubConfig{
			PromptLimitKB: 32,
			FileLimitKB:   2048,
			DataPath:      "/data/scrub",
			ToolCommand:   []string{"scrub-server"},
			ToolTimeout:   30 * time.Second,
		},
		Passthrough: PassthroughConfig{
			OpenWebUIURL: "http://open-webui:8081",
			FileTimeout:  60 * time.Second,
		},
		Observer: ObserverConfig{
			Broker: "memory",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{
			Level: "INFO",
		},
	}
}

// PromptLimitBytes returns the prompt-size ceiling in bytes.
func (c *Config) PromptLimitBytes() int {
	return c.Scrub.PromptLimitKB * 1024
}

// FileLimitBytes returns the upload-size ceiling in bytes.
func (c *Config) FileLimitBytes() int64 {
	return int64(c.Scrub.FileLimitKB) * 1024
}
