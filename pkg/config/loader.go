package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, SCRUBGATE_CONFIG env, ./config.yaml, /etc/scrubgate/config.yaml)
//  3. Environment variable overrides
//  4. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. SCRUBGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/scrubgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check SCRUBGATE_CONFIG env var.
	if envPath := os.Getenv("SCRUBGATE_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/scrubgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. The names
// follow the deployment contract shared with the compose stack.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.LLM.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SCRUB_PROMPT_LIMIT_KB"); v != "" {
		if kb, err := strconv.Atoi(v); err == nil {
			cfg.Scrub.PromptLimitKB = kb
		}
	}
	if v := os.Getenv("SCRUB_FILE_LIMIT_KB"); v != "" {
		if kb, err := strconv.Atoi(v); err == nil {
			cfg.Scrub.FileLimitKB = kb
		}
	}
	if v := os.Getenv("SCRUB_DATA_PATH"); v != "" {
		cfg.Scrub.DataPath = v
	}
	if v := os.Getenv("SCRUB_TOOL_COMMAND"); v != "" {
		cfg.Scrub.ToolCommand = strings.Fields(v)
	}
	if v := os.Getenv("OPENWEBUI_URL"); v != "" {
		cfg.Passthrough.OpenWebUIURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Observer.Broker = "redis"
		cfg.Observer.RedisAddr = v
	}
	if v := os.Getenv("SCRUBGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		cfg.DevMode = strings.EqualFold(v, "true")
	}
}
