package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.LLM.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm.base_url is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Scrub.PromptLimitKB <= 0 {
		errs = append(errs, fmt.Errorf("scrub.prompt_limit_kb must be > 0, got %d", c.Scrub.PromptLimitKB))
	}
	if c.Scrub.FileLimitKB <= 0 {
		errs = append(errs, fmt.Errorf("scrub.file_limit_kb must be > 0, got %d", c.Scrub.FileLimitKB))
	}
	if c.Scrub.DataPath == "" {
		errs = append(errs, fmt.Errorf("scrub.data_path is required"))
	}
	if len(c.Scrub.ToolCommand) == 0 {
		errs = append(errs, fmt.Errorf("scrub.tool_command is required"))
	}

	switch c.Observer.Broker {
	case "memory":
		// valid
	case "redis":
		if c.Observer.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("observer.redis_addr is required when observer.broker is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("observer.broker must be \"memory\" or \"redis\", got %q", c.Observer.Broker))
	}

	return errors.Join(errs...)
}
