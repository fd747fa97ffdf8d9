package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default restart policy parameters.
const (
	DefaultBaseDelay          = 1 * time.Second
	DefaultMaxDelay           = 60 * time.Second
	DefaultMaxRestarts        = 5
	DefaultStabilityThreshold = 5 * time.Minute
)

// RestartConfig tunes the automatic restart behavior for a crashed worker.
type RestartConfig struct {
	BaseDelay          string `toml:"base_delay"`
	MaxDelay           string `toml:"max_delay"`
	MaxRestarts        int    `toml:"max_restarts"`
	StabilityThreshold string `toml:"stability_threshold"`
}

// Validate checks the restart parameters for parseability.
func (c RestartConfig) Validate() error {
	for _, field := range []struct {
		name, value string
	}{
		{"base_delay", c.BaseDelay},
		{"max_delay", c.MaxDelay},
		{"stability_threshold", c.StabilityThreshold},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("restart %s: %w", field.name, err)
		}
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("restart max_restarts must not be negative")
	}
	return nil
}

// BaseDelayDuration returns the parsed base delay or the default.
func (c RestartConfig) BaseDelayDuration() time.Duration {
	return parseDurationOr(c.BaseDelay, DefaultBaseDelay)
}

// MaxDelayDuration returns the parsed delay ceiling or the default.
func (c RestartConfig) MaxDelayDuration() time.Duration {
	return parseDurationOr(c.MaxDelay, DefaultMaxDelay)
}

// StabilityDuration returns the parsed stability threshold or the default.
func (c RestartConfig) StabilityDuration() time.Duration {
	return parseDurationOr(c.StabilityThreshold, DefaultStabilityThreshold)
}

// MaxRestartCount returns the configured restart ceiling or the default.
func (c RestartConfig) MaxRestartCount() int {
	if c.MaxRestarts == 0 {
		return DefaultMaxRestarts
	}
	return c.MaxRestarts
}

// LoadRestartConfig reads the [restart] section from a TOML config file.
// A missing section yields the defaults.
func LoadRestartConfig(path string) (RestartConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RestartConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Restart RestartConfig `toml:"restart"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return RestartConfig{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if err := raw.Restart.Validate(); err != nil {
		return RestartConfig{}, err
	}

	return raw.Restart, nil
}
