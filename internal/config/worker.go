package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default timings for the supervised worker.
const (
	DefaultGracePeriod = 3 * time.Second
	DefaultStopTimeout = 10 * time.Second
	DefaultKillTimeout = 5 * time.Second
)

// WorkerConfig describes the supervised worker process. The env table is
// passed through to the worker verbatim on top of the supervisor's own
// environment; values (bot tokens, API keys) are never inspected.
type WorkerConfig struct {
	Command      string            `toml:"command"`
	Dir          string            `toml:"dir"`
	Env          map[string]string `toml:"env"`
	Autostart    bool              `toml:"autostart"`
	ReadyPattern string            `toml:"ready_pattern"`
	GracePeriod  string            `toml:"grace_period"`
	StopTimeout  string            `toml:"stop_timeout"`
	KillTimeout  string            `toml:"kill_timeout"`
}

// Validate checks that the worker definition is usable.
func (c WorkerConfig) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("worker command must not be empty")
	}
	if c.Dir != "" {
		info, err := os.Stat(c.Dir)
		if err != nil {
			return fmt.Errorf("worker dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("worker dir %s is not a directory", c.Dir)
		}
	}
	for _, field := range []struct {
		name, value string
	}{
		{"grace_period", c.GracePeriod},
		{"stop_timeout", c.StopTimeout},
		{"kill_timeout", c.KillTimeout},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("worker %s: %w", field.name, err)
		}
	}
	return nil
}

// GraceDuration returns the parsed grace period or the default.
func (c WorkerConfig) GraceDuration() time.Duration {
	return parseDurationOr(c.GracePeriod, DefaultGracePeriod)
}

// StopDuration returns the parsed stop timeout or the default.
func (c WorkerConfig) StopDuration() time.Duration {
	return parseDurationOr(c.StopTimeout, DefaultStopTimeout)
}

// KillDuration returns the parsed kill timeout or the default.
func (c WorkerConfig) KillDuration() time.Duration {
	return parseDurationOr(c.KillTimeout, DefaultKillTimeout)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// LoadWorkerConfig reads the [worker] section from a TOML config file.
func LoadWorkerConfig(path string) (WorkerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkerConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Worker WorkerConfig `toml:"worker"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return WorkerConfig{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if err := raw.Worker.Validate(); err != nil {
		return WorkerConfig{}, err
	}

	return raw.Worker, nil
}
