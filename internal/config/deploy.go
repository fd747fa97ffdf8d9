package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Deployment strategies.
const (
	StrategyGit     = "git"
	StrategyRelease = "release"
)

// DefaultVerifyTimeout bounds the post-deploy verification window.
const DefaultVerifyTimeout = 30 * time.Second

// DeployConfig describes how worker updates are fetched and applied.
type DeployConfig struct {
	Strategy       string `toml:"strategy"`
	Repository     string `toml:"repository"`
	InstallCommand string `toml:"install_command"`
	ArtifactPath   string `toml:"artifact_path"`
	VerifyTimeout  string `toml:"verify_timeout"`
	AuditLog       string `toml:"audit_log"`
	Prerelease     bool   `toml:"prerelease"`
}

// Validate checks the deployment settings for the selected strategy.
func (c DeployConfig) Validate() error {
	switch c.Strategy {
	case "", StrategyGit:
	case StrategyRelease:
		if c.Repository == "" {
			return fmt.Errorf("deploy repository is required for the release strategy")
		}
		if c.ArtifactPath == "" {
			return fmt.Errorf("deploy artifact_path is required for the release strategy")
		}
	default:
		return fmt.Errorf("unknown deploy strategy %q", c.Strategy)
	}
	if c.VerifyTimeout != "" {
		if _, err := time.ParseDuration(c.VerifyTimeout); err != nil {
			return fmt.Errorf("deploy verify_timeout: %w", err)
		}
	}
	return nil
}

// VerifyDuration returns the parsed verification timeout or the default.
func (c DeployConfig) VerifyDuration() time.Duration {
	return parseDurationOr(c.VerifyTimeout, DefaultVerifyTimeout)
}

// SystemdConfig names an external systemd unit for the worker, when the
// worker runs under systemd instead of direct supervision.
type SystemdConfig struct {
	Unit string `toml:"unit"`
	User bool   `toml:"user"`
}

// LoadDeployConfig reads the [deploy] and [systemd] sections from a TOML
// config file. Missing sections yield zero values.
func LoadDeployConfig(path string) (DeployConfig, SystemdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeployConfig{}, SystemdConfig{}, fmt.Errorf("failed to read config: %w", err)
	}

	var raw struct {
		Deploy  DeployConfig  `toml:"deploy"`
		Systemd SystemdConfig `toml:"systemd"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return DeployConfig{}, SystemdConfig{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	if err := raw.Deploy.Validate(); err != nil {
		return DeployConfig{}, SystemdConfig{}, err
	}

	return raw.Deploy, raw.Systemd, nil
}
