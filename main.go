package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/skobelev/warden/cmd"
	"github.com/skobelev/warden/internal/api"
	"github.com/skobelev/warden/internal/config"
	"github.com/skobelev/warden/internal/deploy"
	"github.com/skobelev/warden/internal/events"
	"github.com/skobelev/warden/internal/logging"
	"github.com/skobelev/warden/internal/metrics"
	"github.com/skobelev/warden/internal/metrics/exporters"
	"github.com/skobelev/warden/internal/supervisor"
	"github.com/skobelev/warden/internal/systemd"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"warden.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"server.auth_username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"server.auth_password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics" default:"true" toml:"server.metrics_enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingWorker     string `help:"Worker output logging level" default:"info" toml:"logging.worker" env:"LOGGING_WORKER"`
	LoggingDeploy     string `help:"Deploy logging level" default:"info" toml:"logging.deploy" env:"LOGGING_DEPLOY"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"worker":     opts.LoggingWorker,
				"deploy":     opts.LoggingDeploy,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")

		workerCfg, err := config.LoadWorkerConfig(opts.Config)
		if err != nil {
			logger.Error("Invalid worker configuration", "error", err, "config", opts.Config)
			os.Exit(1)
		}
		restartCfg, err := config.LoadRestartConfig(opts.Config)
		if err != nil {
			logger.Error("Invalid restart configuration", "error", err, "config", opts.Config)
			os.Exit(1)
		}
		deployCfg, systemdCfg, err := config.LoadDeployConfig(opts.Config)
		if err != nil {
			logger.Error("Invalid deploy configuration", "error", err, "config", opts.Config)
			os.Exit(1)
		}

		// Event bus carries state changes, crashes, deployments, and
		// log entries between subsystems
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{Entry: entry})
		})

		runner, err := supervisor.NewRunner(
			workerCfg,
			supervisor.PolicyFromConfig(restartCfg),
			logging.GetLogger("supervisor"),
			logging.GetLogger("worker"),
			eventBus,
		)
		if err != nil {
			logger.Error("Failed to create worker runner", "error", err)
			os.Exit(1)
		}

		recorder := metrics.NewRecorder(eventBus)
		recorder.WatchUptime(func() float64 {
			return runner.Report().Uptime.Seconds()
		}, 5*time.Second)

		updater, err := buildUpdater(deployCfg, workerCfg)
		if err != nil {
			logger.Error("Failed to create updater", "error", err)
			os.Exit(1)
		}

		auditPath := deployCfg.AuditLog
		if auditPath == "" {
			auditPath = "deployments.jsonl"
		}
		audit, err := deploy.NewAuditLog(auditPath)
		if err != nil {
			logger.Error("Failed to open deployment audit log", "error", err, "path", auditPath)
			os.Exit(1)
		}

		coordinator := deploy.NewCoordinator(
			runner,
			updater,
			audit,
			eventBus,
			logging.GetLogger("deploy"),
			deployCfg.VerifyDuration(),
		)

		var systemdManager *systemd.Manager
		if systemdCfg.Unit != "" {
			systemdManager, err = systemd.NewManager(context.Background(), systemdCfg.Unit, systemdCfg.User)
			if err != nil {
				logger.Warn("systemd unavailable, unit routes disabled",
					"unit", systemdCfg.Unit, "error", err)
			}
		}

		apiOpts := &api.Options{
			AuthUsername:   opts.AuthUsername,
			AuthPassword:   opts.AuthPassword,
			Worker:         runner,
			Deployer:       coordinator,
			SystemdManager: systemdManager,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}

		server := api.NewServer(apiOpts)

		// Reload the worker definition when the config file changes;
		// the new command takes effect on the next start
		watcher := config.NewConfigWatcher(
			opts.Config,
			config.LoadWorkerConfig,
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(cfg config.WorkerConfig) {
			if err := runner.UpdateConfig(cfg); err != nil {
				logger.Error("Rejected reloaded worker configuration", "error", err)
			}
		})

		hooks.OnStart(func() {
			if err := watcher.Start(); err != nil {
				logger.Warn("Config watcher disabled", "error", err)
			}

			if workerCfg.Autostart {
				if err := runner.Start(); err != nil {
					logger.Error("Autostart failed", "error", err)
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Error("Error stopping config watcher", "error", stopErr)
			}

			if stopErr := runner.Stop(); stopErr != nil {
				logger.Error("Error stopping worker", "error", stopErr)
			}

			recorder.Close()
			if systemdManager != nil {
				systemdManager.Close()
			}
		})
	})

	root := cli.Root()
	root.Use = "warden"
	root.Short = "Supervise a long-running worker process"

	root.AddCommand(
		cmd.CreateStartCmd(),
		cmd.CreateStopCmd(),
		cmd.CreateStatusCmd(),
		cmd.CreateDeployCmd(),
		cmd.CreateUpdateCmd(),
		cmd.CreateRollbackCmd(),
		cmd.CreateDeploymentsCmd(),
		cmd.CreateValidateCmd(),
	)

	cli.Run()
}

// buildUpdater selects the deployment strategy. The default is a git
// checkout in the worker directory, matching the original update flow.
func buildUpdater(deployCfg config.DeployConfig, workerCfg config.WorkerConfig) (deploy.Updater, error) {
	switch deployCfg.Strategy {
	case config.StrategyRelease:
		return deploy.NewReleaseUpdater(deploy.ReleaseOptions{
			Repository:   deployCfg.Repository,
			ArtifactPath: deployCfg.ArtifactPath,
			Prerelease:   deployCfg.Prerelease,
		}, logging.GetLogger("deploy"))
	default:
		dir := workerCfg.Dir
		if dir == "" {
			dir = "."
		}
		return deploy.NewGitUpdater(dir, deployCfg.InstallCommand, logging.GetLogger("deploy")), nil
	}
}
