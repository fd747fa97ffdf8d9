package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skobelev/warden/internal/config"
)

// CreateValidateCmd creates the validate command. It checks the config
// file locally without contacting the daemon.
func CreateValidateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Run: func(_ *cobra.Command, _ []string) {
			failed := false

			worker, err := config.LoadWorkerConfig(configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, "worker:", err)
				failed = true
			} else {
				fmt.Printf("worker: ok (command %q)\n", worker.Command)
			}

			if _, err := config.LoadRestartConfig(configFile); err != nil {
				fmt.Fprintln(os.Stderr, "restart:", err)
				failed = true
			} else {
				fmt.Println("restart: ok")
			}

			deployCfg, _, err := config.LoadDeployConfig(configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, "deploy:", err)
				failed = true
			} else {
				strategy := deployCfg.Strategy
				if strategy == "" {
					strategy = config.StrategyGit
				}
				fmt.Printf("deploy: ok (strategy %s)\n", strategy)
			}

			if failed {
				os.Exit(ExitUnreachable)
			}
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "warden.toml", "Path to configuration file")
	return cmd
}
