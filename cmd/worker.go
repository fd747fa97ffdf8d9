package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// workerStatus mirrors the daemon's worker status body.
type workerStatus struct {
	State        string  `json:"state"`
	Command      string  `json:"command"`
	PID          int     `json:"pid"`
	UptimeSecs   float64 `json:"uptime_seconds"`
	StartedAt    string  `json:"started_at"`
	RestartCount int     `json:"restart_count"`
	LastExitCode int     `json:"last_exit_code"`
	LastError    string  `json:"last_error"`
	NextRestart  string  `json:"next_restart"`
}

// CreateStartCmd creates the start command.
func CreateStartCmd() *cobra.Command {
	var flags connFlags

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the worker process",
		Run: func(_ *cobra.Command, _ []string) {
			var result struct {
				State string `json:"state"`
			}
			if err := flags.client().do(http.MethodPost, "/api/worker/start", &result); err != nil {
				fail(err)
			}
			fmt.Println("Worker starting")
		},
	}
	flags.register(cmd)
	return cmd
}

// CreateStopCmd creates the stop command.
func CreateStopCmd() *cobra.Command {
	var flags connFlags
	var timeout int

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the worker process gracefully",
		Run: func(_ *cobra.Command, _ []string) {
			path := "/api/worker/stop"
			if timeout > 0 {
				path = fmt.Sprintf("%s?timeout=%d", path, timeout)
			}
			if err := flags.client().do(http.MethodPost, path, nil); err != nil {
				fail(err)
			}
			fmt.Println("Worker stopped")
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&timeout, "stop-timeout", 0, "Graceful stop timeout in seconds (0 uses the daemon's configured value)")
	return cmd
}

// CreateStatusCmd creates the status command.
func CreateStatusCmd() *cobra.Command {
	var flags connFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the worker's current state",
		Run: func(_ *cobra.Command, _ []string) {
			var status workerStatus
			if err := flags.client().do(http.MethodGet, "/api/worker", &status); err != nil {
				fail(err)
			}

			if asJSON {
				out, err := json.MarshalIndent(status, "", "  ")
				if err != nil {
					fail(err)
				}
				fmt.Println(string(out))
				return
			}

			printStatus(status)
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw status as JSON")
	return cmd
}

func printStatus(status workerStatus) {
	fmt.Printf("State:    %s\n", status.State)
	fmt.Printf("Command:  %s\n", status.Command)
	if status.PID > 0 {
		fmt.Printf("PID:      %d\n", status.PID)
	}
	if status.UptimeSecs > 0 {
		fmt.Printf("Uptime:   %s\n", (time.Duration(status.UptimeSecs * float64(time.Second))).Round(time.Second))
	}
	fmt.Printf("Restarts: %d\n", status.RestartCount)
	if status.State == "stopped" || status.State == "crashed" {
		fmt.Printf("Last exit code: %d\n", status.LastExitCode)
	}
	if status.LastError != "" {
		fmt.Printf("Last error: %s\n", status.LastError)
	}
	if status.NextRestart != "" {
		fmt.Printf("Next restart: %s\n", status.NextRestart)
	}
}
