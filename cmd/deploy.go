package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

// deployment mirrors the daemon's deployment record body.
type deployment struct {
	Timestamp   string `json:"timestamp"`
	Outcome     string `json:"outcome"`
	PreviousRef string `json:"previous_ref"`
	NewRef      string `json:"new_ref"`
	Error       string `json:"error"`
	Duration    string `json:"duration"`
}

func printDeployment(rec deployment) {
	fmt.Printf("Outcome:  %s\n", rec.Outcome)
	if rec.PreviousRef != "" {
		fmt.Printf("From:     %s\n", rec.PreviousRef)
	}
	if rec.NewRef != "" {
		fmt.Printf("To:       %s\n", rec.NewRef)
	}
	fmt.Printf("Duration: %s\n", rec.Duration)
	if rec.Error != "" {
		fmt.Printf("Error:    %s\n", rec.Error)
	}
}

// CreateDeployCmd creates the deploy command.
func CreateDeployCmd() *cobra.Command {
	var flags connFlags

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Stop the worker, apply the latest update, and restart",
		Run: func(_ *cobra.Command, _ []string) {
			var rec deployment
			if err := flags.client().do(http.MethodPost, "/api/deploy", &rec); err != nil {
				fail(err)
			}
			printDeployment(rec)
		},
	}
	flags.register(cmd)
	return cmd
}

// CreateUpdateCmd creates the update command, an alias for deploy kept
// for operators used to the old update script.
func CreateUpdateCmd() *cobra.Command {
	cmd := CreateDeployCmd()
	cmd.Use = "update"
	cmd.Short = "Alias for deploy"
	return cmd
}

// CreateRollbackCmd creates the rollback command.
func CreateRollbackCmd() *cobra.Command {
	var flags connFlags

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the previous artifact and restart the worker",
		Run: func(_ *cobra.Command, _ []string) {
			var rec deployment
			if err := flags.client().do(http.MethodPost, "/api/rollback", &rec); err != nil {
				fail(err)
			}
			printDeployment(rec)
		},
	}
	flags.register(cmd)
	return cmd
}

// CreateDeploymentsCmd creates the deployments history command.
func CreateDeploymentsCmd() *cobra.Command {
	var flags connFlags
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "List recent deployment attempts",
		Run: func(_ *cobra.Command, _ []string) {
			var result struct {
				Deployments []deployment `json:"deployments"`
				Count       int          `json:"count"`
			}
			path := "/api/deployments?limit=" + strconv.Itoa(limit)
			if err := flags.client().do(http.MethodGet, path, &result); err != nil {
				fail(err)
			}

			if asJSON {
				out, err := json.MarshalIndent(result.Deployments, "", "  ")
				if err != nil {
					fail(err)
				}
				fmt.Println(string(out))
				return
			}

			if result.Count == 0 {
				fmt.Println("No deployments recorded")
				return
			}
			for _, rec := range result.Deployments {
				line := fmt.Sprintf("%s  %-11s  %s", rec.Timestamp, rec.Outcome, rec.Duration)
				if rec.NewRef != "" {
					line += "  -> " + rec.NewRef
				}
				fmt.Println(line)
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw records as JSON")
	return cmd
}
