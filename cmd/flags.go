package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// connFlags are the daemon connection flags shared by every subcommand
// that talks to the API.
type connFlags struct {
	addr     string
	username string
	password string
	timeout  time.Duration
}

func (f *connFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", envOr("WARDEN_ADDR", "localhost:8090"), "Daemon API address")
	cmd.Flags().StringVar(&f.username, "username", envOr("WARDEN_AUTH_USERNAME", "admin"), "Basic auth username")
	cmd.Flags().StringVar(&f.password, "password", envOr("WARDEN_AUTH_PASSWORD", ""), "Basic auth password")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 60*time.Second, "Request timeout")
}

func (f *connFlags) client() *client {
	return newClient(f.addr, f.username, f.password, f.timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
