// Package commands implements the routectl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// client is the plain HTTP client used for every debug query, initialized
	// in PersistentPreRunE.
	client *http.Client

	// serverAddr is the daemon's metrics/debug address (host:port), which
	// mounts the read-only introspection handlers (§6) alongside /metrics.
	serverAddr string

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string
)

// rootCmd is the top-level cobra command for routectl.
var rootCmd = &cobra.Command{
	Use:   "routectl",
	Short: "CLI client for the routecore daemon",
	Long:  "routectl queries the routed daemon's debug HTTP endpoints to inspect routes, peers, and session state.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = &http.Client{Timeout: 10 * time.Second}
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9246",
		"routed daemon debug address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(routesCmd())
	rootCmd.AddCommand(peersCmd())
	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func baseURL() string {
	return "http://" + serverAddr
}
