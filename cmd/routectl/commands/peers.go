package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func peersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Inspect the synced peer database",
	}

	cmd.AddCommand(peersListCmd())

	return cmd
}

// --- peers list ---

func peersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every non-placeholder peer descriptor",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var peers []peerView
			if err := getJSON("/debug/peers", &peers); err != nil {
				return fmt.Errorf("list peers: %w", err)
			}

			out, err := formatPeers(peers, outputFormat)
			if err != nil {
				return fmt.Errorf("format peers: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
