package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print a diagnostic snapshot of DB size, table sizes, and sessions (§6 dump)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := getText("/debug/dump")
			if err != nil {
				return fmt.Errorf("dump: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
