package commands

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Inspect the route tables",
	}

	cmd.AddCommand(routesListCmd())
	cmd.AddCommand(routesGetNextHopCmd())

	return cmd
}

// --- routes list ---

func routesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every reachable peer's next hop (§6 list_routes)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var routes []routeView
			if err := getJSON("/debug/routes", &routes); err != nil {
				return fmt.Errorf("list routes: %w", err)
			}

			out, err := formatRoutes(routes, outputFormat)
			if err != nil {
				return fmt.Errorf("format routes: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

// --- routes get-next-hop ---

func routesGetNextHopCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "get-next-hop <peer-id>",
		Short: "Resolve the next hop to a peer under a policy (§6 get_next_hop)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if _, err := strconv.ParseUint(args[0], 10, 32); err != nil {
				return fmt.Errorf("parse peer id %q: %w", args[0], err)
			}

			q := url.Values{"peer_id": {args[0]}, "policy": {policy}}
			var nh struct {
				NextHopPeer uint32 `json:"next_hop_peer"`
				Cost        int64  `json:"cost"`
			}
			if err := getJSON("/debug/next-hop?"+q.Encode(), &nh); err != nil {
				return fmt.Errorf("get next hop: %w", err)
			}

			fmt.Printf("next_hop_peer=%d cost=%d\n", nh.NextHopPeer, nh.Cost)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "least-hop",
		"route policy: least-hop or least-cost")

	return cmd
}
