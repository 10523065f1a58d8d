package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vnet-lab/vnetman/pkg/cli"
	"github.com/vnet-lab/vnetman/pkg/vnet"
)

func newUpCmd() *cobra.Command {
	var withCapture bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create and bring up the topology",
		Long: `Converge the host to the declared topology.

Bridges are created with an egress-drop isolation rule and brought up;
veths are pair-created (when they declare a peer), attached to their
bridge, and initialized with a fresh MAC. Already-converged interfaces are
left untouched, so re-running is always safe.

  vnetman up -c vnet.yaml
  vnetman up --capture          # also attach tcpdump to each bridge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := requireTopology()
			if err != nil {
				return err
			}

			mgr, err := vnet.NewManager(topo)
			if err != nil {
				return err
			}

			res := mgr.BringUp(withCapture)
			printBatch(res)
			return res.Err()
		},
	}

	cmd.Flags().BoolVar(&withCapture, "capture", false, "attach a packet capture to each bridge")
	return cmd
}

// printBatch prints per-interface failures and a one-line summary.
func printBatch(res *vnet.BatchResult) {
	for _, r := range res.Failed() {
		fmt.Printf("%s %s %s: %v\n", cli.Red("✗"), r.Interface, r.Op, r.Err)
	}
	failed := len(res.Failed())
	if failed == 0 {
		fmt.Printf("%s %d interfaces converged\n", cli.Green("✓"), len(res.Results))
		return
	}
	fmt.Printf("%s %d of %d operations failed; fix the cause and re-run\n",
		cli.Yellow("!"), failed, len(res.Results))
}
