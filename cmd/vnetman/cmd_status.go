package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vnet-lab/vnetman/pkg/vnet"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show live interface state",
		Long: `Show the topology's interfaces as the kernel sees them right now.

Every column is recomputed from live kernel and process state; absent
interfaces show NA. The USED_BY column lists the machines the topology
declares on each bridge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := requireTopology()
			if err != nil {
				return err
			}

			mgr, err := vnet.NewManager(topo)
			if err != nil {
				return err
			}

			return mgr.WriteStatus(os.Stdout)
		},
	}
}
