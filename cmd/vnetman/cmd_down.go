package main

import (
	"github.com/spf13/cobra"

	"github.com/vnet-lab/vnetman/pkg/vnet"
)

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Bring the topology's interfaces down",
		Long: `Set every declared interface operationally down, veths before bridges.

Interfaces are kept (use destroy to delete them). Isolation rules and
capture processes are left in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := requireTopology()
			if err != nil {
				return err
			}

			mgr, err := vnet.NewManager(topo)
			if err != nil {
				return err
			}

			res := mgr.BringDown()
			printBatch(res)
			return res.Err()
		},
	}
}
