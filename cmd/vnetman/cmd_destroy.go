package main

import (
	"github.com/spf13/cobra"

	"github.com/vnet-lab/vnetman/pkg/vnet"
)

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Delete the topology's interfaces",
		Long: `Delete the declared interfaces from the host.

Veths that declare a peer are deleted (deleting one half removes the
pair); veths without a peer belong to another actor and are left alone.
Bridges are deleted last. Already-missing interfaces are skipped.

Isolation rules and capture processes are NOT removed: rules are meant to
outlive interface churn, and captures are stopped explicitly by the
operator when no longer wanted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := requireTopology()
			if err != nil {
				return err
			}

			mgr, err := vnet.NewManager(topo)
			if err != nil {
				return err
			}

			res := mgr.Delete()
			printBatch(res)
			return res.Err()
		},
	}
}
