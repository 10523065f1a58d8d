// vnetman — single-host virtual network topology manager
//
// vnetman reads a declarative topology file (switch bridges, veth links,
// machine declarations) and converges live kernel state to it: bridges and
// veths are created, isolated from the outside world, and brought up
// idempotently, with an optional packet capture per bridge.
//
// Usage:
//
//	vnetman up -c vnet.yaml          Create and bring up the topology
//	vnetman down                     Bring interfaces down (keeps them)
//	vnetman destroy                  Delete owned interfaces
//	vnetman status                   Show live interface state
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vnet-lab/vnetman/pkg/topology"
	"github.com/vnet-lab/vnetman/pkg/util"
	"github.com/vnet-lab/vnetman/pkg/version"
)

var (
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "vnetman",
	Short:             "Single-host virtual network topology manager",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `vnetman converges live kernel interface state to a declared topology.

It creates switch bridges and veth links, drops their egress traffic so the
lab cannot reach the real network, and optionally attaches a packet capture
per bridge. Every command is safe to re-run: reconciliation is idempotent.

  vnetman up -c vnet.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			return util.SetLogLevel("debug")
		}
		return util.SetLogLevel("info")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "topology file (default vnet.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newUpCmd(),
		newDownCmd(),
		newDestroyCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)
}

// requireTopology resolves the topology file from: -c flag > VNETMAN_CONFIG
// env > ./vnet.yaml, then loads and validates it.
func requireTopology() (*topology.Topology, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("VNETMAN_CONFIG")
	}
	if path == "" {
		path = "vnet.yaml"
	}
	return topology.Load(path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Println("vnetman dev build")
				return
			}
			fmt.Println("vnetman " + version.Info())
		},
	}
}
