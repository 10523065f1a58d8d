package vnet

import (
	"fmt"
	"io"

	"github.com/vnet-lab/vnetman/pkg/cli"
	"github.com/vnet-lab/vnetman/pkg/util"
)

const na = "NA"

// WriteStatus renders the current topology state as tables. Every cell is
// recomputed from the kernel and the process table; the topology is
// consulted only for the interface names to look up and the "used by"
// column.
func (m *Manager) WriteStatus(w io.Writer) error {
	util.Info("listing bridge interface statuses")

	t := cli.NewTable(w, "NAME", "STATUS", "L2_ADDR", "CAPTURE", "STP", "USED_BY")
	for i, ifname := range m.topo.BridgeNames() {
		usedBy := cli.JoinOrDash(m.topo.ConsumersOf(i))

		li, err := m.inspector.Describe(ifname)
		if err != nil {
			return err
		}
		if !li.Exists {
			t.Row(ifname, na, na, na, na, usedBy)
			continue
		}

		capture := na
		if running, err := m.captures.Running(ifname); err == nil {
			capture = fmt.Sprintf("%t", running)
		}
		stp := na
		if li.STP != nil {
			stp = fmt.Sprintf("%t", *li.STP)
		}
		t.Row(ifname, li.OperState, li.MAC, capture, stp, usedBy)
	}
	t.Flush()

	if len(m.topo.Veths) == 0 {
		return nil
	}

	util.Info("listing veth interface statuses")
	fmt.Fprintln(w)

	vt := cli.NewTable(w, "NAME", "STATUS", "L2_ADDR", "PEER", "MASTER")
	for _, name := range m.topo.VethNames() {
		spec := m.topo.Veths[name]

		li, err := m.inspector.Describe(name)
		if err != nil {
			return err
		}
		if !li.Exists {
			// The declared bridge stands in for the master column so the
			// reader can still see where the veth would plug in.
			vt.Row(name, na, na, na, spec.Bridge)
			continue
		}

		peer := li.Peer
		if peer == "" {
			peer = na
		}
		master := li.Master
		if master == "" {
			master = na
		}
		vt.Row(name, li.OperState, li.MAC, peer, master)
	}
	vt.Flush()

	return nil
}
