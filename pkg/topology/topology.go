// Package topology defines the declarative description of a virtual network
// lab: switch bridges, veth links, and the machines that consume them.
//
// A topology is supplied fresh on every invocation and is immutable for the
// duration of one reconciliation pass. Nothing in this package touches
// kernel state.
package topology

import (
	"fmt"
	"sort"
)

// Default settings applied when the config file leaves them out.
const (
	DefaultBridgePrefix = "vnet-br"
	DefaultCaptureDir   = "/tmp/vnet-captures"
)

// Topology is the desired state for one lab host.
type Topology struct {
	// Switches is the number of bridge interfaces to ensure, named
	// <prefix>0 .. <prefix>N-1.
	Switches int `yaml:"switches"`

	// Machines declares the lab machines and which bridge each of their
	// interfaces plugs into. The machines themselves are managed by an
	// external runtime; vnetman only uses these declarations for the
	// "used by" column of the status view.
	Machines map[string]Machine `yaml:"machines"`

	// Veths maps veth interface names to their bridge/peer/stp attributes.
	Veths map[string]Veth `yaml:"veths"`

	Settings Settings `yaml:"settings"`
}

// Machine is one lab machine declaration.
type Machine struct {
	Type       string               `yaml:"type"`
	Interfaces map[string]Interface `yaml:"interfaces"`
}

// Interface is one machine interface declaration. Bridge is the index of
// the switch bridge the interface connects to.
type Interface struct {
	IPv4   string  `yaml:"ipv4"`
	IPv6   string  `yaml:"ipv6"`
	MAC    string  `yaml:"mac"`
	Bridge int     `yaml:"bridge"`
	Routes []Route `yaml:"routes"`
}

// Route is a static route pushed into a machine.
type Route struct {
	To  string `yaml:"to"`
	Via string `yaml:"via"`
}

// Veth describes one veth interface. A veth without a peer is half of a
// pair whose other half is created by a cooperating actor (typically a
// container runtime); vnetman attaches and configures it but never creates
// or deletes it.
type Veth struct {
	Bridge string `yaml:"bridge"`
	Peer   string `yaml:"peer"`
	STP    *bool  `yaml:"stp"`
}

// Owned reports whether vnetman owns the full lifecycle of this veth.
// Presence of a peer is the ownership convention: only peered veths are
// created on bring-up and deleted on destroy.
func (v Veth) Owned() bool {
	return v.Peer != ""
}

// Settings holds host-level conventions.
type Settings struct {
	BridgePrefix string `yaml:"bridge_prefix"`
	CaptureDir   string `yaml:"capture_dir"`
}

// BridgeName returns the interface name of switch bridge index i.
func (t *Topology) BridgeName(i int) string {
	return fmt.Sprintf("%s%d", t.Settings.BridgePrefix, i)
}

// BridgeNames returns the names of all switch bridges, in index order.
func (t *Topology) BridgeNames() []string {
	names := make([]string, 0, t.Switches)
	for i := 0; i < t.Switches; i++ {
		names = append(names, t.BridgeName(i))
	}
	return names
}

// VethNames returns the declared veth names in sorted order, so every
// reconciliation pass visits them deterministically.
func (t *Topology) VethNames() []string {
	names := make([]string, 0, len(t.Veths))
	for name := range t.Veths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConsumersOf returns the sorted names of machines with an interface on
// switch bridge index. Display only; reconciliation never consults it.
func (t *Topology) ConsumersOf(index int) []string {
	var machines []string
	for name, m := range t.Machines {
		for _, iface := range m.Interfaces {
			if iface.Bridge == index {
				machines = append(machines, name)
				break
			}
		}
	}
	sort.Strings(machines)
	return machines
}
