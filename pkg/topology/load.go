package topology

import (
	"fmt"
	"net"
	"net/netip"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vnet-lab/vnetman/pkg/util"
)

// SupportedMachineTypes are the machine types the lab runtime knows how to
// start. Validation rejects anything else.
var SupportedMachineTypes = []string{"host", "router", "bridge"}

// Load parses a topology YAML file, validates it, and applies defaults.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}

	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("topology: parse %s: %w", path, err)
	}

	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	topo.ApplyDefaults()

	return &topo, nil
}

// Validate checks the topology for semantic errors. All problems are
// accumulated and returned as a single ValidationError so the user can fix
// the whole file in one go.
func (t *Topology) Validate() error {
	v := &util.ValidationBuilder{}

	if t.Switches < 0 {
		v.AddErrorf("switches: %d is negative", t.Switches)
	}

	for name, m := range t.Machines {
		t.validateMachine(v, name, m)
	}
	for name, veth := range t.Veths {
		t.validateVeth(v, name, veth)
	}

	return v.Build()
}

func (t *Topology) validateMachine(v *util.ValidationBuilder, name string, m Machine) {
	if !isSupportedType(m.Type) {
		v.AddErrorf("machine %s: unsupported type %q (supported: %v)", name, m.Type, SupportedMachineTypes)
	}
	if len(m.Interfaces) == 0 {
		v.AddErrorf("machine %s: no interfaces declared", name)
	}
	for ifname, iface := range m.Interfaces {
		if iface.IPv4 != "" {
			if _, err := netip.ParsePrefix(iface.IPv4); err != nil {
				v.AddErrorf("machine %s interface %s: invalid ipv4 %q: %v", name, ifname, iface.IPv4, err)
			}
		}
		if iface.IPv6 != "" {
			if _, err := netip.ParsePrefix(iface.IPv6); err != nil {
				v.AddErrorf("machine %s interface %s: invalid ipv6 %q: %v", name, ifname, iface.IPv6, err)
			}
		}
		if iface.MAC != "" {
			if hw, err := net.ParseMAC(iface.MAC); err != nil || len(hw) != 6 {
				v.AddErrorf("machine %s interface %s: invalid mac %q", name, ifname, iface.MAC)
			}
		}
		if iface.Bridge < 0 || iface.Bridge > t.Switches-1 {
			v.AddErrorf("machine %s interface %s: bridge %d out of range [0, %d)", name, ifname, iface.Bridge, t.Switches)
		}
		for i, route := range iface.Routes {
			if route.To == "" {
				v.AddErrorf("machine %s interface %s route %d: 'to' missing", name, ifname, i+1)
			} else if route.To != "default" {
				if _, err := netip.ParsePrefix(route.To); err != nil {
					v.AddErrorf("machine %s interface %s route %d: invalid 'to' %q", name, ifname, i+1, route.To)
				}
			}
			if route.Via == "" {
				v.AddErrorf("machine %s interface %s route %d: 'via' missing", name, ifname, i+1)
			} else if _, err := netip.ParseAddr(route.Via); err != nil {
				v.AddErrorf("machine %s interface %s route %d: invalid 'via' %q", name, ifname, i+1, route.Via)
			}
		}
	}
}

func (t *Topology) validateVeth(v *util.ValidationBuilder, name string, veth Veth) {
	if veth.Bridge == "" {
		v.AddErrorf("veth %s: bridge parameter missing", name)
	}
	// A missing peer is fine: the other half is assumed to be created by a
	// cooperating actor, e.g. inside a container namespace.
	if veth.Peer == name {
		v.AddErrorf("veth %s: peer cannot reference itself", name)
	}
}

// ApplyDefaults fills settings defaults, autofills missing machine
// interface MACs with random locally-administered addresses, and rewrites
// "default" route destinations to 0.0.0.0/0.
func (t *Topology) ApplyDefaults() {
	if t.Settings.BridgePrefix == "" {
		t.Settings.BridgePrefix = DefaultBridgePrefix
	}
	if t.Settings.CaptureDir == "" {
		t.Settings.CaptureDir = DefaultCaptureDir
	}

	for name, m := range t.Machines {
		for ifname, iface := range m.Interfaces {
			if iface.MAC == "" {
				iface.MAC = util.FormatMAC(util.RandomMAC())
			}
			for i, route := range iface.Routes {
				if route.To == "default" {
					iface.Routes[i].To = "0.0.0.0/0"
				}
			}
			m.Interfaces[ifname] = iface
		}
		t.Machines[name] = m
	}
}

func isSupportedType(typ string) bool {
	for _, t := range SupportedMachineTypes {
		if typ == t {
			return true
		}
	}
	return false
}
