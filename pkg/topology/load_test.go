package topology

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vnet-lab/vnetman/pkg/util"
)

const validYAML = `
switches: 2
machines:
  router1:
    type: router
    interfaces:
      eth0:
        ipv4: 10.0.0.1/24
        bridge: 0
        routes:
          - to: default
            via: 10.0.0.254
  host1:
    type: host
    interfaces:
      eth0:
        ipv4: 10.0.1.1/24
        ipv6: fd00::1/64
        mac: "02:00:00:00:00:01"
        bridge: 1
veths:
  veth-a:
    bridge: vnet-br0
    peer: veth-a-peer
    stp: true
  veth-ext:
    bridge: vnet-br1
`

func writeTopo(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vnet.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	topo, err := Load(writeTopo(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if topo.Switches != 2 {
		t.Errorf("Switches = %d, want 2", topo.Switches)
	}
	if len(topo.Machines) != 2 || len(topo.Veths) != 2 {
		t.Errorf("machines/veths = %d/%d, want 2/2", len(topo.Machines), len(topo.Veths))
	}

	veth := topo.Veths["veth-a"]
	if veth.Peer != "veth-a-peer" || veth.STP == nil || !*veth.STP {
		t.Errorf("veth-a = %+v, want peer and stp=true", veth)
	}
	if topo.Veths["veth-ext"].Owned() {
		t.Error("unpeered veth must not be owned")
	}

	// Defaults applied.
	if topo.Settings.BridgePrefix != DefaultBridgePrefix {
		t.Errorf("BridgePrefix = %q, want default", topo.Settings.BridgePrefix)
	}
	if topo.Settings.CaptureDir != DefaultCaptureDir {
		t.Errorf("CaptureDir = %q, want default", topo.Settings.CaptureDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeTopo(t, "switches: [not a number")); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Topology)
		wantErr string
	}{
		{
			name:    "negative switches",
			mutate:  func(topo *Topology) { topo.Switches = -1 },
			wantErr: "is negative",
		},
		{
			name: "unsupported machine type",
			mutate: func(topo *Topology) {
				m := topo.Machines["host1"]
				m.Type = "mainframe"
				topo.Machines["host1"] = m
			},
			wantErr: "unsupported type",
		},
		{
			name: "machine without interfaces",
			mutate: func(topo *Topology) {
				topo.Machines["host1"] = Machine{Type: "host"}
			},
			wantErr: "no interfaces declared",
		},
		{
			name: "bad ipv4",
			mutate: func(topo *Topology) {
				setIface(topo, "host1", "eth0", func(i *Interface) { i.IPv4 = "10.0.0.1" }) // no prefix
			},
			wantErr: "invalid ipv4",
		},
		{
			name: "bad ipv6",
			mutate: func(topo *Topology) {
				setIface(topo, "host1", "eth0", func(i *Interface) { i.IPv6 = "fd00::zz/64" })
			},
			wantErr: "invalid ipv6",
		},
		{
			name: "bad mac",
			mutate: func(topo *Topology) {
				setIface(topo, "host1", "eth0", func(i *Interface) { i.MAC = "02:00" })
			},
			wantErr: "invalid mac",
		},
		{
			name: "bridge index out of range",
			mutate: func(topo *Topology) {
				setIface(topo, "host1", "eth0", func(i *Interface) { i.Bridge = 2 })
			},
			wantErr: "out of range",
		},
		{
			name: "route without via",
			mutate: func(topo *Topology) {
				setIface(topo, "host1", "eth0", func(i *Interface) {
					i.Routes = []Route{{To: "10.1.0.0/16"}}
				})
			},
			wantErr: "'via' missing",
		},
		{
			name: "route with bad destination",
			mutate: func(topo *Topology) {
				setIface(topo, "host1", "eth0", func(i *Interface) {
					i.Routes = []Route{{To: "everywhere", Via: "10.0.0.254"}}
				})
			},
			wantErr: "invalid 'to'",
		},
		{
			name: "veth without bridge",
			mutate: func(topo *Topology) {
				topo.Veths["veth-a"] = Veth{Peer: "veth-a-peer"}
			},
			wantErr: "bridge parameter missing",
		},
		{
			name: "veth peering itself",
			mutate: func(topo *Topology) {
				topo.Veths["veth-a"] = Veth{Bridge: "vnet-br0", Peer: "veth-a"}
			},
			wantErr: "peer cannot reference itself",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := validTopo(t)
			tt.mutate(topo)

			err := topo.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *util.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *util.ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAccumulates(t *testing.T) {
	topo := validTopo(t)
	topo.Switches = -1
	topo.Veths["veth-a"] = Veth{Peer: "veth-a"}

	err := topo.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"is negative", "bridge parameter missing", "peer cannot reference itself"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("accumulated error missing %q: %v", want, err)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	topo := validTopo(t)
	topo.ApplyDefaults()

	// router1's eth0 had no MAC; it gets a locally-administered unicast one.
	mac := topo.Machines["router1"].Interfaces["eth0"].MAC
	if mac == "" {
		t.Fatal("missing MAC not autofilled")
	}
	if !strings.HasPrefix(mac, "02:") && !strings.HasPrefix(mac, "06:") &&
		!strings.HasPrefix(mac, "0a:") && !strings.HasPrefix(mac, "0e:") {
		t.Errorf("autofilled MAC %q is not locally administered unicast", mac)
	}

	// host1's declared MAC survives untouched.
	if got := topo.Machines["host1"].Interfaces["eth0"].MAC; got != "02:00:00:00:00:01" {
		t.Errorf("declared MAC rewritten to %q", got)
	}

	// "default" route destinations become 0.0.0.0/0.
	if got := topo.Machines["router1"].Interfaces["eth0"].Routes[0].To; got != "0.0.0.0/0" {
		t.Errorf("default route rewritten to %q, want 0.0.0.0/0", got)
	}
}

func validTopo(t *testing.T) *Topology {
	t.Helper()
	topo, err := Load(writeTopo(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return topo
}

func setIface(topo *Topology, machine, ifname string, f func(*Interface)) {
	m := topo.Machines[machine]
	iface := m.Interfaces[ifname]
	f(&iface)
	m.Interfaces[ifname] = iface
	topo.Machines[machine] = m
}
