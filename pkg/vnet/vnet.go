package vnet

import (
	"fmt"

	"github.com/vnet-lab/vnetman/pkg/topology"
	"github.com/vnet-lab/vnetman/pkg/util"
)

// Manager drives the live kernel state toward a desired topology. Each of
// its reconciliation passes is a strictly sequential batch over the
// topology's interface names; a failure on one interface is recorded and
// the batch carries on, so a re-run after fixing the root cause converges
// the stragglers. Re-running is the retry mechanism — there is no backoff
// layer.
type Manager struct {
	topo      *topology.Topology
	inspector Inspector
	mutator   Mutator
	rules     RuleEnforcer
	captures  CaptureSupervisor
}

// NewManager wires a Manager with the real netlink, nftables, and tcpdump
// backends.
func NewManager(topo *topology.Topology) (*Manager, error) {
	rules, err := NewNFTEnforcer()
	if err != nil {
		return nil, err
	}
	return NewManagerWith(topo,
		NetlinkInspector{},
		NetlinkMutator{},
		rules,
		&TcpdumpSupervisor{Dir: topo.Settings.CaptureDir},
	), nil
}

// NewManagerWith wires a Manager with injected backends.
func NewManagerWith(topo *topology.Topology, inspector Inspector, mutator Mutator, rules RuleEnforcer, captures CaptureSupervisor) *Manager {
	return &Manager{
		topo:      topo,
		inspector: inspector,
		mutator:   mutator,
		rules:     rules,
		captures:  captures,
	}
}

// OpResult is the outcome of one operation on one interface.
type OpResult struct {
	Interface string
	Op        string
	Err       error
}

// BatchResult accumulates per-interface outcomes of one reconciliation
// pass. Failures never abort the pass; they are collected here.
type BatchResult struct {
	Results []OpResult
}

func (b *BatchResult) record(ifname, op string, err error) {
	b.Results = append(b.Results, OpResult{Interface: ifname, Op: op, Err: err})
}

// OK reports whether every operation in the batch succeeded.
func (b *BatchResult) OK() bool {
	return len(b.Failed()) == 0
}

// Failed returns the operations that reported errors, in batch order.
func (b *BatchResult) Failed() []OpResult {
	var failed []OpResult
	for _, r := range b.Results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err returns nil when the batch fully succeeded, or a summary error.
func (b *BatchResult) Err() error {
	failed := b.Failed()
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("vnet: %d of %d operations failed", len(failed), len(b.Results))
}

// BringUp converges every declared interface to the up state: bridges
// first (create, isolation rule, up, optional capture), then veths (bridge
// STP, pair creation, attach, initialize). Safe to re-run at any time; on
// an already-converged host every step is a no-op.
func (m *Manager) BringUp(withCapture bool) *BatchResult {
	res := &BatchResult{}

	for _, ifname := range m.topo.BridgeNames() {
		if err := m.ensureBridge(ifname); err != nil {
			util.WithInterface(ifname).Errorf("ensure bridge: %v", err)
			res.record(ifname, "ensure-bridge", err)
			continue
		}

		// Isolation failure is reported but does not block bringing the
		// bridge up: an unisolated-but-working lab beats a dead one, and
		// the next pass retries the rule.
		if err := m.rules.EnsureIsolation(ifname); err != nil {
			util.WithInterface(ifname).Errorf("isolation rule: %v", err)
			res.record(ifname, "isolation-rule", err)
		}

		if err := m.ensureUp(ifname); err != nil {
			util.WithInterface(ifname).Errorf("set up: %v", err)
			res.record(ifname, "set-up", err)
			continue
		}

		if withCapture {
			if err := m.captures.Ensure(ifname); err != nil {
				util.WithInterface(ifname).Errorf("ensure capture: %v", err)
				res.record(ifname, "ensure-capture", err)
			}
		}

		res.record(ifname, "up", nil)
	}

	if len(m.topo.Veths) > 0 {
		util.Info("veth config found, ensuring veth interfaces")
		m.bringUpVeths(res)
	}

	return res
}

// bringUpVeths ensures every declared veth. STP is applied to the bridge
// before attaching: an STP flip resets port forwarding state, so flipping
// after attach would bounce a port that was just brought up.
func (m *Manager) bringUpVeths(res *BatchResult) {
	for _, name := range m.topo.VethNames() {
		spec := m.topo.Veths[name]

		if spec.STP != nil {
			verb := "disabling"
			if *spec.STP {
				verb = "enabling"
			}
			util.WithInterface(spec.Bridge).Infof("%s spanning tree", verb)
			if err := m.mutator.SetBridgeSTP(spec.Bridge, *spec.STP); err != nil {
				util.WithInterface(spec.Bridge).Errorf("set stp: %v", err)
				res.record(name, "bridge-stp", err)
			}
		}

		if err := m.ensureVethPair(name, spec); err != nil {
			util.WithInterface(name).Errorf("ensure veth pair: %v", err)
			res.record(name, "ensure-veth-pair", err)
			continue
		}

		if err := m.attachToBridge(name, spec.Bridge); err != nil {
			util.WithInterface(name).Errorf("attach to bridge: %v", err)
			res.record(name, "attach-to-bridge", err)
			continue
		}

		if err := m.initializeInterface(name); err != nil {
			util.WithInterface(name).Errorf("initialize: %v", err)
			res.record(name, "initialize", err)
			continue
		}

		res.record(name, "up", nil)
	}
}

// BringDown sets every declared interface operationally down, veths before
// bridges. Nothing is deleted, and isolation rules and capture processes
// are deliberately left alone.
func (m *Manager) BringDown() *BatchResult {
	res := &BatchResult{}

	for _, name := range m.topo.VethNames() {
		if !m.inspector.Exists(name) {
			util.Warnf("tried to bring down veth interface %s, but the interface doesn't exist", name)
			continue
		}
		util.WithInterface(name).Info("bringing down veth interface")
		if err := m.mutator.SetDown(name); err != nil {
			util.WithInterface(name).Errorf("set down: %v", err)
			res.record(name, "set-down", err)
			continue
		}
		res.record(name, "down", nil)
	}

	for _, ifname := range m.topo.BridgeNames() {
		if !m.inspector.Exists(ifname) {
			util.Warnf("tried to bring down bridge interface %s, but the interface doesn't exist", ifname)
			continue
		}
		util.WithInterface(ifname).Info("bringing down bridge interface")
		if err := m.mutator.SetDown(ifname); err != nil {
			util.WithInterface(ifname).Errorf("set down: %v", err)
			res.record(ifname, "set-down", err)
			continue
		}
		res.record(ifname, "down", nil)
	}

	return res
}

// Delete removes the declared interfaces: owned veths first (a veth
// without a peer belongs to another actor and is left alone), then
// bridges. Missing interfaces are logged and skipped. Isolation rules
// survive deletion on purpose.
func (m *Manager) Delete() *BatchResult {
	res := &BatchResult{}

	for _, name := range m.topo.VethNames() {
		spec := m.topo.Veths[name]
		if !spec.Owned() {
			util.WithInterface(name).Debug("veth has no peer, not owned for deletion, leaving alone")
			continue
		}
		if !m.inspector.Exists(name) {
			util.Infof("tried to delete veth interface %s, but it is already gone. That's okay", name)
			continue
		}
		util.WithInterface(name).Info("deleting veth interface")
		if err := m.mutator.Delete(name); err != nil {
			util.WithInterface(name).Errorf("delete: %v", err)
			res.record(name, "delete", err)
			continue
		}
		res.record(name, "deleted", nil)
	}

	for _, ifname := range m.topo.BridgeNames() {
		if !m.inspector.Exists(ifname) {
			util.Infof("tried to delete bridge interface %s, but it is already gone. That's okay", ifname)
			continue
		}
		util.WithInterface(ifname).Info("deleting bridge interface")
		if err := m.mutator.Delete(ifname); err != nil {
			util.WithInterface(ifname).Errorf("delete: %v", err)
			res.record(ifname, "delete", err)
			continue
		}
		res.record(ifname, "deleted", nil)
	}

	return res
}

// ensureBridge creates and initializes a bridge if absent. An existing
// bridge is left exactly as found.
func (m *Manager) ensureBridge(name string) error {
	if m.inspector.Exists(name) {
		util.WithInterface(name).Debug("bridge already exists, skipping creation")
		return nil
	}
	util.WithInterface(name).Info("creating bridge interface")
	if err := m.mutator.CreateBridge(name); err != nil {
		return err
	}
	return m.initializeInterface(name)
}

// ensureUp brings an interface up only when it is not already up, so a
// converged pass issues no mutating calls at all.
func (m *Manager) ensureUp(name string) error {
	li, err := m.inspector.Describe(name)
	if err != nil {
		return err
	}
	if li.Exists && li.OperState == "up" {
		util.WithInterface(name).Debug("already up")
		return nil
	}
	return m.mutator.SetUp(name)
}

// ensureVethPair creates name and its peer if name is absent. A veth
// declared without a peer is never created here: its other half is owned
// by a cooperating actor, and this side only needs attach + initialize.
func (m *Manager) ensureVethPair(name string, spec topology.Veth) error {
	if !spec.Owned() {
		util.WithInterface(name).Debug("no peer declared, skipping pair creation")
		return nil
	}
	if m.inspector.Exists(name) {
		util.WithInterface(name).Debug("veth already exists, skipping creation")
		return nil
	}
	util.WithInterface(name).Infof("creating veth pair with peer %s", spec.Peer)
	return m.mutator.CreateVethPair(name, spec.Peer)
}

// attachToBridge enslaves an interface to its bridge. A missing bridge is
// a real desired-state mismatch and is reported, but it only fails this
// interface, not the batch.
func (m *Manager) attachToBridge(name, bridge string) error {
	if !m.inspector.Exists(bridge) {
		return util.NewPreconditionError("attach-to-bridge", name, "bridge exists", bridge+" not found")
	}
	util.WithInterface(name).Debugf("attaching to bridge %s", bridge)
	return m.mutator.SetMaster(name, bridge)
}

// initializeInterface brings an interface to a known baseline: down, fresh
// random MAC, up. Re-running re-randomizes the MAC; that is the intended
// behavior, not drift.
func (m *Manager) initializeInterface(name string) error {
	util.WithInterface(name).Debug("initializing: down, new address, up")
	if err := m.mutator.SetDown(name); err != nil {
		return err
	}
	if err := m.mutator.SetHardwareAddr(name, util.FormatMAC(util.RandomMAC())); err != nil {
		return err
	}
	return m.mutator.SetUp(name)
}
