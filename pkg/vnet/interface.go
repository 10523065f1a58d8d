// Package vnet converges live kernel interface state to a declared
// topology: switch bridges, veth links, per-bridge isolation rules, and
// optional packet captures.
//
// The kernel interface table is the single source of truth. Nothing in
// this package caches interface state; every decision re-queries the
// kernel through the Inspector, so a reconciliation pass is safe to re-run
// at any time against any partial prior state. Concurrent passes from
// separate processes are not safe and must be serialized by the caller.
package vnet

// LiveInterface is a read-through view of one kernel interface. It is
// recomputed on every query and never cached.
type LiveInterface struct {
	Name      string
	Exists    bool
	OperState string
	MAC       string
	STP       *bool  // non-nil for bridges only
	Master    string // name of the master bridge, "" when none
	Peer      string // veth peer name, "" when not a veth or unresolvable
}

// Inspector answers read-only queries against live kernel interface state.
type Inspector interface {
	// Exists reports whether a link with the given name is present.
	Exists(name string) bool

	// Describe returns the live view of a named interface. A missing
	// interface is not an error: the returned record has Exists false
	// and zero-value fields.
	Describe(name string) (LiveInterface, error)
}

// Mutator applies targeted link changes. Implementations are thin
// primitives with no idempotence logic; precondition checks belong to the
// Manager.
type Mutator interface {
	CreateBridge(name string) error
	CreateVethPair(name, peer string) error
	SetUp(name string) error
	SetDown(name string) error
	SetMaster(name, bridge string) error
	SetHardwareAddr(name, mac string) error
	SetBridgeSTP(bridge string, enabled bool) error
	Delete(name string) error
}

// RuleEnforcer manages the firewall rules that keep switch bridges from
// reaching the outside world.
type RuleEnforcer interface {
	// EnsureIsolation guarantees an egress-drop rule for ifname,
	// inserting one only when no exact match already exists.
	EnsureIsolation(ifname string) error
}

// CaptureSupervisor manages per-interface packet capture processes. The
// processes are detached; existence is re-derived from the live process
// table on every query, never tracked.
type CaptureSupervisor interface {
	Running(ifname string) (bool, error)
	// Ensure starts a detached capture on ifname unless one is already
	// running. The capture's lifetime is not monitored afterwards.
	Ensure(ifname string) error
}
