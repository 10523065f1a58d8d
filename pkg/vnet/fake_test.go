package vnet

import (
	"fmt"
	"sort"
)

// fakeLink is one entry in the fake kernel's interface table.
type fakeLink struct {
	kind   string // "bridge", "veth", or "ext"
	up     bool
	mac    string
	master string
	peer   string
	stp    bool
}

// fakeKernel implements Inspector and Mutator over an in-memory interface
// table, recording every mutating call in order.
type fakeKernel struct {
	links  map[string]*fakeLink
	calls  []string
	failOn map[string]error // keyed by the formatted call
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		links:  make(map[string]*fakeLink),
		failOn: make(map[string]error),
	}
}

func (k *fakeKernel) mutate(call string) error {
	k.calls = append(k.calls, call)
	return k.failOn[call]
}

func (k *fakeKernel) Exists(name string) bool {
	_, ok := k.links[name]
	return ok
}

func (k *fakeKernel) Describe(name string) (LiveInterface, error) {
	li := LiveInterface{Name: name}
	l, ok := k.links[name]
	if !ok {
		return li, nil
	}
	li.Exists = true
	li.OperState = "down"
	if l.up {
		li.OperState = "up"
	}
	li.MAC = l.mac
	li.Master = l.master
	li.Peer = l.peer
	if l.kind == "bridge" {
		stp := l.stp
		li.STP = &stp
	}
	return li, nil
}

func (k *fakeKernel) CreateBridge(name string) error {
	if err := k.mutate("create-bridge " + name); err != nil {
		return err
	}
	k.links[name] = &fakeLink{kind: "bridge"}
	return nil
}

func (k *fakeKernel) CreateVethPair(name, peer string) error {
	if err := k.mutate(fmt.Sprintf("create-veth %s %s", name, peer)); err != nil {
		return err
	}
	k.links[name] = &fakeLink{kind: "veth", peer: peer}
	k.links[peer] = &fakeLink{kind: "veth", peer: name}
	return nil
}

func (k *fakeKernel) SetUp(name string) error {
	if err := k.mutate("set-up " + name); err != nil {
		return err
	}
	if l, ok := k.links[name]; ok {
		l.up = true
		return nil
	}
	return fmt.Errorf("set-up %s: no such link", name)
}

func (k *fakeKernel) SetDown(name string) error {
	if err := k.mutate("set-down " + name); err != nil {
		return err
	}
	if l, ok := k.links[name]; ok {
		l.up = false
		return nil
	}
	return fmt.Errorf("set-down %s: no such link", name)
}

func (k *fakeKernel) SetMaster(name, bridge string) error {
	if err := k.mutate(fmt.Sprintf("set-master %s %s", name, bridge)); err != nil {
		return err
	}
	l, ok := k.links[name]
	if !ok {
		return fmt.Errorf("set-master %s: no such link", name)
	}
	l.master = bridge
	return nil
}

func (k *fakeKernel) SetHardwareAddr(name, mac string) error {
	if err := k.mutate("set-addr " + name); err != nil {
		return err
	}
	l, ok := k.links[name]
	if !ok {
		return fmt.Errorf("set-addr %s: no such link", name)
	}
	l.mac = mac
	return nil
}

func (k *fakeKernel) SetBridgeSTP(bridge string, enabled bool) error {
	if err := k.mutate(fmt.Sprintf("set-stp %s %t", bridge, enabled)); err != nil {
		return err
	}
	l, ok := k.links[bridge]
	if !ok {
		return fmt.Errorf("set-stp %s: no such bridge", bridge)
	}
	l.stp = enabled
	return nil
}

func (k *fakeKernel) Delete(name string) error {
	if err := k.mutate("delete " + name); err != nil {
		return err
	}
	l, ok := k.links[name]
	if !ok {
		return fmt.Errorf("delete %s: no such link", name)
	}
	// Deleting a veth removes its pair partner too.
	if l.kind == "veth" && l.peer != "" {
		delete(k.links, l.peer)
	}
	delete(k.links, name)
	return nil
}

// linkNames returns the fake table's interface names, sorted.
func (k *fakeKernel) linkNames() []string {
	var names []string
	for name := range k.links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// callIndex returns the position of the first recorded call equal to s, or -1.
func (k *fakeKernel) callIndex(s string) int {
	for i, c := range k.calls {
		if c == s {
			return i
		}
	}
	return -1
}

// fakeRules records EnsureIsolation calls and the set of isolated
// interfaces.
type fakeRules struct {
	ensured []string
	rules   map[string]bool
	failOn  map[string]error
}

func newFakeRules() *fakeRules {
	return &fakeRules{rules: make(map[string]bool), failOn: make(map[string]error)}
}

func (r *fakeRules) EnsureIsolation(ifname string) error {
	r.ensured = append(r.ensured, ifname)
	if err := r.failOn[ifname]; err != nil {
		return err
	}
	r.rules[ifname] = true
	return nil
}

// fakeCaptures records Ensure calls; Running reflects prior Ensures.
type fakeCaptures struct {
	running map[string]bool
	ensured []string
	failOn  map[string]error
}

func newFakeCaptures() *fakeCaptures {
	return &fakeCaptures{running: make(map[string]bool), failOn: make(map[string]error)}
}

func (c *fakeCaptures) Running(ifname string) (bool, error) {
	return c.running[ifname], nil
}

func (c *fakeCaptures) Ensure(ifname string) error {
	if c.running[ifname] {
		return nil
	}
	c.ensured = append(c.ensured, ifname)
	if err := c.failOn[ifname]; err != nil {
		return err
	}
	c.running[ifname] = true
	return nil
}
