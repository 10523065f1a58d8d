package vnet

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/vnet-lab/vnetman/pkg/util"
)

// NetlinkInspector reads live link state through the netlink socket, with
// bridge STP state read from sysfs (the bridge attribute netlink does not
// expose for reading here).
type NetlinkInspector struct{}

// Exists reports whether a link with the given name is present.
func (NetlinkInspector) Exists(name string) bool {
	_, err := netlink.LinkByName(name)
	return err == nil
}

// Describe returns the live view of a named interface. A missing interface
// yields Exists false with a nil error.
func (ni NetlinkInspector) Describe(name string) (LiveInterface, error) {
	li := LiveInterface{Name: name}

	link, err := netlink.LinkByName(name)
	if err != nil {
		if isNotFound(err) {
			return li, nil
		}
		return li, fmt.Errorf("vnet: describe %s: %w", name, err)
	}

	attrs := link.Attrs()
	li.Exists = true
	li.OperState = operState(attrs)
	li.MAC = attrs.HardwareAddr.String()

	if attrs.MasterIndex != 0 {
		li.Master = nameByIndex(attrs.MasterIndex)
	}

	switch link.(type) {
	case *netlink.Veth:
		// IFLA_LINK of a veth is its pair partner.
		if attrs.ParentIndex != 0 {
			li.Peer = nameByIndex(attrs.ParentIndex)
		}
	case *netlink.Bridge:
		if stp, err := readBridgeSTP(name); err == nil {
			li.STP = &stp
		}
	}

	return li, nil
}

// operState maps kernel state to the status column value. A bridge with no
// active ports reports IF_OPER_UNKNOWN even when administratively up, so
// fall back to the admin flag in that case.
func operState(attrs *netlink.LinkAttrs) string {
	switch attrs.OperState {
	case netlink.OperUp:
		return "up"
	case netlink.OperDown, netlink.OperLowerLayerDown:
		return "down"
	}
	if attrs.Flags&net.Flags(unix.IFF_UP) != 0 {
		return "up"
	}
	return "down"
}

func nameByIndex(index int) string {
	link, err := netlink.LinkByIndex(index)
	if err != nil {
		return ""
	}
	return link.Attrs().Name
}

func isNotFound(err error) bool {
	_, ok := err.(netlink.LinkNotFoundError)
	return ok
}

// NetlinkMutator applies link changes through the netlink socket.
type NetlinkMutator struct{}

// CreateBridge adds a bridge link.
func (NetlinkMutator) CreateBridge(name string) error {
	br := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: name}}
	if err := netlink.LinkAdd(br); err != nil {
		return fmt.Errorf("vnet: create bridge %s: %w", name, err)
	}
	return nil
}

// CreateVethPair adds a veth link together with its peer.
func (NetlinkMutator) CreateVethPair(name, peer string) error {
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		PeerName:  peer,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return fmt.Errorf("vnet: create veth pair %s/%s: %w", name, peer, err)
	}
	return nil
}

// SetUp brings a link operationally up.
func (NetlinkMutator) SetUp(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("vnet: set %s up: %w", name, err)
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("vnet: set %s up: %w", name, err)
	}
	return nil
}

// SetDown brings a link operationally down.
func (NetlinkMutator) SetDown(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("vnet: set %s down: %w", name, err)
	}
	if err := netlink.LinkSetDown(link); err != nil {
		return fmt.Errorf("vnet: set %s down: %w", name, err)
	}
	return nil
}

// SetMaster enslaves a link to a bridge.
func (NetlinkMutator) SetMaster(name, bridge string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("vnet: attach %s to %s: %w", name, bridge, err)
	}
	br, err := netlink.LinkByName(bridge)
	if err != nil {
		return fmt.Errorf("vnet: attach %s to %s: %w", name, bridge, err)
	}
	if err := netlink.LinkSetMaster(link, br); err != nil {
		return fmt.Errorf("vnet: attach %s to %s: %w", name, bridge, err)
	}
	return nil
}

// SetHardwareAddr assigns a MAC address to a link.
func (NetlinkMutator) SetHardwareAddr(name, mac string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("vnet: set %s address: %w", name, err)
	}
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("vnet: set %s address: %w", name, err)
	}
	if err := netlink.LinkSetHardwareAddr(link, hw); err != nil {
		return fmt.Errorf("vnet: set %s address: %w", name, err)
	}
	return nil
}

// SetBridgeSTP toggles spanning tree on a bridge via sysfs; netlink does
// not expose the stp_state attribute.
func (NetlinkMutator) SetBridgeSTP(bridge string, enabled bool) error {
	state := "0"
	if enabled {
		state = "1"
	}
	if err := os.WriteFile(bridgeSTPPath(bridge), []byte(state), 0644); err != nil {
		return fmt.Errorf("vnet: set stp on %s: %w", bridge, err)
	}
	return nil
}

// Delete removes a link. Deleting one half of a veth pair removes both.
func (NetlinkMutator) Delete(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		if isNotFound(err) {
			util.WithInterface(name).Debug("delete: link already gone")
			return nil
		}
		return fmt.Errorf("vnet: delete %s: %w", name, err)
	}
	if err := netlink.LinkDel(link); err != nil {
		return fmt.Errorf("vnet: delete %s: %w", name, err)
	}
	return nil
}

func bridgeSTPPath(bridge string) string {
	return "/sys/class/net/" + bridge + "/bridge/stp_state"
}

func readBridgeSTP(bridge string) (bool, error) {
	data, err := os.ReadFile(bridgeSTPPath(bridge))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(data)) != "0", nil
}
