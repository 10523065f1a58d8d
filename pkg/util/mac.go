package util

import (
	"crypto/rand"
	"fmt"
	"net"
)

// RandomMAC generates a random locally-administered unicast MAC address.
// A fresh address is generated on every call; interfaces that are
// re-initialized get a new MAC each time.
func RandomMAC() net.HardwareAddr {
	buf := make([]byte, 6)
	rand.Read(buf)
	// Clear the multicast bit, set the locally-administered bit.
	buf[0] = (buf[0] &^ 0x01) | 0x02
	return net.HardwareAddr(buf)
}

// FormatMAC renders a MAC address as the usual colon-separated hex string,
// or "" for addresses that are not 6 bytes.
func FormatMAC(mac net.HardwareAddr) string {
	if len(mac) != 6 {
		return ""
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
