package util

import (
	"net"
	"testing"
)

func TestRandomMAC(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		mac := RandomMAC()
		if len(mac) != 6 {
			t.Fatalf("len = %d, want 6", len(mac))
		}
		if mac[0]&0x01 != 0 {
			t.Errorf("%s is multicast", mac)
		}
		if mac[0]&0x02 == 0 {
			t.Errorf("%s is not locally administered", mac)
		}
		seen[mac.String()] = true
	}
	// 100 draws from a 46-bit space colliding would mean the generator is
	// broken, not unlucky.
	if len(seen) < 100 {
		t.Errorf("only %d distinct addresses in 100 draws", len(seen))
	}
}

func TestFormatMAC(t *testing.T) {
	mac := net.HardwareAddr{0x02, 0x0a, 0xbb, 0xcc, 0xdd, 0xee}
	if got, want := FormatMAC(mac), "02:0a:bb:cc:dd:ee"; got != want {
		t.Errorf("FormatMAC = %q, want %q", got, want)
	}
	if got := FormatMAC(net.HardwareAddr{0x02}); got != "" {
		t.Errorf("FormatMAC on short address = %q, want empty", got)
	}
	if got := FormatMAC(nil); got != "" {
		t.Errorf("FormatMAC(nil) = %q, want empty", got)
	}
}

func TestFormatMACRoundTrip(t *testing.T) {
	s := FormatMAC(RandomMAC())
	if _, err := net.ParseMAC(s); err != nil {
		t.Errorf("generated address %q does not parse: %v", s, err)
	}
}
