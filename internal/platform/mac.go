// If you are AI: This file resolves the MAC address reported by serverinfo.
// Clients use it for wake-on-LAN, so it must belong to the serving interface.

package platform

import (
	"net"
)

// placeholderMAC is returned when no interface matches; clients know to
// ignore it.
const placeholderMAC = "00:00:00:00:00:00"

// MACForLocalAddress resolves the MAC of the interface owning the given
// local IP address.
func MACForLocalAddress(addr string) string {
	target := net.ParseIP(addr)
	if target == nil {
		return placeholderMAC
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return placeholderMAC
	}

	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ipNet.IP.Equal(target) && len(iface.HardwareAddr) > 0 {
				return iface.HardwareAddr.String()
			}
		}
	}
	return placeholderMAC
}
