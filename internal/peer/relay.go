package peer

import (
	"net"
	"strings"
)

// cgnatBlock is 100.64.0.0/10, used by carrier NATs, Cloudflare WARP and
// Tailscale. Direct paths from inside it rarely work.
var cgnatBlock = &net.IPNet{
	IP:   net.IPv4(100, 64, 0, 0),
	Mask: net.CIDRMask(10, 32),
}

var tunnelMarkers = []string{"tun", "tap", "wg", "ppp", "warp"}

// RestrictedNetwork reports whether this host looks like it sits behind a
// VPN or CGNAT, in which case media should go through TURN.
func RestrictedNetwork() bool {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) {
			return true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if isCGNAT(addrIP(addr)) {
				return true
			}
		}
	}
	return false
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, marker := range tunnelMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

func isCGNAT(ip net.IP) bool {
	return ip != nil && cgnatBlock.Contains(ip)
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
