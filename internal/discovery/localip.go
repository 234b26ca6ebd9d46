package discovery

import "net"

// LocalIP returns the machine's first non-loopback IPv4 address, the one a
// LAN peer would use to reach this server. Falls back to 127.0.0.1 when the
// interfaces cannot be enumerated or only loopback is up.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
