// Package server discovers the host's reachable addresses so the startup
// log can tell LAN users where to point their browsers.
package server

import "net"

// LocalAddresses returns the non-loopback IPv4 addresses of this host.
// Errors and hosts without any such address yield an empty slice; the
// caller falls back to logging the listen address alone.
func LocalAddresses() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var out []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			out = append(out, ip4.String())
		}
	}
	return out
}
