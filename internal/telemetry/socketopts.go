package telemetry

import (
	"net"

	"golang.org/x/net/ipv4"
)

// setSocketOptions applies multicast TTL and loopback settings to a
// dialed UDP socket via golang.org/x/net/ipv4, since the standard
// library's net.UDPConn exposes neither knob directly.
func setSocketOptions(conn *net.UDPConn, ttl int, loopback bool) error {
	pc := ipv4.NewPacketConn(conn)
	if ttl > 0 {
		if err := pc.SetMulticastTTL(ttl); err != nil {
			return err
		}
	}
	return pc.SetMulticastLoopback(loopback)
}
