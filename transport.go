package netmount

import (
	"net"
	"time"
)

// Peer identifies where a datagram came from (or should be sent), in the
// form the Engine's reply cache and rate limiter key on: a raw IPv4
// address plus port. Both UDP and SLIP-over-serial transports produce one
// of these per received packet.
type Peer struct {
	IP   [4]byte
	Port uint16
}

// UDPAddr renders p as a *net.UDPAddr, for transports and tests that want
// to work with the standard library's address type.
func (p Peer) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IP(p.IP[:]), Port: int(p.Port)}
}

func (p Peer) String() string {
	return p.UDPAddr().String()
}

// Transport abstracts the link a datagram arrives over and must be
// answered on: either a real UDP socket, or IP/UDP framed over SLIP on a
// serial line. The server's main loop only ever sees these four methods.
type Transport interface {
	// WaitForData blocks until a datagram is ready to Recv, the deadline
	// passes, or SignalStop is called, whichever comes first.
	WaitForData(deadline time.Duration) (ready bool, err error)
	// Recv returns the next pending datagram and the peer it arrived from.
	Recv() (peer Peer, data []byte, err error)
	// Send transmits data to peer.
	Send(peer Peer, data []byte) error
	// SignalStop unblocks a pending WaitForData so the server loop can
	// check for shutdown promptly instead of waiting out its deadline.
	SignalStop()
	// Close releases the underlying socket or serial port.
	Close() error
}
