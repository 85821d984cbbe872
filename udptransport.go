package netmount

import (
	"errors"
	"net"
	"time"
)

// UDPTransport is the ordinary Transport: one UDP socket, read with a
// bounded deadline so the server loop can wake up periodically even with
// no traffic (to run idle housekeeping like PeerLimiter.Cleanup).
type UDPTransport struct {
	conn    *net.UDPConn
	buf     []byte
	pending []byte
	from    Peer
}

// NewUDPTransport binds a UDP socket at addr (host:port, or ":12200" to
// listen on all interfaces).
func NewUDPTransport(addr string) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

// WaitForData reads the next datagram, blocking for at most deadline. A
// timeout is reported as ready=false with a nil error, not a failure.
func (t *UDPTransport) WaitForData(deadline time.Duration) (bool, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return false, err
	}
	n, src, err := t.conn.ReadFromUDP(t.buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return false, err
		}
		return false, err
	}
	t.pending = append(t.pending[:0], t.buf[:n]...)
	var ip [4]byte
	if ip4 := src.IP.To4(); ip4 != nil {
		copy(ip[:], ip4)
	}
	t.from = Peer{IP: ip, Port: uint16(src.Port)}
	return true, nil
}

// Recv returns the datagram most recently made ready by WaitForData.
func (t *UDPTransport) Recv() (Peer, []byte, error) {
	return t.from, t.pending, nil
}

// Send writes data to peer.
func (t *UDPTransport) Send(peer Peer, data []byte) error {
	_, err := t.conn.WriteToUDP(data, peer.UDPAddr())
	return err
}

// SignalStop closes the read deadline wide open in the past, which makes a
// blocked ReadFromUDP return immediately with a timeout error on some
// platforms; the dominant mechanism is still the loop re-checking its stop
// flag on every WaitForData return, bounded by its deadline.
func (t *UDPTransport) SignalStop() {
	_ = t.conn.SetReadDeadline(time.Now())
}

// Close releases the socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
