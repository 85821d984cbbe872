package netmount

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD

	ipv4ProtocolUDP = 17
	ipv4HeaderSize  = 20
	udpHeaderSize   = 8
)

// SLIPTransport carries IPv4/UDP datagrams framed as SLIP over a serial
// line, for DOS clients reached through a null-modem or USB-serial cable
// rather than a LAN. It does real (if minimal) IP packaging: each outbound
// datagram gets a genuine IPv4 header with a verified checksum, since some
// client-side TCP/IP stacks reject anything else; the UDP checksum itself
// is always sent as zero and never verified on receipt, matching how
// SLIP/PPP-era DOS stacks commonly behaved.
type SLIPTransport struct {
	port serial.Port

	localIP  [4]byte
	rx       []byte
	lastPktID uint16

	lastPeer  Peer
	lastDstIP [4]byte
}

// NewSLIPTransport opens device at baud and wraps it in SLIP/IP/UDP
// framing. localIP is the address advertised as this server's source.
func NewSLIPTransport(device string, baud int, localIP [4]byte) (*SLIPTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %q: %w", device, err)
	}
	return &SLIPTransport{port: port, localIP: localIP, rx: make([]byte, 0, MaxDatagramSize)}, nil
}

// WaitForData reads and SLIP-decodes the next frame, blocking for at most
// deadline. A byte arriving but not completing a frame before the deadline
// reports ready=false, not an error.
func (t *SLIPTransport) WaitForData(deadline time.Duration) (bool, error) {
	if err := t.port.SetReadTimeout(deadline); err != nil {
		return false, err
	}
	frame, err := t.recvDecodeSLIP()
	if err != nil {
		return false, err
	}
	if len(frame) == 0 {
		return false, nil
	}
	peer, dstIP, payload, ok := parseUDPPacket(frame)
	if !ok {
		return false, nil
	}
	t.lastPeer = peer
	t.lastDstIP = dstIP
	t.rx = append(t.rx[:0], payload...)
	return true, nil
}

// Recv returns the payload decoded by the most recent successful
// WaitForData.
func (t *SLIPTransport) Recv() (Peer, []byte, error) {
	return t.lastPeer, t.rx, nil
}

// Send wraps data in an IPv4/UDP header and SLIP frame addressed to peer.
func (t *SLIPTransport) Send(peer Peer, data []byte) error {
	if len(data) > MaxDatagramSize-ipv4HeaderSize-udpHeaderSize {
		return fmt.Errorf("slip send: payload exceeds MTU")
	}
	srcIP := t.localIP
	if t.lastDstIP != [4]byte{} {
		srcIP = t.lastDstIP
	}
	frame := t.buildFrame(srcIP, peer.IP, DefaultUDPPort, peer.Port, data)
	_, err := t.port.Write(frame)
	return err
}

// SignalStop has no effect beyond the read timeout WaitForData already
// applies; a serial port has no way to interrupt a pending read otherwise.
func (t *SLIPTransport) SignalStop() {}

// Close releases the serial port.
func (t *SLIPTransport) Close() error { return t.port.Close() }

func (t *SLIPTransport) buildFrame(srcIP, dstIP [4]byte, srcPort, dstPort uint16, payload []byte) []byte {
	header := make([]byte, ipv4HeaderSize+udpHeaderSize)

	header[0] = (4 << 4) | (ipv4HeaderSize / 4)
	header[1] = 0
	binary.BigEndian.PutUint16(header[2:4], uint16(len(header)+len(payload)))
	t.lastPktID++
	binary.BigEndian.PutUint16(header[4:6], t.lastPktID)
	binary.BigEndian.PutUint16(header[6:8], 0x2<<13) // don't-fragment, no offset
	header[8] = 64                                   // TTL
	header[9] = ipv4ProtocolUDP
	binary.BigEndian.PutUint16(header[10:12], 0) // checksum placeholder
	copy(header[12:16], srcIP[:])
	copy(header[16:20], dstIP[:])
	binary.BigEndian.PutUint16(header[10:12], internetChecksum(header[:ipv4HeaderSize]))

	binary.BigEndian.PutUint16(header[20:22], srcPort)
	binary.BigEndian.PutUint16(header[22:24], dstPort)
	binary.BigEndian.PutUint16(header[24:26], uint16(udpHeaderSize+len(payload)))
	binary.BigEndian.PutUint16(header[26:28], 0) // UDP checksum unused

	encoded := make([]byte, 1, 2*(len(header)+len(payload))+2)
	encoded[0] = slipEnd
	encoded = append(encoded, encodeSLIPBlock(header)...)
	encoded = append(encoded, encodeSLIPBlock(payload)...)
	encoded = append(encoded, slipEnd)
	return encoded
}

func encodeSLIPBlock(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return out
}

// recvDecodeSLIP reads raw bytes from the serial port until it has
// accumulated one complete SLIP_END-delimited frame or the read deadline
// passes.
func (t *SLIPTransport) recvDecodeSLIP() ([]byte, error) {
	var frame []byte
	started := false
	one := make([]byte, 1)

	for {
		n, err := t.port.Read(one)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil // read timeout
		}
		b := one[0]

		if b == slipEnd {
			if started && len(frame) > 0 {
				return frame, nil
			}
			started = true
			continue
		}
		if !started {
			continue
		}
		if len(frame) >= MaxDatagramSize {
			return nil, fmt.Errorf("slip recv: frame exceeds MTU")
		}

		if b == slipEsc {
			if _, err := t.port.Read(one); err != nil {
				return nil, err
			}
			switch one[0] {
			case slipEscEnd:
				frame = append(frame, slipEnd)
			case slipEscEsc:
				frame = append(frame, slipEsc)
			}
			continue
		}
		frame = append(frame, b)
	}
}

// parseUDPPacket validates the IPv4/UDP headers in frame and returns the
// sender as a Peer, the frame's destination IP, and the UDP payload.
func parseUDPPacket(frame []byte) (peer Peer, dstIP [4]byte, payload []byte, ok bool) {
	if len(frame) < ipv4HeaderSize+udpHeaderSize {
		return Peer{}, dstIP, nil, false
	}
	if frame[0]&0xF0 != 0x40 {
		return Peer{}, dstIP, nil, false
	}
	ihl := int(frame[0]&0x0F) * 4
	if ihl != ipv4HeaderSize {
		return Peer{}, dstIP, nil, false
	}
	if internetChecksum(frame[:ipv4HeaderSize]) != 0 {
		return Peer{}, dstIP, nil, false
	}
	if frame[9] != ipv4ProtocolUDP {
		return Peer{}, dstIP, nil, false
	}
	totalLen := int(binary.BigEndian.Uint16(frame[2:4]))
	if len(frame) < totalLen {
		return Peer{}, dstIP, nil, false
	}

	var srcIP [4]byte
	copy(srcIP[:], frame[12:16])
	copy(dstIP[:], frame[16:20])

	udpLen := int(binary.BigEndian.Uint16(frame[24:26]))
	if udpLen < udpHeaderSize || len(frame) < ipv4HeaderSize+udpLen {
		return Peer{}, dstIP, nil, false
	}
	srcPort := binary.BigEndian.Uint16(frame[20:22])

	data := frame[ipv4HeaderSize+udpHeaderSize : ipv4HeaderSize+udpLen]
	return Peer{IP: srcIP, Port: srcPort}, dstIP, data, true
}

// internetChecksum computes the RFC 1071 Internet checksum over data.
func internetChecksum(data []byte) uint16 {
	var sum uint32
	n := len(data)
	i := 0
	for n > 1 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
		i += 2
		n -= 2
	}
	if n > 0 {
		sum += uint32(data[i]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
