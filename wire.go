package netmount

import "encoding/binary"

const (
	// ProtocolVersion is the only version byte this server accepts.
	ProtocolVersion = 1

	// ProtocolMagic is written into the checksum field when the checksum
	// flag is clear.
	ProtocolMagic = 0x9524

	// DefaultUDPPort is the port the server binds to unless overridden.
	DefaultUDPPort = 12200

	// HeaderSize is the fixed size, in bytes, of a request/reply header.
	HeaderSize = 10

	// MaxDatagramSize is the largest datagram either side will send.
	MaxDatagramSize = 1500

	// checksumFlagBit is the top bit of length_flags.
	checksumFlagBit = 0x8000
	lengthMask      = 0x7FFF
)

// Header is the fixed 10-byte request/response header. On the wire every
// multi-byte field is little-endian and the layout is packed with no
// padding; Header is decoded/encoded explicitly rather than cast from a
// byte slice.
type Header struct {
	Version     byte
	Sequence    byte
	Function    byte
	Drive       byte
	AX          uint16
	Length      uint16 // total packet length, header included
	ChecksumSet bool
	Checksum    uint16 // BSD checksum when ChecksumSet, else ProtocolMagic
}

// DecodeHeader parses the first HeaderSize bytes of buf.
func DecodeHeader(buf []byte) Header {
	lengthFlags := binary.LittleEndian.Uint16(buf[6:8])
	return Header{
		Version:     buf[0],
		Sequence:    buf[1],
		Function:    buf[2],
		Drive:       buf[3],
		AX:          binary.LittleEndian.Uint16(buf[4:6]),
		Length:      lengthFlags & lengthMask,
		ChecksumSet: lengthFlags&checksumFlagBit != 0,
		Checksum:    binary.LittleEndian.Uint16(buf[8:10]),
	}
}

// Encode writes the header into the first HeaderSize bytes of buf.
func (h Header) Encode(buf []byte) {
	buf[0] = h.Version
	buf[1] = h.Sequence
	buf[2] = h.Function
	buf[3] = h.Drive
	binary.LittleEndian.PutUint16(buf[4:6], h.AX)
	lengthFlags := h.Length & lengthMask
	if h.ChecksumSet {
		lengthFlags |= checksumFlagBit
	}
	binary.LittleEndian.PutUint16(buf[6:8], lengthFlags)
	binary.LittleEndian.PutUint16(buf[8:10], h.Checksum)
}

// DriveIndex extracts the 5-bit drive index from the Drive byte.
func (h Header) DriveIndex() int { return int(h.Drive & 0x1F) }

// bsdChecksum computes the rolling BSD checksum used to validate/sign a
// packet body: a 16-bit accumulator, right-rotated by one bit and
// incremented by each successive byte, modulo 2^16.
func bsdChecksum(data []byte) uint16 {
	var acc uint16
	for _, b := range data {
		acc = rotateRight16(acc, 1) + uint16(b)
	}
	return acc
}

func rotateRight16(x uint16, n uint) uint16 {
	return (x >> n) | (x << (16 - n))
}

// little16/little32 read little-endian integers out of a body slice; the
// handlers use these instead of casting the slice to a packed struct.
func little16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func little32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func putLittle16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putLittle32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
