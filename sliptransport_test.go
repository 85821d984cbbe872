package netmount

import (
	"bytes"
	"testing"
)

func TestInternetChecksumSelfVerifies(t *testing.T) {
	header := []byte{
		0x45, 0x00, 0x00, 0x1c,
		0x00, 0x01, 0x40, 0x00,
		0x40, 0x11, 0x00, 0x00,
		0x0a, 0x00, 0x00, 0x01,
		0x0a, 0x00, 0x00, 0x02,
	}
	csum := internetChecksum(header)
	header[10] = byte(csum >> 8)
	header[11] = byte(csum)
	if internetChecksum(header) != 0 {
		t.Fatalf("expected a correctly-filled-in IPv4 header to checksum to zero")
	}
}

func TestInternetChecksumOddLength(t *testing.T) {
	// Exercises the dangling-final-byte path (odd-length input).
	if internetChecksum([]byte{0x00, 0x01, 0xFF}) == 0 {
		t.Fatalf("did not expect a zero checksum for this arbitrary odd-length input")
	}
}

// decodeSLIPFrame strips the leading/trailing SLIP_END delimiters and
// reverses byte-stuffing, mirroring recvDecodeSLIP's logic without needing
// a live serial.Port.
func decodeSLIPFrame(t *testing.T, encoded []byte) []byte {
	t.Helper()
	if len(encoded) < 2 || encoded[0] != slipEnd || encoded[len(encoded)-1] != slipEnd {
		t.Fatalf("encoded frame is not SLIP_END-delimited: %v", encoded)
	}
	body := encoded[1 : len(encoded)-1]
	var out []byte
	for i := 0; i < len(body); i++ {
		if body[i] == slipEsc {
			i++
			switch body[i] {
			case slipEscEnd:
				out = append(out, slipEnd)
			case slipEscEsc:
				out = append(out, slipEsc)
			}
			continue
		}
		out = append(out, body[i])
	}
	return out
}

func TestBuildFrameRoundTripsThroughParseUDPPacket(t *testing.T) {
	tr := &SLIPTransport{}
	srcIP := [4]byte{10, 0, 0, 1}
	dstIP := [4]byte{10, 0, 0, 2}
	payload := []byte("hello dos")

	encoded := tr.buildFrame(srcIP, dstIP, 12200, 54321, payload)
	raw := decodeSLIPFrame(t, encoded)

	peer, gotDstIP, gotPayload, ok := parseUDPPacket(raw)
	if !ok {
		t.Fatalf("parseUDPPacket rejected a frame built by buildFrame")
	}
	if peer.IP != srcIP || peer.Port != 12200 {
		t.Fatalf("peer = %+v, want IP %v port 12200", peer, srcIP)
	}
	if gotDstIP != dstIP {
		t.Fatalf("dstIP = %v, want %v", gotDstIP, dstIP)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload = %q, want %q", gotPayload, payload)
	}
}

func TestBuildFrameEscapesSlipEndAndEscBytes(t *testing.T) {
	tr := &SLIPTransport{}
	payload := []byte{slipEnd, slipEsc, 0x01}
	encoded := tr.buildFrame([4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, 1, 2, payload)
	raw := decodeSLIPFrame(t, encoded)

	_, _, gotPayload, ok := parseUDPPacket(raw)
	if !ok {
		t.Fatalf("parseUDPPacket rejected a frame with escaped bytes in the payload")
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload = %v, want %v", gotPayload, payload)
	}
}

func TestParseUDPPacketRejectsTruncatedFrame(t *testing.T) {
	if _, _, _, ok := parseUDPPacket([]byte{0x45, 0x00}); ok {
		t.Fatalf("expected parseUDPPacket to reject a too-short frame")
	}
}

func TestParseUDPPacketRejectsBadChecksum(t *testing.T) {
	tr := &SLIPTransport{}
	encoded := tr.buildFrame([4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, 1, 2, []byte("x"))
	raw := decodeSLIPFrame(t, encoded)
	raw[10] ^= 0xFF // corrupt the IPv4 header checksum
	if _, _, _, ok := parseUDPPacket(raw); ok {
		t.Fatalf("expected parseUDPPacket to reject a corrupted IPv4 checksum")
	}
}
