package netmount

import (
	"net"
	"testing"

	"github.com/absfs/memfs"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("memfs.NewFS: %v", err)
	}
	var table DriveTable
	table[2] = NewDrive('C', "/", fs, false, AttrIgnore, NameConversionRAM)
	return NewEngine(&table, NewNoopLogger())
}

func testPeer() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5000}
}

// buildDatagram encodes header+body into a datagram, optionally signing the
// body with the BSD checksum.
func buildDatagram(fn, drive byte, seq byte, body []byte, withChecksum bool) []byte {
	h := Header{
		Version:  ProtocolVersion,
		Sequence: seq,
		Function: fn,
		Drive:    drive,
		Length:   uint16(HeaderSize + len(body)),
	}
	if withChecksum {
		h.ChecksumSet = true
		h.Checksum = bsdChecksum(body)
	} else {
		h.Checksum = ProtocolMagic
	}
	datagram := make([]byte, HeaderSize+len(body))
	copy(datagram[HeaderSize:], body)
	h.Encode(datagram)
	return datagram
}

func TestEngineInstallCheckSucceeds(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(FuncInstallCheck, 2, 1, nil, false)
	reply := e.Process(testPeer(), datagram)
	if reply == nil {
		t.Fatalf("expected a reply for install check")
	}
	h := DecodeHeader(reply)
	if h.AX != 0 {
		t.Fatalf("AX = %d, want 0", h.AX)
	}
}

func TestEngineDropsTooShortDatagram(t *testing.T) {
	e := newTestEngine(t)
	if reply := e.Process(testPeer(), []byte{1, 2, 3}); reply != nil {
		t.Fatalf("expected nil reply for a too-short datagram")
	}
}

func TestEngineDropsWrongVersion(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(FuncInstallCheck, 2, 1, nil, false)
	datagram[0] = ProtocolVersion + 1
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply for an unsupported protocol version")
	}
}

func TestEngineDropsBadMagicWhenChecksumFlagClear(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(FuncInstallCheck, 2, 1, nil, false)
	putLittle16(datagram[8:10], ProtocolMagic+1)
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply when the checksum field doesn't match the magic constant")
	}
}

func TestEngineDropsOverLongAdvertisedLength(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(FuncInstallCheck, 2, 1, nil, false)
	putLittle16(datagram[6:8], uint16(len(datagram)+100)) // claims a body longer than what arrived
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply when the advertised length exceeds the datagram")
	}
}

func TestEngineDropsBadChecksum(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(FuncInstallCheck, 2, 1, []byte{1, 2, 3}, true)
	datagram[HeaderSize] ^= 0xFF // corrupt the body after signing
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply for a corrupted checksummed body")
	}
}

func TestEngineDropsUnknownDriveIndex(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(FuncInstallCheck, 1, 1, nil, false) // drive B:, reserved/local
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply for a reserved local drive index")
	}

	datagram = buildDatagram(FuncInstallCheck, 5, 1, nil, false) // drive F:, not mounted
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply for an unmounted drive index")
	}
}

func TestEngineDropsUnknownFunctionCode(t *testing.T) {
	e := newTestEngine(t)
	datagram := buildDatagram(0x7F, 2, 1, nil, false)
	if reply := e.Process(testPeer(), datagram); reply != nil {
		t.Fatalf("expected nil reply (silent drop) for an unrecognized function code")
	}
}

func TestEngineRetransmitReturnsCachedReply(t *testing.T) {
	e := newTestEngine(t)
	peer := testPeer()
	datagram := buildDatagram(FuncInstallCheck, 2, 7, nil, false)

	first := e.Process(peer, datagram)
	if first == nil {
		t.Fatalf("expected a reply on first send")
	}
	second := e.Process(peer, datagram)
	if second == nil {
		t.Fatalf("expected a cached reply on retransmit")
	}
	if string(first) != string(second) {
		t.Fatalf("retransmitted reply differs from the original")
	}
}

func TestEngineRateLimitsExcessRequests(t *testing.T) {
	e := newTestEngine(t)
	e.Limiter = NewPeerLimiter(PeerLimiterConfig{RequestsPerSecond: 1, Burst: 1})
	peer := testPeer()

	first := e.Process(peer, buildDatagram(FuncInstallCheck, 2, 1, nil, false))
	if first == nil {
		t.Fatalf("expected the first request within burst to succeed")
	}
	second := e.Process(peer, buildDatagram(FuncInstallCheck, 2, 2, nil, false))
	if second != nil {
		t.Fatalf("expected the second immediate request to be rate limited")
	}
}

func TestEngineGetAttrsReportsErrResultOnFailure(t *testing.T) {
	e := newTestEngine(t)
	// FuncGetAttrs on a path that does not exist should reply with an error
	// AX rather than being dropped.
	body := []byte("nonexistent.txt")
	datagram := buildDatagram(FuncGetAttrs, 2, 1, body, false)
	reply := e.Process(testPeer(), datagram)
	if reply == nil {
		t.Fatalf("expected an error reply, not a drop")
	}
	h := DecodeHeader(reply)
	if h.AX == 0 {
		t.Fatalf("expected a nonzero AX error code for a missing file")
	}
}
