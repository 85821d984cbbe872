package netmount

import (
	"net"
)

// Engine ties the wire protocol to a DriveTable: it validates, deduplicates
// via the reply cache, dispatches to a handler, and packs the reply. It
// holds no per-connection state because the protocol itself is
// connectionless and processed one datagram at a time.
type Engine struct {
	Drives  *DriveTable
	Replies *ReplyCache
	Metrics *Metrics
	Logger  Logger
	Limiter *PeerLimiter
}

// NewEngine builds an Engine around drives, logging to logger (NewNoopLogger
// if nil is acceptable too, but callers should pass a real one).
func NewEngine(drives *DriveTable, logger Logger) *Engine {
	return &Engine{
		Drives:  drives,
		Replies: NewReplyCache(),
		Metrics: NewMetrics(),
		Logger:  logger,
		Limiter: NewPeerLimiter(DefaultPeerLimiterConfig()),
	}
}

// Process handles one inbound datagram from peer and returns the bytes to
// send back, or nil if the request should be silently dropped. peer is
// used both for reply-cache keying and rate limiting.
func (e *Engine) Process(peer *net.UDPAddr, datagram []byte) []byte {
	if len(datagram) < HeaderSize {
		e.Metrics.RecordMalformed()
		return nil
	}

	header := DecodeHeader(datagram)
	if header.Version != ProtocolVersion {
		e.Metrics.RecordMalformed()
		return nil
	}

	total := int(header.Length)
	if total < HeaderSize || total > len(datagram) {
		e.Metrics.RecordMalformed()
		return nil
	}
	body := datagram[HeaderSize:total]

	if header.ChecksumSet {
		if bsdChecksum(body) != header.Checksum {
			e.Metrics.RecordChecksumFailure()
			return nil
		}
	} else if header.Checksum != ProtocolMagic {
		e.Metrics.RecordMalformed()
		return nil
	}

	var peerIP [4]byte
	if ip4 := peer.IP.To4(); ip4 != nil {
		copy(peerIP[:], ip4)
	}
	peerPort := uint16(peer.Port)
	peerKey := peer.String()

	if !e.Limiter.Allow(peerKey) {
		e.Metrics.RecordRateLimited()
		return nil
	}

	cached, retransmit, slot := e.Replies.Lookup(peerIP, peerPort, header.Sequence)
	if retransmit {
		e.Metrics.RecordRetransmit()
		return cached
	}

	e.Metrics.RecordRequest(header.Function)

	reqdrv := header.DriveIndex()
	if reqdrv < 2 || reqdrv >= MaxDrives {
		return nil
	}
	drive := e.Drives.Get(reqdrv)
	if drive == nil {
		return nil
	}
	result, ok := e.dispatch(header, body, drive)
	if !ok {
		return nil
	}

	if result.failed {
		e.Metrics.RecordError()
	}

	replyHeader := Header{
		Version:  header.Version,
		Sequence: header.Sequence,
		Function: header.Function,
		Drive:    header.Drive,
		AX:       uint16(result.ax),
		Length:   uint16(HeaderSize + len(result.body)),
	}
	reply := make([]byte, HeaderSize+len(result.body))
	copy(reply[HeaderSize:], result.body)
	if header.ChecksumSet {
		replyHeader.ChecksumSet = true
		replyHeader.Checksum = bsdChecksum(result.body)
	} else {
		replyHeader.Checksum = ProtocolMagic
	}
	replyHeader.Encode(reply)

	e.Replies.Store(slot, header.Sequence, reply)
	return reply
}

// dispatch routes one request to the handler for its function code. The
// bool return is false for an unrecognized function code, meaning the
// engine should drop the datagram rather than reply, matching the
// original server's behavior toward function codes it does not implement.
func (e *Engine) dispatch(header Header, body []byte, drive *Drive) (handlerResult, bool) {
	r := request{header: header, body: body, drive: drive}

	switch header.Function {
	case FuncInstallCheck:
		return okResult(nil), true
	case FuncMakeDir:
		return handleMakeRemoveDir(r, true), true
	case FuncRemoveDir:
		return handleMakeRemoveDir(r, false), true
	case FuncChangeDir:
		return handleChangeDir(r), true
	case FuncCloseFile, FuncCommitFile:
		return handleCloseFile(r), true
	case FuncReadFile:
		return e.readFileAccounted(r), true
	case FuncWriteFile:
		return e.writeFileAccounted(r), true
	case FuncLockUnlockFile:
		return handleLockUnlockFile(r), true
	case FuncDiskInfo:
		return handleDiskInfo(r), true
	case FuncSetAttrs:
		return handleSetAttrs(r), true
	case FuncGetAttrs:
		return handleGetAttrs(r), true
	case FuncRenameFile:
		return handleRenameFile(r), true
	case FuncDeleteFile:
		return handleDeleteFile(r), true
	case FuncOpenFile, FuncCreateFile, FuncExtendedOpenCreate:
		return handleOpen(r, header.Function), true
	case FuncFindFirst:
		return handleFindFirst(r), true
	case FuncFindNext:
		return handleFindNext(r), true
	case FuncSeekFromEnd:
		return handleSeekFromEnd(r), true
	default:
		return handlerResult{}, false
	}
}

// readFileAccounted wraps handleReadFile to feed the bytes-read metric.
func (e *Engine) readFileAccounted(r request) handlerResult {
	res := handleReadFile(r)
	if !res.failed {
		e.Metrics.RecordIO(len(res.body), 0)
	}
	return res
}

// writeFileAccounted wraps handleWriteFile to feed the bytes-written metric.
func (e *Engine) writeFileAccounted(r request) handlerResult {
	res := handleWriteFile(r)
	if !res.failed && len(r.body) > 6 {
		e.Metrics.RecordIO(0, len(r.body)-6)
	}
	return res
}
