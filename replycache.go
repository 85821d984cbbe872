package netmount

import "time"

// replyCacheSize is the fixed number of peer slots tracked for idempotent
// retry detection.
const replyCacheSize = 16

// replyCacheEntry is one ring slot: the peer it belongs to, the reply it
// last sent that peer, and when. An entry with an empty Reply is unused or
// was just claimed for a fresh request.
type replyCacheEntry struct {
	peerIP   [4]byte
	peerPort uint16
	sequence byte
	reply    []byte
	time     time.Time
	valid    bool
}

// ReplyCache is the fixed 16-entry ring that lets the engine answer a
// retransmitted request with the exact bytes it sent the first time,
// without re-running a (possibly non-idempotent) handler.
type ReplyCache struct {
	entries [replyCacheSize]replyCacheEntry
}

// NewReplyCache returns an empty ReplyCache.
func NewReplyCache() *ReplyCache { return &ReplyCache{} }

// Lookup finds the slot for (ip, port). If the slot already belongs to
// this peer and carries a reply for sequence, that reply is returned and
// retransmit is true. Otherwise the slot is claimed for this peer (oldest
// timestamp evicted if no slot already matched) and zeroed, ready for the
// caller to dispatch and then Store into.
func (c *ReplyCache) Lookup(ip [4]byte, port uint16, sequence byte) (reply []byte, retransmit bool, slot int) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.peerIP == ip && e.peerPort == port {
			if e.sequence == sequence {
				return e.reply, true, i
			}
			e.valid = false
			e.reply = nil
			return nil, false, i
		}
	}

	oldest := 0
	for i := range c.entries {
		if i == 0 || c.entries[i].time.Before(c.entries[oldest].time) {
			oldest = i
		}
	}
	c.entries[oldest] = replyCacheEntry{peerIP: ip, peerPort: port}
	return nil, false, oldest
}

// Store records reply as the last answer sent to the peer occupying slot.
func (c *ReplyCache) Store(slot int, sequence byte, reply []byte) {
	e := &c.entries[slot]
	e.sequence = sequence
	e.reply = append([]byte(nil), reply...)
	e.time = time.Now()
	e.valid = true
}
