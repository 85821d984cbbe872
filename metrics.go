package netmount

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds the running counters for one server instance. All counter
// fields are updated with atomic operations so the protocol engine's
// strictly-serial loop and an out-of-band status reporter can both read
// them without coordination.
type Metrics struct {
	TotalRequests      uint64
	RetransmitsServed  uint64 // replies served from the reply cache
	ChecksumFailures   uint64
	MalformedPackets   uint64
	RateLimited        uint64
	ErrorReplies       uint64

	OpCounts [256]uint64 // indexed by protocol function code

	BytesRead    uint64
	BytesWritten uint64

	HandlesAllocated uint64
	HandlesEvicted   uint64

	StartTime time.Time

	mu             sync.Mutex
	requestLatency []time.Duration // bounded ring of recent per-request latencies
}

// NewMetrics creates a Metrics with StartTime set to now.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// RecordRequest increments the per-function-code and total counters.
func (m *Metrics) RecordRequest(function byte) {
	atomic.AddUint64(&m.TotalRequests, 1)
	atomic.AddUint64(&m.OpCounts[function], 1)
}

// RecordRetransmit counts a reply served straight from the reply cache.
func (m *Metrics) RecordRetransmit() { atomic.AddUint64(&m.RetransmitsServed, 1) }

// RecordChecksumFailure counts a request dropped for a bad checksum.
func (m *Metrics) RecordChecksumFailure() { atomic.AddUint64(&m.ChecksumFailures, 1) }

// RecordMalformed counts a request dropped for being too short or
// otherwise unparsable.
func (m *Metrics) RecordMalformed() { atomic.AddUint64(&m.MalformedPackets, 1) }

// RecordRateLimited counts a request dropped by the per-peer rate limiter.
func (m *Metrics) RecordRateLimited() { atomic.AddUint64(&m.RateLimited, 1) }

// RecordError counts a reply carrying a non-zero DOS error code.
func (m *Metrics) RecordError() { atomic.AddUint64(&m.ErrorReplies, 1) }

// RecordIO adds to the read/write byte counters.
func (m *Metrics) RecordIO(read, written int) {
	if read > 0 {
		atomic.AddUint64(&m.BytesRead, uint64(read))
	}
	if written > 0 {
		atomic.AddUint64(&m.BytesWritten, uint64(written))
	}
}

// RecordHandleAllocated/RecordHandleEvicted track Drive handle churn.
func (m *Metrics) RecordHandleAllocated() { atomic.AddUint64(&m.HandlesAllocated, 1) }
func (m *Metrics) RecordHandleEvicted()   { atomic.AddUint64(&m.HandlesEvicted, 1) }

const maxLatencySamples = 1000

// RecordLatency appends d to the bounded recent-latency sample, which keeps
// the last maxLatencySamples values.
func (m *Metrics) RecordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requestLatency) >= maxLatencySamples {
		m.requestLatency = m.requestLatency[1:]
	}
	m.requestLatency = append(m.requestLatency, d)
}

// Snapshot is a point-in-time copy of the counters, safe to serialize or
// log without holding any lock on the live Metrics.
type Snapshot struct {
	TotalRequests     uint64
	RetransmitsServed uint64
	ChecksumFailures  uint64
	MalformedPackets  uint64
	RateLimited       uint64
	ErrorReplies      uint64
	BytesRead         uint64
	BytesWritten      uint64
	HandlesAllocated  uint64
	HandlesEvicted    uint64
	UptimeSeconds     int64
}

// Snapshot copies the atomic counters into a Snapshot.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:     atomic.LoadUint64(&m.TotalRequests),
		RetransmitsServed: atomic.LoadUint64(&m.RetransmitsServed),
		ChecksumFailures:  atomic.LoadUint64(&m.ChecksumFailures),
		MalformedPackets:  atomic.LoadUint64(&m.MalformedPackets),
		RateLimited:       atomic.LoadUint64(&m.RateLimited),
		ErrorReplies:      atomic.LoadUint64(&m.ErrorReplies),
		BytesRead:         atomic.LoadUint64(&m.BytesRead),
		BytesWritten:      atomic.LoadUint64(&m.BytesWritten),
		HandlesAllocated:  atomic.LoadUint64(&m.HandlesAllocated),
		HandlesEvicted:    atomic.LoadUint64(&m.HandlesEvicted),
		UptimeSeconds:     int64(time.Since(m.StartTime).Seconds()),
	}
}
