package netmount

import "time"

// TokenBucket is a classic token-bucket limiter. The server's request loop
// is strictly serial, so unlike the NFS server this was ported from, no
// locking is needed here: Allow is only ever called from that one loop.
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a bucket that refills at rate tokens/second up to
// a maximum of burst tokens.
func NewTokenBucket(rate float64, burst int) *TokenBucket {
	return &TokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

// Allow reports whether one token is available, consuming it if so.
func (tb *TokenBucket) Allow() bool {
	now := time.Now()
	tb.tokens += now.Sub(tb.lastRefill).Seconds() * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// PeerLimiterConfig configures PeerLimiter.
type PeerLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleEvictAfter    time.Duration
}

// DefaultPeerLimiterConfig returns settings generous enough for a busy DOS
// client retrying across a lossy link, while still bounding a single
// misbehaving or spoofed peer.
func DefaultPeerLimiterConfig() PeerLimiterConfig {
	return PeerLimiterConfig{
		RequestsPerSecond: 200,
		Burst:             50,
		IdleEvictAfter:    10 * time.Minute,
	}
}

type peerBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// PeerLimiter enforces an independent TokenBucket per UDP peer address,
// evicting buckets that have gone quiet so long-running servers don't leak
// memory onto every address that has ever sent a packet.
type PeerLimiter struct {
	cfg     PeerLimiterConfig
	buckets map[string]*peerBucket
}

// NewPeerLimiter builds a PeerLimiter from cfg.
func NewPeerLimiter(cfg PeerLimiterConfig) *PeerLimiter {
	return &PeerLimiter{cfg: cfg, buckets: make(map[string]*peerBucket)}
}

// Allow reports whether peer (typically "ip:port") may send another
// request right now.
func (l *PeerLimiter) Allow(peer string) bool {
	now := time.Now()
	pb, ok := l.buckets[peer]
	if !ok {
		pb = &peerBucket{bucket: NewTokenBucket(l.cfg.RequestsPerSecond, l.cfg.Burst)}
		l.buckets[peer] = pb
	}
	pb.lastSeen = now
	return pb.bucket.Allow()
}

// Cleanup drops buckets for peers that have been idle longer than
// IdleEvictAfter. Callers should invoke this periodically, e.g. from the
// server loop's bounded-wait timeout path.
func (l *PeerLimiter) Cleanup() {
	now := time.Now()
	for peer, pb := range l.buckets {
		if now.Sub(pb.lastSeen) > l.cfg.IdleEvictAfter {
			delete(l.buckets, peer)
		}
	}
}
