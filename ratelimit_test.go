package netmount

import "testing"

func TestTokenBucketAllowsUpToBurst(t *testing.T) {
	tb := NewTokenBucket(10, 3)
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("expected token %d to be allowed within burst", i)
		}
	}
	if tb.Allow() {
		t.Fatalf("expected burst to be exhausted")
	}
}

func TestPeerLimiterIndependentPerPeer(t *testing.T) {
	l := NewPeerLimiter(PeerLimiterConfig{RequestsPerSecond: 1, Burst: 1, IdleEvictAfter: 0})
	if !l.Allow("10.0.0.1:1000") {
		t.Fatalf("expected first request from peer 1 to be allowed")
	}
	if !l.Allow("10.0.0.2:1000") {
		t.Fatalf("expected first request from peer 2 to be allowed regardless of peer 1's bucket")
	}
	if l.Allow("10.0.0.1:1000") {
		t.Fatalf("expected peer 1's second immediate request to be denied")
	}
}

func TestPeerLimiterCleanupEvictsIdle(t *testing.T) {
	l := NewPeerLimiter(PeerLimiterConfig{RequestsPerSecond: 1, Burst: 1, IdleEvictAfter: -1})
	l.Allow("10.0.0.1:1000")
	if len(l.buckets) != 1 {
		t.Fatalf("expected one tracked peer before cleanup")
	}
	l.Cleanup()
	if len(l.buckets) != 0 {
		t.Fatalf("expected idle peer to be evicted by Cleanup with a negative IdleEvictAfter")
	}
}
