package telemetry

import "testing"

func TestTrackSequenceCountsGaps(t *testing.T) {
	s := &Subscriber{}

	s.trackSequence(10) // first packet seeds lastSeq, no gap
	if s.PacketsDropped() != 0 {
		t.Fatalf("expected no drop on first packet, got %d", s.PacketsDropped())
	}

	s.trackSequence(11) // contiguous
	if s.PacketsDropped() != 0 {
		t.Fatalf("expected no drop on contiguous packet, got %d", s.PacketsDropped())
	}

	s.trackSequence(15) // skipped 12,13,14 -> gap of 3
	if s.PacketsDropped() != 3 {
		t.Fatalf("packets dropped = %d, want 3", s.PacketsDropped())
	}
}

func TestTrackSequenceWrapsAt32Bits(t *testing.T) {
	s := &Subscriber{}
	s.trackSequence(^uint32(0)) // max uint32
	s.trackSequence(0)          // wraps to 0, which is exactly lastSeq+1
	if s.PacketsDropped() != 0 {
		t.Fatalf("expected wraparound to count as contiguous, got %d drops", s.PacketsDropped())
	}
}
