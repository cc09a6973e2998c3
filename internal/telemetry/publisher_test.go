package telemetry

import "testing"

func TestPublisherSequenceIsContiguous(t *testing.T) {
	pub, err := NewPublisher(WithLoopback(true), WithGroupPort("239.255.0.9", 15559))
	if err != nil {
		t.Skipf("multicast socket unavailable in this sandbox: %v", err)
	}
	defer pub.Close()

	var lastSeq uint32
	for i := 0; i < 5; i++ {
		sent := pub.Publish(NewQuotePacket(1, QuotePayload{BidPrice: 1, AskPrice: 2}))
		if i > 0 && sent.Sequence != lastSeq+1 {
			t.Fatalf("sequence[%d] = %d, want %d", i, sent.Sequence, lastSeq+1)
		}
		lastSeq = sent.Sequence
	}
}
