package telemetry

import "testing"

func TestFillPacketRoundTrip(t *testing.T) {
	pkt := NewFillPacket(7, FillPayload{
		Price:    5_000_000_000_000,
		Quantity: 100,
		Side:     FillBuy,
		FillType: FillFull,
	})
	pkt.TimestampNs = 123456789
	pkt.Sequence = 42

	wire := pkt.Marshal()
	if len(wire) != PacketSize {
		t.Fatalf("wire length = %d, want %d", len(wire), PacketSize)
	}

	got, ok := Unmarshal(wire[:])
	if !ok {
		t.Fatalf("Unmarshal failed")
	}
	if got.TimestampNs != pkt.TimestampNs || got.Sequence != pkt.Sequence || got.SymbolID != pkt.SymbolID {
		t.Fatalf("header mismatch: got %+v, want %+v", got, pkt)
	}
	if got.PacketType != Fill {
		t.Fatalf("type = %d, want Fill", got.PacketType)
	}

	fill := got.Fill()
	if fill.Price != 5_000_000_000_000 || fill.Quantity != 100 || fill.Side != FillBuy || fill.FillType != FillFull {
		t.Fatalf("fill payload mismatch: %+v", fill)
	}

	// Bytes 56-64 are the reserved pad and must be zero.
	for i := 56; i < 64; i++ {
		if wire[i] != 0 {
			t.Fatalf("reserved pad byte %d = %d, want 0", i, wire[i])
		}
	}
}

func TestQuotePacketRoundTrip(t *testing.T) {
	pkt := NewQuotePacket(3, QuotePayload{
		BidPrice: 60000 * 10_000,
		AskPrice: 60010 * 10_000,
		BidSize:  5,
		AskSize:  7,
	})
	wire := pkt.Marshal()
	got, ok := Unmarshal(wire[:])
	if !ok {
		t.Fatalf("Unmarshal failed")
	}
	q := got.Quote()
	if q.BidPrice != pkt.Quote().BidPrice || q.AskPrice != pkt.Quote().AskPrice ||
		q.BidSize != 5 || q.AskSize != 7 {
		t.Fatalf("quote payload mismatch: %+v", q)
	}
}

func TestUnmarshalRejectsWrongLength(t *testing.T) {
	if _, ok := Unmarshal(make([]byte, 63)); ok {
		t.Fatalf("expected Unmarshal to reject a 63-byte buffer")
	}
	if _, ok := Unmarshal(make([]byte, 65)); ok {
		t.Fatalf("expected Unmarshal to reject a 65-byte buffer")
	}
}
