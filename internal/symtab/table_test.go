package symtab

import (
	"fmt"
	"testing"
)

func TestRegisterAssignsStableDenseIDs(t *testing.T) {
	tbl := New()

	id1, err := tbl.Register("BTC/USDT")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	id2, err := tbl.Register("ETH/USDT")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d and %d", id1, id2)
	}

	gotID, ok := tbl.ResolveID("BTC/USDT")
	if !ok || gotID != id1 {
		t.Fatalf("ResolveID mismatch: got %d ok=%v want %d", gotID, ok, id1)
	}
}

func TestRegisterDuplicateRejected(t *testing.T) {
	tbl := New()
	if _, err := tbl.Register("BTC/USDT"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := tbl.Register("BTC/USDT"); err != ErrDuplicateSymbol {
		t.Fatalf("expected ErrDuplicateSymbol, got %v", err)
	}
}

func TestRegisterCapacityExceeded(t *testing.T) {
	tbl := New()
	for i := 0; i < MaxSymbols; i++ {
		if _, err := tbl.Register(fmt.Sprintf("SYM%d", i)); err != nil {
			t.Fatalf("register #%d: %v", i, err)
		}
	}
	if _, err := tbl.Register("OVERFLOW"); err != ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestSlotOutOfRangeIsSilentNoOp(t *testing.T) {
	tbl := New()
	if s := tbl.Slot(MaxSymbols); s != nil {
		t.Fatalf("expected nil slot at MaxSymbols, got %+v", s)
	}
	if ok := tbl.UpdateQuote(MaxSymbols, 100, 200, 1, 1); ok {
		t.Fatalf("expected UpdateQuote to no-op for out-of-range id")
	}
}

func TestCrossedMarketRejected(t *testing.T) {
	tbl := New()
	id, _ := tbl.Register("BTC/USDT")

	if ok := tbl.UpdateQuote(id, 60010, 60000, 1, 1); ok {
		t.Fatalf("expected crossed quote (bid >= ask) to be rejected")
	}
	slot := tbl.Slot(id)
	if slot.LastBid != InvalidPrice || slot.LastAsk != InvalidPrice {
		t.Fatalf("slot must remain unchanged after rejected crossed quote, got bid=%d ask=%d", slot.LastBid, slot.LastAsk)
	}
}

func TestUpdateQuoteThenApplyFillMaintainsNotionalInvariant(t *testing.T) {
	tbl := New()
	id, _ := tbl.Register("BTC/USDT")

	if !tbl.UpdateQuote(id, 60000*Scale, 60010*Scale, 10, 10) {
		t.Fatalf("expected quote update to succeed")
	}
	if !tbl.ApplyFill(id, 5, 60010*Scale) {
		t.Fatalf("expected fill to apply")
	}

	slot := tbl.Slot(id)
	if slot.Position != 5 {
		t.Fatalf("position = %d, want 5", slot.Position)
	}
	want := absInt64(slot.Position) * slot.LastFillPrice / Scale
	if slot.Notional != want {
		t.Fatalf("notional invariant violated: got %d want %d", slot.Notional, want)
	}
}

func TestInactiveSlotAllFieldsZero(t *testing.T) {
	tbl := New()
	slot := tbl.Slot(42)
	if slot.Active {
		t.Fatalf("slot 42 should be inactive before registration")
	}
	if slot.Position != 0 || slot.Notional != 0 || slot.LastFillPrice != 0 {
		t.Fatalf("inactive slot must have all numeric fields zero, got %+v", slot)
	}
}
