package risk

import (
	"testing"

	"github.com/triarb/engine/internal/symtab"
)

func newManagerForTest(t *testing.T, cfg Config) (*Manager, *symtab.Table, uint32) {
	t.Helper()
	tbl := symtab.New()
	id, err := tbl.Register("BTC/USDT")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return New(cfg, tbl), tbl, id
}

func TestCheckOrderRejectsWhenHalted(t *testing.T) {
	m, _, id := newManagerForTest(t, Config{InitialCapital: 1_000_000})
	m.Halt()
	if m.CheckOrder(id, Buy, 1, 100*symtab.Scale) {
		t.Fatalf("expected check_order to reject while halted")
	}
}

func TestCheckOrderRejectsOversizedOrder(t *testing.T) {
	m, _, id := newManagerForTest(t, Config{InitialCapital: 1_000_000, MaxOrderSize: 10})
	if m.CheckOrder(id, Buy, 11, 100*symtab.Scale) {
		t.Fatalf("expected rejection for qty exceeding max order size")
	}
	if !m.CheckOrder(id, Buy, 10, 100*symtab.Scale) {
		t.Fatalf("expected acceptance at exactly max order size")
	}
}

func TestCheckOrderPerSymbolPositionLimit(t *testing.T) {
	cfg := Config{
		InitialCapital: 1_000_000,
		PerSymbol:      map[uint32]SymbolLimits{0: {MaxPosition: 5}},
	}
	m, _, id := newManagerForTest(t, cfg)
	if id != 0 {
		t.Skip("test assumes first registered id is 0")
	}
	if !m.CheckOrder(id, Buy, 5, 100*symtab.Scale) {
		t.Fatalf("expected acceptance at exactly the position limit")
	}
	if m.CheckOrder(id, Buy, 6, 100*symtab.Scale) {
		t.Fatalf("expected rejection beyond the position limit")
	}
}

func TestMaxPositionZeroDisablesCheck(t *testing.T) {
	cfg := Config{
		InitialCapital: 1_000_000,
		PerSymbol:      map[uint32]SymbolLimits{0: {MaxPosition: 0}},
	}
	m, _, id := newManagerForTest(t, cfg)
	if !m.CheckOrder(id, Buy, 1_000_000, 100*symtab.Scale) {
		t.Fatalf("max_position == 0 must disable the per-symbol position check")
	}
}

func TestOnFillThenCheckOrderIsSoundWithRespectToPosition(t *testing.T) {
	cfg := Config{
		InitialCapital: 1_000_000,
		PerSymbol:      map[uint32]SymbolLimits{0: {MaxPosition: 10}},
	}
	m, tbl, id := newManagerForTest(t, cfg)

	if !m.CheckOrder(id, Buy, 10, 100*symtab.Scale) {
		t.Fatalf("expected pre-trade check to accept a fill within the limit")
	}
	m.OnFill(id, Buy, 10, 100*symtab.Scale)

	slot := tbl.Slot(id)
	if absInt64(slot.Position) > 10 {
		t.Fatalf("position %d exceeds the limit the prior check accepted against", slot.Position)
	}
}

func TestDailyLossHalt(t *testing.T) {
	m, _, id := newManagerForTest(t, Config{InitialCapital: 1_000_000, DailyLossLimit: 50_000})

	m.UpdatePnL(-50_001)

	if !m.IsHalted() {
		t.Fatalf("expected halt after breaching daily loss limit")
	}
	snap := m.Snapshot()
	if !snap.DailyLimitBreached {
		t.Fatalf("expected DailyLimitBreached to be set")
	}
	if m.CheckOrder(id, Buy, 1, 100*symtab.Scale) {
		t.Fatalf("expected check_order to reject after halt")
	}
}

func TestDrawdownHaltExactThresholdNotBreached(t *testing.T) {
	m, _, _ := newManagerForTest(t, Config{InitialCapital: 1_000_000, MaxDrawdownPct: 0.10})

	m.UpdatePnL(100_000)
	m.UpdatePnL(-10_000)

	if m.IsHalted() {
		t.Fatalf("drawdown exactly at threshold must not breach (strict >)")
	}
}

func TestDrawdownHaltJustOverThresholdBreaches(t *testing.T) {
	m, _, _ := newManagerForTest(t, Config{InitialCapital: 1_000_000, MaxDrawdownPct: 0.10})

	m.UpdatePnL(100_000)
	m.UpdatePnL(-10_001)

	if !m.IsHalted() {
		t.Fatalf("expected halt when drawdown exceeds threshold")
	}
	if !m.Snapshot().DrawdownBreached {
		t.Fatalf("expected DrawdownBreached to be set")
	}
}

func TestPeakEquityMonotonicallyNonDecreasing(t *testing.T) {
	m, _, _ := newManagerForTest(t, Config{InitialCapital: 1_000_000})

	pnls := []int64{10_000, -5_000, 20_000, -30_000, 5_000}
	var peaks []int64
	for _, pnl := range pnls {
		m.UpdatePnL(pnl)
		peaks = append(peaks, m.Snapshot().PeakEquity)
	}
	for i := 1; i < len(peaks); i++ {
		if peaks[i] < peaks[i-1] {
			t.Fatalf("peak equity decreased: %v", peaks)
		}
	}
}

func TestNewTradingDayRebasesDailyPnLButKeepsDrawdownBreach(t *testing.T) {
	m, _, _ := newManagerForTest(t, Config{InitialCapital: 1_000_000, MaxDrawdownPct: 0.10})

	m.UpdatePnL(100_000)
	m.UpdatePnL(-10_001) // breaches drawdown
	m.NewTradingDay()

	if m.DailyPnL() != 0 {
		t.Fatalf("daily pnl after new_trading_day = %d, want 0", m.DailyPnL())
	}
	if !m.IsHalted() {
		t.Fatalf("drawdown-only breach must survive new_trading_day until explicit reset")
	}

	m.ResetHalt()
	if m.IsHalted() {
		t.Fatalf("expected reset_halt to clear the halt")
	}
}

func TestNewTradingDayClearsDailyOnlyHalt(t *testing.T) {
	m, _, _ := newManagerForTest(t, Config{InitialCapital: 1_000_000, DailyLossLimit: 50_000})

	m.UpdatePnL(-50_001)
	m.NewTradingDay()

	if m.IsHalted() {
		t.Fatalf("a daily-loss-only halt must clear at the next trading day")
	}
}
