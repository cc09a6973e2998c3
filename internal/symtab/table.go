// Package symtab implements the fixed-capacity, dense-indexed symbol
// table that backs every per-symbol read/write on the ingress hot
// path. No hashing, no locking: lookups and updates are a single
// bounds check against MaxSymbols.
package symtab

import "errors"

// MaxSymbols bounds the dense id space. The table is sized to exceed
// the expected symbol universe by at least 10x per the design intent.
const MaxSymbols = 10_000

// InvalidPrice is the sentinel for "no price yet".
const InvalidPrice int64 = -1

// Scale is the fixed-point multiplier applied to decimal prices
// (ticks of 1e-4 of quote currency).
const Scale int64 = 10_000

// ErrDuplicateSymbol is returned by Register when the ticker is
// already bound to a different id.
var ErrDuplicateSymbol = errors.New("symtab: symbol already registered")

// ErrCapacityExceeded is returned by Register when no free slot
// remains under MaxSymbols.
var ErrCapacityExceeded = errors.New("symtab: capacity exceeded")

// tickerLen is the fixed ASCII width reserved per ticker so the slot
// never heap-allocates a string.
const tickerLen = 16

// Slot holds all hot-path state for one symbol. The zero value is a
// valid, inactive slot.
type Slot struct {
	Active bool

	ticker    [tickerLen]byte
	tickerLen uint8

	LastBid, LastAsk       int64
	LastBidQty, LastAskQty uint32

	Position      int64
	Notional      int64
	LastFillPrice int64
}

// Ticker returns the slot's registered ticker text.
func (s *Slot) Ticker() string {
	return string(s.ticker[:s.tickerLen])
}

// Table is a contiguous, zero-initialized array of MaxSymbols slots
// plus a registration-time name index. The name index is only ever
// touched at startup/registration; the hot path never consults it.
type Table struct {
	slots [MaxSymbols]Slot
	byName map[string]uint32
}

// New returns a ready-to-register, fully zeroed table.
func New() *Table {
	return &Table{byName: make(map[string]uint32, 256)}
}

// Register assigns the next free dense id to ticker and activates its
// slot. Ids are assigned in registration order and are stable for the
// life of the process. Not safe to call concurrently with ResolveID or
// the ingress hot path — registration happens once at startup.
func (t *Table) Register(ticker string) (uint32, error) {
	if _, exists := t.byName[ticker]; exists {
		return 0, ErrDuplicateSymbol
	}
	if len(ticker) > tickerLen {
		ticker = ticker[:tickerLen]
	}

	var id uint32
	found := false
	for i := range t.slots {
		if !t.slots[i].Active {
			id = uint32(i)
			found = true
			break
		}
	}
	if !found {
		return 0, ErrCapacityExceeded
	}

	slot := &t.slots[id]
	*slot = Slot{}
	slot.Active = true
	slot.tickerLen = uint8(copy(slot.ticker[:], ticker))
	slot.LastBid, slot.LastAsk = InvalidPrice, InvalidPrice

	t.byName[ticker] = id
	return id, nil
}

// ResolveID is the registration-time, hashed lookup from ticker text
// to dense id — used by the engine glue once per incoming message's
// symbol field, never per numeric field.
func (t *Table) ResolveID(ticker string) (uint32, bool) {
	id, ok := t.byName[ticker]
	return id, ok
}

// Slot returns a pointer to the dense-indexed slot for id. Id values
// >= MaxSymbols are a silent no-op: the returned pointer is nil and
// callers must check before dereferencing. This is the only branch on
// the hot path: a single comparison, no hashing, no lock.
func (t *Table) Slot(id uint32) *Slot {
	if id >= MaxSymbols {
		return nil
	}
	return &t.slots[id]
}

// UpdateQuote writes a fresh top-of-book quote into the slot for id.
// Crossed markets (bid >= ask) are rejected at ingress and never
// committed — the caller observes the slot unchanged. Returns false on
// an out-of-range id or a crossed quote.
func (t *Table) UpdateQuote(id uint32, bid, ask int64, bidQty, askQty uint32) bool {
	slot := t.Slot(id)
	if slot == nil || !slot.Active {
		return false
	}
	if bid != InvalidPrice && ask != InvalidPrice && bid >= ask {
		return false
	}
	slot.LastBid, slot.LastAsk = bid, ask
	slot.LastBidQty, slot.LastAskQty = bidQty, askQty
	return true
}

// ApplyFill updates position, last fill price, and notional for id
// after an acknowledged execution report. signedQty is positive for a
// buy fill and negative for a sell fill.
func (t *Table) ApplyFill(id uint32, signedQty int64, price int64) bool {
	slot := t.Slot(id)
	if slot == nil || !slot.Active {
		return false
	}
	slot.Position += signedQty
	slot.LastFillPrice = price
	slot.Notional = absInt64(slot.Position) * price / Scale
	return true
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
