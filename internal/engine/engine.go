// Package engine wires the stream client, symbol table, strategies,
// risk manager, and triangular detector into the single synchronous
// path driven by every incoming market-data message.
package engine

import (
	"github.com/triarb/engine/internal/arb"
	"github.com/triarb/engine/internal/risk"
	"github.com/triarb/engine/internal/stream"
	"github.com/triarb/engine/internal/symtab"
	"github.com/triarb/engine/internal/telemetry"
)

// Action is a strategy's verdict on a tick.
type Action int

const (
	Hold Action = iota
	Buy
	Sell
)

// Signal is what a strategy returns for a given symbol slot.
type Signal struct {
	Action Action
	Qty    uint32
	Limit  int64 // fixed-point, 0 means "at touch"
}

// Strategy is a pure function of the slot's current state; it must
// not block or allocate on a hot path that may be called every tick.
// Out of scope here per spec.md: the individual strategies
// (mean-reversion, momentum, OFI, VWAP, pairs, fair-value) are
// specified only by this call contract.
type Strategy func(symbolID uint32, slot *symtab.Slot) Signal

// OrderStatus mirrors the exchange execution-report status enum.
type OrderStatus int

const (
	New OrderStatus = iota
	PartiallyFilled
	Filled
	Canceled
	Rejected
)

// ExecutionReport is what the order sink hands back asynchronously.
type ExecutionReport struct {
	OrderID   string
	SymbolID  uint32
	Side      risk.Side
	FilledQty uint32
	Price     int64
	Status    OrderStatus
}

// OrderSink is the external downstream collaborator: it accepts
// orders and later reports fills via the callback registered through
// Engine.OnExecutionReport.
type OrderSink interface {
	Submit(symbolID uint32, side risk.Side, qty uint32, limitPrice int64) (orderID string, err error)
	Cancel(orderID string) error
}

// ArbSink receives triangular-arbitrage opportunities for execution.
// A no-op implementation simply drops them (paper mode).
type ArbSink interface {
	Execute(opp arb.Opportunity, relation *arb.Relation)
}

// Engine holds references to every collaborator in the hot path. None
// of its methods may block, allocate on the steady-state path, or
// acquire a lock beyond the single mutex already owned by risk.Manager
// for cross-thread snapshot reads.
type Engine struct {
	symbols   *symtab.Table
	strategies []Strategy
	riskMgr   *risk.Manager
	detector  *arb.Detector
	orderSink OrderSink
	arbSink   ArbSink
	publisher *telemetry.Publisher
}

// New constructs an Engine. publisher may be nil to disable telemetry.
func New(symbols *symtab.Table, strategies []Strategy, riskMgr *risk.Manager, detector *arb.Detector, orderSink OrderSink, arbSink ArbSink, publisher *telemetry.Publisher) *Engine {
	return &Engine{
		symbols:    symbols,
		strategies: strategies,
		riskMgr:    riskMgr,
		detector:   detector,
		orderSink:  orderSink,
		arbSink:    arbSink,
		publisher:  publisher,
	}
}

// Handlers returns a stream.Handlers bundle whose callbacks drive
// OnBookTicker for every incoming quote. Trade/Kline callbacks are
// left for the caller to wire into whichever strategies consume them.
func (e *Engine) Handlers() stream.Handlers {
	return stream.Handlers{OnBookTicker: e.OnBookTicker}
}

// OnBookTicker is step 1-7 of the engine glue, executed synchronously
// on the ingress goroutine for every tick:
//  1. resolve symbol text -> dense id
//  2. write last_bid/ask/qty into the slot (rejecting crossed quotes)
//  3. invoke each strategy
//  4. pre-trade check each non-Hold signal
//  5. hand accepted signals to the order sink
//  6. (execution reports flow back via OnExecutionReport, not here)
//  7. forward (symbol, bid, ask) to the triangular detector
func (e *Engine) OnBookTicker(bt stream.BookTicker) {
	id, ok := e.symbols.ResolveID(bt.Symbol)
	if !ok {
		return // unregistered symbol: dropped, not fatal
	}

	if !e.symbols.UpdateQuote(id, bt.BidPrice, bt.AskPrice, bt.BidQty, bt.AskQty) {
		return // crossed market or inactive slot: reject at ingress
	}

	if e.publisher != nil {
		e.publisher.Publish(telemetry.NewQuotePacket(uint16(id), telemetry.QuotePayload{
			BidPrice: bt.BidPrice,
			AskPrice: bt.AskPrice,
			BidSize:  bt.BidQty,
			AskSize:  bt.AskQty,
		}))
	}

	slot := e.symbols.Slot(id)
	for _, strat := range e.strategies {
		signal := strat(id, slot)
		if signal.Action == Hold {
			continue
		}
		e.dispatchSignal(id, signal)
	}

	if e.detector != nil {
		bid := float64(bt.BidPrice) / float64(symtab.Scale)
		ask := float64(bt.AskPrice) / float64(symtab.Scale)
		opps := e.detector.OnPriceUpdate(bt.Symbol, bid, ask, int64(bt.UpdateTime.UnixNano()))
		for _, opp := range opps {
			if e.arbSink != nil {
				e.arbSink.Execute(opp, e.detector.Relation(opp.RelationIndex))
			}
		}
	}
}

func (e *Engine) dispatchSignal(symbolID uint32, signal Signal) {
	side := risk.Buy
	if signal.Action == Sell {
		side = risk.Sell
	}

	if !e.riskMgr.CheckOrder(symbolID, side, signal.Qty, signal.Limit) {
		return // rejected silently at the gate, per spec §7
	}
	if e.orderSink == nil {
		return
	}
	_, _ = e.orderSink.Submit(symbolID, side, signal.Qty, signal.Limit)
}

// OnExecutionReport is step 6: acknowledged fills flow back through
// the risk manager's post-fill update (which also updates the
// symbol table's position field).
func (e *Engine) OnExecutionReport(report ExecutionReport) {
	if report.Status != Filled && report.Status != PartiallyFilled {
		return
	}
	e.riskMgr.OnFill(report.SymbolID, report.Side, report.FilledQty, report.Price)

	if e.publisher != nil {
		fillType := telemetry.FillFull
		if report.Status == PartiallyFilled {
			fillType = telemetry.FillPartial
		}
		side := telemetry.FillBuy
		if report.Side == risk.Sell {
			side = telemetry.FillSell
		}
		e.publisher.Publish(telemetry.NewFillPacket(uint16(report.SymbolID), telemetry.FillPayload{
			Price:    report.Price,
			Quantity: report.FilledQty,
			Side:     side,
			FillType: fillType,
		}))
	}
}
