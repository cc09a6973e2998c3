// Package stream maintains the resilient market-data session to the
// exchange push feed: framing, tolerant JSON parsing, and the
// reconnect state machine. It is the latency-critical entry point —
// every callback here runs synchronously on the ingress goroutine.
package stream

import "time"

// State is the connection state machine: Disconnected -> Connecting
// -> Connected -> {Receiving, Stale} -> Disconnected.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Receiving
	Stale
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Receiving:
		return "receiving"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// BookTicker is the extracted best-bid/ask update.
type BookTicker struct {
	Symbol     string
	BidPrice   int64 // fixed-point, scale 1e4
	BidQty     uint32
	AskPrice   int64
	AskQty     uint32
	UpdateTime time.Time
}

// Trade is the extracted individual trade update.
type Trade struct {
	Symbol       string
	TradeID      int64
	Price        int64
	Quantity     uint32
	Time         time.Time
	IsBuyerMaker bool
}

// Kline is the extracted time-bar update.
type Kline struct {
	Symbol      string
	OpenTime    time.Time
	CloseTime   time.Time
	Open        int64
	High        int64
	Low         int64
	Close       int64
	Volume      uint32
	TradeCount  int64
	IsClosed    bool
}

// Handlers are the user-supplied callbacks invoked synchronously on
// the ingress goroutine. Any of them may be nil.
type Handlers struct {
	OnBookTicker func(BookTicker)
	OnTrade      func(Trade)
	OnKline      func(Kline)
	OnConnect    func(success bool)
	OnError      func(message string)
	OnReconnect  func(attempt int, success bool)
}
