// Package telemetry implements the fire-and-forget UDP multicast
// channel that exports engine state to external observers. The wire
// layout is compatibility-critical: exactly 64 bytes, little-endian.
package telemetry

import "encoding/binary"

// PacketSize is the fixed wire size of every TelemetryPacket.
const PacketSize = 64

// Type enumerates the telemetry payload kinds.
type Type uint8

const (
	Heartbeat Type = 0
	Quote     Type = 1
	Fill      Type = 2
	Order     Type = 3
	Position  Type = 4
	PnL       Type = 5
	Regime    Type = 6
	Risk      Type = 7
	Latency   Type = 8
)

// Packet is the in-memory representation of the 64-byte wire packet.
// Payload holds the 40 type-specific bytes verbatim; the New*Packet
// constructors below encode it and the per-type methods (Quote, Fill,
// Position, PnLOf, RegimeOf, LatencyOf) decode it.
type Packet struct {
	TimestampNs uint64
	Sequence    uint32
	SymbolID    uint16
	PacketType  Type
	Flags       uint8
	Payload     [40]byte
}

// Marshal renders p as the exact 64-byte wire format.
func (p *Packet) Marshal() [PacketSize]byte {
	var buf [PacketSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], p.TimestampNs)
	binary.LittleEndian.PutUint32(buf[8:12], p.Sequence)
	binary.LittleEndian.PutUint16(buf[12:14], p.SymbolID)
	buf[14] = byte(p.PacketType)
	buf[15] = p.Flags
	copy(buf[16:56], p.Payload[:])
	// buf[56:64] stays zero: reserved pad.
	return buf
}

// Unmarshal parses a 64-byte wire packet. Returns false if data is
// not exactly PacketSize bytes.
func Unmarshal(data []byte) (Packet, bool) {
	if len(data) != PacketSize {
		return Packet{}, false
	}
	var p Packet
	p.TimestampNs = binary.LittleEndian.Uint64(data[0:8])
	p.Sequence = binary.LittleEndian.Uint32(data[8:12])
	p.SymbolID = binary.LittleEndian.Uint16(data[12:14])
	p.PacketType = Type(data[14])
	p.Flags = data[15]
	copy(p.Payload[:], data[16:56])
	return p, true
}

// QuotePayload is the Quote (1) payload layout.
type QuotePayload struct {
	BidPrice int64
	AskPrice int64
	BidSize  uint32
	AskSize  uint32
}

func (q QuotePayload) encode() [40]byte {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(q.BidPrice))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(q.AskPrice))
	binary.LittleEndian.PutUint32(buf[16:20], q.BidSize)
	binary.LittleEndian.PutUint32(buf[20:24], q.AskSize)
	return buf
}

func decodeQuote(buf [40]byte) QuotePayload {
	return QuotePayload{
		BidPrice: int64(binary.LittleEndian.Uint64(buf[0:8])),
		AskPrice: int64(binary.LittleEndian.Uint64(buf[8:16])),
		BidSize:  binary.LittleEndian.Uint32(buf[16:20]),
		AskSize:  binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// NewQuotePacket builds a Quote packet. ts/seq are supplied by the
// publisher.
func NewQuotePacket(symbolID uint16, q QuotePayload) Packet {
	return Packet{SymbolID: symbolID, PacketType: Quote, Payload: q.encode()}
}

// Quote decodes p's payload as a QuotePayload. Callers must check
// p.PacketType == Quote first.
func (p *Packet) Quote() QuotePayload { return decodeQuote(p.Payload) }

// FillSide mirrors the wire-level 0=Buy,1=Sell encoding.
type FillSide uint8

const (
	FillBuy  FillSide = 0
	FillSell FillSide = 1
)

// FillType distinguishes a full vs partial execution report.
type FillType uint8

const (
	FillFull    FillType = 0
	FillPartial FillType = 1
)

// FillPayload is the Fill (2) payload layout.
type FillPayload struct {
	Price    int64
	Quantity uint32
	Side     FillSide
	FillType FillType
}

func (f FillPayload) encode() [40]byte {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(f.Price))
	binary.LittleEndian.PutUint32(buf[8:12], f.Quantity)
	buf[12] = byte(f.Side)
	buf[13] = byte(f.FillType)
	return buf
}

func decodeFill(buf [40]byte) FillPayload {
	return FillPayload{
		Price:    int64(binary.LittleEndian.Uint64(buf[0:8])),
		Quantity: binary.LittleEndian.Uint32(buf[8:12]),
		Side:     FillSide(buf[12]),
		FillType: FillType(buf[13]),
	}
}

// NewFillPacket builds a Fill packet.
func NewFillPacket(symbolID uint16, f FillPayload) Packet {
	return Packet{SymbolID: symbolID, PacketType: Fill, Payload: f.encode()}
}

// Fill decodes p's payload as a FillPayload.
func (p *Packet) Fill() FillPayload { return decodeFill(p.Payload) }

// PositionPayload is the Position (4) payload layout.
type PositionPayload struct {
	Quantity      int64
	AvgPrice      int64
	MarketValue   int64
	UnrealizedPnL int64
}

func (pp PositionPayload) encode() [40]byte {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(pp.Quantity))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(pp.AvgPrice))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(pp.MarketValue))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(pp.UnrealizedPnL))
	return buf
}

func decodePosition(buf [40]byte) PositionPayload {
	return PositionPayload{
		Quantity:      int64(binary.LittleEndian.Uint64(buf[0:8])),
		AvgPrice:      int64(binary.LittleEndian.Uint64(buf[8:16])),
		MarketValue:   int64(binary.LittleEndian.Uint64(buf[16:24])),
		UnrealizedPnL: int64(binary.LittleEndian.Uint64(buf[24:32])),
	}
}

// NewPositionPacket builds a Position packet.
func NewPositionPacket(symbolID uint16, pp PositionPayload) Packet {
	return Packet{SymbolID: symbolID, PacketType: Position, Payload: pp.encode()}
}

// Position decodes p's payload as a PositionPayload.
func (p *Packet) Position() PositionPayload { return decodePosition(p.Payload) }

// PnLPayload is the PnL (5) payload layout.
type PnLPayload struct {
	RealizedPnL   int64
	UnrealizedPnL int64
	TotalEquity   int64
	WinCount      uint32
	LossCount     uint32
}

func (pl PnLPayload) encode() [40]byte {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(pl.RealizedPnL))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(pl.UnrealizedPnL))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(pl.TotalEquity))
	binary.LittleEndian.PutUint32(buf[24:28], pl.WinCount)
	binary.LittleEndian.PutUint32(buf[28:32], pl.LossCount)
	return buf
}

func decodePnL(buf [40]byte) PnLPayload {
	return PnLPayload{
		RealizedPnL:   int64(binary.LittleEndian.Uint64(buf[0:8])),
		UnrealizedPnL: int64(binary.LittleEndian.Uint64(buf[8:16])),
		TotalEquity:   int64(binary.LittleEndian.Uint64(buf[16:24])),
		WinCount:      binary.LittleEndian.Uint32(buf[24:28]),
		LossCount:     binary.LittleEndian.Uint32(buf[28:32]),
	}
}

// NewPnLPacket builds a PnL packet.
func NewPnLPacket(pl PnLPayload) Packet {
	return Packet{SymbolID: 0, PacketType: PnL, Payload: pl.encode()}
}

// PnLOf decodes p's payload as a PnLPayload.
func (p *Packet) PnLOf() PnLPayload { return decodePnL(p.Payload) }

// RegimePayload is the Regime (6) payload layout.
type RegimePayload struct {
	Regime     uint8
	Confidence uint8 // 0-100
	Volatility int64
}

func (r RegimePayload) encode() [40]byte {
	var buf [40]byte
	buf[0] = r.Regime
	buf[1] = r.Confidence
	binary.LittleEndian.PutUint64(buf[2:10], uint64(r.Volatility))
	return buf
}

func decodeRegime(buf [40]byte) RegimePayload {
	return RegimePayload{
		Regime:     buf[0],
		Confidence: buf[1],
		Volatility: int64(binary.LittleEndian.Uint64(buf[2:10])),
	}
}

// NewRegimePacket builds a Regime packet.
func NewRegimePacket(r RegimePayload) Packet {
	return Packet{SymbolID: 0, PacketType: Regime, Payload: r.encode()}
}

// RegimeOf decodes p's payload as a RegimePayload.
func (p *Packet) RegimeOf() RegimePayload { return decodeRegime(p.Payload) }

// LatencyPayload is the Latency (8) payload layout.
type LatencyPayload struct {
	TickToDecisionNs  uint32
	DecisionToOrderNs uint32
	OrderToAckNs      uint32
	TotalRoundtripNs  uint32
}

func (l LatencyPayload) encode() [40]byte {
	var buf [40]byte
	binary.LittleEndian.PutUint32(buf[0:4], l.TickToDecisionNs)
	binary.LittleEndian.PutUint32(buf[4:8], l.DecisionToOrderNs)
	binary.LittleEndian.PutUint32(buf[8:12], l.OrderToAckNs)
	binary.LittleEndian.PutUint32(buf[12:16], l.TotalRoundtripNs)
	return buf
}

func decodeLatency(buf [40]byte) LatencyPayload {
	return LatencyPayload{
		TickToDecisionNs:  binary.LittleEndian.Uint32(buf[0:4]),
		DecisionToOrderNs: binary.LittleEndian.Uint32(buf[4:8]),
		OrderToAckNs:      binary.LittleEndian.Uint32(buf[8:12]),
		TotalRoundtripNs:  binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// NewLatencyPacket builds a Latency packet.
func NewLatencyPacket(symbolID uint16, l LatencyPayload) Packet {
	return Packet{SymbolID: symbolID, PacketType: Latency, Payload: l.encode()}
}

// LatencyOf decodes p's payload as a LatencyPayload.
func (p *Packet) LatencyOf() LatencyPayload { return decodeLatency(p.Payload) }
