package stream

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// envelope is the combined-stream wrapper: {"stream": "...", "data": {...}}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// bookTickerWire is the tolerant, key-indexed shape of a bookTicker
// message. Only Binance's raw one-letter keys ("s","b","B","a","A")
// are recognized; long-form field names are not decoded.
type bookTickerWire struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type tradeWire struct {
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTimeMs  int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

type klineWire struct {
	Symbol string `json:"s"`
	K      struct {
		OpenTimeMs  int64  `json:"t"`
		CloseTimeMs int64  `json:"T"`
		Open        string `json:"o"`
		High        string `json:"h"`
		Low         string `json:"l"`
		Close       string `json:"c"`
		Volume      string `json:"v"`
		TradeCount  int64  `json:"n"`
		IsClosed    bool   `json:"x"`
	} `json:"k"`
}

// priceScale converts a decimal price string to the fixed-point
// representation (ticks of 1e-4 of quote currency), truncating any
// remaining fractional ticks.
func priceScale(decimal string) (int64, bool) {
	f, err := strconv.ParseFloat(decimal, 64)
	if err != nil {
		return 0, false
	}
	return int64(f * 10_000), true
}

func qtyScale(decimal string) (uint32, bool) {
	f, err := strconv.ParseFloat(decimal, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return uint32(f), true
}

// routeMessage unwraps a combined-stream envelope (if present) and
// dispatches to the matching handler by stream-name suffix. Raw
// single-stream payloads (no "stream" wrapper) are routed by
// best-effort shape sniffing: a bookTicker has "b"/"a", a trade has
// "t"/"m", a kline has "k".
func routeMessage(raw []byte, h Handlers) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Stream != "" {
		return routeByStreamName(env.Stream, env.Data, h)
	}
	return routeByShape(raw, h)
}

func routeByStreamName(streamName string, data []byte, h Handlers) error {
	switch {
	case strings.HasSuffix(streamName, "@bookTicker"):
		return parseBookTicker(data, h)
	case strings.HasSuffix(streamName, "@trade"):
		return parseTrade(data, h)
	case strings.Contains(streamName, "@kline_"):
		return parseKline(data, h)
	default:
		return nil
	}
}

func routeByShape(raw []byte, h Handlers) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	switch {
	case has(probe, "b") && has(probe, "a") && has(probe, "B"):
		return parseBookTicker(raw, h)
	case has(probe, "k"):
		return parseKline(raw, h)
	case has(probe, "t") && has(probe, "m"):
		return parseTrade(raw, h)
	default:
		return nil
	}
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func parseBookTicker(data []byte, h Handlers) error {
	var w bookTickerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	bid, ok1 := priceScale(w.BidPrice)
	ask, ok2 := priceScale(w.AskPrice)
	if !ok1 || !ok2 {
		return nil // protocol fault: dropped, not fatal per spec §7
	}
	bidQty, _ := qtyScale(w.BidQty)
	askQty, _ := qtyScale(w.AskQty)

	if h.OnBookTicker != nil {
		h.OnBookTicker(BookTicker{
			Symbol:     w.Symbol,
			BidPrice:   bid,
			BidQty:     bidQty,
			AskPrice:   ask,
			AskQty:     askQty,
			UpdateTime: time.Now(),
		})
	}
	return nil
}

func parseTrade(data []byte, h Handlers) error {
	var w tradeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	price, ok := priceScale(w.Price)
	if !ok {
		return nil
	}
	qty, _ := qtyScale(w.Quantity)

	if h.OnTrade != nil {
		h.OnTrade(Trade{
			Symbol:       w.Symbol,
			TradeID:      w.TradeID,
			Price:        price,
			Quantity:     qty,
			Time:         time.UnixMilli(w.TradeTimeMs),
			IsBuyerMaker: w.IsBuyerMaker,
		})
	}
	return nil
}

func parseKline(data []byte, h Handlers) error {
	var w klineWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	open, _ := priceScale(w.K.Open)
	high, _ := priceScale(w.K.High)
	low, _ := priceScale(w.K.Low)
	closePx, _ := priceScale(w.K.Close)
	vol, _ := qtyScale(w.K.Volume)

	if h.OnKline != nil {
		h.OnKline(Kline{
			Symbol:     w.Symbol,
			OpenTime:   time.UnixMilli(w.K.OpenTimeMs),
			CloseTime:  time.UnixMilli(w.K.CloseTimeMs),
			Open:       open,
			High:       high,
			Low:        low,
			Close:      closePx,
			Volume:     vol,
			TradeCount: w.K.TradeCount,
			IsClosed:   w.K.IsClosed,
		})
	}
	return nil
}
