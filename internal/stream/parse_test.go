package stream

import "testing"

func TestParseBookTickerCombinedEnvelope(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"60000.1234","B":"1.5","a":"60010.5678","A":"2.25"}}`)

	var got BookTicker
	h := Handlers{OnBookTicker: func(bt BookTicker) { got = bt }}
	if err := routeMessage(raw, h); err != nil {
		t.Fatalf("routeMessage: %v", err)
	}

	if got.Symbol != "BTCUSDT" {
		t.Fatalf("symbol = %q", got.Symbol)
	}
	if got.BidPrice != 600001234 {
		t.Fatalf("bid price = %d, want 600001234", got.BidPrice)
	}
	if got.AskPrice != 600105678 {
		t.Fatalf("ask price = %d, want 600105678", got.AskPrice)
	}
	if got.BidQty != 1 || got.AskQty != 2 {
		t.Fatalf("quantities = %d/%d", got.BidQty, got.AskQty)
	}
}

func TestParseTradeRawShape(t *testing.T) {
	raw := []byte(`{"s":"ETHUSDT","t":12345,"p":"3000.5","q":"0.75","T":1700000000000,"m":true}`)

	var got Trade
	h := Handlers{OnTrade: func(tr Trade) { got = tr }}
	if err := routeMessage(raw, h); err != nil {
		t.Fatalf("routeMessage: %v", err)
	}
	if got.Symbol != "ETHUSDT" || got.TradeID != 12345 || !got.IsBuyerMaker {
		t.Fatalf("trade mismatch: %+v", got)
	}
	if got.Price != 30005000 {
		t.Fatalf("price = %d, want 30005000", got.Price)
	}
}

func TestParseKlineCombinedEnvelope(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@kline_1m","data":{"s":"BTCUSDT","k":{"t":1,"T":2,"o":"100","h":"110","l":"90","c":"105","v":"10","n":42,"x":true}}}`)

	var got Kline
	h := Handlers{OnKline: func(k Kline) { got = k }}
	if err := routeMessage(raw, h); err != nil {
		t.Fatalf("routeMessage: %v", err)
	}
	if got.Symbol != "BTCUSDT" || !got.IsClosed || got.TradeCount != 42 {
		t.Fatalf("kline mismatch: %+v", got)
	}
}

func TestMalformedMessageDroppedNotFatal(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@bookTicker","data":{"s":"BTCUSDT","b":"not-a-number","B":"1","a":"2","A":"1"}}`)

	called := false
	h := Handlers{OnBookTicker: func(BookTicker) { called = true }}
	if err := routeMessage(raw, h); err != nil {
		t.Fatalf("routeMessage should not error on a protocol fault: %v", err)
	}
	if called {
		t.Fatalf("handler should not fire for an unparseable price field")
	}
}

func TestPriceScaleTruncates(t *testing.T) {
	got, ok := priceScale("60000.12345")
	if !ok {
		t.Fatalf("priceScale failed")
	}
	if got != 600001234 {
		t.Fatalf("priceScale(60000.12345) = %d, want 600001234 (truncated)", got)
	}
}
