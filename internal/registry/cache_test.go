package registry

import (
	"context"
	"testing"

	redismock "github.com/go-redis/redismock/v8"
)

func TestSaveAndLoadSymbolsRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)
	ctx := context.Background()

	tickers := []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}
	payload := `["BTCUSDT","ETHBTC","ETHUSDT"]`

	mock.ExpectSet(symbolsKey, []byte(payload), defaultTTL).SetVal("OK")
	if err := c.SaveSymbols(ctx, tickers); err != nil {
		t.Fatalf("SaveSymbols: %v", err)
	}

	mock.ExpectGet(symbolsKey).SetVal(payload)
	got, ok := c.LoadSymbols(ctx)
	if !ok {
		t.Fatalf("expected a cache hit")
	}
	if len(got) != 3 || got[0] != "BTCUSDT" {
		t.Fatalf("LoadSymbols = %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoadSymbolsMissReturnsFalse(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)
	ctx := context.Background()

	mock.ExpectGet(symbolsKey).RedisNil()
	_, ok := c.LoadSymbols(ctx)
	if ok {
		t.Fatalf("expected a cache miss")
	}
}

func TestSaveAndLoadRelationsRoundTrip(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := New(client)
	ctx := context.Background()

	seeds := []RelationSeed{{Leg1: "BTC/USDT", Leg2: "ETH/BTC", Leg3: "ETH/USDT", MinSpreadPct: 0.0005, Enabled: true}}
	payload := `[{"Leg1":"BTC/USDT","Leg2":"ETH/BTC","Leg3":"ETH/USDT","MinSpreadPct":0.0005,"MaxQuantity":0,"Enabled":true}]`

	mock.ExpectSet(relationsKey, []byte(payload), defaultTTL).SetVal("OK")
	if err := c.SaveRelations(ctx, seeds); err != nil {
		t.Fatalf("SaveRelations: %v", err)
	}

	mock.ExpectGet(relationsKey).SetVal(payload)
	got, ok := c.LoadRelations(ctx)
	if !ok || len(got) != 1 || got[0].Leg1 != "BTC/USDT" {
		t.Fatalf("LoadRelations = %v, ok=%v", got, ok)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
