package arb

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTriangle(t *testing.T, minSpread float64) *Detector {
	t.Helper()
	cfg := Config{
		ExecutionCooldownUs: 1_000_000, // 1e9 ns
		DefaultMinSpreadPct: minSpread,
		DefaultMaxQuantity:  1,
	}
	d := Build([]string{"BTC/USDT", "ETH/BTC", "ETH/USDT"}, cfg, nil)
	require.Len(t, d.Relations(), 1, "expected exactly one discovered relation")
	return d
}

func TestArbitrageRoundTrip(t *testing.T) {
	d := buildTriangle(t, 0.0005)

	d.OnPriceUpdate("BTC/USDT", 60000, 60010, 1_000_000_000)
	d.OnPriceUpdate("ETH/BTC", 0.05, 0.0501, 1_000_000_000)
	opps := d.OnPriceUpdate("ETH/USDT", 3010, 3011, 1_000_000_000)

	require.Len(t, opps, 1)
	opp := opps[0]
	require.Equal(t, DirForward, opp.Direction)
	require.InDelta(t, 0.00116, opp.BestSpread, 2e-4)

	wantOrders := [3]Order{
		{Symbol: "BTC/USDT", Side: Buy, Price: 60010},
		{Symbol: "ETH/BTC", Side: Buy, Price: 0.0501},
		{Symbol: "ETH/USDT", Side: Sell, Price: 3010},
	}
	require.Equal(t, wantOrders, opp.Orders)
}

func TestCooldownSuppressesRepeatedExecution(t *testing.T) {
	d := buildTriangle(t, 0.0005)

	d.OnPriceUpdate("BTC/USDT", 60000, 60010, 1_000_000_000)
	d.OnPriceUpdate("ETH/BTC", 0.05, 0.0501, 1_000_000_000)
	opps := d.OnPriceUpdate("ETH/USDT", 3010, 3011, 1_000_000_000)
	require.Len(t, opps, 1, "expected one opportunity before execution")
	d.MarkExecuted(opps[0], 1_000_000_000)

	// Same prices, well within the 1s cooldown.
	again := d.OnPriceUpdate("ETH/USDT", 3010, 3011, 1_500_000_000)
	require.Empty(t, again, "expected no opportunity within cooldown")

	rel := d.Relation(opps[0].RelationIndex)
	require.EqualValues(t, 1, rel.OpportunitiesExecuted)
}

func TestMissingLegPriceYieldsZeroSpreads(t *testing.T) {
	d := buildTriangle(t, 0.0005)
	d.OnPriceUpdate("BTC/USDT", 60000, 60010, 1)
	d.OnPriceUpdate("ETH/BTC", 0.05, 0.0501, 1)
	// leg3 never updated.
	rel := &d.relations[0]
	if rel.ForwardSpread != 0 || rel.ReverseSpread != 0 {
		t.Fatalf("expected zero spreads with a missing leg, got forward=%v reverse=%v",
			rel.ForwardSpread, rel.ReverseSpread)
	}
}

func TestTieBreakPicksLargerSpread(t *testing.T) {
	d := buildTriangle(t, -1) // force both directions "profitable"
	d.OnPriceUpdate("BTC/USDT", 60000, 60010, 1)
	d.OnPriceUpdate("ETH/BTC", 0.05, 0.0501, 1)
	opps := d.OnPriceUpdate("ETH/USDT", 3010, 3011, 1)
	if len(opps) != 1 {
		t.Fatalf("expected one opportunity, got %d", len(opps))
	}
	rel := d.Relation(opps[0].RelationIndex)
	wantBest := math.Max(rel.ForwardSpread, rel.ReverseSpread)
	if opps[0].BestSpread != wantBest {
		t.Fatalf("best spread = %v, want max(forward,reverse) = %v", opps[0].BestSpread, wantBest)
	}
}

func TestExcludedSubstringDropsSymbolFromDiscovery(t *testing.T) {
	cfg := Config{ExcludedSubstrings: []string{"UP", "DOWN"}}
	d := Build([]string{"BTC/USDT", "ETH/BTC", "ETH/USDT", "BTCUP/USDT"}, cfg, nil)
	for _, rel := range d.Relations() {
		for _, leg := range []string{rel.Leg1.Original, rel.Leg2.Original, rel.Leg3.Original} {
			if leg == "BTCUP/USDT" {
				t.Fatalf("excluded symbol leaked into a discovered relation")
			}
		}
	}
}
