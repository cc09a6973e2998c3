package arb

import (
	"math"

	"github.com/triarb/engine/internal/pairs"
)

// DefaultMaxAutoRelationships bounds discovery so a large universe
// doesn't produce a combinatorial explosion of triangles.
const DefaultMaxAutoRelationships = 500

// neverExecuted sentinels a relation that has never had an opportunity
// marked executed, so its first-ever opportunity isn't mistaken for one
// arriving within the cooldown of a fictitious execution at t=0.
const neverExecuted int64 = math.MinInt64

// Order is a derived limit order one leg of an opportunity requires.
type Order struct {
	Symbol string
	Side   Side
	Price  float64
}

// Side mirrors the spec's two-valued Buy/Sell enum for derived orders.
type Side int

const (
	Buy Side = iota
	Sell
)

// Opportunity is a value-only arbitrage event: RelationIndex is a
// stable index into the Detector's relation slice, never a pointer,
// so it survives independent of any reallocation concern (discovery
// never reallocates after Build completes).
type Opportunity struct {
	RelationIndex int
	Direction     Direction
	BestSpread    float64
	Orders        [3]Order
	TimestampNs   int64
}

// Detector owns the discovered relation set and the symbol->relation
// index used for O(k) dispatch on every price update.
type Detector struct {
	relations []Relation
	// index maps both a symbol's original text and its normalized
	// "base/quote" form to the relation indices that include it.
	index map[string][]int

	maxAutoRelationships int
	excludedSubstrings   []string
	cooldownNs           int64
}

// Config parameterizes discovery and the execution cooldown.
type Config struct {
	MaxAutoRelationships int
	ExcludedSubstrings   []string
	ExecutionCooldownUs  int64
	DefaultMinSpreadPct  float64
	DefaultMaxQuantity   float64
}

// Build discovers relations from symbols, applies overrides, and
// constructs the symbol->relation index. It is the only place
// relations are appended to the detector's slice; once Build returns,
// the slice is never reallocated, so RelationIndex values stay valid
// for the life of the Detector. Rebuilding (a fresh Build call)
// produces a brand-new Detector rather than mutating in place.
func Build(symbols []string, cfg Config, overrides []Override) *Detector {
	maxRel := cfg.MaxAutoRelationships
	if maxRel <= 0 {
		maxRel = DefaultMaxAutoRelationships
	}

	d := &Detector{
		index:                make(map[string][]int),
		maxAutoRelationships: maxRel,
		excludedSubstrings:   cfg.ExcludedSubstrings,
		cooldownNs:           cfg.ExecutionCooldownUs * 1_000,
	}

	parsed := make([]pairs.Pair, 0, len(symbols))
	for _, sym := range symbols {
		if hasExcludedSubstring(sym, cfg.ExcludedSubstrings) {
			continue
		}
		p, ok := pairs.Parse(sym)
		if !ok {
			continue
		}
		parsed = append(parsed, p)
	}

	byNormalized := make(map[string]pairs.Pair, len(parsed))
	for _, p := range parsed {
		byNormalized[p.String()] = p
	}

	minSpread := cfg.DefaultMinSpreadPct
	maxQty := cfg.DefaultMaxQuantity

	seen := make(map[string]bool)
outer:
	for _, ab := range parsed {
		for _, ca := range parsed {
			if len(d.relations) >= d.maxAutoRelationships {
				break outer
			}
			if ca.Quote != ab.Base {
				continue
			}
			if ca.Base == ab.Base || ca.Base == ab.Quote {
				continue
			}
			cbKey := ca.Base + "/" + ab.Quote
			cb, ok := byNormalized[cbKey]
			if !ok {
				continue
			}
			if !formsRelation(ab, ca, cb) {
				continue
			}
			dedupeKey := ab.String() + "|" + ca.String() + "|" + cb.String()
			if seen[dedupeKey] {
				continue
			}
			seen[dedupeKey] = true

			rel := Relation{
				Leg1:            ab,
				Leg2:            ca,
				Leg3:            cb,
				MinSpreadPct:    minSpread,
				MaxQuantity:     maxQty,
				Enabled:         true,
				LastExecutionNs: neverExecuted,
			}
			d.relations = append(d.relations, rel)
		}
	}

	for _, ov := range overrides {
		for i := range d.relations {
			if ov.matches(&d.relations[i]) {
				if ov.MinSpreadPct > 0 {
					d.relations[i].MinSpreadPct = ov.MinSpreadPct
				}
				if ov.MaxQuantity > 0 {
					d.relations[i].MaxQuantity = ov.MaxQuantity
				}
				d.relations[i].Enabled = ov.Enabled
			}
		}
	}

	for i := range d.relations {
		d.indexRelation(i)
	}

	return d
}

func (d *Detector) indexRelation(i int) {
	rel := &d.relations[i]
	for _, leg := range []pairs.Pair{rel.Leg1, rel.Leg2, rel.Leg3} {
		for _, key := range []string{leg.Original, leg.String()} {
			if key == "" {
				continue
			}
			d.index[key] = appendUnique(d.index[key], i)
		}
	}
}

func appendUnique(s []int, v int) []int {
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}

// Relations returns the discovered relation set. Callers must treat
// the returned slice as read-only except via OnPriceUpdate/MarkExecuted.
func (d *Detector) Relations() []Relation {
	return d.relations
}

// Relation returns a pointer to the relation at idx, or nil if idx is
// out of range.
func (d *Detector) Relation(idx int) *Relation {
	if idx < 0 || idx >= len(d.relations) {
		return nil
	}
	return &d.relations[idx]
}

// OnPriceUpdate applies a fresh (bid, ask) quote for symbol to every
// leg it appears in, recomputes both spreads for each touched
// relation, and returns any opportunities that clear their relation's
// threshold and cooldown. symbol may be either a relation leg's
// original text or its normalized "base/quote" form.
func (d *Detector) OnPriceUpdate(symbol string, bid, ask float64, nowNs int64) []Opportunity {
	relIdxs, ok := d.index[symbol]
	if !ok {
		return nil
	}

	var opps []Opportunity
	for _, idx := range relIdxs {
		rel := &d.relations[idx]
		updateLeg(rel, symbol, bid, ask)
		calculateSpreads(rel)

		if !rel.Enabled {
			continue
		}
		if rel.ForwardSpread <= rel.MinSpreadPct && rel.ReverseSpread <= rel.MinSpreadPct {
			continue
		}
		if rel.LastExecutionNs != neverExecuted && nowNs-rel.LastExecutionNs < d.cooldownNs {
			continue
		}

		dir := DirForward
		best := rel.ForwardSpread
		if rel.ReverseSpread > rel.ForwardSpread {
			dir = DirReverse
			best = rel.ReverseSpread
		}

		opps = append(opps, Opportunity{
			RelationIndex: idx,
			Direction:     dir,
			BestSpread:    best,
			Orders:        derivedOrders(rel, dir),
			TimestampNs:   nowNs,
		})
	}
	return opps
}

func updateLeg(rel *Relation, symbol string, bid, ask float64) {
	switch symbol {
	case rel.Leg1.Original, rel.Leg1.String():
		rel.Leg1Bid, rel.Leg1Ask = bid, ask
	case rel.Leg2.Original, rel.Leg2.String():
		rel.Leg2Bid, rel.Leg2Ask = bid, ask
	case rel.Leg3.Original, rel.Leg3.String():
		rel.Leg3Bid, rel.Leg3Ask = bid, ask
	}
}

// calculateSpreads recomputes forward and reverse spreads for rel. If
// any of the six leg prices is unset (zero), or an implied-rate
// denominator is non-positive, both spreads are exactly 0 — per the
// invariant that partial price data never produces a spurious signal.
// This also resolves the spec's open question: every division is
// guarded, not just the ones the original implementation happened to
// check.
func calculateSpreads(rel *Relation) {
	rel.ForwardSpread = 0
	rel.ReverseSpread = 0

	if rel.Leg1Bid <= 0 || rel.Leg1Ask <= 0 ||
		rel.Leg2Bid <= 0 || rel.Leg2Ask <= 0 ||
		rel.Leg3Bid <= 0 || rel.Leg3Ask <= 0 {
		return
	}

	impliedForward := rel.Leg1Ask * rel.Leg2Ask
	if impliedForward > 0 {
		rel.ForwardSpread = rel.Leg3Bid/impliedForward - 1
	}

	if rel.Leg3Ask > 0 {
		impliedReverse := rel.Leg1Bid * rel.Leg2Bid
		rel.ReverseSpread = impliedReverse/rel.Leg3Ask - 1
	}
}

func derivedOrders(rel *Relation, dir Direction) [3]Order {
	if dir == DirForward {
		return [3]Order{
			{Symbol: rel.Leg1.Original, Side: Buy, Price: rel.Leg1Ask},
			{Symbol: rel.Leg2.Original, Side: Buy, Price: rel.Leg2Ask},
			{Symbol: rel.Leg3.Original, Side: Sell, Price: rel.Leg3Bid},
		}
	}
	return [3]Order{
		{Symbol: rel.Leg1.Original, Side: Sell, Price: rel.Leg1Bid},
		{Symbol: rel.Leg2.Original, Side: Sell, Price: rel.Leg2Bid},
		{Symbol: rel.Leg3.Original, Side: Buy, Price: rel.Leg3Ask},
	}
}

// MarkExecuted records that opp was acted on at ts: it latches the
// relation's cooldown clock, increments its execution counter, and
// accrues the opportunity's spread into its running profit total.
func (d *Detector) MarkExecuted(opp Opportunity, ts int64) {
	rel := d.Relation(opp.RelationIndex)
	if rel == nil {
		return
	}
	rel.LastExecutionNs = ts
	rel.OpportunitiesExecuted++
	rel.TotalProfit += opp.BestSpread
}
