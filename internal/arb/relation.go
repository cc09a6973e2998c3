// Package arb builds the triangular-arbitrage relationship graph over
// currency pairs and emits opportunity events as leg prices update.
package arb

import (
	"strings"

	"github.com/triarb/engine/internal/pairs"
)

// Direction is the profitable cycle direction of an opportunity.
type Direction int

const (
	// DirForward is the buy-cycle: buy leg1, buy leg2, sell leg3.
	DirForward Direction = 1
	// DirReverse is the sell-cycle: sell leg1, sell leg2, buy leg3.
	DirReverse Direction = -1
)

// Relation holds three legs forming a closed currency triangle:
// leg1 = A/B, leg2 = C/A, leg3 = C/B, with:
//
//	leg2.Quote == leg1.Base
//	leg3.Base  == leg2.Base
//	leg3.Quote == leg1.Quote
//	leg2.Base not in {leg1.Base, leg1.Quote}
//
// Relations are discovered once and never reallocated: an
// Opportunity carries a stable index into the owning Detector's
// relation slice rather than a pointer, so the slice backing array
// can never be invalidated under a live reference.
type Relation struct {
	Leg1, Leg2, Leg3 pairs.Pair

	MinSpreadPct float64
	MaxQuantity  float64
	Enabled      bool

	Leg1Bid, Leg1Ask float64
	Leg2Bid, Leg2Ask float64
	Leg3Bid, Leg3Ask float64

	ForwardSpread float64
	ReverseSpread float64

	// LastExecutionNs is neverExecuted until MarkExecuted is first
	// called on this relation.
	LastExecutionNs       int64
	OpportunitiesExecuted uint64
	TotalProfit           float64
}

// formsRelation checks the closure conditions that make (leg1, leg2,
// leg3) a well-formed triangle.
func formsRelation(leg1, leg2, leg3 pairs.Pair) bool {
	if leg2.Quote != leg1.Base {
		return false
	}
	if leg3.Base != leg2.Base {
		return false
	}
	if leg3.Quote != leg1.Quote {
		return false
	}
	if leg2.Base == leg1.Base || leg2.Base == leg1.Quote {
		return false
	}
	return true
}

// Override pins a specific relation's legs by name; a blank leg name
// matches any leg (wildcard), letting an operator override only the
// config of a relation while leaving auto-discovery to pick the legs.
type Override struct {
	Leg1, Leg2, Leg3 string
	MinSpreadPct     float64
	MaxQuantity      float64
	Enabled          bool
}

func (o Override) matches(r *Relation) bool {
	return matchLeg(o.Leg1, r.Leg1) && matchLeg(o.Leg2, r.Leg2) && matchLeg(o.Leg3, r.Leg3)
}

func matchLeg(name string, p pairs.Pair) bool {
	if name == "" {
		return true
	}
	return strings.EqualFold(name, p.String()) || strings.EqualFold(name, p.Original)
}

// hasExcludedSubstring reports whether any of excluded appears in sym
// (case-insensitive), used to drop leveraged/synthetic listings from
// discovery.
func hasExcludedSubstring(sym string, excluded []string) bool {
	upper := strings.ToUpper(sym)
	for _, e := range excluded {
		if e != "" && strings.Contains(upper, strings.ToUpper(e)) {
			return true
		}
	}
	return false
}
