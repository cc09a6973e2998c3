// Package pairs normalizes exchange symbol spellings ("BTC/USDT",
// "BTCUSDT", "ETH-BTC") into a base/quote pair.
package pairs

import "strings"

// quoteSuffixes is checked longest-first so "BUSD" wins over "USD"
// when both match the trailing characters of a symbol.
var quoteSuffixes = []string{
	"TUSD", "BUSD", "USDT", "USDC", "USD",
	"EUR", "GBP", "BTC", "ETH", "BNB", "DAI",
}

// Pair is a parsed symbol: Base and Quote are uppercase currency
// codes, Original preserves the input text verbatim.
type Pair struct {
	Base, Quote, Original string
}

// Valid reports whether both legs of the pair are non-empty.
func (p Pair) Valid() bool {
	return p.Base != "" && p.Quote != ""
}

// String renders the canonical "BASE/QUOTE" form.
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Parse normalizes sym into a Pair. It first looks for an interior
// delimiter ('/', '-', '_'); failing that, it uppercases the input and
// matches the longest known quote-currency suffix. Returns false if
// neither strategy finds a split point.
func Parse(sym string) (Pair, bool) {
	if p, ok := splitOnDelimiter(sym); ok {
		return p, true
	}
	return splitOnSuffix(sym)
}

func splitOnDelimiter(sym string) (Pair, bool) {
	for _, delim := range []string{"/", "-", "_"} {
		idx := strings.Index(sym, delim)
		if idx > 0 && idx < len(sym)-1 {
			base := strings.ToUpper(sym[:idx])
			quote := strings.ToUpper(sym[idx+len(delim):])
			return Pair{Base: base, Quote: quote, Original: sym}, true
		}
	}
	return Pair{}, false
}

func splitOnSuffix(sym string) (Pair, bool) {
	upper := strings.ToUpper(sym)

	var bestSuffix string
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(upper, suffix) && len(suffix) > len(bestSuffix) {
			bestSuffix = suffix
		}
	}
	if bestSuffix == "" {
		return Pair{}, false
	}

	base := strings.TrimSuffix(upper, bestSuffix)
	if base == "" {
		return Pair{}, false
	}
	return Pair{Base: base, Quote: bestSuffix, Original: sym}, true
}

// SharesCurrency reports whether a and b have any base or quote leg in
// common.
func SharesCurrency(a, b Pair) bool {
	return CommonCurrency(a, b) != ""
}

// CommonCurrency returns a currency code present in both a's and b's
// legs, or "" if none.
func CommonCurrency(a, b Pair) string {
	aLegs := [2]string{a.Base, a.Quote}
	bLegs := [2]string{b.Base, b.Quote}
	for _, al := range aLegs {
		for _, bl := range bLegs {
			if al != "" && al == bl {
				return al
			}
		}
	}
	return ""
}
