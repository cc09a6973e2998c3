package config

import (
	"fmt"
	"os"

	yaml2 "gopkg.in/yaml.v2"

	"github.com/triarb/engine/internal/arb"
)

// RelationOverrides is the manual-override file for triangular
// relationships: operators hand-tune spreads and quantity caps per
// triangle without touching the main engine config. Kept on the
// older yaml.v2 decoder, matching the teacher's split between its
// generated/provider config (v3) and its hand-edited guard files (v2).
type RelationOverrides struct {
	Overrides []RelationOverride `yaml:"overrides"`
}

// RelationOverride mirrors arb.Override's YAML shape; blank leg names
// are wildcards.
type RelationOverride struct {
	Leg1         string  `yaml:"leg1"`
	Leg2         string  `yaml:"leg2"`
	Leg3         string  `yaml:"leg3"`
	MinSpreadPct float64 `yaml:"min_spread_pct"`
	MaxQuantity  float64 `yaml:"max_quantity"`
	Enabled      bool    `yaml:"enabled"`
}

// LoadRelationOverrides reads the yaml.v2 override file and converts
// it to the arb package's Override type.
func LoadRelationOverrides(path string) ([]arb.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read relation overrides: %w", err)
	}
	var doc RelationOverrides
	if err := yaml2.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse relation overrides: %w", err)
	}

	out := make([]arb.Override, 0, len(doc.Overrides))
	for _, o := range doc.Overrides {
		out = append(out, arb.Override{
			Leg1:         o.Leg1,
			Leg2:         o.Leg2,
			Leg3:         o.Leg3,
			MinSpreadPct: o.MinSpreadPct,
			MaxQuantity:  o.MaxQuantity,
			Enabled:      o.Enabled,
		})
	}
	return out, nil
}
