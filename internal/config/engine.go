// Package config loads the engine's YAML configuration files,
// following the teacher repo's split convention: the main engine
// config uses yaml.v3, the relation override file uses the older
// yaml.v2 decoder.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EngineConfig is the top-level engine configuration: the symbol
// registry, stream endpoint, and risk limits.
type EngineConfig struct {
	Stream StreamConfig `yaml:"stream"`
	Risk   RiskConfig   `yaml:"risk"`
	Arb    ArbConfig    `yaml:"arb"`

	Symbols []SymbolConfig `yaml:"symbols"`
}

// StreamConfig configures the exchange session.
type StreamConfig struct {
	Host            string   `yaml:"host"`
	Testnet         bool     `yaml:"testnet"`
	Subscriptions   []string `yaml:"subscriptions"` // e.g. "btcusdt@bookTicker"
	StaleTimeoutSec int      `yaml:"stale_timeout_sec"`
	AutoReconnect   bool     `yaml:"auto_reconnect"`
}

// RiskConfig configures the pre-trade gate.
type RiskConfig struct {
	InitialCapital   int64                     `yaml:"initial_capital"`
	MaxOrderSize     uint32                    `yaml:"max_order_size"`
	MaxTotalNotional int64                     `yaml:"max_total_notional"`
	DailyLossLimit   int64                     `yaml:"daily_loss_limit"`
	MaxDrawdownPct   float64                   `yaml:"max_drawdown_pct"`
	PerSymbol        map[string]SymbolRiskLimit `yaml:"per_symbol"`
}

// SymbolRiskLimit is a per-symbol override, keyed by ticker in YAML.
type SymbolRiskLimit struct {
	MaxPosition int64 `yaml:"max_position"`
	MaxNotional int64 `yaml:"max_notional"`
}

// ArbConfig configures triangular-relation discovery.
type ArbConfig struct {
	MaxAutoRelationships int      `yaml:"max_auto_relationships"`
	ExcludedSubstrings   []string `yaml:"excluded_substrings"`
	ExecutionCooldownUs  int64    `yaml:"execution_cooldown_us"`
	DefaultMinSpreadPct  float64  `yaml:"default_min_spread_pct"`
	DefaultMaxQuantity   float64  `yaml:"default_max_quantity"`
}

// SymbolConfig registers one symbol in the fixed symbol table.
type SymbolConfig struct {
	Ticker string `yaml:"ticker"`
}

// LoadEngineConfig reads and parses the main engine YAML file.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine config: %w", err)
	}
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse engine config: %w", err)
	}
	return &cfg, nil
}
