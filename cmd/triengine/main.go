// Command triengine runs the triangular-arbitrage engine core: a
// single ingress goroutine processing book-ticker quotes from the
// exchange stream, through the symbol table, into the pre-trade risk
// gate and the triangular detector.
//
// The CLI surface is intentionally thin: individual trading
// strategies, the interactive menu, and order-routing venues are
// out of scope here and are supplied by the caller via the
// engine.OrderSink / engine.ArbSink interfaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/triarb/engine/internal/arb"
	"github.com/triarb/engine/internal/config"
	"github.com/triarb/engine/internal/engine"
	"github.com/triarb/engine/internal/httpapi"
	"github.com/triarb/engine/internal/metrics"
	"github.com/triarb/engine/internal/registry"
	"github.com/triarb/engine/internal/risk"
	"github.com/triarb/engine/internal/stream"
	"github.com/triarb/engine/internal/symtab"
	"github.com/triarb/engine/internal/ui"
)

const appName = "triengine"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Triangular-arbitrage detection and risk-gated execution core",
		Version: "v0.1.0",
		RunE:    runEngine,
	}

	rootCmd.Flags().String("symbols", "", "Comma-separated ticker list to register, e.g. BTCUSDT,ETHBTC,ETHUSDT")
	rootCmd.Flags().Bool("paper", true, "Paper mode: log orders instead of submitting them")
	rootCmd.Flags().Duration("duration", 0, "Exit after this long (0 = run until interrupted)")
	rootCmd.Flags().Int64("initial-capital", 1_000_000_0000, "Starting capital, fixed-point at scale 1e4")
	rootCmd.Flags().Int64("max-position", 0, "Default per-symbol max position (0 = no limit)")
	rootCmd.Flags().Int("cpu-pin", -1, "Lock the ingress goroutine to its OS thread; the CPU index is logged, not applied as affinity (-1 = unlocked)")
	rootCmd.Flags().Bool("verbose", false, "Enable debug-level logging")
	rootCmd.Flags().Bool("http", true, "Expose the read-only status/metrics HTTP server")
	rootCmd.Flags().String("http-addr", "127.0.0.1:9090", "Status server bind address")
	rootCmd.Flags().Bool("testnet", false, "Connect to the exchange testnet host")
	rootCmd.Flags().String("config", "", "Path to the engine YAML config (stream/risk/arb/symbols)")
	rootCmd.Flags().String("relations", "", "Path to the relation manual-override YAML file")
	rootCmd.Flags().String("redis-addr", "", "Redis address for the startup symbol/relation cache (empty disables it)")
	rootCmd.Flags().String("audit-dsn", "", "Postgres DSN for the halt/breach audit log (empty disables it)")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("triengine exited with error")
		os.Exit(1)
	}
}

func runEngine(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	symbolsFlag, _ := cmd.Flags().GetString("symbols")
	paper, _ := cmd.Flags().GetBool("paper")
	duration, _ := cmd.Flags().GetDuration("duration")
	initialCapital, _ := cmd.Flags().GetInt64("initial-capital")
	maxPosition, _ := cmd.Flags().GetInt64("max-position")
	cpuPin, _ := cmd.Flags().GetInt("cpu-pin")
	serveHTTP, _ := cmd.Flags().GetBool("http")
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	testnet, _ := cmd.Flags().GetBool("testnet")
	configPath, _ := cmd.Flags().GetString("config")
	relationsPath, _ := cmd.Flags().GetString("relations")
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	auditDSN, _ := cmd.Flags().GetString("audit-dsn")

	if cpuPin >= 0 {
		pinThread(cpuPin)
	}

	var engineCfg *config.EngineConfig
	if configPath != "" {
		var err error
		engineCfg, err = config.LoadEngineConfig(configPath)
		if err != nil {
			return fmt.Errorf("load engine config: %w", err)
		}
	}

	var relationOverrides []arb.Override
	if relationsPath != "" {
		var err error
		relationOverrides, err = config.LoadRelationOverrides(relationsPath)
		if err != nil {
			return fmt.Errorf("load relation overrides: %w", err)
		}
	}

	tickers := splitNonEmpty(symbolsFlag)
	if engineCfg != nil {
		for _, s := range engineCfg.Symbols {
			tickers = appendUniqueTicker(tickers, s.Ticker)
		}
	}

	ctx := context.Background()
	var cache *registry.Cache
	if redisAddr != "" {
		cache = registry.NewFromAddr(redisAddr)
		if len(tickers) == 0 {
			if cached, ok := cache.LoadSymbols(ctx); ok {
				tickers = cached
				log.Info().Int("count", len(tickers)).Msg("loaded symbol list from registry cache")
			}
		}
	}

	if len(tickers) == 0 {
		return fmt.Errorf("no symbols given: pass --symbols BTCUSDT,ETHBTC,ETHUSDT or --config with a symbols list")
	}

	symbols := symtab.New()
	progress := ui.New("registering symbols", len(tickers))
	for _, t := range tickers {
		if _, err := symbols.Register(t); err != nil {
			progress.Done()
			return fmt.Errorf("register %s: %w", t, err)
		}
		progress.Step(t)
	}
	progress.Done()

	if cache != nil {
		if err := cache.SaveSymbols(ctx, tickers); err != nil {
			log.Warn().Err(err).Msg("failed to refresh registry cache symbols")
		}
	}

	reg := metrics.New()

	riskCfg := risk.Config{
		InitialCapital: initialCapital,
		MaxOrderSize:   1_000_000,
		PerSymbol:      map[uint32]risk.SymbolLimits{},
	}
	if engineCfg != nil {
		applyRiskConfig(&riskCfg, engineCfg.Risk, symbols)
	}
	if maxPosition > 0 {
		for _, t := range tickers {
			id, _ := symbols.ResolveID(t)
			if _, exists := riskCfg.PerSymbol[id]; !exists {
				riskCfg.PerSymbol[id] = risk.SymbolLimits{MaxPosition: maxPosition}
			}
		}
	}
	riskMgr := risk.New(riskCfg, symbols)

	var auditLog *risk.AuditLog
	if auditDSN != "" {
		db, err := sqlx.Open("postgres", auditDSN)
		if err != nil {
			log.Warn().Err(err).Msg("audit log disabled: failed to open database")
		} else if auditLog, err = risk.OpenAuditLog(db); err != nil {
			log.Warn().Err(err).Msg("audit log disabled: failed to prepare schema")
			db.Close()
		}
	}
	riskMgr.OnHalt(func(reason string) {
		reg.RecordHalt()
		log.Warn().Str("reason", reason).Msg("risk manager halted trading")
		if auditLog != nil {
			auditLog.Record(reason)
		}
	})

	arbCfg := arb.Config{
		MaxAutoRelationships: arb.DefaultMaxAutoRelationships,
		DefaultMinSpreadPct:  0.0005,
		ExecutionCooldownUs:  500_000,
	}
	if engineCfg != nil {
		applyArbConfig(&arbCfg, engineCfg.Arb)
	}
	detector := arb.Build(tickers, arbCfg, relationOverrides)

	if cache != nil {
		if err := cache.SaveRelations(ctx, relationSeeds(detector)); err != nil {
			log.Warn().Err(err).Msg("failed to refresh registry cache relations")
		}
	}

	var orderSink engine.OrderSink = loggingOrderSink{paper: paper}
	var arbSink engine.ArbSink = loggingArbSink{reg: reg}

	eng := engine.New(symbols, nil, riskMgr, detector, orderSink, arbSink, nil)

	streamCfg := stream.DefaultConfig()
	if engineCfg != nil {
		applyStreamConfig(&streamCfg, engineCfg.Stream)
	}
	if testnet {
		streamCfg.Host = stream.TestnetHost
	}
	client := stream.New(streamCfg, eng.Handlers())

	status := &statusSource{client: client, riskMgr: riskMgr}
	if serveHTTP {
		host, port := splitHostPort(httpAddr)
		srv, err := httpapi.New(httpapi.Config{Host: host, Port: port, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, IdleTimeout: 60 * time.Second}, reg, status)
		if err != nil {
			log.Warn().Err(err).Msg("status server disabled")
		} else {
			go func() {
				if err := srv.Start(); err != nil {
					log.Debug().Err(err).Msg("status server stopped")
				}
			}()
		}
	}

	if auditLog != nil {
		defer auditLog.Close()
	}
	if cache != nil {
		defer cache.Close()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if duration > 0 {
		var durCancel context.CancelFunc
		runCtx, durCancel = context.WithTimeout(runCtx, duration)
		defer durCancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutdown signal received")
		cancel()
	}()

	subscriptions := subscriptionNames(tickers)
	if engineCfg != nil && len(engineCfg.Stream.Subscriptions) > 0 {
		subscriptions = engineCfg.Stream.Subscriptions
	}
	log.Info().Strs("subscriptions", subscriptions).Bool("paper", paper).Msg("starting stream")
	return client.Run(runCtx, subscriptions)
}

// appendUniqueTicker appends ticker to tickers if not already present.
func appendUniqueTicker(tickers []string, ticker string) []string {
	for _, t := range tickers {
		if t == ticker {
			return tickers
		}
	}
	return append(tickers, ticker)
}

// applyRiskConfig overlays non-zero fields from a loaded RiskConfig
// onto cfg, resolving per-symbol limits by ticker through symbols.
func applyRiskConfig(cfg *risk.Config, src config.RiskConfig, symbols *symtab.Table) {
	if src.InitialCapital != 0 {
		cfg.InitialCapital = src.InitialCapital
	}
	if src.MaxOrderSize != 0 {
		cfg.MaxOrderSize = src.MaxOrderSize
	}
	if src.MaxTotalNotional != 0 {
		cfg.MaxTotalNotional = src.MaxTotalNotional
	}
	if src.DailyLossLimit != 0 {
		cfg.DailyLossLimit = src.DailyLossLimit
	}
	if src.MaxDrawdownPct != 0 {
		cfg.MaxDrawdownPct = src.MaxDrawdownPct
	}
	for ticker, limit := range src.PerSymbol {
		id, ok := symbols.ResolveID(ticker)
		if !ok {
			log.Warn().Str("ticker", ticker).Msg("risk config references unregistered symbol, skipping")
			continue
		}
		cfg.PerSymbol[id] = risk.SymbolLimits{MaxPosition: limit.MaxPosition, MaxNotional: limit.MaxNotional}
	}
}

// applyArbConfig overlays non-zero fields from a loaded ArbConfig onto cfg.
func applyArbConfig(cfg *arb.Config, src config.ArbConfig) {
	if src.MaxAutoRelationships != 0 {
		cfg.MaxAutoRelationships = src.MaxAutoRelationships
	}
	if len(src.ExcludedSubstrings) > 0 {
		cfg.ExcludedSubstrings = src.ExcludedSubstrings
	}
	if src.ExecutionCooldownUs != 0 {
		cfg.ExecutionCooldownUs = src.ExecutionCooldownUs
	}
	if src.DefaultMinSpreadPct != 0 {
		cfg.DefaultMinSpreadPct = src.DefaultMinSpreadPct
	}
	if src.DefaultMaxQuantity != 0 {
		cfg.DefaultMaxQuantity = src.DefaultMaxQuantity
	}
}

// applyStreamConfig overlays fields from a loaded StreamConfig onto cfg.
func applyStreamConfig(cfg *stream.Config, src config.StreamConfig) {
	if src.Host != "" {
		cfg.Host = src.Host
	}
	if src.Testnet {
		cfg.Host = stream.TestnetHost
	}
	if src.StaleTimeoutSec > 0 {
		cfg.StaleTimeout = time.Duration(src.StaleTimeoutSec) * time.Second
	}
	// YAML's zero value for a bool is indistinguishable from "unset", so
	// a config file can only turn auto-reconnect on, never off.
	cfg.AutoReconnect = src.AutoReconnect || cfg.AutoReconnect
}

// relationSeeds converts a detector's discovered relations into the
// minimal shape the registry cache persists.
func relationSeeds(d *arb.Detector) []registry.RelationSeed {
	rels := d.Relations()
	seeds := make([]registry.RelationSeed, 0, len(rels))
	for _, r := range rels {
		seeds = append(seeds, registry.RelationSeed{
			Leg1:         r.Leg1.Original,
			Leg2:         r.Leg2.Original,
			Leg3:         r.Leg3.Original,
			MinSpreadPct: r.MinSpreadPct,
			MaxQuantity:  r.MaxQuantity,
			Enabled:      r.Enabled,
		})
	}
	return seeds
}

func subscriptionNames(tickers []string) []string {
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		out = append(out, strings.ToLower(t)+"@bookTicker")
	}
	return out
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitHostPort(addr string) (string, int) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, 9090
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return addr[:idx], 9090
	}
	return addr[:idx], port
}

// pinThread locks the calling goroutine to its current OS thread. It
// does not set CPU affinity: cpu is only logged.
func pinThread(cpu int) {
	runtime.LockOSThread()
	log.Debug().Int("cpu", cpu).Msg("locked ingress goroutine to its OS thread")
}

type statusSource struct {
	client  *stream.Client
	riskMgr *risk.Manager
}

func (s *statusSource) RiskSnapshot() risk.State  { return s.riskMgr.Snapshot() }
func (s *statusSource) StreamState() stream.State { return s.client.State() }

type loggingOrderSink struct{ paper bool }

func (l loggingOrderSink) Submit(symbolID uint32, side risk.Side, qty uint32, limitPrice int64) (string, error) {
	log.Info().Uint32("symbol_id", symbolID).Int("side", int(side)).Uint32("qty", qty).Int64("limit", limitPrice).Bool("paper", l.paper).Msg("order submitted")
	return "paper-order", nil
}

func (l loggingOrderSink) Cancel(orderID string) error {
	log.Info().Str("order_id", orderID).Msg("order canceled")
	return nil
}

type loggingArbSink struct{ reg *metrics.Registry }

func (l loggingArbSink) Execute(opp arb.Opportunity, relation *arb.Relation) {
	dir := "forward"
	if opp.Direction == arb.DirReverse {
		dir = "reverse"
	}
	l.reg.RecordTrade(dir)
	log.Info().
		Str("direction", dir).
		Float64("spread", opp.BestSpread).
		Int("relation_index", opp.RelationIndex).
		Msg("arbitrage opportunity")
}
