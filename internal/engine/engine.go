// Package engine is the single entry point for market data, outcomes, order
// admission and threshold requests. It serializes writers per symbol and
// lets readers of a symbol run concurrently.
package engine

import (
	"sync"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/config"
	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/feedback"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/monitoring"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/risk"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/safety"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/threshold"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/volatility"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// OrderEvaluation joins the threshold decision for an order with the
// admission verdict for its multiplier-adjusted quantity.
type OrderEvaluation struct {
	Threshold         threshold.Decision `json:"threshold"`
	RequestedQuantity decimal.Decimal    `json:"requested_quantity"`
	AdjustedQuantity  decimal.Decimal    `json:"adjusted_quantity"`
	Admission         risk.OrderDecision `json:"admission"`
}

// SymbolState is a consistent view of everything the engine knows about a
// symbol, taken under the symbol's read lock.
type SymbolState struct {
	Symbol     string
	Volatility volatility.Stats
	Feedback   feedback.Stats
	Breaker    safety.BreakerStats
	Position   *risk.PositionRisk
}

// Engine wires the tracker, breakers, calculator, feedback loop and risk
// ledger together.
type Engine struct {
	cfg        *config.EngineConfig
	log        *logger.Logger
	classifier regime.Classifier

	tracker  *volatility.Tracker
	breakers *safety.BreakerManager
	feedback *feedback.Loop
	calc     *threshold.Calculator
	risk     *risk.Manager

	errorStats *engerrors.ErrorStats
	health     *monitoring.HealthChecker

	locksMu sync.RWMutex
	locks   map[string]*sync.RWMutex
}

// New validates cfg and builds an engine. A nil logger discards output.
func New(cfg *config.EngineConfig, classifier regime.Classifier, log *logger.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, engerrors.NewConfigurationError("engine", "new", "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if classifier == nil {
		return nil, engerrors.NewConfigurationError("engine", "new", "regime classifier is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	th := cfg.Threshold
	e := &Engine{
		cfg:        cfg,
		log:        log,
		classifier: classifier,
		tracker:    volatility.NewTracker(th.VolWindow, th.MinSamples),
		breakers:   safety.NewBreakerManager(th.CircuitBreakerThreshold),
		feedback:   feedback.NewLoop(th.MinSamples),
		risk:       risk.NewRiskManager(cfg.Risk),
		errorStats: engerrors.NewErrorStats(50),
		locks:      make(map[string]*sync.RWMutex),
	}
	e.calc = threshold.NewCalculator(th, e.tracker, e.breakers, e.feedback)
	e.risk.SetVolatilitySource(e.tracker)
	e.health = monitoring.NewHealthChecker(e.breakers, e.errorStats)
	e.breakers.SetStateChangeCallback(e.onBreakerChange)

	log.Info("Engine initialized: base=%.4f max=%.4f minSamples=%d window=%d breaker=%.2f",
		th.BaseCostThreshold, th.MaxCostThreshold, th.MinSamples, th.VolWindow, th.CircuitBreakerThreshold)
	return e, nil
}

func (e *Engine) onBreakerChange(symbol string, from, to safety.BreakerState, reason safety.TripReason) {
	tripped := to == safety.StateTripped
	monitoring.SetBreakerState(symbol, tripped, reason.String())
	if tripped {
		e.log.Warnw("circuit breaker tripped", "symbol", symbol, "reason", reason.String(), "from", from.String())
		return
	}
	e.log.Infow("circuit breaker cleared", "symbol", symbol)
}

// symbolLock returns the symbol's lock, creating it on first use.
func (e *Engine) symbolLock(symbol string) *sync.RWMutex {
	e.locksMu.RLock()
	mu, ok := e.locks[symbol]
	e.locksMu.RUnlock()
	if ok {
		return mu
	}

	e.locksMu.Lock()
	defer e.locksMu.Unlock()

	// Double-check after acquiring write lock
	if mu, ok := e.locks[symbol]; ok {
		return mu
	}
	mu = &sync.RWMutex{}
	e.locks[symbol] = mu
	return mu
}

func (e *Engine) fail(err error, errorType string) error {
	e.errorStats.RecordError(err)
	monitoring.RecordError(errorType)
	return err
}

// UpdateMarketData feeds a tick into the rolling windows, recomputes the
// symbol's circuit breaker and re-marks any open position at the tick price.
func (e *Engine) UpdateMarketData(tick types.MarketTick) error {
	if tick.Symbol == "" {
		return e.fail(engerrors.NewInvalidSampleError("engine", "update_market_data", "symbol is required"), "invalid_sample")
	}
	if tick.Price.IsNegative() || tick.Volume.IsNegative() {
		return e.fail(engerrors.NewInvalidSampleError("engine", "update_market_data", "price and volume must be non-negative").
			WithContext("symbol", tick.Symbol), "invalid_sample")
	}
	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now()
	}

	mu := e.symbolLock(tick.Symbol)
	mu.Lock()
	defer mu.Unlock()

	if err := e.tracker.Update(tick.Symbol, tick.Volatility, tick.TradeCost, tick.Timestamp); err != nil {
		e.log.LogWarning("update_market_data", "rejected sample for %s: %v", tick.Symbol, err)
		return e.fail(err, "invalid_sample")
	}

	ratio := e.tracker.RecentVsBaselineRatio(tick.Symbol)
	stress := regime.ClampStress(e.classifier.MarketStressLevel(tick.Symbol))
	e.breakers.Evaluate(tick.Symbol, stress, ratio)

	if tick.Price.IsPositive() {
		if _, open := e.risk.Position(tick.Symbol); open {
			if err := e.risk.UpdatePositionRisk(tick.Symbol, tick.Price); err != nil {
				e.log.LogError("re-mark position", err)
				return e.fail(err, "position")
			}
		}
	}

	monitoring.RecordTick(tick.Symbol, ratio)
	e.health.RecordTick(tick.Symbol, tick.Timestamp)
	return nil
}

// RecordOutcome feeds a realized execution cost into the feedback loop.
func (e *Engine) RecordOutcome(symbol string, predictedCost, actualCost float64, timestamp time.Time) (feedback.ScalingAdjustment, error) {
	mu := e.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	before := e.feedback.Adjustment(symbol)
	adj, err := e.feedback.RecordOutcome(symbol, predictedCost, actualCost, timestamp)
	if err != nil {
		e.log.LogWarning("record_outcome", "rejected outcome for %s: %v", symbol, err)
		return adj, e.fail(err, "invalid_sample")
	}

	monitoring.UpdateFeedbackScales(symbol, adj.VolScale, adj.SizeScale)
	if adj != before {
		e.log.Infow("feedback scales adjusted", "symbol", symbol,
			"vol_scale", adj.VolScale, "size_scale", adj.SizeScale)
	}
	return adj, nil
}

// ComputeThresholds returns the cost threshold and size multiplier for an
// order of tradeSize at basePrice.
func (e *Engine) ComputeThresholds(symbol string, tradeSize, basePrice decimal.Decimal) threshold.Decision {
	mu := e.symbolLock(symbol)
	mu.RLock()
	defer mu.RUnlock()
	return e.computeLocked(symbol, tradeSize, basePrice)
}

func (e *Engine) computeLocked(symbol string, tradeSize, basePrice decimal.Decimal) threshold.Decision {
	r := e.classifier.DetectRegime(symbol)
	r.StressLevel = regime.ClampStress(r.StressLevel)

	d := e.calc.Compute(threshold.Input{
		Symbol:    symbol,
		TradeSize: tradeSize.InexactFloat64(),
		BasePrice: basePrice.InexactFloat64(),
		Regime:    r,
	})
	monitoring.RecordThreshold(symbol, d.State.String(), d.Threshold, d.SizeMultiplier)
	e.log.Debug("threshold %s %s: threshold=%.6f multiplier=%.4f ratio=%.3f regime=%s",
		symbol, d.State, d.Threshold, d.SizeMultiplier, d.VolRatio, r)
	return d
}

// CanPlaceOrder checks an order against the risk limits.
func (e *Engine) CanPlaceOrder(symbol string, quantity, price decimal.Decimal) risk.OrderDecision {
	mu := e.symbolLock(symbol)
	mu.RLock()
	defer mu.RUnlock()
	return e.admitLocked(symbol, quantity, price)
}

func (e *Engine) admitLocked(symbol string, quantity, price decimal.Decimal) risk.OrderDecision {
	dec := e.risk.CanPlaceOrder(symbol, quantity, price)
	monitoring.RecordOrderDecision(symbol, dec.Accepted, string(dec.Violation))
	if !dec.Accepted {
		e.log.Trade("Order rejected %s qty=%s price=%s: %s", symbol, quantity, price, dec.Reason)
	}
	return dec
}

// EvaluateOrder computes the threshold decision for an order, scales the
// quantity by the size multiplier and admits the scaled order, all against
// one consistent view of the symbol.
func (e *Engine) EvaluateOrder(symbol string, quantity, price decimal.Decimal) OrderEvaluation {
	mu := e.symbolLock(symbol)
	mu.RLock()
	defer mu.RUnlock()

	d := e.computeLocked(symbol, quantity, price)
	adjusted := quantity.Mul(decimal.NewFromFloat(d.SizeMultiplier)).Round(8)
	ev := OrderEvaluation{
		Threshold:         d,
		RequestedQuantity: quantity,
		AdjustedQuantity:  adjusted,
	}
	if adjusted.IsZero() && !quantity.IsZero() {
		ev.Admission = risk.RejectScaledToZero(quantity, d.SizeMultiplier)
		monitoring.RecordOrderDecision(symbol, false, string(ev.Admission.Violation))
		e.log.Trade("Order rejected %s qty=%s price=%s: %s", symbol, quantity, price, ev.Admission.Reason)
		return ev
	}
	ev.Admission = e.admitLocked(symbol, adjusted, price)
	return ev
}

// AddPosition applies a fill to the ledger.
func (e *Engine) AddPosition(symbol string, quantity, price decimal.Decimal) error {
	mu := e.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	if err := e.risk.AddPosition(symbol, quantity, price); err != nil {
		e.log.LogError("add_position", err)
		return e.fail(err, "position")
	}
	e.log.Trade("Fill %s qty=%s price=%s", symbol, quantity, price)
	return nil
}

// UpdatePositionRisk marks a position to market.
func (e *Engine) UpdatePositionRisk(symbol string, markPrice decimal.Decimal) error {
	mu := e.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	if err := e.risk.UpdatePositionRisk(symbol, markPrice); err != nil {
		return e.fail(err, "position")
	}
	return nil
}

// CalculatePortfolioRisk aggregates the ledger and publishes the snapshot.
func (e *Engine) CalculatePortfolioRisk() risk.PortfolioRisk {
	pr := e.risk.CalculatePortfolioRisk()
	monitoring.UpdatePortfolio(
		pr.TotalNotional.InexactFloat64(),
		pr.TotalUnrealizedPnL.InexactFloat64(),
		pr.Leverage,
		pr.ValueAtRisk.InexactFloat64(),
		pr.WorstDrawdown,
	)
	return pr
}

// ResetDrawdown clears a position's recorded drawdown. Operator action.
func (e *Engine) ResetDrawdown(symbol string) error {
	mu := e.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	if err := e.risk.ResetDrawdown(symbol); err != nil {
		return err
	}
	e.log.Warning("Operator reset drawdown for %s", symbol)
	return nil
}

// RemoveFlatPosition drops a flat ledger entry. Operator action.
func (e *Engine) RemoveFlatPosition(symbol string) (bool, error) {
	mu := e.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	removed, err := e.risk.RemoveFlatPosition(symbol)
	if removed {
		e.log.Info("Removed flat position %s", symbol)
	}
	return removed, err
}

// ResetSymbol drops the symbol's volatility and feedback history, returning
// it to cold start. The breaker follows on the next tick. Operator action.
func (e *Engine) ResetSymbol(symbol string) {
	mu := e.symbolLock(symbol)
	mu.Lock()
	defer mu.Unlock()

	e.tracker.Reset(symbol)
	e.feedback.Reset(symbol)
	e.log.Warning("Operator reset history for %s", symbol)
}

// SetEquity refreshes the account equity used by admission checks.
func (e *Engine) SetEquity(equity decimal.Decimal) {
	e.risk.SetEquity(equity)
}

// BreakerStatus returns every symbol's breaker state.
func (e *Engine) BreakerStatus() []safety.BreakerStats {
	return e.breakers.GetStats()
}

// Snapshot returns a consistent view of one symbol.
func (e *Engine) Snapshot(symbol string) SymbolState {
	mu := e.symbolLock(symbol)
	mu.RLock()
	defer mu.RUnlock()

	st := SymbolState{Symbol: symbol}
	st.Volatility, _ = e.tracker.Snapshot(symbol)
	st.Feedback, _ = e.feedback.Stats(symbol)
	if b, ok := e.breakers.Get(symbol); ok {
		st.Breaker = b.GetStats()
	} else {
		st.Breaker = safety.BreakerStats{Symbol: symbol, State: safety.StateClosed}
	}
	if p, ok := e.risk.Position(symbol); ok {
		st.Position = &p
	}
	return st
}

// Symbols returns every symbol that has received market data.
func (e *Engine) Symbols() []string { return e.tracker.Symbols() }

// Health returns the engine's health checker.
func (e *Engine) Health() *monitoring.HealthChecker { return e.health }

// ErrorStats returns the engine's error statistics.
func (e *Engine) ErrorStats() *engerrors.ErrorStats { return e.errorStats }

// Positions returns every ledger entry.
func (e *Engine) Positions() []risk.PositionRisk { return e.risk.Positions() }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.EngineConfig { return e.cfg }

