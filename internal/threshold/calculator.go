// Package threshold computes the transaction-cost threshold and position-size
// multiplier that gate order sizing for a symbol.
package threshold

import (
	"math"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/config"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/feedback"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/safety"
	"github.com/google/uuid"
)

const (
	// notionalScale normalizes trade notional inside the size adjustment.
	notionalScale = 1_000_000

	highVolRatio       = 1.5
	highRegimeBase     = 0.4
	normalRegimeBase   = 0.7
	lowRegimeBase      = 0.8
	scarceLiquidity    = 0.8
	highRegimeCapShare = 0.6
)

// State names the branch of the decision chain that produced a Decision.
type State int

const (
	StateColdStart State = iota
	StateBreakerTripped
	StateNormal
)

func (s State) String() string {
	switch s {
	case StateColdStart:
		return "COLD_START"
	case StateBreakerTripped:
		return "BREAKER_TRIPPED"
	case StateNormal:
		return "NORMAL"
	default:
		return "UNKNOWN"
	}
}

// VolatilitySource is the part of the volatility tracker the calculator reads.
type VolatilitySource interface {
	HasSufficientData(symbol string) bool
	RecentVsBaselineRatio(symbol string) float64
	NormalBaseline(symbol string) float64
}

// BreakerSource reports a symbol's circuit breaker state.
type BreakerSource interface {
	Status(symbol string) (bool, safety.TripReason)
}

// ScaleSource supplies the feedback loop's per-symbol scales.
type ScaleSource interface {
	Adjustment(symbol string) feedback.ScalingAdjustment
}

// Input describes the order a threshold is requested for.
type Input struct {
	Symbol    string
	TradeSize float64
	BasePrice float64
	Regime    regime.Regime
}

// Decision is the calculator's output together with the inputs it used.
type Decision struct {
	ID             uuid.UUID         `json:"id"`
	Symbol         string            `json:"symbol"`
	Threshold      float64           `json:"threshold"`
	SizeMultiplier float64           `json:"size_multiplier"`
	State          State             `json:"state"`
	VolRatio       float64           `json:"vol_ratio"`
	VolAdjustment  float64           `json:"vol_adjustment"`
	SizeAdjustment float64           `json:"size_adjustment"`
	Notional       float64           `json:"notional"`
	Regime         regime.Regime     `json:"regime"`
	VolScale       float64           `json:"vol_scale"`
	SizeScale      float64           `json:"size_scale"`
	BreakerReason  safety.TripReason `json:"breaker_reason"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Calculator evaluates the decision chain. It holds no per-symbol state of
// its own; everything it reads belongs to the tracker, breakers and feedback
// loop.
type Calculator struct {
	cfg      config.ThresholdConfig
	vols     VolatilitySource
	breakers BreakerSource
	scales   ScaleSource
	now      func() time.Time
}

// NewCalculator wires a calculator to its data sources.
func NewCalculator(cfg config.ThresholdConfig, vols VolatilitySource, breakers BreakerSource, scales ScaleSource) *Calculator {
	return &Calculator{
		cfg:      cfg,
		vols:     vols,
		breakers: breakers,
		scales:   scales,
		now:      time.Now,
	}
}

// Config returns the configuration the calculator was built with.
func (c *Calculator) Config() config.ThresholdConfig { return c.cfg }

// Compute runs the decision chain: cold start, then breaker, then the
// adaptive computation.
func (c *Calculator) Compute(in Input) Decision {
	adj := c.scales.Adjustment(in.Symbol)
	d := Decision{
		ID:        uuid.New(),
		Symbol:    in.Symbol,
		Regime:    in.Regime,
		VolRatio:  c.vols.RecentVsBaselineRatio(in.Symbol),
		Notional:  notional(in.TradeSize, in.BasePrice),
		VolScale:  adj.VolScale,
		SizeScale: adj.SizeScale,
		Timestamp: c.now(),
	}

	if !c.vols.HasSufficientData(in.Symbol) {
		d.State = StateColdStart
		d.Threshold = c.cfg.BaseCostThreshold
		d.SizeMultiplier = 1.0
		d.VolAdjustment = 1.0
		d.SizeAdjustment = 1.0
		return d
	}

	tripped, reason := c.breakers.Status(in.Symbol)
	if in.Regime.StressLevel > c.cfg.CircuitBreakerThreshold {
		// stress reported since the last tick
		tripped = true
		reason |= safety.ReasonStress
	}
	if tripped {
		d.State = StateBreakerTripped
		d.BreakerReason = reason
		d.Threshold = c.cfg.MaxCostThreshold
		d.SizeMultiplier = c.cfg.MinPositionMultiplier
		d.VolAdjustment = 1.0
		d.SizeAdjustment = 1.0
		return d
	}

	d.State = StateNormal
	d.VolAdjustment = d.VolRatio * in.Regime.VolatilityRegime.Multiplier() * c.cfg.VolScalingFactor * adj.VolScale
	d.SizeAdjustment = 1 + math.Log1p(d.Notional/notionalScale)*c.cfg.SizeScalingFactor*adj.SizeScale
	d.Threshold = c.clampThreshold(c.cfg.BaseCostThreshold * d.VolAdjustment * d.SizeAdjustment)
	d.SizeMultiplier = c.sizeMultiplier(in.Regime, d.VolRatio, c.vols.NormalBaseline(in.Symbol))
	return d
}

func (c *Calculator) sizeMultiplier(r regime.Regime, volRatio, normalBaseline float64) float64 {
	var base float64
	switch {
	case r.IsHighVolatility() || volRatio > highVolRatio:
		base = highRegimeBase
	case r.VolatilityRegime == regime.VolatilityLow:
		base = lowRegimeBase
	default:
		base = normalRegimeBase
	}

	m := base * math.Exp(-2*math.Max(0, volRatio-1))
	if r.IsScarce() {
		m *= scarceLiquidity
	}
	if r.IsHighVolatility() {
		m = math.Min(m, normalBaseline*highRegimeCapShare)
	}
	return clamp(m, c.cfg.MinPositionMultiplier, c.cfg.MaxPositionMultiplier, c.cfg.MinPositionMultiplier)
}

func (c *Calculator) clampThreshold(t float64) float64 {
	return clamp(t, c.cfg.BaseCostThreshold, c.cfg.MaxCostThreshold, c.cfg.BaseCostThreshold)
}

// clamp bounds v to [lo, hi]; NaN maps to fallback.
func clamp(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Max(lo, math.Min(hi, v))
}

func notional(size, price float64) float64 {
	n := math.Abs(size) * price
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0
	}
	return n
}
