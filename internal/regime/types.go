package regime

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// VolatilityRegime is the detector's volatility classification for a symbol
type VolatilityRegime int

const (
	VolatilityNormal VolatilityRegime = iota
	VolatilityLow
	VolatilityHigh
)

func (v VolatilityRegime) String() string {
	switch v {
	case VolatilityLow:
		return "low"
	case VolatilityNormal:
		return "normal"
	case VolatilityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Multiplier returns the threshold volatility multiplier for the regime.
func (v VolatilityRegime) Multiplier() float64 {
	switch v {
	case VolatilityLow:
		return 0.7
	case VolatilityHigh:
		return 1.8
	default:
		return 1.0
	}
}

// ParseVolatilityRegime accepts "low", "normal" or "high" (case-insensitive).
func ParseVolatilityRegime(s string) (VolatilityRegime, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return VolatilityLow, nil
	case "", "normal":
		return VolatilityNormal, nil
	case "high":
		return VolatilityHigh, nil
	default:
		return VolatilityNormal, fmt.Errorf("unknown volatility regime %q", s)
	}
}

// LiquidityState is the detector's liquidity classification for a symbol
type LiquidityState int

const (
	LiquidityAmple LiquidityState = iota
	LiquidityScarce
)

func (l LiquidityState) String() string {
	switch l {
	case LiquidityAmple:
		return "ample"
	case LiquidityScarce:
		return "scarce"
	default:
		return "unknown"
	}
}

// ParseLiquidityState accepts "ample" or "scarce" (case-insensitive).
func ParseLiquidityState(s string) (LiquidityState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ample":
		return LiquidityAmple, nil
	case "scarce":
		return LiquidityScarce, nil
	default:
		return LiquidityAmple, fmt.Errorf("unknown liquidity state %q", s)
	}
}

// Regime is the classification consumed from the external regime detector.
type Regime struct {
	VolatilityRegime VolatilityRegime `json:"volatility_regime"`
	LiquidityState   LiquidityState   `json:"liquidity_state"`
	StressLevel      float64          `json:"stress_level"` // 0.0 to 1.0
	Timestamp        time.Time        `json:"timestamp"`
}

// NormalRegime is assumed for symbols the detector has not classified yet.
func NormalRegime() Regime {
	return Regime{VolatilityRegime: VolatilityNormal, LiquidityState: LiquidityAmple}
}

// IsHighVolatility reports whether the regime is the high-volatility regime.
func (r Regime) IsHighVolatility() bool { return r.VolatilityRegime == VolatilityHigh }

// IsScarce reports whether liquidity is scarce.
func (r Regime) IsScarce() bool { return r.LiquidityState == LiquidityScarce }

func (r Regime) String() string {
	return fmt.Sprintf("%s/%s stress=%.2f", r.VolatilityRegime, r.LiquidityState, r.StressLevel)
}

// ClampStress forces a stress reading into [0, 1]. A non-finite reading is
// treated as maximum stress so it can never hold a breaker open.
func ClampStress(stress float64) float64 {
	if math.IsNaN(stress) || math.IsInf(stress, 0) {
		return 1.0
	}
	return math.Max(0, math.Min(1, stress))
}

// Classifier is the contract of the external market-regime detector.
type Classifier interface {
	DetectRegime(symbol string) Regime
	MarketStressLevel(symbol string) float64
}

// StaticClassifier is an in-memory Classifier fed by whoever owns the real
// detector (a replay file, a test, or a bus subscriber).
type StaticClassifier struct {
	mu       sync.RWMutex
	regimes  map[string]Regime
	fallback Regime
}

// NewStaticClassifier creates a classifier that reports fallback for
// unknown symbols.
func NewStaticClassifier(fallback Regime) *StaticClassifier {
	return &StaticClassifier{
		regimes:  make(map[string]Regime),
		fallback: fallback,
	}
}

// Set replaces the regime for a symbol and returns the previous one.
func (c *StaticClassifier) Set(symbol string, r Regime) Regime {
	r.StressLevel = ClampStress(r.StressLevel)
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.regimes[symbol]
	if !ok {
		prev = c.fallback
	}
	c.regimes[symbol] = r
	return prev
}

// SetStress updates only the stress level for a symbol.
func (c *StaticClassifier) SetStress(symbol string, stress float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.regimes[symbol]
	if !ok {
		r = c.fallback
	}
	r.StressLevel = ClampStress(stress)
	r.Timestamp = time.Now()
	c.regimes[symbol] = r
}

// DetectRegime implements Classifier
func (c *StaticClassifier) DetectRegime(symbol string) Regime {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if r, ok := c.regimes[symbol]; ok {
		return r
	}
	return c.fallback
}

// MarketStressLevel implements Classifier
func (c *StaticClassifier) MarketStressLevel(symbol string) float64 {
	return c.DetectRegime(symbol).StressLevel
}
