// Package volatility keeps per-symbol rolling windows of realized volatility
// and trade cost, and derives the short-vs-long volatility ratio the rest of
// the engine keys off.
package volatility

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
)

const (
	// RecentSamples is the size of the short window in the vol ratio.
	RecentSamples = 5

	// DefaultNormalBaseline is the learned normal-regime size multiplier
	// before any sample has been observed.
	DefaultNormalBaseline = 0.8
)

// Stats is a point-in-time copy of a symbol's window.
type Stats struct {
	Symbol         string
	Samples        int
	Volatilities   []float64
	Costs          []float64
	LatestVol      float64
	LatestCost     float64
	MeanVol        float64
	MeanCost       float64
	VolRatio       float64
	NormalBaseline float64
	LastUpdate     time.Time
}

// symbolState is created once on first observation of a symbol.
type symbolState struct {
	mu              sync.RWMutex
	historicalVols  []float64
	historicalCosts []float64
	normalBaseline  float64
	lastUpdate      time.Time
}

// Tracker owns the rolling volatility and cost windows for every symbol.
type Tracker struct {
	volWindow  int
	minSamples int

	mu      sync.RWMutex
	symbols map[string]*symbolState
}

// NewTracker creates a tracker with the given window length and the sample
// count required before dependent calculations leave cold start.
func NewTracker(volWindow, minSamples int) *Tracker {
	if volWindow < 1 {
		volWindow = 1
	}
	if minSamples < 1 {
		minSamples = 1
	}
	return &Tracker{
		volWindow:  volWindow,
		minSamples: minSamples,
		symbols:    make(map[string]*symbolState),
	}
}

func (t *Tracker) get(symbol string) (*symbolState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.symbols[symbol]
	return s, ok
}

func (t *Tracker) getOrCreate(symbol string) *symbolState {
	if s, ok := t.get(symbol); ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := t.symbols[symbol]; ok {
		return s
	}
	s := &symbolState{
		historicalVols:  make([]float64, 0, t.volWindow),
		historicalCosts: make([]float64, 0, t.volWindow),
		normalBaseline:  DefaultNormalBaseline,
	}
	t.symbols[symbol] = s
	return s
}

// Update appends a sample to both windows, evicting the oldest entries once
// the window is full. Invalid samples return an InvalidSample error and
// leave the symbol untouched.
func (t *Tracker) Update(symbol string, volatility, tradeCost float64, timestamp time.Time) error {
	if err := validateSample(volatility, tradeCost); err != nil {
		return engerrors.NewInvalidSampleError("volatility", "update", err.Error()).
			WithContext("symbol", symbol)
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	s := t.getOrCreate(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.historicalVols = appendBounded(s.historicalVols, volatility, t.volWindow)
	s.historicalCosts = appendBounded(s.historicalCosts, tradeCost, t.volWindow)
	s.lastUpdate = timestamp

	ratio := volRatio(s.historicalVols)
	s.normalBaseline = DefaultNormalBaseline * math.Exp(-math.Max(0, ratio-1))
	return nil
}

func validateSample(volatility, tradeCost float64) error {
	if math.IsNaN(volatility) || math.IsInf(volatility, 0) || volatility < 0 {
		return fmt.Errorf("volatility must be finite and non-negative, got %v", volatility)
	}
	if math.IsNaN(tradeCost) || math.IsInf(tradeCost, 0) || tradeCost < 0 {
		return fmt.Errorf("trade cost must be finite and non-negative, got %v", tradeCost)
	}
	return nil
}

func appendBounded(window []float64, value float64, limit int) []float64 {
	window = append(window, value)
	if excess := len(window) - limit; excess > 0 {
		// Shift in place so the backing array does not grow without bound.
		copy(window, window[excess:])
		window = window[:limit]
	}
	return window
}

// SampleCount returns the number of retained samples for a symbol.
func (t *Tracker) SampleCount(symbol string) int {
	s, ok := t.get(symbol)
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.historicalVols)
}

// HasSufficientData reports whether the symbol has at least MinSamples samples.
func (t *Tracker) HasSufficientData(symbol string) bool {
	return t.SampleCount(symbol) >= t.minSamples
}

// RecentVsBaselineRatio returns mean(last 5) / mean(window). It is 1.0 for
// unknown symbols and whenever the window mean is zero.
func (t *Tracker) RecentVsBaselineRatio(symbol string) float64 {
	s, ok := t.get(symbol)
	if !ok {
		return 1.0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return volRatio(s.historicalVols)
}

// NormalBaseline returns the symbol's learned normal-regime multiplier.
func (t *Tracker) NormalBaseline(symbol string) float64 {
	s, ok := t.get(symbol)
	if !ok {
		return DefaultNormalBaseline
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.normalBaseline
}

// LatestVolatility returns the most recent volatility sample.
func (t *Tracker) LatestVolatility(symbol string) (float64, bool) {
	s, ok := t.get(symbol)
	if !ok {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.historicalVols) == 0 {
		return 0, false
	}
	return s.historicalVols[len(s.historicalVols)-1], true
}

// Snapshot returns a copy of the symbol's window and derived statistics.
func (t *Tracker) Snapshot(symbol string) (Stats, bool) {
	s, ok := t.get(symbol)
	if !ok {
		return Stats{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Symbol:         symbol,
		Samples:        len(s.historicalVols),
		Volatilities:   append([]float64(nil), s.historicalVols...),
		Costs:          append([]float64(nil), s.historicalCosts...),
		MeanVol:        mean(s.historicalVols),
		MeanCost:       mean(s.historicalCosts),
		VolRatio:       volRatio(s.historicalVols),
		NormalBaseline: s.normalBaseline,
		LastUpdate:     s.lastUpdate,
	}
	if n := len(s.historicalVols); n > 0 {
		stats.LatestVol = s.historicalVols[n-1]
		stats.LatestCost = s.historicalCosts[n-1]
	}
	return stats, true
}

// Symbols returns the tracked symbols in sorted order.
func (t *Tracker) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.symbols))
	for symbol := range t.symbols {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Reset drops all history for a symbol. Operator action only.
func (t *Tracker) Reset(symbol string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.symbols, symbol)
}

// MinSamples returns the configured cold-start sample count.
func (t *Tracker) MinSamples() int { return t.minSamples }

// VolWindow returns the configured window length.
func (t *Tracker) VolWindow() int { return t.volWindow }

func volRatio(vols []float64) float64 {
	if len(vols) == 0 {
		return 1.0
	}
	baseline := mean(vols)
	if baseline == 0 {
		return 1.0
	}
	start := len(vols) - RecentSamples
	if start < 0 {
		start = 0
	}
	return mean(vols[start:]) / baseline
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
