// Package feedback compares predicted against realized trade cost and nudges
// the volatility and size scales the threshold calculator applies.
package feedback

import (
	"fmt"
	"math"
	"sync"
	"time"

	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
)

const (
	// RecalibrationWindow is how many of the latest errors drive a recalibration.
	RecalibrationWindow = 10

	biasTolerance  = 0.1
	noisyErrorStd  = 0.15
	quietErrorStd  = 0.05
	volScaleUp     = 1.2
	volScaleDown   = 0.9
	sizeScaleUp    = 1.15
	sizeScaleRelax = 0.9
	MinVolScale    = 0.5
	MaxVolScale    = 2.5
	MinSizeScale   = 0.5
	MaxSizeScale   = 3.0
	neutralScale   = 1.0
)

// ScalingAdjustment is the per-symbol correction applied on top of the
// configured scaling factors.
type ScalingAdjustment struct {
	VolScale  float64 `json:"vol_scale"`
	SizeScale float64 `json:"size_scale"`
}

// Neutral returns the adjustment every symbol starts with.
func Neutral() ScalingAdjustment {
	return ScalingAdjustment{VolScale: neutralScale, SizeScale: neutralScale}
}

// Stats summarizes a symbol's prediction accuracy.
type Stats struct {
	Symbol          string
	Samples         int
	MeanError       float64
	StdError        float64
	Recalibrations  int
	Adjustment      ScalingAdjustment
	LastOutcomeTime time.Time
}

type symbolFeedback struct {
	mu             sync.RWMutex
	errors         []float64
	adjustment     ScalingAdjustment
	recalibrations int
	lastOutcome    time.Time
}

// Loop owns prediction-error history and scaling state for every symbol.
type Loop struct {
	maxHistory int

	mu      sync.RWMutex
	symbols map[string]*symbolFeedback
}

// NewLoop creates a loop keeping at most maxHistory errors per symbol. A
// history shorter than RecalibrationWindow never recalibrates.
func NewLoop(maxHistory int) *Loop {
	if maxHistory < 1 {
		maxHistory = 1
	}
	return &Loop{
		maxHistory: maxHistory,
		symbols:    make(map[string]*symbolFeedback),
	}
}

func (l *Loop) get(symbol string) (*symbolFeedback, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.symbols[symbol]
	return s, ok
}

func (l *Loop) getOrCreate(symbol string) *symbolFeedback {
	if s, ok := l.get(symbol); ok {
		return s
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if s, ok := l.symbols[symbol]; ok {
		return s
	}
	s := &symbolFeedback{
		errors:     make([]float64, 0, l.maxHistory),
		adjustment: Neutral(),
	}
	l.symbols[symbol] = s
	return s
}

// RecordOutcome stores the relative error of a prediction and recalibrates
// the symbol's scales once enough history exists. It returns the adjustment
// in force after the update.
func (l *Loop) RecordOutcome(symbol string, predictedCost, actualCost float64, timestamp time.Time) (ScalingAdjustment, error) {
	if err := validateCost("predicted", predictedCost); err != nil {
		return ScalingAdjustment{}, engerrors.NewInvalidSampleError("feedback", "record_outcome", err.Error()).
			WithContext("symbol", symbol)
	}
	if err := validateCost("actual", actualCost); err != nil {
		return ScalingAdjustment{}, engerrors.NewInvalidSampleError("feedback", "record_outcome", err.Error()).
			WithContext("symbol", symbol)
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	relErr := 0.0
	if actualCost != 0 {
		relErr = (actualCost - predictedCost) / actualCost
	}

	s := l.getOrCreate(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errors = append(s.errors, relErr)
	if excess := len(s.errors) - l.maxHistory; excess > 0 {
		copy(s.errors, s.errors[excess:])
		s.errors = s.errors[:l.maxHistory]
	}
	s.lastOutcome = timestamp

	if len(s.errors) >= RecalibrationWindow {
		s.adjustment = recalibrate(s.adjustment, s.errors[len(s.errors)-RecalibrationWindow:])
		s.recalibrations++
	}
	return s.adjustment, nil
}

func validateCost(name string, cost float64) error {
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost < 0 {
		return fmt.Errorf("%s cost must be finite and non-negative, got %v", name, cost)
	}
	return nil
}

func recalibrate(adj ScalingAdjustment, recent []float64) ScalingAdjustment {
	avg, std := meanStd(recent)

	if math.Abs(avg) > biasTolerance {
		if avg > 0 {
			// Realized cost above prediction: widen the threshold.
			adj.VolScale *= volScaleUp
		} else {
			adj.VolScale *= volScaleDown
		}
	}

	switch {
	case std > noisyErrorStd:
		adj.SizeScale *= sizeScaleUp
	case std < quietErrorStd:
		adj.SizeScale = math.Max(neutralScale, adj.SizeScale*sizeScaleRelax)
	}

	adj.VolScale = clamp(adj.VolScale, MinVolScale, MaxVolScale)
	adj.SizeScale = clamp(adj.SizeScale, MinSizeScale, MaxSizeScale)
	return adj
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	avg := sum / n

	variance := 0.0
	for _, v := range values {
		d := v - avg
		variance += d * d
	}
	return avg, math.Sqrt(variance / n)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Adjustment returns the symbol's current scales, neutral when unknown.
func (l *Loop) Adjustment(symbol string) ScalingAdjustment {
	s, ok := l.get(symbol)
	if !ok {
		return Neutral()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adjustment
}

// Stats returns accuracy statistics over the retained history.
func (l *Loop) Stats(symbol string) (Stats, bool) {
	s, ok := l.get(symbol)
	if !ok {
		return Stats{Symbol: symbol, Adjustment: Neutral()}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	avg, std := meanStd(s.errors)
	return Stats{
		Symbol:          symbol,
		Samples:         len(s.errors),
		MeanError:       avg,
		StdError:        std,
		Recalibrations:  s.recalibrations,
		Adjustment:      s.adjustment,
		LastOutcomeTime: s.lastOutcome,
	}, true
}

// Reset drops the symbol's history and returns its scales to neutral.
func (l *Loop) Reset(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.symbols, symbol)
}
