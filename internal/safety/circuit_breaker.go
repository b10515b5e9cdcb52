package safety

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// VolSpikeRatio trips a breaker on its own, regardless of stress.
const VolSpikeRatio = 2.0

// BreakerState represents the state of a stress circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateTripped
)

// String returns the string representation of the breaker state
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateTripped:
		return "TRIPPED"
	default:
		return "UNKNOWN"
	}
}

// TripReason records which condition tripped the breaker. Both may hold.
type TripReason uint8

const (
	ReasonNone     TripReason = 0
	ReasonStress   TripReason = 1 << 0
	ReasonVolSpike TripReason = 1 << 1
)

func (r TripReason) String() string {
	if r == ReasonNone {
		return "none"
	}
	var parts []string
	if r&ReasonStress != 0 {
		parts = append(parts, "stress")
	}
	if r&ReasonVolSpike != 0 {
		parts = append(parts, "vol_spike")
	}
	return strings.Join(parts, "+")
}

// StateChangeFunc is invoked after a breaker changes state, outside its lock.
type StateChangeFunc func(symbol string, from, to BreakerState, reason TripReason)

// StressBreaker is the per-symbol interlock. Its state is a pure function of
// the latest evaluation: it stays tripped only while the inputs keep it
// tripped.
type StressBreaker struct {
	symbol    string
	threshold float64

	mutex         sync.RWMutex
	state         BreakerState
	reason        TripReason
	lastStress    float64
	lastVolRatio  float64
	tripCount     uint32
	lastEvaluated time.Time
	lastTripped   time.Time
	onStateChange StateChangeFunc
}

// NewStressBreaker creates a closed breaker for symbol.
func NewStressBreaker(symbol string, threshold float64) *StressBreaker {
	return &StressBreaker{
		symbol:    symbol,
		threshold: threshold,
		state:     StateClosed,
	}
}

// SetStateChangeCallback sets a callback to be called when the state changes
func (b *StressBreaker) SetStateChangeCallback(callback StateChangeFunc) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.onStateChange = callback
}

// Evaluate recomputes the breaker from the latest stress level and short/long
// volatility ratio and reports whether it is tripped.
func (b *StressBreaker) Evaluate(stressLevel, volRatio float64) bool {
	reason := ReasonNone
	if stressLevel > b.threshold {
		reason |= ReasonStress
	}
	if volRatio > VolSpikeRatio {
		reason |= ReasonVolSpike
	}

	newState := StateClosed
	if reason != ReasonNone {
		newState = StateTripped
	}

	b.mutex.Lock()
	oldState := b.state
	b.state = newState
	b.reason = reason
	b.lastStress = stressLevel
	b.lastVolRatio = volRatio
	b.lastEvaluated = time.Now()
	if newState == StateTripped && oldState != StateTripped {
		b.tripCount++
		b.lastTripped = b.lastEvaluated
	}
	callback := b.onStateChange
	b.mutex.Unlock()

	if callback != nil && oldState != newState {
		callback(b.symbol, oldState, newState, reason)
	}
	return newState == StateTripped
}

// IsTripped reports the state left by the latest evaluation
func (b *StressBreaker) IsTripped() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state == StateTripped
}

// GetState returns the current state of the breaker
func (b *StressBreaker) GetState() BreakerState {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state
}

// Reason returns why the breaker is tripped, or ReasonNone.
func (b *StressBreaker) Reason() TripReason {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.reason
}

// GetStats returns statistics about the breaker
func (b *StressBreaker) GetStats() BreakerStats {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return BreakerStats{
		Symbol:        b.symbol,
		State:         b.state,
		Reason:        b.reason,
		StressLevel:   b.lastStress,
		VolRatio:      b.lastVolRatio,
		TripCount:     b.tripCount,
		LastEvaluated: b.lastEvaluated,
		LastTripped:   b.lastTripped,
	}
}

// BreakerStats holds statistics about a breaker
type BreakerStats struct {
	Symbol        string
	State         BreakerState
	Reason        TripReason
	StressLevel   float64
	VolRatio      float64
	TripCount     uint32
	LastEvaluated time.Time
	LastTripped   time.Time
}

// BreakerManager manages one breaker per symbol
type BreakerManager struct {
	threshold     float64
	breakers      map[string]*StressBreaker
	mutex         sync.RWMutex
	onStateChange StateChangeFunc
}

// NewBreakerManager creates a manager whose breakers trip above threshold
func NewBreakerManager(threshold float64) *BreakerManager {
	return &BreakerManager{
		threshold: threshold,
		breakers:  make(map[string]*StressBreaker),
	}
}

// SetStateChangeCallback installs callback on existing and future breakers
func (m *BreakerManager) SetStateChangeCallback(callback StateChangeFunc) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.onStateChange = callback
	for _, b := range m.breakers {
		b.SetStateChangeCallback(callback)
	}
}

// GetOrCreate gets an existing breaker or creates a new one
func (m *BreakerManager) GetOrCreate(symbol string) *StressBreaker {
	m.mutex.RLock()
	if b, exists := m.breakers[symbol]; exists {
		m.mutex.RUnlock()
		return b
	}
	m.mutex.RUnlock()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Double-check after acquiring write lock
	if b, exists := m.breakers[symbol]; exists {
		return b
	}

	b := NewStressBreaker(symbol, m.threshold)
	b.onStateChange = m.onStateChange
	m.breakers[symbol] = b
	return b
}

// Get gets an existing breaker
func (m *BreakerManager) Get(symbol string) (*StressBreaker, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	b, exists := m.breakers[symbol]
	return b, exists
}

// Evaluate recomputes the symbol's breaker
func (m *BreakerManager) Evaluate(symbol string, stressLevel, volRatio float64) bool {
	return m.GetOrCreate(symbol).Evaluate(stressLevel, volRatio)
}

// IsTripped reports whether the symbol's breaker is tripped. Symbols never
// evaluated are closed.
func (m *BreakerManager) IsTripped(symbol string) bool {
	b, ok := m.Get(symbol)
	return ok && b.IsTripped()
}

// Status reports whether the symbol's breaker is tripped and why.
func (m *BreakerManager) Status(symbol string) (bool, TripReason) {
	b, ok := m.Get(symbol)
	if !ok {
		return false, ReasonNone
	}
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.state == StateTripped, b.reason
}

// GetStats returns statistics for all breakers, sorted by symbol
func (m *BreakerManager) GetStats() []BreakerStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	stats := make([]BreakerStats, 0, len(m.breakers))
	for _, b := range m.breakers {
		stats = append(stats, b.GetStats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Symbol < stats[j].Symbol })
	return stats
}

// HasTripped returns true if any breaker is tripped
func (m *BreakerManager) HasTripped() bool {
	return len(m.TrippedSymbols()) > 0
}

// TrippedSymbols returns the sorted symbols whose breaker is tripped
func (m *BreakerManager) TrippedSymbols() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var tripped []string
	for symbol, b := range m.breakers {
		if b.IsTripped() {
			tripped = append(tripped, symbol)
		}
	}
	sort.Strings(tripped)
	return tripped
}
