package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
)

// DefaultStaleAfter marks the engine degraded when no tick arrived for this long.
const DefaultStaleAfter = 5 * time.Minute

// unhealthyErrorCount is how many recent state errors mark the engine unhealthy.
const unhealthyErrorCount = 5

// BreakerSource lists the symbols whose circuit breaker is tripped.
type BreakerSource interface {
	TrippedSymbols() []string
}

type HealthChecker struct {
	mu         sync.RWMutex
	startTime  time.Time
	lastTick   time.Time
	lastSymbol string
	staleAfter time.Duration

	breakers BreakerSource
	errors   *engerrors.ErrorStats
	now      func() time.Time
}

type HealthStatus struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	LastTick        time.Time `json:"last_tick"`
	LastSymbol      string    `json:"last_symbol,omitempty"`
	TrippedBreakers []string  `json:"tripped_breakers,omitempty"`
	Uptime          string    `json:"uptime"`
	Errors          []string  `json:"errors,omitempty"`
}

func NewHealthChecker(breakers BreakerSource, errors *engerrors.ErrorStats) *HealthChecker {
	return &HealthChecker{
		startTime:  time.Now(),
		staleAfter: DefaultStaleAfter,
		breakers:   breakers,
		errors:     errors,
		now:        time.Now,
	}
}

// SetStaleAfter changes how long the checker waits for a tick before
// reporting degraded.
func (h *HealthChecker) SetStaleAfter(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.staleAfter = d
}

// RecordTick notes that market data arrived for symbol.
func (h *HealthChecker) RecordTick(symbol string, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTick = ts
	h.lastSymbol = symbol
}

// Check builds the current health status and the HTTP code that goes with it.
func (h *HealthChecker) Check() (HealthStatus, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	health := HealthStatus{
		Status:     "healthy",
		Timestamp:  now,
		LastTick:   h.lastTick,
		LastSymbol: h.lastSymbol,
		Uptime:     now.Sub(h.startTime).String(),
	}
	code := http.StatusOK

	if h.breakers != nil {
		health.TrippedBreakers = h.breakers.TrippedSymbols()
	}
	if h.lastTick.IsZero() || now.Sub(h.lastTick) > h.staleAfter || len(health.TrippedBreakers) > 0 {
		health.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	if h.errors != nil {
		health.Errors = h.errors.Recent()
		if h.errors.HasRecentErrors(engerrors.ErrorCategoryState, unhealthyErrorCount) ||
			h.errors.HasRecentErrors(engerrors.ErrorCategoryFatal, 1) {
			health.Status = "unhealthy"
			code = http.StatusInternalServerError
		}
	}
	return health, code
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health, code := h.Check()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
