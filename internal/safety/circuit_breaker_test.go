package safety

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStressBreaker_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		stress   float64
		volRatio float64
		tripped  bool
		reason   TripReason
	}{
		{"calm", 0.2, 1.0, false, ReasonNone},
		{"stress at threshold does not trip", 0.7, 1.0, false, ReasonNone},
		{"stress above threshold", 0.9, 1.0, true, ReasonStress},
		{"vol ratio at limit does not trip", 0.1, 2.0, false, ReasonNone},
		{"vol spike", 0.1, 2.5, true, ReasonVolSpike},
		{"both", 0.95, 3.0, true, ReasonStress | ReasonVolSpike},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewStressBreaker("BTCUSDT", 0.7)
			assert.Equal(t, tt.tripped, b.Evaluate(tt.stress, tt.volRatio))
			assert.Equal(t, tt.tripped, b.IsTripped())
			assert.Equal(t, tt.reason, b.Reason())
		})
	}
}

func TestStressBreaker_FollowsLatestInputs(t *testing.T) {
	b := NewStressBreaker("ETHUSDT", 0.7)

	require.True(t, b.Evaluate(0.9, 1.0))
	require.True(t, b.Evaluate(0.8, 1.0), "stays tripped while conditions hold")
	require.False(t, b.Evaluate(0.5, 1.0), "clears as soon as conditions clear")
	require.True(t, b.Evaluate(0.1, 2.1))

	stats := b.GetStats()
	assert.Equal(t, uint32(2), stats.TripCount)
	assert.Equal(t, StateTripped, stats.State)
	assert.Equal(t, 2.1, stats.VolRatio)
	assert.False(t, stats.LastTripped.IsZero())
}

func TestStressBreaker_StateChangeCallback(t *testing.T) {
	b := NewStressBreaker("SOLUSDT", 0.7)

	type change struct {
		from, to BreakerState
		reason   TripReason
	}
	var changes []change
	b.SetStateChangeCallback(func(symbol string, from, to BreakerState, reason TripReason) {
		assert.Equal(t, "SOLUSDT", symbol)
		changes = append(changes, change{from, to, reason})
	})

	b.Evaluate(0.1, 1.0)
	b.Evaluate(0.9, 1.0)
	b.Evaluate(0.95, 1.0)
	b.Evaluate(0.1, 1.0)

	require.Len(t, changes, 2)
	assert.Equal(t, change{StateClosed, StateTripped, ReasonStress}, changes[0])
	assert.Equal(t, change{StateTripped, StateClosed, ReasonNone}, changes[1])
}

func TestTripReasonString(t *testing.T) {
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "stress", ReasonStress.String())
	assert.Equal(t, "stress+vol_spike", (ReasonStress | ReasonVolSpike).String())
	assert.Equal(t, "TRIPPED", StateTripped.String())
}

func TestBreakerManager(t *testing.T) {
	m := NewBreakerManager(0.7)

	assert.False(t, m.IsTripped("BTCUSDT"), "unknown symbols are closed")

	var mu sync.Mutex
	transitions := 0
	m.SetStateChangeCallback(func(string, BreakerState, BreakerState, TripReason) {
		mu.Lock()
		transitions++
		mu.Unlock()
	})

	assert.True(t, m.Evaluate("BTCUSDT", 0.9, 1.0))
	assert.False(t, m.Evaluate("ETHUSDT", 0.2, 1.0))
	assert.True(t, m.Evaluate("SOLUSDT", 0.2, 2.4))

	assert.True(t, m.HasTripped())
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT"}, m.TrippedSymbols())
	assert.Same(t, m.GetOrCreate("BTCUSDT"), m.GetOrCreate("BTCUSDT"))

	stats := m.GetStats()
	require.Len(t, stats, 3)
	assert.Equal(t, "BTCUSDT", stats[0].Symbol)
	assert.Equal(t, 2, transitions)

	m.Evaluate("BTCUSDT", 0.1, 1.0)
	m.Evaluate("SOLUSDT", 0.1, 1.0)
	assert.False(t, m.HasTripped())
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	d := decimal.NewFromFloat

	assert.True(t, v.ValidateOrder("BTCUSDT", d(0.5), d(65000)).Valid)
	assert.True(t, v.ValidateOrder("BTC-USD", d(-0.5), d(65000)).Valid, "sells are negative quantities")

	tests := []struct {
		name   string
		symbol string
		qty    decimal.Decimal
		price  decimal.Decimal
		code   string
	}{
		{"empty symbol", " ", d(1), d(1), "SYMBOL_EMPTY"},
		{"bad characters", "BTC USDT", d(1), d(1), "SYMBOL_INVALID_CHARS"},
		{"zero quantity", "BTCUSDT", decimal.Zero, d(1), "INVALID_QUANTITY_ZERO"},
		{"negative price", "BTCUSDT", d(1), d(-1), "INVALID_PRICE_NON_POSITIVE"},
		{"absurd price", "BTCUSDT", d(1), d(1e11), "PRICE_OUT_OF_BOUNDS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.ValidateOrder(tt.symbol, tt.qty, tt.price)
			assert.False(t, r.Valid)
			assert.Equal(t, tt.code, r.Code)
			assert.NotEmpty(t, r.Message)
		})
	}
}

func TestBreakerManager_Status(t *testing.T) {
	m := NewBreakerManager(0.7)

	tripped, reason := m.Status("BTCUSDT")
	assert.False(t, tripped)
	assert.Equal(t, ReasonNone, reason)

	m.Evaluate("BTCUSDT", 0.9, 2.5)
	tripped, reason = m.Status("BTCUSDT")
	assert.True(t, tripped)
	assert.Equal(t, ReasonStress|ReasonVolSpike, reason)
}
