package volatility

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
)

func feed(t *testing.T, tr *Tracker, symbol string, vols ...float64) {
	t.Helper()
	for _, v := range vols {
		require.NoError(t, tr.Update(symbol, v, v/10, time.Now()))
	}
}

func TestUpdate_WindowKeepsMostRecentSamples(t *testing.T) {
	tr := NewTracker(5, 3)

	for i := 1; i <= 12; i++ {
		require.NoError(t, tr.Update("BTCUSDT", float64(i), float64(i)/100, time.Now()))
		assert.LessOrEqual(t, tr.SampleCount("BTCUSDT"), 5)
	}

	stats, ok := tr.Snapshot("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, []float64{8, 9, 10, 11, 12}, stats.Volatilities)
	assert.Equal(t, []float64{0.08, 0.09, 0.10, 0.11, 0.12}, stats.Costs)
	assert.Equal(t, 12.0, stats.LatestVol)
}

func TestUpdate_RejectsInvalidSamples(t *testing.T) {
	tests := []struct {
		name string
		vol  float64
		cost float64
	}{
		{"negative volatility", -0.1, 0.001},
		{"negative cost", 0.2, -0.001},
		{"NaN volatility", math.NaN(), 0.001},
		{"infinite cost", 0.2, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(10, 3)
			feed(t, tr, "ETHUSDT", 0.2, 0.3)

			err := tr.Update("ETHUSDT", tt.vol, tt.cost, time.Now())
			require.Error(t, err)
			assert.True(t, engerrors.IsInvalidSample(err))
			assert.Equal(t, 2, tr.SampleCount("ETHUSDT"), "state must not be mutated")
		})
	}
}

func TestUpdate_InvalidFirstSampleDoesNotCreateSymbol(t *testing.T) {
	tr := NewTracker(10, 3)
	require.Error(t, tr.Update("SOLUSDT", -1, 0, time.Now()))
	assert.Empty(t, tr.Symbols())
}

func TestHasSufficientData(t *testing.T) {
	tr := NewTracker(10, 3)
	assert.False(t, tr.HasSufficientData("BTCUSDT"))

	feed(t, tr, "BTCUSDT", 0.1, 0.1)
	assert.False(t, tr.HasSufficientData("BTCUSDT"))

	feed(t, tr, "BTCUSDT", 0.1)
	assert.True(t, tr.HasSufficientData("BTCUSDT"))
}

func TestRecentVsBaselineRatio(t *testing.T) {
	tests := []struct {
		name     string
		vols     []float64
		expected float64
	}{
		{"unknown symbol is neutral", nil, 1.0},
		{"flat volatility", []float64{0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2, 0.2}, 1.0},
		{"all zero is neutral", []float64{0, 0, 0, 0, 0, 0}, 1.0},
		// window mean = (5*1 + 5*3)/10 = 2, recent mean = 3
		{"recent spike", []float64{1, 1, 1, 1, 1, 3, 3, 3, 3, 3}, 1.5},
		// fewer than five samples: recent window is the full window
		{"short history", []float64{1, 2, 3}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(10, 3)
			feed(t, tr, "BTCUSDT", tt.vols...)
			assert.InDelta(t, tt.expected, tr.RecentVsBaselineRatio("BTCUSDT"), 1e-9)
		})
	}
}

func TestNormalBaselineFollowsRatio(t *testing.T) {
	tr := NewTracker(10, 3)
	assert.Equal(t, DefaultNormalBaseline, tr.NormalBaseline("BTCUSDT"))

	feed(t, tr, "BTCUSDT", 1, 1, 1, 1, 1)
	assert.InDelta(t, 0.8, tr.NormalBaseline("BTCUSDT"), 1e-9)

	feed(t, tr, "BTCUSDT", 3, 3, 3, 3, 3)
	// ratio 1.5 → 0.8 * e^-0.5
	assert.InDelta(t, 0.8*math.Exp(-0.5), tr.NormalBaseline("BTCUSDT"), 1e-9)
}

func TestReset(t *testing.T) {
	tr := NewTracker(10, 3)
	feed(t, tr, "BTCUSDT", 0.1, 0.2, 0.3)
	tr.Reset("BTCUSDT")
	assert.Equal(t, 0, tr.SampleCount("BTCUSDT"))
	assert.False(t, tr.HasSufficientData("BTCUSDT"))
}

func TestConcurrentUpdatesRespectWindow(t *testing.T) {
	tr := NewTracker(50, 10)
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					_ = tr.Update(symbol, 0.1+float64(i%7)/100, 0.001, time.Now())
					_ = tr.RecentVsBaselineRatio(symbol)
				}
			}(symbol)
		}
	}
	wg.Wait()

	for _, symbol := range symbols {
		stats, ok := tr.Snapshot(symbol)
		require.True(t, ok)
		assert.Equal(t, 50, stats.Samples)
		assert.Len(t, stats.Costs, 50)
	}
	assert.Equal(t, symbols, tr.Symbols())
}
