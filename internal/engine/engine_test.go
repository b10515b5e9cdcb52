package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/config"
	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/risk"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/safety"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/threshold"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func testConfig() *config.EngineConfig {
	cfg := config.Default()
	cfg.Threshold.MinSamples = 10
	cfg.Threshold.VolWindow = 20
	return cfg
}

func newTestEngine(t *testing.T) (*Engine, *regime.StaticClassifier) {
	t.Helper()
	classifier := regime.NewStaticClassifier(regime.NormalRegime())
	e, err := New(testConfig(), classifier, logger.NewNopLogger())
	require.NoError(t, err)
	return e, classifier
}

func feed(t *testing.T, e *Engine, symbol string, n int, vol float64, price float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, e.UpdateMarketData(types.MarketTick{
			Symbol:     symbol,
			Price:      d(price),
			Volume:     d(10),
			Volatility: vol,
			TradeCost:  0.001,
			Timestamp:  time.Now(),
		}))
	}
}

func TestNew_Validation(t *testing.T) {
	classifier := regime.NewStaticClassifier(regime.NormalRegime())

	_, err := New(nil, classifier, nil)
	assert.True(t, errors.Is(err, engerrors.ErrInvalidConfig))

	_, err = New(testConfig(), nil, nil)
	assert.True(t, errors.Is(err, engerrors.ErrInvalidConfig))

	bad := testConfig()
	bad.Threshold.BaseCostThreshold = 0.05
	_, err = New(bad, classifier, nil)
	assert.True(t, errors.Is(err, engerrors.ErrInvalidConfig))

	e, err := New(testConfig(), classifier, nil)
	require.NoError(t, err)
	assert.NotNil(t, e.Health())
}

func TestEngine_ColdStart(t *testing.T) {
	e, _ := newTestEngine(t)
	feed(t, e, "BTCUSDT", 3, 0.25, 100)

	dec := e.ComputeThresholds("BTCUSDT", d(1), d(100))
	assert.Equal(t, threshold.StateColdStart, dec.State)
	assert.Equal(t, e.Config().Threshold.BaseCostThreshold, dec.Threshold)
	assert.Equal(t, 1.0, dec.SizeMultiplier)
}

func TestEngine_BreakerOverride(t *testing.T) {
	e, classifier := newTestEngine(t)
	cfg := e.Config().Threshold
	require.Equal(t, 0.7, cfg.CircuitBreakerThreshold)

	classifier.SetStress("BTCUSDT", 0.9)
	feed(t, e, "BTCUSDT", 10, 0.25, 100)

	dec := e.ComputeThresholds("BTCUSDT", d(1), d(100))
	assert.Equal(t, threshold.StateBreakerTripped, dec.State)
	assert.Equal(t, cfg.MaxCostThreshold, dec.Threshold)
	assert.Equal(t, cfg.MinPositionMultiplier, dec.SizeMultiplier)

	status := e.BreakerStatus()
	require.Len(t, status, 1)
	assert.Equal(t, safety.StateTripped, status[0].State)

	classifier.SetStress("BTCUSDT", 0.2)
	feed(t, e, "BTCUSDT", 1, 0.25, 100)
	assert.Equal(t, threshold.StateNormal, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)
}

func TestEngine_StressBetweenTicksTripsBreaker(t *testing.T) {
	e, classifier := newTestEngine(t)
	cfg := e.Config().Threshold
	feed(t, e, "BTCUSDT", 10, 0.25, 100)
	require.Equal(t, threshold.StateNormal, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)

	classifier.SetStress("BTCUSDT", 0.9)

	dec := e.ComputeThresholds("BTCUSDT", d(1), d(100))
	assert.Equal(t, threshold.StateBreakerTripped, dec.State)
	assert.Equal(t, safety.ReasonStress, dec.BreakerReason)
	assert.Equal(t, cfg.MaxCostThreshold, dec.Threshold)
	assert.Equal(t, cfg.MinPositionMultiplier, dec.SizeMultiplier)

	ev := e.EvaluateOrder("BTCUSDT", d(1), d(100))
	assert.Equal(t, threshold.StateBreakerTripped, ev.Threshold.State)
	assert.True(t, ev.AdjustedQuantity.Equal(d(0.1)), "got %s", ev.AdjustedQuantity)
}

func TestEngine_SmallMinSamples(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold.MinSamples = 5
	e, err := New(cfg, regime.NewStaticClassifier(regime.NormalRegime()), nil)
	require.NoError(t, err)

	feed(t, e, "BTCUSDT", 4, 0.25, 100)
	assert.Equal(t, threshold.StateColdStart, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)
	feed(t, e, "BTCUSDT", 1, 0.25, 100)
	assert.Equal(t, threshold.StateNormal, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)

	for i := 0; i < 30; i++ {
		_, err := e.RecordOutcome("BTCUSDT", 0.001, 0.003, time.Now())
		require.NoError(t, err)
	}
	dec := e.ComputeThresholds("BTCUSDT", d(1), d(100))
	assert.Equal(t, 1.0, dec.VolScale)
	assert.Equal(t, 1.0, dec.SizeScale)
}

type nanClassifier struct{}

func (nanClassifier) DetectRegime(string) regime.Regime { return regime.NormalRegime() }
func (nanClassifier) MarketStressLevel(string) float64  { return math.NaN() }

func TestEngine_NonFiniteStressTripsBreaker(t *testing.T) {
	e, err := New(testConfig(), nanClassifier{}, nil)
	require.NoError(t, err)

	feed(t, e, "BTCUSDT", 10, 0.25, 100)
	assert.Equal(t, threshold.StateBreakerTripped, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)
}

func TestEngine_FeedbackRaisesThreshold(t *testing.T) {
	e, _ := newTestEngine(t)
	feed(t, e, "ETHUSDT", 10, 0.25, 2000)

	before := e.ComputeThresholds("ETHUSDT", d(5), d(2000))
	require.Equal(t, threshold.StateNormal, before.State)

	for i := 0; i < 10; i++ {
		_, err := e.RecordOutcome("ETHUSDT", 0.002, 0.003, time.Now())
		require.NoError(t, err)
	}

	after := e.ComputeThresholds("ETHUSDT", d(5), d(2000))
	assert.Greater(t, after.VolScale, before.VolScale)
	assert.Greater(t, after.Threshold, before.Threshold)
}

func TestEngine_RejectsInvalidInput(t *testing.T) {
	e, _ := newTestEngine(t)

	err := e.UpdateMarketData(types.MarketTick{Symbol: "BTCUSDT", Price: d(100), Volatility: -0.1})
	require.Error(t, err)
	assert.True(t, engerrors.IsInvalidSample(err))

	err = e.UpdateMarketData(types.MarketTick{Symbol: "BTCUSDT", Price: d(-1), Volatility: 0.1})
	assert.True(t, engerrors.IsInvalidSample(err))

	err = e.UpdateMarketData(types.MarketTick{Volatility: 0.1})
	assert.True(t, engerrors.IsInvalidSample(err))

	_, err = e.RecordOutcome("BTCUSDT", math.NaN(), 1, time.Time{})
	assert.True(t, engerrors.IsInvalidSample(err))

	assert.Zero(t, e.Snapshot("BTCUSDT").Volatility.Samples)
	assert.Len(t, e.ErrorStats().Recent(), 4)
}

func TestEngine_EvaluateOrderScalesQuantity(t *testing.T) {
	e, _ := newTestEngine(t)
	feed(t, e, "BTCUSDT", 10, 0.25, 100)

	ev := e.EvaluateOrder("BTCUSDT", d(2), d(100))

	assert.Equal(t, threshold.StateNormal, ev.Threshold.State)
	assert.InDelta(t, 0.7, ev.Threshold.SizeMultiplier, 1e-12)
	assert.True(t, ev.AdjustedQuantity.Equal(d(1.4)), "got %s", ev.AdjustedQuantity)
	assert.True(t, ev.Admission.Accepted)
	assert.Equal(t, risk.AcceptedReason, ev.Admission.Reason)
}

func TestEngine_EvaluateOrderRejectsAfterScaling(t *testing.T) {
	e, classifier := newTestEngine(t)
	classifier.SetStress("BTCUSDT", 0.95)
	feed(t, e, "BTCUSDT", 10, 0.25, 100)

	// Breaker multiplier 0.1 shrinks 200 to 20, still above the limit of 10.
	ev := e.EvaluateOrder("BTCUSDT", d(200), d(100))
	assert.Equal(t, threshold.StateBreakerTripped, ev.Threshold.State)
	assert.True(t, ev.AdjustedQuantity.Equal(d(20)))
	assert.False(t, ev.Admission.Accepted)
	assert.Equal(t, risk.ViolationPositionSize, ev.Admission.Violation)
}

func TestEngine_EvaluateOrderScaledToZero(t *testing.T) {
	e, classifier := newTestEngine(t)
	classifier.SetStress("BTCUSDT", 0.95)
	feed(t, e, "BTCUSDT", 10, 0.25, 100)

	ev := e.EvaluateOrder("BTCUSDT", d(0.00000001), d(100))
	assert.True(t, ev.AdjustedQuantity.IsZero())
	assert.False(t, ev.Admission.Accepted)
	assert.Equal(t, risk.ViolationScaledToZero, ev.Admission.Violation)
	assert.Contains(t, ev.Admission.Reason, "size multiplier")
}

func TestEngine_ConcentrationRejection(t *testing.T) {
	cfg := testConfig()
	cfg.Risk.TotalEquity = d(100)
	cfg.Risk.MaxConcentration = 0.2
	e, err := New(cfg, regime.NewStaticClassifier(regime.NormalRegime()), nil)
	require.NoError(t, err)

	dec := e.CanPlaceOrder("BTCUSDT", d(3), d(10))
	assert.False(t, dec.Accepted)
	assert.Contains(t, dec.Reason, "Concentration")
}

func TestEngine_TicksRemarkPositions(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.AddPosition("BTCUSDT", d(1), d(100)))

	feed(t, e, "BTCUSDT", 1, 0.25, 80)

	st := e.Snapshot("BTCUSDT")
	require.NotNil(t, st.Position)
	assert.True(t, st.Position.MarkPrice.Equal(d(80)))
	assert.InDelta(t, 0.2, st.Position.MaxDrawdown, 1e-12)

	pr := e.CalculatePortfolioRisk()
	assert.True(t, pr.TotalNotional.Equal(d(80)))
	assert.InDelta(t, 80*0.25*1.645, pr.ValueAtRisk.InexactFloat64(), 1e-9)
	assert.Equal(t, 1, pr.PositionCount)

	require.NoError(t, e.ResetDrawdown("BTCUSDT"))
	assert.Zero(t, e.Snapshot("BTCUSDT").Position.MaxDrawdown)
}

func TestEngine_OperatorControls(t *testing.T) {
	e, _ := newTestEngine(t)
	feed(t, e, "BTCUSDT", 10, 0.25, 100)
	require.Equal(t, threshold.StateNormal, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)

	e.ResetSymbol("BTCUSDT")
	assert.Equal(t, threshold.StateColdStart, e.ComputeThresholds("BTCUSDT", d(1), d(100)).State)

	assert.True(t, errors.Is(e.ResetDrawdown("XRPUSDT"), engerrors.ErrUnknownSymbol))

	require.NoError(t, e.AddPosition("BTCUSDT", d(1), d(100)))
	require.NoError(t, e.AddPosition("BTCUSDT", d(-1), d(110)))
	removed, err := e.RemoveFlatPosition("BTCUSDT")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, e.Positions())
}

func TestEngine_ConcurrentSymbols(t *testing.T) {
	e, _ := newTestEngine(t)
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		for w := 0; w < 3; w++ {
			wg.Add(1)
			go func(symbol string, w int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_ = e.UpdateMarketData(types.MarketTick{
						Symbol:     symbol,
						Price:      d(100),
						Volatility: 0.1 + float64((i+w)%5)*0.01,
						TradeCost:  0.001,
					})
					dec := e.ComputeThresholds(symbol, d(1), d(100))
					assert.GreaterOrEqual(t, dec.Threshold, e.Config().Threshold.BaseCostThreshold)
					_ = e.CanPlaceOrder(symbol, d(0.1), d(100))
					if i%10 == 0 {
						_, _ = e.RecordOutcome(symbol, 0.001, 0.0012, time.Time{})
						_ = e.AddPosition(symbol, d(0.01), d(100))
					}
				}
			}(symbol, w)
		}
	}
	wg.Wait()

	for _, symbol := range symbols {
		st := e.Snapshot(symbol)
		assert.Equal(t, 20, st.Volatility.Samples, fmt.Sprintf("%s window bound", symbol))
		require.NotNil(t, st.Position)
		assert.True(t, st.Position.PositionSize.Equal(d(0.15)), "got %s", st.Position.PositionSize)
	}
	assert.Equal(t, symbols, e.Symbols())
}
