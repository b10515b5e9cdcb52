package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolatilityMultiplier(t *testing.T) {
	assert.Equal(t, 0.7, VolatilityLow.Multiplier())
	assert.Equal(t, 1.0, VolatilityNormal.Multiplier())
	assert.Equal(t, 1.8, VolatilityHigh.Multiplier())
}

func TestParse(t *testing.T) {
	v, err := ParseVolatilityRegime("HIGH")
	require.NoError(t, err)
	assert.Equal(t, VolatilityHigh, v)

	_, err = ParseVolatilityRegime("extreme")
	assert.Error(t, err)

	l, err := ParseLiquidityState(" scarce ")
	require.NoError(t, err)
	assert.Equal(t, LiquidityScarce, l)

	l, err = ParseLiquidityState("")
	require.NoError(t, err)
	assert.Equal(t, LiquidityAmple, l)
}

func TestClampStress(t *testing.T) {
	assert.Equal(t, 0.0, ClampStress(-0.3))
	assert.Equal(t, 1.0, ClampStress(4))
	assert.Equal(t, 0.42, ClampStress(0.42))
	assert.Equal(t, 1.0, ClampStress(math.NaN()))
}

func TestStaticClassifier(t *testing.T) {
	c := NewStaticClassifier(NormalRegime())

	assert.Equal(t, VolatilityNormal, c.DetectRegime("BTCUSDT").VolatilityRegime)
	assert.Equal(t, 0.0, c.MarketStressLevel("BTCUSDT"))

	prev := c.Set("BTCUSDT", Regime{VolatilityRegime: VolatilityHigh, LiquidityState: LiquidityScarce, StressLevel: 1.7})
	assert.Equal(t, VolatilityNormal, prev.VolatilityRegime)

	r := c.DetectRegime("BTCUSDT")
	assert.True(t, r.IsHighVolatility())
	assert.True(t, r.IsScarce())
	assert.Equal(t, 1.0, r.StressLevel)
	assert.False(t, r.Timestamp.IsZero())

	c.SetStress("BTCUSDT", 0.3)
	assert.Equal(t, 0.3, c.MarketStressLevel("BTCUSDT"))
	assert.True(t, c.DetectRegime("BTCUSDT").IsHighVolatility(), "SetStress keeps the classification")

	c.SetStress("ETHUSDT", 0.9)
	assert.Equal(t, VolatilityNormal, c.DetectRegime("ETHUSDT").VolatilityRegime)
	assert.Equal(t, 0.9, c.MarketStressLevel("ETHUSDT"))
}
