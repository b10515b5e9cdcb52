package config

import (
	"fmt"
	"math"

	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
)

// Validate checks the threshold and risk sections.
func (c *EngineConfig) Validate() error {
	if err := c.Threshold.Validate(); err != nil {
		return err
	}
	return c.Risk.Validate()
}

// Validate enforces the threshold invariants
func (t ThresholdConfig) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return engerrors.NewConfigurationError("config", "validate_threshold", fmt.Sprintf(format, args...))
	}

	if !finite(t.BaseCostThreshold, t.MaxCostThreshold, t.VolScalingFactor, t.SizeScalingFactor,
		t.MinPositionMultiplier, t.MaxPositionMultiplier, t.CircuitBreakerThreshold) {
		return fail("threshold parameters must be finite")
	}
	if t.BaseCostThreshold <= 0 {
		return fail("base_cost_threshold must be positive, got: %.6f", t.BaseCostThreshold)
	}
	if t.BaseCostThreshold > t.MaxCostThreshold {
		return fail("base_cost_threshold (%.6f) must not exceed max_cost_threshold (%.6f)",
			t.BaseCostThreshold, t.MaxCostThreshold)
	}
	if t.VolScalingFactor <= 0 {
		return fail("vol_scaling_factor must be positive, got: %.4f", t.VolScalingFactor)
	}
	if t.SizeScalingFactor < 0 {
		return fail("size_scaling_factor must be non-negative, got: %.4f", t.SizeScalingFactor)
	}
	if t.MinSamples < 1 {
		return fail("min_samples must be at least 1, got: %d", t.MinSamples)
	}
	if t.VolWindow < t.MinSamples {
		return fail("vol_window (%d) must be at least min_samples (%d)", t.VolWindow, t.MinSamples)
	}
	if t.MinPositionMultiplier <= 0 || t.MinPositionMultiplier > 1.0 {
		return fail("min_position_multiplier must be within (0, 1], got: %.4f", t.MinPositionMultiplier)
	}
	if t.MaxPositionMultiplier < 1.0 {
		return fail("max_position_multiplier must be at least 1.0, got: %.4f", t.MaxPositionMultiplier)
	}
	if t.CircuitBreakerThreshold <= 0 || t.CircuitBreakerThreshold > 1.0 {
		return fail("circuit_breaker_threshold must be within (0, 1], got: %.4f", t.CircuitBreakerThreshold)
	}
	return nil
}

// Validate enforces the risk limit invariants
func (r RiskLimits) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return engerrors.NewConfigurationError("config", "validate_risk", fmt.Sprintf(format, args...))
	}

	if !r.MaxPositionSize.IsPositive() {
		return fail("max_position_size must be positive, got: %s", r.MaxPositionSize)
	}
	if !r.MaxNotional.IsPositive() {
		return fail("max_notional must be positive, got: %s", r.MaxNotional)
	}
	if r.TotalEquity.IsNegative() {
		return fail("total_equity must be non-negative, got: %s", r.TotalEquity)
	}
	if !finite(r.MaxDrawdown, r.MaxLeverage, r.MaxConcentration) {
		return fail("risk ratios must be finite")
	}
	if r.MaxDrawdown < 0 || r.MaxDrawdown > 1.0 {
		return fail("max_drawdown must be within [0, 1], got: %.4f", r.MaxDrawdown)
	}
	if r.MaxLeverage < 0 {
		return fail("max_leverage must be non-negative, got: %.2f", r.MaxLeverage)
	}
	if r.MaxConcentration <= 0 || r.MaxConcentration > 1.0 {
		return fail("max_concentration must be within (0, 1], got: %.4f", r.MaxConcentration)
	}
	for symbol, limit := range r.PositionLimits {
		if limit.IsNegative() {
			return fail("position limit for %s must be non-negative, got: %s", symbol, limit)
		}
	}
	return nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
