package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ThresholdConfig drives the adaptive threshold calculator. Immutable per run.
type ThresholdConfig struct {
	BaseCostThreshold       float64 `json:"base_cost_threshold"`
	MaxCostThreshold        float64 `json:"max_cost_threshold"`
	VolScalingFactor        float64 `json:"vol_scaling_factor"`
	SizeScalingFactor       float64 `json:"size_scaling_factor"`
	MinSamples              int     `json:"min_samples"`
	VolWindow               int     `json:"vol_window"`
	MinPositionMultiplier   float64 `json:"min_position_multiplier"`
	MaxPositionMultiplier   float64 `json:"max_position_multiplier"`
	CircuitBreakerThreshold float64 `json:"circuit_breaker_threshold"`
}

// RiskLimits bounds order admission. Immutable per run except TotalEquity,
// which the risk manager may refresh through SetEquity.
type RiskLimits struct {
	MaxPositionSize  decimal.Decimal            `json:"max_position_size"`
	MaxNotional      decimal.Decimal            `json:"max_notional"`
	MaxDrawdown      float64                    `json:"max_drawdown"`
	PositionLimits   map[string]decimal.Decimal `json:"position_limits"`
	MaxLeverage      float64                    `json:"max_leverage"`
	MaxConcentration float64                    `json:"max_concentration"`
	TotalEquity      decimal.Decimal            `json:"total_equity"`
}

// PositionLimit returns the per-symbol size limit, falling back to MaxPositionSize.
func (r RiskLimits) PositionLimit(symbol string) decimal.Decimal {
	if limit, ok := r.PositionLimits[symbol]; ok {
		return limit
	}
	return r.MaxPositionSize
}

// EngineConfig is the full configuration handed to the engine and CLI.
type EngineConfig struct {
	Environment string
	LogLevel    string
	LogDir      string

	Threshold ThresholdConfig
	Risk      RiskLimits

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}
}

// DefaultThresholdConfig returns defaults suited to liquid crypto pairs
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		BaseCostThreshold:       0.001, // 10 bps
		MaxCostThreshold:        0.01,  // 100 bps
		VolScalingFactor:        1.0,
		SizeScalingFactor:       0.5,
		MinSamples:              20,
		VolWindow:               100,
		MinPositionMultiplier:   0.1,
		MaxPositionMultiplier:   1.5,
		CircuitBreakerThreshold: 0.7,
	}
}

// DefaultRiskLimits returns conservative portfolio limits
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:  decimal.NewFromInt(10),
		MaxNotional:      decimal.NewFromInt(1_000_000),
		MaxDrawdown:      0.2,
		PositionLimits:   make(map[string]decimal.Decimal),
		MaxLeverage:      3.0,
		MaxConcentration: 0.4,
		TotalEquity:      decimal.NewFromInt(100_000),
	}
}

// Default returns a complete configuration without reading the environment.
func Default() *EngineConfig {
	cfg := &EngineConfig{
		Environment: "development",
		LogLevel:    "info",
		Threshold:   DefaultThresholdConfig(),
		Risk:        DefaultRiskLimits(),
	}
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.HealthPort = 9091
	return cfg
}

// Load builds the configuration from environment variables on top of the
// defaults and validates it.
func Load() (*EngineConfig, error) {
	cfg := Default()

	cfg.Environment = getEnv("ENV", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)

	th := &cfg.Threshold
	th.BaseCostThreshold = getEnvFloat("THRESHOLD_BASE_COST", th.BaseCostThreshold)
	th.MaxCostThreshold = getEnvFloat("THRESHOLD_MAX_COST", th.MaxCostThreshold)
	th.VolScalingFactor = getEnvFloat("VOL_SCALING_FACTOR", th.VolScalingFactor)
	th.SizeScalingFactor = getEnvFloat("SIZE_SCALING_FACTOR", th.SizeScalingFactor)
	th.MinSamples = getEnvInt("MIN_SAMPLES", th.MinSamples)
	th.VolWindow = getEnvInt("VOL_WINDOW", th.VolWindow)
	th.MinPositionMultiplier = getEnvFloat("MIN_POSITION_MULTIPLIER", th.MinPositionMultiplier)
	th.MaxPositionMultiplier = getEnvFloat("MAX_POSITION_MULTIPLIER", th.MaxPositionMultiplier)
	th.CircuitBreakerThreshold = getEnvFloat("CIRCUIT_BREAKER_THRESHOLD", th.CircuitBreakerThreshold)

	rl := &cfg.Risk
	rl.MaxPositionSize = getEnvDecimal("RISK_MAX_POSITION_SIZE", rl.MaxPositionSize)
	rl.MaxNotional = getEnvDecimal("RISK_MAX_NOTIONAL", rl.MaxNotional)
	rl.MaxDrawdown = getEnvFloat("RISK_MAX_DRAWDOWN", rl.MaxDrawdown)
	rl.MaxLeverage = getEnvFloat("RISK_MAX_LEVERAGE", rl.MaxLeverage)
	rl.MaxConcentration = getEnvFloat("RISK_MAX_CONCENTRATION", rl.MaxConcentration)
	rl.TotalEquity = getEnvDecimal("RISK_TOTAL_EQUITY", rl.TotalEquity)

	if raw := getEnv("SYMBOL_LIMITS", ""); raw != "" {
		limits, err := ParseSymbolLimits(raw)
		if err != nil {
			return nil, err
		}
		rl.PositionLimits = limits
	}

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", cfg.Monitoring.PrometheusPort)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", cfg.Monitoring.HealthPort)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseSymbolLimits parses "BTCUSDT:2,ETHUSDT:30" into per-symbol limits.
func ParseSymbolLimits(raw string) (map[string]decimal.Decimal, error) {
	limits := make(map[string]decimal.Decimal)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, value, ok := strings.Cut(part, ":")
		if !ok || strings.TrimSpace(symbol) == "" {
			return nil, fmt.Errorf("invalid symbol limit %q: expected SYMBOL:SIZE", part)
		}
		limit, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid symbol limit %q: %w", part, err)
		}
		limits[strings.ToUpper(strings.TrimSpace(symbol))] = limit
	}
	return limits, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	if val := os.Getenv(key); val != "" {
		if d, err := decimal.NewFromString(val); err == nil {
			return d
		}
	}
	return defaultVal
}
