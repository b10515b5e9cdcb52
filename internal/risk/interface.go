package risk

import "github.com/shopspring/decimal"

// RiskManager defines the interface for risk management
type RiskManager interface {
	// CanPlaceOrder checks a proposed order against the configured limits
	CanPlaceOrder(symbol string, quantity, price decimal.Decimal) OrderDecision

	// AddPosition applies a fill to the ledger
	AddPosition(symbol string, quantity, price decimal.Decimal) error

	// UpdatePositionRisk marks a position to market
	UpdatePositionRisk(symbol string, markPrice decimal.Decimal) error

	// CalculatePortfolioRisk aggregates exposure across all positions
	CalculatePortfolioRisk() PortfolioRisk
}

// VolatilitySource supplies the latest realized volatility for the VaR proxy.
type VolatilitySource interface {
	LatestVolatility(symbol string) (float64, bool)
}
