package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Violation names the limit an order would breach.
type Violation string

const (
	ViolationNone          Violation = ""
	ViolationInvalidOrder  Violation = "invalid_order"
	ViolationPositionSize  Violation = "position_size"
	ViolationNotional      Violation = "notional"
	ViolationConcentration Violation = "concentration"
	ViolationLeverage      Violation = "leverage"
	ViolationDrawdown      Violation = "drawdown"
	ViolationScaledToZero  Violation = "scaled_to_zero"
)

// AcceptedReason is the reason carried by every accepted OrderDecision.
const AcceptedReason = "Order accepted"

// OrderDecision is the admission verdict for a proposed order
type OrderDecision struct {
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason"`
	Violation Violation `json:"violation,omitempty"`
}

func accept() OrderDecision {
	return OrderDecision{Accepted: true, Reason: AcceptedReason}
}

func reject(v Violation, reason string) OrderDecision {
	return OrderDecision{Accepted: false, Reason: reason, Violation: v}
}

// RejectScaledToZero is the verdict for an order whose size multiplier
// shrank it below the ledger's quantity precision.
func RejectScaledToZero(quantity decimal.Decimal, multiplier float64) OrderDecision {
	return reject(ViolationScaledToZero, fmt.Sprintf(
		"Order quantity %s scaled to zero by size multiplier %.4f", quantity, multiplier))
}

// PositionRisk is the ledger entry for one symbol
type PositionRisk struct {
	Symbol        string          `json:"symbol"`
	PositionSize  decimal.Decimal `json:"position_size"`
	AverageEntry  decimal.Decimal `json:"average_entry"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	NotionalValue decimal.Decimal `json:"notional_value"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	MaxDrawdown   float64         `json:"max_drawdown"`
	OpenedAt      time.Time       `json:"opened_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsFlat reports whether the position holds no quantity
func (p PositionRisk) IsFlat() bool {
	return p.PositionSize.IsZero()
}

// PortfolioRisk is an aggregate snapshot across all positions
type PortfolioRisk struct {
	TotalNotional       decimal.Decimal `json:"total_notional"`
	TotalUnrealizedPnL  decimal.Decimal `json:"total_unrealized_pnl"`
	TotalEquity         decimal.Decimal `json:"total_equity"`
	Leverage            float64         `json:"leverage"`
	LargestSymbol       string          `json:"largest_symbol"`
	LargestNotional     decimal.Decimal `json:"largest_notional"`
	WorstDrawdown       float64         `json:"worst_drawdown"`
	WorstDrawdownSymbol string          `json:"worst_drawdown_symbol"`
	ValueAtRisk         decimal.Decimal `json:"value_at_risk"`
	PositionCount       int             `json:"position_count"`
	Timestamp           time.Time       `json:"timestamp"`
}
