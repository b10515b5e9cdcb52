package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketTick is one market data update for a symbol. Volatility and
// TradeCost feed the rolling windows; Price re-marks any open position.
type MarketTick struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	Volume     decimal.Decimal `json:"volume"`
	Volatility float64         `json:"volatility"`
	TradeCost  float64         `json:"trade_cost"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Outcome is a realized execution cost paired with the cost predicted for it.
type Outcome struct {
	Symbol        string    `json:"symbol"`
	PredictedCost float64   `json:"predicted_cost"`
	ActualCost    float64   `json:"actual_cost"`
	Timestamp     time.Time `json:"timestamp"`
}
