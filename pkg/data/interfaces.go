package data

import (
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/types"
)

// ReplayRecord is one row of a replay file: a tick plus the optional regime
// reading and realized outcome recorded alongside it.
type ReplayRecord struct {
	Line    int
	Tick    types.MarketTick
	Regime  *regime.Regime
	Outcome *types.Outcome
}

// TickProvider loads replay records from a source
type TickProvider interface {
	// LoadTicks loads replay records from the specified source
	LoadTicks(source string) ([]ReplayRecord, error)

	// ValidateTicks validates the integrity of the loaded records
	ValidateTicks(records []ReplayRecord) error

	// GetName returns the name of the data provider
	GetName() string
}

// TickFilter narrows and checks replay data
type TickFilter interface {
	// FilterByPeriod keeps the records within period of the latest one
	FilterByPeriod(records []ReplayRecord, period time.Duration) []ReplayRecord

	// FilterByDateRange keeps records with start <= timestamp <= end
	FilterByDateRange(records []ReplayRecord, start, end time.Time) []ReplayRecord

	// FilterBySymbols keeps records for the given symbols
	FilterBySymbols(records []ReplayRecord, symbols []string) []ReplayRecord

	// ValidateTimeSequence ensures each symbol's ticks are in chronological order
	ValidateTimeSequence(records []ReplayRecord) error
}

// Column names understood by the CSV provider. The first six are required.
const (
	ColSymbol        = "symbol"
	ColTimestamp     = "timestamp"
	ColPrice         = "price"
	ColVolume        = "volume"
	ColVolatility    = "volatility"
	ColTradeCost     = "trade_cost"
	ColStress        = "stress"
	ColVolRegime     = "vol_regime"
	ColLiquidity     = "liquidity"
	ColPredictedCost = "predicted_cost"
	ColActualCost    = "actual_cost"
)

// RequiredColumns must appear in every replay file header.
var RequiredColumns = []string{ColSymbol, ColTimestamp, ColPrice, ColVolume, ColVolatility, ColTradeCost}

// TimestampFormats are tried in order for non-numeric timestamps. Numeric
// timestamps are unix seconds, or milliseconds above 1e11.
var TimestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}
