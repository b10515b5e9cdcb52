package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/types"
	"github.com/shopspring/decimal"
)

// CSVProvider implements TickProvider for CSV files with a header row
type CSVProvider struct {
	log     *logger.Logger
	strict  bool
	skipped int
}

// NewCSVProvider creates a provider that skips malformed rows with a warning
func NewCSVProvider(log *logger.Logger) *CSVProvider {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &CSVProvider{log: log}
}

// NewStrictCSVProvider creates a provider that fails on the first malformed row
func NewStrictCSVProvider(log *logger.Logger) *CSVProvider {
	p := NewCSVProvider(log)
	p.strict = true
	return p
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Tick Provider"
}

// Skipped returns how many rows the last load skipped
func (p *CSVProvider) Skipped() int {
	return p.skipped
}

// LoadTicks loads replay records from a CSV file
func (p *CSVProvider) LoadTicks(source string) ([]ReplayRecord, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer file.Close()

	return p.Read(file)
}

// Read parses replay records from r
func (p *CSVProvider) Read(r io.Reader) ([]ReplayRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	p.skipped = 0

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var records []ReplayRecord
	lineNum := 1 // header
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum+1, err)
		}
		lineNum++

		rec, err := parseRow(row, cols)
		if err != nil {
			if p.strict {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			p.skipped++
			p.log.Warning("Skipping line %d: %v", lineNum, err)
			continue
		}
		rec.Line = lineNum
		records = append(records, rec)
	}

	if p.skipped > 0 {
		p.log.Warning("Skipped %d malformed rows", p.skipped)
	}
	return records, nil
}

type columnIndex map[string]int

func (c columnIndex) get(row []string, name string) (string, bool) {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return "", false
	}
	v := strings.TrimSpace(row[i])
	return v, v != ""
}

func mapColumns(header []string) (columnIndex, error) {
	cols := make(columnIndex, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func parseRow(row []string, cols columnIndex) (ReplayRecord, error) {
	var rec ReplayRecord

	symbol, ok := cols.get(row, ColSymbol)
	if !ok {
		return rec, fmt.Errorf("empty symbol")
	}
	rawTS, _ := cols.get(row, ColTimestamp)
	ts, err := ParseTimestamp(rawTS)
	if err != nil {
		return rec, err
	}
	price, err := parseDecimal(row, cols, ColPrice)
	if err != nil {
		return rec, err
	}
	volume, err := parseDecimal(row, cols, ColVolume)
	if err != nil {
		return rec, err
	}
	vol, err := parseFloat(row, cols, ColVolatility)
	if err != nil {
		return rec, err
	}
	cost, err := parseFloat(row, cols, ColTradeCost)
	if err != nil {
		return rec, err
	}

	rec.Tick = types.MarketTick{
		Symbol:     strings.ToUpper(symbol),
		Price:      price,
		Volume:     volume,
		Volatility: vol,
		TradeCost:  cost,
		Timestamp:  ts,
	}

	if rec.Regime, err = parseRegime(row, cols, ts); err != nil {
		return rec, err
	}
	if rec.Outcome, err = parseOutcome(row, cols, rec.Tick.Symbol, ts); err != nil {
		return rec, err
	}
	return rec, nil
}

func parseRegime(row []string, cols columnIndex, ts time.Time) (*regime.Regime, error) {
	rawStress, hasStress := cols.get(row, ColStress)
	rawVol, hasVol := cols.get(row, ColVolRegime)
	rawLiq, hasLiq := cols.get(row, ColLiquidity)
	if !hasStress && !hasVol && !hasLiq {
		return nil, nil
	}

	r := regime.NormalRegime()
	r.Timestamp = ts
	var err error
	if hasStress {
		if r.StressLevel, err = strconv.ParseFloat(rawStress, 64); err != nil {
			return nil, fmt.Errorf("invalid %s %q", ColStress, rawStress)
		}
	}
	if r.VolatilityRegime, err = regime.ParseVolatilityRegime(rawVol); err != nil {
		return nil, err
	}
	if r.LiquidityState, err = regime.ParseLiquidityState(rawLiq); err != nil {
		return nil, err
	}
	return &r, nil
}

func parseOutcome(row []string, cols columnIndex, symbol string, ts time.Time) (*types.Outcome, error) {
	_, hasPred := cols.get(row, ColPredictedCost)
	_, hasAct := cols.get(row, ColActualCost)
	if !hasPred && !hasAct {
		return nil, nil
	}
	if hasPred != hasAct {
		return nil, fmt.Errorf("%s and %s must be given together", ColPredictedCost, ColActualCost)
	}
	predicted, err := parseFloat(row, cols, ColPredictedCost)
	if err != nil {
		return nil, err
	}
	actual, err := parseFloat(row, cols, ColActualCost)
	if err != nil {
		return nil, err
	}
	return &types.Outcome{Symbol: symbol, PredictedCost: predicted, ActualCost: actual, Timestamp: ts}, nil
}

func parseFloat(row []string, cols columnIndex, name string) (float64, error) {
	raw, ok := cols.get(row, name)
	if !ok {
		return 0, fmt.Errorf("empty %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func parseDecimal(row []string, cols columnIndex, name string) (decimal.Decimal, error) {
	raw, ok := cols.get(row, name)
	if !ok {
		return decimal.Zero, fmt.Errorf("empty %s", name)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// ParseTimestamp accepts unix seconds or milliseconds, or any of TimestampFormats
func ParseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty %s", ColTimestamp)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	for _, layout := range TimestampFormats {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid %s %q", ColTimestamp, raw)
}

// ValidateTicks validates the integrity of loaded records
func (p *CSVProvider) ValidateTicks(records []ReplayRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no data provided")
	}

	for i, rec := range records {
		t := rec.Tick
		if t.Price.IsNegative() || t.Volume.IsNegative() {
			return fmt.Errorf("invalid tick at index %d: price and volume must be non-negative", i)
		}
		if t.Volatility < 0 || math.IsNaN(t.Volatility) || math.IsInf(t.Volatility, 0) {
			return fmt.Errorf("invalid tick at index %d: volatility %v", i, t.Volatility)
		}
		if t.TradeCost < 0 || math.IsNaN(t.TradeCost) || math.IsInf(t.TradeCost, 0) {
			return fmt.Errorf("invalid tick at index %d: trade cost %v", i, t.TradeCost)
		}
	}
	return NewDefaultTickFilter().ValidateTimeSequence(records)
}

// SyntheticConfig drives GenerateSyntheticTicks
type SyntheticConfig struct {
	Symbols    []string
	Ticks      int // per symbol
	Start      time.Time
	Interval   time.Duration
	StartPrice float64
	Seed       int64

	// SpikeEvery injects a volatility spike with high stress every N ticks; 0 disables.
	SpikeEvery int
}

// GenerateSyntheticTicks creates a random-walk replay for demos and tests
func GenerateSyntheticTicks(cfg SyntheticConfig) []ReplayRecord {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = 30000
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().Add(-time.Duration(cfg.Ticks) * cfg.Interval)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	prices := make(map[string]float64, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		prices[s] = cfg.StartPrice / float64(i+1)
	}

	records := make([]ReplayRecord, 0, cfg.Ticks*len(cfg.Symbols))
	for i := 0; i < cfg.Ticks; i++ {
		ts := cfg.Start.Add(time.Duration(i) * cfg.Interval)
		for _, symbol := range cfg.Symbols {
			vol := 0.01 + rng.Float64()*0.01
			stress := rng.Float64() * 0.4
			volRegime := regime.VolatilityNormal
			if cfg.SpikeEvery > 0 && i > 0 && i%cfg.SpikeEvery == 0 {
				vol *= 4
				stress = 0.9
				volRegime = regime.VolatilityHigh
			}

			// Simulate price movements
			price := prices[symbol] * (1 + (rng.Float64()-0.5)*vol)
			if price < cfg.StartPrice*0.01 {
				price = cfg.StartPrice * 0.01
			}
			prices[symbol] = price

			predicted := 0.0005 + vol*0.02
			actual := predicted * (0.8 + rng.Float64()*0.6)

			records = append(records, ReplayRecord{
				Line: len(records) + 2,
				Tick: types.MarketTick{
					Symbol:     symbol,
					Price:      decimal.NewFromFloat(price).Round(2),
					Volume:     decimal.NewFromFloat(rng.Float64() * 100).Round(4),
					Volatility: vol,
					TradeCost:  actual,
					Timestamp:  ts,
				},
				Regime: &regime.Regime{
					VolatilityRegime: volRegime,
					LiquidityState:   regime.LiquidityAmple,
					StressLevel:      stress,
					Timestamp:        ts,
				},
				Outcome: &types.Outcome{
					Symbol:        symbol,
					PredictedCost: predicted,
					ActualCost:    actual,
					Timestamp:     ts,
				},
			})
		}
	}
	return records
}
