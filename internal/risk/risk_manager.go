package risk

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/config"
	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/safety"
	"github.com/shopspring/decimal"
)

// varZScore is the one-sided 95% normal quantile used by the VaR proxy.
var varZScore = decimal.NewFromFloat(1.645)

type positionRecord struct {
	mu  sync.RWMutex
	pos PositionRisk
}

// Manager owns the position ledger and admits orders against RiskLimits
type Manager struct {
	limits config.RiskLimits

	equityMu sync.RWMutex
	equity   decimal.Decimal

	mu        sync.RWMutex
	positions map[string]*positionRecord

	vols      VolatilitySource
	validator *safety.Validator
	now       func() time.Time
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(limits config.RiskLimits) *Manager {
	return &Manager{
		limits:    limits,
		equity:    limits.TotalEquity,
		positions: make(map[string]*positionRecord),
		validator: safety.NewValidator(),
		now:       time.Now,
	}
}

var _ RiskManager = (*Manager)(nil)

// SetVolatilitySource installs the volatility feed used by the VaR proxy.
func (m *Manager) SetVolatilitySource(src VolatilitySource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vols = src
}

// SetEquity refreshes the account equity used for concentration and leverage.
func (m *Manager) SetEquity(equity decimal.Decimal) {
	m.equityMu.Lock()
	defer m.equityMu.Unlock()
	m.equity = equity
}

// Equity returns the account equity in use.
func (m *Manager) Equity() decimal.Decimal {
	m.equityMu.RLock()
	defer m.equityMu.RUnlock()
	return m.equity
}

// Limits returns the configured limits.
func (m *Manager) Limits() config.RiskLimits { return m.limits }

func (m *Manager) get(symbol string) (*positionRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.positions[symbol]
	return r, ok
}

func (m *Manager) getOrCreate(symbol string) *positionRecord {
	if r, ok := m.get(symbol); ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if r, ok := m.positions[symbol]; ok {
		return r
	}
	r := &positionRecord{pos: PositionRisk{Symbol: symbol}}
	m.positions[symbol] = r
	return r
}

func (m *Manager) records() []*positionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*positionRecord, 0, len(m.positions))
	for _, r := range m.positions {
		out = append(out, r)
	}
	return out
}

func (m *Manager) currentSize(symbol string) decimal.Decimal {
	r, ok := m.get(symbol)
	if !ok {
		return decimal.Zero
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pos.PositionSize
}

// exposure returns total notional and the worst drawdown across the ledger.
func (m *Manager) exposure() (decimal.Decimal, float64) {
	total := decimal.Zero
	worst := 0.0
	for _, r := range m.records() {
		r.mu.RLock()
		total = total.Add(r.pos.NotionalValue)
		if r.pos.MaxDrawdown > worst {
			worst = r.pos.MaxDrawdown
		}
		r.mu.RUnlock()
	}
	return total, worst
}

// CanPlaceOrder runs the admission checks in order and stops at the first
// violation: position size, notional, concentration, leverage, drawdown.
func (m *Manager) CanPlaceOrder(symbol string, quantity, price decimal.Decimal) OrderDecision {
	if res := m.validator.ValidateOrder(symbol, quantity, price); !res.Valid {
		return reject(ViolationInvalidOrder, res.Message)
	}

	limit := m.limits.PositionLimit(symbol)
	projected := m.currentSize(symbol).Add(quantity)
	if projected.Abs().GreaterThan(limit) {
		return reject(ViolationPositionSize, fmt.Sprintf(
			"Position limit exceeded for %s: |%s| > %s", symbol, projected, limit))
	}

	newNotional := quantity.Abs().Mul(price)
	totalNotional, worstDrawdown := m.exposure()
	projectedNotional := totalNotional.Add(newNotional)
	if projectedNotional.GreaterThan(m.limits.MaxNotional) {
		return reject(ViolationNotional, fmt.Sprintf(
			"Notional limit exceeded: %s > %s", projectedNotional.StringFixed(2), m.limits.MaxNotional))
	}

	equity := m.Equity()
	if !equity.IsPositive() {
		return reject(ViolationConcentration, fmt.Sprintf(
			"Concentration limit exceeded: equity %s is not positive", equity))
	}
	concentration := newNotional.Div(equity).InexactFloat64()
	if concentration > m.limits.MaxConcentration {
		return reject(ViolationConcentration, fmt.Sprintf(
			"Concentration limit exceeded: %.4f > %.4f", concentration, m.limits.MaxConcentration))
	}

	if m.limits.MaxLeverage > 0 {
		leverage := projectedNotional.Div(equity).InexactFloat64()
		if leverage > m.limits.MaxLeverage {
			return reject(ViolationLeverage, fmt.Sprintf(
				"Leverage limit exceeded: %.2fx > %.2fx", leverage, m.limits.MaxLeverage))
		}
	}

	if m.limits.MaxDrawdown > 0 && worstDrawdown > m.limits.MaxDrawdown {
		return reject(ViolationDrawdown, fmt.Sprintf(
			"Drawdown limit exceeded: %.4f > %.4f", worstDrawdown, m.limits.MaxDrawdown))
	}

	return accept()
}

// AddPosition applies a fill using weighted-average cost accounting. A fill
// that flattens the position leaves AverageEntry unchanged.
func (m *Manager) AddPosition(symbol string, quantity, price decimal.Decimal) error {
	if res := m.validator.ValidateSymbol(symbol); !res.Valid {
		return engerrors.NewValidationError("risk", "add_position", res.Message)
	}
	if res := m.validator.ValidatePrice(price, symbol); !res.Valid {
		return engerrors.NewInvalidPriceError("risk", "add_position", res.Message).
			WithContext("symbol", symbol)
	}
	if res := m.validator.ValidateQuantity(quantity, symbol); !res.Valid {
		return engerrors.NewValidationError("risk", "add_position", res.Message).
			WithContext("symbol", symbol)
	}

	r := m.getOrCreate(symbol)
	r.mu.Lock()
	defer r.mu.Unlock()

	now := m.now()
	p := &r.pos
	if p.OpenedAt.IsZero() {
		p.OpenedAt = now
	}

	oldSize := p.PositionSize
	newSize := oldSize.Add(quantity)
	if !newSize.IsZero() {
		p.AverageEntry = oldSize.Mul(p.AverageEntry).Add(quantity.Mul(price)).Div(newSize)
	}
	p.PositionSize = newSize
	p.MarkPrice = price
	p.revalue()
	p.UpdatedAt = now
	return nil
}

// UpdatePositionRisk marks a position to market and ratchets MaxDrawdown up
// when the market value falls.
func (m *Manager) UpdatePositionRisk(symbol string, markPrice decimal.Decimal) error {
	if res := m.validator.ValidatePrice(markPrice, symbol); !res.Valid {
		return engerrors.NewInvalidPriceError("risk", "update_position_risk", res.Message).
			WithContext("symbol", symbol)
	}
	r, ok := m.get(symbol)
	if !ok {
		return engerrors.NewUnknownSymbolError("risk", "update_position_risk", symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := &r.pos
	oldValue := p.MarketValue
	p.MarkPrice = markPrice
	p.revalue()

	if newValue := p.MarketValue; newValue.LessThan(oldValue) && !oldValue.IsZero() {
		dd := oldValue.Sub(newValue).Div(oldValue.Abs()).InexactFloat64()
		if dd > p.MaxDrawdown {
			p.MaxDrawdown = dd
		}
	}
	p.UpdatedAt = m.now()
	return nil
}

func (p *PositionRisk) revalue() {
	p.MarketValue = p.PositionSize.Mul(p.MarkPrice)
	p.NotionalValue = p.MarketValue.Abs()
	p.UnrealizedPnL = p.MarkPrice.Sub(p.AverageEntry).Mul(p.PositionSize)
}

// CalculatePortfolioRisk aggregates the ledger into a single snapshot
func (m *Manager) CalculatePortfolioRisk() PortfolioRisk {
	m.mu.RLock()
	vols := m.vols
	m.mu.RUnlock()

	pr := PortfolioRisk{
		TotalNotional:      decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		LargestNotional:    decimal.Zero,
		ValueAtRisk:        decimal.Zero,
		TotalEquity:        m.Equity(),
		Timestamp:          m.now(),
	}

	for _, p := range m.Positions() {
		pr.TotalNotional = pr.TotalNotional.Add(p.NotionalValue)
		pr.TotalUnrealizedPnL = pr.TotalUnrealizedPnL.Add(p.UnrealizedPnL)
		if !p.IsFlat() {
			pr.PositionCount++
		}
		if p.NotionalValue.GreaterThan(pr.LargestNotional) {
			pr.LargestNotional = p.NotionalValue
			pr.LargestSymbol = p.Symbol
		}
		if p.MaxDrawdown > pr.WorstDrawdown {
			pr.WorstDrawdown = p.MaxDrawdown
			pr.WorstDrawdownSymbol = p.Symbol
		}
		if vols != nil {
			if vol, ok := vols.LatestVolatility(p.Symbol); ok {
				pr.ValueAtRisk = pr.ValueAtRisk.Add(p.NotionalValue.Mul(decimal.NewFromFloat(vol)).Mul(varZScore))
			}
		}
	}

	if pr.TotalEquity.IsPositive() {
		pr.Leverage = pr.TotalNotional.Div(pr.TotalEquity).InexactFloat64()
	}
	return pr
}

// Position returns a copy of the symbol's ledger entry.
func (m *Manager) Position(symbol string) (PositionRisk, bool) {
	r, ok := m.get(symbol)
	if !ok {
		return PositionRisk{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pos, true
}

// Positions returns copies of every ledger entry sorted by symbol.
func (m *Manager) Positions() []PositionRisk {
	recs := m.records()
	out := make([]PositionRisk, 0, len(recs))
	for _, r := range recs {
		r.mu.RLock()
		out = append(out, r.pos)
		r.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ResetDrawdown clears a symbol's MaxDrawdown. Operator action only.
func (m *Manager) ResetDrawdown(symbol string) error {
	r, ok := m.get(symbol)
	if !ok {
		return engerrors.NewUnknownSymbolError("risk", "reset_drawdown", symbol)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos.MaxDrawdown = 0
	r.pos.UpdatedAt = m.now()
	return nil
}

// RemoveFlatPosition drops a ledger entry whose size is zero. It reports
// whether the entry was removed.
func (m *Manager) RemoveFlatPosition(symbol string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.positions[symbol]
	if !ok {
		return false, engerrors.NewUnknownSymbolError("risk", "remove_flat_position", symbol)
	}
	r.mu.RLock()
	flat := r.pos.IsFlat()
	r.mu.RUnlock()
	if !flat {
		return false, nil
	}
	delete(m.positions, symbol)
	return true, nil
}
