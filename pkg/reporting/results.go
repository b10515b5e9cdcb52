package reporting

import (
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/engine"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/risk"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/safety"
	"github.com/shopspring/decimal"
)

// DecisionRow is one evaluated order in the replay log
type DecisionRow struct {
	DecisionID     string          `json:"decision_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Symbol         string          `json:"symbol"`
	Price          decimal.Decimal `json:"price"`
	RequestedQty   decimal.Decimal `json:"requested_qty"`
	AdjustedQty    decimal.Decimal `json:"adjusted_qty"`
	State          string          `json:"state"`
	Threshold      float64         `json:"threshold"`
	SizeMultiplier float64         `json:"size_multiplier"`
	VolRatio       float64         `json:"vol_ratio"`
	Regime         string          `json:"regime"`
	BreakerReason  string          `json:"breaker_reason,omitempty"`
	Accepted       bool            `json:"accepted"`
	Reason         string          `json:"reason"`
	Violation      string          `json:"violation,omitempty"`
}

// NewDecisionRow flattens an order evaluation for reporting
func NewDecisionRow(price decimal.Decimal, ev engine.OrderEvaluation) DecisionRow {
	d := ev.Threshold
	row := DecisionRow{
		DecisionID:     d.ID.String(),
		Timestamp:      d.Timestamp,
		Symbol:         d.Symbol,
		Price:          price,
		RequestedQty:   ev.RequestedQuantity,
		AdjustedQty:    ev.AdjustedQuantity,
		State:          d.State.String(),
		Threshold:      d.Threshold,
		SizeMultiplier: d.SizeMultiplier,
		VolRatio:       d.VolRatio,
		Regime:         d.Regime.String(),
		Accepted:       ev.Admission.Accepted,
		Reason:         ev.Admission.Reason,
		Violation:      string(ev.Admission.Violation),
	}
	if d.BreakerReason != safety.ReasonNone {
		row.BreakerReason = d.BreakerReason.String()
	}
	return row
}

// RunStats counts what happened during a replay
type RunStats struct {
	Ticks          int `json:"ticks"`
	InvalidSamples int `json:"invalid_samples"`
	Outcomes       int `json:"outcomes"`
	Orders         int `json:"orders"`
	Accepted       int `json:"accepted"`
	Rejected       int `json:"rejected"`
	Fills          int `json:"fills"`
}

// ReplayResults is everything the reporters render
type ReplayResults struct {
	Source     string                `json:"source"`
	Start      time.Time             `json:"start"`
	End        time.Time             `json:"end"`
	Stats      RunStats              `json:"stats"`
	Decisions  []DecisionRow         `json:"-"`
	Symbols    []engine.SymbolState  `json:"-"`
	Breakers   []safety.BreakerStats `json:"-"`
	Positions  []risk.PositionRisk   `json:"positions"`
	Portfolio  risk.PortfolioRisk    `json:"portfolio"`
	Violations map[string]int        `json:"violations"`
	States     map[string]int        `json:"states"`
}

// NewReplayResults creates empty results for source
func NewReplayResults(source string) *ReplayResults {
	return &ReplayResults{
		Source:     source,
		Violations: make(map[string]int),
		States:     make(map[string]int),
	}
}

// AddDecision appends a decision row and updates the counters
func (r *ReplayResults) AddDecision(row DecisionRow) {
	r.Decisions = append(r.Decisions, row)
	r.Stats.Orders++
	r.States[row.State]++
	if row.Accepted {
		r.Stats.Accepted++
		return
	}
	r.Stats.Rejected++
	r.Violations[row.Violation]++
}

// ObserveTime widens the replay's time span to include ts
func (r *ReplayResults) ObserveTime(ts time.Time) {
	if r.Start.IsZero() || ts.Before(r.Start) {
		r.Start = ts
	}
	if ts.After(r.End) {
		r.End = ts
	}
}

// AcceptanceRate returns accepted orders over evaluated orders
func (r *ReplayResults) AcceptanceRate() float64 {
	if r.Stats.Orders == 0 {
		return 0
	}
	return float64(r.Stats.Accepted) / float64(r.Stats.Orders)
}
