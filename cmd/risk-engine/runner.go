package main

import (
	"context"
	"errors"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/engine"
	engerrors "github.com/ducminhle1904/adaptive-risk-engine/internal/errors"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/data"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/reporting"
	"github.com/shopspring/decimal"
)

// RunOptions controls how a replay exercises the engine
type RunOptions struct {
	OrderQty   decimal.Decimal // zero disables order evaluation
	Fills      bool
	CloseEvery int
}

// Runner replays records through an engine, playing the part of both the
// regime detector and the execution component.
type Runner struct {
	engine     *engine.Engine
	classifier *regime.StaticClassifier
	log        *logger.Logger
	opts       RunOptions

	ticksBySymbol map[string]int
}

// NewRunner creates a runner. The classifier must be the one the engine reads.
func NewRunner(e *engine.Engine, classifier *regime.StaticClassifier, log *logger.Logger, opts RunOptions) *Runner {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{
		engine:        e,
		classifier:    classifier,
		log:           log,
		opts:          opts,
		ticksBySymbol: make(map[string]int),
	}
}

// Run replays records in order and returns the collected results. It stops
// early with ctx.Err() when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, source string, records []data.ReplayRecord) (*reporting.ReplayResults, error) {
	results := reporting.NewReplayResults(source)

	for i, rec := range records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				r.collect(results)
				return results, err
			}
		}
		r.step(rec, results)
	}

	r.collect(results)
	r.log.Infow("replay finished",
		"source", source,
		"ticks", results.Stats.Ticks,
		"orders", results.Stats.Orders,
		"accepted", results.Stats.Accepted,
		"invalid_samples", results.Stats.InvalidSamples)
	return results, nil
}

func (r *Runner) step(rec data.ReplayRecord, results *reporting.ReplayResults) {
	tick := rec.Tick
	if rec.Regime != nil {
		r.classifier.Set(tick.Symbol, *rec.Regime)
	}

	if err := r.engine.UpdateMarketData(tick); err != nil {
		if !engerrors.IsInvalidSample(err) {
			r.log.LogError("replay tick", err)
		}
		results.Stats.InvalidSamples++
		return
	}
	results.Stats.Ticks++
	results.ObserveTime(tick.Timestamp)
	r.ticksBySymbol[tick.Symbol]++

	if tick.Price.IsPositive() && r.opts.OrderQty.IsPositive() {
		ev := r.engine.EvaluateOrder(tick.Symbol, r.opts.OrderQty, tick.Price)
		results.AddDecision(reporting.NewDecisionRow(tick.Price, ev))
		if ev.Admission.Accepted && r.opts.Fills {
			if err := r.engine.AddPosition(tick.Symbol, ev.AdjustedQuantity, tick.Price); err != nil {
				r.log.LogError("book fill", err)
			} else {
				results.Stats.Fills++
			}
		}
	}

	if r.opts.CloseEvery > 0 && r.ticksBySymbol[tick.Symbol]%r.opts.CloseEvery == 0 {
		r.flatten(tick.Symbol, tick.Price)
	}

	if rec.Outcome != nil {
		o := rec.Outcome
		if _, err := r.engine.RecordOutcome(o.Symbol, o.PredictedCost, o.ActualCost, o.Timestamp); err != nil {
			results.Stats.InvalidSamples++
			return
		}
		results.Stats.Outcomes++
	}
}

// flatten closes the symbol's position at price and removes the flat entry.
func (r *Runner) flatten(symbol string, price decimal.Decimal) {
	pos := r.engine.Snapshot(symbol).Position
	if pos == nil || pos.IsFlat() || !price.IsPositive() {
		return
	}

	if err := r.engine.AddPosition(symbol, pos.PositionSize.Neg(), price); err != nil {
		r.log.LogError("flatten position", err)
		return
	}
	removed, err := r.engine.RemoveFlatPosition(symbol)
	if err != nil && !errors.Is(err, engerrors.ErrUnknownSymbol) {
		r.log.LogError("remove flat position", err)
		return
	}
	if removed {
		r.log.Trade("Flattened %s at %s", symbol, price.String())
	}
}

func (r *Runner) collect(results *reporting.ReplayResults) {
	results.Symbols = results.Symbols[:0]
	for _, s := range r.engine.Symbols() {
		results.Symbols = append(results.Symbols, r.engine.Snapshot(s))
	}
	results.Breakers = r.engine.BreakerStatus()
	results.Positions = r.engine.Positions()
	results.Portfolio = r.engine.CalculatePortfolioRisk()
}
