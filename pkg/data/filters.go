package data

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTickFilter implements TickFilter for common filtering operations
type DefaultTickFilter struct{}

// NewDefaultTickFilter creates a new default tick filter
func NewDefaultTickFilter() *DefaultTickFilter {
	return &DefaultTickFilter{}
}

// FilterByPeriod keeps the records within period of the latest timestamp
func (f *DefaultTickFilter) FilterByPeriod(records []ReplayRecord, period time.Duration) []ReplayRecord {
	if period <= 0 || len(records) == 0 {
		return records
	}

	latest := records[0].Tick.Timestamp
	for _, r := range records[1:] {
		if r.Tick.Timestamp.After(latest) {
			latest = r.Tick.Timestamp
		}
	}
	return f.FilterByDateRange(records, latest.Add(-period), latest)
}

// FilterByDateRange keeps records with start <= timestamp <= end. A zero
// bound is open.
func (f *DefaultTickFilter) FilterByDateRange(records []ReplayRecord, start, end time.Time) []ReplayRecord {
	var filtered []ReplayRecord
	for _, r := range records {
		ts := r.Tick.Timestamp
		if !start.IsZero() && ts.Before(start) {
			continue
		}
		if !end.IsZero() && ts.After(end) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// FilterBySymbols keeps records for the given symbols; an empty list keeps all
func (f *DefaultTickFilter) FilterBySymbols(records []ReplayRecord, symbols []string) []ReplayRecord {
	if len(symbols) == 0 {
		return records
	}
	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[strings.ToUpper(strings.TrimSpace(s))] = true
	}

	var filtered []ReplayRecord
	for _, r := range records {
		if want[r.Tick.Symbol] {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ValidateTimeSequence ensures each symbol's ticks are in chronological order.
// Equal timestamps are allowed; ticks of different symbols may interleave.
func (f *DefaultTickFilter) ValidateTimeSequence(records []ReplayRecord) error {
	last := make(map[string]time.Time)
	for i, r := range records {
		prev, seen := last[r.Tick.Symbol]
		if seen && r.Tick.Timestamp.Before(prev) {
			return fmt.Errorf("%s ticks not in chronological order at index %d: %s comes after %s",
				r.Tick.Symbol, i, r.Tick.Timestamp.Format(time.RFC3339), prev.Format(time.RFC3339))
		}
		last[r.Tick.Symbol] = r.Tick.Timestamp
	}
	return nil
}
