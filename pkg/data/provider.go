package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
)

// DataManager combines loading, filtering and validation of replay data
type DataManager struct {
	provider TickProvider
	filter   TickFilter
}

// NewDataManager creates a new data manager with default components
func NewDataManager(log *logger.Logger) *DataManager {
	return NewDataManagerWithProvider(NewCSVProvider(log))
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider TickProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultTickFilter(),
	}
}

// LoadOptions selects which part of a replay file is used
type LoadOptions struct {
	Symbols []string
	Start   time.Time
	End     time.Time
	Period  time.Duration // trailing window; applied after the date range
}

// Load reads, filters and validates a replay file
func (dm *DataManager) Load(source string, opts LoadOptions) ([]ReplayRecord, error) {
	records, err := dm.provider.LoadTicks(source)
	if err != nil {
		return nil, err
	}

	records = dm.filter.FilterBySymbols(records, opts.Symbols)
	records = dm.filter.FilterByDateRange(records, opts.Start, opts.End)
	records = dm.filter.FilterByPeriod(records, opts.Period)

	if err := dm.provider.ValidateTicks(records); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return records, nil
}

// GetProvider returns the underlying data provider
func (dm *DataManager) GetProvider() TickProvider {
	return dm.provider
}

// GetFilter returns the data filter
func (dm *DataManager) GetFilter() TickFilter {
	return dm.filter
}

// ParseTrailingPeriod parses period strings like "7d", "30d", "180d" or a Go duration
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		nStr := strings.TrimSuffix(s, "d")
		if nStr == "" {
			return 0, false
		}
		n, err := strconv.Atoi(nStr)
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	// allow raw durations too (e.g., 168h)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
