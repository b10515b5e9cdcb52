package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DecisionHeaders is the header row of the decisions CSV
var DecisionHeaders = []string{
	"Decision_ID",
	"Timestamp",
	"Symbol",
	"Price",
	"Requested_Qty",
	"Adjusted_Qty",
	"State",
	"Threshold",
	"Size_Multiplier",
	"Vol_Ratio",
	"Regime",
	"Breaker_Reason",
	"Accepted",
	"Violation",
	"Reason",
}

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteDecisionsCSV writes one row per evaluated order, followed by a summary
// row. A path ending in .xlsx is written as a workbook instead.
func (r *DefaultCSVReporter) WriteDecisionsCSV(results *ReplayResults, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteDecisionsXLSX(results, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(DecisionHeaders); err != nil {
		return err
	}

	for _, d := range results.Decisions {
		row := []string{
			d.DecisionID,
			d.Timestamp.Format("2006-01-02 15:04:05"),
			d.Symbol,
			d.Price.String(),
			d.RequestedQty.String(),
			d.AdjustedQty.String(),
			d.State,
			strconv.FormatFloat(d.Threshold, 'f', 6, 64),
			strconv.FormatFloat(d.SizeMultiplier, 'f', 6, 64),
			strconv.FormatFloat(d.VolRatio, 'f', 4, 64),
			d.Regime,
			d.BreakerReason,
			strconv.FormatBool(d.Accepted),
			d.Violation,
			d.Reason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	summary := fmt.Sprintf("SUMMARY: orders=%d; accepted=%d; rejected=%d; acceptance=%.2f%%; ticks=%d",
		results.Stats.Orders, results.Stats.Accepted, results.Stats.Rejected,
		results.AcceptanceRate()*100, results.Stats.Ticks)
	summaryRow := make([]string, len(DecisionHeaders))
	summaryRow[len(summaryRow)-1] = summary
	if err := w.Write(summaryRow); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

// WriteDecisionsCSV is the package-level convenience wrapper
func WriteDecisionsCSV(results *ReplayResults, path string) error {
	return NewDefaultCSVReporter().WriteDecisionsCSV(results, path)
}
