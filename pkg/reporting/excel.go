package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/safety"
	"github.com/xuri/excelize/v2"
)

// Sheet names in the replay workbook
const (
	DecisionsSheet = "Decisions"
	PositionsSheet = "Positions"
	SymbolsSheet   = "Symbols"
	SummarySheet   = "Summary"
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "E0E0E0", Style: 1},
	{Type: "right", Color: "E0E0E0", Style: 1},
	{Type: "bottom", Color: "E0E0E0", Style: 1},
}

// DefaultExcelReporter writes the replay workbook
type DefaultExcelReporter struct {
	sheets []SheetWriter
}

// NewDefaultExcelReporter creates an Excel reporter with the standard sheets
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{
		sheets: []SheetWriter{decisionsSheet{}, positionsSheet{}, symbolsSheet{}, summarySheet{}},
	}
}

// WriteDecisionsXLSX writes every sheet to path
func (r *DefaultExcelReporter) WriteDecisionsXLSX(results *ReplayResults, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	for i, s := range r.sheets {
		if i == 0 {
			if err := fx.SetSheetName(fx.GetSheetName(0), s.Name()); err != nil {
				return err
			}
			continue
		}
		if _, err := fx.NewSheet(s.Name()); err != nil {
			return err
		}
	}

	styles, err := createExcelStyles(fx)
	if err != nil {
		return err
	}

	for _, s := range r.sheets {
		if err := s.Write(fx, results, styles); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", s.Name(), err)
		}
	}
	return fx.SaveAs(path)
}

// WriteDecisionsXLSX is the package-level convenience wrapper
func WriteDecisionsXLSX(results *ReplayResults, path string) error {
	return NewDefaultExcelReporter().WriteDecisionsXLSX(results, path)
}

func createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	// Dark slate header with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10,
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    thinBorder,
	})
	if err != nil {
		return styles, err
	}

	decimalFmt := "0.0000"
	styles.DecimalStyle, err = fx.NewStyle(&excelize.Style{
		CustomNumFmt: &decimalFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right"},
		Border:       thinBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
		Border:    thinBorder,
	})
	if err != nil {
		return styles, err
	}

	// Light red for rejected orders
	styles.RejectedStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "9C0006"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
		Border: thinBorder,
	})
	if err != nil {
		return styles, err
	}

	// Amber for decisions made with the breaker tripped
	styles.TrippedStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Color: "9C5700"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFEB9C"}, Pattern: 1},
		Border: thinBorder,
	})
	if err != nil {
		return styles, err
	}

	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	return styles, err
}

func writeHeader(fx *excelize.File, sheet string, row int, headers []string, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), row)
	first, _ := excelize.CoordinatesToCellName(1, row)
	return fx.SetCellStyle(sheet, first, last, style)
}

func writeRow(fx *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return fx.SetSheetRow(sheet, cell, &values)
}

func styleColumn(fx *excelize.File, sheet, col string, from, to, style int) error {
	if to < from {
		return nil
	}
	return fx.SetCellStyle(sheet, fmt.Sprintf("%s%d", col, from), fmt.Sprintf("%s%d", col, to), style)
}

type decisionsSheet struct{}

func (decisionsSheet) Name() string { return DecisionsSheet }

func (decisionsSheet) Write(fx *excelize.File, results *ReplayResults, styles ExcelStyles) error {
	sheet := DecisionsSheet
	fx.SetColWidth(sheet, "A", "A", 20) // Timestamp
	fx.SetColWidth(sheet, "B", "B", 12) // Symbol
	fx.SetColWidth(sheet, "C", "F", 12)
	fx.SetColWidth(sheet, "G", "I", 11)
	fx.SetColWidth(sheet, "J", "J", 22) // Regime
	fx.SetColWidth(sheet, "K", "K", 16)
	fx.SetColWidth(sheet, "L", "L", 10)
	fx.SetColWidth(sheet, "M", "M", 60) // Reason

	headers := []string{"Timestamp", "Symbol", "Price", "Requested", "Adjusted", "State",
		"Threshold", "Size Mult", "Vol Ratio", "Regime", "Breaker", "Accepted", "Reason"}
	if err := writeHeader(fx, sheet, 1, headers, styles.HeaderStyle); err != nil {
		return err
	}
	fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	row := 2
	for _, d := range results.Decisions {
		price, _ := d.Price.Float64()
		requested, _ := d.RequestedQty.Float64()
		adjusted, _ := d.AdjustedQty.Float64()
		accepted := "YES"
		if !d.Accepted {
			accepted = "NO"
		}
		values := []interface{}{
			d.Timestamp.Format("2006-01-02 15:04:05"), d.Symbol, price, requested, adjusted, d.State,
			d.Threshold, d.SizeMultiplier, d.VolRatio, d.Regime, d.BreakerReason, accepted, d.Reason,
		}
		if err := writeRow(fx, sheet, row, values); err != nil {
			return err
		}

		rowStyle := styles.BaseStyle
		switch {
		case d.BreakerReason != "":
			rowStyle = styles.TrippedStyle
		case !d.Accepted:
			rowStyle = styles.RejectedStyle
		}
		fx.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), rowStyle)
		fx.SetCellStyle(sheet, fmt.Sprintf("F%d", row), fmt.Sprintf("F%d", row), rowStyle)
		fx.SetCellStyle(sheet, fmt.Sprintf("J%d", row), fmt.Sprintf("M%d", row), rowStyle)
		row++
	}

	last := row - 1
	styleColumn(fx, sheet, "C", 2, last, styles.CurrencyStyle)
	styleColumn(fx, sheet, "D", 2, last, styles.DecimalStyle)
	styleColumn(fx, sheet, "E", 2, last, styles.DecimalStyle)
	styleColumn(fx, sheet, "G", 2, last, styles.PercentStyle)
	styleColumn(fx, sheet, "H", 2, last, styles.DecimalStyle)
	styleColumn(fx, sheet, "I", 2, last, styles.DecimalStyle)

	if last >= 2 {
		return fx.AutoFilter(sheet, fmt.Sprintf("A1:M%d", last), []excelize.AutoFilterOptions{})
	}
	return nil
}

type positionsSheet struct{}

func (positionsSheet) Name() string { return PositionsSheet }

func (positionsSheet) Write(fx *excelize.File, results *ReplayResults, styles ExcelStyles) error {
	sheet := PositionsSheet
	fx.SetColWidth(sheet, "A", "A", 12)
	fx.SetColWidth(sheet, "B", "H", 15)

	headers := []string{"Symbol", "Size", "Avg Entry", "Mark", "Notional", "Market Value", "Unrealized P&L", "Max Drawdown"}
	if err := writeHeader(fx, sheet, 1, headers, styles.HeaderStyle); err != nil {
		return err
	}

	row := 2
	for _, p := range results.Positions {
		size, _ := p.PositionSize.Float64()
		entry, _ := p.AverageEntry.Float64()
		mark, _ := p.MarkPrice.Float64()
		notional, _ := p.NotionalValue.Float64()
		market, _ := p.MarketValue.Float64()
		pnl, _ := p.UnrealizedPnL.Float64()
		values := []interface{}{p.Symbol, size, entry, mark, notional, market, pnl, p.MaxDrawdown}
		if err := writeRow(fx, sheet, row, values); err != nil {
			return err
		}
		row++
	}

	last := row - 1
	styleColumn(fx, sheet, "A", 2, last, styles.BaseStyle)
	styleColumn(fx, sheet, "B", 2, last, styles.DecimalStyle)
	for _, col := range []string{"C", "D", "E", "F", "G"} {
		styleColumn(fx, sheet, col, 2, last, styles.CurrencyStyle)
	}
	styleColumn(fx, sheet, "H", 2, last, styles.PercentStyle)
	return nil
}

type symbolsSheet struct{}

func (symbolsSheet) Name() string { return SymbolsSheet }

func (symbolsSheet) Write(fx *excelize.File, results *ReplayResults, styles ExcelStyles) error {
	sheet := SymbolsSheet
	fx.SetColWidth(sheet, "A", "A", 12)
	fx.SetColWidth(sheet, "B", "K", 13)

	headers := []string{"Symbol", "Samples", "Latest Vol", "Vol Ratio", "Baseline", "Vol Scale",
		"Size Scale", "Err Mean", "Err Std", "Breaker", "Trips"}
	if err := writeHeader(fx, sheet, 1, headers, styles.HeaderStyle); err != nil {
		return err
	}

	row := 2
	for _, s := range results.Symbols {
		values := []interface{}{
			s.Symbol, s.Volatility.Samples, s.Volatility.LatestVol, s.Volatility.VolRatio, s.Volatility.NormalBaseline,
			s.Feedback.Adjustment.VolScale, s.Feedback.Adjustment.SizeScale, s.Feedback.MeanError, s.Feedback.StdError,
			s.Breaker.State.String(), s.Breaker.TripCount,
		}
		if err := writeRow(fx, sheet, row, values); err != nil {
			return err
		}
		style := styles.BaseStyle
		if s.Breaker.State == safety.StateTripped {
			style = styles.TrippedStyle
		}
		fx.SetCellStyle(sheet, fmt.Sprintf("J%d", row), fmt.Sprintf("J%d", row), style)
		row++
	}

	last := row - 1
	for _, col := range []string{"C", "D", "E", "F", "G", "H", "I"} {
		styleColumn(fx, sheet, col, 2, last, styles.DecimalStyle)
	}
	return nil
}

type summarySheet struct{}

func (summarySheet) Name() string { return SummarySheet }

func (summarySheet) Write(fx *excelize.File, results *ReplayResults, styles ExcelStyles) error {
	sheet := SummarySheet
	fx.SetColWidth(sheet, "A", "A", 28)
	fx.SetColWidth(sheet, "B", "B", 24)

	fx.SetCellValue(sheet, "A1", "📊 REPLAY SUMMARY")
	fx.MergeCell(sheet, "A1", "B1")
	fx.SetCellStyle(sheet, "A1", "B1", styles.SummaryStyle)

	p := results.Portfolio
	notional, _ := p.TotalNotional.Float64()
	pnl, _ := p.TotalUnrealizedPnL.Float64()
	equity, _ := p.TotalEquity.Float64()
	valueAtRisk, _ := p.ValueAtRisk.Float64()

	rows := [][]interface{}{
		{"Source", results.Source},
		{"Start", results.Start.Format("2006-01-02 15:04:05")},
		{"End", results.End.Format("2006-01-02 15:04:05")},
		{"Ticks", results.Stats.Ticks},
		{"Invalid samples", results.Stats.InvalidSamples},
		{"Outcomes", results.Stats.Outcomes},
		{"Orders", results.Stats.Orders},
		{"Accepted", results.Stats.Accepted},
		{"Rejected", results.Stats.Rejected},
		{"Acceptance rate", results.AcceptanceRate()},
		{"Fills", results.Stats.Fills},
		{"Total notional", notional},
		{"Unrealized P&L", pnl},
		{"Equity", equity},
		{"Leverage", p.Leverage},
		{"Worst drawdown", p.WorstDrawdown},
		{"VaR (95%)", valueAtRisk},
	}
	for _, k := range sortedKeys(results.Violations) {
		rows = append(rows, []interface{}{"Rejected: " + k, results.Violations[k]})
	}

	for i, values := range rows {
		r := i + 3
		if err := writeRow(fx, sheet, r, values); err != nil {
			return err
		}
		style := styles.BaseStyle
		switch values[0] {
		case "Acceptance rate", "Worst drawdown":
			style = styles.PercentStyle
		case "Total notional", "Unrealized P&L", "Equity", "VaR (95%)":
			style = styles.CurrencyStyle
		case "Leverage":
			style = styles.DecimalStyle
		}
		fx.SetCellStyle(sheet, fmt.Sprintf("A%d", r), fmt.Sprintf("A%d", r), styles.BaseStyle)
		fx.SetCellStyle(sheet, fmt.Sprintf("B%d", r), fmt.Sprintf("B%d", r), style)
	}
	return nil
}
