package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultConsoleReporter renders replay results as tables
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w
func NewConsoleReporterTo(w io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: w}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// OutputResults prints the run summary, portfolio, symbols and breakers
func (r *DefaultConsoleReporter) OutputResults(results *ReplayResults) {
	r.printSummary(results)
	r.printPortfolio(results)
	r.printSymbols(results)
	r.printPositions(results)
	r.printBreakers(results)
}

func (r *DefaultConsoleReporter) printSummary(results *ReplayResults) {
	t := r.newTable("REPLAY SUMMARY")
	t.AppendRows([]table.Row{
		{"📁 Source", results.Source},
		{"⏰ Span", fmt.Sprintf("%s → %s", results.Start.Format("2006-01-02 15:04:05"), results.End.Format("2006-01-02 15:04:05"))},
		{"📊 Ticks", results.Stats.Ticks},
		{"⚠️ Invalid samples", results.Stats.InvalidSamples},
		{"🔄 Outcomes", results.Stats.Outcomes},
		{"🧾 Orders", results.Stats.Orders},
		{"✅ Accepted", fmt.Sprintf("%d (%.1f%%)", results.Stats.Accepted, results.AcceptanceRate()*100)},
		{"❌ Rejected", results.Stats.Rejected},
		{"💰 Fills", results.Stats.Fills},
	})
	for _, k := range sortedKeys(results.States) {
		t.AppendRow(table.Row{"🎯 State " + k, results.States[k]})
	}
	for _, k := range sortedKeys(results.Violations) {
		t.AppendRow(table.Row{"🚫 Violation " + k, results.Violations[k]})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 22, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) printPortfolio(results *ReplayResults) {
	p := results.Portfolio
	t := r.newTable("PORTFOLIO RISK")
	t.AppendRows([]table.Row{
		{"Total notional", p.TotalNotional.StringFixed(2)},
		{"Unrealized P&L", p.TotalUnrealizedPnL.StringFixed(2)},
		{"Equity", p.TotalEquity.StringFixed(2)},
		{"Leverage", fmt.Sprintf("%.3fx", p.Leverage)},
		{"Largest position", fmt.Sprintf("%s %s", p.LargestSymbol, p.LargestNotional.StringFixed(2))},
		{"Worst drawdown", fmt.Sprintf("%.2f%% %s", p.WorstDrawdown*100, p.WorstDrawdownSymbol)},
		{"VaR (95%)", p.ValueAtRisk.StringFixed(2)},
		{"Positions", p.PositionCount},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) printSymbols(results *ReplayResults) {
	if len(results.Symbols) == 0 {
		return
	}
	t := r.newTable("SYMBOLS")
	t.AppendHeader(table.Row{"Symbol", "Samples", "Vol ratio", "Baseline", "Vol scale", "Size scale", "Err mean", "Err std", "Breaker"})
	for _, s := range results.Symbols {
		t.AppendRow(table.Row{
			s.Symbol,
			s.Volatility.Samples,
			fmt.Sprintf("%.3f", s.Volatility.VolRatio),
			fmt.Sprintf("%.3f", s.Volatility.NormalBaseline),
			fmt.Sprintf("%.3f", s.Feedback.Adjustment.VolScale),
			fmt.Sprintf("%.3f", s.Feedback.Adjustment.SizeScale),
			fmt.Sprintf("%+.3f", s.Feedback.MeanError),
			fmt.Sprintf("%.3f", s.Feedback.StdError),
			s.Breaker.State.String(),
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) printPositions(results *ReplayResults) {
	if len(results.Positions) == 0 {
		return
	}
	t := r.newTable("POSITIONS")
	t.AppendHeader(table.Row{"Symbol", "Size", "Avg entry", "Mark", "Notional", "Unrealized", "Max DD"})
	for _, p := range results.Positions {
		t.AppendRow(table.Row{
			p.Symbol,
			p.PositionSize.String(),
			p.AverageEntry.StringFixed(2),
			p.MarkPrice.StringFixed(2),
			p.NotionalValue.StringFixed(2),
			p.UnrealizedPnL.StringFixed(2),
			fmt.Sprintf("%.2f%%", p.MaxDrawdown*100),
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

func (r *DefaultConsoleReporter) printBreakers(results *ReplayResults) {
	if len(results.Breakers) == 0 {
		return
	}
	t := r.newTable("CIRCUIT BREAKERS")
	t.AppendHeader(table.Row{"Symbol", "State", "Reason", "Stress", "Vol ratio", "Trips"})
	for _, b := range results.Breakers {
		t.AppendRow(table.Row{
			b.Symbol,
			b.State.String(),
			b.Reason.String(),
			fmt.Sprintf("%.2f", b.StressLevel),
			fmt.Sprintf("%.3f", b.VolRatio),
			b.TripCount,
		})
	}
	t.Render()
	fmt.Fprintln(r.out)
}

// PrintConfig prints configuration to console
func (r *DefaultConsoleReporter) PrintConfig(config interface{}) {
	fmt.Fprintf(r.out, "Configuration: %+v\n", config)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
