package main

import (
	"flag"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/cmd/common"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/data"
)

// ReplayFlags holds the command line flags of the replay command
type ReplayFlags struct {
	*common.CommonFlags

	// Input
	DataFile  *string
	Synthetic *int
	Seed      *int64
	Spikes    *int
	Symbols   *string
	Period    *string
	Strict    *bool

	// Orders
	OrderQty   *float64
	NoFills    *bool
	CloseEvery *int
	Equity     *float64

	// Output
	OutputDir   *string
	XLSXFile    *string
	CSVFile     *string
	JSONFile    *string
	ConsoleOnly *bool

	// Monitoring
	Serve      *bool
	StaleAfter *time.Duration
}

// NewReplayFlags registers the replay flags on fs
func NewReplayFlags(fs *flag.FlagSet) *ReplayFlags {
	return &ReplayFlags{
		CommonFlags: common.RegisterCommonFlags(fs),

		DataFile:  fs.String("data", "", "Replay CSV (symbol,timestamp,price,volume,volatility,trade_cost[,stress,vol_regime,liquidity,predicted_cost,actual_cost])"),
		Synthetic: fs.Int("synthetic", 0, "Generate N synthetic ticks per symbol instead of reading -data"),
		Seed:      fs.Int64("seed", 1, "Seed for synthetic ticks"),
		Spikes:    fs.Int("spike-every", 0, "Inject a stress spike every N synthetic ticks (0 disables)"),
		Symbols:   fs.String("symbols", "", "Comma-separated symbols to replay (default: all, or BTCUSDT,ETHUSDT for synthetic)"),
		Period:    fs.String("period", "", "Trailing window to replay, e.g. 7d, 30d, 12h"),
		Strict:    fs.Bool("strict", false, "Fail on malformed rows instead of skipping them"),

		OrderQty:   fs.Float64("qty", 0.01, "Quantity of the sample order evaluated on every tick (0 disables orders)"),
		NoFills:    fs.Bool("no-fills", false, "Evaluate orders without booking accepted ones into the ledger"),
		CloseEvery: fs.Int("close-every", 0, "Flatten and clean up each position every N ticks of its symbol (0 disables)"),
		Equity:     fs.Float64("equity", 0, "Override the configured account equity"),

		OutputDir:   fs.String("out", "", "Output directory (default: results/<run>_<timestamp>)"),
		XLSXFile:    fs.String("xlsx", "", "Workbook file name; empty skips the workbook"),
		CSVFile:     fs.String("csv", "", "Decision log CSV file name; empty skips the CSV"),
		JSONFile:    fs.String("json", "", "Summary JSON file name; empty skips the summary"),
		ConsoleOnly: fs.Bool("console-only", false, "Print tables only and write no files"),

		Serve:      fs.Bool("serve", false, "Keep serving /metrics and /health after the replay until interrupted"),
		StaleAfter: fs.Duration("stale-after", 0, "Report degraded health when no tick arrived for this long (0 keeps the default)"),
	}
}

// Validate checks flag combinations
func (f *ReplayFlags) Validate() error {
	v := common.NewFlagValidator()

	if *f.Synthetic == 0 {
		v.ValidateFile("data", *f.DataFile, true)
	} else if *f.DataFile != "" {
		v.AddError("use either -data or -synthetic, not both")
	}
	v.ValidateInt("synthetic", *f.Synthetic, 0, 1_000_000)
	v.ValidateInt("spike-every", *f.Spikes, 0, 1_000_000)
	v.ValidateInt("close-every", *f.CloseEvery, 0, 1_000_000)
	v.ValidateFloat("qty", *f.OrderQty, 0, 1e9)
	v.ValidateFloat("equity", *f.Equity, 0, 1e15)
	if *f.LogLevel != "" {
		v.ValidateChoice("log-level", *f.LogLevel, []string{"debug", "info", "warn", "error"})
	}
	if *f.Period != "" {
		if _, ok := data.ParseTrailingPeriod(*f.Period); !ok {
			v.AddError("invalid period format: " + *f.Period + " (use 7d, 30d, 12h)")
		}
	}
	if *f.StaleAfter < 0 {
		v.AddError("stale-after must not be negative")
	}
	return v.GetError()
}
