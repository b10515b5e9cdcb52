package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/cmd/common"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/config"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/engine"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/regime"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/data"
	"github.com/ducminhle1904/adaptive-risk-engine/pkg/reporting"
	"github.com/shopspring/decimal"
)

const AppName = "risk-engine"

var defaultSyntheticSymbols = []string{"BTCUSDT", "ETHUSDT"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := NewReplayFlags(fs)
	usage := common.NewUsageFormatter(AppName, "replay market ticks through the adaptive risk engine").
		AddExample(AppName+" -data data/ticks.csv -xlsx report.xlsx", "Replay a tick file and write a workbook").
		AddExample(AppName+" -synthetic 500 -spike-every 100 -console-only", "Replay synthetic ticks with stress spikes").
		AddExample(AppName+" -data data/ticks.csv -serve", "Replay, then keep serving /metrics and /health")

	if err := fs.Parse(args); err != nil {
		usage.PrintUsage(stdout, fs)
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *flags.Version {
		common.PrintVersion(stdout, AppName)
		return nil
	}
	if *flags.Help {
		usage.PrintUsage(stdout, fs)
		return nil
	}
	if err := flags.Validate(); err != nil {
		return err
	}

	bootstrap, err := logger.NewLogger(AppName, loggerOptions(flags, "info"))
	if err != nil {
		return err
	}
	if err := common.LoadEnvFile(*flags.EnvFile, bootstrap); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if *flags.LogDir != "" {
		cfg.LogDir = *flags.LogDir
	}

	log, err := logger.NewLogger(AppName, loggerOptions(flags, cfg.LogLevel, cfg.LogDir))
	if err != nil {
		return err
	}
	defer log.Close()

	if *flags.Equity > 0 {
		cfg.Risk.TotalEquity = decimal.NewFromFloat(*flags.Equity)
	}

	source, records, err := loadRecords(flags, log)
	if err != nil {
		return err
	}
	log.Infow("replay loaded", "source", source, "records", len(records))

	classifier := regime.NewStaticClassifier(regime.NormalRegime())
	eng, err := engine.New(cfg, classifier, log)
	if err != nil {
		return err
	}
	if *flags.StaleAfter > 0 {
		eng.Health().SetStaleAfter(*flags.StaleAfter)
	}

	var servers *monitoringServers
	if *flags.Serve {
		servers = newMonitoringServers(log, eng.Health(), cfg.Monitoring.HealthPort, cfg.Monitoring.PrometheusPort)
		if err := servers.Start(); err != nil {
			return err
		}
	}

	runner := NewRunner(eng, classifier, log, RunOptions{
		OrderQty:   decimal.NewFromFloat(*flags.OrderQty),
		Fills:      !*flags.NoFills,
		CloseEvery: *flags.CloseEvery,
	})
	results, runErr := runner.Run(ctx, source, records)

	reporter := reporting.NewReporterTo(stdout)
	reporter.OutputResults(results)
	if err := writeReports(reporter, flags, results, log); err != nil {
		return err
	}
	if runErr != nil {
		log.Warning("Replay interrupted: %v", runErr)
	}

	if servers == nil {
		return nil
	}
	if runErr == nil {
		log.Status("Replay done; serving /health on :%d and /metrics on :%d until interrupted",
			cfg.Monitoring.HealthPort, cfg.Monitoring.PrometheusPort)
		<-ctx.Done()
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return servers.Shutdown(shutdownCtx)
}

func loggerOptions(flags *ReplayFlags, level string, dir ...string) logger.Options {
	if *flags.LogLevel != "" {
		level = *flags.LogLevel
	}
	opts := logger.Options{Level: level, JSON: *flags.JSONLogs, NoColor: *flags.NoColors}
	if len(dir) > 0 {
		opts.Dir = dir[0]
	}
	return opts
}

func loadRecords(flags *ReplayFlags, log *logger.Logger) (string, []data.ReplayRecord, error) {
	symbols := common.SplitList(*flags.Symbols)

	var period time.Duration
	if *flags.Period != "" {
		period, _ = data.ParseTrailingPeriod(*flags.Period)
	}

	if *flags.Synthetic > 0 {
		if len(symbols) == 0 {
			symbols = defaultSyntheticSymbols
		}
		records := data.GenerateSyntheticTicks(data.SyntheticConfig{
			Symbols:    symbols,
			Ticks:      *flags.Synthetic,
			Seed:       *flags.Seed,
			SpikeEvery: *flags.Spikes,
		})
		records = data.NewDefaultTickFilter().FilterByPeriod(records, period)
		return fmt.Sprintf("synthetic(seed=%d)", *flags.Seed), records, nil
	}

	dm := data.NewDataManager(log)
	if *flags.Strict {
		dm = data.NewDataManagerWithProvider(data.NewStrictCSVProvider(log))
	}
	records, err := dm.Load(*flags.DataFile, data.LoadOptions{Symbols: symbols, Period: period})
	if err != nil {
		return "", nil, fmt.Errorf("failed to load data: %w", err)
	}
	return *flags.DataFile, records, nil
}

func writeReports(reporter *reporting.DefaultReporter, flags *ReplayFlags, results *reporting.ReplayResults, log *logger.Logger) error {
	if *flags.ConsoleOnly {
		return nil
	}

	outputs := []struct {
		name  string
		write func(*reporting.ReplayResults, string) error
	}{
		{*flags.XLSXFile, reporter.WriteDecisionsXLSX},
		{*flags.CSVFile, reporter.WriteDecisionsCSV},
		{*flags.JSONFile, reporter.WriteSummaryJSON},
	}

	dir := *flags.OutputDir
	for _, out := range outputs {
		if out.name == "" {
			continue
		}
		if dir == "" {
			dir = reporter.GetDefaultOutputDir(filepath.Base(results.Source))
		}
		path := out.name
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := reporter.EnsureDirectoryExists(path); err != nil {
			return err
		}
		if err := out.write(results, path); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		log.Status("Report written: %s", path)
	}
	return nil
}
