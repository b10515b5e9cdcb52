package reporting

import (
	"github.com/xuri/excelize/v2"
)

// Package reporting renders replay results to the console and to files

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputResults(results *ReplayResults)
	PrintConfig(config interface{})
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteDecisionsCSV(results *ReplayResults, path string) error
	WriteDecisionsXLSX(results *ReplayResults, path string) error
	WriteSummaryJSON(results *ReplayResults, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(runName string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	DecimalStyle  int
	BaseStyle     int
	RejectedStyle int
	TrippedStyle  int
	SummaryStyle  int
}

// SheetWriter is implemented by each workbook sheet
type SheetWriter interface {
	Name() string
	Write(fx *excelize.File, results *ReplayResults, styles ExcelStyles) error
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
}
