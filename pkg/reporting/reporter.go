package reporting

import "io"

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	json    *DefaultJSONFormatter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a reporter printing to stdout
func NewDefaultReporter() *DefaultReporter {
	return newReporter(NewDefaultConsoleReporter())
}

// NewReporterTo creates a reporter printing tables to w
func NewReporterTo(w io.Writer) *DefaultReporter {
	return newReporter(NewConsoleReporterTo(w))
}

func newReporter(console *DefaultConsoleReporter) *DefaultReporter {
	return &DefaultReporter{
		console: console,
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		json:    NewDefaultJSONFormatter(),
		paths:   NewDefaultPathManager(),
	}
}

func (r *DefaultReporter) OutputResults(results *ReplayResults) {
	r.console.OutputResults(results)
}

func (r *DefaultReporter) PrintConfig(config interface{}) {
	r.console.PrintConfig(config)
}

func (r *DefaultReporter) WriteDecisionsCSV(results *ReplayResults, path string) error {
	return r.csv.WriteDecisionsCSV(results, path)
}

func (r *DefaultReporter) WriteDecisionsXLSX(results *ReplayResults, path string) error {
	return r.excel.WriteDecisionsXLSX(results, path)
}

func (r *DefaultReporter) WriteSummaryJSON(results *ReplayResults, path string) error {
	return r.json.WriteSummaryJSON(results, path)
}

func (r *DefaultReporter) GetDefaultOutputDir(runName string) string {
	return r.paths.GetDefaultOutputDir(runName)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

var _ Reporter = (*DefaultReporter)(nil)
