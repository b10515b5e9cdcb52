package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// FormatSummary renders the run summary, positions and portfolio as indented JSON
func (f *DefaultJSONFormatter) FormatSummary(results *ReplayResults) ([]byte, error) {
	return json.MarshalIndent(results, "", "  ")
}

// WriteSummaryJSON writes the run summary to path
func (f *DefaultJSONFormatter) WriteSummaryJSON(results *ReplayResults, path string) error {
	data, err := f.FormatSummary(results)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// WriteSummaryJSON is the package-level convenience wrapper
func WriteSummaryJSON(results *ReplayResults, path string) error {
	return NewDefaultJSONFormatter().WriteSummaryJSON(results, path)
}
