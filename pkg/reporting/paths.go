package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	root string
	now  func() time.Time
}

// NewDefaultPathManager creates a path manager rooted at "results"
func NewDefaultPathManager() *DefaultPathManager {
	return &DefaultPathManager{root: "results", now: time.Now}
}

// GetDefaultOutputDir returns results/<run>_<timestamp>. The run name is
// lowercased with path separators and spaces replaced.
func (p *DefaultPathManager) GetDefaultOutputDir(runName string) string {
	name := strings.ToLower(strings.TrimSpace(runName))
	name = strings.NewReplacer("/", "-", "\\", "-", " ", "_").Replace(name)
	if name == "" {
		name = "replay"
	}
	return filepath.Join(p.root, name+"_"+p.now().Format("20060102_150405"))
}

// EnsureDirectoryExists creates the parent directory of path
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// DefaultOutputDir is the package-level convenience function
func DefaultOutputDir(runName string) string {
	return NewDefaultPathManager().GetDefaultOutputDir(runName)
}
