package common

import (
	"os"
	"strings"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/joho/godotenv"
)

// LoadEnvFile loads environment variables from path. A missing file is not
// an error; the process environment is used as is.
func LoadEnvFile(path string, log *logger.Logger) error {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Debug("Environment file %s not found, using system environment", path)
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		log.Warning("Could not load environment file %s: %v", path, err)
		return err
	}

	log.Debug("Environment loaded from %s", path)
	return nil
}

// SplitList splits a comma-separated flag value, dropping blanks
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
