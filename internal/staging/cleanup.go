package staging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shelfmark/internal/logging"
)

// CleanStaleResult contains the outcome of a stale staging sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes staging files older than maxAge. Filter invocations
// delete their own staging files; this sweep reclaims leftovers from runs
// that were killed before their cleanup step executed.
func CleanStale(stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logger.Warn("failed to remove stale staging file",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		logger.Info("removed stale staging file",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
		)
	}

	return result
}
