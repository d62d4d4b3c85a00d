// Package staging materializes source streams as temporary files for
// external tools that require random-access input, and guarantees their
// removal on every exit path of a filter invocation.
package staging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"shelfmark/internal/logging"
)

// File is a scoped staging copy of one source stream. It belongs to a single
// filter invocation and never outlives it.
type File struct {
	path string
	size int64

	once sync.Once
}

// Stage copies the entire source stream into a uniquely named file under
// dir, then closes both the destination handle and the exhausted source.
// The source is closed even when staging fails.
func Stage(dir, pattern string, source io.ReadCloser) (*File, error) {
	defer func() {
		_ = source.Close()
	}()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	size, err := io.Copy(tmp, source)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("copy source to staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("close staging file: %w", err)
	}

	return &File{path: tmp.Name(), size: size}, nil
}

// Path returns the staging file location.
func (f *File) Path() string { return f.path }

// Size returns the number of bytes staged.
func (f *File) Size() int64 { return f.size }

// Cleanup removes the staging file. It is idempotent and never fails the
// caller: a deletion error is logged as a warning because the primary
// operation may already have succeeded.
func (f *File) Cleanup(logger *slog.Logger) {
	f.once.Do(func() {
		if logger == nil {
			logger = logging.NewNop()
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to delete staging file",
				logging.String("path", f.path),
				logging.Error(err),
			)
		}
	})
}
