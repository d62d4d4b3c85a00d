// Package testsupport provides shared helpers for package tests: temp-dir
// backed configurations and fake external tools.
package testsupport

import (
	"testing"

	"path/filepath"

	"shelfmark/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.StoreDir = filepath.Join(base, "store")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Tools.TimeoutSeconds = 30

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithPdftotext sets the pdftotext tool path on the test config.
func WithPdftotext(path string) ConfigOption {
	return func(c *config.Config) {
		c.Tools.Pdftotext = path
	}
}

// WithPdftoppm sets the pdftoppm tool path on the test config.
func WithPdftoppm(path string) ConfigOption {
	return func(c *config.Config) {
		c.Tools.Pdftoppm = path
	}
}
