package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTool writes an executable shell script standing in for an external
// conversion tool and returns its path.
func WriteTool(t testing.TB, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write tool script %s: %v", name, err)
	}
	return path
}

// RequireEmptyDir fails the test when dir contains any regular file. It
// ignores subdirectories so stores that share a root with staging do not
// trip it.
func RequireEmptyDir(t testing.TB, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read dir %s: %v", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Fatalf("expected no files in %s, found %s", dir, entry.Name())
		}
	}
}
