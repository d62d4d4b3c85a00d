package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelfmark/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	stagingDir string
	storeDir   string
	logDir     string
}

// setupCLITestEnv writes a config file backed by temp directories and stub
// conversion tools, then returns paths for assertions.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	pdftotext := testsupport.WriteTool(t, "pdftotext", `cat "$4"`)
	pdftoppm := testsupport.WriteTool(t, "pdftoppm", `for last; do :; done
printf 'png-bytes' > "$last-1.png"`)
	return setupCLITestEnvWithTools(t, pdftotext, pdftoppm)
}

func setupCLITestEnvWithTools(t *testing.T, pdftotext, pdftoppm string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.toml"),
		stagingDir: filepath.Join(base, "staging"),
		storeDir:   filepath.Join(base, "store"),
		logDir:     filepath.Join(base, "logs"),
	}

	content := fmt.Sprintf(`[paths]
staging_dir = %q
store_dir = %q
log_dir = %q

[tools]
pdftotext = %q
pdftoppm = %q
timeout_seconds = 30

[logging]
format = "console"
level = "error"
`, env.stagingDir, env.storeDir, env.logDir, pdftotext, pdftoppm)

	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func writeSourcePDF(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thesis.pdf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}
