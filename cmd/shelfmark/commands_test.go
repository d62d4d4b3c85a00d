package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestFilterListShowsRegisteredFilters(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "filter", "list")
	if err != nil {
		t.Fatalf("filter list: %v", err)
	}
	requireContains(t, out, "pdftext")
	requireContains(t, out, "pdfthumb")
	requireContains(t, out, "Text")
	requireContains(t, out, "Thumbnail")
}

func TestFilterRunWritesDerivativeToStdout(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSourcePDF(t, "extracted body text")

	out, _, err := runCLI(t, env.configPath, "filter", "run", "pdftext", source)
	if err != nil {
		t.Fatalf("filter run: %v", err)
	}
	if out != "extracted body text" {
		t.Fatalf("unexpected derivative output: %q", out)
	}
}

func TestFilterRunWritesOutputFile(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSourcePDF(t, "file-bound text")
	dest := filepath.Join(t.TempDir(), "thesis.txt")

	if _, _, err := runCLI(t, env.configPath, "filter", "run", "pdftext", source, "-o", dest); err != nil {
		t.Fatalf("filter run -o: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "file-bound text" {
		t.Fatalf("unexpected output file content: %q", data)
	}
}

func TestFilterRunUnknownFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSourcePDF(t, "text")

	_, _, err := runCLI(t, env.configPath, "filter", "run", "nosuch", source)
	if err == nil || !strings.Contains(err.Error(), "unknown filter") {
		t.Fatalf("expected unknown filter error, got %v", err)
	}
}

func TestProcessCommandFilesDerivatives(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSourcePDF(t, "queued text")

	out, _, err := runCLI(t, env.configPath, "process", source)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	requireContains(t, out, "2 completed")

	text, err := os.ReadFile(filepath.Join(env.storeDir, "bundles", "TEXT", findStored(t, env.storeDir, "TEXT")))
	if err != nil {
		t.Fatalf("read stored text derivative: %v", err)
	}
	if string(text) != "queued text" {
		t.Fatalf("unexpected stored derivative: %q", text)
	}

	// ledger reflects the completed runs
	out, _, err = runCLI(t, env.configPath, "ledger", "list")
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "completed")
	requireContains(t, out, "thesis.pdf")
}

func TestProcessCommandSkipsAlreadyFiltered(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSourcePDF(t, "once only")

	if _, _, err := runCLI(t, env.configPath, "process", source); err != nil {
		t.Fatalf("first process: %v", err)
	}
	out, _, err := runCLI(t, env.configPath, "process", source)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	requireContains(t, out, "Processed 0 run(s)")

	out, _, err = runCLI(t, env.configPath, "process", "--force", source)
	if err != nil {
		t.Fatalf("forced process: %v", err)
	}
	requireContains(t, out, "2 completed")
}

func TestLedgerClearByStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	source := writeSourcePDF(t, "clear me")

	if _, _, err := runCLI(t, env.configPath, "process", source); err != nil {
		t.Fatalf("process: %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "ledger", "clear", "--status", "completed")
	if err != nil {
		t.Fatalf("ledger clear: %v", err)
	}
	requireContains(t, out, "Removed 2 run(s).")

	out, _, err = runCLI(t, env.configPath, "ledger", "list")
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "No runs recorded.")
}

func TestLedgerListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "ledger", "list", "--status", "bogus")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

// findStored returns the name of the single entry filed under the bundle.
func findStored(t *testing.T, storeDir, bundle string) string {
	t.Helper()

	entries, err := os.ReadDir(filepath.Join(storeDir, "bundles", bundle))
	if err != nil {
		t.Fatalf("read bundle dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry in bundle %s, found %d", bundle, len(entries))
	}
	return entries[0].Name()
}
