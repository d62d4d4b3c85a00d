package pdftext_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"shelfmark/internal/filter"
	"shelfmark/internal/filter/pdftext"
	"shelfmark/internal/logging"
	"shelfmark/internal/testsupport"
)

func source(data string) io.ReadCloser {
	return io.NopCloser(bytes.NewReader([]byte(data)))
}

func TestDescriptor(t *testing.T) {
	f := pdftext.New(testsupport.NewConfig(t), logging.NewNop())
	if f.Name() != "pdftext" {
		t.Fatalf("unexpected name %q", f.Name())
	}
	if f.TargetGroup() != "TEXT" || f.FormatLabel() != "Text" {
		t.Fatalf("unexpected descriptor: %q %q", f.TargetGroup(), f.FormatLabel())
	}
	if f.Description() == "" {
		t.Fatal("expected non-empty description")
	}
}

func TestDerivedNameAppendsSuffix(t *testing.T) {
	f := pdftext.New(testsupport.NewConfig(t), nil)
	cases := map[string]string{
		"thesis.pdf":   "thesis.pdf.txt",
		"no extension": "no extension.txt",
		"":             ".txt",
	}
	for input, want := range cases {
		if got := f.DerivedName(input); got != want {
			t.Errorf("DerivedName(%q) = %q, want %q", input, got, want)
		}
		// Deterministic: a second call yields the same result.
		if got := f.DerivedName(input); got != want {
			t.Errorf("DerivedName(%q) second call = %q, want %q", input, got, want)
		}
	}
}

func TestTransformCapturesToolStdout(t *testing.T) {
	// Scenario A: tool exits 0 and writes fixed bytes to stdout. The
	// script also verifies the staging file exists and the argv shape.
	tool := testsupport.WriteTool(t, "pdftotext", `
[ "$1" = "-q" ] || exit 9
[ "$2" = "-enc" ] || exit 9
[ "$3" = "UTF-8" ] || exit 9
[ -f "$4" ] || exit 9
[ "$5" = "-" ] || exit 9
printf 'Hello World'`)
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
	f := pdftext.New(cfg, logging.NewNop())

	derived, err := f.Transform(context.Background(), source("%PDF-1.4 fake"), false)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	data, err := io.ReadAll(derived)
	if err != nil {
		t.Fatalf("read derivative: %v", err)
	}
	if err := derived.Close(); err != nil {
		t.Fatalf("close derivative: %v", err)
	}
	if string(data) != "Hello World" {
		t.Fatalf("expected exact tool stdout, got %q", data)
	}
	testsupport.RequireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestTransformLargeOutputDoesNotDeadlock(t *testing.T) {
	// Output well past the OS pipe buffer forces the concurrent drain.
	tool := testsupport.WriteTool(t, "pdftotext", `
i=0
while [ $i -lt 4096 ]; do
  printf '0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef'
  i=$((i+1))
done`)
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
	f := pdftext.New(cfg, logging.NewNop())

	derived, err := f.Transform(context.Background(), source("pdf"), false)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	data, err := io.ReadAll(derived)
	if err != nil {
		t.Fatalf("read derivative: %v", err)
	}
	if len(data) != 4096*64 {
		t.Fatalf("expected %d bytes, got %d", 4096*64, len(data))
	}
}

func TestTransformEmptySourceStillInvokesTool(t *testing.T) {
	marker := testsupport.WriteTool(t, "pdftotext", `[ -f "$4" ] || exit 9
printf 'ran'`)
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(marker))
	f := pdftext.New(cfg, logging.NewNop())

	derived, err := f.Transform(context.Background(), source(""), false)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	data, _ := io.ReadAll(derived)
	if string(data) != "ran" {
		t.Fatalf("expected tool to run for empty source, got %q", data)
	}
}

func TestTransformEmptyToolOutputIsValid(t *testing.T) {
	tool := testsupport.WriteTool(t, "pdftotext", "exit 0")
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
	f := pdftext.New(cfg, logging.NewNop())

	derived, err := f.Transform(context.Background(), source("pdf"), false)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	data, _ := io.ReadAll(derived)
	if len(data) != 0 {
		t.Fatalf("expected empty derivative, got %d bytes", len(data))
	}
}

func TestTransformClassifiesExitCodes(t *testing.T) {
	cases := []struct {
		name     string
		script   string
		fragment string
	}{
		// Scenario B: exit 1 means the input could not be opened.
		{"input unreadable", "printf 'partial'; exit 1", "open its input"},
		// Scenario C: exit 3 means document permissions forbid extraction.
		{"permission denied", "exit 3", "permissions"},
		{"generic failure", "exit 7", "exit status 7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool := testsupport.WriteTool(t, "pdftotext", tc.script)
			cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
			f := pdftext.New(cfg, logging.NewNop())

			derived, err := f.Transform(context.Background(), source("pdf"), false)
			if err == nil {
				derived.Close()
				t.Fatal("expected conversion error")
			}
			if !errors.Is(err, filter.ErrConversion) {
				t.Fatalf("expected ErrConversion, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("expected %q in error %q", tc.fragment, err)
			}
			if derived != nil {
				t.Fatal("expected no derivative on failure")
			}
			testsupport.RequireEmptyDir(t, cfg.Paths.StagingDir)
		})
	}
}

func TestTransformMissingConfiguration(t *testing.T) {
	// Scenario D: unset tool path fails before any staging file exists.
	cfg := testsupport.NewConfig(t)
	f := pdftext.New(cfg, logging.NewNop())

	src := source("pdf")
	_, err := f.Transform(context.Background(), src, false)
	if !errors.Is(err, filter.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	testsupport.RequireEmptyDir(t, cfg.Paths.StagingDir)

	// The instance stays broken: subsequent calls fail the same way.
	_, err = f.Transform(context.Background(), source("pdf"), false)
	if !errors.Is(err, filter.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration on second call, got %v", err)
	}
}

func TestTransformMissingExecutable(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext("/nonexistent/pdftotext"))
	f := pdftext.New(cfg, logging.NewNop())

	_, err := f.Transform(context.Background(), source("pdf"), false)
	if !errors.Is(err, filter.ErrLaunch) {
		t.Fatalf("expected ErrLaunch, got %v", err)
	}
	testsupport.RequireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestTransformContextTimeoutKillsTool(t *testing.T) {
	tool := testsupport.WriteTool(t, "pdftotext", "exec sleep 10")
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
	f := pdftext.New(cfg, logging.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Transform(ctx, source("pdf"), false)
	if !errors.Is(err, filter.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Fatalf("expected forced termination, transform took %v", elapsed)
	}
	testsupport.RequireEmptyDir(t, cfg.Paths.StagingDir)
}

func TestTransformStagesSourceContent(t *testing.T) {
	// The tool reads its input file back to stdout, proving the staging
	// copy carries the source bytes.
	tool := testsupport.WriteTool(t, "pdftotext", `cat "$4"`)
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
	f := pdftext.New(cfg, logging.NewNop())

	derived, err := f.Transform(context.Background(), source("round trip payload"), true)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	data, _ := io.ReadAll(derived)
	if string(data) != "round trip payload" {
		t.Fatalf("staging copy mismatch: %q", data)
	}
}

func TestTransformClosesSourceExactlyOnce(t *testing.T) {
	tool := testsupport.WriteTool(t, "pdftotext", "exit 0")
	cfg := testsupport.NewConfig(t, testsupport.WithPdftotext(tool))
	f := pdftext.New(cfg, logging.NewNop())

	src := &countingCloser{Reader: bytes.NewReader([]byte("pdf"))}
	if _, err := f.Transform(context.Background(), src, false); err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if src.closes != 1 {
		t.Fatalf("expected source closed exactly once, got %d", src.closes)
	}
}

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}
