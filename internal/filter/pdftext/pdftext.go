// Package pdftext extracts plain text from PDF bitstreams by forking the
// XPDF/poppler pdftotext tool. The output is suitable for indexing, not for
// display.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shelfmark/internal/config"
	"shelfmark/internal/filter"
	"shelfmark/internal/filter/exitcode"
	"shelfmark/internal/logging"
	"shelfmark/internal/staging"
)

var commandContext = exec.CommandContext

const name = "pdftext"

// waitDelay bounds how long Wait blocks on pipe teardown after the process
// is killed by context cancellation.
const waitDelay = 5 * time.Second

// Filter extracts text via pdftotext. Safe for concurrent Transform calls;
// the only shared state is the lazily resolved tool path.
type Filter struct {
	cfg    *config.Config
	logger *slog.Logger

	resolveOnce sync.Once
	toolPath    string
	resolveErr  error
}

// New constructs the text-extraction filter.
func New(cfg *config.Config, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Filter{
		cfg:    cfg,
		logger: logger.With(logging.String("filter", name)),
	}
}

func (f *Filter) Name() string { return name }

// DerivedName appends the fixed text suffix to the original filename.
func (f *Filter) DerivedName(source string) string { return source + ".txt" }

func (f *Filter) TargetGroup() string { return "TEXT" }

func (f *Filter) FormatLabel() string { return "Text" }

func (f *Filter) Description() string { return "Extracted text" }

// executable resolves the configured pdftotext path once per filter
// instance. An unset path is a configuration error, not a per-call one.
func (f *Filter) executable() (string, error) {
	f.resolveOnce.Do(func() {
		path := strings.TrimSpace(f.cfg.Tools.Pdftotext)
		if path == "" {
			f.resolveErr = filter.Wrap(filter.ErrConfiguration, name, "resolve tool",
				"tools.pdftotext is not set; point it at the pdftotext executable", nil)
			return
		}
		f.toolPath = path
	})
	return f.toolPath, f.resolveErr
}

// Transform stages the source to a temporary file, runs
//
//	pdftotext -q -enc UTF-8 <staging file> -
//
// and returns the captured standard output as the derivative. The trailing
// "-" directs the tool at stdout instead of a named output file.
func (f *Filter) Transform(ctx context.Context, source io.ReadCloser, verbose bool) (io.ReadCloser, error) {
	bin, err := f.executable()
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	// pdftotext needs to seek, so the stream is copied to a staging file.
	staged, err := staging.Stage(f.cfg.Paths.StagingDir, "shelfmark-pdftext-*.pdf", source)
	if err != nil {
		return nil, filter.Wrap(filter.ErrStaging, name, "stage source", "", err)
	}
	defer staged.Cleanup(f.logger)

	args := []string{"-q", "-enc", "UTF-8", staged.Path(), "-"}
	logCommand(f.logger, verbose, bin, args)

	cmd := commandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	var toolStderr bytes.Buffer
	cmd.Stderr = &toolStderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, filter.Wrap(filter.ErrLaunch, name, "open stdout pipe", "", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, filter.Wrap(filter.ErrLaunch, name, "start "+filepath.Base(bin), "", err)
	}

	// Drain stdout concurrently with the wait. Waiting first would deadlock
	// the tool once the OS pipe buffer fills.
	var out bytes.Buffer
	drained := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(&out, stdout)
		drained <- copyErr
	}()

	drainErr := <-drained
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, filter.Wrap(filter.ErrInterrupted, name, "wait", "external tool killed", ctxErr)
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, filter.Wrap(filter.ErrConversion, name, "wait", "", waitErr)
		}
		code = exitErr.ExitCode()
	}

	outcome := exitcode.Classify(code)
	if !outcome.OK() {
		if detail := strings.TrimSpace(toolStderr.String()); detail != "" {
			f.logger.Debug("tool stderr", logging.String("stderr", detail))
		}
		return nil, filter.Wrap(filter.ErrConversion, name, "run", outcome.Reason(), nil)
	}
	if drainErr != nil {
		return nil, filter.Wrap(filter.ErrConversion, name, "read tool output", "", drainErr)
	}

	return io.NopCloser(bytes.NewReader(out.Bytes())), nil
}

func logCommand(logger *slog.Logger, verbose bool, bin string, args []string) {
	attrs := logging.Args(
		logging.String("command", bin),
		logging.String("args", strings.Join(args, " ")),
	)
	if verbose {
		logger.Info("running conversion tool", attrs...)
		return
	}
	logger.Debug("running conversion tool", attrs...)
}

var _ filter.Filter = (*Filter)(nil)
