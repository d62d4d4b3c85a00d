// Package pdfthumb renders a PNG thumbnail of a PDF's first page by forking
// the XPDF/poppler pdftoppm tool.
//
// Unlike pdftotext, pdftoppm cannot write image data to stdout; it writes
// numbered page files next to a caller-supplied prefix. The filter gives it a
// private work directory, collects the single rendered page, and removes the
// directory with the rest of the staging state.
package pdfthumb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
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

const name = "pdfthumb"

const waitDelay = 5 * time.Second

// Filter renders first-page thumbnails via pdftoppm.
type Filter struct {
	cfg    *config.Config
	logger *slog.Logger

	resolveOnce sync.Once
	toolPath    string
	resolveErr  error
}

// New constructs the thumbnail filter.
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

// DerivedName appends the fixed image suffix to the original filename.
func (f *Filter) DerivedName(source string) string { return source + ".png" }

func (f *Filter) TargetGroup() string { return "THUMBNAIL" }

func (f *Filter) FormatLabel() string { return "PNG" }

func (f *Filter) Description() string { return "Generated thumbnail" }

func (f *Filter) executable() (string, error) {
	f.resolveOnce.Do(func() {
		path := strings.TrimSpace(f.cfg.Tools.Pdftoppm)
		if path == "" {
			f.resolveErr = filter.Wrap(filter.ErrConfiguration, name, "resolve tool",
				"tools.pdftoppm is not set; point it at the pdftoppm executable", nil)
			return
		}
		f.toolPath = path
	})
	return f.toolPath, f.resolveErr
}

// Transform stages the source, renders page one scaled to the configured
// bound, and returns the PNG bytes.
func (f *Filter) Transform(ctx context.Context, source io.ReadCloser, verbose bool) (io.ReadCloser, error) {
	bin, err := f.executable()
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	staged, err := staging.Stage(f.cfg.Paths.StagingDir, "shelfmark-pdfthumb-*.pdf", source)
	if err != nil {
		return nil, filter.Wrap(filter.ErrStaging, name, "stage source", "", err)
	}
	defer staged.Cleanup(f.logger)

	workDir, err := os.MkdirTemp(f.cfg.Paths.StagingDir, "shelfmark-pdfthumb-out-*")
	if err != nil {
		return nil, filter.Wrap(filter.ErrStaging, name, "create work dir", "", err)
	}
	defer f.removeWorkDir(workDir)

	prefix := filepath.Join(workDir, "page")
	args := []string{
		"-png",
		"-f", "1",
		"-l", "1",
		"-scale-to", strconv.Itoa(f.cfg.Thumbnail.MaxDimension),
		staged.Path(),
		prefix,
	}
	logCommand(f.logger, verbose, bin, args)

	cmd := commandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	var toolOutput bytes.Buffer
	cmd.Stdout = &toolOutput
	cmd.Stderr = &toolOutput

	if err := cmd.Start(); err != nil {
		return nil, filter.Wrap(filter.ErrLaunch, name, "start "+filepath.Base(bin), "", err)
	}
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
		if detail := strings.TrimSpace(toolOutput.String()); detail != "" {
			f.logger.Debug("tool output", logging.String("output", detail))
		}
		return nil, filter.Wrap(filter.ErrConversion, name, "run", outcome.Reason(), nil)
	}

	data, err := readRenderedPage(prefix)
	if err != nil {
		return nil, filter.Wrap(filter.ErrConversion, name, "collect output", "", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// readRenderedPage locates the single page file pdftoppm produced. The tool
// zero-pads the page number to the width of the document's page count, so a
// one-page render may be page-1.png, page-01.png, and so on.
func readRenderedPage(prefix string) ([]byte, error) {
	candidates := []string{
		prefix + "-1.png",
		prefix + "-01.png",
		prefix + "-001.png",
		prefix + "-0001.png",
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read rendered page %q: %w", candidate, err)
		}
	}
	return nil, fmt.Errorf("tool exited successfully but produced no page file under %q", prefix)
}

func (f *Filter) removeWorkDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		f.logger.Warn("failed to remove thumbnail work dir",
			logging.String("path", dir),
			logging.Error(err),
		)
	}
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
