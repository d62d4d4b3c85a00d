// Package processor drives batch filtering: it enqueues one run per
// applicable filter for each source bitstream, then drains pending runs one
// at a time, storing derivatives and recording outcomes in the ledger.
//
// Runs are strictly sequential. The flock guard keeps two batch processes
// from interleaving claims on the same ledger.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"shelfmark/internal/bitstore"
	"shelfmark/internal/config"
	"shelfmark/internal/filter"
	"shelfmark/internal/ledger"
	"shelfmark/internal/logging"
	"shelfmark/internal/staging"
)

// Processor owns one batch filtering session.
type Processor struct {
	cfg      *config.Config
	registry *filter.Registry
	store    *bitstore.Store
	runs     *ledger.Store
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock
}

// Summary reports the outcome of a drain pass.
type Summary struct {
	Processed int
	Completed int
	Failed    int
	Review    int
}

// New constructs a processor with initialized dependencies.
func New(cfg *config.Config, registry *filter.Registry, store *bitstore.Store, runs *ledger.Store, logger *slog.Logger) (*Processor, error) {
	if cfg == nil || registry == nil || store == nil || runs == nil {
		return nil, errors.New("processor requires config, registry, store, and ledger")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "shelfmark.lock")
	return &Processor{
		cfg:      cfg,
		registry: registry,
		store:    store,
		runs:     runs,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Lock acquires the single-instance batch lock.
func (p *Processor) Lock() error {
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another shelfmark batch is already running (lock %s)", p.lockPath)
	}
	return nil
}

// Unlock releases the batch lock.
func (p *Processor) Unlock() {
	if err := p.lock.Unlock(); err != nil {
		p.logger.Warn("failed to release batch lock",
			logging.String("path", p.lockPath),
			logging.Error(err),
		)
	}
}

// EnqueueFile queues one run per registered filter for the file at path.
// Pairs with a completed run are skipped unless force is set; pairs with a
// pending or running run are never duplicated.
func (p *Processor) EnqueueFile(ctx context.Context, path string, force bool) ([]ledger.Run, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source %q is a directory", absPath)
	}

	sourceName := filepath.Base(absPath)
	var queued []ledger.Run
	for _, flt := range p.registry.All() {
		if !force {
			done, err := p.runs.Completed(ctx, absPath, flt.Name())
			if err != nil {
				return queued, err
			}
			if done {
				p.logger.Info("skipping already-filtered bitstream",
					logging.String("source", sourceName),
					logging.String("filter", flt.Name()),
				)
				continue
			}
		}
		active, err := p.runs.HasActive(ctx, absPath, flt.Name())
		if err != nil {
			return queued, err
		}
		if active {
			continue
		}

		run, err := p.runs.Enqueue(ctx, absPath, sourceName, flt.Name(), flt.TargetGroup())
		if err != nil {
			return queued, fmt.Errorf("enqueue %s/%s: %w", sourceName, flt.Name(), err)
		}
		queued = append(queued, *run)
	}
	return queued, nil
}

// staleAge is how old a leftover staging file must be before the batch
// sweep removes it. Generous enough that a concurrent one-shot `filter run`
// never loses its staging file.
const staleAge = 24 * time.Hour

// ProcessPending drains the pending queue sequentially until it is empty or
// ctx is done. Leftover staging files from interrupted batches are swept
// first, and orphaned running rows are returned to pending.
func (p *Processor) ProcessPending(ctx context.Context, verbose bool) (Summary, error) {
	var summary Summary

	staging.CleanStale(p.cfg.Paths.StagingDir, staleAge, p.logger)

	if _, err := p.runs.ResetRunning(ctx); err != nil {
		return summary, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		run, err := p.runs.NextPending(ctx)
		if err != nil {
			return summary, err
		}
		if run == nil {
			return summary, nil
		}

		summary.Processed++
		switch p.processRun(ctx, run, verbose) {
		case ledger.StatusCompleted:
			summary.Completed++
		case ledger.StatusReview:
			summary.Review++
		default:
			summary.Failed++
		}
	}
}

// processRun executes one claimed run and records its terminal status.
func (p *Processor) processRun(ctx context.Context, run *ledger.Run, verbose bool) ledger.Status {
	logger := p.logger.With(
		logging.String("run", run.RunKey),
		logging.String("source", run.SourceName),
		logging.String("filter", run.FilterName),
	)

	flt, ok := p.registry.Get(run.FilterName)
	if !ok {
		msg := fmt.Sprintf("filter %q is not registered", run.FilterName)
		logger.Error("run failed", logging.String("reason", msg))
		p.recordFailure(ctx, run.ID, ledger.StatusReview, msg, logger)
		return ledger.StatusReview
	}

	source, err := os.Open(run.SourcePath)
	if err != nil {
		msg := fmt.Sprintf("open source: %v", err)
		logger.Error("run failed", logging.String("reason", msg))
		p.recordFailure(ctx, run.ID, ledger.StatusFailed, msg, logger)
		return ledger.StatusFailed
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if p.cfg.Tools.TimeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.Tools.TimeoutSeconds)*time.Second)
	}
	defer cancel()

	started := time.Now()
	derived, err := flt.Transform(runCtx, source, verbose)
	if err != nil {
		status := ledger.StatusFailed
		if filter.NeedsReview(err) {
			status = ledger.StatusReview
		}
		logger.Error("transform failed",
			logging.Error(err),
			logging.Duration("elapsed", time.Since(started)),
		)
		p.recordFailure(ctx, run.ID, status, err.Error(), logger)
		return status
	}

	entry, err := p.store.Put(flt.TargetGroup(), flt.DerivedName(run.SourceName), derived)
	_ = derived.Close()
	if err != nil {
		msg := fmt.Sprintf("store derivative: %v", err)
		logger.Error("run failed", logging.String("reason", msg))
		p.recordFailure(ctx, run.ID, ledger.StatusFailed, msg, logger)
		return ledger.StatusFailed
	}

	if err := p.runs.MarkCompleted(ctx, run.ID, entry.Path); err != nil {
		logger.Error("failed to record completion", logging.Error(err))
		return ledger.StatusFailed
	}

	logger.Info("derivative stored",
		logging.String("bundle", entry.Bundle),
		logging.String("derivative", entry.Name),
		logging.Int64("size", entry.Size),
		logging.Duration("elapsed", time.Since(started)),
	)
	return ledger.StatusCompleted
}

func (p *Processor) recordFailure(ctx context.Context, id int64, status ledger.Status, message string, logger *slog.Logger) {
	if err := p.runs.MarkFailed(ctx, id, status, message); err != nil {
		logger.Error("failed to record run failure", logging.Error(err))
	}
}
