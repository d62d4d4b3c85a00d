package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shelfmark/internal/config"
	"shelfmark/internal/logging"
	"shelfmark/internal/processor"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var force bool
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "process [file...]",
		Short: "Enqueue files and drain the run ledger",
		Long: "Queues one run per registered filter for each given file (skipping\n" +
			"already-filtered pairs unless --force), then processes pending runs\n" +
			"sequentially. With no arguments only the drain happens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if timeoutSeconds >= 0 {
				cfg.Tools.TimeoutSeconds = timeoutSeconds
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			runs, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer runs.Close()

			proc, err := processor.New(cfg, registry, store, runs, logger)
			if err != nil {
				return err
			}
			if err := proc.Lock(); err != nil {
				return err
			}
			defer proc.Unlock()

			for _, path := range args {
				queued, err := proc.EnqueueFile(cmd.Context(), path, force)
				if err != nil {
					return err
				}
				for _, run := range queued {
					logger.Info("queued run",
						logging.String("source", run.SourceName),
						logging.String("filter", run.FilterName),
					)
				}
			}

			summary, err := proc.ProcessPending(cmd.Context(), ctx.verbose())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed %d run(s): %d completed, %d failed, %d for review\n",
				summary.Processed, summary.Completed, summary.Failed, summary.Review)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-filter sources that already have completed runs")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", -1, "Override tools.timeout_seconds for this batch (0 waits indefinitely)")
	return cmd
}

// toolContext applies the configured subprocess timeout to ctx. A zero
// timeout preserves the historical wait-forever behavior.
func toolContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Tools.TimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(cfg.Tools.TimeoutSeconds)*time.Second)
	}
	return context.WithCancel(ctx)
}
