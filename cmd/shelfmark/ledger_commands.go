package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"shelfmark/internal/ledger"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the run ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRetryCommand(ctx))
	ledgerCmd.AddCommand(newLedgerClearCommand(ctx))

	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filter runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlag(statusFlag)
			if err != nil {
				return err
			}

			runs, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer runs.Close()

			items, err := runs.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, run := range items {
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.SourceName,
					run.FilterName,
					string(run.Status),
					run.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					truncate(run.ErrorMessage, 60),
				})
			}

			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Source", "Filter", "Status", "Updated", "Error"},
				rows,
				[]columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show runs with this status (comma separated)")
	return cmd
}

func newLedgerRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a failed or review run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			runs, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer runs.Close()

			if err := runs.Retry(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %d requeued.\n", id)
			return nil
		},
	}
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded runs",
		Long: "Deletes every recorded run, or only the runs matching --status.\n" +
			"Derivatives already filed in the store are untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatusFlag(statusFlag)
			if err != nil {
				return err
			}

			runs, err := ctx.openLedger()
			if err != nil {
				return err
			}
			defer runs.Close()

			removed, err := runs.Clear(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s).\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only clear runs with this status (comma separated)")
	return cmd
}

func parseStatusFlag(value string) ([]ledger.Status, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	statuses := make([]ledger.Status, 0, len(parts))
	for _, part := range parts {
		status, ok := ledger.ParseStatus(part)
		if !ok {
			return nil, fmt.Errorf("unknown status %q (valid: %v)", strings.TrimSpace(part), ledger.Statuses())
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
