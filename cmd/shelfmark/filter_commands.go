package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newFilterCommand(ctx *commandContext) *cobra.Command {
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Inspect and run media filters",
	}

	filterCmd.AddCommand(newFilterListCommand(ctx))
	filterCmd.AddCommand(newFilterRunCommand(ctx))

	return filterCmd
}

func newFilterListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg, nil)
			if err != nil {
				return err
			}

			titler := cases.Title(language.English)
			rows := make([][]string, 0)
			for _, flt := range registry.All() {
				rows = append(rows, []string{
					flt.Name(),
					titler.String(strings.ToLower(flt.TargetGroup())),
					flt.FormatLabel(),
					flt.Description(),
					flt.DerivedName("<name>"),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out,
				[]string{"Filter", "Bundle", "Format", "Description", "Derived Name"},
				rows, nil))
			return nil
		},
	}
}

func newFilterRunCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "run <filter> <file>",
		Short: "Apply one filter to one file and write the derivative",
		Long: "Runs a single filter outside the ledger. The derivative is written\n" +
			"to stdout unless --output is given.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}

			flt, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown filter %q (see `shelfmark filter list`)", args[0])
			}

			source, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}

			runCtx, cancel := toolContext(cmd.Context(), cfg)
			defer cancel()

			derived, err := flt.Transform(runCtx, source, ctx.verbose())
			if err != nil {
				return err
			}
			defer derived.Close()

			var dest io.Writer = cmd.OutOrStdout()
			if outputPath != "" {
				file, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				dest = file
			}
			if _, err := io.Copy(dest, derived); err != nil {
				return fmt.Errorf("write derivative: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the derivative to this path instead of stdout")
	return cmd
}
