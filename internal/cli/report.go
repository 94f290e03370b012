package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/engine"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List exported objects missing from the destination",
		Long: `Cross-check the export logs against the destination workspace and
list every exported object that was not migrated. Exits non-zero when
anything is missing, for use in scripted pipelines.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, rootOpts)
		},
	}
	return cmd
}

func runReport(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if err := cfg.RequireDestination(); err != nil {
		return WrapExitError(ExitCommandError, "report", err)
	}

	logs, err := logstore.Open(opts.ExportDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "open export dir", err)
	}

	dest := directory.New(cfg.Destination.Host, cfg.Destination.Token)
	e := engine.New(nil, dest, logs, checkpoint.Disabled(), engine.Config{})
	defer e.Close()

	summaries, err := e.Report(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "report failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	missing := 0
	for _, s := range summaries {
		missing += len(s.Missing)
	}

	if opts.Format == "json" {
		if err := out.Success(summaries); err != nil {
			return err
		}
	} else {
		for _, s := range summaries {
			if len(s.Missing) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: all migrated\n", s.Kind)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d missing\n", s.Kind, len(s.Missing))
			for _, name := range s.Missing {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
		}
	}

	if missing > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d objects missing from destination", missing))
	}
	return nil
}
