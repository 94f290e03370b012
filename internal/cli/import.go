package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/engine"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Parallelism  int
	MapSPByName  bool
	NoCheckpoint bool
	SingleUser   bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <users|service-principals|groups|all>",
		Short: "Recreate exported identities in the destination workspace",
		Long: `Import previously exported identities into the destination workspace.
Imports are idempotent and resumable: completed objects are recorded in
a checkpoint ledger and skipped on re-runs. Per-object API failures are
logged and the batch continues; re-running retries them.

Example:
  dbmigrate import all --config prod.yaml --export-dir ./logs
  dbmigrate import users --parallelism 8
  dbmigrate import service-principals --map-sp-by-name`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", 0, "concurrent create requests (default from config, else 4)")
	cmd.Flags().BoolVar(&opts.MapSPByName, "map-sp-by-name", false, "reuse same-named service principals already in the destination")
	cmd.Flags().BoolVar(&opts.NoCheckpoint, "no-checkpoint", false, "ignore and do not record checkpoints")
	cmd.Flags().BoolVar(&opts.SingleUser, "single-user", false, "import the single-user export instead of the users log")

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, kind string) error {
	if !isValidKind(kind) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be one of %v", kind, validKinds))
	}

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	if err := cfg.ValidateCloud(); err != nil {
		return WrapExitError(ExitCommandError, "import", err)
	}
	if err := cfg.RequireDestination(); err != nil {
		return WrapExitError(ExitCommandError, "import", err)
	}

	logs, err := logstore.Open(opts.ExportDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "open export dir", err)
	}

	checkpoints := checkpoint.Disabled()
	if !opts.NoCheckpoint {
		ledger, err := checkpoint.Open(logs.Path(logstore.CheckpointDB))
		if err != nil {
			return WrapExitError(ExitCommandError, "open checkpoint ledger", err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				slog.Error("close checkpoint ledger", "error", closeErr)
			}
		}()
		checkpoints = ledger
	}

	parallelism := cfg.Parallelism
	if opts.Parallelism > 0 {
		parallelism = opts.Parallelism
	}
	mapByName := cfg.MapSPByName || opts.MapSPByName

	dest := directory.New(cfg.Destination.Host, cfg.Destination.Token)
	e := engine.New(nil, dest, logs, checkpoints, engine.Config{
		Parallelism: parallelism,
		MapSPByName: mapByName,
		ApplyRoles:  cfg.ApplyRoles(),
	})
	defer e.Close()

	ctx := cmd.Context()
	switch {
	case opts.SingleUser:
		err = e.ImportSingleUser(ctx)
	case kind == "users":
		if err = e.ImportUsers(ctx); err == nil {
			err = e.AttachUserGrants(ctx)
		}
	case kind == "service-principals":
		if err = e.ImportServicePrincipals(ctx); err == nil {
			err = e.AttachServicePrincipalGrants(ctx)
		}
	case kind == "groups":
		if err = e.ImportGroups(ctx); err == nil {
			err = e.AttachGroupGrants(ctx)
		}
	default:
		err = e.ImportAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "import failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	failures := e.Errors().Count("users") + e.Errors().Count("service_principals") + e.Errors().Count("groups")
	if failures > 0 {
		return out.Success(fmt.Sprintf("import finished with %d recoverable failures; see errors_*.log in %s and re-run to retry", failures, opts.ExportDir))
	}
	return out.Success("import complete")
}
