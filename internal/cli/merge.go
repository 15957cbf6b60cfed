package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/store"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	StoreFlags

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Migrate watch history into the rebuilt library",
		Long: `Extract watch history, view state, added dates and accounts from the
source library, match every item against the target library, and write the
result to the target in a single transaction.

Either every change commits or the target is left exactly as it was.

Exit codes:
  0 - Merge applied (or dry run completed)
  1 - Apply failed and rolled back, or too many unresolved events
  2 - Source or target unavailable, or invalid usage

Example:
  watchgraft merge --source old.db --target new.db
  watchgraft merge --source old.db --target new.db --dry-run --verbose
  watchgraft merge --from-stage ./stage --target new.db --format json`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, cmd)
		},
	}

	opts.registerStores(cmd, true)
	cmd.Flags().StringVar(&opts.WorkDir, flagWorkDir, "", "stage intermediate tables into this directory")
	cmd.Flags().StringVar(&opts.FromStage, flagFromStage, "", "read the source from a staged directory instead of --source")
	cmd.Flags().BoolVar(&opts.DryRun, flagDryRun, false, "run every apply step, then roll back")
	cmd.Flags().StringVar(&opts.HeaderToken, flagHeader, engine.DefaultHeaderToken, "account name removed as a header artifact")
	cmd.Flags().IntVar(&opts.MaxUnresolvedPercent, flagMaxPercent, 0, "abort before apply when more events are unresolved (0 disables)")
	cmd.Flags().BoolVar(&opts.NormalizeTitles, flagNormalize, false, "match titles after case and Unicode folding")

	return cmd
}

func runMerge(opts *MergeOptions, cmd *cobra.Command) error {
	cfg, err := engineConfig(cmd, opts.RootOptions, &opts.StoreFlags)
	if err != nil {
		return err
	}
	formatter := NewOutputFormatter(cmd, opts.RootOptions)
	if opts.ConfigPath != "" {
		formatter.VerboseLog("config loaded from %s", opts.ConfigPath)
	}

	// Validate store paths before touching the engine
	if cfg.FromStage == "" {
		if cfg.SourcePath == "" {
			return formatter.Usage("--source or --from-stage is required")
		}
		if err := store.CheckFile(cfg.SourcePath); err != nil {
			return formatter.Unavailable(string(engine.ErrCodeSourceUnavailable), "source store unavailable", err)
		}
	}
	if cfg.TargetPath == "" {
		return formatter.Usage("--target is required")
	}
	if err := store.CheckFile(cfg.TargetPath); err != nil {
		return formatter.Unavailable(string(engine.ErrCodeTargetUnavailable), "target store unavailable", err)
	}

	log := newLogger(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	engOpts := []engine.Option{engine.WithLogger(log)}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := engine.New(cfg, engOpts...)

	// Signal handling: an interrupt stops the run before apply starts.
	// Once the apply transaction begins it runs to commit or rollback.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("merge starting", "source", sourceLabel(cfg), "target", cfg.TargetPath, "dry_run", cfg.DryRun)
	report, err := eng.Run(ctx)
	if err != nil {
		return formatter.StageFailure("merge failed", err)
	}
	return formatter.Report(report)
}

func sourceLabel(cfg engine.Config) string {
	if cfg.FromStage != "" {
		return cfg.FromStage
	}
	return cfg.SourcePath
}
