package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/store"
)

// ExtractOptions holds flags for the extract command.
type ExtractOptions struct {
	*RootOptions
	StoreFlags

	// RunIDs allows overriding the run id generator (for testing).
	RunIDs engine.RunIDGenerator
}

// NewExtractCommand creates the extract command.
func NewExtractCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExtractOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Stage the source library without touching a target",
		Long: `Read accounts, watch events and added dates from the source library and
write them as TSV files with a manifest into the work directory. A later
'merge --from-stage' reads them back instead of the source database.

Example:
  watchgraft extract --source old.db --work-dir ./stage`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(opts, cmd)
		},
	}

	opts.registerStores(cmd, false)
	cmd.Flags().StringVar(&opts.WorkDir, flagWorkDir, "", "directory receiving the staged tables (required)")

	return cmd
}

func runExtract(opts *ExtractOptions, cmd *cobra.Command) error {
	cfg, err := engineConfig(cmd, opts.RootOptions, &opts.StoreFlags)
	if err != nil {
		return err
	}
	formatter := NewOutputFormatter(cmd, opts.RootOptions)

	if cfg.SourcePath == "" {
		return formatter.Usage("--source is required")
	}
	if cfg.WorkDir == "" {
		return formatter.Usage("--work-dir is required")
	}
	if err := store.CheckFile(cfg.SourcePath); err != nil {
		return formatter.Unavailable(string(engine.ErrCodeSourceUnavailable), "source store unavailable", err)
	}

	log := newLogger(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	engOpts := []engine.Option{engine.WithLogger(log)}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}

	report, err := engine.New(cfg, engOpts...).Extract(cmd.Context())
	if err != nil {
		return formatter.StageFailure("extract failed", err)
	}
	return formatter.Report(report)
}
