package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/watchgraft/internal/engine"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	StoreFlags
}

// CheckResult is the JSON payload of a successful check.
type CheckResult struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Driver string `json:"driver"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify both libraries can be merged",
		Long: `Open the source and target libraries read-only and verify each exists,
is non-empty and has the tables and columns a merge reads and writes.
Nothing is modified.

Example:
  watchgraft check --source old.db --target new.db`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	opts.registerStores(cmd, true)
	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	cfg, err := engineConfig(cmd, opts.RootOptions, &opts.StoreFlags)
	if err != nil {
		return err
	}
	formatter := NewOutputFormatter(cmd, opts.RootOptions)

	if cfg.SourcePath == "" || cfg.TargetPath == "" {
		return formatter.Usage("--source and --target are required")
	}

	log := newLogger(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err := engine.New(cfg, engine.WithLogger(log)).Check(cmd.Context()); err != nil {
		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %v\n", err)
		}
		return formatter.StageFailure("check failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(CheckResult{Source: cfg.SourcePath, Target: cfg.TargetPath, Driver: cfg.Driver})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ source %s\n", cfg.SourcePath)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ target %s\n", cfg.TargetPath)
	return nil
}
