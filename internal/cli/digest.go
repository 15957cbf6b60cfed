package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/watchgraft/internal/store"
)

// DigestOptions holds flags for the digest command.
type DigestOptions struct {
	*RootOptions
	Database string
	Driver   string
	Rows     bool
}

// DigestResult is the JSON payload of the digest command.
type DigestResult struct {
	Path   string   `json:"path"`
	Digest string   `json:"digest"`
	Rows   int      `json:"rows"`
	Lines  []string `json:"lines,omitempty"`
}

// NewDigestCommand creates the digest command.
func NewDigestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DigestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print a content digest of a library's reconciled state",
		Long: `Hash the rows a merge writes: accounts, item added dates, watch events and
view state. Surrogate row ids are excluded, so two libraries holding the
same history produce the same digest.

Compare digests before and after a merge to confirm a dry run or a
rolled-back run left the target untouched, or that a second merge is a
no-op.

Example:
  watchgraft digest --db new.db
  watchgraft digest --db new.db --rows`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to a library database (required)")
	cmd.Flags().StringVar(&opts.Driver, flagDriver, store.DefaultDriver, "SQLite driver (sqlite3|sqlite)")
	cmd.Flags().BoolVar(&opts.Rows, "rows", false, "also print each row as canonical JSON")

	return cmd
}

func runDigest(opts *DigestOptions, cmd *cobra.Command) error {
	formatter := NewOutputFormatter(cmd, opts.RootOptions)
	if opts.Database == "" {
		return formatter.Usage("--db is required")
	}

	st, err := store.OpenSource(cmd.Context(), opts.Database, store.WithDriver(opts.Driver))
	if err != nil {
		return formatter.Unavailable(ErrCodeGeneric, "cannot open database", err)
	}
	defer st.Close()

	snap, err := st.Snapshot(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "snapshot failed", err)
	}
	digest, err := snap.Digest()
	if err != nil {
		return WrapExitError(ExitFailure, "digest failed", err)
	}
	lines, err := snap.Lines()
	if err != nil {
		return WrapExitError(ExitFailure, "render rows failed", err)
	}

	if opts.Format == "json" {
		result := DigestResult{Path: opts.Database, Digest: digest, Rows: len(lines)}
		if opts.Rows {
			result.Lines = lines
		}
		return formatter.Success(result)
	}

	w := cmd.OutOrStdout()
	if opts.Rows {
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}
	fmt.Fprintln(w, digest)
	return nil
}
