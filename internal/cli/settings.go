package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/store"
)

// StoreFlags are the per-run flags shared by merge, extract and check.
// Each command registers only the flags it uses.
type StoreFlags struct {
	Source               string
	Target               string
	WorkDir              string
	FromStage            string
	Driver               string
	DryRun               bool
	HeaderToken          string
	MaxUnresolvedPercent int
	NormalizeTitles      bool
}

// Flag names.
const (
	flagSource     = "source"
	flagTarget     = "target"
	flagWorkDir    = "work-dir"
	flagFromStage  = "from-stage"
	flagDriver     = "driver"
	flagDryRun     = "dry-run"
	flagHeader     = "header-token"
	flagMaxPercent = "max-unresolved-percent"
	flagNormalize  = "normalize-titles"
)

func (f *StoreFlags) registerStores(cmd *cobra.Command, target bool) {
	cmd.Flags().StringVar(&f.Source, flagSource, "", "path to the old library database")
	if target {
		cmd.Flags().StringVar(&f.Target, flagTarget, "", "path to the rebuilt library database")
	}
	cmd.Flags().StringVar(&f.Driver, flagDriver, store.DefaultDriver, "SQLite driver (sqlite3|sqlite)")
}

// engineConfig merges the config file (if any) with explicitly set flags.
// Flags win; unset flags fall back to the file, then to defaults.
func engineConfig(cmd *cobra.Command, root *RootOptions, f *StoreFlags) (engine.Config, error) {
	fc := DefaultFileConfig()
	if root.ConfigPath != "" {
		loaded, err := LoadConfig(root.ConfigPath)
		if err != nil {
			return engine.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
		}
		fc = loaded
	}

	cfg := engine.Config{
		SourcePath:           fc.Source,
		TargetPath:           fc.Target,
		WorkDir:              fc.WorkDir,
		Driver:               fc.Driver,
		DryRun:               fc.DryRun,
		HeaderToken:          fc.HeaderToken,
		MaxUnresolvedPercent: fc.MaxUnresolvedPercent,
		NormalizeTitles:      fc.NormalizeTitles,
	}

	changed := cmd.Flags().Changed
	if changed(flagSource) {
		cfg.SourcePath = f.Source
	}
	if changed(flagTarget) {
		cfg.TargetPath = f.Target
	}
	if changed(flagWorkDir) {
		cfg.WorkDir = f.WorkDir
	}
	if changed(flagFromStage) {
		cfg.FromStage = f.FromStage
	}
	if changed(flagDriver) {
		cfg.Driver = f.Driver
	}
	if changed(flagDryRun) {
		cfg.DryRun = f.DryRun
	}
	if changed(flagHeader) {
		cfg.HeaderToken = f.HeaderToken
	}
	if changed(flagMaxPercent) {
		cfg.MaxUnresolvedPercent = f.MaxUnresolvedPercent
	}
	if changed(flagNormalize) {
		cfg.NormalizeTitles = f.NormalizeTitles
	}

	if cfg.Driver != store.DriverCGo && cfg.Driver != store.DriverPure {
		return cfg, NewExitError(ExitCommandError, fmt.Sprintf("invalid driver %q: must be %s or %s", cfg.Driver, store.DriverCGo, store.DriverPure))
	}
	if cfg.MaxUnresolvedPercent < 0 || cfg.MaxUnresolvedPercent > 100 {
		return cfg, NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %d: must be between 0 and 100", flagMaxPercent, cfg.MaxUnresolvedPercent))
	}
	return cfg, nil
}

// newLogger builds the run logger. Progress goes to out in text mode and
// to errOut in JSON mode, so JSON output stays parseable.
func newLogger(root *RootOptions, out, errOut io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if root.Verbose {
		logLevel = slog.LevelDebug
	}
	w := out
	if root.Format == "json" {
		w = errOut
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
