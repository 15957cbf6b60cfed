package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/store"
)

//go:embed config.cue
var configSchema string

// FileConfig is a config file after defaults are applied.
type FileConfig struct {
	Source               string
	Target               string
	WorkDir              string
	Driver               string
	DryRun               bool
	HeaderToken          string
	MaxUnresolvedPercent int
	NormalizeTitles      bool
}

// DefaultFileConfig is the configuration used when no file is given.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Driver:      store.DefaultDriver,
		HeaderToken: engine.DefaultHeaderToken,
	}
}

// ConfigError reports an invalid config file, with the CUE position when
// one is known.
type ConfigError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ConfigError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadConfig reads a CUE config file and validates it against #Config.
// Unknown fields are rejected.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	file := ctx.CompileBytes(data, cue.Filename(path))
	if err := file.Err(); err != nil {
		return nil, formatCUEError(err, path)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, path)
	}

	cfg := DefaultFileConfig()
	strs := []struct {
		field string
		dst   *string
	}{
		{"source", &cfg.Source},
		{"target", &cfg.Target},
		{"work_dir", &cfg.WorkDir},
		{"driver", &cfg.Driver},
		{"header_token", &cfg.HeaderToken},
	}
	for _, s := range strs {
		f, ok := lookup(v, s.field)
		if !ok {
			continue
		}
		if *s.dst, err = f.String(); err != nil {
			return nil, formatCUEError(err, path)
		}
	}

	bools := []struct {
		field string
		dst   *bool
	}{
		{"dry_run", &cfg.DryRun},
		{"normalize_titles", &cfg.NormalizeTitles},
	}
	for _, b := range bools {
		f, ok := lookup(v, b.field)
		if !ok {
			continue
		}
		if *b.dst, err = f.Bool(); err != nil {
			return nil, formatCUEError(err, path)
		}
	}

	if f, ok := lookup(v, "max_unresolved_percent"); ok {
		n, err := f.Int64()
		if err != nil {
			return nil, formatCUEError(err, path)
		}
		cfg.MaxUnresolvedPercent = int(n)
	}

	return cfg, nil
}

// lookup returns the concrete value of a field, resolving defaults.
// Absent optional fields report false.
func lookup(v cue.Value, field string) (cue.Value, bool) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return f, false
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	return f, f.IsConcrete()
}

// formatCUEError extracts position info from CUE errors. Positions inside
// the config file at path are preferred over positions in the schema.
func formatCUEError(err error, path string) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Disjunction failures wrap their causes and the summary error carries
	// no position, so look through every error.
	var fallback *ConfigError
	for _, e := range errs {
		for _, pos := range errors.Positions(e) {
			cfgErr := &ConfigError{Field: "config", Message: e.Error(), Pos: pos}
			if pos.Filename() == path {
				return cfgErr
			}
			if fallback == nil {
				fallback = cfgErr
			}
		}
	}
	if fallback != nil {
		return fallback
	}
	return &ConfigError{Field: "config", Message: errs[0].Error()}
}
