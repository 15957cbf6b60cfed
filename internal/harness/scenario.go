package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/fixture"
	"github.com/roach88/watchgraft/internal/store"
)

// Scenario defines one merge run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Source is the old library.
	Source fixture.Library `yaml:"source"`

	// Target is the rebuilt library before the merge.
	Target fixture.Library `yaml:"target"`

	// Config selects the run policy.
	Config RunConfig `yaml:"config,omitempty"`

	// Expect checks the run outcome. Nil expects success.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions validate the reconciled target.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// RunConfig mirrors the engine options a scenario may set.
type RunConfig struct {
	DryRun               bool   `yaml:"dry_run"`
	HeaderToken          string `yaml:"header_token"`
	MaxUnresolvedPercent int    `yaml:"max_unresolved_percent"`
	NormalizeTitles      bool   `yaml:"normalize_titles"`

	// FailAtStep injects a failure after the named apply step
	// (accounts, added-dates, clear-views, insert-views, view-state).
	FailAtStep string `yaml:"fail_at_step"`
}

// ExpectClause specifies the expected run outcome.
type ExpectClause struct {
	// Error is the expected stage error code, e.g. "APPLY_FAILED".
	// Empty expects the run to succeed.
	Error string `yaml:"error,omitempty"`

	// Report is a subset of the run report, keyed by its JSON field names.
	Report map[string]any `yaml:"report,omitempty"`
}

// Assertion validates the reconciled target.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": one row matches where, and its fields match expect
	// - "row_count": count rows match where
	// - "unchanged": the run left the target untouched
	// - "idempotent": a second run leaves the target untouched
	Type string `yaml:"type"`

	// Table is the target table (final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where filters rows by column value. All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match; only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of matching rows (row_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState = "final_state"
	AssertRowCount   = "row_count"
	AssertUnchanged  = "unchanged"
	AssertIdempotent = "idempotent"
)

var knownTables = map[string]bool{
	"accounts":               true,
	"metadata_items":         true,
	"metadata_item_views":    true,
	"metadata_item_settings": true,
}

var knownCodes = map[string]bool{
	string(engine.ErrCodeSourceUnavailable):   true,
	string(engine.ErrCodeTargetUnavailable):   true,
	string(engine.ErrCodeApplyFailed):         true,
	string(engine.ErrCodeUnresolvedThreshold): true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 && s.Expect == nil {
		return fmt.Errorf("expect or a non-empty assertions list is required")
	}

	if s.Config.FailAtStep != "" {
		if _, err := store.ParseApplyStep(s.Config.FailAtStep); err != nil {
			return fmt.Errorf("config.fail_at_step: %w", err)
		}
	}
	if s.Config.MaxUnresolvedPercent < 0 || s.Config.MaxUnresolvedPercent > 100 {
		return fmt.Errorf("config.max_unresolved_percent must be between 0 and 100")
	}
	if s.Expect != nil && s.Expect.Error != "" && !knownCodes[s.Expect.Error] {
		return fmt.Errorf("expect.error: unknown error code %q", s.Expect.Error)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if !knownTables[a.Table] {
			return fmt.Errorf("assertions[%d]: unknown table %q for final_state", index, a.Table)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if !knownTables[a.Table] {
			return fmt.Errorf("assertions[%d]: unknown table %q for row_count", index, a.Table)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertUnchanged, AssertIdempotent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
