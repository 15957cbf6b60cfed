package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/fixture"
	"github.com/roach88/watchgraft/internal/store"
)

// DefaultRunID is used when a scenario does not fix its own.
const DefaultRunID = "test-run-default"

// fixedTime stamps every staged manifest a harness run writes.
var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// errInjected is returned by the fail_at_step hook.
var errInjected = errors.New("injected failure")

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when the outcome and every assertion matched.
	Pass bool `json:"pass"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is the run report, nil when the run failed.
	Report *engine.Report `json:"report,omitempty"`

	// ErrorCode is the stage error code of a failed run.
	ErrorCode string `json:"error_code,omitempty"`

	// Lines are the reconciled target rows as canonical JSON.
	Lines []string `json:"-"`

	// BeforeDigest and AfterDigest hash the target around the run.
	BeforeDigest string `json:"before_digest"`
	AfterDigest  string `json:"after_digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

type fixedRunID string

func (id fixedRunID) Generate() string { return string(id) }

// Run executes a scenario in workDir and returns the result.
//
// workDir receives the two fixture stores; any previous stores there are
// replaced. A failing assertion is reported in the result, not as an
// error. The error return is reserved for problems building or reading the
// fixtures themselves.
func Run(scenario *Scenario, workDir string) (*Result, error) {
	ctx := context.Background()

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	sourcePath, err := fixture.Write(workDir, "source.db", scenario.Source)
	if err != nil {
		return nil, fmt.Errorf("build source: %w", err)
	}
	targetPath, err := fixture.Write(workDir, "target.db", scenario.Target)
	if err != nil {
		return nil, fmt.Errorf("build target: %w", err)
	}

	result := NewResult()
	before, err := snapshot(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	if result.BeforeDigest, err = before.Digest(); err != nil {
		return nil, err
	}

	eng, err := newEngine(scenario, sourcePath, targetPath, true)
	if err != nil {
		return nil, err
	}
	report, runErr := eng.Run(ctx)
	result.Report = report
	var se *engine.StageError
	if errors.As(runErr, &se) {
		result.ErrorCode = string(se.Code)
	}
	checkOutcome(result, scenario.Expect, report, runErr)

	after, err := snapshot(ctx, targetPath)
	if err != nil {
		return nil, err
	}
	if result.AfterDigest, err = after.Digest(); err != nil {
		return nil, err
	}
	if result.Lines, err = after.Lines(); err != nil {
		return nil, err
	}

	for i, assertion := range scenario.Assertions {
		var err error
		switch assertion.Type {
		case AssertFinalState:
			err = assertFinalState(after, assertion)
		case AssertRowCount:
			err = assertRowCount(after, assertion)
		case AssertUnchanged:
			err = assertUnchanged(result.BeforeDigest, result.AfterDigest)
		case AssertIdempotent:
			err = assertIdempotent(ctx, scenario, sourcePath, targetPath, result.AfterDigest)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}
		if err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

// newEngine builds the engine for a scenario. The failure hook is only
// installed for the scenario's own run, never for an idempotence rerun.
func newEngine(scenario *Scenario, sourcePath, targetPath string, withHook bool) (*engine.Engine, error) {
	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	opts := []engine.Option{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRunIDGenerator(fixedRunID(runID)),
		engine.WithClock(func() time.Time { return fixedTime }),
	}
	if withHook && scenario.Config.FailAtStep != "" {
		failAt, err := store.ParseApplyStep(scenario.Config.FailAtStep)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithStepHook(func(step store.ApplyStep) error {
			if step == failAt {
				return errInjected
			}
			return nil
		}))
	}

	cfg := engine.Config{
		SourcePath:           sourcePath,
		TargetPath:           targetPath,
		DryRun:               scenario.Config.DryRun,
		HeaderToken:          scenario.Config.HeaderToken,
		MaxUnresolvedPercent: scenario.Config.MaxUnresolvedPercent,
		NormalizeTitles:      scenario.Config.NormalizeTitles,
	}
	return engine.New(cfg, opts...), nil
}

func snapshot(ctx context.Context, path string) (*store.Snapshot, error) {
	st, err := store.OpenSource(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open target for snapshot: %w", err)
	}
	defer st.Close()

	snap, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot target: %w", err)
	}
	return snap, nil
}

// checkOutcome compares the run error and report against the expect clause.
func checkOutcome(result *Result, expect *ExpectClause, report *engine.Report, runErr error) {
	wantCode := ""
	if expect != nil {
		wantCode = expect.Error
	}

	switch {
	case wantCode == "" && runErr != nil:
		result.AddError(fmt.Sprintf("run failed: %v", runErr))
		return
	case wantCode != "" && runErr == nil:
		result.AddError(fmt.Sprintf("expected error %s, run succeeded", wantCode))
		return
	case wantCode != "" && result.ErrorCode != wantCode:
		result.AddError(fmt.Sprintf("expected error %s, got: %v", wantCode, runErr))
		return
	}

	if expect == nil || len(expect.Report) == 0 {
		return
	}
	if report == nil {
		result.AddError("expect.report set but the run produced no report")
		return
	}
	if err := assertReport(report, expect.Report); err != nil {
		result.AddError(err.Error())
	}
}
