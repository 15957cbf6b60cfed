package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchgraft/internal/fixture"
	"github.com/roach88/watchgraft/internal/ir"
)

// TestScenarios runs every scenario file and compares the reconciled
// target against its golden file.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func movieScenario() *Scenario {
	return &Scenario{
		Name:        "movie",
		Description: "one movie watch",
		Source: fixture.Library{
			Accounts: []ir.AccountRecord{{ID: 1, Name: "alice"}},
			Views: []fixture.View{
				{AccountID: 1, Type: ir.TypeMovie, Title: "Heat", ViewedAt: ir.Int64(1500)},
			},
		},
		Target: fixture.Library{
			Items: []fixture.Item{{ID: 20, Type: ir.TypeMovie, GUID: "plex://movie/heat", Title: "Heat"}},
		},
	}
}

func TestRun_Success(t *testing.T) {
	s := movieScenario()
	s.Assertions = []Assertion{
		{Type: AssertFinalState, Table: "metadata_item_settings", Where: map[string]any{"guid": "plex://movie/heat"}, Expect: map[string]any{"account_id": 1, "view_count": 1}},
		{Type: AssertIdempotent},
	}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.ErrorCode)
	require.NotNil(t, result.Report)
	assert.Equal(t, DefaultRunID, result.Report.RunID)
	assert.NotEqual(t, result.BeforeDigest, result.AfterDigest)
	assert.Len(t, result.Lines, 4, "account, item, view, setting")
}

func TestRun_FixedRunID(t *testing.T) {
	s := movieScenario()
	s.RunID = "run-42"
	s.Assertions = []Assertion{{Type: AssertRowCount, Table: "accounts", Count: 1}}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "run-42", result.Report.RunID)
}

func TestRun_ExpectedErrorButSucceeded(t *testing.T) {
	s := movieScenario()
	s.Expect = &ExpectClause{Error: "APPLY_FAILED"}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"expected error APPLY_FAILED, run succeeded"}, result.Errors)
}

func TestRun_UnexpectedFailure(t *testing.T) {
	s := movieScenario()
	s.Config.FailAtStep = "accounts"
	s.Assertions = []Assertion{{Type: AssertUnchanged}}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1, "unchanged still holds")
	assert.Contains(t, result.Errors[0], "run failed: APPLY_FAILED")
	assert.Contains(t, result.Errors[0], "injected failure")
	assert.Equal(t, "APPLY_FAILED", result.ErrorCode)
}

func TestRun_WrongErrorCode(t *testing.T) {
	s := movieScenario()
	s.Config.FailAtStep = "view-state"
	s.Expect = &ExpectClause{Error: "UNRESOLVED_THRESHOLD"}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected error UNRESOLVED_THRESHOLD, got: APPLY_FAILED")
}

func TestRun_ReportMismatch(t *testing.T) {
	s := movieScenario()
	s.Expect = &ExpectClause{Report: map[string]any{"resolved": 2}}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "resolved = 2")
}

func TestRun_FailedAssertionsCollected(t *testing.T) {
	s := movieScenario()
	s.Assertions = []Assertion{
		{Type: AssertUnchanged},
		{Type: AssertRowCount, Table: "metadata_item_views", Count: 5},
	}

	result, err := Run(s, t.TempDir())
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_ReplacesExistingStores(t *testing.T) {
	dir := t.TempDir()
	s := movieScenario()
	s.Assertions = []Assertion{{Type: AssertRowCount, Table: "metadata_item_views", Count: 1}}

	for range 2 {
		result, err := Run(s, dir)
		require.NoError(t, err)
		assert.True(t, result.Pass, result.Errors)
	}
}

func TestRenderLines(t *testing.T) {
	assert.Equal(t, "", renderLines(nil))
	assert.Equal(t, "a\nb\n", renderLines([]string{"a", "b"}))
}
