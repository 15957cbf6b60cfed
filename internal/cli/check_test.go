package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchgraft/internal/testutil"
)

func execCheck(t *testing.T, root *RootOptions, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewCheckCommand(root)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckCommand_OK(t *testing.T) {
	_, source, target := libraries(t)

	out, err := execCheck(t, &RootOptions{Format: "text"}, "--source", source, "--target", target)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ source "+source)
	assert.Contains(t, out, "✓ target "+target)
}

func TestCheckCommand_JSON(t *testing.T) {
	_, source, target := libraries(t)

	out, err := execCheck(t, &RootOptions{Format: "json"}, "--source", source, "--target", target)
	require.NoError(t, err)

	var response struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response), out)
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, CheckResult{Source: source, Target: target, Driver: "sqlite3"}, response.Data)
}

func TestCheckCommand_MissingTables(t *testing.T) {
	dir, source, _ := libraries(t)
	other := filepath.Join(dir, "other.db")
	db := testutil.OpenDB(t, other)
	_, err := db.Exec("CREATE TABLE unrelated (id INTEGER)")
	require.NoError(t, err)

	out, err := execCheck(t, &RootOptions{Format: "text"}, "--source", source, "--target", other)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "TARGET_UNAVAILABLE")
	assert.Contains(t, out, "✗")
}

func TestCheckCommand_MissingSourceJSON(t *testing.T) {
	dir, _, target := libraries(t)

	out, err := execCheck(t, &RootOptions{Format: "json"},
		"--source", filepath.Join(dir, "nope.db"), "--target", target)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response), out)
	require.NotNil(t, response.Error)
	assert.Equal(t, "SOURCE_UNAVAILABLE", response.Error.Code)
}

func TestCheckCommand_RequiresBothStores(t *testing.T) {
	_, source, _ := libraries(t)

	_, err := execCheck(t, &RootOptions{Format: "text"}, "--source", source)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--source and --target are required")
}
