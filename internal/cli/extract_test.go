package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchgraft/internal/stage"
)

func execExtract(t *testing.T, root *RootOptions, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewExtractCommand(root)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExtractCommand_StagesSource(t *testing.T) {
	dir, source, target := libraries(t)
	stageDir := filepath.Join(dir, "stage")
	before := digestOf(t, target)

	out, err := execExtract(t, &RootOptions{Format: "text"}, "--source", source, "--work-dir", stageDir)
	require.NoError(t, err)
	assert.Contains(t, out, "extracted:  1 accounts, 3 events, 1 added dates")
	assert.Contains(t, out, "staged:     "+stageDir)
	assert.NotContains(t, out, "Committed")

	_, m, err := stage.Open(stageDir)
	require.NoError(t, err)
	assert.Equal(t, source, m.Source)
	assert.Equal(t, before, digestOf(t, target), "extract never touches a target")
}

func TestExtractCommand_JSON(t *testing.T) {
	dir, source, _ := libraries(t)

	out, err := execExtract(t, &RootOptions{Format: "json"},
		"--source", source, "--work-dir", filepath.Join(dir, "stage"))
	require.NoError(t, err)

	var response struct {
		Status string `json:"status"`
		Data   struct {
			Events   int    `json:"events"`
			StageDir string `json:"stage_dir"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &response), out)
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 3, response.Data.Events)
	assert.Equal(t, filepath.Join(dir, "stage"), response.Data.StageDir)
}

func TestExtractCommand_Errors(t *testing.T) {
	dir, source, _ := libraries(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantMsg  string
	}{
		{"no source", []string{"--work-dir", dir}, ExitCommandError, "--source is required"},
		{"no work dir", []string{"--source", source}, ExitCommandError, "--work-dir is required"},
		{"missing source", []string{"--source", filepath.Join(dir, "nope.db"), "--work-dir", dir}, ExitCommandError, "source store unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execExtract(t, &RootOptions{Format: "text"}, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
