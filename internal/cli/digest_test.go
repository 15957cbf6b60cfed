package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestCommand_Stable(t *testing.T) {
	_, _, target := libraries(t)

	first := digestOf(t, target)
	assert.Equal(t, first, digestOf(t, target))
	assert.Len(t, strings.TrimSpace(first), 64)
}

func TestDigestCommand_SameHistorySameDigest(t *testing.T) {
	dir, _, target := libraries(t)
	_, _, twin := libraries(t)
	assert.Equal(t, digestOf(t, target), digestOf(t, twin))
	assert.NotEqual(t, digestOf(t, target), digestOf(t, filepath.Join(dir, "source.db")))
}

func TestDigestCommand_Rows(t *testing.T) {
	_, _, target := libraries(t)

	out := &bytes.Buffer{}
	cmd := NewDigestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--db", target, "--rows"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		`{"id":1,"name":"admin","table":"accounts"}`,
		`{"id":2,"name":"name","table":"accounts"}`,
		`{"guid":"plex://movie/heat","id":20,"metadata_type":1,"table":"metadata_items"}`,
	}, lines[:len(lines)-1])
	assert.Len(t, lines[len(lines)-1], 64)
}

func TestDigestCommand_JSON(t *testing.T) {
	_, _, target := libraries(t)

	out := &bytes.Buffer{}
	cmd := NewDigestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--db", target})
	require.NoError(t, cmd.Execute())

	var response struct {
		Status string       `json:"status"`
		Data   DigestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, target, response.Data.Path)
	assert.Equal(t, 3, response.Data.Rows)
	assert.Empty(t, response.Data.Lines)
	assert.Equal(t, strings.TrimSpace(digestOf(t, target)), response.Data.Digest)
}

func TestDigestCommand_Errors(t *testing.T) {
	dir, _, _ := libraries(t)

	cmd := NewDigestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	cmd = NewDigestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db", filepath.Join(dir, "nope.db")})
	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "cannot open database")
}
