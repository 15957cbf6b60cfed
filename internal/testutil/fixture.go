// Package testutil provides test helpers over fixture stores and
// deterministic generators.
package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchgraft/internal/fixture"
)

// Fixture row types, re-exported for test brevity.
type (
	Library = fixture.Library
	Item    = fixture.Item
	View    = fixture.View
	Setting = fixture.Setting
)

// BuildStore creates dir/name as a fixture store holding lib and returns
// its path.
func BuildStore(t testing.TB, dir, name string, lib Library) string {
	t.Helper()
	path, err := fixture.Write(dir, name, lib)
	require.NoError(t, err)
	return path
}

// OpenDB opens a fixture store for direct assertions. It is closed when the
// test ends.
func OpenDB(t testing.TB, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// QueryInt runs a single-value integer query.
func QueryInt(t testing.TB, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.QueryRow(query, args...).Scan(&n), query)
	return n
}

