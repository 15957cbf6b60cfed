package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchgraft/internal/ir"
	"github.com/roach88/watchgraft/internal/testutil"
)

func TestSnapshot_Lines(t *testing.T) {
	lib := testutil.Library{
		Accounts: []ir.AccountRecord{{ID: 2, Name: "bob"}, {ID: 1, Name: "alice"}},
		Items: []testutil.Item{
			{ID: 10, Type: ir.TypeMovie, GUID: "movie://m", Title: "M", AddedAt: ir.Int64(42)},
			{ID: 11, Type: ir.TypeMovie, GUID: "movie://n", Title: "N"},
		},
		Views: []testutil.View{
			{AccountID: 2, GUID: "movie://m", Type: ir.TypeMovie, ViewedAt: ir.Int64(9), ViewType: "1"},
			{AccountID: 1, GUID: "movie://m", Type: ir.TypeMovie, ViewedAt: ir.Int64(8), DeviceID: ir.Int64(4)},
		},
		Settings: []testutil.Setting{
			{AccountID: 1, GUID: "movie://m", ViewCount: 1, LastViewedAt: ir.Int64(8)},
		},
	}
	path := testutil.BuildStore(t, t.TempDir(), "lib.db", lib)
	s, err := OpenSource(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	lines, err := snap.Lines()
	require.NoError(t, err)
	assert.Equal(t, []string{
		`{"id":1,"name":"alice","table":"accounts"}`,
		`{"id":2,"name":"bob","table":"accounts"}`,
		`{"added_at":42,"guid":"movie://m","id":10,"metadata_type":1,"table":"metadata_items"}`,
		`{"guid":"movie://n","id":11,"metadata_type":1,"table":"metadata_items"}`,
		`{"account_id":1,"device_id":4,"guid":"movie://m","metadata_type":1,"table":"metadata_item_views","view_type":"","viewed_at":8}`,
		`{"account_id":2,"guid":"movie://m","metadata_type":1,"table":"metadata_item_views","view_type":"1","viewed_at":9}`,
		`{"account_id":1,"guid":"movie://m","last_viewed_at":8,"table":"metadata_item_settings","view_count":1,"view_offset":0}`,
	}, lines)

	digest, err := snap.Digest()
	require.NoError(t, err)
	assert.Len(t, digest, 64)
	assert.Equal(t, strings.ToLower(digest), digest)
}

func TestSnapshot_IgnoresSurrogateIDs(t *testing.T) {
	views := []testutil.View{
		{AccountID: 1, GUID: "a", Type: ir.TypeMovie, ViewedAt: ir.Int64(1)},
		{AccountID: 1, GUID: "b", Type: ir.TypeMovie, ViewedAt: ir.Int64(2)},
	}
	reversed := []testutil.View{views[1], views[0]}

	digestOf := func(vs []testutil.View) string {
		path := testutil.BuildStore(t, t.TempDir(), "lib.db", testutil.Library{Views: vs})
		s, err := OpenSource(context.Background(), path)
		require.NoError(t, err)
		defer s.Close()
		snap, err := s.Snapshot(context.Background())
		require.NoError(t, err)
		d, err := snap.Digest()
		require.NoError(t, err)
		return d
	}

	assert.Equal(t, digestOf(views), digestOf(reversed))
}
