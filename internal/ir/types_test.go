package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItemType(t *testing.T) {
	tests := []struct {
		in   string
		want ItemType
	}{
		{"movie", TypeMovie},
		{"Episode", TypeEpisode},
		{" track ", TypeTrack},
		{"4", TypeEpisode},
		{"42", ItemType(42)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItemType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseItemType("podcast")
	require.Error(t, err)
}

func TestItemTypeString(t *testing.T) {
	assert.Equal(t, "episode", TypeEpisode.String())
	assert.Equal(t, "album", TypeAlbum.String())
	assert.Equal(t, "42", ItemType(42).String())
}

func TestResolvedEventApplicable(t *testing.T) {
	r := ResolvedEvent{}
	assert.False(t, r.Resolved())
	assert.False(t, r.Applicable())

	r.Target = "plex://episode/1"
	assert.True(t, r.Resolved())
	assert.False(t, r.Applicable())

	r.Attributed = true
	assert.True(t, r.Applicable())
}

func TestItemTypeTextRoundTrip(t *testing.T) {
	b, err := TypeTrack.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "track", string(b))

	var got ItemType
	require.NoError(t, got.UnmarshalText(b))
	assert.Equal(t, TypeTrack, got)
}
