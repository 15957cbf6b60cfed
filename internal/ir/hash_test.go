package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestDeterminism(t *testing.T) {
	rows := []Object{
		{"id": Int(1), "name": Str("alice")},
		{"id": Int(2), "name": Str("bob")},
	}

	d1, err := Digest(DomainState, rows)
	require.NoError(t, err)
	d2, err := Digest(DomainState, rows)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestDigestOrderSensitive(t *testing.T) {
	a := Object{"id": Int(1)}
	b := Object{"id": Int(2)}

	d1, err := Digest(DomainState, []Object{a, b})
	require.NoError(t, err)
	d2, err := Digest(DomainState, []Object{b, a})
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestDigestDomainSeparation(t *testing.T) {
	rows := []Object{{"id": Int(1)}}

	d1, err := Digest(DomainState, rows)
	require.NoError(t, err)
	d2, err := Digest(DomainFacts, rows)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}

func TestDigestEmpty(t *testing.T) {
	d, err := Digest(DomainState, nil)
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainState, nil), d)
}

func TestFactsDigestChangesWithCount(t *testing.T) {
	f := AggregatedFact{Key: FactKey{AccountID: 1, GUID: "x"}, Count: 1, LastViewedAt: 10}
	d1, err := FactsDigest([]AggregatedFact{f})
	require.NoError(t, err)

	f.Count = 2
	d2, err := FactsDigest([]AggregatedFact{f})
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}
