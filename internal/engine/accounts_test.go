package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/watchgraft/internal/ir"
)

func TestReconcileAccounts(t *testing.T) {
	source := []ir.AccountRecord{
		{ID: 1, Name: "alice"},
		{ID: 2, Name: "bob"},
	}
	target := []ir.AccountRecord{
		{ID: 1, Name: "admin"}, // replaced by id
		{ID: 5, Name: "bob"},   // same name, different id
		{ID: 6, Name: "name"},  // header artifact
		{ID: 7, Name: "dave"},  // untouched
	}

	plan := ReconcileAccounts(source, target, DefaultHeaderToken)

	assert.Equal(t, []int64{5}, plan.Remove)
	assert.Equal(t, source, plan.Upserts)
	assert.Equal(t, "name", plan.HeaderToken)
	assert.Equal(t, []ir.AccountRecord{
		{ID: 1, Name: "alice"},
		{ID: 2, Name: "bob"},
		{ID: 7, Name: "dave"},
	}, plan.Merged)
}

func TestReconcileAccounts_HeaderTokenInSource(t *testing.T) {
	plan := ReconcileAccounts(
		[]ir.AccountRecord{{ID: 1, Name: "name"}, {ID: 2, Name: "erin"}},
		nil,
		"name",
	)
	assert.Equal(t, []ir.AccountRecord{{ID: 2, Name: "erin"}}, plan.Merged)
	assert.Len(t, plan.Upserts, 2, "upserted, then removed by apply")
}

func TestReconcileAccounts_NoHeaderToken(t *testing.T) {
	plan := ReconcileAccounts(nil, []ir.AccountRecord{{ID: 6, Name: "name"}}, "")
	assert.Equal(t, []ir.AccountRecord{{ID: 6, Name: "name"}}, plan.Merged)
	assert.Empty(t, plan.Remove)
}

func TestReconcileAccounts_NamesStayUnique(t *testing.T) {
	plan := ReconcileAccounts(
		[]ir.AccountRecord{{ID: 10, Name: "alice"}},
		[]ir.AccountRecord{{ID: 1, Name: "alice"}, {ID: 2, Name: "alice"}},
		"name",
	)
	assert.Equal(t, []int64{1, 2}, plan.Remove)

	seen := map[string]bool{}
	for _, a := range plan.Merged {
		assert.False(t, seen[a.Name], "duplicate name %q", a.Name)
		seen[a.Name] = true
	}
}

func TestReconcileAccounts_DuplicateSourceNames(t *testing.T) {
	plan := ReconcileAccounts(
		[]ir.AccountRecord{{ID: 2, Name: "alice"}, {ID: 1, Name: "alice"}, {ID: 3, Name: "bob"}},
		[]ir.AccountRecord{{ID: 1, Name: "alice"}},
		"name",
	)
	assert.Empty(t, plan.Remove, "target id 1 already holds the winning pair")
	assert.Equal(t, []ir.AccountRecord{{ID: 1, Name: "alice"}, {ID: 3, Name: "bob"}}, plan.Upserts)
	assert.Equal(t, []ir.AccountRecord{{ID: 1, Name: "alice"}, {ID: 3, Name: "bob"}}, plan.Merged)

	// The dropped account's history still lands on alice by name.
	dir := NewAccountDirectory(plan.Merged)
	id, tier, ok := dir.Attribute(ir.HistoricalEvent{AccountID: 2, AccountName: "alice"})
	assert.True(t, ok)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "name", tier)
}

func TestReconcileAccounts_DuplicateSourceNameDisplacesTarget(t *testing.T) {
	plan := ReconcileAccounts(
		[]ir.AccountRecord{{ID: 4, Name: "carol"}, {ID: 9, Name: "carol"}},
		[]ir.AccountRecord{{ID: 9, Name: "zed"}, {ID: 5, Name: "carol"}},
		"name",
	)
	assert.Equal(t, []int64{5}, plan.Remove)
	assert.Equal(t, []ir.AccountRecord{{ID: 4, Name: "carol"}}, plan.Upserts)
	assert.Equal(t, []ir.AccountRecord{{ID: 4, Name: "carol"}, {ID: 9, Name: "zed"}}, plan.Merged)
}

func TestAccountDirectory_Cascade(t *testing.T) {
	dir := NewAccountDirectory([]ir.AccountRecord{
		{ID: 4, Name: "carol"},
		{ID: 2, Name: "bob"},
		{ID: 1, Name: ""},
	})

	tests := []struct {
		name     string
		ev       ir.HistoricalEvent
		wantID   int64
		wantTier string
	}{
		{"by id", ir.HistoricalEvent{AccountID: 4, AccountName: "bob"}, 4, "id"},
		{"by name", ir.HistoricalEvent{AccountID: 99, AccountName: "bob"}, 2, "name"},
		{"fallback", ir.HistoricalEvent{AccountID: 99, AccountName: "zed"}, 2, "fallback"},
		{"empty-name id skipped", ir.HistoricalEvent{AccountID: 1}, 2, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, tier, ok := dir.Attribute(tt.ev)
			assert.True(t, ok)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestAccountDirectory_EmptySet(t *testing.T) {
	dir := NewAccountDirectory(nil)
	_, _, ok := dir.Attribute(ir.HistoricalEvent{AccountID: 1, AccountName: "alice"})
	assert.False(t, ok)
}

func TestAccountDirectory_CustomCascade(t *testing.T) {
	dir := NewAccountDirectory([]ir.AccountRecord{{ID: 3, Name: "alice"}}, ByAccountName)

	_, _, ok := dir.Attribute(ir.HistoricalEvent{AccountID: 3})
	assert.False(t, ok, "no id tier and no fallback")

	id, tier, ok := dir.Attribute(ir.HistoricalEvent{AccountName: "alice"})
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "name", tier)
}

func TestAccountResolvers_Individually(t *testing.T) {
	dir := NewAccountDirectory([]ir.AccountRecord{{ID: 8, Name: "frank"}})

	_, ok := ByAccountID.Resolve(dir, ir.HistoricalEvent{AccountID: 9})
	assert.False(t, ok)
	_, ok = ByAccountName.Resolve(dir, ir.HistoricalEvent{})
	assert.False(t, ok, "empty recorded name never matches")
	id, ok := FirstNamedAccount.Resolve(dir, ir.HistoricalEvent{})
	assert.True(t, ok)
	assert.Equal(t, int64(8), id)
}
