package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/watchgraft/internal/ir"
)

// DefaultHeaderToken is the account name left behind when a CSV header row
// was imported as data.
const DefaultHeaderToken = "name"

// AccountPlan is the account half of an apply: what to write, and the
// account set the target will hold afterwards.
type AccountPlan struct {
	// Remove lists target ids that hold a source account's name under a
	// different id. Deleting them keeps names unique.
	Remove []int64

	// Upserts are the source accounts, inserted or replaced by id. Only
	// one account per name is kept.
	Upserts []ir.AccountRecord

	// HeaderToken rows are deleted after upserting.
	HeaderToken string

	// Merged is the resulting target account set, ordered by id.
	Merged []ir.AccountRecord
}

// ReconcileAccounts merges source accounts into the target's account set.
//
// Source (id, name) pairs are kept as is. When several source accounts
// share a name, the lowest id wins and the others are dropped; their
// history is attributed by name. Target rows are kept unless they are
// replaced by id, hold a source name under another id, or carry the
// header token as their name.
func ReconcileAccounts(source, target []ir.AccountRecord, headerToken string) AccountPlan {
	plan := AccountPlan{HeaderToken: headerToken}

	sourceByName := make(map[string]int64, len(source))
	for _, a := range source {
		if id, ok := sourceByName[a.Name]; !ok || a.ID < id {
			sourceByName[a.Name] = a.ID
		}
	}
	winners := make([]ir.AccountRecord, 0, len(source))
	sourceIDs := make(map[int64]bool, len(source))
	for _, a := range source {
		if sourceByName[a.Name] != a.ID {
			continue
		}
		winners = append(winners, a)
		sourceIDs[a.ID] = true
	}

	merged := make(map[int64]ir.AccountRecord, len(source)+len(target))
	for _, a := range target {
		if id, ok := sourceByName[a.Name]; ok && id != a.ID {
			plan.Remove = append(plan.Remove, a.ID)
			continue
		}
		if !sourceIDs[a.ID] {
			merged[a.ID] = a
		}
	}

	plan.Upserts = winners
	for _, a := range winners {
		merged[a.ID] = a
	}

	for _, a := range merged {
		if headerToken != "" && a.Name == headerToken {
			continue
		}
		plan.Merged = append(plan.Merged, a)
	}
	slices.SortFunc(plan.Merged, func(a, b ir.AccountRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})
	slices.Sort(plan.Remove)
	return plan
}

// AccountResolver is one tier of the attribution cascade. Resolve returns
// the target account id for an event, or false to defer to the next tier.
type AccountResolver struct {
	Name    string
	Resolve func(dir *AccountDirectory, ev ir.HistoricalEvent) (int64, bool)
}

// ByAccountID attributes an event to the target account with its source id.
var ByAccountID = AccountResolver{
	Name: "id",
	Resolve: func(dir *AccountDirectory, ev ir.HistoricalEvent) (int64, bool) {
		_, ok := dir.byID[ev.AccountID]
		return ev.AccountID, ok
	},
}

// ByAccountName attributes an event to the target account with the
// display name recorded in the source.
var ByAccountName = AccountResolver{
	Name: "name",
	Resolve: func(dir *AccountDirectory, ev ir.HistoricalEvent) (int64, bool) {
		if ev.AccountName == "" {
			return 0, false
		}
		id, ok := dir.byName[ev.AccountName]
		return id, ok
	},
}

// FirstNamedAccount attributes any event to the lowest-id account with a
// non-empty name. Orphaned history lands on an arbitrary account rather
// than being dropped.
var FirstNamedAccount = AccountResolver{
	Name: "fallback",
	Resolve: func(dir *AccountDirectory, _ ir.HistoricalEvent) (int64, bool) {
		if dir.first == nil {
			return 0, false
		}
		return dir.first.ID, true
	},
}

// DefaultAccountCascade is id, then name, then fallback.
func DefaultAccountCascade() []AccountResolver {
	return []AccountResolver{ByAccountID, ByAccountName, FirstNamedAccount}
}

// AccountDirectory attributes events to target accounts.
type AccountDirectory struct {
	byID    map[int64]string
	byName  map[string]int64
	first   *ir.AccountRecord
	cascade []AccountResolver
}

// NewAccountDirectory indexes accounts. Accounts with empty names are
// ignored. With no cascade, DefaultAccountCascade is used.
func NewAccountDirectory(accounts []ir.AccountRecord, cascade ...AccountResolver) *AccountDirectory {
	if len(cascade) == 0 {
		cascade = DefaultAccountCascade()
	}
	dir := &AccountDirectory{
		byID:    make(map[int64]string, len(accounts)),
		byName:  make(map[string]int64, len(accounts)),
		cascade: cascade,
	}
	for _, a := range accounts {
		if a.Name == "" {
			continue
		}
		dir.byID[a.ID] = a.Name
		if _, dup := dir.byName[a.Name]; !dup {
			dir.byName[a.Name] = a.ID
		}
		if dir.first == nil || a.ID < dir.first.ID {
			acct := a
			dir.first = &acct
		}
	}
	return dir
}

// Attribute runs the cascade and returns the account id together with
// the name of the tier that produced it.
func (d *AccountDirectory) Attribute(ev ir.HistoricalEvent) (id int64, tier string, ok bool) {
	for _, r := range d.cascade {
		if id, ok := r.Resolve(d, ev); ok {
			return id, r.Name, true
		}
	}
	return 0, "", false
}
