package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/watchgraft/internal/ir"
)

// Aggregator folds applicable events into one fact per (account, item).
type Aggregator struct {
	facts map[ir.FactKey]*ir.AggregatedFact
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{facts: make(map[ir.FactKey]*ir.AggregatedFact)}
}

// Add folds r in. Events that are unresolved or unattributed are ignored;
// Add reports whether r was counted.
func (a *Aggregator) Add(r ir.ResolvedEvent) bool {
	if !r.Applicable() {
		return false
	}
	key := ir.FactKey{AccountID: r.AccountID, GUID: r.Target}
	f, ok := a.facts[key]
	if !ok {
		a.facts[key] = &ir.AggregatedFact{Key: key, Count: 1, LastViewedAt: r.Event.ViewedAt}
		return true
	}
	f.Count++
	f.LastViewedAt = max(f.LastViewedAt, r.Event.ViewedAt)
	return true
}

// Len returns the number of distinct keys.
func (a *Aggregator) Len() int {
	return len(a.facts)
}

// Facts returns the facts ordered by account id, then guid.
func (a *Aggregator) Facts() []ir.AggregatedFact {
	out := make([]ir.AggregatedFact, 0, len(a.facts))
	for _, f := range a.facts {
		out = append(out, *f)
	}
	slices.SortFunc(out, compareFacts)
	return out
}

func compareFacts(x, y ir.AggregatedFact) int {
	return cmp.Or(
		cmp.Compare(x.Key.AccountID, y.Key.AccountID),
		cmp.Compare(x.Key.GUID, y.Key.GUID),
	)
}

// Aggregate folds events in one call.
func Aggregate(events []ir.ResolvedEvent) []ir.AggregatedFact {
	agg := NewAggregator()
	for _, r := range events {
		agg.Add(r)
	}
	return agg.Facts()
}
