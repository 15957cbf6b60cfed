package stage

import (
	"github.com/roach88/watchgraft/internal/ir"
)

// Staged file names.
const (
	AccountsFile   = "accounts.tsv"
	EventsFile     = "events.tsv"
	AddedFile      = "added.tsv"
	ResolvedFile   = "resolved.tsv"
	AggregatedFile = "aggregated.tsv"
	ManifestFile   = "manifest.yaml"
)

var accountsTable = table[ir.AccountRecord]{
	file:    AccountsFile,
	columns: []string{"id", "name"},
	encode: func(a ir.AccountRecord) []string {
		return []string{fmtInt(a.ID), fmtStr(a.Name)}
	},
	decode: func(r row) (ir.AccountRecord, error) {
		a := ir.AccountRecord{ID: r.int(0), Name: r.str(1)}
		return a, r.err
	},
}

var eventColumns = []string{
	"account_id", "account_name", "guid", "metadata_type",
	"grandparent_title", "parent_title", "parent_index", "index", "title",
	"viewed_at", "device_id", "view_type",
}

func encodeEvent(ev ir.HistoricalEvent) []string {
	return []string{
		fmtInt(ev.AccountID),
		fmtStr(ev.AccountName),
		fmtStr(ev.GUID),
		fmtInt(int64(ev.Type)),
		fmtStr(ev.GrandparentTitle),
		fmtStr(ev.ParentTitle),
		fmtOptInt(ev.ParentIndex),
		fmtOptInt(ev.Index),
		fmtStr(ev.Title),
		fmtInt(ev.ViewedAt),
		fmtOptInt(ev.DeviceID),
		fmtStr(ev.ViewType),
	}
}

// decodeEvent reads the event columns starting at offset off.
func decodeEvent(r *row, off int) ir.HistoricalEvent {
	return ir.HistoricalEvent{
		AccountID:        r.int(off),
		AccountName:      r.str(off + 1),
		GUID:             r.str(off + 2),
		Type:             ir.ItemType(r.int(off + 3)),
		GrandparentTitle: r.str(off + 4),
		ParentTitle:      r.str(off + 5),
		ParentIndex:      r.optInt(off + 6),
		Index:            r.optInt(off + 7),
		Title:            r.str(off + 8),
		ViewedAt:         r.int(off + 9),
		DeviceID:         r.optInt(off + 10),
		ViewType:         r.str(off + 11),
	}
}

var eventsTable = table[ir.HistoricalEvent]{
	file:    EventsFile,
	columns: eventColumns,
	encode:  encodeEvent,
	decode: func(r row) (ir.HistoricalEvent, error) {
		ev := decodeEvent(&r, 0)
		return ev, r.err
	},
}

var addedTable = table[ir.AddedDateFact]{
	file:    AddedFile,
	columns: []string{"guid", "metadata_type", "added_at"},
	encode: func(f ir.AddedDateFact) []string {
		return []string{fmtStr(f.GUID), fmtInt(int64(f.Type)), fmtInt(f.AddedAt)}
	},
	decode: func(r row) (ir.AddedDateFact, error) {
		f := ir.AddedDateFact{
			GUID:    r.str(0),
			Type:    ir.ItemType(r.int(1)),
			AddedAt: r.int(2),
		}
		return f, r.err
	},
}

var resolvedTable = table[ir.ResolvedEvent]{
	file:    ResolvedFile,
	columns: append([]string{"target_guid", "target_account_id"}, eventColumns...),
	encode: func(re ir.ResolvedEvent) []string {
		account := Null
		if re.Attributed {
			account = fmtInt(re.AccountID)
		}
		return append([]string{fmtStr(re.Target), account}, encodeEvent(re.Event)...)
	},
	decode: func(r row) (ir.ResolvedEvent, error) {
		re := ir.ResolvedEvent{Target: r.str(0)}
		if acct := r.optInt(1); acct != nil {
			re.AccountID = *acct
			re.Attributed = true
		}
		re.Event = decodeEvent(&r, 2)
		return re, r.err
	},
}

var aggregatedTable = table[ir.AggregatedFact]{
	file:    AggregatedFile,
	columns: []string{"account_id", "guid", "view_count", "last_viewed_at"},
	encode: func(f ir.AggregatedFact) []string {
		return []string{fmtInt(f.Key.AccountID), fmtStr(f.Key.GUID), fmtInt(f.Count), fmtInt(f.LastViewedAt)}
	},
	decode: func(r row) (ir.AggregatedFact, error) {
		f := ir.AggregatedFact{
			Key:          ir.FactKey{AccountID: r.int(0), GUID: r.str(1)},
			Count:        r.int(2),
			LastViewedAt: r.int(3),
		}
		return f, r.err
	},
}
