package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/watchgraft/internal/ir"
)

// Snapshot is the reconciled state of a store: the rows a merge run writes.
// Surrogate row ids of views and settings are left out, so two stores that
// hold the same history compare equal regardless of insertion history.
type Snapshot struct {
	Accounts []ir.AccountRecord `json:"accounts"`
	Items    []ItemState        `json:"items"`
	Views    []ViewRow          `json:"views"`
	Settings []SettingRow       `json:"settings"`
}

// ItemState is the merge-relevant part of a metadata_items row.
type ItemState struct {
	ID      int64       `json:"id"`
	GUID    string      `json:"guid"`
	Type    ir.ItemType `json:"metadata_type"`
	AddedAt *int64      `json:"added_at,omitempty"`
}

// ViewRow is a metadata_item_views row without its surrogate id.
type ViewRow struct {
	AccountID int64       `json:"account_id"`
	GUID      string      `json:"guid"`
	Type      ir.ItemType `json:"metadata_type"`
	ViewedAt  int64       `json:"viewed_at"`
	DeviceID  *int64      `json:"device_id,omitempty"`
	ViewType  string      `json:"view_type"`
}

// SettingRow is a metadata_item_settings row without its surrogate id.
type SettingRow struct {
	AccountID    int64  `json:"account_id"`
	GUID         string `json:"guid"`
	ViewCount    int64  `json:"view_count"`
	ViewOffset   int64  `json:"view_offset"`
	LastViewedAt *int64 `json:"last_viewed_at,omitempty"`
}

// Snapshot reads the reconciled state in a deterministic order.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var err error

	snap.Accounts, err = Collect(cursor(ctx, s.db, "snapshot accounts", scanAccount, `
		SELECT id, COALESCE(name, '') FROM accounts ORDER BY id ASC
	`))
	if err != nil {
		return nil, err
	}

	snap.Items, err = Collect(cursor(ctx, s.db, "snapshot items", scanItemState, `
		SELECT id, COALESCE(guid, ''), COALESCE(metadata_type, 0), added_at
		FROM metadata_items
		ORDER BY id ASC
	`))
	if err != nil {
		return nil, err
	}

	snap.Views, err = Collect(cursor(ctx, s.db, "snapshot views", scanViewRow, `
		SELECT COALESCE(account_id, 0), COALESCE(guid, ''), COALESCE(metadata_type, 0),
			COALESCE(viewed_at, 0), device_id, COALESCE(view_type, '')
		FROM metadata_item_views
		ORDER BY account_id, guid, viewed_at, device_id, view_type, id
	`))
	if err != nil {
		return nil, err
	}

	snap.Settings, err = Collect(cursor(ctx, s.db, "snapshot settings", scanSettingRow, `
		SELECT COALESCE(account_id, 0), COALESCE(guid, ''), COALESCE(view_count, 0),
			COALESCE(view_offset, 0), last_viewed_at
		FROM metadata_item_settings
		ORDER BY account_id, guid, id
	`))
	if err != nil {
		return nil, err
	}

	return snap, nil
}

func scanItemState(rows *sql.Rows) (ItemState, error) {
	var (
		it       ItemState
		itemType int64
		added    sql.NullInt64
	)
	if err := rows.Scan(&it.ID, &it.GUID, &itemType, &added); err != nil {
		return it, err
	}
	it.Type = ir.ItemType(itemType)
	it.AddedAt = nullableInt(added)
	return it, nil
}

func scanViewRow(rows *sql.Rows) (ViewRow, error) {
	var (
		v        ViewRow
		itemType int64
		device   sql.NullInt64
	)
	if err := rows.Scan(&v.AccountID, &v.GUID, &itemType, &v.ViewedAt, &device, &v.ViewType); err != nil {
		return v, err
	}
	v.Type = ir.ItemType(itemType)
	v.DeviceID = nullableInt(device)
	return v, nil
}

func scanSettingRow(rows *sql.Rows) (SettingRow, error) {
	var (
		st   SettingRow
		last sql.NullInt64
	)
	if err := rows.Scan(&st.AccountID, &st.GUID, &st.ViewCount, &st.ViewOffset, &last); err != nil {
		return st, err
	}
	st.LastViewedAt = nullableInt(last)
	return st, nil
}

// Rows flattens the snapshot into canonical objects, one per row, each
// tagged with its table. Absent nullable columns are omitted.
func (snap *Snapshot) Rows() []ir.Object {
	rows := make([]ir.Object, 0, len(snap.Accounts)+len(snap.Items)+len(snap.Views)+len(snap.Settings))
	for _, a := range snap.Accounts {
		rows = append(rows, ir.Object{
			"table": ir.Str("accounts"),
			"id":    ir.Int(a.ID),
			"name":  ir.Str(a.Name),
		})
	}
	for _, it := range snap.Items {
		obj := ir.Object{
			"table":         ir.Str("metadata_items"),
			"id":            ir.Int(it.ID),
			"guid":          ir.Str(it.GUID),
			"metadata_type": ir.Int(int64(it.Type)),
		}
		obj.SetOptional("added_at", it.AddedAt)
		rows = append(rows, obj)
	}
	for _, v := range snap.Views {
		obj := ir.Object{
			"table":         ir.Str("metadata_item_views"),
			"account_id":    ir.Int(v.AccountID),
			"guid":          ir.Str(v.GUID),
			"metadata_type": ir.Int(int64(v.Type)),
			"viewed_at":     ir.Int(v.ViewedAt),
			"view_type":     ir.Str(v.ViewType),
		}
		obj.SetOptional("device_id", v.DeviceID)
		rows = append(rows, obj)
	}
	for _, st := range snap.Settings {
		obj := ir.Object{
			"table":       ir.Str("metadata_item_settings"),
			"account_id":  ir.Int(st.AccountID),
			"guid":        ir.Str(st.GUID),
			"view_count":  ir.Int(st.ViewCount),
			"view_offset": ir.Int(st.ViewOffset),
		}
		obj.SetOptional("last_viewed_at", st.LastViewedAt)
		rows = append(rows, obj)
	}
	return rows
}

// Lines renders each row as canonical JSON, in Rows order.
func (snap *Snapshot) Lines() ([]string, error) {
	rows := snap.Rows()
	lines := make([]string, len(rows))
	for i, row := range rows {
		b, err := ir.MarshalCanonical(row)
		if err != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i, err)
		}
		lines[i] = string(b)
	}
	return lines, nil
}

// Digest hashes the snapshot rows.
func (snap *Snapshot) Digest() (string, error) {
	return ir.Digest(ir.DomainState, snap.Rows())
}
