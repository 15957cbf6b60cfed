package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/roach88/watchgraft/internal/ir"
)

// ErrCursorConsumed is yielded when a cursor is ranged over a second time.
var ErrCursorConsumed = errors.New("cursor already consumed")

// cursor runs query lazily on first iteration and yields one T per row.
// Iteration stops at the first error, which is yielded with a zero T.
func cursor[T any](ctx context.Context, db *sql.DB, what string, scan func(*sql.Rows) (T, error), query string, args ...any) iter.Seq2[T, error] {
	var used atomic.Bool
	return func(yield func(T, error) bool) {
		var zero T
		if used.Swap(true) {
			yield(zero, fmt.Errorf("%s: %w", what, ErrCursorConsumed))
			return
		}

		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(zero, fmt.Errorf("query %s: %w", what, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				yield(zero, fmt.Errorf("scan %s: %w", what, err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, fmt.Errorf("iterate %s: %w", what, err))
		}
	}
}

// Accounts yields accounts with a non-empty display name, ordered by id.
func (s *Store) Accounts(ctx context.Context) iter.Seq2[ir.AccountRecord, error] {
	return cursor(ctx, s.db, "accounts", scanAccount, `
		SELECT id, name
		FROM accounts
		WHERE name IS NOT NULL AND name <> ''
		ORDER BY id ASC
	`)
}

func scanAccount(rows *sql.Rows) (ir.AccountRecord, error) {
	var a ir.AccountRecord
	err := rows.Scan(&a.ID, &a.Name)
	return a, err
}

// Events yields watch events with a non-null timestamp, ordered by row id.
// The account display name is joined from the same store's accounts.
func (s *Store) Events(ctx context.Context) iter.Seq2[ir.HistoricalEvent, error] {
	return cursor(ctx, s.db, "events", scanEvent, `
		SELECT
			COALESCE(v.account_id, 0),
			COALESCE(a.name, ''),
			COALESCE(v.guid, ''),
			COALESCE(v.metadata_type, 0),
			COALESCE(v.grandparent_title, ''),
			COALESCE(v.parent_title, ''),
			v.parent_index,
			v."index",
			COALESCE(v.title, ''),
			v.viewed_at,
			v.device_id,
			COALESCE(v.view_type, '')
		FROM metadata_item_views v
		LEFT JOIN accounts a ON a.id = v.account_id
		WHERE v.viewed_at IS NOT NULL
		ORDER BY v.id ASC
	`)
}

func scanEvent(rows *sql.Rows) (ir.HistoricalEvent, error) {
	var (
		ev                       ir.HistoricalEvent
		itemType                 int64
		parentIndex, idx, device sql.NullInt64
	)
	err := rows.Scan(
		&ev.AccountID,
		&ev.AccountName,
		&ev.GUID,
		&itemType,
		&ev.GrandparentTitle,
		&ev.ParentTitle,
		&parentIndex,
		&idx,
		&ev.Title,
		&ev.ViewedAt,
		&device,
		&ev.ViewType,
	)
	if err != nil {
		return ev, err
	}
	ev.Type = ir.ItemType(itemType)
	ev.ParentIndex = nullableInt(parentIndex)
	ev.Index = nullableInt(idx)
	ev.DeviceID = nullableInt(device)
	return ev, nil
}

// AddedDates yields creation timestamps of items that have both a guid and
// an added_at, ordered by row id.
func (s *Store) AddedDates(ctx context.Context) iter.Seq2[ir.AddedDateFact, error] {
	return cursor(ctx, s.db, "added dates", scanAddedDate, `
		SELECT guid, COALESCE(metadata_type, 0), added_at
		FROM metadata_items
		WHERE added_at IS NOT NULL AND guid IS NOT NULL AND guid <> ''
		ORDER BY id ASC
	`)
}

func scanAddedDate(rows *sql.Rows) (ir.AddedDateFact, error) {
	var (
		f        ir.AddedDateFact
		itemType int64
	)
	if err := rows.Scan(&f.GUID, &itemType, &f.AddedAt); err != nil {
		return f, err
	}
	f.Type = ir.ItemType(itemType)
	return f, nil
}

// CatalogItems yields every item that has a guid together with its parent
// and grandparent descriptive attributes, in natural row order.
func (s *Store) CatalogItems(ctx context.Context) iter.Seq2[ir.CatalogItem, error] {
	return cursor(ctx, s.db, "catalog", scanCatalogItem, `
		SELECT
			i.id,
			i.guid,
			COALESCE(i.metadata_type, 0),
			COALESCE(i.title, ''),
			i."index",
			COALESCE(p.title, ''),
			p."index",
			COALESCE(g.title, '')
		FROM metadata_items i
		LEFT JOIN metadata_items p ON p.id = i.parent_id
		LEFT JOIN metadata_items g ON g.id = p.parent_id
		WHERE i.guid IS NOT NULL AND i.guid <> ''
		ORDER BY i.id ASC
	`)
}

func scanCatalogItem(rows *sql.Rows) (ir.CatalogItem, error) {
	var (
		it               ir.CatalogItem
		itemType         int64
		idx, parentIndex sql.NullInt64
	)
	err := rows.Scan(
		&it.ID,
		&it.GUID,
		&itemType,
		&it.Title,
		&idx,
		&it.ParentTitle,
		&parentIndex,
		&it.GrandparentTitle,
	)
	if err != nil {
		return it, err
	}
	it.Type = ir.ItemType(itemType)
	it.Index = nullableInt(idx)
	it.ParentIndex = nullableInt(parentIndex)
	return it, nil
}

func nullableInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return ir.Int64(n.Int64)
}

// Collect drains a cursor into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
