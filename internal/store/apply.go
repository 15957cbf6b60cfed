package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/watchgraft/internal/ir"
)

// ApplyStep numbers the five phases of Apply, in execution order.
type ApplyStep int

const (
	StepAccounts ApplyStep = iota + 1
	StepAddedDates
	StepClearViews
	StepInsertViews
	StepViewState
)

var stepNames = map[ApplyStep]string{
	StepAccounts:    "accounts",
	StepAddedDates:  "added-dates",
	StepClearViews:  "clear-views",
	StepInsertViews: "insert-views",
	StepViewState:   "view-state",
}

func (s ApplyStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step-%d", int(s))
}

// ParseApplyStep accepts a step name as printed by String.
func ParseApplyStep(name string) (ApplyStep, error) {
	for step, n := range stepNames {
		if n == name {
			return step, nil
		}
	}
	return 0, fmt.Errorf("unknown apply step %q", name)
}

// ApplyPlan is everything Apply writes to the target.
type ApplyPlan struct {
	// RemoveAccountIDs are target rows deleted before upserting.
	RemoveAccountIDs []int64

	// UpsertAccounts are inserted or replaced by id.
	UpsertAccounts []ir.AccountRecord

	// HeaderToken rows (name == token) are deleted after upserting.
	// Empty disables the cleanup.
	HeaderToken string

	// AddedDates overwrite added_at on items with the same guid and type.
	AddedDates []ir.AddedDateFact

	// Events become view rows; only Applicable events are written.
	Events []ir.ResolvedEvent

	// Facts replace view-state rows with the same (account, guid).
	Facts []ir.AggregatedFact

	// DryRun executes every step and then rolls back.
	DryRun bool
}

// StepHook is called after each step completes inside the transaction.
// A non-nil error aborts Apply and rolls everything back.
type StepHook func(step ApplyStep) error

// ApplyResult counts the rows each step touched.
type ApplyResult struct {
	AccountsRemoved   int64 `json:"accounts_removed"`
	AccountsUpserted  int64 `json:"accounts_upserted"`
	HeaderRowsRemoved int64 `json:"header_rows_removed"`
	AddedDatesCleared int64 `json:"added_dates_cleared"`
	AddedDatesSet     int64 `json:"added_dates_set"`
	ViewsDeleted      int64 `json:"views_deleted"`
	ViewsInserted     int64 `json:"views_inserted"`
	SettingsDeleted   int64 `json:"settings_deleted"`
	SettingsInserted  int64 `json:"settings_inserted"`
	Committed         bool  `json:"committed"`
}

// ApplyError reports the step at which Apply failed. The transaction has
// been rolled back when it is returned.
type ApplyError struct {
	Step ApplyStep
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.Step, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Apply writes plan to the store in one transaction:
//
//  1. accounts: delete conflicting rows, insert or replace, drop header rows
//  2. added dates: clear all, then set from facts matched by guid and type
//  3. delete every view row
//  4. insert one view row per applicable event
//  5. replace view-state rows for every fact key, view_offset reset to 0
//
// Either all steps commit or none do. The caller should pass a context
// that is not cancelled mid-transaction.
func (s *Store) Apply(ctx context.Context, plan ApplyPlan, hook StepHook) (*ApplyResult, error) {
	if s.mode != ModeReadWrite {
		return nil, &ApplyError{Step: StepAccounts, Err: ErrReadOnly}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &ApplyError{Step: StepAccounts, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	res := &ApplyResult{}
	steps := []struct {
		step ApplyStep
		run  func(context.Context, *sql.Tx, ApplyPlan, *ApplyResult) error
	}{
		{StepAccounts, applyAccounts},
		{StepAddedDates, applyAddedDates},
		{StepClearViews, clearViews},
		{StepInsertViews, insertViews},
		{StepViewState, applyViewState},
	}

	for _, st := range steps {
		if err := st.run(ctx, tx, plan, res); err != nil {
			return nil, &ApplyError{Step: st.step, Err: err}
		}
		if hook != nil {
			if err := hook(st.step); err != nil {
				return nil, &ApplyError{Step: st.step, Err: err}
			}
		}
	}

	if plan.DryRun {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			return nil, &ApplyError{Step: StepViewState, Err: fmt.Errorf("rollback dry run: %w", err)}
		}
		return res, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, &ApplyError{Step: StepViewState, Err: fmt.Errorf("commit: %w", err)}
	}
	res.Committed = true
	return res, nil
}

func applyAccounts(ctx context.Context, tx *sql.Tx, plan ApplyPlan, res *ApplyResult) error {
	for _, id := range plan.RemoveAccountIDs {
		n, err := execCount(ctx, tx, `DELETE FROM accounts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("remove account %d: %w", id, err)
		}
		res.AccountsRemoved += n
	}

	upsert, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO accounts (id, name) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare account upsert: %w", err)
	}
	defer upsert.Close()

	for _, a := range plan.UpsertAccounts {
		if _, err := upsert.ExecContext(ctx, a.ID, a.Name); err != nil {
			return fmt.Errorf("upsert account %d: %w", a.ID, err)
		}
		res.AccountsUpserted++
	}

	if plan.HeaderToken != "" {
		n, err := execCount(ctx, tx, `DELETE FROM accounts WHERE name = ?`, plan.HeaderToken)
		if err != nil {
			return fmt.Errorf("remove header rows: %w", err)
		}
		res.HeaderRowsRemoved = n
	}
	return nil
}

func applyAddedDates(ctx context.Context, tx *sql.Tx, plan ApplyPlan, res *ApplyResult) error {
	n, err := execCount(ctx, tx, `UPDATE metadata_items SET added_at = NULL WHERE added_at IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("clear added dates: %w", err)
	}
	res.AddedDatesCleared = n

	set, err := tx.PrepareContext(ctx, `
		UPDATE metadata_items SET added_at = ?
		WHERE guid = ? AND metadata_type = ?
	`)
	if err != nil {
		return fmt.Errorf("prepare added date update: %w", err)
	}
	defer set.Close()

	for _, f := range plan.AddedDates {
		r, err := set.ExecContext(ctx, f.AddedAt, f.GUID, int64(f.Type))
		if err != nil {
			return fmt.Errorf("set added date for %s: %w", f.GUID, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		res.AddedDatesSet += n
	}
	return nil
}

func clearViews(ctx context.Context, tx *sql.Tx, _ ApplyPlan, res *ApplyResult) error {
	n, err := execCount(ctx, tx, `DELETE FROM metadata_item_views`)
	if err != nil {
		return fmt.Errorf("delete views: %w", err)
	}
	res.ViewsDeleted = n
	return nil
}

func insertViews(ctx context.Context, tx *sql.Tx, plan ApplyPlan, res *ApplyResult) error {
	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO metadata_item_views
		(account_id, guid, metadata_type, grandparent_title, parent_title, parent_index, "index", title, viewed_at, device_id, view_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare view insert: %w", err)
	}
	defer ins.Close()

	for _, r := range plan.Events {
		if !r.Applicable() {
			continue
		}
		ev := r.Event
		_, err := ins.ExecContext(ctx,
			r.AccountID,
			r.Target,
			int64(ev.Type),
			ev.GrandparentTitle,
			ev.ParentTitle,
			ev.ParentIndex,
			ev.Index,
			ev.Title,
			ev.ViewedAt,
			ev.DeviceID,
			ev.ViewType,
		)
		if err != nil {
			return fmt.Errorf("insert view for %s: %w", r.Target, err)
		}
		res.ViewsInserted++
	}
	return nil
}

func applyViewState(ctx context.Context, tx *sql.Tx, plan ApplyPlan, res *ApplyResult) error {
	del, err := tx.PrepareContext(ctx, `DELETE FROM metadata_item_settings WHERE account_id = ? AND guid = ?`)
	if err != nil {
		return fmt.Errorf("prepare view state delete: %w", err)
	}
	defer del.Close()

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO metadata_item_settings (account_id, guid, view_count, view_offset, last_viewed_at)
		VALUES (?, ?, ?, 0, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare view state insert: %w", err)
	}
	defer ins.Close()

	for _, f := range plan.Facts {
		r, err := del.ExecContext(ctx, f.Key.AccountID, f.Key.GUID)
		if err != nil {
			return fmt.Errorf("delete view state for %s: %w", f.Key.GUID, err)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		res.SettingsDeleted += n
	}
	for _, f := range plan.Facts {
		if _, err := ins.ExecContext(ctx, f.Key.AccountID, f.Key.GUID, f.Count, f.LastViewedAt); err != nil {
			return fmt.Errorf("insert view state for %s: %w", f.Key.GUID, err)
		}
		res.SettingsInserted++
	}
	return nil
}

// execCount runs a statement and returns the affected row count.
func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	r, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return r.RowsAffected()
}
