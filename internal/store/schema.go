package store

import (
	"context"
	"fmt"
)

// requiredSchema lists, in check order, every column watchgraft touches.
var requiredSchema = []struct {
	table   string
	columns []string
}{
	{"accounts", []string{"id", "name"}},
	{"metadata_items", []string{"id", "parent_id", "metadata_type", "guid", "title", "index", "added_at"}},
	{"metadata_item_views", []string{
		"account_id", "guid", "metadata_type", "grandparent_title", "parent_title",
		"parent_index", "index", "title", "viewed_at", "device_id", "view_type",
	}},
	{"metadata_item_settings", []string{"account_id", "guid", "view_count", "view_offset", "last_viewed_at"}},
}

// SchemaError reports a relation or column the store lacks.
type SchemaError struct {
	Path   string
	Table  string
	Column string // empty when the whole table is missing
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: missing table %s", e.Path, e.Table)
	}
	return fmt.Sprintf("%s: table %s missing column %s", e.Path, e.Table, e.Column)
}

// VerifySchema checks every required table and column exists.
// Returns a *SchemaError for the first one missing.
func (s *Store) VerifySchema(ctx context.Context) error {
	for _, rel := range requiredSchema {
		have, err := s.tableColumns(ctx, rel.table)
		if err != nil {
			return err
		}
		if len(have) == 0 {
			return &SchemaError{Path: s.path, Table: rel.table}
		}
		for _, col := range rel.columns {
			if !have[col] {
				return &SchemaError{Path: s.path, Table: rel.table, Column: col}
			}
		}
	}
	return nil
}

// tableColumns returns the column set of table; empty if it doesn't exist.
func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("inspect table %s: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	return cols, nil
}
