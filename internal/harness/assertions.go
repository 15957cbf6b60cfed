package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/watchgraft/internal/engine"
	"github.com/roach88/watchgraft/internal/ir"
	"github.com/roach88/watchgraft/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// assertFinalState checks that exactly one row of the table matches where
// and that its columns match expect (subset semantics).
func assertFinalState(snap *store.Snapshot, assertion Assertion) error {
	matched, err := matchingRows(snap, assertion.Table, assertion.Where)
	if err != nil {
		return err
	}
	whereDesc := formatWhereClause(assertion.Where)

	switch len(matched) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(matched)),
		}
	}

	row := matched[0]
	for _, key := range sortedKeys(assertion.Expect) {
		want, present, err := toValue(assertion.Expect[key])
		if err != nil {
			return fmt.Errorf("final_state expect %q: %w", key, err)
		}
		got, exists := row[key]
		switch {
		case !present && exists:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = NULL", key),
				Actual:   fmt.Sprintf("field %q = %v", key, got),
			}
		case present && !exists:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("field %q is NULL or absent", key),
			}
		case present && got != want:
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// assertRowCount checks how many rows of the table match where.
func assertRowCount(snap *store.Snapshot, assertion Assertion) error {
	matched, err := matchingRows(snap, assertion.Table, assertion.Where)
	if err != nil {
		return err
	}
	if len(matched) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", len(matched)),
		}
	}
	return nil
}

func assertUnchanged(before, after string) error {
	if before != after {
		return &AssertionError{
			Type:     AssertUnchanged,
			Expected: fmt.Sprintf("target digest %s", before),
			Actual:   fmt.Sprintf("target digest %s", after),
		}
	}
	return nil
}

// assertIdempotent runs the merge a second time and compares digests.
func assertIdempotent(ctx context.Context, scenario *Scenario, sourcePath, targetPath, digest string) error {
	eng, err := newEngine(scenario, sourcePath, targetPath, false)
	if err != nil {
		return err
	}
	if _, err := eng.Run(ctx); err != nil {
		return &AssertionError{
			Type:     AssertIdempotent,
			Expected: "second run to succeed",
			Actual:   err.Error(),
		}
	}

	snap, err := snapshot(ctx, targetPath)
	if err != nil {
		return err
	}
	again, err := snap.Digest()
	if err != nil {
		return err
	}
	if again != digest {
		return &AssertionError{
			Type:     AssertIdempotent,
			Expected: fmt.Sprintf("target digest %s after second run", digest),
			Actual:   fmt.Sprintf("target digest %s", again),
		}
	}
	return nil
}

// assertReport checks expected report fields (subset semantics). Both sides
// go through JSON so YAML integers and report integers compare equal.
func assertReport(report *engine.Report, expected map[string]any) error {
	var actual map[string]any
	if err := jsonRoundTrip(report, &actual); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	var want map[string]any
	if err := jsonRoundTrip(expected, &want); err != nil {
		return fmt.Errorf("encode expect.report: %w", err)
	}

	for _, key := range sortedKeys(want) {
		got, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     "report",
				Expected: fmt.Sprintf("report field %q", key),
				Actual:   "not present in report",
			}
		}
		if !subsetMatch(want[key], got) {
			return &AssertionError{
				Type:     "report",
				Expected: fmt.Sprintf("%s = %v", key, want[key]),
				Actual:   fmt.Sprintf("%s = %v", key, got),
			}
		}
	}
	return nil
}

func jsonRoundTrip(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// subsetMatch compares nested maps by the expected keys only; everything
// else must be deeply equal.
func subsetMatch(expected, actual any) bool {
	want, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(expected, actual)
	}
	got, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, v := range want {
		if !subsetMatch(v, got[k]) {
			return false
		}
	}
	return true
}

// matchingRows returns the snapshot rows of table whose columns equal every
// where value. A nil where value matches an absent (NULL) column.
func matchingRows(snap *store.Snapshot, table string, where map[string]any) ([]ir.Object, error) {
	type cond struct {
		key     string
		value   ir.Value
		present bool
	}
	conds := make([]cond, 0, len(where))
	for _, key := range sortedKeys(where) {
		v, present, err := toValue(where[key])
		if err != nil {
			return nil, fmt.Errorf("where %q: %w", key, err)
		}
		conds = append(conds, cond{key, v, present})
	}

	var matched []ir.Object
rows:
	for _, row := range snap.Rows() {
		if row["table"] != ir.Str(table) {
			continue
		}
		for _, c := range conds {
			got, exists := row[c.key]
			if exists != c.present || (c.present && got != c.value) {
				continue rows
			}
		}
		matched = append(matched, row)
	}
	return matched, nil
}

// toValue converts a YAML-parsed scalar to a canonical value. present is
// false for null.
func toValue(val any) (v ir.Value, present bool, err error) {
	switch x := val.(type) {
	case nil:
		return nil, false, nil
	case string:
		return ir.Str(x), true, nil
	case int:
		return ir.Int(int64(x)), true, nil
	case int64:
		return ir.Int(x), true, nil
	case bool:
		return ir.Bool(x), true, nil
	case float64:
		if x == float64(int64(x)) {
			return ir.Int(int64(x)), true, nil
		}
		return nil, false, fmt.Errorf("floats are not stored in target rows: %v", x)
	default:
		return nil, false, fmt.Errorf("unsupported type %T", val)
	}
}

// formatWhereClause creates a human-readable description of where conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
