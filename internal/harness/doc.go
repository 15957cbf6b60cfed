// Package harness runs merge scenarios end to end.
//
// A scenario describes a source library and a target library as rows,
// runs the full merge against fresh fixture stores built from them, and
// checks the outcome: the run's error code, a subset of its report, and the
// reconciled target rows.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	source:
//	  accounts: [{ id: 1, name: alice }]
//	  items: [...]
//	  views:
//	    - { account: 1, type: episode, grandparent_title: Show, parent_index: 1, index: 2, viewed_at: 1000 }
//	target:
//	  accounts: [{ id: 1, name: admin }]
//	  items:
//	    - { id: 10, type: episode, guid: "plex://episode/x", title: Pilot, index: 2, parent: 9 }
//	config:
//	  dry_run: false
//	  max_unresolved_percent: 0
//	  fail_at_step: insert-views
//	expect:
//	  error: APPLY_FAILED
//	  report: { resolved: 1 }
//	assertions:
//	  - type: final_state
//	    table: metadata_item_settings
//	    where: { account_id: 1, guid: "plex://episode/x" }
//	    expect: { view_count: 1 }
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - final_state: Exactly one target row matches where; its columns match expect.
//     A null expect value asserts the column is NULL.
//   - row_count: The number of target rows matching where equals count
//   - unchanged: The target is identical before and after the run
//   - idempotent: Running the merge a second time leaves the target unchanged
//
// # Deterministic Testing
//
// Scenarios run with a fixed run id and a fixed clock, in a caller-supplied
// directory, so the reconciled target can be compared against golden files.
package harness
