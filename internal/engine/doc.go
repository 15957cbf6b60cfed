// Package engine implements the watch-history merge pipeline.
//
// A run transplants per-account watch history and item added dates from a
// source library store into a rebuilt target store whose item identifiers
// have changed.
//
// PIPELINE:
//
//  1. Extract: read accounts, watch events and added dates from the source
//     (or from a staged directory).
//  2. Resolve: map every event to a target item by descriptive key and to
//     a target account through the attribution cascade.
//  3. Aggregate: fold applicable events into one fact per (account, item).
//  4. Apply: write everything to the target in one transaction.
//
// The run is single-threaded. Unresolved and ambiguous events never abort
// it; they are counted in the Report. Store-level failures abort with a
// *StageError and leave the target at its last committed state.
//
// RESOLUTION:
//
// Each item type has one rule deriving a key from a target item and from a
// source event. Episodes key on show title, season number and episode
// number; movies and shows on their own title; tracks on artist title,
// album title and track number. Other types never resolve. When a key
// matches several target items the first in target row order wins.
//
// ATTRIBUTION:
//
// Accounts are reconciled first: every source account is written to the
// target under its source id. Events are then attributed by source id, by
// recorded display name, and finally to the lowest-id named account. The
// fallback tier never drops history; it can misattribute it.
package engine
