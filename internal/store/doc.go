// Package store reads and writes media-library SQLite stores.
//
// Two stores take part in every run:
//   - Source: the old library. Opened with mode=ro and query_only, never
//     written. The same source may be read again on retry.
//   - Target: the rebuilt library. Mutated only inside Apply's single
//     transaction.
//
// The store never creates or migrates schema. Open verifies the relations
// and columns watchgraft depends on and fails with a *SchemaError naming
// the first one missing.
//
// # Reads
//
// Accounts, Events, AddedDates and CatalogItems return iter.Seq2 cursors
// over a single query. A cursor can be ranged over once; ordering is by
// row id so "first match" means the store's natural row order.
//
// # Database Configuration
//
//   - one connection per store (SQLite has one writer)
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - target transactions start with BEGIN IMMEDIATE (_txlock=immediate)
//   - journal mode is left as the owning service configured it
package store
