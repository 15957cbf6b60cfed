// Package ir defines the records that flow between watchgraft's stages.
//
// Every stage speaks ir: the extractor produces HistoricalEvent,
// AddedDateFact and AccountRecord values, the resolver turns events into
// ResolvedEvent values, the aggregator folds those into AggregatedFact
// values and the applier writes them. ir imports nothing internal.
//
// The package also carries a small canonical JSON encoder and a content
// digest over it. Digests are how two target stores are compared for
// equality without caring about surrogate row ids.
//
// Constraints:
//   - timestamps are Unix seconds (int64), the stores' own representation
//   - no floats in canonical values
//   - nullable ordinals are *int64, nil never equals anything
package ir
