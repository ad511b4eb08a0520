// Package engine runs the translation pipeline from a query tree to MySQL
// text.
//
// PIPELINE:
//
// Every query goes through the same fixed sequence of stages:
//  1. binder.Bind validates the tree and binds it against the model,
//     flattening hierarchies, expanding navigations and planning
//     collections.
//  2. nullsem.Rewrite gives comparisons the null semantics of the source
//     language.
//  3. relational passes: DedupeSubqueries, EnsureDeterministicOrder, and
//     CollapseEmptyPages when the dialect has the LIMIT 0 defect.
//  4. flatten.Prune drops the hierarchy union columns nothing reads. It
//     runs after the ordering pass so tie-break keys are kept.
//  5. relational.VerifyParameters checks every placeholder against the
//     parameters the query declares.
//  6. querysql.Printer produces the text and the placeholder args.
//
// CACHING:
//
// WithCache enables a 2Q memo of printed plans. The key is the structural
// hash of the query plus the parameter facts that change the text (null
// parameters, list lengths and, when LIMIT cannot be a placeholder, the
// paging values). Fills for one key are collapsed with singleflight. A hit
// re-binds the caller's parameter values into a fresh arg list, so entries
// are never mutated after they are stored.
//
// LOGGING:
//
// Every call to Translate takes an ID from the engine's IDGenerator
// (UUIDv7 by default). The ID is set on the Translation and tags the debug
// record logged for the call, success or failure.
//
// CONCURRENCY:
//
// An Engine is safe for concurrent use. Model and dialect are read-only
// and every stage is a pure function of its input. TranslateAll fans a
// batch out over an errgroup and stops at the first failure.
package engine
