// Package harness runs translation scenarios: a model, a dialect and a query
// written in YAML, checked against assertions and golden snapshots.
//
// # Scenario Format
//
//	name: customers_named
//	description: "Filter over a hierarchy reads every subtype table"
//	model: ../../../../examples/shop
//	dialect:
//	  version: mysql-8.0.35
//	query:
//	  filter:
//	    input: {source: Animals, as: a}
//	    predicate: {eq: [{prop: a.Name}, {param: name, value: Rex}]}
//	assertions:
//	  - type: sql_contains
//	    sql: "UNION ALL"
//	  - type: args_equal
//	    args: [Rex]
//
// The query syntax is described on DecodeQuery.
//
// # Assertion Types
//
//   - sql_equals: the SQL text equals sql
//   - sql_contains / sql_not_contains: substring checks on the SQL text
//   - args_equal: the driver values of the args, printed, equal args
//   - columns_equal: the output column names equal columns
//   - strategies: the collection strategies, in output order, equal strategies
//   - error_code: the translation fails with code
//
// # Golden Snapshots
//
// RunWithGolden renders a passing translation with Snapshot and compares it
// to testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
//
// Each scenario runs on a fresh engine with logging discarded, so results
// do not depend on the cache or on other scenarios.
package harness
