// Package planner decides how collection-shaped results are placed in a
// relational plan.
//
// A collection is a nested sequence projected per parent row: a collection
// navigation or a correlated subquery. Classify lists the operators of the
// collection's query and Choose picks a strategy the dialect can print:
//
//   - StrategyJoin: a plain LEFT JOIN whose rows are split per parent
//     during materialization. Only filtering, ordering and projection.
//   - StrategyLateral: LEFT JOIN LATERAL over a correlated subquery, for
//     paginated, distinct, grouped or otherwise composed collections.
//   - StrategyRowNumber: a ROW_NUMBER() window partitioned by the
//     correlation keys, for paginated collections on servers without
//     LATERAL.
//
// The package also owns the pushdown rule (which operators need a derived
// table first), empty-source defaults for aggregates, and the final
// ordering of a select that materializes collections.
package planner
