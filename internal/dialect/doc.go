// Package dialect describes the target MySQL-family server: its version,
// the capabilities that version provides, and the syntax switches the
// printer honours (placeholder style, boolean literals, escaping, LIMIT
// parameterization).
//
// Capability checks live here so that the planner can pick a query shape
// and report DIALECT_CAPABILITY errors with the minimum version that would
// have allowed the requested shape.
package dialect
