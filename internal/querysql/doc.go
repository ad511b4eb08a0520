// Package querysql prints relational plans as MySQL-family SQL.
//
// The printer is a pure fold over the plan. It owns every syntax decision
// that varies by dialect (identifier quoting, boolean literals, LIMIT and
// OFFSET forms, CAST type names, string escaping and the placeholder
// format) and performs no semantic rewriting.
//
// Values never appear in the SQL text except numeric and boolean
// constants, trusted literals owned by the model (discriminators, JSON
// paths) and LIMIT integers on dialects that forbid parameterized LIMIT.
// Every other value becomes a placeholder with a matching Arg.
package querysql
