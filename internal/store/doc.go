// Package store runs translated SQL against an in-memory SQLite database.
//
// It backs the execution checks of the null-semantics rewriter and the
// scenario harness: tables are created from a model, seeded with rows and
// queried with the printed SQL and its args. SQLite shares MySQL's
// three-valued logic, backtick quoting and TRUE/FALSE literals, which is
// what those checks exercise. Constructs it lacks (LATERAL, JSON_TABLE,
// CAST AS signed precision) are not executed here.
//
// # Database Configuration
//
//   - one connection, so an in-memory database is shared by every query
//   - busy_timeout=5000
//   - case_sensitive_like=ON, matching MySQL's binary collations
package store
