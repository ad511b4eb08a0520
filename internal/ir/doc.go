// Package ir provides the constant value types shared by the query IR, the
// relational AST and the printer, together with canonical JSON encoding and
// domain-separated hashing used for structural query identity.
//
// This package imports nothing internal. Every other internal package may
// import ir; ir imports none of them.
//
// Key design constraints:
//   - IRValue is sealed; every stage switches over it exhaustively
//   - Canonical encoding is the only input to hashing
//   - Temporal values are UTC with microsecond precision
package ir
