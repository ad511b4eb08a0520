// Package model holds the entity shapes and relationship descriptors a
// translation resolves names against.
//
// A Model is constructed once, validated, and then shared read-only by any
// number of concurrent translations. Navigation expansion follows exactly
// one relationship per navigation node, so cycles between shapes never cause
// unbounded traversal.
package model
