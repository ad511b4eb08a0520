// Package navigate resolves navigations between entity bindings.
//
// A to-one navigation becomes a join against the target shape's table
// source, reused for every later navigation along the same relationship
// from the same binding. A to-many navigation yields a collection source
// whose placement is left to the planner.
package navigate
