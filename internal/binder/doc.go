// Package binder translates a query tree into a relational plan.
//
// The binder walks the query bottom-up and keeps one frame per select
// under construction: the select itself, the range variables in scope and
// the navigation joins already added. Frames are values. Every operator
// returns a new frame and clones the select before changing it, so a frame
// handed to a recursive call is never modified behind the caller's back.
//
// Navigations are expanded through package navigate, hierarchies are read
// through package flatten and collection placement is decided by package
// planner. Comparisons are built with object semantics; package nullsem
// rewrites them once the whole plan is known.
package binder
