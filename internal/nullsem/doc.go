// Package nullsem rewrites object-semantics comparisons into SQL.
//
// In the object model two nulls are equal and a comparison never yields
// null. SQL uses three-valued logic instead. Rewrite walks a relational
// plan and expands every comparison the binder left unmarked into an
// equivalent SQL form, using the nullability tag of each operand to skip
// null tests that can never succeed.
//
// Conditions of WHERE, ON, HAVING and CASE WHEN are rewritten in predicate
// context, where a NULL result counts as false. Every other position is
// value context and must produce TRUE or FALSE.
package nullsem
