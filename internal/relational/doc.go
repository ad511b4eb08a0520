// Package relational defines the relational AST built by the binder and
// folded into SQL by the printer, together with the structural passes that
// run between the two.
//
// Every expression carries its semantic type and a Nullability tag computed
// when the expression is built. Later stages read the tags and never
// re-derive them.
//
// Table aliases are allocated from an immutable Aliases value and are
// unique across the whole translation, nested subqueries included. A
// correlated subquery therefore reads outer columns by their own alias.
package relational
