// Package queryir defines the object-shaped query tree consumed by the
// translator.
//
// A query is a chain of operators over sources of entity rows:
//
//	Filter{
//	  Input: Source{Entity: "Orders", As: "o"},
//	  Predicate: Compare{Op: Gt, L: Prop{Of: Var{Name: "o"}, Name: "Total"}, R: Const{Value: ir.IRInt(100)}},
//	}
//
// Range variables (the As fields) are how expressions refer to rows. A
// nested query (Subquery, Aggregate, Exists, Contains) may refer to the
// variables of every enclosing query, which makes it correlated.
//
// SEALED INTERFACES:
//
// Query and Expr are sealed interfaces using the marker method pattern.
// Only types in this package can implement them, which keeps the type
// switches of the binder exhaustive:
//
//	switch q := query.(type) {
//	case Source:
//	    // Handle source
//	case Filter:
//	    // Handle filter
//	default:
//	    // Impossible - compiler knows all Query types
//	}
//
// Nodes are values and immutable once built. The structural hash of a tree
// (Hash) ignores parameter values, so it can key a plan cache; ShapeFacts
// supplies the parameter facts that still change the generated SQL.
package queryir
