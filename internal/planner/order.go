package planner

import (
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/relational"
)

// CollectionOrder is what one materialized collection adds to the final
// ordering of its parent select.
type CollectionOrder struct {
	Ordering    []relational.Ordering
	Identifiers []relational.Expr
}

// FinalOrder orders a select that materializes collections: its own
// ordering, then the parent identifiers, then every collection's ordering
// and identifiers in projection order. Rows of one parent stay adjacent and
// the elements of each collection keep their order.
func FinalOrder(existing []relational.Ordering, parent []relational.Expr, collections ...CollectionOrder) []relational.Ordering {
	out := relational.AppendOrderings(existing, parent...)
	for _, c := range collections {
		for _, o := range c.Ordering {
			if !ordered(out, o.Expr) {
				out = append(out, o)
			}
		}
		out = relational.AppendOrderings(out, c.Identifiers...)
	}
	return out
}

func ordered(os []relational.Ordering, e relational.Expr) bool {
	for _, o := range os {
		if relational.Matches(o.Expr, e) {
			return true
		}
	}
	return false
}

// RowBounds selects rows offset+1 through offset+limit of a partition by
// their row number. Either bound may be nil.
func RowBounds(row, offset, limit relational.Expr) relational.Expr {
	var terms []relational.Expr
	if offset != nil {
		terms = append(terms, relational.SQLCompare(relational.OpGt, row, offset))
	}
	if limit != nil {
		upper := limit
		if offset != nil {
			upper = add(offset, limit)
		}
		terms = append(terms, relational.SQLCompare(relational.OpLe, row, upper))
	}
	return relational.And(terms...)
}

func add(a, b relational.Expr) relational.Expr {
	la, aok := a.(relational.Literal)
	lb, bok := b.(relational.Literal)
	if aok && bok {
		x, xok := la.Value.(ir.IRInt)
		y, yok := lb.Value.(ir.IRInt)
		if xok && yok {
			return relational.Int(int64(x + y))
		}
	}
	return relational.Arith(relational.OpAdd, a, b, model.Int64)
}
