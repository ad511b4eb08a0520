package relational

import (
	"fmt"

	"github.com/roach88/querylift/internal/ir"
)

// DedupeSubqueries replaces a subquery in ORDER BY or HAVING that is
// identical to a projected one with a reference to the projection alias.
func DedupeSubqueries(p Plan) Plan {
	return Rewriter{Plan: func(p Plan) Plan {
		s, ok := p.(*Select)
		if !ok || len(s.Projection) == 0 {
			return p
		}
		swap := Rewriter{Expr: func(e Expr) Expr {
			if _, ok := e.(Subquery); !ok {
				return e
			}
			for _, pr := range s.Projection {
				if Equal(pr.Expr, e) {
					return Column{Name: pr.Alias, ColType: e.Type(), Null: e.Nullability()}
				}
			}
			return e
		}}
		out := s.Clone()
		out.OrderBy = swap.rewriteOrderings(s.OrderBy)
		out.Having = swap.RewriteExpr(s.Having)
		return out
	}}.RewritePlan(p)
}

// EnsureDeterministicOrder appends the missing identifiers of every
// paginated select to its ordering, so LIMIT and OFFSET pick the same rows
// on every execution.
func EnsureDeterministicOrder(p Plan) Plan {
	return Rewriter{Plan: func(p Plan) Plan {
		s, ok := p.(*Select)
		if !ok || (s.Limit == nil && s.Offset == nil) || len(s.Identifiers) == 0 {
			return p
		}
		out := s.Clone()
		out.OrderBy = AppendOrderings(out.OrderBy, s.Identifiers...)
		return out
	}}.RewritePlan(p)
}

// AppendOrderings appends an ascending key for every expression not already
// ordered on.
func AppendOrderings(os []Ordering, keys ...Expr) []Ordering {
	out := clip(os)
	for _, k := range keys {
		if !hasOrdering(out, k) {
			out = append(out, Ordering{Expr: k})
		}
	}
	return out
}

func hasOrdering(os []Ordering, e Expr) bool {
	for _, o := range os {
		if Matches(o.Expr, e) {
			return true
		}
	}
	return false
}

// CollapseEmptyPages rewrites every select with LIMIT 0 (and no or a zero
// OFFSET) to an always-false filter without ordering or paging. Grouped
// selects get HAVING FALSE so aggregates without groups also yield nothing.
func CollapseEmptyPages(p Plan) Plan {
	return Rewriter{Plan: func(p Plan) Plan {
		s, ok := p.(*Select)
		if !ok || !isZero(s.Limit) || (s.Offset != nil && !isZero(s.Offset)) {
			return p
		}
		out := s.Clone()
		if len(s.GroupBy) > 0 {
			out.Having = False
		} else {
			out.Where = False
		}
		out.OrderBy = nil
		out.Limit, out.Offset = nil, nil
		return out
	}}.RewritePlan(p)
}

func isZero(e Expr) bool {
	switch n := e.(type) {
	case Literal:
		return n.Value == ir.IRInt(0)
	case Parameter:
		return n.Value == ir.IRInt(0)
	}
	return false
}

// VerifyParameters checks that every parameter p reads is declared.
func VerifyParameters(p Plan, declared map[string]bool) error {
	var missing []string
	seen := map[string]bool{}
	Inspect(p, func(n any) bool {
		if prm, ok := n.(Parameter); ok && !declared[prm.Name] && !seen[prm.Name] {
			seen[prm.Name] = true
			missing = append(missing, prm.Name)
		}
		return true
	})
	if len(missing) > 0 {
		return fmt.Errorf("undeclared parameters: %v", missing)
	}
	return nil
}
