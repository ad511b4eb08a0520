package nullsem

import (
	"maps"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/relational"
)

type mode int

const (
	valueCtx mode = iota
	predicateCtx
)

// guards holds the columns a surrounding condition proved non-null,
// keyed by table and name.
type guards map[string]bool

func key(c relational.Column) string { return c.Table + "." + c.Name }

func (g guards) with(cols []relational.Column) guards {
	if len(cols) == 0 {
		return g
	}
	out := make(guards, len(g)+len(cols))
	maps.Copy(out, g)
	for _, c := range cols {
		out[key(c)] = true
	}
	return out
}

// Rewrite returns p with every object-semantics comparison expanded into
// SQL. Comparisons already marked as SQL are kept as they are.
func Rewrite(p relational.Plan) relational.Plan {
	return rewritePlan(p)
}

// RewriteExpr rewrites a single expression as a predicate when pred is set
// and as a value otherwise.
func RewriteExpr(e relational.Expr, pred bool) relational.Expr {
	ctx := valueCtx
	if pred {
		ctx = predicateCtx
	}
	return rewrite(e, ctx, nil)
}

func rewritePlan(p relational.Plan) relational.Plan {
	switch n := p.(type) {
	case *relational.Select:
		s := n.Clone()
		s.Projection = nil
		for _, pr := range n.Projection {
			s.Projection = append(s.Projection, relational.Projection{Expr: value(pr.Expr), Alias: pr.Alias})
		}
		s.From = rewriteTable(n.From)
		s.Joins = nil
		for _, j := range n.Joins {
			s.Joins = append(s.Joins, relational.Join{Kind: j.Kind, Table: rewriteTable(j.Table), On: predicate(j.On)})
		}
		s.Where = condition(n.Where)
		s.GroupBy = values(n.GroupBy)
		s.Having = condition(n.Having)
		s.OrderBy = nil
		for _, o := range n.OrderBy {
			s.OrderBy = append(s.OrderBy, relational.Ordering{Expr: value(o.Expr), Desc: o.Desc})
		}
		s.Identifiers = values(n.Identifiers)
		return s
	case *relational.SetOperation:
		out := &relational.SetOperation{Kind: n.Kind}
		for _, b := range n.Branches {
			out.Branches = append(out.Branches, rewritePlan(b))
		}
		return out
	}
	return p
}

func rewriteTable(t relational.Table) relational.Table {
	switch n := t.(type) {
	case relational.Derived:
		n.Plan = rewritePlan(n.Plan)
		return n
	case relational.JSONTable:
		n.Source = value(n.Source)
		return n
	}
	return t
}

func value(e relational.Expr) relational.Expr { return rewrite(e, valueCtx, nil) }

func predicate(e relational.Expr) relational.Expr { return rewrite(e, predicateCtx, nil) }

// condition rewrites a WHERE or HAVING condition, dropping it when it
// folds to TRUE.
func condition(e relational.Expr) relational.Expr {
	out := predicate(e)
	if out != nil && relational.IsTrue(out) {
		return nil
	}
	return out
}

func values(es []relational.Expr) []relational.Expr {
	if es == nil {
		return nil
	}
	out := make([]relational.Expr, len(es))
	for i, e := range es {
		out[i] = value(e)
	}
	return out
}

func rewrite(e relational.Expr, ctx mode, g guards) relational.Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case relational.Column:
		if n.Null == relational.MaybeNull && g[key(n)] {
			n.Null = relational.NeverNull
		}
		return n
	case relational.Binary:
		return rewriteBinary(n, ctx, g)
	case relational.Unary:
		return rewriteUnary(n, ctx, g)
	case relational.Case:
		return rewriteCase(n, g)
	case relational.In:
		return rewriteIn(n, ctx, g)
	case relational.Function:
		args := make([]relational.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = rewrite(a, valueCtx, g)
		}
		n.Args = args
		return n
	case relational.Cast:
		n.Operand = rewrite(n.Operand, valueCtx, g)
		return n
	case relational.Extract:
		n.Operand = rewrite(n.Operand, valueCtx, g)
		return n
	case relational.DateAdd:
		n.Operand = rewrite(n.Operand, valueCtx, g)
		n.Amount = rewrite(n.Amount, valueCtx, g)
		return n
	case relational.DateDiff:
		n.Start = rewrite(n.Start, valueCtx, g)
		n.End = rewrite(n.End, valueCtx, g)
		return n
	case relational.Aggregate:
		n.Arg = rewrite(n.Arg, valueCtx, g)
		return n
	case relational.RowNumber:
		n.PartitionBy = values(n.PartitionBy)
		orders := make([]relational.Ordering, len(n.OrderBy))
		for i, o := range n.OrderBy {
			orders[i] = relational.Ordering{Expr: value(o.Expr), Desc: o.Desc}
		}
		n.OrderBy = orders
		return n
	case relational.Subquery:
		n.Plan = rewritePlan(n.Plan)
		return n
	case relational.Exists:
		n.Plan = rewritePlan(n.Plan)
		return n
	}
	return e
}

func rewriteBinary(b relational.Binary, ctx mode, g guards) relational.Expr {
	switch {
	case b.Op == relational.OpAnd || b.Op == relational.OpOr:
		l := rewrite(b.L, ctx, g)
		var proven []relational.Column
		if b.Op == relational.OpAnd {
			proven = tested(l, relational.OpAnd, relational.OpIsNotNull)
		} else {
			proven = tested(l, relational.OpOr, relational.OpIsNull)
		}
		r := rewrite(b.R, ctx, g.with(proven))
		if b.Op == relational.OpAnd {
			return relational.And(l, r)
		}
		return relational.Or(l, r)
	case !b.Op.IsComparison() || b.SQL:
		b.L = rewrite(b.L, valueCtx, g)
		b.R = rewrite(b.R, valueCtx, g)
		return b
	}
	out := compare(b.Op, rewrite(b.L, valueCtx, g), rewrite(b.R, valueCtx, g), ctx)
	if ctx == valueCtx {
		// The value form is TRUE or FALSE.
		out = relational.WithNullability(out, relational.NeverNull)
	}
	return out
}

// compare expands an object-semantics comparison of already rewritten
// operands.
func compare(op relational.BinaryOp, a, b relational.Expr, ctx mode) relational.Expr {
	an, bn := relational.IsNullLiteral(a), relational.IsNullLiteral(b)
	if op == relational.OpEq || op == relational.OpNe {
		switch {
		case an && bn:
			return relational.Bool(op == relational.OpEq)
		case an:
			return nullTest(op, b)
		case bn:
			return nullTest(op, a)
		}
	}

	sql := relational.SQLCompare(op, a, b)
	if a.Nullability() == relational.NeverNull && b.Nullability() == relational.NeverNull {
		return sql
	}
	switch op {
	case relational.OpEq:
		bothNull := relational.And(relational.IsNull(a), relational.IsNull(b))
		if ctx == predicateCtx {
			return relational.Or(sql, bothNull)
		}
		return relational.Or(
			relational.And(sql, relational.IsNotNull(a), relational.IsNotNull(b)),
			bothNull,
		)
	case relational.OpNe:
		return relational.And(
			relational.Or(sql, relational.IsNull(a), relational.IsNull(b)),
			relational.Or(relational.IsNotNull(a), relational.IsNotNull(b)),
		)
	}
	if ctx == predicateCtx {
		return sql
	}
	return relational.And(sql, relational.IsNotNull(a), relational.IsNotNull(b))
}

func nullTest(op relational.BinaryOp, e relational.Expr) relational.Expr {
	if op == relational.OpEq {
		return relational.IsNull(e)
	}
	return relational.IsNotNull(e)
}

var negated = map[relational.BinaryOp]relational.BinaryOp{
	relational.OpEq: relational.OpNe,
	relational.OpNe: relational.OpEq,
}

func rewriteUnary(u relational.Unary, ctx mode, g guards) relational.Expr {
	switch u.Op {
	case relational.OpNot:
		switch inner := u.Operand.(type) {
		case relational.Binary:
			if op, ok := negated[inner.Op]; ok && !inner.SQL {
				inner.Op = op
				return rewrite(inner, ctx, g)
			}
		case relational.Unary:
			switch inner.Op {
			case relational.OpNot:
				return rewrite(inner.Operand, ctx, g)
			case relational.OpIsNull:
				return relational.IsNotNull(rewrite(inner.Operand, valueCtx, g))
			case relational.OpIsNotNull:
				return relational.IsNull(rewrite(inner.Operand, valueCtx, g))
			}
		}
		return relational.Not(rewrite(u.Operand, valueCtx, g))
	case relational.OpIsNull:
		return relational.IsNull(rewrite(u.Operand, valueCtx, g))
	case relational.OpIsNotNull:
		return relational.IsNotNull(rewrite(u.Operand, valueCtx, g))
	}
	u.Operand = rewrite(u.Operand, valueCtx, g)
	return u
}

func rewriteCase(c relational.Case, g guards) relational.Expr {
	var whens []relational.When
	for _, w := range c.Whens {
		if objectNullable(w.Test) {
			test := rewrite(w.Test, valueCtx, g)
			if isNull := relational.IsNull(test); !relational.IsFalse(isNull) {
				whens = append(whens, relational.When{Test: isNull, Then: relational.Literal{Value: ir.IRNull{}, ColType: c.ColType}})
				g = g.with(columns(test))
			}
		}
		test := rewrite(w.Test, predicateCtx, g)
		if relational.IsFalse(test) {
			continue
		}
		then := rewrite(w.Then, valueCtx, g.with(tested(test, relational.OpAnd, relational.OpIsNotNull)))
		if relational.IsTrue(test) {
			// Later arms are unreachable.
			if len(whens) == 0 {
				return then
			}
			c.Whens = whens
			c.Else = then
			c.Null = caseNull(c)
			return c
		}
		whens = append(whens, relational.When{Test: test, Then: then})
		g = g.with(tested(test, relational.OpOr, relational.OpIsNull))
	}
	c.Else = rewrite(c.Else, valueCtx, g)
	if len(whens) == 0 {
		if c.Else == nil {
			return relational.Literal{Value: ir.IRNull{}, ColType: c.ColType}
		}
		return c.Else
	}
	c.Whens = whens
	c.Null = caseNull(c)
	return c
}

// caseNull is the nullability of c from its arms. A null test arm makes the
// whole CASE nullable.
func caseNull(c relational.Case) relational.Nullability {
	if c.Else == nil {
		return relational.MaybeNull
	}
	n := c.Else.Nullability()
	for _, w := range c.Whens {
		n = relational.Either(n, w.Then.Nullability())
	}
	return n
}

func rewriteIn(in relational.In, ctx mode, g guards) relational.Expr {
	in.Item = rewrite(in.Item, valueCtx, g)
	if in.Values != nil {
		vals := make([]relational.Expr, len(in.Values))
		for i, v := range in.Values {
			vals[i] = rewrite(v, valueCtx, g)
		}
		in.Values = vals
	}
	in.Subquery = rewritePlan(in.Subquery)
	hasNull := in.HasNull
	in.HasNull = false

	var member relational.Expr = in
	switch {
	case in.Subquery == nil && len(in.Values) == 0:
		member = relational.False
	case ctx == predicateCtx:
		// UNKNOWN already counts as false.
	case in.Subquery != nil:
		member = relational.Coalesce(model.Bool, in, relational.False)
	default:
		member = relational.And(in, relational.IsNotNull(in.Item))
	}
	if hasNull {
		member = relational.Or(member, relational.IsNull(in.Item))
	}
	if ctx == valueCtx {
		member = relational.WithNullability(member, relational.NeverNull)
	}
	return member
}

// tested returns the columns c of the op-chain e that appear as "c test".
func tested(e relational.Expr, op relational.BinaryOp, test relational.UnaryOp) []relational.Column {
	var out []relational.Column
	var walk func(relational.Expr)
	walk = func(e relational.Expr) {
		switch n := e.(type) {
		case relational.Binary:
			if n.Op == op {
				walk(n.L)
				walk(n.R)
			}
		case relational.Unary:
			if c, ok := n.Operand.(relational.Column); ok && n.Op == test {
				out = append(out, c)
			}
		}
	}
	walk(e)
	return out
}

func columns(e relational.Expr) []relational.Column {
	if c, ok := e.(relational.Column); ok {
		return []relational.Column{c}
	}
	return nil
}

// objectNullable reports whether e can be null under object semantics,
// where comparisons and null tests never are.
func objectNullable(e relational.Expr) bool {
	switch n := e.(type) {
	case relational.Binary:
		if n.Op.IsComparison() && !n.SQL {
			return false
		}
		if n.Op.IsLogical() {
			return objectNullable(n.L) || objectNullable(n.R)
		}
	case relational.Unary:
		switch n.Op {
		case relational.OpIsNull, relational.OpIsNotNull:
			return false
		case relational.OpNot:
			return objectNullable(n.Operand)
		}
	case relational.In, relational.Exists:
		return false
	}
	return e.Nullability() == relational.MaybeNull
}
