package relational

import "reflect"

// Inspect calls fn for p and every plan, table and expression reachable
// from it, including the plans of subquery expressions. Returning false
// skips the node's children.
func Inspect(p Plan, fn func(node any) bool) {
	inspectPlan(p, fn)
}

// InspectExpr is Inspect for an expression root.
func InspectExpr(e Expr, fn func(node any) bool) {
	inspectExpr(e, fn)
}

func inspectPlan(p Plan, fn func(any) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch n := p.(type) {
	case *Select:
		for _, pr := range n.Projection {
			inspectExpr(pr.Expr, fn)
		}
		inspectTable(n.From, fn)
		for _, j := range n.Joins {
			inspectTable(j.Table, fn)
			inspectExpr(j.On, fn)
		}
		inspectExpr(n.Where, fn)
		for _, g := range n.GroupBy {
			inspectExpr(g, fn)
		}
		inspectExpr(n.Having, fn)
		for _, o := range n.OrderBy {
			inspectExpr(o.Expr, fn)
		}
		inspectExpr(n.Limit, fn)
		inspectExpr(n.Offset, fn)
	case *SetOperation:
		for _, b := range n.Branches {
			inspectPlan(b, fn)
		}
	}
}

func inspectTable(t Table, fn func(any) bool) {
	if t == nil || !fn(t) {
		return
	}
	switch n := t.(type) {
	case Derived:
		inspectPlan(n.Plan, fn)
	case JSONTable:
		inspectExpr(n.Source, fn)
	}
}

func inspectExpr(e Expr, fn func(any) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case Binary:
		inspectExpr(n.L, fn)
		inspectExpr(n.R, fn)
	case Unary:
		inspectExpr(n.Operand, fn)
	case Case:
		for _, w := range n.Whens {
			inspectExpr(w.Test, fn)
			inspectExpr(w.Then, fn)
		}
		inspectExpr(n.Else, fn)
	case Function:
		for _, a := range n.Args {
			inspectExpr(a, fn)
		}
	case Cast:
		inspectExpr(n.Operand, fn)
	case Extract:
		inspectExpr(n.Operand, fn)
	case DateAdd:
		inspectExpr(n.Operand, fn)
		inspectExpr(n.Amount, fn)
	case DateDiff:
		inspectExpr(n.Start, fn)
		inspectExpr(n.End, fn)
	case In:
		inspectExpr(n.Item, fn)
		for _, v := range n.Values {
			inspectExpr(v, fn)
		}
		inspectPlan(n.Subquery, fn)
	case Exists:
		inspectPlan(n.Plan, fn)
	case Subquery:
		inspectPlan(n.Plan, fn)
	case RowNumber:
		for _, p := range n.PartitionBy {
			inspectExpr(p, fn)
		}
		for _, o := range n.OrderBy {
			inspectExpr(o.Expr, fn)
		}
	case Aggregate:
		inspectExpr(n.Arg, fn)
	}
}

// Rewriter rebuilds plans and expressions bottom-up. Expr is applied to
// every expression after its children were rewritten, Plan to every plan
// after its contents were. Either may be nil.
type Rewriter struct {
	Expr func(Expr) Expr
	Plan func(Plan) Plan
}

// RewritePlan rewrites p.
func (r Rewriter) RewritePlan(p Plan) Plan {
	if p == nil {
		return nil
	}
	var out Plan
	switch n := p.(type) {
	case *Select:
		s := n.Clone()
		s.Projection = nil
		for _, pr := range n.Projection {
			s.Projection = append(s.Projection, Projection{Expr: r.RewriteExpr(pr.Expr), Alias: pr.Alias})
		}
		s.From = r.rewriteTable(n.From)
		s.Joins = nil
		for _, j := range n.Joins {
			s.Joins = append(s.Joins, Join{Kind: j.Kind, Table: r.rewriteTable(j.Table), On: r.RewriteExpr(j.On)})
		}
		s.Where = r.RewriteExpr(n.Where)
		s.GroupBy = r.rewriteExprs(n.GroupBy)
		s.Having = r.RewriteExpr(n.Having)
		s.OrderBy = r.rewriteOrderings(n.OrderBy)
		s.Limit = r.RewriteExpr(n.Limit)
		s.Offset = r.RewriteExpr(n.Offset)
		s.Identifiers = r.rewriteExprs(n.Identifiers)
		out = s
	case *SetOperation:
		branches := make([]Plan, len(n.Branches))
		for i, b := range n.Branches {
			branches[i] = r.RewritePlan(b)
		}
		out = &SetOperation{Kind: n.Kind, Branches: branches}
	default:
		out = p
	}
	if r.Plan != nil {
		out = r.Plan(out)
	}
	return out
}

func (r Rewriter) rewriteTable(t Table) Table {
	switch n := t.(type) {
	case Derived:
		n.Plan = r.RewritePlan(n.Plan)
		return n
	case JSONTable:
		n.Source = r.RewriteExpr(n.Source)
		return n
	}
	return t
}

func (r Rewriter) rewriteExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = r.RewriteExpr(e)
	}
	return out
}

func (r Rewriter) rewriteOrderings(os []Ordering) []Ordering {
	if os == nil {
		return nil
	}
	out := make([]Ordering, len(os))
	for i, o := range os {
		out[i] = Ordering{Expr: r.RewriteExpr(o.Expr), Desc: o.Desc}
	}
	return out
}

// RewriteExpr rewrites e.
func (r Rewriter) RewriteExpr(e Expr) Expr {
	if e == nil {
		return nil
	}
	var out Expr
	switch n := e.(type) {
	case Binary:
		n.L, n.R = r.RewriteExpr(n.L), r.RewriteExpr(n.R)
		out = n
	case Unary:
		n.Operand = r.RewriteExpr(n.Operand)
		out = n
	case Case:
		whens := make([]When, len(n.Whens))
		for i, w := range n.Whens {
			whens[i] = When{Test: r.RewriteExpr(w.Test), Then: r.RewriteExpr(w.Then)}
		}
		n.Whens = whens
		n.Else = r.RewriteExpr(n.Else)
		out = n
	case Function:
		n.Args = r.rewriteExprs(n.Args)
		out = n
	case Cast:
		n.Operand = r.RewriteExpr(n.Operand)
		out = n
	case Extract:
		n.Operand = r.RewriteExpr(n.Operand)
		out = n
	case DateAdd:
		n.Operand, n.Amount = r.RewriteExpr(n.Operand), r.RewriteExpr(n.Amount)
		out = n
	case DateDiff:
		n.Start, n.End = r.RewriteExpr(n.Start), r.RewriteExpr(n.End)
		out = n
	case In:
		n.Item = r.RewriteExpr(n.Item)
		n.Values = r.rewriteExprs(n.Values)
		n.Subquery = r.RewritePlan(n.Subquery)
		out = n
	case Exists:
		n.Plan = r.RewritePlan(n.Plan)
		out = n
	case Subquery:
		n.Plan = r.RewritePlan(n.Plan)
		out = n
	case RowNumber:
		n.PartitionBy = r.rewriteExprs(n.PartitionBy)
		n.OrderBy = r.rewriteOrderings(n.OrderBy)
		out = n
	case Aggregate:
		n.Arg = r.RewriteExpr(n.Arg)
		out = n
	default:
		out = e
	}
	if r.Expr != nil {
		out = r.Expr(out)
	}
	return out
}

// DefinedAliases returns every table alias introduced inside p.
func DefinedAliases(p Plan) map[string]bool {
	defined := map[string]bool{}
	Inspect(p, func(n any) bool {
		if t, ok := n.(Table); ok {
			defined[t.TableAlias()] = true
		}
		return true
	})
	return defined
}

// OuterColumns returns the columns p reads from tables it does not define,
// in order of first appearance. These are the correlation columns of p
// when it is used as a subquery.
func OuterColumns(p Plan) []Column {
	defined := DefinedAliases(p)
	var out []Column
	seen := map[string]bool{}
	Inspect(p, func(n any) bool {
		c, ok := n.(Column)
		if !ok || c.Table == "" || defined[c.Table] {
			return true
		}
		key := c.Table + "." + c.Name
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
		return true
	})
	return out
}

// References reports whether e reads any column of the given aliases.
func References(e Expr, aliases map[string]bool) bool {
	found := false
	InspectExpr(e, func(n any) bool {
		if c, ok := n.(Column); ok && aliases[c.Table] {
			found = true
		}
		return !found
	})
	return found
}

// Equal reports structural equality of two expressions.
func Equal(a, b Expr) bool {
	return reflect.DeepEqual(a, b)
}

// sameColumn compares columns by table and name, ignoring tags.
func sameColumn(a, b Expr) bool {
	ca, ok := a.(Column)
	if !ok {
		return false
	}
	cb, ok := b.(Column)
	return ok && ca.Table == cb.Table && ca.Name == cb.Name
}

// Matches reports whether a and b denote the same value. Columns match by
// table and name regardless of their nullability tags.
func Matches(a, b Expr) bool {
	return sameColumn(a, b) || Equal(a, b)
}
