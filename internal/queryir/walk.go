package queryir

import "fmt"

// Visitor is called for every Query and Expr node with the node's path from
// the root, e.g. "Project.Fields[1].Value". Returning false skips the
// node's children.
type Visitor func(node any, path string) bool

// Inspect walks q depth-first in field order.
func Inspect(q Query, fn Visitor) {
	inspectQuery(q, nodeName(q), fn)
}

// InspectExpr walks e depth-first in field order.
func InspectExpr(e Expr, fn Visitor) {
	inspectExpr(e, nodeName(e), fn)
}

// nodeName returns the unqualified type name used in paths.
func nodeName(n any) string {
	if n == nil {
		return "nil"
	}
	name := fmt.Sprintf("%T", n)
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

func inspectQuery(q Query, path string, fn Visitor) {
	if q == nil || !fn(q, path) {
		return
	}
	switch n := q.(type) {
	case Source, GroupElements:
	case OfType:
		inspectQuery(n.Input, path+".Input", fn)
	case NavSource:
		inspectExpr(n.Of, path+".Of", fn)
	case Values:
		inspectExpr(n.Collection, path+".Collection", fn)
	case Filter:
		inspectQuery(n.Input, path+".Input", fn)
		inspectExpr(n.Predicate, path+".Predicate", fn)
	case Project:
		inspectQuery(n.Input, path+".Input", fn)
		for i, f := range n.Fields {
			inspectExpr(f.Value, fmt.Sprintf("%s.Fields[%d].Value", path, i), fn)
		}
	case Join:
		inspectQuery(n.Left, path+".Left", fn)
		inspectQuery(n.Right, path+".Right", fn)
		inspectExpr(n.On, path+".On", fn)
	case GroupBy:
		inspectQuery(n.Input, path+".Input", fn)
		for i, f := range n.Keys {
			inspectExpr(f.Value, fmt.Sprintf("%s.Keys[%d].Value", path, i), fn)
		}
	case OrderBy:
		inspectQuery(n.Input, path+".Input", fn)
		for i, k := range n.Keys {
			inspectExpr(k.Key, fmt.Sprintf("%s.Keys[%d].Key", path, i), fn)
		}
	case Paginate:
		inspectQuery(n.Input, path+".Input", fn)
		inspectExpr(n.Offset, path+".Offset", fn)
		inspectExpr(n.Limit, path+".Limit", fn)
	case Distinct:
		inspectQuery(n.Input, path+".Input", fn)
	case SetOp:
		inspectQuery(n.Left, path+".Left", fn)
		inspectQuery(n.Right, path+".Right", fn)
	}
}

func inspectExpr(e Expr, path string, fn Visitor) {
	if e == nil || !fn(e, path) {
		return
	}
	switch n := e.(type) {
	case Var, Const, Param:
	case Prop:
		inspectExpr(n.Of, path+".Of", fn)
	case Nav:
		inspectExpr(n.Of, path+".Of", fn)
	case Compare:
		inspectExpr(n.L, path+".L", fn)
		inspectExpr(n.R, path+".R", fn)
	case Logical:
		for i, t := range n.Terms {
			inspectExpr(t, fmt.Sprintf("%s.Terms[%d]", path, i), fn)
		}
	case Not:
		inspectExpr(n.Operand, path+".Operand", fn)
	case IsNull:
		inspectExpr(n.Operand, path+".Operand", fn)
	case Arith:
		inspectExpr(n.L, path+".L", fn)
		inspectExpr(n.R, path+".R", fn)
	case Negate:
		inspectExpr(n.Operand, path+".Operand", fn)
	case HasFlag:
		inspectExpr(n.Value, path+".Value", fn)
		inspectExpr(n.Flag, path+".Flag", fn)
	case Coalesce:
		for i, o := range n.Operands {
			inspectExpr(o, fmt.Sprintf("%s.Operands[%d]", path, i), fn)
		}
	case Conditional:
		inspectExpr(n.Test, path+".Test", fn)
		inspectExpr(n.Then, path+".Then", fn)
		inspectExpr(n.Else, path+".Else", fn)
	case Convert:
		inspectExpr(n.Operand, path+".Operand", fn)
	case DatePart:
		inspectExpr(n.Operand, path+".Operand", fn)
	case DateAdd:
		inspectExpr(n.Operand, path+".Operand", fn)
		inspectExpr(n.Amount, path+".Amount", fn)
	case DateDiff:
		inspectExpr(n.Start, path+".Start", fn)
		inspectExpr(n.End, path+".End", fn)
	case Call:
		for i, a := range n.Args {
			inspectExpr(a, fmt.Sprintf("%s.Args[%d]", path, i), fn)
		}
	case Subquery:
		inspectQuery(n.Query, path+".Query", fn)
	case Aggregate:
		inspectQuery(n.Source, path+".Source", fn)
		inspectExpr(n.Selector, path+".Selector", fn)
	case Exists:
		inspectQuery(n.Source, path+".Source", fn)
	case Contains:
		inspectExpr(n.Item, path+".Item", fn)
		inspectExpr(n.Collection, path+".Collection", fn)
		inspectQuery(n.Source, path+".Source", fn)
	case TypeIs:
		inspectExpr(n.Of, path+".Of", fn)
	}
}
