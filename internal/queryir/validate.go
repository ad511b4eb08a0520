package queryir

import (
	"errors"
	"strings"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qerr"
)

// callArity is the accepted argument count range per function.
var callArity = map[Func][2]int{
	FuncContains:   {2, 2},
	FuncStartsWith: {2, 2},
	FuncEndsWith:   {2, 2},
	FuncLength:     {1, 1},
	FuncUpper:      {1, 1},
	FuncLower:      {1, 1},
	FuncTrim:       {1, 1},
	FuncConcat:     {2, -1},
	FuncAbs:        {1, 1},
	FuncRound:      {1, 2},
	FuncFloor:      {1, 1},
	FuncCeiling:    {1, 1},
	FuncTruncate:   {1, 2},
}

// Validate checks the structural rules of a query tree that do not need the
// model: required fields, arities, pagination operands and the placement of
// GroupElements. Every problem is reported as an UNSUPPORTED_PATTERN error
// located at its path; the result joins all of them.
//
// Validate is a pure function with no side effects.
func Validate(q Query) error {
	v := &validator{}
	if q == nil {
		return qerr.Unsupported("nil", "", "query is nil")
	}
	Inspect(q, v.visit)
	for _, p := range v.groupElements {
		if !v.insideAggregate(p) {
			v.add("GroupElements", p, "group elements can only be aggregated")
		}
	}
	return errors.Join(v.errs...)
}

type validator struct {
	errs          []error
	aggSources    []string
	groupElements []string
}

func (v *validator) add(op, path, format string, args ...any) {
	v.errs = append(v.errs, qerr.Unsupported(op, path, format, args...))
}

func (v *validator) insideAggregate(path string) bool {
	for _, src := range v.aggSources {
		if path == src || strings.HasPrefix(path, src+".") {
			return true
		}
	}
	return false
}

func (v *validator) visit(node any, path string) bool {
	switch n := node.(type) {
	case Source:
		v.requireName("Source", path, "entity", n.Entity)
		v.requireName("Source", path, "range variable", n.As)
	case OfType:
		v.requireQuery("OfType", path+".Input", n.Input)
		if len(n.Subtypes) == 0 {
			v.add("OfType", path, "at least one subtype is required")
		}
	case NavSource:
		v.requireExpr("NavSource", path+".Of", n.Of)
		v.requireName("NavSource", path, "navigation", n.Navigation)
		v.requireName("NavSource", path, "range variable", n.As)
	case Values:
		v.requireExpr("Values", path+".Collection", n.Collection)
		v.requireName("Values", path, "range variable", n.As)
	case GroupElements:
		v.requireName("GroupElements", path, "group variable", n.Group)
		v.requireName("GroupElements", path, "range variable", n.As)
		v.groupElements = append(v.groupElements, path)
	case Filter:
		v.requireQuery("Filter", path+".Input", n.Input)
		v.requireExpr("Filter", path+".Predicate", n.Predicate)
	case Project:
		v.requireQuery("Project", path+".Input", n.Input)
		v.fields("Project", path, "Fields", n.Fields)
	case Join:
		v.requireQuery("Join", path+".Left", n.Left)
		v.requireQuery("Join", path+".Right", n.Right)
		if n.Kind != JoinCross && n.On == nil && !isNavSource(n.Right) {
			v.add("Join", path, "%s join requires an On predicate", n.Kind)
		}
	case GroupBy:
		v.requireQuery("GroupBy", path+".Input", n.Input)
		v.requireName("GroupBy", path, "group variable", n.As)
		v.fields("GroupBy", path, "Keys", n.Keys)
	case OrderBy:
		v.requireQuery("OrderBy", path+".Input", n.Input)
		if len(n.Keys) == 0 {
			v.add("OrderBy", path, "at least one key is required")
		}
		for i, k := range n.Keys {
			if k.Key == nil {
				v.add("OrderBy", path, "key %d is nil", i)
			}
		}
	case Paginate:
		v.requireQuery("Paginate", path+".Input", n.Input)
		if n.Offset == nil && n.Limit == nil {
			v.add("Paginate", path, "offset or limit is required")
		}
		v.pageOperand(path+".Offset", n.Offset)
		v.pageOperand(path+".Limit", n.Limit)
	case Distinct:
		v.requireQuery("Distinct", path+".Input", n.Input)
	case SetOp:
		v.requireQuery("SetOp", path+".Left", n.Left)
		v.requireQuery("SetOp", path+".Right", n.Right)
		v.requireName("SetOp", path, "range variable", n.As)

	case Var:
		v.requireName("Var", path, "name", n.Name)
	case Prop:
		v.requireExpr("Prop", path+".Of", n.Of)
		v.requireName("Prop", path, "name", n.Name)
	case Nav:
		v.requireExpr("Nav", path+".Of", n.Of)
		v.requireName("Nav", path, "name", n.Name)
	case Param:
		v.requireName("Param", path, "name", n.Name)
	case Compare:
		v.requireExpr("Compare", path+".L", n.L)
		v.requireExpr("Compare", path+".R", n.R)
	case Logical:
		if len(n.Terms) == 0 {
			v.add("Logical", path, "at least one term is required")
		}
		for i, t := range n.Terms {
			if t == nil {
				v.add("Logical", path, "term %d is nil", i)
			}
		}
	case Not:
		v.requireExpr("Not", path+".Operand", n.Operand)
	case IsNull:
		v.requireExpr("IsNull", path+".Operand", n.Operand)
	case Arith:
		v.requireExpr("Arith", path+".L", n.L)
		v.requireExpr("Arith", path+".R", n.R)
	case Negate:
		v.requireExpr("Negate", path+".Operand", n.Operand)
	case HasFlag:
		v.requireExpr("HasFlag", path+".Value", n.Value)
		switch n.Flag.(type) {
		case Const, Param:
		default:
			v.add("HasFlag", path+".Flag", "flag must be a constant or parameter")
		}
	case Coalesce:
		if len(n.Operands) < 2 {
			v.add("Coalesce", path, "at least two operands are required")
		}
	case Conditional:
		v.requireExpr("Conditional", path+".Test", n.Test)
		v.requireExpr("Conditional", path+".Then", n.Then)
		v.requireExpr("Conditional", path+".Else", n.Else)
	case Convert:
		v.requireExpr("Convert", path+".Operand", n.Operand)
	case DatePart:
		v.requireExpr("DatePart", path+".Operand", n.Operand)
	case DateAdd:
		v.requireExpr("DateAdd", path+".Operand", n.Operand)
		v.requireExpr("DateAdd", path+".Amount", n.Amount)
	case DateDiff:
		v.requireExpr("DateDiff", path+".Start", n.Start)
		v.requireExpr("DateDiff", path+".End", n.End)
	case Call:
		arity, ok := callArity[n.Fn]
		if !ok {
			v.add("Call", path, "unknown function %q", n.Fn)
			break
		}
		if len(n.Args) < arity[0] || (arity[1] >= 0 && len(n.Args) > arity[1]) {
			v.add("Call", path, "%s takes %d..%d arguments, got %d", n.Fn, arity[0], arity[1], len(n.Args))
		}
	case Subquery:
		v.requireQuery("Subquery", path+".Query", n.Query)
	case Aggregate:
		v.requireQuery("Aggregate", path+".Source", n.Source)
		v.aggSources = append(v.aggSources, path+".Source")
		if n.Op != Count && n.Selector == nil {
			v.add("Aggregate", path, "%s requires a selector", n.Op)
		}
	case Exists:
		v.requireQuery("Exists", path+".Source", n.Source)
	case Contains:
		v.requireExpr("Contains", path+".Item", n.Item)
		if (n.Collection == nil) == (n.Source == nil) {
			v.add("Contains", path, "exactly one of collection or source is required")
		}
	case TypeIs:
		v.requireExpr("TypeIs", path+".Of", n.Of)
		if len(n.Subtypes) == 0 {
			v.add("TypeIs", path, "at least one subtype is required")
		}
	}
	return true
}

func (v *validator) requireName(op, path, what, name string) {
	if strings.TrimSpace(name) == "" {
		v.add(op, path, "%s is required", what)
	}
}

func (v *validator) requireQuery(op, path string, q Query) {
	if q == nil {
		v.add(op, path, "query is nil")
	}
}

func (v *validator) requireExpr(op, path string, e Expr) {
	if e == nil {
		v.add(op, path, "expression is nil")
	}
}

func (v *validator) fields(op, path, what string, fields []Field) {
	if len(fields) == 0 {
		v.add(op, path, "at least one entry in %s is required", what)
	}
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			v.add(op, path, "%s[%d] has no name", what, i)
		} else if seen[f.Name] {
			v.add(op, path, "%s[%d] duplicates name %q", what, i, f.Name)
		}
		seen[f.Name] = true
		if f.Value == nil {
			v.add(op, path, "%s[%d] has no value", what, i)
		}
	}
}

// pageOperand accepts nil, a non-negative integer constant or an integer
// parameter.
func (v *validator) pageOperand(path string, e Expr) {
	switch n := e.(type) {
	case nil:
	case Const:
		if i, ok := n.Value.(ir.IRInt); !ok || i < 0 {
			v.add("Paginate", path, "must be a non-negative integer")
		}
	case Param:
		switch val := n.Value.(type) {
		case ir.IRInt:
			if val < 0 {
				v.add("Paginate", path, "parameter %q must be non-negative", n.Name)
			}
		default:
			v.add("Paginate", path, "parameter %q must be an integer", n.Name)
		}
	default:
		v.add("Paginate", path, "must be a constant or parameter")
	}
}

func isNavSource(q Query) bool {
	switch n := q.(type) {
	case NavSource:
		return true
	case Filter:
		return isNavSource(n.Input)
	case OrderBy:
		return isNavSource(n.Input)
	case Paginate:
		return isNavSource(n.Input)
	case Distinct:
		return isNavSource(n.Input)
	case Project:
		return isNavSource(n.Input)
	}
	return false
}
