package queryir

import (
	"fmt"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
)

// Fingerprint encodes the structure of q as an IRObject. Constants are part
// of the structure; parameters contribute their name and type only, so two
// queries differing only in parameter values share a fingerprint.
func Fingerprint(q Query) (ir.IRObject, error) {
	v, err := fingerprintQuery(q)
	if err != nil {
		return nil, err
	}
	return ir.IRObject{"v": ir.IRString(ir.IRVersion), "q": v}, nil
}

// Hash returns the structural hash of q.
func Hash(q Query) (string, error) {
	fp, err := Fingerprint(q)
	if err != nil {
		return "", err
	}
	return ir.Hash(ir.DomainQuery, fp)
}

func node(kind string, kv ...any) ir.IRObject {
	obj := ir.IRObject{"k": ir.IRString(kind)}
	for i := 0; i+1 < len(kv); i += 2 {
		obj[kv[i].(string)] = kv[i+1].(ir.IRValue)
	}
	return obj
}

func str(s string) ir.IRValue { return ir.IRString(s) }

func strs(ss []string) ir.IRValue {
	arr := make(ir.IRArray, len(ss))
	for i, s := range ss {
		arr[i] = ir.IRString(s)
	}
	return arr
}

func fingerprintQuery(q Query) (ir.IRValue, error) {
	if q == nil {
		return ir.IRNull{}, nil
	}
	var (
		kids = map[string]Query{}
		exps = map[string]Expr{}
		obj  ir.IRObject
	)
	switch n := q.(type) {
	case Source:
		obj = node("source", "entity", str(n.Entity), "as", str(n.As))
	case OfType:
		obj = node("oftype", "subtypes", strs(n.Subtypes))
		kids["input"] = n.Input
	case NavSource:
		obj = node("navsource", "nav", str(n.Navigation), "as", str(n.As))
		exps["of"] = n.Of
	case Values:
		obj = node("values", "as", str(n.As))
		exps["collection"] = n.Collection
	case GroupElements:
		obj = node("groupelements", "group", str(n.Group), "as", str(n.As))
	case Filter:
		obj = node("filter")
		kids["input"] = n.Input
		exps["predicate"] = n.Predicate
	case Project:
		fields, err := fingerprintFields(n.Fields)
		if err != nil {
			return nil, err
		}
		obj = node("project", "as", str(n.As), "fields", fields)
		kids["input"] = n.Input
	case Join:
		obj = node("join", "kind", str(n.Kind.String()))
		kids["left"], kids["right"] = n.Left, n.Right
		exps["on"] = n.On
	case GroupBy:
		keys, err := fingerprintFields(n.Keys)
		if err != nil {
			return nil, err
		}
		obj = node("groupby", "as", str(n.As), "keys", keys)
		kids["input"] = n.Input
	case OrderBy:
		keys := make(ir.IRArray, len(n.Keys))
		for i, k := range n.Keys {
			kv, err := fingerprintExpr(k.Key)
			if err != nil {
				return nil, err
			}
			keys[i] = ir.IRObject{"key": kv, "desc": ir.IRBool(k.Desc)}
		}
		obj = node("orderby", "keys", keys)
		kids["input"] = n.Input
	case Paginate:
		obj = node("paginate")
		kids["input"] = n.Input
		exps["offset"], exps["limit"] = n.Offset, n.Limit
	case Distinct:
		obj = node("distinct")
		kids["input"] = n.Input
	case SetOp:
		obj = node("setop", "kind", str(n.Kind.String()), "as", str(n.As))
		kids["left"], kids["right"] = n.Left, n.Right
	default:
		return nil, fmt.Errorf("fingerprint: unknown query node %T", q)
	}
	for k, child := range kids {
		v, err := fingerprintQuery(child)
		if err != nil {
			return nil, err
		}
		obj[k] = v
	}
	for k, e := range exps {
		v, err := fingerprintExpr(e)
		if err != nil {
			return nil, err
		}
		obj[k] = v
	}
	return obj, nil
}

func fingerprintFields(fields []Field) (ir.IRValue, error) {
	arr := make(ir.IRArray, len(fields))
	for i, f := range fields {
		v, err := fingerprintExpr(f.Value)
		if err != nil {
			return nil, err
		}
		arr[i] = ir.IRObject{"name": ir.IRString(f.Name), "value": v}
	}
	return arr, nil
}

func fingerprintExprs(es []Expr) (ir.IRValue, error) {
	arr := make(ir.IRArray, len(es))
	for i, e := range es {
		v, err := fingerprintExpr(e)
		if err != nil {
			return nil, err
		}
		arr[i] = v
	}
	return arr, nil
}

func typeName(t model.Type) ir.IRValue {
	if t.Kind == model.KindInvalid {
		return ir.IRNull{}
	}
	return ir.IRString(t.String())
}

func fingerprintExpr(e Expr) (ir.IRValue, error) {
	if e == nil {
		return ir.IRNull{}, nil
	}
	var (
		exps = map[string]Expr{}
		qs   = map[string]Query{}
		obj  ir.IRObject
	)
	switch n := e.(type) {
	case Var:
		obj = node("var", "name", str(n.Name))
	case Prop:
		obj = node("prop", "name", str(n.Name))
		exps["of"] = n.Of
	case Nav:
		obj = node("nav", "name", str(n.Name))
		exps["of"] = n.Of
	case Const:
		val := n.Value
		if val == nil {
			val = ir.IRNull{}
		}
		obj = node("const", "value", val, "type", typeName(n.Type))
	case Param:
		obj = node("param", "name", str(n.Name), "type", typeName(n.Type))
	case Compare:
		obj = node("compare", "op", str(n.Op.String()))
		exps["l"], exps["r"] = n.L, n.R
	case Logical:
		terms, err := fingerprintExprs(n.Terms)
		if err != nil {
			return nil, err
		}
		obj = node("logical", "op", str(n.Op.String()), "terms", terms)
	case Not:
		obj = node("not")
		exps["operand"] = n.Operand
	case IsNull:
		obj = node("isnull")
		exps["operand"] = n.Operand
	case Arith:
		obj = node("arith", "op", str(n.Op.String()))
		exps["l"], exps["r"] = n.L, n.R
	case Negate:
		obj = node("negate")
		exps["operand"] = n.Operand
	case HasFlag:
		obj = node("hasflag")
		exps["value"], exps["flag"] = n.Value, n.Flag
	case Coalesce:
		ops, err := fingerprintExprs(n.Operands)
		if err != nil {
			return nil, err
		}
		obj = node("coalesce", "operands", ops)
	case Conditional:
		obj = node("conditional")
		exps["test"], exps["then"], exps["else"] = n.Test, n.Then, n.Else
	case Convert:
		obj = node("convert", "to", typeName(n.To))
		exps["operand"] = n.Operand
	case DatePart:
		obj = node("datepart", "part", str(n.Part.String()))
		exps["operand"] = n.Operand
	case DateAdd:
		obj = node("dateadd", "unit", str(n.Unit.String()))
		exps["operand"], exps["amount"] = n.Operand, n.Amount
	case DateDiff:
		obj = node("datediff", "unit", str(n.Unit.String()))
		exps["start"], exps["end"] = n.Start, n.End
	case Call:
		args, err := fingerprintExprs(n.Args)
		if err != nil {
			return nil, err
		}
		obj = node("call", "fn", str(string(n.Fn)), "args", args)
	case Subquery:
		obj = node("subquery")
		qs["query"] = n.Query
	case Aggregate:
		def := n.Default
		if def == nil {
			def = ir.IRNull{}
		}
		obj = node("aggregate", "op", str(n.Op.String()), "distinct", ir.IRBool(n.Distinct), "default", def)
		qs["source"] = n.Source
		exps["selector"] = n.Selector
	case Exists:
		obj = node("exists")
		qs["source"] = n.Source
	case Contains:
		obj = node("contains")
		exps["item"], exps["collection"] = n.Item, n.Collection
		qs["source"] = n.Source
	case TypeIs:
		obj = node("typeis", "subtypes", strs(n.Subtypes))
		exps["of"] = n.Of
	default:
		return nil, fmt.Errorf("fingerprint: unknown expression node %T", e)
	}
	for k, child := range exps {
		v, err := fingerprintExpr(child)
		if err != nil {
			return nil, err
		}
		obj[k] = v
	}
	for k, child := range qs {
		v, err := fingerprintQuery(child)
		if err != nil {
			return nil, err
		}
		obj[k] = v
	}
	return obj, nil
}
