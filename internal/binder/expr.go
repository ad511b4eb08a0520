package binder

import (
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/navigate"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
)

// expr binds e in the scope of f. Navigations add their joins to f.
func (b *binder) expr(f frame, e queryir.Expr) (value, frame, error) {
	switch n := e.(type) {
	case queryir.Var:
		v, ok := f.lookup(n.Name)
		if !ok {
			return value{}, f, qerr.Unresolved(n.Name, "unknown range variable %q", n.Name)
		}
		return v, f, nil
	case queryir.Prop:
		return b.member(f, n.Of, n.Name, false)
	case queryir.Nav:
		return b.member(f, n.Of, n.Name, true)
	case queryir.Subquery:
		return value{}, f, qerr.Unsupported("Subquery", "", "a nested collection can only be projected as a field")
	}
	x, f, err := b.compute(f, e)
	if err != nil {
		return value{}, f, err
	}
	return scalarValue(x), f, nil
}

// scalar binds e, which must denote a single column.
func (b *binder) scalar(f frame, e queryir.Expr) (relational.Expr, frame, error) {
	v, f, err := b.expr(f, e)
	if err != nil {
		return nil, f, err
	}
	if v.scalar == nil {
		return nil, f, qerr.Unsupported(opName(e), "", "expected a scalar, got a %s", v.kind())
	}
	return v.scalar, f, nil
}

// scalars binds es in order. Untyped constants take the type of the first
// typed operand.
func (b *binder) scalars(f frame, es ...queryir.Expr) ([]relational.Expr, frame, error) {
	out := make([]relational.Expr, len(es))
	var (
		hint  model.Type
		typed bool
		err   error
	)
	for i, e := range es {
		if out[i], f, err = b.scalar(f, e); err != nil {
			return nil, f, err
		}
		if !typed && !untyped(e) {
			hint, typed = out[i].Type(), true
		}
	}
	if typed {
		for i, e := range es {
			if untyped(e) {
				out[i] = retype(out[i], hint)
			}
		}
	}
	return out, f, nil
}

func (b *binder) member(f frame, of queryir.Expr, name string, navOnly bool) (value, frame, error) {
	v, f, err := b.expr(f, of)
	if err != nil {
		return value{}, f, err
	}
	switch {
	case v.entity != nil:
		ent := v.entity
		if !navOnly {
			if _, ok := ent.Shape.Property(name); ok {
				x, err := ent.Property(name)
				return scalarValue(x), f, err
			}
			if _, ok := ent.Shape.Navigation(name); !ok {
				return value{}, f, qerr.Unresolved(name, "shape %q has no property or navigation %q", ent.Shape.Name, name)
			}
		}
		exp, aliases, joins, err := navigate.Expand(b.m, ent, name, f.aliases, f.joins)
		if err != nil {
			return value{}, f, err
		}
		f.aliases, f.joins = aliases, joins
		if !exp.Reused {
			f = f.addJoin(exp.Join)
		}
		return value{entity: exp.Target}, f, nil
	case v.row != nil:
		fv, ok := v.row.fields[name]
		if !ok {
			return value{}, f, qerr.Unresolved(name, "row has no field %q", name)
		}
		return fv, f, nil
	case v.group != nil:
		kv, ok := v.group.keys.fields[name]
		if !ok {
			return value{}, f, qerr.Unresolved(name, "group has no key %q", name)
		}
		return kv, f, nil
	}
	return value{}, f, qerr.Unsupported("Prop", "", "cannot read %q of a %s", name, v.kind())
}

// compute binds the expressions that always denote a scalar.
func (b *binder) compute(f frame, e queryir.Expr) (relational.Expr, frame, error) {
	switch n := e.(type) {
	case queryir.Const:
		return relational.Literal{Value: n.Value, ColType: typeOf(n.Type, n.Value)}, f, nil
	case queryir.Param:
		return relational.Parameter{Name: n.Name, Value: n.Value, ColType: typeOf(n.Type, n.Value), Element: -1}, f, nil
	case queryir.Compare:
		return b.compare(f, n)
	case queryir.Logical:
		terms, f, err := b.scalars(f, n.Terms...)
		if err != nil {
			return nil, f, err
		}
		if n.Op == queryir.Or {
			return relational.Or(terms...), f, nil
		}
		return relational.And(terms...), f, nil
	case queryir.Not:
		x, f, err := b.scalar(f, n.Operand)
		if err != nil {
			return nil, f, err
		}
		return relational.Not(x), f, nil
	case queryir.IsNull:
		v, f, err := b.expr(f, n.Operand)
		if err != nil {
			return nil, f, err
		}
		switch {
		case v.entity != nil:
			return relational.IsNull(v.entity.Keys()[0]), f, nil
		case v.scalar != nil:
			return relational.IsNull(v.scalar), f, nil
		}
		return nil, f, qerr.Unsupported("IsNull", "", "cannot test a %s for null", v.kind())
	case queryir.Arith:
		return b.arith(f, n)
	case queryir.Negate:
		x, f, err := b.scalar(f, n.Operand)
		if err != nil {
			return nil, f, err
		}
		return relational.Unary{Op: relational.OpNegate, Operand: x, ColType: x.Type(), Null: x.Nullability()}, f, nil
	case queryir.HasFlag:
		return b.hasFlag(f, n)
	case queryir.Coalesce:
		args, f, err := b.scalars(f, n.Operands...)
		if err != nil {
			return nil, f, err
		}
		return relational.Coalesce(commonType(args), args...), f, nil
	case queryir.Conditional:
		test, f, err := b.scalar(f, n.Test)
		if err != nil {
			return nil, f, err
		}
		arms, f, err := b.scalars(f, n.Then, n.Else)
		if err != nil {
			return nil, f, err
		}
		return relational.Case{
			Whens:   []relational.When{{Test: test, Then: arms[0]}},
			Else:    arms[1],
			ColType: commonType(arms),
			Null:    relational.Either(test.Nullability(), arms[0].Nullability(), arms[1].Nullability()),
		}, f, nil
	case queryir.Convert:
		return b.convert(f, n)
	case queryir.DatePart:
		return b.datePart(f, n)
	case queryir.DateAdd:
		return b.dateAdd(f, n)
	case queryir.DateDiff:
		return b.dateDiff(f, n)
	case queryir.Call:
		return b.call(f, n)
	case queryir.Aggregate:
		return b.aggregate(f, n)
	case queryir.Exists:
		return b.exists(f, n)
	case queryir.Contains:
		return b.contains(f, n)
	case queryir.TypeIs:
		v, f, err := b.expr(f, n.Of)
		if err != nil {
			return nil, f, err
		}
		if v.entity == nil {
			return nil, f, qerr.Unsupported("TypeIs", "", "only entities have a subtype, not a %s", v.kind())
		}
		x, err := typeIs(v.entity, n.Subtypes)
		return x, f, err
	}
	return nil, f, qerr.Unsupported(opName(e), "", "no translation for %s", opName(e))
}

var compareOps = map[queryir.CompareOp]relational.BinaryOp{
	queryir.Eq: relational.OpEq,
	queryir.Ne: relational.OpNe,
	queryir.Lt: relational.OpLt,
	queryir.Le: relational.OpLe,
	queryir.Gt: relational.OpGt,
	queryir.Ge: relational.OpGe,
}

func (b *binder) compare(f frame, n queryir.Compare) (relational.Expr, frame, error) {
	lv, f, err := b.expr(f, n.L)
	if err != nil {
		return nil, f, err
	}
	rv, f, err := b.expr(f, n.R)
	if err != nil {
		return nil, f, err
	}
	op := compareOps[n.Op]
	if lv.entity != nil || rv.entity != nil {
		x, err := compareEntities(op, lv, rv)
		return x, f, err
	}
	if lv.scalar == nil || rv.scalar == nil {
		return nil, f, qerr.Unsupported("Compare", "", "cannot compare a %s with a %s", lv.kind(), rv.kind())
	}
	l, r := lv.scalar, rv.scalar
	if untyped(n.L) {
		l = retype(l, r.Type())
	}
	if untyped(n.R) {
		r = retype(r, l.Type())
	}
	return relational.Compare(op, l, r), f, nil
}

// compareEntities compares entities by key. An entity compared with null
// tests its first key.
func compareEntities(op relational.BinaryOp, lv, rv value) (relational.Expr, error) {
	if op != relational.OpEq && op != relational.OpNe {
		return nil, qerr.Unsupported("Compare", "", "entities can only be compared for equality")
	}
	var x relational.Expr
	switch {
	case lv.entity != nil && rv.entity != nil:
		if lv.entity.Shape != rv.entity.Shape {
			return nil, qerr.Unsupported("Compare", "", "cannot compare %s with %s", lv.entity.Shape.Name, rv.entity.Shape.Name)
		}
		lk, rk := lv.entity.Keys(), rv.entity.Keys()
		terms := make([]relational.Expr, len(lk))
		for i := range lk {
			terms[i] = relational.Compare(relational.OpEq, lk[i], rk[i])
		}
		x = relational.And(terms...)
	case lv.entity != nil && rv.scalar != nil && relational.IsNullLiteral(rv.scalar):
		x = relational.IsNull(lv.entity.Keys()[0])
	case rv.entity != nil && lv.scalar != nil && relational.IsNullLiteral(lv.scalar):
		x = relational.IsNull(rv.entity.Keys()[0])
	default:
		return nil, qerr.Unsupported("Compare", "", "cannot compare a %s with a %s", lv.kind(), rv.kind())
	}
	if op == relational.OpNe {
		return relational.Not(x), nil
	}
	return x, nil
}

var arithOps = map[queryir.ArithOp]relational.BinaryOp{
	queryir.Add:    relational.OpAdd,
	queryir.Sub:    relational.OpSub,
	queryir.Mul:    relational.OpMul,
	queryir.Div:    relational.OpDiv,
	queryir.Mod:    relational.OpMod,
	queryir.BitAnd: relational.OpBitAnd,
	queryir.BitOr:  relational.OpBitOr,
	queryir.BitXor: relational.OpBitXor,
}

func (b *binder) arith(f frame, n queryir.Arith) (relational.Expr, frame, error) {
	xs, f, err := b.scalars(f, n.L, n.R)
	if err != nil {
		return nil, f, err
	}
	l, r := xs[0], xs[1]
	if n.Op == queryir.Add && (l.Type().Kind == model.KindString || r.Type().Kind == model.KindString) {
		return concat(l, r), f, nil
	}
	return relational.Arith(arithOps[n.Op], l, r, arithType(n.Op, l.Type(), r.Type())), f, nil
}

// arithType is the result type of l op r.
func arithType(op queryir.ArithOp, l, r model.Type) model.Type {
	l, r = l.Underlying(), r.Underlying()
	switch {
	case op >= queryir.BitAnd:
		return l
	case l.Kind == model.KindFloat || r.Kind == model.KindFloat:
		return model.Float
	case l.Kind == model.KindDecimal || r.Kind == model.KindDecimal || op == queryir.Div:
		return model.Decimal
	case l.Kind == model.KindInt && r.Kind == model.KindInt && r.Bits > l.Bits:
		return r
	}
	return l
}

func (b *binder) hasFlag(f frame, n queryir.HasFlag) (relational.Expr, frame, error) {
	xs, f, err := b.scalars(f, n.Value, n.Flag)
	if err != nil {
		return nil, f, err
	}
	v, flag := xs[0], xs[1]
	u := v.Type().Underlying()
	masked := relational.Cast{Operand: relational.Arith(relational.OpBitAnd, v, flag, u), To: u}
	return relational.Compare(relational.OpEq, masked, flag), f, nil
}

func (b *binder) convert(f frame, n queryir.Convert) (relational.Expr, frame, error) {
	x, f, err := b.scalar(f, n.Operand)
	if err != nil {
		return nil, f, err
	}
	if x.Type().Equal(n.To) {
		return x, f, nil
	}
	if l, ok := x.(relational.Literal); ok && ir.IsNull(l.Value) {
		return relational.TypedNull(n.To), f, nil
	}
	return relational.Cast{Operand: x, To: n.To}, f, nil
}

// untyped reports whether e is a constant or parameter whose type is to be
// inferred from the operand it meets.
func untyped(e queryir.Expr) bool {
	switch n := e.(type) {
	case queryir.Const:
		return n.Type.Kind == model.KindInvalid
	case queryir.Param:
		return n.Type.Kind == model.KindInvalid
	}
	return false
}

// retype gives a bound constant or parameter the type t.
func retype(e relational.Expr, t model.Type) relational.Expr {
	if t.Kind == model.KindInvalid {
		return e
	}
	switch x := e.(type) {
	case relational.Literal:
		if !x.Trusted {
			x.ColType = t
		}
		return x
	case relational.Parameter:
		x.ColType = t
		return x
	}
	return e
}

// commonType is the type of the first operand that is not a null literal.
func commonType(es []relational.Expr) model.Type {
	for _, e := range es {
		if !relational.IsNullLiteral(e) {
			return e.Type()
		}
	}
	if len(es) > 0 {
		return es[0].Type()
	}
	return model.Type{}
}

// typeOf infers the type of a constant value when t is zero.
func typeOf(t model.Type, v ir.IRValue) model.Type {
	if t.Kind != model.KindInvalid {
		return t
	}
	switch x := v.(type) {
	case ir.IRInt:
		return model.Int64
	case ir.IRString:
		return model.String
	case ir.IRBool:
		return model.Bool
	case ir.IRFloat:
		return model.Float
	case ir.IRDecimal:
		return model.Decimal
	case ir.IRTime:
		return model.DateTime
	case ir.IRGuid:
		return model.Guid
	case ir.IRArray:
		return model.ArrayOf(elemType(model.Type{}, x))
	}
	return model.Type{}
}

// elemType is the element type of a list value.
func elemType(t model.Type, arr ir.IRArray) model.Type {
	if t.Kind == model.KindArray && t.Elem != nil {
		return *t.Elem
	}
	for _, v := range arr {
		if !ir.IsNull(v) {
			return typeOf(model.Type{}, v)
		}
	}
	return model.String
}
