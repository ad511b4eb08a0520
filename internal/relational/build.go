package relational

import (
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
)

// Boolean literals.
var (
	True  = Literal{Value: ir.IRBool(true), ColType: model.Bool}
	False = Literal{Value: ir.IRBool(false), ColType: model.Bool}
)

// Bool returns the boolean literal b.
func Bool(b bool) Literal {
	if b {
		return True
	}
	return False
}

// Int returns an integer literal.
func Int(i int64) Literal {
	return Literal{Value: ir.IRInt(i), ColType: model.Int64}
}

// Text returns a trusted string literal, printed inline.
func Text(s string) Literal {
	return Literal{Value: ir.IRString(s), ColType: model.String, Trusted: true}
}

// TypedNull returns CAST(NULL AS t).
func TypedNull(t model.Type) Expr {
	return Cast{Operand: Literal{Value: ir.IRNull{}, ColType: t}, To: t}
}

// IsTrue reports whether e is the literal TRUE.
func IsTrue(e Expr) bool {
	l, ok := e.(Literal)
	return ok && l.Value == ir.IRBool(true)
}

// IsFalse reports whether e is the literal FALSE.
func IsFalse(e Expr) bool {
	l, ok := e.(Literal)
	return ok && l.Value == ir.IRBool(false)
}

// IsNullLiteral reports whether e is a NULL literal, a typed NULL or a
// parameter whose value is null.
func IsNullLiteral(e Expr) bool {
	switch n := e.(type) {
	case Literal:
		return ir.IsNull(n.Value)
	case Parameter:
		return ir.IsNull(n.Value)
	case Cast:
		return IsNullLiteral(n.Operand)
	}
	return false
}

// And joins terms with AND, skipping nil terms and folding boolean
// literals. It returns TRUE for no terms.
func And(terms ...Expr) Expr {
	return logical(OpAnd, terms)
}

// Or joins terms with OR, skipping nil terms and folding boolean literals.
// It returns FALSE for no terms.
func Or(terms ...Expr) Expr {
	return logical(OpOr, terms)
}

func logical(op BinaryOp, terms []Expr) Expr {
	unit, zero := IsTrue, IsFalse
	if op == OpOr {
		unit, zero = IsFalse, IsTrue
	}
	var out Expr
	for _, t := range terms {
		if t == nil || unit(t) {
			continue
		}
		if zero(t) {
			return t
		}
		if out == nil {
			out = t
			continue
		}
		out = Binary{
			Op:      op,
			L:       out,
			R:       t,
			ColType: model.Bool,
			Null:    Either(out.Nullability(), t.Nullability()),
			SQL:     true,
		}
	}
	if out == nil {
		return Bool(op == OpAnd)
	}
	return out
}

// Not negates e, folding literals, double negation and null tests.
func Not(e Expr) Expr {
	switch n := e.(type) {
	case Literal:
		if b, ok := n.Value.(ir.IRBool); ok {
			return Bool(!bool(b))
		}
	case Unary:
		switch n.Op {
		case OpNot:
			return n.Operand
		case OpIsNull:
			return IsNotNull(n.Operand)
		case OpIsNotNull:
			return IsNull(n.Operand)
		}
	}
	return Unary{Op: OpNot, Operand: e, ColType: model.Bool, Null: e.Nullability()}
}

// IsNull returns "e IS NULL", folded to FALSE when e is never null and to
// TRUE when e is a null literal.
func IsNull(e Expr) Expr {
	if e.Nullability() == NeverNull {
		return False
	}
	if IsNullLiteral(e) {
		return True
	}
	return Unary{Op: OpIsNull, Operand: e, ColType: model.Bool}
}

// IsNotNull returns "e IS NOT NULL", folded like IsNull.
func IsNotNull(e Expr) Expr {
	if e.Nullability() == NeverNull {
		return True
	}
	if IsNullLiteral(e) {
		return False
	}
	return Unary{Op: OpIsNotNull, Operand: e, ColType: model.Bool}
}

// Compare builds an object-semantics comparison, to be rewritten by the
// null-semantics pass.
func Compare(op BinaryOp, l, r Expr) Binary {
	return Binary{Op: op, L: l, R: r, ColType: model.Bool, Null: Either(l.Nullability(), r.Nullability())}
}

// SQLCompare builds a comparison printed as plain SQL.
func SQLCompare(op BinaryOp, l, r Expr) Binary {
	b := Compare(op, l, r)
	b.SQL = true
	return b
}

// Arith builds an arithmetic or bitwise expression of type t.
func Arith(op BinaryOp, l, r Expr, t model.Type) Binary {
	return Binary{Op: op, L: l, R: r, ColType: t, Null: Either(l.Nullability(), r.Nullability()), SQL: true}
}

// Coalesce builds COALESCE(args...). It is never null when any argument is
// never null.
func Coalesce(t model.Type, args ...Expr) Expr {
	null := MaybeNull
	for _, a := range args {
		if a.Nullability() == NeverNull {
			null = NeverNull
		}
	}
	return Function{Name: "COALESCE", Args: args, ColType: t, Null: null}
}

// Func builds a function call whose result is null when any argument is.
func Func(name string, t model.Type, args ...Expr) Function {
	null := NeverNull
	for _, a := range args {
		null = Either(null, a.Nullability())
	}
	return Function{Name: name, Args: args, ColType: t, Null: null}
}

// WithNullability returns e tagged with n where e carries its own tag.
func WithNullability(e Expr, n Nullability) Expr {
	switch x := e.(type) {
	case Column:
		x.Null = n
		return x
	case Binary:
		x.Null = n
		return x
	case Unary:
		x.Null = n
		return x
	case Case:
		x.Null = n
		return x
	case Function:
		x.Null = n
		return x
	case Subquery:
		x.Null = n
		return x
	case Aggregate:
		x.Null = n
		return x
	}
	return e
}
