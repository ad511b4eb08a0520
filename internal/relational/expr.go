package relational

import (
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
)

// Nullability records whether an expression can evaluate to NULL. It is
// computed bottom-up when an expression is built and never re-derived.
type Nullability int

const (
	NeverNull Nullability = iota
	MaybeNull
)

func (n Nullability) String() string {
	if n == MaybeNull {
		return "maybe-null"
	}
	return "never-null"
}

// Either returns MaybeNull if any of ns is MaybeNull.
func Either(ns ...Nullability) Nullability {
	for _, n := range ns {
		if n == MaybeNull {
			return MaybeNull
		}
	}
	return NeverNull
}

// Expr is a relational expression.
//
// This is a sealed interface - only types in this package implement it.
type Expr interface {
	Type() model.Type
	Nullability() Nullability
	exprNode()
}

// Column references a column of a table alias. An empty Table refers to a
// projection alias of the enclosing select.
type Column struct {
	Table   string
	Name    string
	ColType model.Type
	Null    Nullability
}

func (c Column) Type() model.Type { return c.ColType }
func (c Column) Nullability() Nullability { return c.Null }
func (Column) exprNode() {}

// Literal is a constant. Trusted literals (discriminators, JSON paths) are
// always printed inline; other literals are inlined only when their type is
// numeric or boolean.
type Literal struct {
	Value   ir.IRValue
	ColType model.Type
	Trusted bool
}

func (l Literal) Type() model.Type { return l.ColType }
func (l Literal) Nullability() Nullability {
	if ir.IsNull(l.Value) {
		return MaybeNull
	}
	return NeverNull
}
func (Literal) exprNode() {}

// Parameter is a named query parameter. Element selects one element of a
// list parameter, or is -1 for the whole value. JSON parameters are passed
// as JSON text.
type Parameter struct {
	Name    string
	Value   ir.IRValue
	ColType model.Type
	Element int
	JSON    bool
}

func (p Parameter) Type() model.Type { return p.ColType }
func (p Parameter) Nullability() Nullability {
	if ir.IsNull(p.Value) {
		return MaybeNull
	}
	return NeverNull
}
func (Parameter) exprNode() {}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
)

var binaryTokens = [...]string{"=", "<>", "<", "<=", ">", ">=", "AND", "OR", "+", "-", "*", "/", "%", "&", "|", "^"}

// Token returns the SQL spelling of op.
func (op BinaryOp) Token() string { return binaryTokens[op] }

// IsComparison reports whether op compares its operands.
func (op BinaryOp) IsComparison() bool { return op <= OpGe }

// IsLogical reports whether op is AND or OR.
func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// Binary applies op to L and R. A comparison with SQL unset uses object
// semantics (null equals null) and is rewritten by the null-semantics pass;
// SQL comparisons are printed as they are.
type Binary struct {
	Op      BinaryOp
	L       Expr
	R       Expr
	ColType model.Type
	Null    Nullability
	SQL     bool
}

func (b Binary) Type() model.Type { return b.ColType }
func (b Binary) Nullability() Nullability { return b.Null }
func (Binary) exprNode() {}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNegate
	OpIsNull
	OpIsNotNull
)

// Unary applies op to Operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
	ColType model.Type
	Null    Nullability
}

func (u Unary) Type() model.Type { return u.ColType }
func (u Unary) Nullability() Nullability { return u.Null }
func (Unary) exprNode() {}

// When is one arm of a Case.
type When struct {
	Test Expr
	Then Expr
}

// Case is a searched CASE expression. A nil Else yields NULL.
type Case struct {
	Whens   []When
	Else    Expr
	ColType model.Type
	Null    Nullability
}

func (c Case) Type() model.Type { return c.ColType }
func (c Case) Nullability() Nullability { return c.Null }
func (Case) exprNode() {}

// Function is a scalar function call printed as NAME(args...).
type Function struct {
	Name    string
	Args    []Expr
	ColType model.Type
	Null    Nullability
}

func (f Function) Type() model.Type { return f.ColType }
func (f Function) Nullability() Nullability { return f.Null }
func (Function) exprNode() {}

// Cast converts Operand to To.
type Cast struct {
	Operand Expr
	To      model.Type
}

func (c Cast) Type() model.Type { return c.To }
func (c Cast) Nullability() Nullability { return c.Operand.Nullability() }
func (Cast) exprNode() {}

// Extract reads one unit of a temporal value: EXTRACT(unit FROM x).
type Extract struct {
	Unit    string
	Operand Expr
}

func (Extract) Type() model.Type { return model.Int32 }
func (e Extract) Nullability() Nullability { return e.Operand.Nullability() }
func (Extract) exprNode() {}

// DateAdd is DATE_ADD(x, INTERVAL n unit).
type DateAdd struct {
	Unit    string
	Operand Expr
	Amount  Expr
}

func (d DateAdd) Type() model.Type { return d.Operand.Type() }
func (d DateAdd) Nullability() Nullability {
	return Either(d.Operand.Nullability(), d.Amount.Nullability())
}
func (DateAdd) exprNode() {}

// DateDiff is TIMESTAMPDIFF(unit, start, end).
type DateDiff struct {
	Unit  string
	Start Expr
	End   Expr
}

func (DateDiff) Type() model.Type { return model.Int64 }
func (d DateDiff) Nullability() Nullability {
	return Either(d.Start.Nullability(), d.End.Nullability())
}
func (DateDiff) exprNode() {}

// In tests membership of Item in Values or in the single-column Subquery.
// HasNull records that the source list contained a null element, which
// object semantics treats as matching a null Item.
type In struct {
	Item     Expr
	Values   []Expr
	Subquery Plan
	HasNull  bool
}

func (In) Type() model.Type { return model.Bool }
func (i In) Nullability() Nullability {
	if i.Subquery != nil {
		return MaybeNull
	}
	return i.Item.Nullability()
}
func (In) exprNode() {}

// Exists holds when Plan yields a row.
type Exists struct {
	Plan Plan
}

func (Exists) Type() model.Type { return model.Bool }
func (Exists) Nullability() Nullability { return NeverNull }
func (Exists) exprNode() {}

// Subquery is a scalar subquery. Correlation lists the columns of enclosing
// queries that Plan refers to.
type Subquery struct {
	Plan        Plan
	ColType     model.Type
	Null        Nullability
	Correlation []Column
}

func (s Subquery) Type() model.Type { return s.ColType }
func (s Subquery) Nullability() Nullability { return s.Null }
func (Subquery) exprNode() {}

// Ordering is one ORDER BY key.
type Ordering struct {
	Expr Expr
	Desc bool
}

// RowNumber is ROW_NUMBER() OVER(PARTITION BY ... ORDER BY ...).
type RowNumber struct {
	PartitionBy []Expr
	OrderBy     []Ordering
}

func (RowNumber) Type() model.Type { return model.Int64 }
func (RowNumber) Nullability() Nullability { return NeverNull }
func (RowNumber) exprNode() {}

// Aggregate is an aggregate function. A nil Arg prints as *.
type Aggregate struct {
	Func     string
	Arg      Expr
	Distinct bool
	ColType  model.Type
	Null     Nullability
}

func (a Aggregate) Type() model.Type { return a.ColType }
func (a Aggregate) Nullability() Nullability { return a.Null }
func (Aggregate) exprNode() {}
