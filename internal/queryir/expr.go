package queryir

import (
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
)

// Expr is a scalar, entity or collection-valued expression.
//
// This is a sealed interface - only types in this package implement it.
// Equality and inequality use object semantics: two nulls are equal and a
// null never equals a non-null value.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Var refers to a range variable. An entity variable stands for the whole
// entity; in a projection it yields every mapped property.
type Var struct {
	Name string
}

func (Var) exprNode() {}

// Prop reads a property of an entity or a field of a projected row. If Name
// is a navigation of the entity, Prop behaves like Nav.
type Prop struct {
	Of   Expr
	Name string
}

func (Prop) exprNode() {}

// Nav follows a reference navigation to the related entity.
type Nav struct {
	Of   Expr
	Name string
}

func (Nav) exprNode() {}

// Const is a constant value. A zero Type is inferred from the value.
type Const struct {
	Value ir.IRValue
	Type  model.Type
}

func (Const) exprNode() {}

// Param is a named parameter with its current value. A zero Type is
// inferred from the value. Parameters with the same name must agree.
type Param struct {
	Name  string
	Value ir.IRValue
	Type  model.Type
}

func (Param) exprNode() {}

// CompareOp is a comparison operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var compareNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (op CompareOp) String() string { return compareNames[op] }

// Compare compares two operands. Entity operands compare by key.
type Compare struct {
	Op CompareOp
	L  Expr
	R  Expr
}

func (Compare) exprNode() {}

// LogicalOp is AND or OR.
type LogicalOp int

const (
	And LogicalOp = iota
	Or
)

func (op LogicalOp) String() string {
	if op == Or {
		return "or"
	}
	return "and"
}

// Logical combines two or more boolean terms.
type Logical struct {
	Op    LogicalOp
	Terms []Expr
}

func (Logical) exprNode() {}

// Not negates a boolean operand.
type Not struct {
	Operand Expr
}

func (Not) exprNode() {}

// IsNull tests an operand for null. For an entity operand (an optional
// navigation) the key is tested.
type IsNull struct {
	Operand Expr
}

func (IsNull) exprNode() {}

// ArithOp is an arithmetic or bitwise operator.
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	BitXor
)

var arithNames = [...]string{"add", "sub", "mul", "div", "mod", "bitand", "bitor", "bitxor"}

func (op ArithOp) String() string { return arithNames[op] }

// Arith applies a binary arithmetic operator.
type Arith struct {
	Op ArithOp
	L  Expr
	R  Expr
}

func (Arith) exprNode() {}

// Negate is unary minus.
type Negate struct {
	Operand Expr
}

func (Negate) exprNode() {}

// HasFlag tests whether every bit of Flag is set in the enum Value.
type HasFlag struct {
	Value Expr
	Flag  Expr
}

func (HasFlag) exprNode() {}

// Coalesce yields its first non-null operand.
type Coalesce struct {
	Operands []Expr
}

func (Coalesce) exprNode() {}

// Conditional yields Then when Test holds and Else otherwise.
type Conditional struct {
	Test Expr
	Then Expr
	Else Expr
}

func (Conditional) exprNode() {}

// Convert changes the type of its operand.
type Convert struct {
	Operand Expr
	To      model.Type
}

func (Convert) exprNode() {}

// DateUnit is a calendar or clock unit.
type DateUnit int

const (
	Year DateUnit = iota
	Quarter
	Month
	Week
	Day
	DayOfYear
	DayOfWeek
	Hour
	Minute
	Second
	Millisecond
	Microsecond
)

var dateUnitNames = [...]string{
	"year", "quarter", "month", "week", "day", "dayofyear", "dayofweek",
	"hour", "minute", "second", "millisecond", "microsecond",
}

func (u DateUnit) String() string { return dateUnitNames[u] }

// ParseDateUnit parses a unit name as produced by DateUnit.String.
func ParseDateUnit(s string) (DateUnit, bool) {
	for i, n := range dateUnitNames {
		if n == s {
			return DateUnit(i), true
		}
	}
	return 0, false
}

// DatePart extracts one component of a temporal value.
type DatePart struct {
	Part    DateUnit
	Operand Expr
}

func (DatePart) exprNode() {}

// DateAdd adds Amount units to a temporal value.
type DateAdd struct {
	Unit    DateUnit
	Operand Expr
	Amount  Expr
}

func (DateAdd) exprNode() {}

// DateDiff counts the unit boundaries between Start and End.
type DateDiff struct {
	Unit  DateUnit
	Start Expr
	End   Expr
}

func (DateDiff) exprNode() {}

// Func names a scalar function.
type Func string

const (
	FuncContains   Func = "contains"
	FuncStartsWith Func = "startsWith"
	FuncEndsWith   Func = "endsWith"
	FuncLength     Func = "length"
	FuncUpper      Func = "upper"
	FuncLower      Func = "lower"
	FuncTrim       Func = "trim"
	FuncConcat     Func = "concat"
	FuncAbs        Func = "abs"
	FuncRound      Func = "round"
	FuncFloor      Func = "floor"
	FuncCeiling    Func = "ceiling"
	FuncTruncate   Func = "truncate"
)

// Call applies a scalar function.
type Call struct {
	Fn   Func
	Args []Expr
}

func (Call) exprNode() {}

// Subquery is a collection-valued expression. In a projection it yields a
// nested collection per row.
type Subquery struct {
	Query Query
}

func (Subquery) exprNode() {}

// AggOp is an aggregate operator.
type AggOp int

const (
	Count AggOp = iota
	Sum
	Avg
	Min
	Max
	First
)

var aggNames = [...]string{"count", "sum", "avg", "min", "max", "first"}

func (op AggOp) String() string { return aggNames[op] }

// Aggregate reduces Source to a scalar. Selector is evaluated per source
// row; it may be nil for Count. Default replaces the result of an empty
// source for First, Min, Max and Avg; Count and Sum always default to zero.
type Aggregate struct {
	Op       AggOp
	Source   Query
	Selector Expr
	Distinct bool
	Default  ir.IRValue
}

func (Aggregate) exprNode() {}

// Exists holds when Source has at least one row.
type Exists struct {
	Source Query
}

func (Exists) exprNode() {}

// Contains holds when Item is an element of Collection (a list parameter,
// list constant or array property) or of the single-column Source.
type Contains struct {
	Item       Expr
	Collection Expr
	Source     Query
}

func (Contains) exprNode() {}

// TypeIs holds when the hierarchy entity Of is one of the listed subtypes.
type TypeIs struct {
	Of       Expr
	Subtypes []string
}

func (TypeIs) exprNode() {}
