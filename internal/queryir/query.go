package queryir

// Query is a node of a query tree.
//
// This is a sealed interface - only types in this package implement it.
// Translators use exhaustive type switches over the node types below.
//
// Leaf sources introduce a range variable named by their As field:
//   - Source: rows of an entity shape
//   - NavSource: the related rows of a collection navigation
//   - Values: the elements of a primitive collection
//   - GroupElements: the rows of one group of an enclosing GroupBy
//
// Operators wrap an Input and keep the range variables of the input in
// scope, except Project, GroupBy and SetOp, which bind a new one.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Source reads every row of an entity shape.
//
//	Source{Entity: "Customers", As: "c"}
type Source struct {
	Entity string
	As     string
}

func (Source) queryNode() {}

// OfType restricts a hierarchy source to the listed subtypes.
type OfType struct {
	Input    Query
	Subtypes []string
}

func (OfType) queryNode() {}

// NavSource reads the rows reached through the collection navigation
// Navigation of the entity Of. Of normally refers to a range variable of an
// enclosing query, which makes the source correlated.
//
//	NavSource{Of: Var{Name: "c"}, Navigation: "Orders", As: "o"}
type NavSource struct {
	Of         Expr
	Navigation string
	As         string
}

func (NavSource) queryNode() {}

// Values reads the elements of a primitive collection: an array-typed
// property, a list parameter or a list constant. The element is available
// as Var{As}.
type Values struct {
	Collection Expr
	As         string
}

func (Values) queryNode() {}

// GroupElements reads the rows of the current group of the GroupBy that
// bound the variable Group. It is only valid as an Aggregate source.
type GroupElements struct {
	Group string
	As    string
}

func (GroupElements) queryNode() {}

// Filter keeps the rows for which Predicate holds.
type Filter struct {
	Input     Query
	Predicate Expr
}

func (Filter) queryNode() {}

// Field is a named expression in a projection or grouping key list.
type Field struct {
	Name  string
	Value Expr
}

// Project maps every row to the named Fields and binds the result as a row
// variable As. A field whose value is a Subquery yields a collection.
type Project struct {
	Input  Query
	As     string
	Fields []Field
}

func (Project) queryNode() {}

// JoinKind selects the join operator.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinCross
)

func (k JoinKind) String() string {
	switch k {
	case JoinLeft:
		return "left"
	case JoinCross:
		return "cross"
	default:
		return "inner"
	}
}

// Join combines two queries. The range variables of both sides are in scope
// afterwards. Right may refer to the variables of Left, which makes it a
// correlated (lateral) join.
type Join struct {
	Left  Query
	Right Query
	Kind  JoinKind
	On    Expr
}

func (Join) queryNode() {}

// GroupBy groups rows by Keys and binds the group as variable As. The keys
// are read as Prop{Of: Var{As}, Name: key}; aggregates over the group use a
// GroupElements source. A GroupBy must be followed by a Project.
type GroupBy struct {
	Input Query
	As    string
	Keys  []Field
}

func (GroupBy) queryNode() {}

// Ordering is one sort key.
type Ordering struct {
	Key  Expr
	Desc bool
}

// OrderBy sorts the rows, replacing any ordering of the input.
type OrderBy struct {
	Input Query
	Keys  []Ordering
}

func (OrderBy) queryNode() {}

// Paginate skips Offset rows and keeps at most Limit rows. Either may be
// nil. Both must be integer constants or parameters.
type Paginate struct {
	Input  Query
	Offset Expr
	Limit  Expr
}

func (Paginate) queryNode() {}

// Distinct removes duplicate rows. Any ordering of the input is dropped.
type Distinct struct {
	Input Query
}

func (Distinct) queryNode() {}

// SetOpKind selects a set operator.
type SetOpKind int

const (
	UnionAll SetOpKind = iota
	Union
	Intersect
	Except
)

func (k SetOpKind) String() string {
	switch k {
	case Union:
		return "union"
	case Intersect:
		return "intersect"
	case Except:
		return "except"
	default:
		return "union-all"
	}
}

// SetOp combines the rows of two queries with matching row shapes and binds
// the result as variable As.
type SetOp struct {
	Left  Query
	Right Query
	Kind  SetOpKind
	As    string
}

func (SetOp) queryNode() {}
