package relational

import "github.com/roach88/querylift/internal/model"

// Table is a FROM or JOIN source.
//
// This is a sealed interface - only types in this package implement it.
type Table interface {
	TableAlias() string
	tableNode()
}

// TableRef is a base table.
type TableRef struct {
	Schema string
	Name   string
	Alias  string
}

func (t TableRef) TableAlias() string { return t.Alias }
func (TableRef) tableNode() {}

// Derived is a parenthesized subquery in FROM position. Hierarchy marks the
// UNION ALL of a flattened hierarchy, whose unused columns may be pruned.
type Derived struct {
	Plan      Plan
	Alias     string
	Hierarchy bool
}

func (d Derived) TableAlias() string { return d.Alias }
func (Derived) tableNode() {}

// JSONColumn is one column of a JSON_TABLE.
type JSONColumn struct {
	Name       string
	Type       model.Type
	Ordinality bool
	Path       string
}

// JSONTable expands a JSON array into rows.
type JSONTable struct {
	Source  Expr
	Path    string
	Columns []JSONColumn
	Alias   string
}

func (j JSONTable) TableAlias() string { return j.Alias }
func (JSONTable) tableNode() {}

// JoinKind selects the join operator.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinCross
	JoinInnerLateral
	JoinLeftLateral
)

// IsLateral reports whether the joined table may refer to earlier tables.
func (k JoinKind) IsLateral() bool {
	return k == JoinInnerLateral || k == JoinLeftLateral
}

// IsOuter reports whether unmatched left rows are kept.
func (k JoinKind) IsOuter() bool {
	return k == JoinLeft || k == JoinLeftLateral
}

// Join is one JOIN clause.
type Join struct {
	Kind  JoinKind
	Table Table
	On    Expr
}

// Plan is a relational query.
//
// This is a sealed interface - only types in this package implement it.
type Plan interface {
	// Outputs returns the output column names in order.
	Outputs() []string
	planNode()
}

// Projection is one SELECT list entry.
type Projection struct {
	Expr  Expr
	Alias string
}

// Select is a SELECT statement. Identifiers lists the expressions that
// identify a row of the result; they are not printed but drive
// deterministic ordering and collection materialization.
type Select struct {
	Distinct    bool
	Projection  []Projection
	From        Table
	Joins       []Join
	Where       Expr
	GroupBy     []Expr
	Having      Expr
	OrderBy     []Ordering
	Limit       Expr
	Offset      Expr
	Identifiers []Expr
}

// Outputs returns the projection aliases.
func (s *Select) Outputs() []string {
	out := make([]string, len(s.Projection))
	for i, p := range s.Projection {
		out[i] = p.Alias
	}
	return out
}

func (*Select) planNode() {}

// Clone returns a shallow copy whose slices may be appended to without
// affecting s.
func (s *Select) Clone() *Select {
	cp := *s
	cp.Projection = clip(s.Projection)
	cp.Joins = clip(s.Joins)
	cp.GroupBy = clip(s.GroupBy)
	cp.OrderBy = clip(s.OrderBy)
	cp.Identifiers = clip(s.Identifiers)
	return &cp
}

func clip[T any](s []T) []T {
	return s[:len(s):len(s)]
}

// SetKind is a set operator.
type SetKind int

const (
	SetUnionAll SetKind = iota
	SetUnion
	SetIntersect
	SetExcept
)

// Keyword returns the SQL spelling of k.
func (k SetKind) Keyword() string {
	switch k {
	case SetUnion:
		return "UNION"
	case SetIntersect:
		return "INTERSECT"
	case SetExcept:
		return "EXCEPT"
	default:
		return "UNION ALL"
	}
}

// SetOperation combines branches with one set operator. Every branch
// yields the same number of columns; the first branch names them.
type SetOperation struct {
	Kind     SetKind
	Branches []Plan
}

// Outputs returns the output names of the first branch.
func (s *SetOperation) Outputs() []string {
	if len(s.Branches) == 0 {
		return nil
	}
	return s.Branches[0].Outputs()
}

func (*SetOperation) planNode() {}
