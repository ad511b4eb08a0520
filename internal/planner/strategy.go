package planner

import (
	"strings"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/queryir"
)

// Strategy is the SQL shape of a collection.
type Strategy int

const (
	StrategyJoin Strategy = iota
	StrategyLateral
	StrategyRowNumber
)

func (s Strategy) String() string {
	switch s {
	case StrategyLateral:
		return "lateral"
	case StrategyRowNumber:
		return "row-number"
	default:
		return "join"
	}
}

// Shape lists the operators found in a collection query.
type Shape struct {
	Filter   bool
	Order    bool
	Project  bool
	Paging   bool
	Distinct bool
	Group    bool

	// Aggregate is set for a per-element aggregate or a nested collection.
	Aggregate bool
	Join      bool
	SetOp     bool

	// KeyOnly is set when the collection is related to its parent through
	// relationship keys alone, i.e. it reads a navigation source.
	KeyOnly bool
}

// Composed reports whether the collection cannot be a plain join.
func (s Shape) Composed() bool {
	return s.Paging || s.Distinct || s.Group || s.Aggregate || s.Join || s.SetOp
}

// windowable reports whether a row-number partition can express s.
func (s Shape) windowable() bool {
	return s.KeyOnly && !s.Distinct && !s.Group && !s.Aggregate && !s.Join && !s.SetOp
}

func (s Shape) String() string {
	var parts []string
	for _, f := range []struct {
		on   bool
		name string
	}{
		{s.Filter, "filter"},
		{s.Order, "order"},
		{s.Project, "project"},
		{s.Paging, "paging"},
		{s.Distinct, "distinct"},
		{s.Group, "group"},
		{s.Aggregate, "aggregate"},
		{s.Join, "join"},
		{s.SetOp, "set-operation"},
	} {
		if f.on {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "source"
	}
	return strings.Join(parts, "+")
}

// Classify walks the operator chain of q down to its source.
func Classify(q queryir.Query) Shape {
	var s Shape
	for q != nil {
		switch n := q.(type) {
		case queryir.NavSource:
			s.KeyOnly = true
			return s
		case queryir.Source, queryir.Values, queryir.GroupElements:
			return s
		case queryir.OfType:
			q = n.Input
		case queryir.Filter:
			s.Filter = true
			s.Aggregate = s.Aggregate || nests(n.Predicate)
			q = n.Input
		case queryir.Project:
			s.Project = true
			for _, f := range n.Fields {
				s.Aggregate = s.Aggregate || nests(f.Value)
			}
			q = n.Input
		case queryir.OrderBy:
			s.Order = true
			q = n.Input
		case queryir.Paginate:
			s.Paging = true
			q = n.Input
		case queryir.Distinct:
			s.Distinct = true
			q = n.Input
		case queryir.GroupBy:
			s.Group = true
			q = n.Input
		case queryir.Join:
			s.Join = true
			q = n.Left
		case queryir.SetOp:
			s.SetOp = true
			return s
		default:
			return s
		}
	}
	return s
}

// nests reports whether e contains an aggregate or a nested collection.
func nests(e queryir.Expr) bool {
	found := false
	queryir.InspectExpr(e, func(node any, _ string) bool {
		switch node.(type) {
		case queryir.Aggregate, queryir.Subquery:
			found = true
		}
		return !found
	})
	return found
}

// Choose picks the strategy for a collection of shape s. Version-dependent
// shape choice happens here; the printer only varies syntax.
func Choose(s Shape, d *dialect.Dialect) (Strategy, error) {
	if !s.Composed() {
		return StrategyJoin, nil
	}
	if d.Supports(dialect.CapLateral) {
		return StrategyLateral, nil
	}
	if s.windowable() && d.Supports(dialect.CapWindowFunctions) {
		return StrategyRowNumber, nil
	}
	return StrategyJoin, d.Require(dialect.CapLateral, "collection with "+s.String())
}
