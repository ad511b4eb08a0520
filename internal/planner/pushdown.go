package planner

// Frame summarizes the clauses of a select that limit or merge its rows.
type Frame struct {
	Limit    bool
	Offset   bool
	Distinct bool
	Group    bool
}

// Op is an operator about to be applied to a select.
type Op int

const (
	OpFilter Op = iota
	OpOrder
	OpPaginate
	OpDistinct
	OpProject
	OpJoin
	OpGroup
	OpCollection
	OpSetOp
)

var opNames = [...]string{
	"filter", "order", "paginate", "distinct", "project", "join",
	"group", "collection", "set-operation",
}

func (op Op) String() string { return opNames[op] }

// NeedsPushdown reports whether op would change meaning if applied to a
// select in frame f, so the select must first become a derived table.
//
// To-one navigation joins are not listed: they keep every row exactly once
// and are added in place.
func NeedsPushdown(f Frame, op Op) bool {
	paged := f.Limit || f.Offset
	switch op {
	case OpFilter, OpOrder, OpPaginate, OpDistinct:
		return paged
	case OpProject:
		return f.Distinct
	case OpJoin, OpGroup, OpCollection:
		return paged || f.Distinct || f.Group
	case OpSetOp:
		return false
	}
	return false
}
