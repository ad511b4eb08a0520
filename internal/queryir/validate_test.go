package queryir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qerr"
)

func prop(v, name string) Prop { return Prop{Of: Var{Name: v}, Name: name} }

func TestValidate_ValidQueries(t *testing.T) {
	tests := []struct {
		name string
		q    Query
	}{
		{"source", Source{Entity: "Customers", As: "c"}},
		{"filter", Filter{
			Input:     Source{Entity: "Orders", As: "o"},
			Predicate: Compare{Op: Gt, L: prop("o", "Total"), R: Const{Value: ir.IRInt(100)}},
		}},
		{"paging with param", Paginate{
			Input: Source{Entity: "Orders", As: "o"},
			Limit: Param{Name: "take", Value: ir.IRInt(10)},
		}},
		{"group aggregate", Project{
			Input: GroupBy{Input: Source{Entity: "Orders", As: "o"}, As: "g", Keys: []Field{{Name: "CustomerId", Value: prop("o", "CustomerId")}}},
			As:    "r",
			Fields: []Field{
				{Name: "CustomerId", Value: prop("g", "CustomerId")},
				{Name: "Count", Value: Aggregate{Op: Count, Source: Filter{
					Input:     GroupElements{Group: "g", As: "e"},
					Predicate: Compare{Op: Gt, L: prop("e", "Total"), R: Const{Value: ir.IRInt(5)}},
				}}},
			},
		}},
		{"navigation join without on", Join{
			Left:  Source{Entity: "Customers", As: "c"},
			Right: NavSource{Of: Var{Name: "c"}, Navigation: "Orders", As: "o"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.q))
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		path string
	}{
		{"missing entity", Source{As: "c"}, "Source"},
		{"nil predicate", Filter{Input: Source{Entity: "Orders", As: "o"}}, "Filter.Predicate"},
		{"duplicate field", Project{
			Input: Source{Entity: "Orders", As: "o"},
			Fields: []Field{
				{Name: "Id", Value: prop("o", "Id")},
				{Name: "Id", Value: prop("o", "CustomerId")},
			},
		}, "Project"},
		{"negative limit", Paginate{
			Input: Source{Entity: "Orders", As: "o"},
			Limit: Const{Value: ir.IRInt(-1)},
		}, "Paginate.Limit"},
		{"string limit param", Paginate{
			Input:  Source{Entity: "Orders", As: "o"},
			Offset: Param{Name: "skip", Value: ir.IRString("3")},
		}, "Paginate.Offset"},
		{"computed limit", Paginate{
			Input: Source{Entity: "Orders", As: "o"},
			Limit: Arith{Op: Add, L: Const{Value: ir.IRInt(1)}, R: Const{Value: ir.IRInt(1)}},
		}, "Paginate.Limit"},
		{"group elements outside aggregate", Project{
			Input: Source{Entity: "Customers", As: "c"},
			Fields: []Field{{Name: "Items", Value: Subquery{Query: GroupElements{Group: "g", As: "e"}}}},
		}, "Project.Fields[0].Value.Query"},
		{"sum without selector", Project{
			Input:  Source{Entity: "Customers", As: "c"},
			Fields: []Field{{Name: "Total", Value: Aggregate{Op: Sum, Source: NavSource{Of: Var{Name: "c"}, Navigation: "Orders", As: "o"}}}},
		}, "Project.Fields[0].Value"},
		{"contains with both operands", Filter{
			Input: Source{Entity: "Orders", As: "o"},
			Predicate: Contains{
				Item:       prop("o", "Id"),
				Collection: Param{Name: "ids", Value: ir.NewIRArray(ir.IRInt(1))},
				Source:     Source{Entity: "Orders", As: "x"},
			},
		}, "Filter.Predicate"},
		{"unknown function", Filter{
			Input:     Source{Entity: "Orders", As: "o"},
			Predicate: Call{Fn: "soundex", Args: []Expr{prop("o", "WarehouseCode")}},
		}, "Filter.Predicate"},
		{"inner join without on", Join{
			Left:  Source{Entity: "Customers", As: "c"},
			Right: Source{Entity: "Orders", As: "o"},
		}, "Join"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			require.Error(t, err)
			assert.True(t, qerr.IsUnsupportedPattern(err))

			var qe *qerr.Error
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.path, qe.Path)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	err := Validate(Filter{Input: Source{}})
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	// entity, range variable, predicate
	assert.Len(t, joined.Unwrap(), 3)
}

func TestValidate_Nil(t *testing.T) {
	assert.True(t, qerr.IsUnsupportedPattern(Validate(nil)))
}
