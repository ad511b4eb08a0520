package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
	"github.com/roach88/querylift/internal/testutil"
)

func orders() queryir.Query {
	return queryir.NavSource{Of: queryir.Var{Name: "c"}, Navigation: "Orders", As: "o"}
}

func total(op queryir.CompareOp, v int64) queryir.Expr {
	return queryir.Compare{Op: op, L: queryir.Prop{Of: queryir.Var{Name: "o"}, Name: "Total"}, R: queryir.Const{Value: ir.IRInt(v)}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.Query
		want  Shape
	}{
		{
			name:  "navigation",
			query: orders(),
			want:  Shape{KeyOnly: true},
		},
		{
			name: "filter order paging",
			query: queryir.Paginate{
				Input: queryir.OrderBy{
					Input: queryir.Filter{Input: orders(), Predicate: total(queryir.Gt, 100)},
					Keys:  []queryir.Ordering{{Key: queryir.Prop{Of: queryir.Var{Name: "o"}, Name: "PlacedAt"}}},
				},
				Limit: queryir.Const{Value: ir.IRInt(2)},
			},
			want: Shape{Filter: true, Order: true, Paging: true, KeyOnly: true},
		},
		{
			name:  "distinct over source",
			query: queryir.Distinct{Input: queryir.Source{Entity: "Orders", As: "o"}},
			want:  Shape{Distinct: true},
		},
		{
			name: "per element aggregate",
			query: queryir.Project{
				Input: orders(),
				As:    "r",
				Fields: []queryir.Field{{Name: "n", Value: queryir.Aggregate{
					Op:     queryir.Count,
					Source: queryir.Source{Entity: "Reviews", As: "v"},
				}}},
			},
			want: Shape{Project: true, Aggregate: true, KeyOnly: true},
		},
		{
			name: "group",
			query: queryir.GroupBy{
				Input: orders(),
				As:    "g",
				Keys:  []queryir.Field{{Name: "Status", Value: queryir.Prop{Of: queryir.Var{Name: "o"}, Name: "Status"}}},
			},
			want: Shape{Group: true, KeyOnly: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query))
		})
	}
}

func TestChoose(t *testing.T) {
	paged := Shape{Filter: true, Order: true, Paging: true, KeyOnly: true}
	tests := []struct {
		name    string
		shape   Shape
		want    Strategy
		wantErr bool
	}{
		{"plain join", Shape{Filter: true, KeyOnly: true}, StrategyJoin, false},
		{"lateral", paged, StrategyLateral, false},
		{"lateral distinct", Shape{Distinct: true}, StrategyLateral, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Choose(tt.shape, testutil.MySQL())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("row number without lateral", func(t *testing.T) {
		got, err := Choose(paged, testutil.MySQLNoLateral())
		require.NoError(t, err)
		assert.Equal(t, StrategyRowNumber, got)
	})

	t.Run("row number on mariadb", func(t *testing.T) {
		got, err := Choose(paged, testutil.MariaDB())
		require.NoError(t, err)
		assert.Equal(t, StrategyRowNumber, got)
	})

	t.Run("distinct without lateral", func(t *testing.T) {
		_, err := Choose(Shape{Distinct: true, KeyOnly: true}, testutil.MySQLNoLateral())
		require.Error(t, err)
		assert.True(t, qerr.IsDialectCapability(err))

		var e *qerr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "LATERAL", e.Capability)
		assert.Equal(t, "mysql-8.0.14", e.MinVersion)
	})

	t.Run("no window functions", func(t *testing.T) {
		_, err := Choose(paged, testutil.MySQL57())
		assert.True(t, qerr.IsDialectCapability(err))
	})

	t.Run("correlated by predicate", func(t *testing.T) {
		_, err := Choose(Shape{Filter: true, Paging: true}, testutil.MySQLNoLateral())
		assert.True(t, qerr.IsDialectCapability(err))
	})
}

func TestShapeString(t *testing.T) {
	assert.Equal(t, "source", Shape{KeyOnly: true}.String())
	assert.Equal(t, "filter+paging+distinct", Shape{Filter: true, Paging: true, Distinct: true}.String())
}

func TestNeedsPushdown(t *testing.T) {
	limited := Frame{Limit: true}
	distinct := Frame{Distinct: true}
	grouped := Frame{Group: true}

	tests := []struct {
		frame Frame
		op    Op
		want  bool
	}{
		{Frame{}, OpFilter, false},
		{Frame{}, OpJoin, false},
		{limited, OpFilter, true},
		{limited, OpOrder, true},
		{limited, OpPaginate, true},
		{limited, OpDistinct, true},
		{limited, OpProject, false},
		{Frame{Offset: true}, OpCollection, true},
		{distinct, OpFilter, false},
		{distinct, OpOrder, false},
		{distinct, OpProject, true},
		{distinct, OpJoin, true},
		{grouped, OpFilter, false},
		{grouped, OpGroup, true},
		{grouped, OpCollection, true},
		{limited, OpSetOp, false},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsPushdown(tt.frame, tt.op), "%+v", tt.frame)
		})
	}
}

func TestWithDefault(t *testing.T) {
	count := relational.Aggregate{Func: "COUNT", ColType: model.Int64}
	sum := relational.Aggregate{Func: "SUM", Arg: relational.Column{Table: "o", Name: "Total", ColType: model.Decimal}, ColType: model.Decimal, Null: relational.MaybeNull}
	maxID := relational.Aggregate{Func: "MAX", Arg: relational.Column{Table: "o", Name: "Id", ColType: model.Int32}, ColType: model.Int32}

	t.Run("count", func(t *testing.T) {
		got := WithDefault(count, queryir.Count, nil, relational.NeverNull)
		assert.Equal(t, relational.Coalesce(model.Int64, count, relational.Literal{Value: ir.IRInt(0), ColType: model.Int64}), got)
		assert.Equal(t, relational.NeverNull, got.Nullability())
	})

	t.Run("sum", func(t *testing.T) {
		got := WithDefault(sum, queryir.Sum, nil, relational.NeverNull)
		assert.Equal(t, relational.NeverNull, got.Nullability())
		assert.Equal(t, model.Decimal, got.Type())
	})

	t.Run("declared default", func(t *testing.T) {
		got := WithDefault(maxID, queryir.Max, ir.IRInt(-1), relational.NeverNull)
		assert.Equal(t, relational.Coalesce(model.Int32, maxID, relational.Literal{Value: ir.IRInt(-1), ColType: model.Int32}), got)
	})

	t.Run("no default stays nullable", func(t *testing.T) {
		got := WithDefault(maxID, queryir.First, nil, relational.MaybeNull)
		assert.Equal(t, relational.MaybeNull, got.Nullability())

		got = WithDefault(maxID, queryir.Avg, nil, relational.NeverNull)
		assert.Equal(t, relational.MaybeNull, got.Nullability())
	})

	t.Run("zero value of a value type", func(t *testing.T) {
		for _, op := range []queryir.AggOp{queryir.First, queryir.Min, queryir.Max} {
			got := WithDefault(maxID, op, nil, relational.NeverNull)
			assert.Equal(t, relational.Coalesce(model.Int32, maxID, relational.Literal{Value: ir.IRInt(0), ColType: model.Int32, Trusted: true}), got, op.String())
		}
	})

	t.Run("references have no zero value", func(t *testing.T) {
		firstName := relational.Aggregate{Func: "MAX", Arg: relational.Column{Table: "c", Name: "Name", ColType: model.String}, ColType: model.String}
		got := WithDefault(firstName, queryir.Max, nil, relational.NeverNull)
		assert.Equal(t, relational.MaybeNull, got.Nullability())
	})
}

func TestZeroValue(t *testing.T) {
	tests := []struct {
		name string
		t    model.Type
		want ir.IRValue
		ok   bool
	}{
		{"bool", model.Bool, ir.IRBool(false), true},
		{"int", model.Int64, ir.IRInt(0), true},
		{"enum", model.Enum(32, false), ir.IRInt(0), true},
		{"decimal", model.Decimal, ir.IRInt(0), true},
		{"guid", model.Guid, ir.IRGuid{}, true},
		{"string", model.String, nil, false},
		{"datetime", model.DateTime, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ZeroValue(tt.t)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregateType(t *testing.T) {
	assert.Equal(t, model.Int64, AggregateType(queryir.Count, model.String))
	assert.Equal(t, model.Decimal, AggregateType(queryir.Sum, model.Int32))
	assert.Equal(t, model.Float, AggregateType(queryir.Avg, model.Float))
	assert.Equal(t, model.Decimal, AggregateType(queryir.Avg, model.Int32))
	assert.Equal(t, model.DateTime, AggregateType(queryir.Max, model.DateTime))
}

func TestFinalOrder(t *testing.T) {
	col := func(table, name string) relational.Expr {
		return relational.Column{Table: table, Name: name, ColType: model.Int32}
	}
	placed := relational.Column{Table: "t", Name: "PlacedAt", ColType: model.DateTime}

	got := FinalOrder(
		[]relational.Ordering{{Expr: col("c", "Name"), Desc: true}},
		[]relational.Expr{col("c", "Id")},
		CollectionOrder{Ordering: []relational.Ordering{{Expr: placed}}, Identifiers: []relational.Expr{col("t", "Id")}},
		CollectionOrder{Identifiers: []relational.Expr{col("r", "Id"), col("c", "Id")}},
	)
	assert.Equal(t, []relational.Ordering{
		{Expr: col("c", "Name"), Desc: true},
		{Expr: col("c", "Id")},
		{Expr: placed},
		{Expr: col("t", "Id")},
		{Expr: col("r", "Id")},
	}, got)
}

func TestRowBounds(t *testing.T) {
	row := relational.Column{Table: "t", Name: "row", ColType: model.Int64}

	t.Run("limit only", func(t *testing.T) {
		got := RowBounds(row, nil, relational.Int(2))
		assert.Equal(t, relational.SQLCompare(relational.OpLe, row, relational.Int(2)), got)
	})

	t.Run("constants fold", func(t *testing.T) {
		got := RowBounds(row, relational.Int(1), relational.Int(2))
		assert.Equal(t, relational.And(
			relational.SQLCompare(relational.OpGt, row, relational.Int(1)),
			relational.SQLCompare(relational.OpLe, row, relational.Int(3)),
		), got)
	})

	t.Run("parameters add", func(t *testing.T) {
		skip := relational.Parameter{Name: "skip", Value: ir.IRInt(1), ColType: model.Int32, Element: -1}
		got := RowBounds(row, skip, relational.Int(2))
		want := relational.And(
			relational.SQLCompare(relational.OpGt, row, skip),
			relational.SQLCompare(relational.OpLe, row, relational.Arith(relational.OpAdd, skip, relational.Int(2), model.Int64)),
		)
		assert.Equal(t, want, got)
	})

	t.Run("offset only", func(t *testing.T) {
		got := RowBounds(row, relational.Int(5), nil)
		assert.Equal(t, relational.SQLCompare(relational.OpGt, row, relational.Int(5)), got)
	})
}
