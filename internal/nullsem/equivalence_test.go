package nullsem

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/querysql"
	"github.com/roach88/querylift/internal/relational"
	"github.com/roach88/querylift/internal/store"
	"github.com/roach88/querylift/internal/testutil"
)

// pair is one row of the Pairs table; nil fields are NULL.
type pair struct {
	id   int64
	a, b *int64
	p    *bool
}

func pairs() []pair {
	one, two := int64(1), int64(2)
	yes, no := true, false
	ints := []*int64{nil, &one, &two}
	bools := []*bool{nil, &yes, &no}

	var out []pair
	id := int64(1)
	for _, x := range ints {
		for _, y := range ints {
			for _, z := range bools {
				out = append(out, pair{id: id, a: x, b: y, p: z})
				id++
			}
		}
	}
	return out
}

func irInt(v *int64) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return ir.IRInt(*v)
}

func irBool(v *bool) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return ir.IRBool(*v)
}

func seed(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateTables(ctx, testutil.Shop()))
	for _, r := range pairs() {
		require.NoError(t, s.Insert(ctx, "Pairs", store.Row{"Id": ir.IRInt(r.id), "A": irInt(r.a), "B": irInt(r.b), "P": irBool(r.p)}))
	}
	return s
}

// Object semantics: null equals null, comparisons never yield null.
func objEq(x, y *int64) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return *x == *y
}

func objLt(x, y *int64) bool {
	return x != nil && y != nil && *x < *y
}

func TestRewrite_MatchesObjectSemantics(t *testing.T) {
	s := seed(t)
	printer := querysql.NewPrinter(testutil.MySQL())
	one := int64(1)

	tests := []struct {
		name string
		expr relational.Expr
		want func(r pair) bool
	}{
		{"a == b", eq(a, b), func(r pair) bool { return objEq(r.a, r.b) }},
		{"a != b", ne(a, b), func(r pair) bool { return !objEq(r.a, r.b) }},
		{"a == 1", eq(a, relational.Int(1)), func(r pair) bool { return objEq(r.a, &one) }},
		{"a != 1", ne(a, relational.Int(1)), func(r pair) bool { return !objEq(r.a, &one) }},
		{"a == null", eq(a, nullInt), func(r pair) bool { return r.a == nil }},
		{"a < b", relational.Compare(relational.OpLt, a, b), func(r pair) bool { return objLt(r.a, r.b) }},
		{"!(a < b)", relational.Not(relational.Compare(relational.OpLt, a, b)), func(r pair) bool { return !objLt(r.a, r.b) }},
		{"!(a == b)", relational.Not(eq(a, b)), func(r pair) bool { return !objEq(r.a, r.b) }},
		{"a == b && a != 1", relational.And(eq(a, b), ne(a, relational.Int(1))), func(r pair) bool {
			return objEq(r.a, r.b) && !objEq(r.a, &one)
		}},
		{"a == 1 || b == 1", relational.Or(eq(a, relational.Int(1)), eq(b, relational.Int(1))), func(r pair) bool {
			return objEq(r.a, &one) || objEq(r.b, &one)
		}},
		{"a in (1, null)", relational.In{Item: a, Values: []relational.Expr{relational.Int(1)}, HasNull: true}, func(r pair) bool {
			return r.a == nil || *r.a == 1
		}},
		{"a in (1, 2)", relational.In{Item: a, Values: []relational.Expr{relational.Int(1), relational.Int(2)}}, func(r pair) bool {
			return r.a != nil
		}},
		{"(a == b) == (b == 1)", eq(eq(a, b), eq(b, relational.Int(1))), func(r pair) bool {
			return objEq(r.a, r.b) == objEq(r.b, &one)
		}},
	}

	rows := pairs()
	for _, tt := range tests {
		t.Run(tt.name+"/predicate", func(t *testing.T) {
			sel := &relational.Select{
				Projection: []relational.Projection{{Expr: id, Alias: "Id"}},
				From:       relational.TableRef{Name: "Pairs", Alias: "p"},
				Where:      tt.expr,
				OrderBy:    []relational.Ordering{{Expr: id}},
			}
			got := run(t, s, printer, Rewrite(sel))

			want := []any{}
			for _, r := range rows {
				if tt.want(r) {
					want = append(want, r.id)
				}
			}
			assert.Equal(t, want, got.Column(0))
		})
		t.Run(tt.name+"/value", func(t *testing.T) {
			sel := &relational.Select{
				Projection: []relational.Projection{{Expr: id, Alias: "Id"}, {Expr: tt.expr, Alias: "v"}},
				From:       relational.TableRef{Name: "Pairs", Alias: "p"},
				OrderBy:    []relational.Ordering{{Expr: id}},
			}
			got := run(t, s, printer, Rewrite(sel))
			require.Len(t, got.Rows, len(rows))
			for i, r := range rows {
				want := int64(0)
				if tt.want(r) {
					want = 1
				}
				assert.Equal(t, want, got.Rows[i][1], "row %d: a=%s b=%s", r.id, show(r.a), show(r.b))
			}
		})
	}
}

func TestRewrite_ConditionalMatchesObjectSemantics(t *testing.T) {
	s := seed(t)
	printer := querysql.NewPrinter(testutil.MySQL())

	cond := relational.Case{
		Whens:   []relational.When{{Test: p, Then: a}},
		Else:    b,
		ColType: model.Int32,
		Null:    relational.MaybeNull,
	}
	sel := &relational.Select{
		Projection: []relational.Projection{{Expr: id, Alias: "Id"}, {Expr: cond, Alias: "v"}},
		From:       relational.TableRef{Name: "Pairs", Alias: "p"},
		OrderBy:    []relational.Ordering{{Expr: id}},
	}
	got := run(t, s, printer, Rewrite(sel))

	for i, r := range pairs() {
		var want any
		switch {
		case r.p == nil:
			want = nil
		case *r.p && r.a != nil:
			want = *r.a
		case !*r.p && r.b != nil:
			want = *r.b
		}
		assert.Equal(t, want, got.Rows[i][1], "row %d", r.id)
	}
}

func TestRewrite_ComparedConditionalMatchesObjectSemantics(t *testing.T) {
	s := seed(t)
	printer := querysql.NewPrinter(testutil.MySQL())
	one, two := int64(1), int64(2)

	// p ? 1 : 2, typed from its arms alone.
	cond := relational.Case{
		Whens:   []relational.When{{Test: p, Then: relational.Int(1)}},
		Else:    relational.Int(2),
		ColType: model.Int32,
		Null:    relational.NeverNull,
	}
	condValue := func(r pair) *int64 {
		switch {
		case r.p == nil:
			return nil
		case *r.p:
			return &one
		}
		return &two
	}

	rows := pairs()
	t.Run("predicate", func(t *testing.T) {
		sel := &relational.Select{
			Projection: []relational.Projection{{Expr: id, Alias: "Id"}},
			From:       relational.TableRef{Name: "Pairs", Alias: "p"},
			Where:      eq(cond, b),
			OrderBy:    []relational.Ordering{{Expr: id}},
		}
		got := run(t, s, printer, Rewrite(sel))

		want := []any{}
		for _, r := range rows {
			if objEq(condValue(r), r.b) {
				want = append(want, r.id)
			}
		}
		assert.Equal(t, want, got.Column(0))
	})
	t.Run("value", func(t *testing.T) {
		sel := &relational.Select{
			Projection: []relational.Projection{{Expr: id, Alias: "Id"}, {Expr: ne(cond, b), Alias: "v"}},
			From:       relational.TableRef{Name: "Pairs", Alias: "p"},
			OrderBy:    []relational.Ordering{{Expr: id}},
		}
		got := run(t, s, printer, Rewrite(sel))
		require.Len(t, got.Rows, len(rows))
		for i, r := range rows {
			want := int64(1)
			if objEq(condValue(r), r.b) {
				want = 0
			}
			assert.Equal(t, want, got.Rows[i][1], "row %d: p=%v b=%s", r.id, irBool(r.p), show(r.b))
		}
	})
}

func run(t *testing.T, s *store.Store, printer *querysql.Printer, plan relational.Plan) store.Result {
	t.Helper()
	text, args, err := printer.Print(plan)
	require.NoError(t, err)
	driver, err := querysql.DriverArgs(args)
	require.NoError(t, err)
	res, err := s.Query(context.Background(), text, driver...)
	require.NoError(t, err, text)
	return res
}

func show(v *int64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(*v)
}
