package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/relational"
	"github.com/roach88/querylift/internal/testutil"
)

func col(table, name string, t model.Type) relational.Column {
	return relational.Column{Table: table, Name: name, ColType: t}
}

var orders = relational.TableRef{Name: "Orders", Alias: "o"}

func render(t *testing.T, d *dialect.Dialect, p relational.Plan) (string, []Arg) {
	t.Helper()
	sql, args, err := NewPrinter(d).Print(p)
	require.NoError(t, err)
	return sql, args
}

func TestPrint_Select(t *testing.T) {
	s := &relational.Select{
		Projection: []relational.Projection{
			{Expr: col("o", "Id", model.Int32), Alias: "Id"},
			{Expr: col("o", "Total", model.Decimal), Alias: "Amount"},
		},
		From: orders,
		Where: relational.And(
			relational.SQLCompare(relational.OpGt, col("o", "Total", model.Decimal), relational.Int(100)),
			relational.SQLCompare(relational.OpEq, col("o", "WarehouseCode", model.String), relational.Literal{Value: ir.IRString("it's"), ColType: model.String}),
		),
		OrderBy: []relational.Ordering{{Expr: col("o", "PlacedAt", model.DateTime), Desc: true}},
	}
	sql, args := render(t, testutil.MySQL(), s)
	assert.Equal(t, "SELECT `o`.`Id`, `o`.`Total` AS `Amount` FROM `Orders` AS `o` WHERE (`o`.`Total` > 100) AND (`o`.`WarehouseCode` = ?) ORDER BY `o`.`PlacedAt` DESC", sql)
	require.Len(t, args, 1)
	assert.Equal(t, Arg{Ordinal: 1, Element: -1, Type: model.String, Value: ir.IRString("it's")}, args[0])
}

func TestPrint_Union(t *testing.T) {
	shape, _ := testutil.Shop().Shape("Animals")
	f, _, err := flatten.Source(shape, nil, relational.NewAliases())
	require.NoError(t, err)

	s := &relational.Select{
		Projection: []relational.Projection{{Expr: f.Columns["Name"], Alias: "Name"}},
		From:       f.Table,
	}
	sql, _ := render(t, testutil.MySQL(), s)
	assert.Equal(t, "SELECT `u`.`Name` FROM ("+
		"SELECT `c`.`Id`, `c`.`Name`, `c`.`Lives`, CAST(NULL AS char) AS `Breed`, `c`.`OwnerId`, 'Cat' AS `Discriminator` FROM `Cats` AS `c` "+
		"UNION ALL "+
		"SELECT `d`.`Id`, `d`.`Name`, CAST(NULL AS signed) AS `Lives`, `d`.`Breed`, `d`.`OwnerId`, 'Dog' AS `Discriminator` FROM `Dogs` AS `d`"+
		") AS `u`", sql)
}

func TestPrint_Limit(t *testing.T) {
	take := relational.Parameter{Name: "take", Value: ir.IRInt(5), ColType: model.Int32, Element: -1}
	skip := relational.Parameter{Name: "skip", Value: ir.IRInt(10), ColType: model.Int32, Element: -1}

	tests := []struct {
		name  string
		d     *dialect.Dialect
		limit relational.Expr
		off   relational.Expr
		want  string
		args  int
	}{
		{"limit", testutil.MySQL(), relational.Int(3), nil, " LIMIT 3", 0},
		{"limit offset", testutil.MySQL(), take, skip, " LIMIT ? OFFSET ?", 2},
		{"offset only", testutil.MySQL(), nil, relational.Int(4), " LIMIT 18446744073709551610 OFFSET 4", 0},
		{"inlined", testutil.MySQL(dialect.WithParameterizedLimit(false)), take, skip, " LIMIT 5 OFFSET 10", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &relational.Select{From: orders, Limit: tt.limit, Offset: tt.off}
			sql, args := render(t, tt.d, s)
			assert.Equal(t, "SELECT 1 FROM `Orders` AS `o`"+tt.want, sql)
			assert.Len(t, args, tt.args)
		})
	}
}

func TestPrint_Literals(t *testing.T) {
	tests := []struct {
		name string
		d    *dialect.Dialect
		lit  relational.Literal
		want string
	}{
		{"true", testutil.MySQL(), relational.True, "TRUE"},
		{"bool as int", testutil.MySQL(dialect.WithBoolLiterals(false)), relational.False, "0"},
		{"int", testutil.MySQL(), relational.Int(-7), "-7"},
		{"whole float", testutil.MySQL(), relational.Literal{Value: ir.IRFloat(2), ColType: model.Float}, "2E0"},
		{"float", testutil.MySQL(), relational.Literal{Value: ir.IRFloat(1.5), ColType: model.Float}, "1.5"},
		{"null", testutil.MySQL(), relational.Literal{Value: ir.IRNull{}, ColType: model.String}, "NULL"},
		{"trusted", testutil.MySQL(), relational.Text(`O'Brien \ Co`), `'O''Brien \\ Co'`},
		{"no backslash escapes", testutil.MySQL(dialect.WithNoBackslashEscapes(true)), relational.Text(`a\b`), `'a\b'`},
		{"trusted decimal", testutil.MySQL(), relational.Literal{Value: ir.MustDecimal("1.50"), ColType: model.Decimal, Trusted: true}, "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &relational.Select{Projection: []relational.Projection{{Expr: tt.lit, Alias: "v"}}}
			sql, args := render(t, tt.d, s)
			assert.Equal(t, "SELECT "+tt.want+" AS `v`", sql)
			assert.Empty(t, args)
		})
	}
}

func TestPrint_PlaceholderFormats(t *testing.T) {
	s := &relational.Select{
		Projection: []relational.Projection{{Expr: relational.Text("why?"), Alias: "q?"}},
		From:       orders,
		Where: relational.And(
			relational.SQLCompare(relational.OpEq, col("o", "Id", model.Int32), relational.Parameter{Name: "id", Value: ir.IRInt(1), ColType: model.Int32, Element: -1}),
			relational.SQLCompare(relational.OpEq, col("o", "WarehouseCode", model.String), relational.Parameter{Name: "code", Value: ir.IRString("A"), ColType: model.String, Element: -1}),
		),
	}

	sql, args := render(t, testutil.MySQL(), s)
	assert.Equal(t, "SELECT 'why?' AS `q?` FROM `Orders` AS `o` WHERE (`o`.`Id` = ?) AND (`o`.`WarehouseCode` = ?)", sql)
	assert.Equal(t, []string{"id", "code"}, []string{args[0].Name, args[1].Name})
	assert.Equal(t, 2, args[1].Ordinal)

	sql, _ = render(t, testutil.MySQL(dialect.WithPlaceholder(dialect.PlaceholderDollar)), s)
	assert.Equal(t, "SELECT 'why?' AS `q?` FROM `Orders` AS `o` WHERE (`o`.`Id` = $1) AND (`o`.`WarehouseCode` = $2)", sql)
}

func TestPrint_Joins(t *testing.T) {
	inner := &relational.Select{
		Projection: []relational.Projection{{Expr: col("o", "Id", model.Int32), Alias: "Id"}},
		From:       orders,
		Where:      relational.SQLCompare(relational.OpEq, col("c", "Id", model.Int32), col("o", "CustomerId", model.Int32)),
		Limit:      relational.Int(2),
	}
	s := &relational.Select{
		Projection: []relational.Projection{{Expr: col("t", "Id", model.Int32), Alias: "Id"}},
		From:       relational.TableRef{Name: "Customers", Alias: "c"},
		Joins: []relational.Join{
			{Kind: relational.JoinLeftLateral, Table: relational.Derived{Plan: inner, Alias: "t"}},
			{Kind: relational.JoinInner, Table: relational.TableRef{Name: "Reviews", Alias: "r"}, On: relational.SQLCompare(relational.OpEq, col("c", "Id", model.Int32), col("r", "CustomerId", model.Int32))},
			{Kind: relational.JoinCross, Table: relational.TableRef{Schema: "ref", Name: "Regions", Alias: "r0"}},
		},
	}
	sql, _ := render(t, testutil.MySQL(), s)
	assert.Equal(t, "SELECT `t`.`Id` FROM `Customers` AS `c` "+
		"LEFT JOIN LATERAL (SELECT `o`.`Id` FROM `Orders` AS `o` WHERE `c`.`Id` = `o`.`CustomerId` LIMIT 2) AS `t` ON TRUE "+
		"INNER JOIN `Reviews` AS `r` ON `c`.`Id` = `r`.`CustomerId` "+
		"CROSS JOIN `ref`.`Regions` AS `r0`", sql)
}

func TestPrint_JSONTable(t *testing.T) {
	ids := relational.Parameter{Name: "ids", Value: ir.NewIRArray(ir.IRInt(1), ir.IRInt(2)), ColType: model.ArrayOf(model.Int32), Element: -1, JSON: true}
	s := &relational.Select{
		Projection: []relational.Projection{{Expr: col("j", "value", model.Int32), Alias: "value"}},
		From: relational.JSONTable{
			Source: ids,
			Path:   "$[*]",
			Columns: []relational.JSONColumn{
				{Name: "key", Ordinality: true},
				{Name: "value", Type: model.Int32, Path: "$"},
			},
			Alias: "j",
		},
		OrderBy: []relational.Ordering{{Expr: col("j", "key", model.Int64)}},
	}
	sql, args := render(t, testutil.MySQL(), s)
	assert.Equal(t, "SELECT `j`.`value` FROM JSON_TABLE(?, '$[*]' COLUMNS (`key` FOR ORDINALITY, `value` int PATH '$')) AS `j` ORDER BY `j`.`key`", sql)
	require.Len(t, args, 1)
	v, err := args[0].Driver()
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", v)
}

func TestPrint_Expressions(t *testing.T) {
	a := relational.Column{Table: "p", Name: "A", ColType: model.Int32, Null: relational.MaybeNull}
	b := relational.Column{Table: "p", Name: "B", ColType: model.Int32, Null: relational.MaybeNull}
	placed := col("o", "PlacedAt", model.DateTime)
	list := relational.Parameter{Name: "ids", Value: ir.NewIRArray(ir.IRInt(3), ir.IRInt(4)), ColType: model.Int32}

	tests := []struct {
		name string
		e    relational.Expr
		want string
	}{
		{"or chain", relational.Or(relational.IsNull(a), relational.IsNull(b), relational.SQLCompare(relational.OpEq, a, b)), "`p`.`A` IS NULL OR `p`.`B` IS NULL OR (`p`.`A` = `p`.`B`)"},
		{"not", relational.Not(relational.SQLCompare(relational.OpLt, a, b)), "NOT (`p`.`A` < `p`.`B`)"},
		{"case", relational.Case{Whens: []relational.When{{Test: relational.IsNull(a), Then: relational.Int(0)}}, Else: a, ColType: model.Int32}, "CASE WHEN `p`.`A` IS NULL THEN 0 ELSE `p`.`A` END"},
		{"cast", relational.Cast{Operand: relational.Arith(relational.OpAdd, a, b, model.Int32), To: model.String}, "CAST(`p`.`A` + `p`.`B` AS char)"},
		{"extract", relational.Extract{Unit: "year", Operand: placed}, "EXTRACT(year FROM `o`.`PlacedAt`)"},
		{"date add", relational.DateAdd{Unit: "day", Operand: placed, Amount: relational.Int(3)}, "DATE_ADD(`o`.`PlacedAt`, INTERVAL 3 day)"},
		{"date diff", relational.DateDiff{Unit: "MONTH", Start: placed, End: placed}, "TIMESTAMPDIFF(MONTH, `o`.`PlacedAt`, `o`.`PlacedAt`)"},
		{"in list", relational.In{Item: a, Values: []relational.Expr{
			relational.Parameter{Name: "ids", Value: list.Value, ColType: model.Int32, Element: 0},
			relational.Parameter{Name: "ids", Value: list.Value, ColType: model.Int32, Element: 1},
		}}, "`p`.`A` IN (?, ?)"},
		{"count distinct", relational.Aggregate{Func: "COUNT", Arg: a, Distinct: true, ColType: model.Int64}, "COUNT(DISTINCT `p`.`A`)"},
		{"count star", relational.Aggregate{Func: "COUNT", ColType: model.Int64}, "COUNT(*)"},
		{"row number", relational.RowNumber{PartitionBy: []relational.Expr{a}, OrderBy: []relational.Ordering{{Expr: b, Desc: true}}}, "ROW_NUMBER() OVER(PARTITION BY `p`.`A` ORDER BY `p`.`B` DESC)"},
		{"coalesce", relational.Coalesce(model.Int32, a, relational.Int(0)), "COALESCE(`p`.`A`, 0)"},
		{"negate", relational.Unary{Op: relational.OpNegate, Operand: a, ColType: model.Int32}, "-`p`.`A`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &relational.Select{Projection: []relational.Projection{{Expr: tt.e}}}
			sql, _ := render(t, testutil.MySQL(), s)
			assert.Equal(t, "SELECT "+tt.want, sql)
		})
	}
}

func TestPrint_PredicateOperands(t *testing.T) {
	flag := relational.Column{Table: "p", Name: "P", ColType: model.Bool, Null: relational.MaybeNull}
	a := relational.Column{Table: "p", Name: "A", ColType: model.Int32, Null: relational.MaybeNull}
	in := relational.In{Item: a, Values: []relational.Expr{relational.Int(1), relational.Int(2)}}
	cond := relational.Case{Whens: []relational.When{{Test: flag, Then: relational.Int(1)}}, Else: relational.Int(2), ColType: model.Int32}

	tests := []struct {
		name string
		e    relational.Expr
		want string
	}{
		{"not operand", relational.SQLCompare(relational.OpEq, flag, relational.Not(flag)), "`p`.`P` = (NOT `p`.`P`)"},
		{"in operand", relational.SQLCompare(relational.OpEq, flag, in), "`p`.`P` = (`p`.`A` IN (1, 2))"},
		{"is null operand", relational.SQLCompare(relational.OpEq, relational.IsNull(a), flag), "(`p`.`A` IS NULL) = `p`.`P`"},
		{"case operand", relational.SQLCompare(relational.OpLt, cond, a), "(CASE WHEN `p`.`P` THEN 1 ELSE 2 END) < `p`.`A`"},
		{"logical keeps bare predicates", relational.And(relational.Not(flag), in), "NOT `p`.`P` AND `p`.`A` IN (1, 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &relational.Select{Projection: []relational.Projection{{Expr: tt.e}}}
			sql, _ := render(t, testutil.MySQL(), s)
			assert.Equal(t, "SELECT "+tt.want, sql)
		})
	}
}

func TestPrint_ElementArgs(t *testing.T) {
	list := ir.NewIRArray(ir.IRString("x"), ir.IRString("y"))
	s := &relational.Select{
		From: orders,
		Where: relational.In{Item: col("o", "WarehouseCode", model.String), Values: []relational.Expr{
			relational.Parameter{Name: "codes", Value: list, ColType: model.String, Element: 0},
			relational.Parameter{Name: "codes", Value: list, ColType: model.String, Element: 1},
		}},
	}
	_, args := render(t, testutil.MySQL(), s)
	require.Len(t, args, 2)
	assert.Equal(t, Arg{Ordinal: 2, Name: "codes", Element: 1, Type: model.String, Value: ir.IRString("y")}, args[1])

	driver, err := DriverArgs(args)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, driver)
}

func TestPrint_Errors(t *testing.T) {
	_, _, err := NewPrinter(testutil.MySQL()).Print(nil)
	assert.Error(t, err)

	bad := &relational.Select{Where: relational.Parameter{Name: "xs", Value: ir.IRInt(1), Element: 3}}
	_, _, err = NewPrinter(testutil.MySQL()).Print(bad)
	assert.Error(t, err)
}

func TestCountPlaceholders(t *testing.T) {
	tests := []struct {
		sql  string
		want int
	}{
		{"SELECT ?", 1},
		{"SELECT '?', `?`, ?", 1},
		{`SELECT 'it\'s ?', ?`, 1},
		{"SELECT ??, ?", 1},
		{"SELECT 'a''?', ?, ?", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countPlaceholders(tt.sql, true), tt.sql)
	}
}
