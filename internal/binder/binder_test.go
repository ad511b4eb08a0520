package binder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/nullsem"
	"github.com/roach88/querylift/internal/planner"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/querysql"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
	"github.com/roach88/querylift/internal/testutil"
)

func v(name string) queryir.Var { return queryir.Var{Name: name} }

func prop(of, name string) queryir.Prop { return queryir.Prop{Of: v(of), Name: name} }

func num(i int64) queryir.Const { return queryir.Const{Value: ir.IRInt(i)} }

func src(entity, as string) queryir.Source { return queryir.Source{Entity: entity, As: as} }

func orders(of, as string) queryir.NavSource {
	return queryir.NavSource{Of: v(of), Navigation: "Orders", As: as}
}

const orderCols = "`Id`, `%[1]s`.`CustomerId`, `%[1]s`.`Total`, `%[1]s`.`PlacedAt`, `%[1]s`.`Status`, `%[1]s`.`WarehouseCode`, `%[1]s`.`WarehouseRegion`"

// cols lists the Orders columns read from alias.
func cols(alias string) string {
	return "`" + alias + "`." + strings.ReplaceAll(orderCols, "%[1]s", alias)
}

func render(t *testing.T, d *dialect.Dialect, q queryir.Query) (string, []querysql.Arg, Result) {
	t.Helper()
	res, err := Bind(testutil.Shop(), d, q)
	require.NoError(t, err)
	p := flatten.Prune(relational.EnsureDeterministicOrder(nullsem.Rewrite(res.Plan)))
	sql, args, err := querysql.NewPrinter(d).Print(p)
	require.NoError(t, err)
	return sql, args, res
}

func bindErr(t *testing.T, d *dialect.Dialect, q queryir.Query) *qerr.Error {
	t.Helper()
	_, err := Bind(testutil.Shop(), d, q)
	require.Error(t, err)
	var e *qerr.Error
	require.ErrorAs(t, err, &e)
	return e
}

func TestBind_HierarchyFilter(t *testing.T) {
	q := queryir.Filter{
		Input: src("Animals", "a"),
		Predicate: queryir.Compare{
			Op: queryir.Eq,
			L:  prop("a", "Name"),
			R:  queryir.Param{Name: "name", Value: ir.IRString("Rex")},
		},
	}
	sql, args, res := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `u`.`Id`, `u`.`Name`, `u`.`Lives`, `u`.`Breed`, `u`.`OwnerId`, `u`.`Discriminator` FROM ("+
		"SELECT `c`.`Id`, `c`.`Name`, `c`.`Lives`, CAST(NULL AS char) AS `Breed`, `c`.`OwnerId`, 'Cat' AS `Discriminator` FROM `Cats` AS `c` "+
		"UNION ALL "+
		"SELECT `d`.`Id`, `d`.`Name`, CAST(NULL AS signed) AS `Lives`, `d`.`Breed`, `d`.`OwnerId`, 'Dog' AS `Discriminator` FROM `Dogs` AS `d`"+
		") AS `u` WHERE `u`.`Name` = ?", sql)
	require.Len(t, args, 1)
	assert.Equal(t, "name", args[0].Name)
	assert.Equal(t, ir.IRString("Rex"), args[0].Value)
	assert.Equal(t, []string{"Id", "Name", "Lives", "Breed", "OwnerId", "Discriminator"}, res.Columns)
}

func TestBind_OfTypeReadsOneTable(t *testing.T) {
	q := queryir.OfType{Input: src("Animals", "a"), Subtypes: []string{"Dog"}}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `d`.`Id`, `d`.`Name`, CAST(NULL AS signed) AS `Lives`, `d`.`Breed`, `d`.`OwnerId`, 'Dog' AS `Discriminator` FROM `Dogs` AS `d`", sql)
}

func TestBind_TypeIs(t *testing.T) {
	q := queryir.Filter{
		Input:     src("Animals", "a"),
		Predicate: queryir.TypeIs{Of: v("a"), Subtypes: []string{"Cat"}},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.True(t, strings.HasSuffix(sql, "WHERE `u`.`Discriminator` = 'Cat'"), sql)
}

func TestBind_CompositeKeyNavigation(t *testing.T) {
	q := queryir.Project{
		Input: src("Orders", "o"),
		As:    "x",
		Fields: []queryir.Field{{
			Name:  "WarehouseName",
			Value: queryir.Prop{Of: queryir.Nav{Of: v("o"), Name: "Warehouse"}, Name: "Name"},
		}},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `w`.`Name` AS `WarehouseName` FROM `Orders` AS `o` "+
		"LEFT JOIN `Warehouses` AS `w` ON (`o`.`WarehouseCode` = `w`.`Code`) AND "+
		"((`o`.`WarehouseRegion` = `w`.`Region`) OR (`o`.`WarehouseRegion` IS NULL AND `w`.`Region` IS NULL))", sql)
}

func TestBind_NavigationJoinIsShared(t *testing.T) {
	customer := queryir.Nav{Of: v("o"), Name: "Customer"}
	q := queryir.Project{
		Input: src("Orders", "o"),
		As:    "x",
		Fields: []queryir.Field{
			{Name: "Name", Value: queryir.Prop{Of: customer, Name: "Name"}},
			{Name: "City", Value: queryir.Prop{Of: customer, Name: "City"}},
		},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `c`.`Name`, `c`.`City` FROM `Orders` AS `o` LEFT JOIN `Customers` AS `c` ON `o`.`CustomerId` = `c`.`Id`", sql)
	assert.Equal(t, 1, strings.Count(sql, "JOIN"))
}

func TestBind_HasFlag(t *testing.T) {
	q := queryir.Filter{
		Input:     src("Orders", "o"),
		Predicate: queryir.HasFlag{Value: prop("o", "Status"), Flag: num(4)},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT "+cols("o")+" FROM `Orders` AS `o` WHERE CAST(`o`.`Status` & 4 AS signed) = 4", sql)
}

// bigOrders is the first two orders over 100 of customer c, by date.
func bigOrders() queryir.Query {
	return queryir.Paginate{
		Input: queryir.OrderBy{
			Input: queryir.Filter{
				Input:     orders("c", "o"),
				Predicate: queryir.Compare{Op: queryir.Gt, L: prop("o", "Total"), R: num(100)},
			},
			Keys: []queryir.Ordering{{Key: prop("o", "PlacedAt")}},
		},
		Limit: num(2),
	}
}

func withOrders(q queryir.Query) queryir.Project {
	return queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{
			{Name: "Id", Value: prop("c", "Id")},
			{Name: "Orders", Value: queryir.Subquery{Query: q}},
		},
	}
}

func TestBind_LateralCollection(t *testing.T) {
	sql, _, res := render(t, testutil.MySQL(), withOrders(bigOrders()))
	assert.Equal(t, "SELECT `c`.`Id`, "+cols("t")+" FROM `Customers` AS `c` "+
		"LEFT JOIN LATERAL (SELECT "+cols("o")+" FROM `Orders` AS `o` "+
		"WHERE (`c`.`Id` = `o`.`CustomerId`) AND (`o`.`Total` > 100) ORDER BY `o`.`PlacedAt`, `o`.`Id` LIMIT 2) AS `t` ON TRUE "+
		"ORDER BY `c`.`Id`, `t`.`PlacedAt`, `t`.`Id`", sql)

	require.Len(t, res.Collections, 1)
	c := res.Collections[0]
	assert.Equal(t, "Orders", c.Name)
	assert.Equal(t, planner.StrategyLateral, c.Strategy)
	assert.Equal(t, 1, c.Start)
	assert.Equal(t, 8, c.End)
	assert.Equal(t, []int{0}, c.Parent)
	assert.Equal(t, []int{1}, c.Child)
}

func TestBind_RowNumberCollection(t *testing.T) {
	sql, _, res := render(t, testutil.MySQLNoLateral(), withOrders(bigOrders()))
	assert.Contains(t, sql, "ROW_NUMBER() OVER(PARTITION BY `o`.`CustomerId` ORDER BY `o`.`PlacedAt`, `o`.`Id`) AS `row`")
	assert.Contains(t, sql, "WHERE `o`.`Total` > 100")
	assert.Contains(t, sql, "ON (`c`.`Id` = `t`.`CustomerId`) AND (`t`.`row` <= 2)")
	assert.NotContains(t, sql, "LATERAL")
	assert.NotContains(t, sql, "LIMIT")
	require.Len(t, res.Collections, 1)
	assert.Equal(t, planner.StrategyRowNumber, res.Collections[0].Strategy)
}

func TestBind_CollectionCapability(t *testing.T) {
	e := bindErr(t, testutil.MySQL57(), withOrders(bigOrders()))
	assert.Equal(t, qerr.CodeDialectCapability, e.Code)
	assert.Equal(t, "LATERAL", e.Capability)
	assert.Equal(t, "mysql-8.0.14", e.MinVersion)

	distinct := queryir.Distinct{Input: queryir.Project{
		Input:  orders("c", "o"),
		As:     "s",
		Fields: []queryir.Field{{Name: "Status", Value: prop("o", "Status")}},
	}}
	e = bindErr(t, testutil.MySQLNoLateral(), withOrders(distinct))
	assert.Equal(t, qerr.CodeDialectCapability, e.Code)
}

func TestBind_CollectionNavigatingFromParent(t *testing.T) {
	reviews := queryir.Project{
		Input: queryir.Filter{
			Input: src("Reviews", "r"),
			Predicate: queryir.Compare{
				Op: queryir.Eq,
				L:  prop("r", "CustomerId"),
				R:  prop("o", "CustomerId"),
			},
		},
		As: "e",
		Fields: []queryir.Field{
			{Name: "Body", Value: prop("r", "Body")},
			{Name: "Warehouse", Value: queryir.Prop{Of: queryir.Nav{Of: v("o"), Name: "Warehouse"}, Name: "Name"}},
		},
	}
	q := queryir.Project{
		Input: src("Orders", "o"),
		As:    "x",
		Fields: []queryir.Field{
			{Name: "Id", Value: prop("o", "Id")},
			{Name: "Reviews", Value: queryir.Subquery{Query: reviews}},
		},
	}
	sql, _, res := render(t, testutil.MySQL(), q)
	assert.Contains(t, sql, "LEFT JOIN LATERAL (SELECT `r`.`Body`")
	assert.NotContains(t, sql, "LEFT JOIN (SELECT")
	require.Len(t, res.Collections, 1)
	assert.Equal(t, planner.StrategyLateral, res.Collections[0].Strategy)

	e := bindErr(t, testutil.MySQL57(), q)
	assert.Equal(t, qerr.CodeDialectCapability, e.Code)
	assert.Equal(t, "LATERAL", e.Capability)
}

func TestBind_SiblingCollections(t *testing.T) {
	q := queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{
			{Name: "Id", Value: prop("c", "Id")},
			{Name: "Orders", Value: queryir.Subquery{Query: orders("c", "o")}},
			{Name: "Reviews", Value: queryir.Subquery{Query: queryir.NavSource{Of: v("c"), Navigation: "Reviews", As: "r"}}},
		},
	}
	sql, _, res := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `c`.`Id`, "+cols("o")+", `r`.`Id`, `r`.`CustomerId`, `r`.`Rating`, `r`.`Body` "+
		"FROM `Customers` AS `c` "+
		"LEFT JOIN `Orders` AS `o` ON `c`.`Id` = `o`.`CustomerId` "+
		"LEFT JOIN `Reviews` AS `r` ON `c`.`Id` = `r`.`CustomerId` "+
		"ORDER BY `c`.`Id`, `o`.`Id`, `r`.`Id`", sql)

	require.Len(t, res.Collections, 2)
	assert.Equal(t, planner.StrategyJoin, res.Collections[0].Strategy)
	assert.Equal(t, [2]int{1, 8}, [2]int{res.Collections[0].Start, res.Collections[0].End})
	assert.Equal(t, [2]int{8, 12}, [2]int{res.Collections[1].Start, res.Collections[1].End})
	assert.Equal(t, []int{8}, res.Collections[1].Child)
}

func TestBind_CountDefaultsToZero(t *testing.T) {
	q := queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{
			{Name: "Id", Value: prop("c", "Id")},
			{Name: "Big", Value: queryir.Aggregate{
				Op: queryir.Count,
				Source: queryir.Filter{
					Input:     orders("c", "o"),
					Predicate: queryir.Compare{Op: queryir.Gt, L: prop("o", "Total"), R: num(100)},
				},
			}},
		},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `c`.`Id`, COALESCE((SELECT COUNT(*) FROM `Orders` AS `o` "+
		"WHERE (`c`.`Id` = `o`.`CustomerId`) AND (`o`.`Total` > 100)), 0) AS `Big` FROM `Customers` AS `c`", sql)
}

func TestBind_MaxWithoutDefaultIsNullable(t *testing.T) {
	q := queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{{Name: "Latest", Value: queryir.Aggregate{
			Op:       queryir.Max,
			Source:   orders("c", "o"),
			Selector: prop("o", "PlacedAt"),
		}}},
	}
	res, err := Bind(testutil.Shop(), testutil.MySQL(), q)
	require.NoError(t, err)
	sel := res.Plan.(*relational.Select)
	assert.Equal(t, relational.MaybeNull, sel.Projection[0].Expr.Nullability())
	_, isSub := sel.Projection[0].Expr.(relational.Subquery)
	assert.True(t, isSub)
}

func TestBind_MinOfValueDefaultsToZero(t *testing.T) {
	q := queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{{Name: "Lowest", Value: queryir.Aggregate{
			Op:       queryir.Min,
			Source:   orders("c", "o"),
			Selector: prop("o", "Id"),
		}}},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT COALESCE((SELECT MIN(`o`.`Id`) FROM `Orders` AS `o` "+
		"WHERE `c`.`Id` = `o`.`CustomerId`), 0) AS `Lowest` FROM `Customers` AS `c`", sql)
}

func TestBind_CountOverGroupsPushesDown(t *testing.T) {
	statuses := queryir.Project{
		Input: queryir.GroupBy{
			Input: orders("c", "o"),
			As:    "g",
			Keys:  []queryir.Field{{Name: "Status", Value: prop("o", "Status")}},
		},
		As:     "s",
		Fields: []queryir.Field{{Name: "Status", Value: prop("g", "Status")}},
	}
	q := queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{{Name: "Statuses", Value: queryir.Aggregate{Op: queryir.Count, Source: statuses}}},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Contains(t, sql, "(SELECT COUNT(*) FROM (SELECT `o`.`Status`")
	assert.Contains(t, sql, "FROM `Orders` AS `o` WHERE `c`.`Id` = `o`.`CustomerId` GROUP BY `o`.`Status`) AS `t`)")
	assert.NotContains(t, sql, "COUNT(*) FROM `Orders`")

	e := bindErr(t, testutil.MySQL57(), q)
	assert.Equal(t, qerr.CodeDialectCapability, e.Code)
}

func TestBind_FirstKeepsEmptyPage(t *testing.T) {
	page := queryir.Paginate{
		Input: queryir.OrderBy{Input: orders("c", "o"), Keys: []queryir.Ordering{{Key: prop("o", "PlacedAt")}}},
		Limit: num(0),
	}
	q := queryir.Project{
		Input: src("Customers", "c"),
		As:    "x",
		Fields: []queryir.Field{{Name: "First", Value: queryir.Aggregate{
			Op:       queryir.First,
			Source:   page,
			Selector: prop("o", "Total"),
		}}},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Contains(t, sql, "LIMIT 0) AS `t`")
	assert.Contains(t, sql, "LIMIT 1)")
	assert.NotContains(t, sql, "`o`.`Id` LIMIT 1")
}

func TestBind_FilterAfterPagingPushesDown(t *testing.T) {
	q := queryir.Filter{
		Input: queryir.Paginate{
			Input: queryir.OrderBy{Input: src("Orders", "o"), Keys: []queryir.Ordering{{Key: prop("o", "PlacedAt")}}},
			Limit: num(10),
		},
		Predicate: queryir.Compare{Op: queryir.Gt, L: prop("o", "Total"), R: num(100)},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT "+cols("t")+" FROM (SELECT "+cols("o")+" FROM `Orders` AS `o` "+
		"ORDER BY `o`.`PlacedAt`, `o`.`Id` LIMIT 10) AS `t` WHERE `t`.`Total` > 100 ORDER BY `t`.`PlacedAt`", sql)
}

func TestBind_GroupAggregateHaving(t *testing.T) {
	q := queryir.Filter{
		Input: queryir.Project{
			Input: queryir.GroupBy{
				Input: src("Orders", "o"),
				As:    "g",
				Keys:  []queryir.Field{{Name: "Customer", Value: prop("o", "CustomerId")}},
			},
			As: "x",
			Fields: []queryir.Field{
				{Name: "CustomerId", Value: prop("g", "Customer")},
				{Name: "Total", Value: queryir.Aggregate{
					Op:       queryir.Sum,
					Source:   queryir.GroupElements{Group: "g", As: "e"},
					Selector: prop("e", "Total"),
				}},
				{Name: "Big", Value: queryir.Aggregate{
					Op: queryir.Count,
					Source: queryir.Filter{
						Input:     queryir.GroupElements{Group: "g", As: "e"},
						Predicate: queryir.Compare{Op: queryir.Gt, L: prop("e", "Total"), R: num(100)},
					},
				}},
			},
		},
		Predicate: queryir.Compare{Op: queryir.Gt, L: prop("x", "Total"), R: num(1000)},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `o`.`CustomerId`, SUM(`o`.`Total`) AS `Total`, "+
		"COUNT(CASE WHEN `o`.`Total` > 100 THEN 1 END) AS `Big` "+
		"FROM `Orders` AS `o` GROUP BY `o`.`CustomerId` HAVING SUM(`o`.`Total`) > 1000", sql)
}

func TestBind_UnionAll(t *testing.T) {
	names := func(city string) queryir.Query {
		return queryir.Project{
			Input: queryir.Filter{
				Input:     src("Customers", "c"),
				Predicate: queryir.Compare{Op: queryir.Eq, L: prop("c", "City"), R: queryir.Const{Value: ir.IRString(city)}},
			},
			As:     "x",
			Fields: []queryir.Field{{Name: "Name", Value: prop("c", "Name")}},
		}
	}
	q := queryir.SetOp{Left: names("Oslo"), Right: names("Bergen"), Kind: queryir.UnionAll, As: "n"}
	sql, args, _ := render(t, testutil.MySQL(), q)
	assert.Equal(t, "SELECT `c`.`Name` FROM `Customers` AS `c` WHERE `c`.`City` = ? "+
		"UNION ALL SELECT `c0`.`Name` FROM `Customers` AS `c0` WHERE `c0`.`City` = ?", sql)
	assert.Len(t, args, 2)
}

func TestBind_SetOpCapabilities(t *testing.T) {
	q := queryir.SetOp{Left: src("Customers", "a"), Right: src("Customers", "b"), Kind: queryir.Intersect, As: "s"}
	e := bindErr(t, testutil.MySQL57(), q)
	assert.Equal(t, qerr.CodeDialectCapability, e.Code)

	mismatch := queryir.SetOp{Left: src("Customers", "a"), Right: src("Orders", "o"), Kind: queryir.Union, As: "s"}
	e = bindErr(t, testutil.MySQL(), mismatch)
	assert.Equal(t, qerr.CodeUnsupportedPattern, e.Code)
}

func TestBind_Contains(t *testing.T) {
	ids := queryir.Param{Name: "ids", Value: ir.NewIRArray(ir.IRInt(1), ir.IRNull{}, ir.IRInt(3))}
	q := queryir.Filter{
		Input:     src("Orders", "o"),
		Predicate: queryir.Contains{Item: prop("o", "CustomerId"), Collection: ids},
	}

	sql, args, _ := render(t, testutil.MySQL57(), q)
	assert.True(t, strings.HasSuffix(sql, "WHERE `o`.`CustomerId` IN (?, ?) OR `o`.`CustomerId` IS NULL"), sql)
	require.Len(t, args, 2)
	assert.Equal(t, 0, args[0].Element)
	assert.Equal(t, 2, args[1].Element)

	sql, args, _ = render(t, testutil.MySQL(), q)
	assert.Contains(t, sql, "JSON_TABLE(")
	require.Len(t, args, 1)
	assert.Equal(t, -1, args[0].Element)
}

func TestBind_ExistsDropsOrdering(t *testing.T) {
	q := queryir.Filter{
		Input: src("Customers", "c"),
		Predicate: queryir.Exists{Source: queryir.OrderBy{
			Input: orders("c", "o"),
			Keys:  []queryir.Ordering{{Key: prop("o", "PlacedAt")}},
		}},
	}
	sql, _, _ := render(t, testutil.MySQL(), q)
	assert.True(t, strings.HasSuffix(sql, "WHERE EXISTS (SELECT 1 FROM `Orders` AS `o` WHERE `c`.`Id` = `o`.`CustomerId`)"), sql)
}

func TestBind_Errors(t *testing.T) {
	tests := []struct {
		name string
		q    queryir.Query
		code qerr.Code
	}{
		{"unknown entity", src("Nope", "n"), qerr.CodeModelResolution},
		{"unknown property", queryir.Filter{
			Input:     src("Orders", "o"),
			Predicate: queryir.Compare{Op: queryir.Eq, L: prop("o", "Nope"), R: num(1)},
		}, qerr.CodeModelResolution},
		{"collection navigation read as a value", queryir.Project{
			Input:  src("Customers", "c"),
			As:     "x",
			Fields: []queryir.Field{{Name: "O", Value: queryir.Nav{Of: v("c"), Name: "Orders"}}},
		}, qerr.CodeUnsupportedPattern},
		{"group elements outside an aggregate", queryir.GroupElements{Group: "g", As: "e"}, qerr.CodeUnsupportedPattern},
		{"paging after a collection", queryir.Paginate{Input: withOrders(orders("c", "o")), Limit: num(1)}, qerr.CodeUnsupportedPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(testutil.Shop(), testutil.MySQL(), tt.q)
			require.Error(t, err)
			assert.Equal(t, tt.code, qerr.CodeOf(err))
		})
	}
}
