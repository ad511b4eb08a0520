package navigate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/relational"
	"github.com/roach88/querylift/internal/testutil"
)

func source(t *testing.T, m *model.Model, name string, aliases relational.Aliases) (*Binding, relational.Aliases) {
	t.Helper()
	s, ok := m.Shape(name)
	require.True(t, ok)
	f, aliases, err := flatten.Source(s, nil, aliases)
	require.NoError(t, err)
	return Bind(s, f), aliases
}

func TestExpand_JoinKind(t *testing.T) {
	m := testutil.Shop()

	tests := []struct {
		name   string
		from   string
		nav    string
		kind   relational.JoinKind
		target string
	}{
		{"optional dependent to principal", "Orders", "Customer", relational.JoinLeft, "c"},
		{"required dependent to principal", "Reviews", "Customer", relational.JoinInner, "c"},
		{"composite key", "Orders", "Warehouse", relational.JoinLeft, "w"},
		{"hierarchy dependent", "Animals", "Owner", relational.JoinLeft, "c0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, aliases := source(t, m, tt.from, relational.NewAliases())
			exp, _, joins, err := Expand(m, src, tt.nav, aliases, JoinSet{})
			require.NoError(t, err)
			assert.False(t, exp.Reused)
			assert.Equal(t, tt.kind, exp.Join.Kind)
			assert.Equal(t, tt.target, exp.Target.Alias)
			assert.Equal(t, 1, joins.Len())
			assert.Equal(t, tt.kind == relational.JoinLeft, exp.Target.Optional)
		})
	}
}

func TestExpand_OuterTargetColumnsAreNullable(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Orders", relational.NewAliases())
	exp, _, _, err := Expand(m, src, "Warehouse", aliases, JoinSet{})
	require.NoError(t, err)

	name, err := exp.Target.Property("Name")
	require.NoError(t, err)
	assert.Equal(t, relational.MaybeNull, name.Nullability())
}

func TestExpand_KeyPredicateUsesRawTargetNullability(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Orders", relational.NewAliases())
	exp, _, _, err := Expand(m, src, "Warehouse", aliases, JoinSet{})
	require.NoError(t, err)

	str := func(table, name string, null relational.Nullability) relational.Column {
		return relational.Column{Table: table, Name: name, ColType: model.String, Null: null}
	}
	want := relational.And(
		relational.Compare(relational.OpEq, str("o", "WarehouseCode", relational.MaybeNull), str("w", "Code", relational.NeverNull)),
		relational.Compare(relational.OpEq, str("o", "WarehouseRegion", relational.MaybeNull), str("w", "Region", relational.MaybeNull)),
	)
	assert.Equal(t, want, exp.Join.On)
}

func TestExpand_ReusesJoin(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Orders", relational.NewAliases())

	first, aliases, joins, err := Expand(m, src, "Customer", aliases, JoinSet{})
	require.NoError(t, err)
	second, aliases2, joins2, err := Expand(m, src, "Customer", aliases, joins)
	require.NoError(t, err)

	assert.True(t, second.Reused)
	assert.Same(t, first.Target, second.Target)
	assert.Equal(t, aliases.Len(), aliases2.Len(), "no alias is allocated")
	assert.Equal(t, 1, joins2.Len())

	// Another source binding of the same shape gets its own join.
	other, aliases := source(t, m, "Orders", aliases)
	third, _, joins3, err := Expand(m, other, "Customer", aliases, joins2)
	require.NoError(t, err)
	assert.False(t, third.Reused)
	assert.Equal(t, 2, joins3.Len())
}

func TestExpand_OptionalSourceStaysOuter(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Reviews", relational.NewAliases())
	exp, _, _, err := Expand(m, src.Outer(), "Customer", aliases, JoinSet{})
	require.NoError(t, err)
	assert.Equal(t, relational.JoinLeft, exp.Join.Kind)
}

func TestExpand_Errors(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Customers", relational.NewAliases())

	_, _, _, err := Expand(m, src, "Nope", aliases, JoinSet{})
	assert.True(t, qerr.IsModelResolution(err))

	_, _, _, err = Expand(m, src, "Orders", aliases, JoinSet{})
	assert.True(t, qerr.IsUnsupportedPattern(err))
}

func TestCollection(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Customers", relational.NewAliases())

	cs, aliases, err := Collection(m, src, "Orders", aliases)
	require.NoError(t, err)
	assert.Equal(t, "o", cs.Target.Alias)
	assert.True(t, aliases.Has("o"))
	assert.Equal(t, []relational.Expr{src.Columns["Id"]}, cs.Parent)
	assert.Equal(t, []relational.Expr{cs.Target.Columns["CustomerId"]}, cs.Child)
	assert.Equal(t, relational.Compare(relational.OpEq, src.Columns["Id"], cs.Target.Columns["CustomerId"]), cs.Correlation)

	_, _, err = Collection(m, src, "Nope", aliases)
	assert.True(t, qerr.IsModelResolution(err))
}

func TestCollection_Hierarchy(t *testing.T) {
	m := testutil.Shop()
	src, aliases := source(t, m, "Customers", relational.NewAliases())

	res, err := Resolve(m, src.Shape, "Pets")
	require.NoError(t, err)
	cs, _, err := Related(res, src, []string{"Cat"}, aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cat"}, cs.Target.Subtypes)
	assert.Equal(t, relational.TableRef{Name: "Cats", Alias: "c0"}, cs.Target.Table)
}

func TestBinding_Projection(t *testing.T) {
	m := testutil.Shop()
	b, _ := source(t, m, "Animals", relational.NewAliases())

	var names []string
	for _, p := range b.Projection() {
		names = append(names, p.Alias)
	}
	assert.Equal(t, []string{"Id", "Name", "Lives", "Breed", "OwnerId", "Discriminator"}, names)
	assert.Len(t, b.Keys(), 1)
}
