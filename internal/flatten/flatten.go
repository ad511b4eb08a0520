package flatten

import (
	"slices"

	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/relational"
)

// UnionAlias is the alias prefix of a flattened hierarchy union.
const UnionAlias = "u"

// Flattened is the table source of a shape together with the expression
// reading each of its properties.
type Flattened struct {
	Table relational.Table

	// Columns maps property names to expressions over Table.
	Columns map[string]relational.Expr

	// Discriminator reads the subtype discriminator. It is nil for plain
	// shapes.
	Discriminator relational.Expr

	// Subtypes are the selected subtypes in declaration order.
	Subtypes []string
}

// Alias returns the alias of the table source.
func (f Flattened) Alias() string {
	return f.Table.TableAlias()
}

// Source returns the table source of shape restricted to subtypes. A nil
// subtypes list selects every subtype of a hierarchy; it is ignored for a
// plain shape.
func Source(shape *model.EntityShape, subtypes []string, aliases relational.Aliases) (Flattened, relational.Aliases, error) {
	if !shape.IsHierarchy() {
		var alias string
		alias, aliases = aliases.Next(shape.Table)
		f := Flattened{
			Table:   relational.TableRef{Schema: shape.Schema, Name: shape.Table, Alias: alias},
			Columns: make(map[string]relational.Expr, len(shape.Properties)),
		}
		for _, p := range shape.Properties {
			f.Columns[p.Name] = column(alias, p, p.Nullable)
		}
		return f, aliases, nil
	}

	selected, err := Select(shape, subtypes)
	if err != nil {
		return Flattened{}, aliases, err
	}
	if len(selected) == 1 {
		return single(shape, selected[0], aliases)
	}
	return union(shape, selected, aliases)
}

// Select resolves subtype names against shape. A nil list selects all of
// them, in declaration order.
func Select(shape *model.EntityShape, subtypes []string) ([]model.SubtypeMapping, error) {
	for _, name := range subtypes {
		if _, ok := shape.Subtype(name); !ok {
			return nil, qerr.Unresolved(name, "shape %q has no subtype %q", shape.Name, name)
		}
	}
	var out []model.SubtypeMapping
	for _, st := range shape.Subtypes {
		if subtypes == nil || slices.Contains(subtypes, st.Name) {
			out = append(out, st)
		}
	}
	if len(out) == 0 {
		return nil, qerr.Unresolved(shape.Name, "hierarchy %q has no concrete subtype to read", shape.Name)
	}
	return out, nil
}

// Restrict intersects two subtype selections, where nil selects all.
func Restrict(a, b []string) []string {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	out := []string{}
	for _, s := range a {
		if slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}

func single(shape *model.EntityShape, st model.SubtypeMapping, aliases relational.Aliases) (Flattened, relational.Aliases, error) {
	alias, aliases := aliases.Next(st.Table)
	f := Flattened{
		Table:         relational.TableRef{Schema: st.Schema, Name: st.Table, Alias: alias},
		Columns:       make(map[string]relational.Expr, len(shape.Properties)),
		Discriminator: relational.Text(st.Discriminator),
		Subtypes:      []string{st.Name},
	}
	for _, p := range shape.Properties {
		if st.Has(p.Name) {
			f.Columns[p.Name] = column(alias, p, p.Nullable)
		} else {
			f.Columns[p.Name] = relational.TypedNull(p.Type)
		}
	}
	return f, aliases, nil
}

func union(shape *model.EntityShape, selected []model.SubtypeMapping, aliases relational.Aliases) (Flattened, relational.Aliases, error) {
	alias, aliases := aliases.Next(UnionAlias)
	disc := shape.Discriminator()

	set := &relational.SetOperation{Kind: relational.SetUnionAll}
	f := Flattened{
		Columns:       make(map[string]relational.Expr, len(shape.Properties)),
		Discriminator: relational.Column{Table: alias, Name: disc, ColType: model.String, Null: relational.NeverNull},
	}
	for _, st := range selected {
		var branch string
		branch, aliases = aliases.Next(st.Table)
		sel := &relational.Select{
			From: relational.TableRef{Schema: st.Schema, Name: st.Table, Alias: branch},
		}
		for _, p := range shape.Properties {
			var e relational.Expr = relational.TypedNull(p.Type)
			if st.Has(p.Name) {
				e = column(branch, p, p.Nullable)
			}
			sel.Projection = append(sel.Projection, relational.Projection{Expr: e, Alias: p.Column})
		}
		sel.Projection = append(sel.Projection, relational.Projection{Expr: relational.Text(st.Discriminator), Alias: disc})
		set.Branches = append(set.Branches, sel)
		f.Subtypes = append(f.Subtypes, st.Name)
	}

	for _, p := range shape.Properties {
		nullable := p.Nullable
		for _, st := range selected {
			if !st.Has(p.Name) {
				nullable = true
			}
		}
		f.Columns[p.Name] = column(alias, p, nullable)
	}
	f.Table = relational.Derived{Plan: set, Alias: alias, Hierarchy: true}
	return f, aliases, nil
}

func column(alias string, p model.Property, nullable bool) relational.Column {
	null := relational.NeverNull
	if nullable {
		null = relational.MaybeNull
	}
	return relational.Column{Table: alias, Name: p.Column, ColType: p.Type, Null: null}
}
