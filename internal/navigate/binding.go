package navigate

import (
	"maps"

	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/relational"
)

// Binding is a range variable over the rows of an entity shape. Bindings
// are compared by identity: every source, navigation and pushdown creates a
// new one.
type Binding struct {
	Shape *model.EntityShape

	// Table is the source the binding reads. It is nil for bindings lifted
	// out of a derived table.
	Table relational.Table

	// Alias is the table alias the columns read from.
	Alias string

	// Columns maps property names to expressions.
	Columns map[string]relational.Expr

	// Discriminator reads the subtype discriminator of a hierarchy.
	Discriminator relational.Expr

	// Subtypes are the subtypes the binding may hold; nil for plain shapes.
	Subtypes []string

	// Optional is set when the binding was reached through an outer join,
	// so its rows may be all null.
	Optional bool
}

// Bind returns the binding reading f.
func Bind(shape *model.EntityShape, f flatten.Flattened) *Binding {
	return &Binding{
		Shape:         shape,
		Table:         f.Table,
		Alias:         f.Alias(),
		Columns:       f.Columns,
		Discriminator: f.Discriminator,
		Subtypes:      f.Subtypes,
	}
}

// Property returns the expression reading the named property.
func (b *Binding) Property(name string) (relational.Expr, error) {
	e, ok := b.Columns[name]
	if !ok {
		return nil, qerr.Unresolved(name, "shape %q has no property %q", b.Shape.Name, name)
	}
	return e, nil
}

// Keys returns the key property expressions in key order.
func (b *Binding) Keys() []relational.Expr {
	out := make([]relational.Expr, 0, len(b.Shape.Key))
	for _, k := range b.Shape.Key {
		out = append(out, b.Columns[k])
	}
	return out
}

// Projection lists the columns of a full entity row: properties in
// canonical order, then the discriminator of a hierarchy.
func (b *Binding) Projection() []relational.Projection {
	out := make([]relational.Projection, 0, len(b.Shape.Properties)+1)
	for _, p := range b.Shape.Properties {
		out = append(out, relational.Projection{Expr: b.Columns[p.Name], Alias: p.Name})
	}
	if b.Discriminator != nil {
		out = append(out, relational.Projection{Expr: b.Discriminator, Alias: b.Shape.Discriminator()})
	}
	return out
}

// Outer returns a copy of b as seen through an outer join: every column
// may be null.
func (b *Binding) Outer() *Binding {
	cp := *b
	cp.Optional = true
	cp.Columns = make(map[string]relational.Expr, len(b.Columns))
	for name, e := range b.Columns {
		cp.Columns[name] = relational.WithNullability(e, relational.MaybeNull)
	}
	if b.Discriminator != nil {
		cp.Discriminator = relational.WithNullability(b.Discriminator, relational.MaybeNull)
	}
	return &cp
}

// Map returns a copy of b whose expressions are rewritten by fn.
func (b *Binding) Map(alias string, fn func(name string, e relational.Expr) relational.Expr) *Binding {
	cp := *b
	cp.Table = nil
	cp.Alias = alias
	cp.Columns = make(map[string]relational.Expr, len(b.Columns))
	for _, p := range b.Shape.Properties {
		cp.Columns[p.Name] = fn(p.Name, b.Columns[p.Name])
	}
	if b.Discriminator != nil {
		cp.Discriminator = fn(b.Shape.Discriminator(), b.Discriminator)
	}
	return &cp
}

type joinKey struct {
	rel           *model.Relationship
	fromPrincipal bool
	source        *Binding
}

// JoinSet records the navigation joins already added to one select. It is
// an immutable value; With returns an extended copy.
type JoinSet struct {
	joins map[joinKey]*Binding
}

// Lookup returns the target of an existing join.
func (s JoinSet) Lookup(rel *model.Relationship, fromPrincipal bool, source *Binding) (*Binding, bool) {
	b, ok := s.joins[joinKey{rel, fromPrincipal, source}]
	return b, ok
}

// With returns s extended with a join.
func (s JoinSet) With(rel *model.Relationship, fromPrincipal bool, source, target *Binding) JoinSet {
	joins := make(map[joinKey]*Binding, len(s.joins)+1)
	maps.Copy(joins, s.joins)
	joins[joinKey{rel, fromPrincipal, source}] = target
	return JoinSet{joins: joins}
}

// Merge returns s extended with every join of o.
func (s JoinSet) Merge(o JoinSet) JoinSet {
	if len(o.joins) == 0 {
		return s
	}
	joins := make(map[joinKey]*Binding, len(s.joins)+len(o.joins))
	maps.Copy(joins, s.joins)
	maps.Copy(joins, o.joins)
	return JoinSet{joins: joins}
}

// Len returns the number of recorded joins.
func (s JoinSet) Len() int { return len(s.joins) }
