package navigate

import (
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/relational"
)

// Resolved is a navigation looked up in the model.
type Resolved struct {
	Navigation   model.Navigation
	Relationship *model.Relationship
	Target       *model.EntityShape
}

// IsCollection reports whether the navigation reaches many rows.
func (r Resolved) IsCollection() bool {
	return r.Navigation.FromPrincipal && r.Relationship.DependentIsMany()
}

// Resolve looks up the navigation name of shape.
func Resolve(m *model.Model, shape *model.EntityShape, name string) (Resolved, error) {
	nav, ok := shape.Navigation(name)
	if !ok {
		return Resolved{}, qerr.Unresolved(name, "shape %q has no navigation %q", shape.Name, name)
	}
	rel, ok := m.Relationship(nav.Relationship)
	if !ok {
		return Resolved{}, qerr.Unresolved(nav.Relationship, "navigation %s.%s uses unknown relationship %q", shape.Name, name, nav.Relationship)
	}
	target, ok := m.Shape(rel.Target(nav.FromPrincipal))
	if !ok {
		return Resolved{}, qerr.Unresolved(rel.Target(nav.FromPrincipal), "relationship %q targets unknown shape %q", rel.Name, rel.Target(nav.FromPrincipal))
	}
	return Resolved{Navigation: nav, Relationship: rel, Target: target}, nil
}

// Expansion is the result of expanding a to-one navigation.
type Expansion struct {
	Target *Binding

	// Join is the join to add to the select. It is unset when Reused.
	Join   relational.Join
	Reused bool
}

// Expand joins the target of the to-one navigation name from src. A
// navigation already in joins reuses its target.
//
// The join is INNER when a target row always exists: a required
// dependent-to-principal navigation, or a principal-to-dependent one with
// cardinality one, from a source that is not itself optional. Every other
// navigation is a LEFT JOIN whose target columns become nullable.
func Expand(m *model.Model, src *Binding, name string, aliases relational.Aliases, joins JoinSet) (Expansion, relational.Aliases, JoinSet, error) {
	res, err := Resolve(m, src.Shape, name)
	if err != nil {
		return Expansion{}, aliases, joins, err
	}
	if res.IsCollection() {
		return Expansion{}, aliases, joins, qerr.Unsupported("Nav", "", "navigation %s.%s is a collection", src.Shape.Name, name)
	}
	fromPrincipal := res.Navigation.FromPrincipal
	if target, ok := joins.Lookup(res.Relationship, fromPrincipal, src); ok {
		return Expansion{Target: target, Reused: true}, aliases, joins, nil
	}

	f, aliases, err := flatten.Source(res.Target, res.Relationship.TargetSubtypes(fromPrincipal), aliases)
	if err != nil {
		return Expansion{}, aliases, joins, err
	}
	target := Bind(res.Target, f)
	on := KeyPredicate(res.Relationship, fromPrincipal, src, target)

	kind := relational.JoinLeft
	if !src.Optional && alwaysMatches(res.Relationship, fromPrincipal) {
		kind = relational.JoinInner
	} else {
		target = target.Outer()
	}
	joins = joins.With(res.Relationship, fromPrincipal, src, target)
	return Expansion{
		Target: target,
		Join:   relational.Join{Kind: kind, Table: f.Table, On: on},
	}, aliases, joins, nil
}

func alwaysMatches(rel *model.Relationship, fromPrincipal bool) bool {
	if fromPrincipal {
		return rel.Cardinality == model.CardinalityOne
	}
	return rel.Required
}

// KeyPredicate equates the relationship keys of src and target in key pair
// order, source side on the left. The equalities use object semantics so
// two null key parts match, unless the relationship treats null keys as
// distinct.
func KeyPredicate(rel *model.Relationship, fromPrincipal bool, src, target *Binding) relational.Expr {
	terms := make([]relational.Expr, 0, len(rel.Keys))
	for _, k := range rel.Keys {
		from, to := k.Dependent, k.Principal
		if fromPrincipal {
			from, to = k.Principal, k.Dependent
		}
		l, r := src.Columns[from], target.Columns[to]
		if rel.NullKeysDistinct {
			terms = append(terms, relational.SQLCompare(relational.OpEq, l, r))
		} else {
			terms = append(terms, relational.Compare(relational.OpEq, l, r))
		}
	}
	return relational.And(terms...)
}

// CollectionSource is the unplaced source of a to-many navigation.
type CollectionSource struct {
	Relationship *model.Relationship

	// Target reads the collection elements.
	Target *Binding

	// Correlation relates a parent row to its elements.
	Correlation relational.Expr

	// Parent and Child are the correlated key columns on either side.
	Parent []relational.Expr
	Child  []relational.Expr
}

// Collection resolves the to-many navigation name from src.
func Collection(m *model.Model, src *Binding, name string, aliases relational.Aliases) (CollectionSource, relational.Aliases, error) {
	res, err := Resolve(m, src.Shape, name)
	if err != nil {
		return CollectionSource{}, aliases, err
	}
	if !res.IsCollection() {
		return CollectionSource{}, aliases, qerr.Unsupported("Nav", "", "navigation %s.%s is not a collection", src.Shape.Name, name)
	}
	return Related(res, src, nil, aliases)
}

// Related reads the rows of res.Target related to src, further restricted
// to subtypes.
func Related(res Resolved, src *Binding, subtypes []string, aliases relational.Aliases) (CollectionSource, relational.Aliases, error) {
	fromPrincipal := res.Navigation.FromPrincipal
	f, aliases, err := flatten.Source(res.Target, flatten.Restrict(res.Relationship.TargetSubtypes(fromPrincipal), subtypes), aliases)
	if err != nil {
		return CollectionSource{}, aliases, err
	}
	target := Bind(res.Target, f)
	cs := CollectionSource{
		Relationship: res.Relationship,
		Target:       target,
		Correlation:  KeyPredicate(res.Relationship, fromPrincipal, src, target),
	}
	for _, k := range res.Relationship.Keys {
		from, to := k.Dependent, k.Principal
		if fromPrincipal {
			from, to = k.Principal, k.Dependent
		}
		cs.Parent = append(cs.Parent, src.Columns[from])
		cs.Child = append(cs.Child, target.Columns[to])
	}
	return cs, aliases, nil
}
