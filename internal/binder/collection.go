package binder

import (
	"maps"
	"slices"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/planner"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
)

// collection places the nested collection q, projected as name, into f.
func (b *binder) collection(f frame, name string, q queryir.Query, path string) (*collection, frame, error) {
	shape := planner.Classify(q)
	strategy, err := planner.Choose(shape, b.d)
	if err != nil {
		return nil, f, qerr.At(err, path)
	}
	inner, err := b.query(q, &f, f.aliases, path)
	if err != nil {
		return nil, f, err
	}
	f.aliases = inner.aliases
	if inner.cur.group != nil {
		return nil, f, qerr.Unsupported("GroupBy", path, "a grouping must be projected before it is nested")
	}
	if strategy == planner.StrategyJoin && readsParent(inner) {
		if err := b.d.Require(dialect.CapLateral, "a collection navigating from its parent"); err != nil {
			return nil, f, qerr.At(err, path)
		}
		strategy = planner.StrategyLateral
	}

	var c *collection
	switch strategy {
	case planner.StrategyJoin:
		c, f, err = b.joinCollection(f, inner, path)
	case planner.StrategyLateral:
		c, f, err = b.lateralCollection(f, inner, path)
	default:
		c, f, err = b.rowNumberCollection(f, inner, shape, path)
	}
	if err != nil {
		return nil, f, err
	}
	c.name = name
	c.strategy = strategy
	f.collections = append(slices.Clip(f.collections), c)
	return c, f, nil
}

// readsParent reports whether the element select of inner reads the
// enclosing select outside its filter, as a navigation from a parent
// variable does. Such a select cannot become a plain derived table.
func readsParent(inner frame) bool {
	if len(inner.sel.Joins) == 0 {
		return false
	}
	proj, err := projection(inner.cur, inner.name)
	if err != nil {
		return false
	}
	sel := inner.sel.Clone()
	sel.Where = nil
	sel.Projection = proj
	return len(relational.OuterColumns(sel)) > 0
}

// joinCollection left-joins a plain filtered collection.
func (b *binder) joinCollection(f frame, inner frame, path string) (*collection, frame, error) {
	proj, err := projection(inner.cur, inner.name)
	if err != nil {
		return nil, f, qerr.At(err, path)
	}
	on := relational.And(inner.corr, inner.sel.Where)
	c := &collection{}
	if len(inner.sel.Joins) == 0 {
		for _, p := range proj {
			c.columns = append(c.columns, relational.Projection{Expr: relational.WithNullability(p.Expr, relational.MaybeNull), Alias: p.Alias})
		}
		for _, o := range inner.sel.OrderBy {
			c.order = append(c.order, relational.Ordering{Expr: relational.WithNullability(o.Expr, relational.MaybeNull), Desc: o.Desc})
		}
		for _, id := range inner.sel.Identifiers {
			c.ids = append(c.ids, relational.WithNullability(id, relational.MaybeNull))
		}
		return c, f.addJoin(relational.Join{Kind: relational.JoinLeft, Table: inner.sel.From, On: on}), nil
	}

	// The element reads navigation joins of its own: keep them inside a
	// derived table so the outer join cannot drop parents.
	sel := inner.sel.Clone()
	sel.Where = nil
	sel.OrderBy = nil
	sel.Identifiers = nil
	sel.Projection = uniqueAliases(proj)
	alias, aliases := f.aliases.Next("t")
	f.aliases = aliases
	l := relational.Pushdown(sel, alias)
	defined := relational.DefinedAliases(sel)
	on = l.Remap(on)
	c.columns = liftedColumns(alias, sel.Projection, proj)
	c.order = liftOrder(l, defined, inner.sel.OrderBy)
	c.ids = liftIDs(l, defined, inner.sel.Identifiers)
	return c, f.addJoin(relational.Join{Kind: relational.JoinLeft, Table: l.Table(), On: on}), nil
}

// lateralCollection joins the composed collection as a LATERAL derived
// table.
func (b *binder) lateralCollection(f frame, inner frame, path string) (*collection, frame, error) {
	sel, _, err := b.finish(inner)
	if err != nil {
		return nil, f, qerr.At(err, path)
	}
	declared := slices.Clone(sel.Projection)
	order := sel.OrderBy
	if sel.Limit == nil && sel.Offset == nil {
		sel.OrderBy = nil
	}
	sel.Projection = uniqueAliases(sel.Projection)
	alias, aliases := f.aliases.Next("t")
	f.aliases = aliases
	l := relational.Pushdown(sel, alias)
	defined := relational.DefinedAliases(sel)
	c := &collection{
		columns: liftedColumns(alias, sel.Projection[:len(declared)], declared),
		order:   liftOrder(l, defined, order),
		ids:     liftIDs(l, defined, sel.Identifiers),
	}
	return c, f.addJoin(relational.Join{Kind: relational.JoinLeftLateral, Table: l.Table()}), nil
}

// rowNumberCollection numbers the elements per parent in a derived table
// and keeps the page with a join condition on the row number.
func (b *binder) rowNumberCollection(f frame, inner frame, shape planner.Shape, path string) (*collection, frame, error) {
	sel := inner.sel.Clone()
	if inner.corr == nil || inner.pushed || len(inner.partition) == 0 || len(relational.OuterColumns(sel)) > 0 {
		return nil, f, qerr.At(b.d.Require(dialect.CapLateral, "collection with "+shape.String()), path)
	}
	proj, err := projection(inner.cur, inner.name)
	if err != nil {
		return nil, f, qerr.At(err, path)
	}
	rowOrder := relational.AppendOrderings(slices.Clone(sel.OrderBy), sel.Identifiers...)
	declared := proj
	proj = uniqueAliases(append(slices.Clip(proj), relational.Projection{
		Expr:  relational.RowNumber{PartitionBy: inner.partition, OrderBy: rowOrder},
		Alias: "row",
	}))
	rowAlias := proj[len(proj)-1].Alias
	offset, limit := sel.Offset, sel.Limit
	order := sel.OrderBy
	sel.Projection = proj
	sel.OrderBy, sel.Offset, sel.Limit = nil, nil, nil
	sel.Identifiers = nil

	alias, aliases := f.aliases.Next("t")
	f.aliases = aliases
	l := relational.Pushdown(sel, alias)
	defined := relational.DefinedAliases(sel)
	rn := relational.Column{Table: alias, Name: rowAlias, ColType: model.Int64}
	on := relational.And(l.Remap(inner.corr), planner.RowBounds(rn, offset, limit))
	c := &collection{
		columns: liftedColumns(alias, proj[:len(declared)], declared),
		order:   liftOrder(l, defined, order),
		ids:     liftIDs(l, defined, inner.sel.Identifiers),
	}
	return c, f.addJoin(relational.Join{Kind: relational.JoinLeft, Table: l.Table(), On: on}), nil
}

// liftedColumns reads the projection of a derived table from outside,
// keeping the declared aliases for the outer projection.
func liftedColumns(alias string, inner, declared []relational.Projection) []relational.Projection {
	out := make([]relational.Projection, len(inner))
	for i, p := range inner {
		out[i] = relational.Projection{
			Expr:  relational.Column{Table: alias, Name: p.Alias, ColType: p.Expr.Type(), Null: relational.MaybeNull},
			Alias: declared[i].Alias,
		}
	}
	return out
}

func liftOrder(l *relational.Lifted, defined map[string]bool, os []relational.Ordering) []relational.Ordering {
	var out []relational.Ordering
	for _, o := range os {
		out = append(out, relational.Ordering{Expr: outer(liftExpr(l, defined, o.Expr, "")), Desc: o.Desc})
	}
	return out
}

func liftIDs(l *relational.Lifted, defined map[string]bool, ids []relational.Expr) []relational.Expr {
	var out []relational.Expr
	for _, id := range ids {
		out = append(out, outer(liftExpr(l, defined, id, "")))
	}
	return out
}

func outer(e relational.Expr) relational.Expr {
	return relational.WithNullability(e, relational.MaybeNull)
}

// aggregate reduces a source to a scalar subquery, or inline when the
// source is the current group.
func (b *binder) aggregate(f frame, a queryir.Aggregate) (relational.Expr, frame, error) {
	if overGroup(a.Source) {
		return b.groupAggregate(f, a)
	}
	inner, err := b.subquery(f, a.Source, a.Op != queryir.First)
	if err != nil {
		return nil, f, err
	}
	f.aliases = inner.aliases
	if inner.cur.group != nil {
		return nil, f, qerr.Unsupported("Aggregate", "", "a grouping must be projected before it is aggregated")
	}
	var arg relational.Expr
	if a.Selector != nil {
		var v value
		if v, inner, err = b.expr(inner, a.Selector); err != nil {
			return nil, f, err
		}
		f.aliases = inner.aliases
		arg = v.scalar
	} else if inner.cur.scalar != nil {
		arg = inner.cur.scalar
	}
	if arg == nil && (a.Op != queryir.Count || a.Distinct) {
		return nil, f, qerr.Unsupported("Aggregate", "", "%s needs a scalar to reduce", a.Op)
	}

	valueNull := relational.NeverNull
	if arg != nil {
		valueNull = arg.Nullability()
	}
	sel := inner.sel.Clone()
	sel.Where = relational.And(inner.corr, sel.Where)
	var t model.Type
	if a.Op == queryir.First {
		t = arg.Type()
		sel.Projection = []relational.Projection{{Expr: arg}}
		sel.Limit = relational.Int(1)
	} else {
		if a.Op == queryir.Count && !a.Distinct {
			arg = nil
		}
		argType := model.Int64
		if arg != nil {
			argType = arg.Type()
		}
		t = planner.AggregateType(a.Op, argType)
		agg := relational.Aggregate{Func: planner.AggregateFunc(a.Op), Arg: arg, Distinct: a.Distinct, ColType: t, Null: relational.MaybeNull}
		if a.Op == queryir.Count {
			agg.Null = relational.NeverNull
		}
		sel.Projection = []relational.Projection{{Expr: agg}}
		sel.OrderBy = nil
		sel.Identifiers = nil
	}
	sub := relational.Subquery{Plan: sel, ColType: t, Null: relational.MaybeNull, Correlation: relational.OuterColumns(sel)}
	return planner.WithDefault(sub, a.Op, a.Default, valueNull), f, nil
}

// subquery binds q inside f. When reduce is set, a paged, distinct or
// grouped source becomes a derived table, since an aggregate would
// otherwise ignore the page or yield one row per group. Otherwise the
// caller pages the result itself, so only a distinct or limited source is
// pushed down.
func (b *binder) subquery(f frame, q queryir.Query, reduce bool) (frame, error) {
	inner, err := b.query(q, &f, f.aliases, opName(q))
	if err != nil {
		return frame{}, err
	}
	if len(inner.collections) > 0 {
		return frame{}, qerr.Unsupported(opName(q), "", "a collection cannot be nested in a scalar subquery")
	}
	fl := inner.flags()
	grouped := len(inner.sel.GroupBy) > 0 && inner.cur.group == nil
	push := fl.Limit || fl.Distinct
	if reduce {
		push = push || fl.Offset || grouped
	}
	if !push {
		return inner, nil
	}
	if inner, err = b.pushdown(inner, opName(q)); err != nil {
		return frame{}, err
	}
	if d, ok := inner.sel.From.(relational.Derived); ok && len(relational.OuterColumns(d.Plan)) > 0 {
		if err := b.d.Require(dialect.CapLateral, "reducing a correlated page"); err != nil {
			return frame{}, err
		}
	}
	return inner, nil
}

// overGroup reports whether q reads the elements of a group.
func overGroup(q queryir.Query) bool {
	for {
		switch n := q.(type) {
		case queryir.GroupElements:
			return true
		case queryir.Filter:
			q = n.Input
		case queryir.Project:
			q = n.Input
		case queryir.Distinct:
			q = n.Input
		default:
			return false
		}
	}
}

// groupAggregate reduces the elements of the current group inline. Filters
// become CASE arms so the grouped select is shared.
func (b *binder) groupAggregate(f frame, a queryir.Aggregate) (relational.Expr, frame, error) {
	if a.Op == queryir.First {
		return nil, f, qerr.Unsupported("Aggregate", "", "the first element of a group cannot be read")
	}
	scope, conds, distinct, err := b.groupElements(f, a.Source)
	if err != nil {
		return nil, f, err
	}
	var arg relational.Expr
	if a.Selector != nil {
		var v value
		if v, scope, err = b.expr(scope, a.Selector); err != nil {
			return nil, f, err
		}
		arg = v.scalar
	} else if scope.cur.scalar != nil {
		arg = scope.cur.scalar
	}
	f.sel, f.joins, f.aliases = scope.sel, scope.joins, scope.aliases
	if arg == nil && (a.Op != queryir.Count || distinct || a.Distinct) {
		return nil, f, qerr.Unsupported("Aggregate", "", "%s needs a scalar to reduce", a.Op)
	}
	if a.Op == queryir.Count && !distinct && !a.Distinct {
		arg = nil
	}
	if len(conds) > 0 {
		then := arg
		if then == nil {
			then = relational.Int(1)
		}
		arg = relational.Case{
			Whens:   []relational.When{{Test: relational.And(conds...), Then: then}},
			ColType: then.Type(),
			Null:    relational.MaybeNull,
		}
	}
	argType := model.Int64
	if arg != nil {
		argType = arg.Type()
	}
	t := planner.AggregateType(a.Op, argType)
	agg := relational.Aggregate{Func: planner.AggregateFunc(a.Op), Arg: arg, Distinct: distinct || a.Distinct, ColType: t, Null: relational.MaybeNull}
	switch {
	case a.Op == queryir.Count:
		agg.Null = relational.NeverNull
		return agg, f, nil
	case arg.Nullability() == relational.NeverNull:
		// A group has at least one row.
		agg.Null = relational.NeverNull
		return agg, f, nil
	}
	return planner.WithDefault(agg, a.Op, a.Default, arg.Nullability()), f, nil
}

// groupElements binds the element chain of a group aggregate in the scope
// of the grouped select.
func (b *binder) groupElements(f frame, q queryir.Query) (frame, []relational.Expr, bool, error) {
	switch n := q.(type) {
	case queryir.GroupElements:
		g, ok := f.lookup(n.Group)
		if !ok || g.group == nil {
			return f, nil, false, qerr.Unresolved(n.Group, "unknown group %q", n.Group)
		}
		vars := maps.Clone(f.vars)
		maps.Copy(vars, g.group.elemVars)
		vars[n.As] = g.group.elem
		scope := f.scoped(vars)
		scope.cur, scope.name = g.group.elem, n.As
		return scope, nil, false, nil
	case queryir.Filter:
		scope, conds, distinct, err := b.groupElements(f, n.Input)
		if err != nil {
			return f, nil, false, err
		}
		pred, scope, err := b.scalar(scope, n.Predicate)
		if err != nil {
			return f, nil, false, err
		}
		return scope, append(conds, pred), distinct, nil
	case queryir.Project:
		scope, conds, distinct, err := b.groupElements(f, n.Input)
		if err != nil {
			return f, nil, false, err
		}
		r := newRow()
		for _, fl := range n.Fields {
			var v value
			if v, scope, err = b.expr(scope, fl.Value); err != nil {
				return f, nil, false, err
			}
			r.add(fl.Name, v)
		}
		cur := value{row: r}
		if len(n.Fields) == 1 {
			cur = r.fields[n.Fields[0].Name]
		}
		scope = scope.scoped(map[string]value{}).yield(n.As, cur)
		return scope, conds, distinct, nil
	case queryir.Distinct:
		scope, conds, _, err := b.groupElements(f, n.Input)
		return scope, conds, true, err
	}
	return f, nil, false, qerr.Unsupported(opName(q), "", "%s cannot read group elements", opName(q))
}

func (b *binder) exists(f frame, e queryir.Exists) (relational.Expr, frame, error) {
	inner, err := b.query(e.Source, &f, f.aliases, opName(e.Source))
	if err != nil {
		return nil, f, err
	}
	if len(inner.collections) > 0 {
		return nil, f, qerr.Unsupported("Exists", "", "a collection cannot be nested in an existence test")
	}
	f.aliases = inner.aliases
	sel := inner.sel.Clone()
	sel.Where = relational.And(inner.corr, sel.Where)
	sel.Projection = nil
	sel.Identifiers = nil
	if sel.Limit == nil && sel.Offset == nil {
		sel.OrderBy = nil
	}
	return relational.Exists{Plan: sel}, f, nil
}

func (b *binder) contains(f frame, c queryir.Contains) (relational.Expr, frame, error) {
	if c.Source != nil {
		return b.containsQuery(f, c)
	}
	item, f, err := b.scalar(f, c.Item)
	if err != nil {
		return nil, f, err
	}
	switch coll := c.Collection.(type) {
	case queryir.Const:
		arr, ok := coll.Value.(ir.IRArray)
		if !ok {
			return nil, f, qerr.Unsupported("Contains", "", "a list constant is required, got %T", coll.Value)
		}
		in := relational.In{Item: item}
		for _, v := range arr {
			if ir.IsNull(v) {
				in.HasNull = true
				continue
			}
			in.Values = append(in.Values, relational.Literal{Value: v, ColType: item.Type()})
		}
		return in, f, nil
	case queryir.Param:
		arr, ok := coll.Value.(ir.IRArray)
		if !ok {
			return nil, f, qerr.Unsupported("Contains", "", "parameter %q must be a list", coll.Name)
		}
		hasNull := slices.ContainsFunc(arr, ir.IsNull)
		if b.d.Supports(dialect.CapJSONTable) {
			src := relational.Parameter{Name: coll.Name, Value: arr, ColType: model.ArrayOf(item.Type()), Element: -1, JSON: true}
			in, f := b.jsonIn(f, item, src, item.Type())
			in.HasNull = hasNull
			return in, f, nil
		}
		in := relational.In{Item: item, HasNull: hasNull}
		for i, v := range arr {
			if ir.IsNull(v) {
				continue
			}
			in.Values = append(in.Values, relational.Parameter{Name: coll.Name, Value: arr, ColType: item.Type(), Element: i})
		}
		return in, f, nil
	}
	if err := b.d.Require(dialect.CapJSONTable, "membership in a primitive collection"); err != nil {
		return nil, f, err
	}
	src, elem, f, err := b.jsonSource(f, c.Collection)
	if err != nil {
		return nil, f, err
	}
	in, f := b.jsonIn(f, item, src, elem)
	return in, f, nil
}

// jsonIn tests item against the elements of a JSON document.
func (b *binder) jsonIn(f frame, item, src relational.Expr, elem model.Type) (relational.In, frame) {
	alias, aliases := f.aliases.Next("json")
	f.aliases = aliases
	sel := &relational.Select{
		Projection: []relational.Projection{{Expr: relational.Column{Table: alias, Name: "value", ColType: elem, Null: relational.MaybeNull}}},
		From:       jsonTable(src, elem, alias),
	}
	return relational.In{Item: item, Subquery: sel}, f
}

func (b *binder) containsQuery(f frame, c queryir.Contains) (relational.Expr, frame, error) {
	item, f, err := b.scalar(f, c.Item)
	if err != nil {
		return nil, f, err
	}
	inner, err := b.subquery(f, c.Source, true)
	if err != nil {
		return nil, f, err
	}
	f.aliases = inner.aliases
	proj, err := projection(inner.cur, inner.name)
	if err != nil {
		return nil, f, err
	}
	if len(proj) != 1 {
		return nil, f, qerr.Unsupported("Contains", "", "the source must return one column, got %d", len(proj))
	}
	sel := inner.sel.Clone()
	sel.Where = relational.And(inner.corr, sel.Where)
	sel.Projection = []relational.Projection{{Expr: proj[0].Expr}}
	sel.OrderBy = nil
	sel.Identifiers = nil
	if untyped(c.Item) {
		item = retype(item, proj[0].Expr.Type())
	}
	return relational.In{Item: item, Subquery: sel}, f, nil
}
