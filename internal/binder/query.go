package binder

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/navigate"
	"github.com/roach88/querylift/internal/planner"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
)

// query binds q. Variables not bound by q resolve in outer.
func (b *binder) query(q queryir.Query, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	switch n := q.(type) {
	case queryir.Source:
		return b.source(n, nil, outer, aliases, path)
	case queryir.NavSource:
		return b.navSource(n, nil, outer, aliases, path)
	case queryir.OfType:
		return b.ofType(n, outer, aliases, path)
	case queryir.Values:
		return b.values(n, outer, aliases, path)
	case queryir.GroupElements:
		return frame{}, qerr.Unsupported("GroupElements", path, "group elements can only be aggregated")
	case queryir.Filter:
		return b.filter(n, outer, aliases, path)
	case queryir.Project:
		return b.project(n, outer, aliases, path)
	case queryir.OrderBy:
		return b.orderBy(n, outer, aliases, path)
	case queryir.Paginate:
		return b.paginate(n, outer, aliases, path)
	case queryir.Distinct:
		return b.distinct(n, outer, aliases, path)
	case queryir.GroupBy:
		return b.groupBy(n, outer, aliases, path)
	case queryir.Join:
		return b.join(n, outer, aliases, path)
	case queryir.SetOp:
		return b.setOp(n, outer, aliases, path)
	}
	return frame{}, qerr.Unsupported(opName(q), path, "unknown query operator %T", q)
}

func (b *binder) source(n queryir.Source, subtypes []string, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	shape, ok := b.m.Shape(n.Entity)
	if !ok {
		return frame{}, qerr.At(qerr.Unresolved(n.Entity, "unknown entity shape %q", n.Entity), path)
	}
	fl, aliases, err := flatten.Source(shape, subtypes, aliases)
	if err != nil {
		return frame{}, qerr.At(err, path)
	}
	ent := navigate.Bind(shape, fl)
	f := newFrame(outer, aliases)
	f.sel.From = fl.Table
	f.sel.Identifiers = ent.Keys()
	return f.yield(n.As, value{entity: ent}), nil
}

func (b *binder) navSource(n queryir.NavSource, subtypes []string, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	scope := newFrame(outer, aliases)
	v, scope, err := b.expr(scope, n.Of)
	if err != nil {
		return frame{}, qerr.At(err, path+".Of")
	}
	if v.entity == nil {
		return frame{}, qerr.Unsupported("NavSource", path, "navigation source must start at an entity, not a %s", v.kind())
	}
	if len(scope.sel.Joins) > 0 {
		return frame{}, qerr.Unsupported("NavSource", path, "navigation source must start at a range variable")
	}
	res, err := navigate.Resolve(b.m, v.entity.Shape, n.Navigation)
	if err != nil {
		return frame{}, qerr.At(err, path)
	}
	if !res.IsCollection() {
		return frame{}, qerr.Unsupported("NavSource", path, "navigation %s.%s is not a collection", v.entity.Shape.Name, n.Navigation)
	}
	cs, aliases, err := navigate.Related(res, v.entity, subtypes, scope.aliases)
	if err != nil {
		return frame{}, qerr.At(err, path)
	}
	f := newFrame(outer, aliases)
	f.sel.From = cs.Target.Table
	f.sel.Identifiers = cs.Target.Keys()
	f.corr = cs.Correlation
	f.partition = cs.Child
	return f.yield(n.As, value{entity: cs.Target}), nil
}

func (b *binder) ofType(n queryir.OfType, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	switch in := n.Input.(type) {
	case queryir.Source:
		if shape, ok := b.m.Shape(in.Entity); ok && !shape.IsHierarchy() {
			return frame{}, qerr.Unsupported("OfType", path, "shape %q has no subtypes", in.Entity)
		}
		return b.source(in, n.Subtypes, outer, aliases, path+".Input")
	case queryir.NavSource:
		return b.navSource(in, n.Subtypes, outer, aliases, path+".Input")
	}
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	if f.cur.entity == nil {
		return frame{}, qerr.Unsupported("OfType", path, "only entities can be filtered by type, not a %s", f.cur.kind())
	}
	if f, err = b.prepare(f, planner.OpFilter, path); err != nil {
		return frame{}, err
	}
	pred, err := typeIs(f.cur.entity, n.Subtypes)
	if err != nil {
		return frame{}, qerr.At(err, path)
	}
	return f.edit(func(s *relational.Select) { s.Where = relational.And(s.Where, pred) }), nil
}

// typeIs tests the discriminator of ent against subtypes.
func typeIs(ent *navigate.Binding, subtypes []string) (relational.Expr, error) {
	if ent.Discriminator == nil {
		return nil, qerr.Unsupported("TypeIs", "", "shape %q has no subtypes", ent.Shape.Name)
	}
	selected, err := flatten.Select(ent.Shape, subtypes)
	if err != nil {
		return nil, err
	}
	var lits []relational.Expr
	for _, st := range selected {
		if slices.Contains(ent.Subtypes, st.Name) {
			lits = append(lits, relational.Text(st.Discriminator))
		}
	}
	if lit, ok := ent.Discriminator.(relational.Literal); ok {
		// A single subtype table: the answer is known up front.
		match := slices.ContainsFunc(lits, func(e relational.Expr) bool { return relational.Equal(e, lit) })
		if match && ent.Optional {
			return relational.IsNotNull(ent.Keys()[0]), nil
		}
		return relational.Bool(match), nil
	}
	switch len(lits) {
	case 0:
		return relational.False, nil
	case 1:
		return relational.Compare(relational.OpEq, ent.Discriminator, lits[0]), nil
	}
	return relational.In{Item: ent.Discriminator, Values: lits}, nil
}

func (b *binder) values(n queryir.Values, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	if err := b.d.Require(dialect.CapJSONTable, "querying a primitive collection"); err != nil {
		return frame{}, qerr.At(err, path)
	}
	scope := newFrame(outer, aliases)
	src, elem, scope, err := b.jsonSource(scope, n.Collection)
	if err != nil {
		return frame{}, qerr.At(err, path+".Collection")
	}
	alias, aliases := scope.aliases.Next("json")
	f := newFrame(outer, aliases)
	f.sel.From = jsonTable(src, elem, alias)
	f.sel.Identifiers = []relational.Expr{relational.Column{Table: alias, Name: "key", ColType: model.Int64}}
	el := relational.Column{Table: alias, Name: "value", ColType: elem, Null: relational.MaybeNull}
	return f.yield(n.As, scalarValue(el)), nil
}

// jsonSource binds a primitive collection operand as a JSON document.
func (b *binder) jsonSource(f frame, e queryir.Expr) (relational.Expr, model.Type, frame, error) {
	switch n := e.(type) {
	case queryir.Const:
		arr, ok := n.Value.(ir.IRArray)
		if !ok {
			return nil, model.Type{}, f, qerr.Unsupported("Const", "", "a list constant is required, got %T", n.Value)
		}
		elem := elemType(n.Type, arr)
		return relational.Literal{Value: arr, ColType: model.ArrayOf(elem)}, elem, f, nil
	case queryir.Param:
		arr, ok := n.Value.(ir.IRArray)
		if !ok {
			return nil, model.Type{}, f, qerr.Unsupported("Param", "", "parameter %q must be a list", n.Name)
		}
		elem := elemType(n.Type, arr)
		return relational.Parameter{Name: n.Name, Value: arr, ColType: model.ArrayOf(elem), Element: -1, JSON: true}, elem, f, nil
	}
	x, f, err := b.scalar(f, e)
	if err != nil {
		return nil, model.Type{}, f, err
	}
	t := x.Type()
	if t.Kind != model.KindArray || t.Elem == nil {
		return nil, model.Type{}, f, qerr.Unsupported(opName(e), "", "a primitive collection is required, got %s", t)
	}
	return x, *t.Elem, f, nil
}

func jsonTable(src relational.Expr, elem model.Type, alias string) relational.JSONTable {
	return relational.JSONTable{
		Source: src,
		Path:   "$[*]",
		Columns: []relational.JSONColumn{
			{Name: "key", Type: model.Int64, Ordinality: true},
			{Name: "value", Type: elem, Path: "$"},
		},
		Alias: alias,
	}
}

func (b *binder) filter(n queryir.Filter, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	if f, err = b.prepare(f, planner.OpFilter, path); err != nil {
		return frame{}, err
	}
	pred, f, err := b.scalar(f, n.Predicate)
	if err != nil {
		return frame{}, qerr.At(err, path+".Predicate")
	}
	return f.edit(func(s *relational.Select) {
		if len(s.GroupBy) > 0 {
			s.Having = relational.And(s.Having, pred)
		} else {
			s.Where = relational.And(s.Where, pred)
		}
	}), nil
}

func (b *binder) project(n queryir.Project, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	nested := slices.ContainsFunc(n.Fields, func(fl queryir.Field) bool {
		_, ok := fl.Value.(queryir.Subquery)
		return ok
	})
	if nested {
		if f, err = b.prepare(f, planner.OpCollection, path); err != nil {
			return frame{}, err
		}
	}
	if f, err = b.prepare(f, planner.OpProject, path); err != nil {
		return frame{}, err
	}
	r := newRow()
	for i, fl := range n.Fields {
		fpath := fmt.Sprintf("%s.Fields[%d].Value", path, i)
		if sq, ok := fl.Value.(queryir.Subquery); ok {
			var c *collection
			if c, f, err = b.collection(f, fl.Name, sq.Query, fpath); err != nil {
				return frame{}, err
			}
			r.add(fl.Name, value{coll: c})
			continue
		}
		var v value
		if v, f, err = b.expr(f, fl.Value); err != nil {
			return frame{}, qerr.At(err, fpath)
		}
		r.add(fl.Name, v)
	}
	return f.scoped(map[string]value{}).yield(n.As, value{row: r}), nil
}

func (b *binder) orderBy(n queryir.OrderBy, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	if f, err = b.prepare(f, planner.OpOrder, path); err != nil {
		return frame{}, err
	}
	var keys []relational.Ordering
	for i, k := range n.Keys {
		var v value
		if v, f, err = b.expr(f, k.Key); err != nil {
			return frame{}, qerr.At(err, fmt.Sprintf("%s.Keys[%d]", path, i))
		}
		proj, err := projection(v, "")
		if err != nil {
			return frame{}, qerr.At(err, path)
		}
		if v.entity != nil {
			proj = proj[:0]
			for _, key := range v.entity.Keys() {
				proj = append(proj, relational.Projection{Expr: key})
			}
		}
		for _, p := range proj {
			if f.sel.Distinct && !slices.ContainsFunc(f.sel.Identifiers, func(id relational.Expr) bool { return relational.Matches(id, p.Expr) }) {
				return frame{}, qerr.Unsupported("OrderBy", path, "a distinct query can only be ordered by the values it returns")
			}
			keys = append(keys, relational.Ordering{Expr: p.Expr, Desc: k.Desc})
		}
	}
	return f.edit(func(s *relational.Select) { s.OrderBy = keys }), nil
}

func (b *binder) paginate(n queryir.Paginate, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	if f, err = b.prepare(f, planner.OpPaginate, path); err != nil {
		return frame{}, err
	}
	offset, limit := pageOperand(n.Offset), pageOperand(n.Limit)
	return f.edit(func(s *relational.Select) {
		s.Offset = offset
		s.Limit = limit
	}), nil
}

// pageOperand binds a validated OFFSET or LIMIT operand.
func pageOperand(e queryir.Expr) relational.Expr {
	switch n := e.(type) {
	case queryir.Const:
		return relational.Int(int64(n.Value.(ir.IRInt)))
	case queryir.Param:
		return relational.Parameter{Name: n.Name, Value: n.Value, ColType: model.Int64, Element: -1}
	}
	return nil
}

func (b *binder) distinct(n queryir.Distinct, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	if f, err = b.prepare(f, planner.OpDistinct, path); err != nil {
		return frame{}, err
	}
	proj, err := projection(f.cur, f.name)
	if err != nil {
		return frame{}, qerr.At(err, path)
	}
	ids := make([]relational.Expr, len(proj))
	for i, p := range proj {
		ids[i] = p.Expr
	}
	return f.edit(func(s *relational.Select) {
		s.Distinct = true
		s.OrderBy = nil
		s.Identifiers = ids
	}), nil
}

func (b *binder) groupBy(n queryir.GroupBy, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	f, err := b.query(n.Input, outer, aliases, path+".Input")
	if err != nil {
		return frame{}, err
	}
	if f, err = b.prepare(f, planner.OpGroup, path); err != nil {
		return frame{}, err
	}
	keys := newRow()
	var exprs []relational.Expr
	for i, k := range n.Keys {
		var v value
		if v, f, err = b.expr(f, k.Value); err != nil {
			return frame{}, qerr.At(err, fmt.Sprintf("%s.Keys[%d].Value", path, i))
		}
		if v.scalar == nil {
			return frame{}, qerr.Unsupported("GroupBy", path, "grouping key %q must be a scalar, not a %s", k.Name, v.kind())
		}
		keys.add(k.Name, v)
		exprs = append(exprs, v.scalar)
	}
	g := &group{keys: keys, elem: f.cur, elemVars: f.vars}
	f = f.edit(func(s *relational.Select) {
		s.GroupBy = exprs
		s.Identifiers = exprs
		s.OrderBy = nil
	})
	return f.scoped(map[string]value{}).yield(n.As, value{group: g}), nil
}

var joinKinds = map[queryir.JoinKind][2]relational.JoinKind{
	queryir.JoinInner: {relational.JoinInner, relational.JoinInnerLateral},
	queryir.JoinLeft:  {relational.JoinLeft, relational.JoinLeftLateral},
	queryir.JoinCross: {relational.JoinCross, relational.JoinInnerLateral},
}

func (b *binder) join(n queryir.Join, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	left, err := b.query(n.Left, outer, aliases, path+".Left")
	if err != nil {
		return frame{}, err
	}
	if left, err = b.prepare(left, planner.OpJoin, path); err != nil {
		return frame{}, err
	}
	right, err := b.query(n.Right, &left, left.aliases, path+".Right")
	if err != nil {
		return frame{}, err
	}
	if len(right.collections) > 0 || right.cur.group != nil {
		return frame{}, qerr.Unsupported("Join", path, "the right side of a join must yield rows, not a %s", right.cur.kind())
	}
	rs := right.sel
	merge := rs.Limit == nil && rs.Offset == nil && !rs.Distinct && len(rs.GroupBy) == 0 && !right.pushed &&
		(n.Kind != queryir.JoinLeft || len(rs.Joins) == 0)
	if !merge {
		if right, err = b.pushdown(right, path+".Right"); err != nil {
			return frame{}, err
		}
		rs = right.sel
	}
	lateral := false
	if d, ok := rs.From.(relational.Derived); ok && len(relational.OuterColumns(d.Plan)) > 0 {
		if err := b.d.Require(dialect.CapLateral, "a correlated join"); err != nil {
			return frame{}, qerr.At(err, path)
		}
		lateral = true
	}

	rightCur, rightVars, rightIDs := right.cur, right.vars, rs.Identifiers
	if n.Kind == queryir.JoinLeft {
		m := newNullable()
		rightCur = m.value(right.cur)
		rightVars = make(map[string]value, len(right.vars))
		for name, v := range right.vars {
			rightVars[name] = m.value(v)
		}
		rightIDs = nil
		for _, id := range rs.Identifiers {
			rightIDs = append(rightIDs, relational.WithNullability(id, relational.MaybeNull))
		}
	}
	f := left
	f.aliases = right.aliases
	f.joins = f.joins.Merge(right.joins)
	for _, name := range slices.Sorted(maps.Keys(rightVars)) {
		f = f.bind(name, rightVars[name])
	}

	var on relational.Expr
	before := len(f.sel.Joins)
	if n.On != nil {
		if on, f, err = b.scalar(f, n.On); err != nil {
			return frame{}, qerr.At(err, path+".On")
		}
	}
	added := slices.Clone(f.sel.Joins[before:])
	if len(added) > 0 && n.Kind == queryir.JoinLeft {
		return frame{}, qerr.Unsupported("Join", path+".On", "a left join condition cannot navigate")
	}

	kind := joinKinds[n.Kind][0]
	if lateral {
		kind = joinKinds[n.Kind][1]
	}
	j := relational.Join{Kind: kind, Table: rs.From}
	var where relational.Expr
	switch {
	case n.Kind == queryir.JoinLeft:
		j.On = relational.And(right.corr, rs.Where, on)
	case len(added) > 0:
		j.On = condition(right.corr)
		where = relational.And(rs.Where, on)
	default:
		j.On = condition(relational.And(right.corr, on))
		where = rs.Where
	}
	if j.Kind == relational.JoinCross && (j.On != nil || where != nil) {
		j.Kind = relational.JoinInner
	}

	f = f.edit(func(s *relational.Select) {
		s.Joins = append(slices.Clone(s.Joins[:before]), j)
		s.Joins = append(s.Joins, rs.Joins...)
		s.Joins = append(s.Joins, added...)
		s.Where = relational.And(s.Where, condition(where))
		s.Identifiers = append(s.Identifiers, rightIDs...)
	})
	if relational.IsTrue(f.sel.Where) {
		f.sel.Where = nil
	}

	r := newRow()
	r.add(sideName(left.name, "left"), left.cur)
	r.add(sideName(right.name, "right"), rightCur)
	return f.yield("", value{row: r}), nil
}

func sideName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// condition drops a TRUE join or filter condition.
func condition(e relational.Expr) relational.Expr {
	if e == nil || relational.IsTrue(e) {
		return nil
	}
	return e
}

// nullable converts values read through an outer join: every column may be
// null and every entity becomes optional.
type nullable struct {
	entities map[*navigate.Binding]*navigate.Binding
	rows     map[*row]*row
}

func newNullable() *nullable {
	return &nullable{entities: map[*navigate.Binding]*navigate.Binding{}, rows: map[*row]*row{}}
}

func (m *nullable) value(v value) value {
	switch {
	case v.entity != nil:
		if e, ok := m.entities[v.entity]; ok {
			return value{entity: e}
		}
		e := v.entity.Outer()
		m.entities[v.entity] = e
		return value{entity: e}
	case v.row != nil:
		if r, ok := m.rows[v.row]; ok {
			return value{row: r}
		}
		r := newRow()
		for _, n := range v.row.names {
			r.add(n, m.value(v.row.fields[n]))
		}
		m.rows[v.row] = r
		return value{row: r}
	case v.scalar != nil:
		return scalarValue(relational.WithNullability(v.scalar, relational.MaybeNull))
	}
	return v
}

var setKinds = map[queryir.SetOpKind]relational.SetKind{
	queryir.UnionAll:  relational.SetUnionAll,
	queryir.Union:     relational.SetUnion,
	queryir.Intersect: relational.SetIntersect,
	queryir.Except:    relational.SetExcept,
}

func (b *binder) setOp(n queryir.SetOp, outer *frame, aliases relational.Aliases, path string) (frame, error) {
	switch n.Kind {
	case queryir.Intersect:
		if err := b.d.Require(dialect.CapIntersect, "INTERSECT"); err != nil {
			return frame{}, qerr.At(err, path)
		}
	case queryir.Except:
		if err := b.d.Require(dialect.CapExcept, "EXCEPT"); err != nil {
			return frame{}, qerr.At(err, path)
		}
	}
	left, err := b.query(n.Left, outer, aliases, path+".Left")
	if err != nil {
		return frame{}, err
	}
	right, err := b.query(n.Right, outer, left.aliases, path+".Right")
	if err != nil {
		return frame{}, err
	}
	if len(left.collections) > 0 || len(right.collections) > 0 {
		return frame{}, qerr.Unsupported("SetOp", path, "set operation branches cannot project collections")
	}
	lsel, _, err := b.finish(left)
	if err != nil {
		return frame{}, qerr.At(err, path+".Left")
	}
	rsel, _, err := b.finish(right)
	if err != nil {
		return frame{}, qerr.At(err, path+".Right")
	}
	if len(lsel.Projection) != len(rsel.Projection) {
		return frame{}, qerr.Unsupported("SetOp", path, "branches return %d and %d columns", len(lsel.Projection), len(rsel.Projection))
	}
	for i := range lsel.Projection {
		lt, rt := lsel.Projection[i].Expr.Type(), rsel.Projection[i].Expr.Type()
		if !compatible(lt, rt) {
			return frame{}, qerr.Unsupported("SetOp", path, "column %d is %s in one branch and %s in the other", i, lt, rt)
		}
	}
	for _, s := range []*relational.Select{lsel, rsel} {
		if s.Limit == nil && s.Offset == nil {
			s.OrderBy = nil
		}
		s.Identifiers = nil
	}
	lsel.Projection = uniqueAliases(lsel.Projection)
	set := &relational.SetOperation{Kind: setKinds[n.Kind], Branches: []relational.Plan{lsel, rsel}}
	if len(relational.OuterColumns(set)) > 0 {
		if err := b.d.Require(dialect.CapLateral, "a correlated set operation"); err != nil {
			return frame{}, qerr.At(err, path)
		}
	}

	alias, aliases := right.aliases.Next("t")
	cols := make([]relational.Expr, len(lsel.Projection))
	for i, p := range lsel.Projection {
		cols[i] = relational.Column{
			Table:   alias,
			Name:    p.Alias,
			ColType: p.Expr.Type(),
			Null:    relational.Either(p.Expr.Nullability(), rsel.Projection[i].Expr.Nullability()),
		}
	}

	var cur value
	le, re := left.cur.entity, right.cur.entity
	if le != nil && re != nil && le.Shape == re.Shape {
		i := 0
		cur = newMapper(alias, func(string, relational.Expr) relational.Expr {
			c := cols[i]
			i++
			return c
		}).value(left.cur, "")
		cur.entity.Subtypes = unionSubtypes(le.Subtypes, re.Subtypes)
	} else {
		r := newRow()
		for i, p := range lsel.Projection {
			r.add(p.Alias, scalarValue(cols[i]))
		}
		cur = value{row: r}
	}

	f := newFrame(outer, aliases)
	f.sel.From = relational.Derived{Plan: set, Alias: alias}
	f.sel.Identifiers = cols
	return f.yield(n.As, cur), nil
}

// compatible reports whether two branch columns may be unioned.
func compatible(a, b model.Type) bool {
	if a.Kind == model.KindInvalid || b.Kind == model.KindInvalid {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a.Kind == b.Kind
}

func unionSubtypes(a, b []string) []string {
	if a == nil || b == nil {
		return nil
	}
	out := slices.Clone(a)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
