package binder

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/navigate"
	"github.com/roach88/querylift/internal/planner"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
)

// Result is a bound query.
type Result struct {
	Plan relational.Plan

	// Columns are the output column names in order. Names may repeat when
	// several entities are projected side by side.
	Columns []string

	// Collections describes every nested collection of the output.
	Collections []Collection
}

// Collection locates a nested collection in the output row so that rows can
// be split per parent during materialization.
type Collection struct {
	Name     string
	Strategy planner.Strategy

	// Start and End delimit the element columns, End exclusive.
	Start, End int

	// Parent and Child are the output indexes of the identifying columns
	// of the parent row and of the element.
	Parent []int
	Child  []int
}

// Bind translates q against model m for dialect d.
func Bind(m *model.Model, d *dialect.Dialect, q queryir.Query) (Result, error) {
	if err := queryir.Validate(q); err != nil {
		return Result{}, err
	}
	b := &binder{m: m, d: d}
	path := opName(q)
	f, err := b.query(q, nil, relational.NewAliases(), path)
	if err != nil {
		return Result{}, err
	}
	sel, spans, err := b.finish(f)
	if err != nil {
		return Result{}, qerr.At(err, path)
	}
	return Result{Plan: unwrapSetOperation(sel), Columns: sel.Outputs(), Collections: spans}, nil
}

type binder struct {
	m *model.Model
	d *dialect.Dialect
}

// value is what a query expression denotes while binding: a scalar, an
// entity, a projected row, a group or a nested collection.
type value struct {
	scalar relational.Expr
	entity *navigate.Binding
	row    *row
	group  *group
	coll   *collection
}

func scalarValue(e relational.Expr) value { return value{scalar: e} }

func (v value) kind() string {
	switch {
	case v.entity != nil:
		return "entity"
	case v.row != nil:
		return "row"
	case v.group != nil:
		return "group"
	case v.coll != nil:
		return "collection"
	}
	return "scalar"
}

// row is a projected row: named fields in projection order.
type row struct {
	names  []string
	fields map[string]value
}

func newRow() *row { return &row{fields: map[string]value{}} }

func (r *row) add(name string, v value) {
	if _, ok := r.fields[name]; !ok {
		r.names = append(r.names, name)
	}
	r.fields[name] = v
}

// group is the variable bound by a GroupBy. Aggregates over its elements
// are evaluated in the scope of the grouped input.
type group struct {
	keys     *row
	elem     value
	elemVars map[string]value
}

// collection is a nested collection placed into its parent select.
type collection struct {
	name     string
	strategy planner.Strategy
	columns  []relational.Projection
	order    []relational.Ordering
	ids      []relational.Expr
}

// frame is the select under construction and the scope it binds.
type frame struct {
	sel     *relational.Select
	vars    map[string]value
	name    string
	cur     value
	joins   navigate.JoinSet
	aliases relational.Aliases
	outer   *frame

	// corr relates the rows of a correlated frame to its enclosing frame.
	// It is kept out of WHERE so that a collection can place it.
	corr relational.Expr

	// partition holds the correlated key columns of a navigation source.
	partition []relational.Expr

	// pushed is set once corr has moved into a derived table.
	pushed bool

	collections []*collection
}

func newFrame(outer *frame, aliases relational.Aliases) frame {
	return frame{sel: &relational.Select{}, vars: map[string]value{}, aliases: aliases, outer: outer}
}

// edit returns f with a private copy of its select for fn to change.
func (f frame) edit(fn func(s *relational.Select)) frame {
	f.sel = f.sel.Clone()
	fn(f.sel)
	return f
}

// bind returns f with variable name bound to v.
func (f frame) bind(name string, v value) frame {
	vars := make(map[string]value, len(f.vars)+1)
	maps.Copy(vars, f.vars)
	vars[name] = v
	f.vars = vars
	return f
}

// yield makes v, bound as name, the rows f produces.
func (f frame) yield(name string, v value) frame {
	if name != "" {
		f = f.bind(name, v)
	}
	f.name = name
	f.cur = v
	return f
}

// scoped returns f with exactly the variables vars in scope.
func (f frame) scoped(vars map[string]value) frame {
	f.vars = vars
	return f
}

func (f frame) lookup(name string) (value, bool) {
	for s := &f; s != nil; s = s.outer {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return value{}, false
}

func (f frame) addJoin(j relational.Join) frame {
	return f.edit(func(s *relational.Select) { s.Joins = append(s.Joins, j) })
}

func (f frame) flags() planner.Frame {
	return planner.Frame{
		Limit:    f.sel.Limit != nil,
		Offset:   f.sel.Offset != nil,
		Distinct: f.sel.Distinct,
		Group:    len(f.sel.GroupBy) > 0 || f.cur.group != nil,
	}
}

// prepare makes f ready for op, pushing it down when op would change the
// meaning of its LIMIT, OFFSET, DISTINCT or GROUP BY.
func (b *binder) prepare(f frame, op planner.Op, path string) (frame, error) {
	if len(f.collections) > 0 && op != planner.OpFilter && op != planner.OpOrder && op != planner.OpProject {
		return f, qerr.Unsupported(op.String(), path, "a query cannot be composed with %s after projecting a collection", op)
	}
	if !planner.NeedsPushdown(f.flags(), op) {
		return f, nil
	}
	return b.pushdown(f, path)
}

// pushdown turns the select of f into a derived table and continues over
// its rows. A correlation moves into the derived table, and the ordering is
// lifted so the outer select keeps it.
func (b *binder) pushdown(f frame, path string) (frame, error) {
	if len(f.collections) > 0 {
		return f, qerr.Unsupported("pushdown", path, "a query projecting a collection cannot become a derived table")
	}
	if f.cur.group != nil {
		return f, qerr.Unsupported("GroupBy", path, "a grouping must be projected before it is composed")
	}
	sel := f.sel.Clone()
	if f.corr != nil {
		sel.Where = relational.And(f.corr, sel.Where)
	}
	proj, err := projection(f.cur, f.name)
	if err != nil {
		return f, qerr.At(err, path)
	}
	sel.Projection = uniqueAliases(proj)
	order := sel.OrderBy
	if sel.Limit == nil && sel.Offset == nil {
		sel.OrderBy = nil
	}

	alias, aliases := f.aliases.Next("t")
	l := relational.Pushdown(sel, alias)
	inner := relational.DefinedAliases(sel)
	lift := newMapper(alias, func(name string, e relational.Expr) relational.Expr {
		return liftExpr(l, inner, e, name)
	})

	out := frame{
		vars:    map[string]value{},
		name:    f.name,
		aliases: aliases,
		outer:   f.outer,
		pushed:  f.pushed || f.corr != nil,
	}
	out.cur = lift.value(f.cur, f.name)
	merged := sel.Distinct || len(sel.GroupBy) > 0
	for _, name := range slices.Sorted(maps.Keys(f.vars)) {
		if name == f.name || !merged {
			out.vars[name] = lift.value(f.vars[name], name)
		}
	}

	lifted := &relational.Select{From: l.Table()}
	for _, o := range order {
		lifted.OrderBy = append(lifted.OrderBy, relational.Ordering{Expr: liftExpr(l, inner, o.Expr, ""), Desc: o.Desc})
	}
	for _, id := range f.sel.Identifiers {
		lifted.Identifiers = append(lifted.Identifiers, liftExpr(l, inner, id, ""))
	}
	out.sel = lifted
	return out, nil
}

// liftExpr reads e from outside the lifted select. Columns are read under
// their own name and computed values are projected whole.
func liftExpr(l *relational.Lifted, inner map[string]bool, e relational.Expr, name string) relational.Expr {
	if !relational.References(e, inner) {
		return e
	}
	if c, ok := e.(relational.Column); ok {
		return l.Ref(c, c.Name)
	}
	return l.Ref(e, name)
}

// mapper rewrites every scalar of a value in projection order. Entities
// keep their shape and rows keep their field names; a value reachable
// twice maps to one result.
type mapper struct {
	alias    string
	fn       func(name string, e relational.Expr) relational.Expr
	entities map[*navigate.Binding]*navigate.Binding
	rows     map[*row]*row
}

func newMapper(alias string, fn func(name string, e relational.Expr) relational.Expr) *mapper {
	return &mapper{
		alias:    alias,
		fn:       fn,
		entities: map[*navigate.Binding]*navigate.Binding{},
		rows:     map[*row]*row{},
	}
}

func (m *mapper) value(v value, name string) value {
	switch {
	case v.entity != nil:
		if b, ok := m.entities[v.entity]; ok {
			return value{entity: b}
		}
		b := v.entity.Map(m.alias, m.fn)
		m.entities[v.entity] = b
		return value{entity: b}
	case v.row != nil:
		if r, ok := m.rows[v.row]; ok {
			return value{row: r}
		}
		r := newRow()
		for _, n := range v.row.names {
			r.add(n, m.value(v.row.fields[n], n))
		}
		m.rows[v.row] = r
		return value{row: r}
	case v.scalar != nil:
		return scalarValue(m.fn(name, v.scalar))
	}
	return v
}

// projection lists the output columns of v. A scalar is named name.
func projection(v value, name string) ([]relational.Projection, error) {
	p := &projector{}
	if err := p.add(v, name); err != nil {
		return nil, err
	}
	return p.out, nil
}

type projector struct {
	out   []relational.Projection
	spans map[*collection][2]int
}

func (p *projector) add(v value, name string) error {
	switch {
	case v.entity != nil:
		p.out = append(p.out, v.entity.Projection()...)
	case v.row != nil:
		for _, n := range v.row.names {
			if err := p.add(v.row.fields[n], n); err != nil {
				return err
			}
		}
	case v.coll != nil:
		if p.spans == nil {
			return qerr.Unsupported("Subquery", "", "collection %q cannot be nested here", v.coll.name)
		}
		start := len(p.out)
		p.out = append(p.out, v.coll.columns...)
		p.spans[v.coll] = [2]int{start, len(p.out)}
	case v.group != nil:
		return qerr.Unsupported("GroupBy", "", "a grouping must be projected before it is returned")
	case v.scalar != nil:
		if name == "" {
			name = "value"
		}
		p.out = append(p.out, relational.Projection{Expr: v.scalar, Alias: name})
	}
	return nil
}

// uniqueAliases renames repeated projection aliases with a numeric suffix,
// as required of a derived table.
func uniqueAliases(proj []relational.Projection) []relational.Projection {
	seen := make(map[string]bool, len(proj))
	out := make([]relational.Projection, len(proj))
	for i, p := range proj {
		alias := p.Alias
		for n := 0; seen[alias]; n++ {
			alias = p.Alias + strconv.Itoa(n)
		}
		seen[alias] = true
		out[i] = relational.Projection{Expr: p.Expr, Alias: alias}
	}
	return out
}

// finish completes the select of f: its projection, its correlation and,
// when collections are projected, the identifiers and final ordering that
// materialization relies on.
func (b *binder) finish(f frame) (*relational.Select, []Collection, error) {
	p := &projector{spans: map[*collection][2]int{}}
	if err := p.add(f.cur, f.name); err != nil {
		return nil, nil, err
	}
	sel := f.sel.Clone()
	sel.Projection = p.out
	if f.corr != nil {
		sel.Where = relational.And(f.corr, sel.Where)
	}
	if len(f.collections) == 0 {
		return sel, nil, nil
	}

	parent := slices.Clone(sel.Identifiers)
	if len(parent) == 0 {
		return nil, nil, qerr.Unsupported("Subquery", "", "the parent of a collection has no identifying columns")
	}
	var (
		orders []planner.CollectionOrder
		out    []Collection
	)
	parentIdx := ensureProjected(sel, parent)
	for _, c := range f.collections {
		span, ok := p.spans[c]
		if !ok {
			continue
		}
		orders = append(orders, planner.CollectionOrder{Ordering: c.order, Identifiers: c.ids})
		out = append(out, Collection{
			Name:     c.name,
			Strategy: c.strategy,
			Start:    span[0],
			End:      span[1],
			Parent:   parentIdx,
			Child:    ensureProjected(sel, c.ids),
		})
	}
	sel.OrderBy = planner.FinalOrder(sel.OrderBy, parent, orders...)
	return sel, out, nil
}

// ensureProjected returns the projection index of every expression of es,
// appending the ones that are not projected yet.
func ensureProjected(sel *relational.Select, es []relational.Expr) []int {
	idx := make([]int, 0, len(es))
	for _, e := range es {
		found := -1
		for i, p := range sel.Projection {
			if relational.Matches(p.Expr, e) {
				found = i
				break
			}
		}
		if found < 0 {
			found = len(sel.Projection)
			name := "key"
			if c, ok := e.(relational.Column); ok {
				name = c.Name
			}
			sel.Projection = append(sel.Projection, relational.Projection{Expr: e, Alias: name})
		}
		idx = append(idx, found)
	}
	return idx
}

// unwrapSetOperation returns the set operation a select merely wraps.
func unwrapSetOperation(sel *relational.Select) relational.Plan {
	d, ok := sel.From.(relational.Derived)
	if !ok || len(sel.Joins) > 0 || sel.Where != nil || len(sel.GroupBy) > 0 || sel.Having != nil ||
		len(sel.OrderBy) > 0 || sel.Limit != nil || sel.Offset != nil || sel.Distinct {
		return sel
	}
	set, ok := d.Plan.(*relational.SetOperation)
	if !ok {
		return sel
	}
	outputs := set.Outputs()
	if len(outputs) != len(sel.Projection) {
		return sel
	}
	for i, p := range sel.Projection {
		c, ok := p.Expr.(relational.Column)
		if !ok || c.Table != d.Alias || c.Name != outputs[i] || p.Alias != outputs[i] {
			return sel
		}
	}
	return set
}

func opName(n any) string {
	s := fmt.Sprintf("%T", n)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}
