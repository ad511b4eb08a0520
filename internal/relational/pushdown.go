package relational

import "strconv"

// Lifted is a select wrapped as a derived table so that further operators
// apply to its result. Ref projects inner expressions on demand and returns
// the outer column that reads them.
//
// Refs must be taken before the plan is printed. A DISTINCT or grouped
// select should have its full row projected before it is lifted, since new
// projections would change its rows.
type Lifted struct {
	Select *Select
	Alias  string
	inner  map[string]bool
	names  map[string]bool
}

// Pushdown wraps sel as the derived table alias.
func Pushdown(sel *Select, alias string) *Lifted {
	l := &Lifted{
		Select: sel,
		Alias:  alias,
		inner:  DefinedAliases(sel),
		names:  map[string]bool{},
	}
	for _, p := range sel.Projection {
		l.names[p.Alias] = true
	}
	return l
}

// Table returns the derived table.
func (l *Lifted) Table() Derived {
	return Derived{Plan: l.Select, Alias: l.Alias}
}

// Ref returns the outer column reading e, projecting e under a name derived
// from name when it is not projected yet.
func (l *Lifted) Ref(e Expr, name string) Column {
	for _, p := range l.Select.Projection {
		if Matches(p.Expr, e) {
			return Column{Table: l.Alias, Name: p.Alias, ColType: e.Type(), Null: p.Expr.Nullability()}
		}
	}
	alias := l.unique(name)
	l.Select.Projection = append(l.Select.Projection, Projection{Expr: e, Alias: alias})
	return Column{Table: l.Alias, Name: alias, ColType: e.Type(), Null: e.Nullability()}
}

// Remap rewrites the inner columns read by e into columns of the derived
// table. Columns of other tables are left alone.
func (l *Lifted) Remap(e Expr) Expr {
	return Rewriter{Expr: func(x Expr) Expr {
		if c, ok := x.(Column); ok && l.inner[c.Table] {
			return l.Ref(c, c.Name)
		}
		return x
	}}.RewriteExpr(e)
}

// Inner reports whether alias is defined inside the lifted select.
func (l *Lifted) Inner(alias string) bool {
	return l.inner[alias]
}

func (l *Lifted) unique(name string) string {
	if name == "" {
		name = "c"
	}
	alias := name
	for i := 0; l.names[alias]; i++ {
		alias = name + strconv.Itoa(i)
	}
	l.names[alias] = true
	return alias
}
