package querysql

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/querylift/internal/dialect"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/relational"
)

// maxLimit stands in for a missing LIMIT when only OFFSET is given; MySQL
// has no OFFSET without LIMIT.
const maxLimit = "18446744073709551610"

// Printer prints relational plans for one dialect. It is stateless and safe
// for concurrent use.
type Printer struct {
	d *dialect.Dialect
}

// NewPrinter returns a printer for d.
func NewPrinter(d *dialect.Dialect) *Printer {
	return &Printer{d: d}
}

// Print returns the SQL text of plan and its placeholder values.
func (p *Printer) Print(plan relational.Plan) (string, []Arg, error) {
	if plan == nil {
		return "", nil, fmt.Errorf("cannot print nil plan")
	}
	w := &writer{d: p.d, escapeMarks: p.d.PlaceholderName() != dialect.PlaceholderQuestion}
	w.plan(plan, false)
	if w.err != nil {
		return "", nil, w.err
	}

	sql := w.sb.String()
	if n := countPlaceholders(sql, !p.d.NoBackslashEscapes()); n != len(w.args) {
		return "", nil, fmt.Errorf("printed %d placeholders for %d args", n, len(w.args))
	}
	sql, err := p.d.Placeholder().ReplacePlaceholders(sql)
	if err != nil {
		return "", nil, fmt.Errorf("replace placeholders: %w", err)
	}
	return sql, w.args, nil
}

// writer accumulates the text and args of one Print call.
type writer struct {
	d           *dialect.Dialect
	sb          strings.Builder
	args        []Arg
	err         error
	escapeMarks bool
}

func (w *writer) write(parts ...string) {
	for _, s := range parts {
		w.sb.WriteString(s)
	}
}

func (w *writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf(format, args...)
	}
}

func (w *writer) ident(name string) {
	q := w.d.QuoteIdent(name)
	if w.escapeMarks {
		q = strings.ReplaceAll(q, "?", "??")
	}
	w.write(q)
}

func (w *writer) plan(p relational.Plan, nested bool) {
	switch n := p.(type) {
	case *relational.Select:
		w.selectStmt(n)
	case *relational.SetOperation:
		if nested {
			w.write("(")
		}
		for i, b := range n.Branches {
			if i > 0 {
				w.write(" ", n.Kind.Keyword(), " ")
			}
			_, isSet := b.(*relational.SetOperation)
			sel, isSel := b.(*relational.Select)
			wrap := isSet || (isSel && (len(sel.OrderBy) > 0 || sel.Limit != nil || sel.Offset != nil))
			if wrap {
				w.write("(")
				w.plan(b, false)
				w.write(")")
			} else {
				w.plan(b, false)
			}
		}
		if nested {
			w.write(")")
		}
	default:
		w.fail("unsupported plan %T", p)
	}
}

func (w *writer) selectStmt(s *relational.Select) {
	w.write("SELECT ")
	if s.Distinct {
		w.write("DISTINCT ")
	}
	if len(s.Projection) == 0 {
		w.write("1")
	}
	for i, pr := range s.Projection {
		if i > 0 {
			w.write(", ")
		}
		w.expr(pr.Expr)
		if c, ok := pr.Expr.(relational.Column); (!ok || c.Name != pr.Alias) && pr.Alias != "" {
			w.write(" AS ")
			w.ident(pr.Alias)
		}
	}
	if s.From != nil {
		w.write(" FROM ")
		w.table(s.From)
	}
	for _, j := range s.Joins {
		w.join(j)
	}
	if s.Where != nil {
		w.write(" WHERE ")
		w.expr(s.Where)
	}
	if len(s.GroupBy) > 0 {
		w.write(" GROUP BY ")
		w.exprList(s.GroupBy)
	}
	if s.Having != nil {
		w.write(" HAVING ")
		w.expr(s.Having)
	}
	if len(s.OrderBy) > 0 {
		w.write(" ORDER BY ")
		w.orderings(s.OrderBy)
	}
	w.limit(s.Limit, s.Offset)
}

func (w *writer) limit(limit, offset relational.Expr) {
	if limit == nil && offset == nil {
		return
	}
	w.write(" LIMIT ")
	if limit != nil {
		w.pagingOperand(limit)
	} else {
		w.write(maxLimit)
	}
	if offset != nil {
		w.write(" OFFSET ")
		w.pagingOperand(offset)
	}
}

// pagingOperand prints a LIMIT or OFFSET value, inlining parameters when
// the dialect cannot bind them there.
func (w *writer) pagingOperand(e relational.Expr) {
	prm, ok := e.(relational.Parameter)
	if !ok || w.d.ParameterizedLimit() {
		w.expr(e)
		return
	}
	n, ok := prm.Value.(ir.IRInt)
	if !ok {
		w.fail("paging parameter %q has non-integer value %T", prm.Name, prm.Value)
		return
	}
	w.write(strconv.FormatInt(int64(n), 10))
}

func (w *writer) join(j relational.Join) {
	switch j.Kind {
	case relational.JoinInner:
		w.write(" INNER JOIN ")
	case relational.JoinLeft:
		w.write(" LEFT JOIN ")
	case relational.JoinCross:
		w.write(" CROSS JOIN ")
	case relational.JoinInnerLateral:
		w.write(" JOIN LATERAL ")
	case relational.JoinLeftLateral:
		w.write(" LEFT JOIN LATERAL ")
	}
	w.table(j.Table)
	switch {
	case j.Kind == relational.JoinCross:
		// No condition.
	case j.On != nil:
		w.write(" ON ")
		w.expr(j.On)
	case j.Kind.IsOuter():
		w.write(" ON ")
		w.expr(relational.True)
	}
}

func (w *writer) table(t relational.Table) {
	switch n := t.(type) {
	case relational.TableRef:
		if n.Schema != "" {
			w.ident(n.Schema)
			w.write(".")
		}
		w.ident(n.Name)
	case relational.Derived:
		w.write("(")
		w.plan(n.Plan, false)
		w.write(")")
	case relational.JSONTable:
		w.write("JSON_TABLE(")
		w.expr(n.Source)
		w.write(", ")
		w.stringLiteral(n.Path)
		w.write(" COLUMNS (")
		for i, c := range n.Columns {
			if i > 0 {
				w.write(", ")
			}
			w.ident(c.Name)
			if c.Ordinality {
				w.write(" FOR ORDINALITY")
				continue
			}
			w.write(" ", w.d.StoreType(c.Type), " PATH ")
			w.stringLiteral(c.Path)
		}
		w.write("))")
	default:
		w.fail("unsupported table %T", t)
		return
	}
	if alias := t.TableAlias(); alias != "" {
		w.write(" AS ")
		w.ident(alias)
	}
}

func (w *writer) orderings(os []relational.Ordering) {
	for i, o := range os {
		if i > 0 {
			w.write(", ")
		}
		w.expr(o.Expr)
		if o.Desc {
			w.write(" DESC")
		}
	}
}

func (w *writer) exprList(es []relational.Expr) {
	for i, e := range es {
		if i > 0 {
			w.write(", ")
		}
		w.expr(e)
	}
}

// operand prints e, in parentheses when it is an operator expression.
func (w *writer) operand(e relational.Expr) {
	switch e.(type) {
	case relational.Binary, relational.In, relational.Unary:
		w.write("(")
		w.expr(e)
		w.write(")")
	default:
		w.expr(e)
	}
}

func (w *writer) expr(e relational.Expr) {
	switch n := e.(type) {
	case relational.Column:
		if n.Table != "" {
			w.ident(n.Table)
			w.write(".")
		}
		w.ident(n.Name)
	case relational.Literal:
		w.literal(n)
	case relational.Parameter:
		w.param(n)
	case relational.Binary:
		w.binary(n)
	case relational.Unary:
		w.unary(n)
	case relational.Case:
		w.write("CASE")
		for _, wh := range n.Whens {
			w.write(" WHEN ")
			w.expr(wh.Test)
			w.write(" THEN ")
			w.expr(wh.Then)
		}
		if n.Else != nil {
			w.write(" ELSE ")
			w.expr(n.Else)
		}
		w.write(" END")
	case relational.Function:
		w.write(n.Name, "(")
		w.exprList(n.Args)
		w.write(")")
	case relational.Cast:
		w.write("CAST(")
		w.expr(n.Operand)
		w.write(" AS ", w.d.CastType(n.To), ")")
	case relational.Extract:
		w.write("EXTRACT(", n.Unit, " FROM ")
		w.expr(n.Operand)
		w.write(")")
	case relational.DateAdd:
		w.write("DATE_ADD(")
		w.expr(n.Operand)
		w.write(", INTERVAL ")
		w.operand(n.Amount)
		w.write(" ", n.Unit, ")")
	case relational.DateDiff:
		w.write("TIMESTAMPDIFF(", n.Unit, ", ")
		w.expr(n.Start)
		w.write(", ")
		w.expr(n.End)
		w.write(")")
	case relational.In:
		w.operand(n.Item)
		w.write(" IN (")
		if n.Subquery != nil {
			w.plan(n.Subquery, false)
		} else {
			w.exprList(n.Values)
		}
		w.write(")")
	case relational.Exists:
		w.write("EXISTS (")
		w.plan(n.Plan, false)
		w.write(")")
	case relational.Subquery:
		w.write("(")
		w.plan(n.Plan, false)
		w.write(")")
	case relational.RowNumber:
		w.write("ROW_NUMBER() OVER(")
		if len(n.PartitionBy) > 0 {
			w.write("PARTITION BY ")
			w.exprList(n.PartitionBy)
		}
		if len(n.OrderBy) > 0 {
			if len(n.PartitionBy) > 0 {
				w.write(" ")
			}
			w.write("ORDER BY ")
			w.orderings(n.OrderBy)
		}
		w.write(")")
	case relational.Aggregate:
		w.write(n.Func, "(")
		if n.Distinct {
			w.write("DISTINCT ")
		}
		if n.Arg == nil {
			w.write("*")
		} else {
			w.expr(n.Arg)
		}
		w.write(")")
	case nil:
		w.fail("nil expression")
	default:
		w.fail("unsupported expression %T", e)
	}
}

func (w *writer) binary(b relational.Binary) {
	side := func(e relational.Expr) {
		wrap := false
		switch n := e.(type) {
		case relational.Binary:
			wrap = !(b.Op.IsLogical() && n.Op == b.Op)
		case relational.Unary, relational.In, relational.Exists, relational.Case:
			// Predicates bind looser than comparison and arithmetic.
			wrap = !b.Op.IsLogical()
		}
		if wrap {
			w.write("(")
			w.expr(e)
			w.write(")")
			return
		}
		w.expr(e)
	}
	side(b.L)
	w.write(" ", b.Op.Token(), " ")
	side(b.R)
}

func (w *writer) unary(u relational.Unary) {
	switch u.Op {
	case relational.OpNot:
		w.write("NOT ")
		w.operand(u.Operand)
	case relational.OpNegate:
		w.write("-")
		w.operand(u.Operand)
	case relational.OpIsNull:
		w.operand(u.Operand)
		w.write(" IS NULL")
	case relational.OpIsNotNull:
		w.operand(u.Operand)
		w.write(" IS NOT NULL")
	}
}

func (w *writer) param(p relational.Parameter) {
	v := p.Value
	if p.Element >= 0 {
		arr, ok := v.(ir.IRArray)
		if !ok || p.Element >= len(arr) {
			w.fail("parameter %q has no element %d", p.Name, p.Element)
			return
		}
		v = arr[p.Element]
	}
	w.bind(Arg{Name: p.Name, Element: p.Element, JSON: p.JSON, Type: p.ColType, Value: v})
}

func (w *writer) bind(a Arg) {
	a.Ordinal = len(w.args) + 1
	w.args = append(w.args, a)
	w.write("?")
}

func (w *writer) literal(l relational.Literal) {
	switch v := l.Value.(type) {
	case nil, ir.IRNull:
		w.write("NULL")
	case ir.IRBool:
		w.boolLiteral(bool(v))
	case ir.IRInt:
		w.write(strconv.FormatInt(int64(v), 10))
	case ir.IRFloat:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			w.fail("float constant %v has no SQL form", f)
			return
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += "E0"
		}
		w.write(s)
	default:
		if !l.Trusted {
			w.bind(Arg{Element: -1, Type: l.ColType, Value: l.Value})
			return
		}
		w.trusted(l)
	}
}

func (w *writer) boolLiteral(b bool) {
	switch {
	case w.d.BoolLiterals() && b:
		w.write("TRUE")
	case w.d.BoolLiterals():
		w.write("FALSE")
	case b:
		w.write("1")
	default:
		w.write("0")
	}
}

func (w *writer) trusted(l relational.Literal) {
	switch v := l.Value.(type) {
	case ir.IRString:
		w.stringLiteral(string(v))
	case ir.IRDecimal:
		w.write(v.String())
	case ir.IRTime:
		w.stringLiteral(v.Format(ir.TimeLayout))
	case ir.IRGuid:
		w.stringLiteral(v.String())
	default:
		w.fail("literal %T cannot be printed inline", l.Value)
	}
}

func (w *writer) stringLiteral(s string) {
	if !w.d.NoBackslashEscapes() {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	s = strings.ReplaceAll(s, "'", "''")
	if w.escapeMarks {
		s = strings.ReplaceAll(s, "?", "??")
	}
	w.write("'", s, "'")
}

// countPlaceholders counts the ? marks outside quoted text. A doubled ??
// is an escaped literal mark.
func countPlaceholders(sql string, backslashEscapes bool) int {
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			switch {
			case c == '\\' && quote == '\'' && backslashEscapes:
				i++
			case c == quote:
				quote = 0
			}
		case c == '\'' || c == '`' || c == '"':
			quote = c
		case c == '?':
			if i+1 < len(sql) && sql[i+1] == '?' {
				i++
				continue
			}
			n++
		}
	}
	return n
}
