package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/queryir"
)

// QueryError reports a malformed query document.
type QueryError struct {
	Line    int
	Column  int
	Message string
}

func (e *QueryError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return e.Message
}

func errorAt(n *yaml.Node, format string, args ...any) error {
	return &QueryError{Line: n.Line, Column: n.Column, Message: fmt.Sprintf(format, args...)}
}

// LoadQuery reads a YAML query file.
func LoadQuery(path string) (queryir.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read query file: %w", err)
	}
	q, err := ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// ParseQuery parses a YAML query document.
func ParseQuery(data []byte) (queryir.Query, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return DecodeQuery(&doc)
}

// DecodeQuery converts a YAML node into a query tree.
//
// A query is a mapping whose first key names the operator:
//
//	filter:
//	  input: {source: Customers, as: c}
//	  predicate: {eq: [{prop: c.City}, {param: city, value: Oslo}]}
//
// Expressions follow the same rule. A plain scalar is a constant and
// {prop: c.Customer.Name} reads a dotted path from a range variable.
func DecodeQuery(n *yaml.Node) (queryir.Query, error) {
	return (&decoder{}).query(n)
}

// DecodeExpr converts a YAML node into an expression.
func DecodeExpr(n *yaml.Node) (queryir.Expr, error) {
	return (&decoder{}).expr(n)
}

type decoder struct{}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// operator splits a mapping node into its operator key, the operator's
// value and the remaining options.
type operator struct {
	node *yaml.Node
	name string
	arg  *yaml.Node
	opts map[string]*yaml.Node
}

func (d *decoder) operator(n *yaml.Node) (*operator, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) < 2 {
		return nil, errorAt(n, "expected a mapping keyed by operator")
	}
	op := &operator{
		node: n,
		name: strings.ToLower(n.Content[0].Value),
		arg:  resolve(n.Content[1]),
		opts: make(map[string]*yaml.Node, len(n.Content)/2-1),
	}
	for i := 2; i+1 < len(n.Content); i += 2 {
		op.opts[n.Content[i].Value] = resolve(n.Content[i+1])
	}
	return op, nil
}

// field returns the option or the named key of the operator's mapping
// argument.
func (op *operator) field(name string) *yaml.Node {
	if v, ok := op.opts[name]; ok {
		return v
	}
	if op.arg != nil && op.arg.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(op.arg.Content); i += 2 {
			if op.arg.Content[i].Value == name {
				return resolve(op.arg.Content[i+1])
			}
		}
	}
	return nil
}

func (op *operator) required(name string) (*yaml.Node, error) {
	if v := op.field(name); v != nil {
		return v, nil
	}
	return nil, errorAt(op.node, "%s: %s is required", op.name, name)
}

func (op *operator) str(name string) (string, error) {
	v, err := op.required(name)
	if err != nil {
		return "", err
	}
	if v.Kind != yaml.ScalarNode {
		return "", errorAt(v, "%s: %s must be a string", op.name, name)
	}
	return v.Value, nil
}

func (op *operator) optStr(name string) string {
	if v := op.field(name); v != nil && v.Kind == yaml.ScalarNode {
		return v.Value
	}
	return ""
}

func (op *operator) bool(name string) (bool, error) {
	v := op.field(name)
	if v == nil {
		return false, nil
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		return false, errorAt(v, "%s: %s must be a boolean", op.name, name)
	}
	return b, nil
}

func strList(n *yaml.Node) ([]string, error) {
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	var out []string
	if err := n.Decode(&out); err != nil {
		return nil, errorAt(n, "expected a list of names")
	}
	return out, nil
}

func (d *decoder) query(n *yaml.Node) (queryir.Query, error) {
	n = resolve(n)
	if n == nil {
		return nil, &QueryError{Message: "empty query"}
	}
	op, err := d.operator(n)
	if err != nil {
		return nil, err
	}
	switch op.name {
	case "source":
		entity := op.arg.Value
		if op.arg.Kind == yaml.MappingNode {
			if entity, err = op.str("entity"); err != nil {
				return nil, err
			}
		}
		return queryir.Source{Entity: entity, As: op.optStr("as")}, nil
	case "oftype":
		in, err := d.input(op)
		if err != nil {
			return nil, err
		}
		subs, err := op.required("subtypes")
		if err != nil {
			return nil, err
		}
		names, err := strList(subs)
		if err != nil {
			return nil, err
		}
		return queryir.OfType{Input: in, Subtypes: names}, nil
	case "navsource":
		of, err := d.exprField(op, "of")
		if err != nil {
			return nil, err
		}
		nav, err := op.str("navigation")
		if err != nil {
			return nil, err
		}
		return queryir.NavSource{Of: of, Navigation: nav, As: op.optStr("as")}, nil
	case "values":
		coll, err := d.exprField(op, "collection")
		if err != nil {
			return nil, err
		}
		return queryir.Values{Collection: coll, As: op.optStr("as")}, nil
	case "groupelements":
		group, err := op.str("group")
		if err != nil {
			return nil, err
		}
		return queryir.GroupElements{Group: group, As: op.optStr("as")}, nil
	case "filter":
		in, err := d.input(op)
		if err != nil {
			return nil, err
		}
		pred, err := d.exprField(op, "predicate")
		if err != nil {
			return nil, err
		}
		return queryir.Filter{Input: in, Predicate: pred}, nil
	case "project":
		in, err := d.input(op)
		if err != nil {
			return nil, err
		}
		fields, err := d.fields(op, "fields")
		if err != nil {
			return nil, err
		}
		return queryir.Project{Input: in, As: op.optStr("as"), Fields: fields}, nil
	case "join":
		return d.join(op)
	case "groupby":
		in, err := d.input(op)
		if err != nil {
			return nil, err
		}
		keys, err := d.fields(op, "keys")
		if err != nil {
			return nil, err
		}
		return queryir.GroupBy{Input: in, As: op.optStr("as"), Keys: keys}, nil
	case "orderby":
		return d.orderBy(op)
	case "paginate":
		in, err := d.input(op)
		if err != nil {
			return nil, err
		}
		p := queryir.Paginate{Input: in}
		if v := op.field("offset"); v != nil {
			if p.Offset, err = d.expr(v); err != nil {
				return nil, err
			}
		}
		if v := op.field("limit"); v != nil {
			if p.Limit, err = d.expr(v); err != nil {
				return nil, err
			}
		}
		return p, nil
	case "distinct":
		in, err := d.input(op)
		if err != nil {
			return nil, err
		}
		return queryir.Distinct{Input: in}, nil
	case "setop":
		return d.setOp(op)
	}
	return nil, errorAt(n, "unknown query operator %q", op.name)
}

// input decodes the operator's input query, given either as the input
// field or, for operators with no other fields, as the operator value.
func (d *decoder) input(op *operator) (queryir.Query, error) {
	if v := op.field("input"); v != nil {
		return d.query(v)
	}
	if op.name == "distinct" && op.arg != nil {
		return d.query(op.arg)
	}
	return nil, errorAt(op.node, "%s: input is required", op.name)
}

func (d *decoder) fields(op *operator, name string) ([]queryir.Field, error) {
	v, err := op.required(name)
	if err != nil {
		return nil, err
	}
	if v.Kind != yaml.MappingNode {
		return nil, errorAt(v, "%s: %s must be a mapping of name to expression", op.name, name)
	}
	out := make([]queryir.Field, 0, len(v.Content)/2)
	for i := 0; i+1 < len(v.Content); i += 2 {
		e, err := d.expr(v.Content[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, queryir.Field{Name: v.Content[i].Value, Value: e})
	}
	return out, nil
}

var joinKinds = map[string]queryir.JoinKind{
	"":      queryir.JoinInner,
	"inner": queryir.JoinInner,
	"left":  queryir.JoinLeft,
	"cross": queryir.JoinCross,
}

func (d *decoder) join(op *operator) (queryir.Query, error) {
	l, err := op.required("left")
	if err != nil {
		return nil, err
	}
	r, err := op.required("right")
	if err != nil {
		return nil, err
	}
	j := queryir.Join{}
	if j.Left, err = d.query(l); err != nil {
		return nil, err
	}
	if j.Right, err = d.query(r); err != nil {
		return nil, err
	}
	kind, ok := joinKinds[op.optStr("kind")]
	if !ok {
		return nil, errorAt(op.node, "join: unknown kind %q", op.optStr("kind"))
	}
	j.Kind = kind
	if v := op.field("on"); v != nil {
		if j.On, err = d.expr(v); err != nil {
			return nil, err
		}
	}
	return j, nil
}

func (d *decoder) orderBy(op *operator) (queryir.Query, error) {
	in, err := d.input(op)
	if err != nil {
		return nil, err
	}
	keys, err := op.required("keys")
	if err != nil {
		return nil, err
	}
	if keys.Kind != yaml.SequenceNode {
		return nil, errorAt(keys, "orderby: keys must be a list")
	}
	ob := queryir.OrderBy{Input: in}
	for _, k := range keys.Content {
		k = resolve(k)
		o := queryir.Ordering{}
		target := k
		if k.Kind == yaml.MappingNode && len(k.Content) == 2 {
			switch k.Content[0].Value {
			case "asc":
				target = resolve(k.Content[1])
			case "desc":
				target, o.Desc = resolve(k.Content[1]), true
			}
		}
		if o.Key, err = d.expr(target); err != nil {
			return nil, err
		}
		ob.Keys = append(ob.Keys, o)
	}
	return ob, nil
}

var setKinds = map[string]queryir.SetOpKind{
	"union-all": queryir.UnionAll,
	"unionall":  queryir.UnionAll,
	"union":     queryir.Union,
	"intersect": queryir.Intersect,
	"except":    queryir.Except,
}

func (d *decoder) setOp(op *operator) (queryir.Query, error) {
	l, err := op.required("left")
	if err != nil {
		return nil, err
	}
	r, err := op.required("right")
	if err != nil {
		return nil, err
	}
	kind, err := op.str("kind")
	if err != nil {
		return nil, err
	}
	k, ok := setKinds[strings.ToLower(kind)]
	if !ok {
		return nil, errorAt(op.node, "setop: unknown kind %q", kind)
	}
	s := queryir.SetOp{Kind: k, As: op.optStr("as")}
	if s.Left, err = d.query(l); err != nil {
		return nil, err
	}
	if s.Right, err = d.query(r); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *decoder) exprField(op *operator, name string) (queryir.Expr, error) {
	v, err := op.required(name)
	if err != nil {
		return nil, err
	}
	return d.expr(v)
}

func (d *decoder) exprs(n *yaml.Node) ([]queryir.Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errorAt(n, "expected a list of expressions")
	}
	out := make([]queryir.Expr, len(n.Content))
	for i, c := range n.Content {
		e, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (d *decoder) pair(n *yaml.Node) (queryir.Expr, queryir.Expr, error) {
	es, err := d.exprs(n)
	if err != nil {
		return nil, nil, err
	}
	if len(es) != 2 {
		return nil, nil, errorAt(n, "expected two operands, got %d", len(es))
	}
	return es[0], es[1], nil
}

var compareOps = map[string]queryir.CompareOp{
	"eq": queryir.Eq, "ne": queryir.Ne, "lt": queryir.Lt,
	"le": queryir.Le, "gt": queryir.Gt, "ge": queryir.Ge,
}

var arithOps = map[string]queryir.ArithOp{
	"add": queryir.Add, "sub": queryir.Sub, "mul": queryir.Mul, "div": queryir.Div,
	"mod": queryir.Mod, "bitand": queryir.BitAnd, "bitor": queryir.BitOr, "bitxor": queryir.BitXor,
}

var aggOps = map[string]queryir.AggOp{
	"count": queryir.Count, "sum": queryir.Sum, "avg": queryir.Avg,
	"min": queryir.Min, "max": queryir.Max, "first": queryir.First,
}

func (d *decoder) expr(n *yaml.Node) (queryir.Expr, error) {
	n = resolve(n)
	if n == nil {
		return nil, &QueryError{Message: "empty expression"}
	}
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := constant(n, model.Type{})
		if err != nil {
			return nil, err
		}
		return queryir.Const{Value: v}, nil
	case yaml.SequenceNode:
		v, err := constant(n, model.Type{})
		if err != nil {
			return nil, err
		}
		return queryir.Const{Value: v}, nil
	}

	op, err := d.operator(n)
	if err != nil {
		return nil, err
	}
	if cmp, ok := compareOps[op.name]; ok {
		l, r, err := d.pair(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.Compare{Op: cmp, L: l, R: r}, nil
	}
	if ar, ok := arithOps[op.name]; ok {
		l, r, err := d.pair(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.Arith{Op: ar, L: l, R: r}, nil
	}
	if agg, ok := aggOps[op.name]; ok {
		return d.aggregate(op, agg)
	}

	switch op.name {
	case "var":
		return queryir.Var{Name: op.arg.Value}, nil
	case "prop", "nav":
		return path(op)
	case "const":
		t, err := typeOption(op)
		if err != nil {
			return nil, err
		}
		v, err := constant(op.arg, t)
		if err != nil {
			return nil, err
		}
		return queryir.Const{Value: v, Type: t}, nil
	case "param":
		t, err := typeOption(op)
		if err != nil {
			return nil, err
		}
		var v ir.IRValue = ir.IRNull{}
		if raw := op.opts["value"]; raw != nil {
			if v, err = constant(raw, t); err != nil {
				return nil, err
			}
		}
		return queryir.Param{Name: op.arg.Value, Value: v, Type: t}, nil
	case "and", "or":
		terms, err := d.exprs(op.arg)
		if err != nil {
			return nil, err
		}
		l := queryir.Logical{Op: queryir.And, Terms: terms}
		if op.name == "or" {
			l.Op = queryir.Or
		}
		return l, nil
	case "not", "isnull", "negate":
		e, err := d.expr(op.arg)
		if err != nil {
			return nil, err
		}
		switch op.name {
		case "not":
			return queryir.Not{Operand: e}, nil
		case "isnull":
			return queryir.IsNull{Operand: e}, nil
		}
		return queryir.Negate{Operand: e}, nil
	case "hasflag":
		v, f, err := d.pair(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.HasFlag{Value: v, Flag: f}, nil
	case "coalesce":
		es, err := d.exprs(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.Coalesce{Operands: es}, nil
	case "if":
		c := queryir.Conditional{}
		if c.Test, err = d.expr(op.arg); err != nil {
			return nil, err
		}
		if c.Then, err = d.exprField(op, "then"); err != nil {
			return nil, err
		}
		if c.Else, err = d.exprField(op, "else"); err != nil {
			return nil, err
		}
		return c, nil
	case "convert":
		e, err := d.expr(op.arg)
		if err != nil {
			return nil, err
		}
		t, err := typeOption(op)
		if err != nil {
			return nil, err
		}
		to := op.optStr("to")
		if to != "" {
			if t, err = model.ParseType(to); err != nil {
				return nil, errorAt(op.node, "convert: %v", err)
			}
		}
		if t.Kind == model.KindInvalid {
			return nil, errorAt(op.node, "convert: to is required")
		}
		return queryir.Convert{Operand: e, To: t}, nil
	case "datepart", "dateadd", "datediff":
		return d.date(op)
	case "call":
		args := op.opts["args"]
		c := queryir.Call{Fn: queryir.Func(op.arg.Value)}
		if args != nil {
			if c.Args, err = d.exprs(args); err != nil {
				return nil, err
			}
		}
		return c, nil
	case "subquery":
		q, err := d.query(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.Subquery{Query: q}, nil
	case "exists":
		q, err := d.query(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.Exists{Source: q}, nil
	case "contains":
		item, err := d.expr(op.arg)
		if err != nil {
			return nil, err
		}
		c := queryir.Contains{Item: item}
		if v := op.opts["in"]; v != nil {
			if c.Collection, err = d.expr(v); err != nil {
				return nil, err
			}
		}
		if v := op.opts["from"]; v != nil {
			if c.Source, err = d.query(v); err != nil {
				return nil, err
			}
		}
		return c, nil
	case "typeis":
		of, err := d.expr(op.arg)
		if err != nil {
			return nil, err
		}
		subs, err := op.required("subtypes")
		if err != nil {
			return nil, err
		}
		names, err := strList(subs)
		if err != nil {
			return nil, err
		}
		return queryir.TypeIs{Of: of, Subtypes: names}, nil
	}
	return nil, errorAt(n, "unknown expression operator %q", op.name)
}

// path decodes "c.Customer.Name" into Prop (or Nav) nodes over Var{c}.
func path(op *operator) (queryir.Expr, error) {
	parts := strings.Split(op.arg.Value, ".")
	if len(parts) < 2 || slices.Contains(parts, "") {
		return nil, errorAt(op.arg, "%s: expected a dotted path like c.Name, got %q", op.name, op.arg.Value)
	}
	var e queryir.Expr = queryir.Var{Name: parts[0]}
	for i, p := range parts[1:] {
		if op.name == "nav" && i == len(parts)-2 {
			e = queryir.Nav{Of: e, Name: p}
			continue
		}
		e = queryir.Prop{Of: e, Name: p}
	}
	return e, nil
}

func (d *decoder) aggregate(op *operator, agg queryir.AggOp) (queryir.Expr, error) {
	src, err := d.query(op.arg)
	if err != nil {
		return nil, err
	}
	a := queryir.Aggregate{Op: agg, Source: src}
	if v := op.opts["select"]; v != nil {
		if a.Selector, err = d.expr(v); err != nil {
			return nil, err
		}
	}
	if a.Distinct, err = op.bool("distinct"); err != nil {
		return nil, err
	}
	if v := op.opts["default"]; v != nil {
		if a.Default, err = constant(v, model.Type{}); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (d *decoder) date(op *operator) (queryir.Expr, error) {
	unitName := op.optStr("unit")
	if op.name == "datepart" {
		unitName = op.optStr("part")
	}
	unit, ok := queryir.ParseDateUnit(strings.ToLower(unitName))
	if !ok {
		return nil, errorAt(op.node, "%s: unknown unit %q", op.name, unitName)
	}
	switch op.name {
	case "datepart":
		e, err := d.expr(op.arg)
		if err != nil {
			return nil, err
		}
		return queryir.DatePart{Part: unit, Operand: e}, nil
	case "dateadd":
		e, err := d.expr(op.arg)
		if err != nil {
			return nil, err
		}
		amount, err := d.exprField(op, "amount")
		if err != nil {
			return nil, err
		}
		return queryir.DateAdd{Unit: unit, Operand: e, Amount: amount}, nil
	}
	start, end, err := d.pair(op.arg)
	if err != nil {
		return nil, err
	}
	return queryir.DateDiff{Unit: unit, Start: start, End: end}, nil
}

func typeOption(op *operator) (model.Type, error) {
	name := op.opts["type"]
	if name == nil {
		return model.Type{}, nil
	}
	t, err := model.ParseType(name.Value)
	if err != nil {
		return model.Type{}, errorAt(name, "%v", err)
	}
	return t, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	ir.TimeLayout,
	"2006-01-02T15:04:05",
	time.DateOnly,
	time.TimeOnly,
}

// constant decodes a scalar or list node as a value of type t. A zero t
// takes the value as YAML resolves it.
func constant(n *yaml.Node, t model.Type) (ir.IRValue, error) {
	n = resolve(n)
	if n.Kind == yaml.SequenceNode {
		elem := model.Type{}
		if t.Kind == model.KindArray && t.Elem != nil {
			elem = *t.Elem
		}
		arr := make(ir.IRArray, len(n.Content))
		for i, c := range n.Content {
			v, err := constant(c, elem)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	}
	if n.Kind != yaml.ScalarNode {
		return nil, errorAt(n, "expected a constant")
	}
	if n.Tag == "!!null" {
		return ir.IRNull{}, nil
	}

	switch t.Underlying().Kind {
	case model.KindInvalid:
		var raw any
		if err := n.Decode(&raw); err != nil {
			return nil, errorAt(n, "%v", err)
		}
		v, err := ir.FromGo(raw)
		if err != nil {
			return nil, errorAt(n, "%v", err)
		}
		return v, nil
	case model.KindString, model.KindJSON:
		return ir.IRString(n.Value), nil
	case model.KindDecimal:
		d, err := ir.NewIRDecimal(n.Value)
		if err != nil {
			return nil, errorAt(n, "%v", err)
		}
		return d, nil
	case model.KindGuid:
		g, err := uuid.Parse(n.Value)
		if err != nil {
			return nil, errorAt(n, "invalid guid %q: %v", n.Value, err)
		}
		return ir.IRGuid(g), nil
	case model.KindDateTime, model.KindDate, model.KindTime:
		for _, layout := range timeLayouts {
			if tm, err := time.Parse(layout, n.Value); err == nil {
				return ir.NewIRTime(tm), nil
			}
		}
		return nil, errorAt(n, "invalid time %q", n.Value)
	case model.KindInt:
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, errorAt(n, "invalid integer %q", n.Value)
		}
		return ir.IRInt(i), nil
	case model.KindFloat:
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, errorAt(n, "invalid float %q", n.Value)
		}
		return ir.IRFloat(f), nil
	case model.KindBool:
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errorAt(n, "invalid boolean %q", n.Value)
		}
		return ir.IRBool(b), nil
	}
	return nil, errorAt(n, "constants of type %s are not supported", t)
}
