package planner

import (
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
)

// Default returns the value an aggregate yields over an empty source.
// Count and Sum yield zero. The other aggregates yield the declared
// default. Without one, First, Min and Max over a value that is never null
// yield the zero value of its type, and the rest stay null (nil).
func Default(op queryir.AggOp, declared ir.IRValue, t model.Type, value relational.Nullability) relational.Expr {
	switch op {
	case queryir.Count, queryir.Sum:
		return relational.Literal{Value: ir.IRInt(0), ColType: t}
	}
	if !ir.IsNull(declared) {
		return relational.Literal{Value: declared, ColType: t}
	}
	if value != relational.NeverNull || (op != queryir.First && op != queryir.Min && op != queryir.Max) {
		return nil
	}
	zero, ok := ZeroValue(t)
	if !ok {
		return nil
	}
	return relational.Literal{Value: zero, ColType: t, Trusted: true}
}

// ZeroValue returns the zero value of a value type. Strings, byte strings
// and JSON are references and have none; neither do temporal types, whose
// zero lies outside the MySQL range.
func ZeroValue(t model.Type) (ir.IRValue, bool) {
	switch t.Kind {
	case model.KindBool:
		return ir.IRBool(false), true
	case model.KindInt, model.KindEnum, model.KindDecimal, model.KindFloat:
		return ir.IRInt(0), true
	case model.KindGuid:
		return ir.IRGuid{}, true
	}
	return nil, false
}

// WithDefault wraps agg in COALESCE with its empty-source default. value is
// the nullability of the reduced values. An aggregate without a default is
// tagged nullable.
func WithDefault(agg relational.Expr, op queryir.AggOp, declared ir.IRValue, value relational.Nullability) relational.Expr {
	def := Default(op, declared, agg.Type(), value)
	if def == nil {
		return relational.WithNullability(agg, relational.MaybeNull)
	}
	return relational.Coalesce(agg.Type(), agg, def)
}

// AggregateType returns the result type of op over values of type t.
func AggregateType(op queryir.AggOp, t model.Type) model.Type {
	switch op {
	case queryir.Count:
		return model.Int64
	case queryir.Avg:
		if t.Kind == model.KindFloat {
			return model.Float
		}
		return model.Decimal
	case queryir.Sum:
		if t.IsInteger() {
			return model.Decimal
		}
		return t
	}
	return t
}

// AggregateFunc returns the SQL function computing op.
func AggregateFunc(op queryir.AggOp) string {
	switch op {
	case queryir.Count:
		return "COUNT"
	case queryir.Sum:
		return "SUM"
	case queryir.Avg:
		return "AVG"
	case queryir.Min:
		return "MIN"
	case queryir.Max:
		return "MAX"
	}
	return ""
}
