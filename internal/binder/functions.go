package binder

import (
	"github.com/roach88/querylift/internal/model"
	"github.com/roach88/querylift/internal/qerr"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/relational"
)

func (b *binder) call(f frame, n queryir.Call) (relational.Expr, frame, error) {
	args, f, err := b.scalars(f, n.Args...)
	if err != nil {
		return nil, f, err
	}
	x := args[0]
	switch n.Fn {
	case queryir.FuncContains:
		return relational.SQLCompare(relational.OpGt, relational.Func("LOCATE", model.Int32, args[1], x), relational.Int(0)), f, nil
	case queryir.FuncStartsWith:
		return affix("LEFT", x, args[1]), f, nil
	case queryir.FuncEndsWith:
		return affix("RIGHT", x, args[1]), f, nil
	case queryir.FuncLength:
		return relational.Func("CHAR_LENGTH", model.Int32, x), f, nil
	case queryir.FuncUpper:
		return relational.Func("UPPER", model.String, x), f, nil
	case queryir.FuncLower:
		return relational.Func("LOWER", model.String, x), f, nil
	case queryir.FuncTrim:
		return relational.Func("TRIM", model.String, x), f, nil
	case queryir.FuncConcat:
		return concat(args...), f, nil
	case queryir.FuncAbs:
		return relational.Func("ABS", x.Type(), x), f, nil
	case queryir.FuncFloor:
		return relational.Func("FLOOR", x.Type(), x), f, nil
	case queryir.FuncCeiling:
		return relational.Func("CEILING", x.Type(), x), f, nil
	case queryir.FuncRound:
		return relational.Func("ROUND", x.Type(), args...), f, nil
	case queryir.FuncTruncate:
	default:
		return nil, f, qerr.Unsupported("Call", "", "unknown function %q", n.Fn)
	}
	digits := relational.Expr(relational.Int(0))
	if len(args) > 1 {
		digits = args[1]
	}
	return relational.Func("TRUNCATE", x.Type(), x, digits), f, nil
}

// affix compares the leading or trailing characters of s with p.
func affix(side string, s, p relational.Expr) relational.Expr {
	part := relational.Func(side, model.String, s, relational.Func("CHAR_LENGTH", model.Int32, p))
	return relational.SQLCompare(relational.OpEq, part, p)
}

// concat joins strings, reading a null part as empty.
func concat(parts ...relational.Expr) relational.Expr {
	args := make([]relational.Expr, len(parts))
	for i, p := range parts {
		if p.Nullability() == relational.MaybeNull {
			p = relational.Coalesce(model.String, p, relational.Text(""))
		}
		args[i] = p
	}
	return relational.Func("CONCAT", model.String, args...)
}

var unitNames = map[queryir.DateUnit]string{
	queryir.Year:        "YEAR",
	queryir.Quarter:     "QUARTER",
	queryir.Month:       "MONTH",
	queryir.Week:        "WEEK",
	queryir.Day:         "DAY",
	queryir.Hour:        "HOUR",
	queryir.Minute:      "MINUTE",
	queryir.Second:      "SECOND",
	queryir.Microsecond: "MICROSECOND",
}

func (b *binder) datePart(f frame, n queryir.DatePart) (relational.Expr, frame, error) {
	x, f, err := b.scalar(f, n.Operand)
	if err != nil {
		return nil, f, err
	}
	switch n.Part {
	case queryir.DayOfYear:
		return relational.Func("DAYOFYEAR", model.Int32, x), f, nil
	case queryir.DayOfWeek:
		// DAYOFWEEK counts from Sunday = 1.
		return relational.Arith(relational.OpSub, relational.Func("DAYOFWEEK", model.Int32, x), relational.Int(1), model.Int32), f, nil
	case queryir.Millisecond:
		micros := relational.Extract{Unit: "MICROSECOND", Operand: x}
		return relational.Func("FLOOR", model.Int32, relational.Arith(relational.OpDiv, micros, relational.Int(1000), model.Decimal)), f, nil
	}
	return relational.Extract{Unit: unitNames[n.Part], Operand: x}, f, nil
}

func (b *binder) dateAdd(f frame, n queryir.DateAdd) (relational.Expr, frame, error) {
	x, f, err := b.scalar(f, n.Operand)
	if err != nil {
		return nil, f, err
	}
	amount, f, err := b.scalar(f, n.Amount)
	if err != nil {
		return nil, f, err
	}
	if untyped(n.Amount) {
		amount = retype(amount, model.Int64)
	}
	unit, ok := unitNames[n.Unit]
	switch {
	case n.Unit == queryir.Millisecond:
		unit = "MICROSECOND"
		amount = relational.Arith(relational.OpMul, amount, relational.Int(1000), model.Int64)
	case !ok:
		return nil, f, qerr.Unsupported("DateAdd", "", "cannot add %s units", n.Unit)
	}
	return relational.DateAdd{Unit: unit, Operand: x, Amount: amount}, f, nil
}

func (b *binder) dateDiff(f frame, n queryir.DateDiff) (relational.Expr, frame, error) {
	xs, f, err := b.scalars(f, n.Start, n.End)
	if err != nil {
		return nil, f, err
	}
	if n.Unit == queryir.Millisecond {
		micros := relational.DateDiff{Unit: "MICROSECOND", Start: xs[0], End: xs[1]}
		ms := relational.Arith(relational.OpDiv, micros, relational.Int(1000), model.Decimal)
		return relational.Func("TRUNCATE", model.Int64, ms, relational.Int(0)), f, nil
	}
	unit, ok := unitNames[n.Unit]
	if !ok {
		return nil, f, qerr.Unsupported("DateDiff", "", "cannot count %s units", n.Unit)
	}
	return relational.DateDiff{Unit: unit, Start: xs[0], End: xs[1]}, f, nil
}
