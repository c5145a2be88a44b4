package xdm

import (
	"math"

	"github.com/shopspring/decimal"
)

type ArithOp int8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpIdiv
	OpMod
)

func (o ArithOp) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "div"
	case OpIdiv:
		return "idiv"
	case OpMod:
		return "mod"
	default:
		return "<arith>"
	}
}

type class int8

const (
	classOther class = iota
	classNumeric
	classDuration
	classCalendar
)

func classOf(v Value) class {
	switch p := v.Primitive(); {
	case IsNumeric(v.Type):
		return classNumeric
	case p == Duration:
		return classDuration
	case isCalendar(p):
		return classCalendar
	default:
		return classOther
	}
}

type pair struct {
	left  class
	right class
}

type arithFunc func(ArithOp, Value, Value) (Value, error)

// one table per operator keyed by the classes of both operands.
var arithmetic = map[ArithOp]map[pair]arithFunc{
	OpAdd: {
		{classNumeric, classNumeric}:   numericOp,
		{classDuration, classDuration}: durationOp,
	},
	OpSub: {
		{classNumeric, classNumeric}:   numericOp,
		{classDuration, classDuration}: durationOp,
	},
	OpMul: {
		{classNumeric, classNumeric}:  numericOp,
		{classDuration, classNumeric}: scaleDuration,
		{classNumeric, classDuration}: func(op ArithOp, a, b Value) (Value, error) {
			return scaleDuration(op, b, a)
		},
	},
	OpDiv: {
		{classNumeric, classNumeric}:   numericOp,
		{classDuration, classNumeric}:  scaleDuration,
		{classDuration, classDuration}: divideDurations,
	},
	OpIdiv: {
		{classNumeric, classNumeric}: numericOp,
	},
	OpMod: {
		{classNumeric, classNumeric}: numericOp,
	},
}

// Arithmetic applies op to a pair of atomic values. untypedAtomic operands
// are cast to xs:double first.
func Arithmetic(op ArithOp, a, b Value) (Value, error) {
	var err error
	if a.Type == UntypedAtomic {
		if a, err = Cast(a, Double); err != nil {
			return a, err
		}
	}
	if b.Type == UntypedAtomic {
		if b, err = Cast(b, Double); err != nil {
			return b, err
		}
	}
	ca, cb := classOf(a), classOf(b)
	if ca == classCalendar || cb == classCalendar {
		return a, notImplemented("date/time arithmetic")
	}
	fn, ok := arithmetic[op][pair{ca, cb}]
	if !ok {
		return a, typeError("operator %s not defined for %s and %s", op, a.Type, b.Type)
	}
	return fn(op, a, b)
}

// Negate implements the unary minus.
func Negate(v Value) (Value, error) {
	if v.Type == UntypedAtomic {
		var err error
		if v, err = Cast(v, Double); err != nil {
			return v, err
		}
	}
	switch x := v.v.(type) {
	case decimal.Decimal:
		if InstanceOf(v.Type, Integer) {
			return Value{Type: Integer, v: x.Neg()}, nil
		}
		return NewDecimal(x.Neg()), nil
	case float64:
		return Value{Type: v.Primitive(), v: -x}, nil
	default:
		return v, typeError("unary minus not defined for %s", v.Type)
	}
}

func numericOp(op ArithOp, a, b Value) (Value, error) {
	pa, pb := a.Primitive(), b.Primitive()
	switch {
	case pa == Double || pb == Double:
		return floatOp(op, a.Float(), b.Float(), false)
	case pa == Float || pb == Float:
		return floatOp(op, a.Float(), b.Float(), true)
	default:
		x, _ := a.Decimal()
		y, _ := b.Decimal()
		return decimalOp(op, x, y)
	}
}

func decimalOp(op ArithOp, x, y decimal.Decimal) (Value, error) {
	switch op {
	case OpAdd:
		return NewDecimal(x.Add(y)), nil
	case OpSub:
		return NewDecimal(x.Sub(y)), nil
	case OpMul:
		return NewDecimal(x.Mul(y)), nil
	}
	if y.IsZero() {
		return Value{}, Wrap(CodeDivideByZero, ErrZero)
	}
	switch op {
	case OpDiv:
		return NewDecimal(x.DivRound(y, 18)), nil
	case OpIdiv:
		q, _ := x.QuoRem(y, 0)
		return Value{Type: Integer, v: q}, nil
	case OpMod:
		return NewDecimal(x.Mod(y)), nil
	default:
		return Value{}, notImplemented(op.String())
	}
}

func floatOp(op ArithOp, x, y float64, single bool) (Value, error) {
	var res float64
	switch op {
	case OpAdd:
		res = x + y
	case OpSub:
		res = x - y
	case OpMul:
		res = x * y
	case OpDiv:
		res = x / y
	case OpMod:
		res = math.Mod(x, y)
	case OpIdiv:
		if y == 0 {
			return Value{}, Wrap(CodeDivideByZero, ErrZero)
		}
		if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) {
			return Value{}, Errorf(CodeNumericOverflow, "idiv: invalid operand")
		}
		q := math.Trunc(x / y)
		return Value{Type: Integer, v: decimal.NewFromFloat(q)}, nil
	}
	if single {
		return NewFloat(res), nil
	}
	return NewDouble(res), nil
}

func durationKind(a, b Value) (TypeID, error) {
	switch {
	case InstanceOf(a.Type, YearMonthDuration) && InstanceOf(b.Type, YearMonthDuration):
		return YearMonthDuration, nil
	case InstanceOf(a.Type, DayTimeDuration) && InstanceOf(b.Type, DayTimeDuration):
		return DayTimeDuration, nil
	default:
		return NoType, typeError("operation not defined for %s and %s", a.Type, b.Type)
	}
}

func durationOp(op ArithOp, a, b Value) (Value, error) {
	kind, err := durationKind(a, b)
	if err != nil {
		return a, err
	}
	x, y := a.Duration(), b.Duration()
	if op == OpSub {
		y.Months, y.Seconds = -y.Months, y.Seconds.Neg()
	}
	return NewDuration(kind, Duration{
		Months:  x.Months + y.Months,
		Seconds: x.Seconds.Add(y.Seconds),
	}), nil
}

func scaleDuration(op ArithOp, d, n Value) (Value, error) {
	kind := d.Type
	if !InstanceOf(kind, YearMonthDuration) && !InstanceOf(kind, DayTimeDuration) {
		return d, typeError("operator %s not defined for %s", op, d.Type)
	}
	if InstanceOf(kind, YearMonthDuration) {
		kind = YearMonthDuration
	} else {
		kind = DayTimeDuration
	}
	if f := n.Float(); math.IsNaN(f) {
		return d, Errorf(CodeNaN, "duration can not be scaled by NaN")
	} else if math.IsInf(f, 0) {
		return d, Errorf(CodeDurationOverflow, "duration overflow")
	}
	factor, _ := n.Decimal()
	if op == OpDiv {
		if factor.IsZero() {
			return d, Wrap(CodeDurationOverflow, ErrZero)
		}
		factor = decimal.NewFromInt(1).DivRound(factor, 18)
	}
	x := d.Duration()
	res := Duration{
		Months:  decimal.NewFromInt(x.Months).Mul(factor).Round(0).IntPart(),
		Seconds: x.Seconds.Mul(factor).Round(6),
	}
	return NewDuration(kind, res), nil
}

func divideDurations(_ ArithOp, a, b Value) (Value, error) {
	kind, err := durationKind(a, b)
	if err != nil {
		return a, err
	}
	x, y := a.Duration(), b.Duration()
	if kind == YearMonthDuration {
		if y.Months == 0 {
			return a, Wrap(CodeDivideByZero, ErrZero)
		}
		return NewDecimal(decimal.NewFromInt(x.Months).DivRound(decimal.NewFromInt(y.Months), 18)), nil
	}
	if y.Seconds.IsZero() {
		return a, Wrap(CodeDivideByZero, ErrZero)
	}
	return NewDecimal(x.Seconds.DivRound(y.Seconds, 18)), nil
}
