package xdm

import (
	"bytes"
	"math"
	"strings"
)

type Op int8

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpLt:
		return "lt"
	case OpLe:
		return "le"
	case OpGt:
		return "gt"
	case OpGe:
		return "ge"
	default:
		return "<op>"
	}
}

func (o Op) ordering() bool {
	return o != OpEq && o != OpNe
}

func (o Op) test(cmp int) bool {
	switch o {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}

// ValueCompare compares two atomic values. untypedAtomic operands are
// compared as strings.
func ValueCompare(op Op, a, b Value) (bool, error) {
	if a.Numeric() && b.Numeric() {
		return compareNumbers(op, a, b), nil
	}
	if a.Stringish() && b.Stringish() {
		return op.test(strings.Compare(a.String(), b.String())), nil
	}
	pa, pb := a.Primitive(), b.Primitive()
	switch {
	case pa == Boolean && pb == Boolean:
		return op.test(compareBool(a.Bool(), b.Bool())), nil
	case pa == Duration && pb == Duration:
		return compareDurations(op, a, b)
	case pa == pb && isCalendar(pa):
		if op.ordering() && pa != DateTime && pa != Date && pa != Time {
			break
		}
		x, y := a.Calendar().instant(pa), b.Calendar().instant(pb)
		return op.test(x.Cmp(y)), nil
	case (pa == HexBinary || pa == Base64Binary) && pa == pb:
		return op.test(bytes.Compare(a.Bytes(), b.Bytes())), nil
	case (pa == QName || pa == NOTATION) && pa == pb:
		if op.ordering() {
			break
		}
		return op.test(boolCmp(a.QName().Equal(b.QName()))), nil
	}
	return false, typeError("can not compare %s with %s using %s", a.Type, b.Type, op)
}

// Equal reports whether a eq b holds. Incomparable values are not equal.
func Equal(a, b Value) bool {
	ok, err := ValueCompare(OpEq, a, b)
	return err == nil && ok
}

// Coerce converts an untypedAtomic operand of a general comparison toward the
// type of the other operand.
func Coerce(untyped, other Value) (Value, error) {
	switch {
	case other.Numeric():
		return Cast(untyped, Double)
	case InstanceOf(other.Type, DayTimeDuration):
		return Cast(untyped, DayTimeDuration)
	case InstanceOf(other.Type, YearMonthDuration):
		return Cast(untyped, YearMonthDuration)
	case other.Type == UntypedAtomic:
		return Cast(untyped, String)
	default:
		return Cast(untyped, other.Primitive())
	}
}

// GeneralCompare applies the conversion rules of general comparisons to a
// pair of atomic values before comparing them.
func GeneralCompare(op Op, a, b Value) (bool, error) {
	var err error
	switch {
	case a.Type == UntypedAtomic && b.Type == UntypedAtomic:
		a, _ = Coerce(a, b)
		b, _ = Coerce(b, a)
	case a.Type == UntypedAtomic:
		a, err = Coerce(a, b)
	case b.Type == UntypedAtomic:
		b, err = Coerce(b, a)
	}
	if err != nil {
		return false, err
	}
	return ValueCompare(op, a, b)
}

func compareNumbers(op Op, a, b Value) bool {
	pa, pb := a.Primitive(), b.Primitive()
	if pa == Decimal && pb == Decimal {
		x, _ := a.Decimal()
		y, _ := b.Decimal()
		return op.test(x.Cmp(y))
	}
	x, y := a.Float(), b.Float()
	if math.IsNaN(x) || math.IsNaN(y) {
		return op == OpNe
	}
	switch {
	case x < y:
		return op.test(-1)
	case x > y:
		return op.test(1)
	default:
		return op.test(0)
	}
}

func compareDurations(op Op, a, b Value) (bool, error) {
	x, y := a.Duration(), b.Duration()
	if !op.ordering() {
		return op.test(boolCmp(x.Equal(y))), nil
	}
	switch {
	case InstanceOf(a.Type, YearMonthDuration) && InstanceOf(b.Type, YearMonthDuration):
		return op.test(compareInt(x.Months, y.Months)), nil
	case InstanceOf(a.Type, DayTimeDuration) && InstanceOf(b.Type, DayTimeDuration):
		return op.test(x.Seconds.Cmp(y.Seconds)), nil
	default:
		return false, typeError("%s and %s are not ordered", a.Type, b.Type)
	}
}

func isCalendar(t TypeID) bool {
	switch t {
	case DateTime, Date, Time, GYearMonth, GYear, GMonthDay, GDay, GMonth:
		return true
	default:
		return false
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func boolCmp(eq bool) int {
	if eq {
		return 0
	}
	return 1
}
