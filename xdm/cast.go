package xdm

import (
	"encoding/hex"
	"math"
	"strings"

	"github.com/midbel/xquery/tree"
	"github.com/shopspring/decimal"
)

// Parse builds a value of type t from its lexical form.
func Parse(t TypeID, str string) (Value, error) {
	return builtins.parse(t, str)
}

// Cast converts v to the target type. It fails with XPST0080 when target
// can not be used as a cast target, FORG0001 when the lexical form is not
// valid for the target, and XPTY0004 when the pair of types can not be cast.
func Cast(v Value, target TypeID) (Value, error) {
	return builtins.Cast(v, target)
}

func CanCast(v Value, target TypeID) bool {
	_, err := builtins.Cast(v, target)
	return err == nil
}

// CastTarget reports whether t can be used as the target of a cast.
func CastTarget(t TypeID) error {
	return builtins.castTarget(t)
}

func (l *Lattice) castTarget(t TypeID) error {
	node, ok := l.Get(t)
	if !ok {
		return Errorf(CodeCastTarget, "unknown type")
	}
	if node.Abstract || node.Variety == VarietyList || t == AnySimpleType {
		return Errorf(CodeCastTarget, "%s can not be used as cast target", node.Name)
	}
	return nil
}

func (l *Lattice) Cast(v Value, target TypeID) (Value, error) {
	if err := l.castTarget(target); err != nil {
		return v, err
	}
	if v.Type == target {
		return v, nil
	}
	node := l.nodes[target]
	if node.Variety == VarietyUnion {
		if l.InstanceOf(v.Type, target) {
			return v, nil
		}
		err := invalidValue(v.String(), target)
		for _, m := range node.Members {
			res, e := l.Cast(v, m)
			if e == nil {
				return res, nil
			}
			err = e
		}
		return v, err
	}
	switch src := v.Primitive(); {
	case src == String || src == UntypedAtomic:
		return l.parse(target, v.String())
	case node.Primitive == String || node.Primitive == UntypedAtomic:
		if target == String || target == UntypedAtomic {
			return Value{Type: target, v: v.String()}, nil
		}
		return l.parse(target, v.String())
	case src == AnyURI && node.Primitive == AnyURI:
		return Value{Type: target, v: v.v}, nil
	}
	res, err := castPrimitive(v, node.Primitive)
	if err != nil {
		return v, err
	}
	return l.derive(res, target)
}

func (l *Lattice) parse(t TypeID, str string) (Value, error) {
	if err := l.castTarget(t); err != nil {
		return Value{}, err
	}
	node := l.nodes[t]
	if node.Variety == VarietyUnion {
		for _, m := range node.Members {
			if v, err := l.parse(m, str); err == nil {
				return v, nil
			}
		}
		return Value{}, invalidValue(str, t)
	}
	str = node.Space.Normalize(str)
	if !l.Validate(t, str) {
		return Value{}, invalidValue(str, t)
	}
	val := Value{Type: t}
	switch node.Primitive {
	case String, UntypedAtomic, AnyURI:
		val.v = str
	case Boolean:
		val.v = str == "true" || str == "1"
	case Decimal:
		d, err := decimal.NewFromString(strings.TrimPrefix(str, "+"))
		if err != nil {
			return val, invalidValue(str, t)
		}
		val.v = d
	case Float, Double:
		f, err := parseDouble(str)
		if err != nil && !math.IsInf(f, 0) {
			return val, invalidValue(str, t)
		}
		if node.Primitive == Float {
			f = float64(float32(f))
		}
		val.v = f
	case Duration:
		d, err := parseDuration(str)
		if err != nil {
			return val, invalidValue(str, t)
		}
		val = NewDuration(t, d)
	case DateTime, Date, Time, GYearMonth, GYear, GMonthDay, GDay, GMonth:
		c, err := parseCalendar(node.Primitive, str)
		if err != nil {
			return val, invalidValue(str, t)
		}
		val.v = c
	case HexBinary:
		b, err := hex.DecodeString(str)
		if err != nil {
			return val, invalidValue(str, t)
		}
		val.v = b
	case Base64Binary:
		b, err := decodeBase64(str)
		if err != nil {
			return val, invalidValue(str, t)
		}
		val.v = b
	case QName, NOTATION:
		q, err := tree.ParseName(str)
		if err != nil {
			return val, invalidValue(str, t)
		}
		val.v = q
	default:
		return val, notImplemented(node.Name)
	}
	if !l.checkFacets(t, val) {
		return val, invalidValue(str, t)
	}
	return val, nil
}

func (l *Lattice) derive(v Value, target TypeID) (Value, error) {
	if v.Type == target {
		return v, nil
	}
	switch {
	case l.InstanceOf(target, Integer):
		d, _ := v.Decimal()
		v = Value{Type: target, v: d.Truncate(0)}
	case target == YearMonthDuration || target == DayTimeDuration:
		v = NewDuration(target, v.Duration())
	case target == DateTimeStamp:
		if !v.Calendar().HasZone {
			return v, invalidValue(v.String(), target)
		}
		v.Type = target
	default:
		v.Type = target
	}
	if !l.checkFacets(target, v) {
		return v, invalidValue(v.String(), target)
	}
	return v, nil
}

func castPrimitive(v Value, target TypeID) (Value, error) {
	src := v.Primitive()
	if src == target {
		v.Type = target
		return v, nil
	}
	fail := func() (Value, error) {
		return v, typeError("%s can not be cast to %s", v.Type, target)
	}
	switch target {
	case Float, Double:
		if src != Decimal && src != Float && src != Double && src != Boolean {
			return fail()
		}
		if target == Float {
			return NewFloat(v.Float()), nil
		}
		return NewDouble(v.Float()), nil
	case Decimal:
		switch src {
		case Float, Double:
			d, ok := v.Decimal()
			if !ok {
				return v, Errorf(CodeInvalidLexical, "%s can not be cast to %s", v, target)
			}
			return NewDecimal(d), nil
		case Boolean:
			if v.Bool() {
				return NewDecimal(one), nil
			}
			return NewDecimal(decimal.Zero), nil
		}
	case Boolean:
		switch src {
		case Decimal:
			d, _ := v.Decimal()
			return NewBoolean(!d.IsZero()), nil
		case Float, Double:
			f := v.Float()
			return NewBoolean(f != 0 && !math.IsNaN(f)), nil
		}
	case DateTime:
		if src == Date {
			return NewCalendar(DateTime, v.Calendar()), nil
		}
	case Date:
		if src == DateTime {
			c := v.Calendar()
			c.Hour, c.Minute, c.Second = 0, 0, decimal.Zero
			return NewCalendar(Date, c), nil
		}
	case Time:
		if src == DateTime {
			c := v.Calendar()
			c.Year, c.Month, c.Day = 0, 0, 0
			return NewCalendar(Time, c), nil
		}
	case GYearMonth, GYear, GMonthDay, GDay, GMonth:
		if src == DateTime || src == Date {
			return NewCalendar(target, project(target, v.Calendar())), nil
		}
	case HexBinary, Base64Binary:
		if src == HexBinary || src == Base64Binary {
			return NewBinary(target, v.Bytes()), nil
		}
	case QName:
		if src == NOTATION {
			return NewQName(v.QName()), nil
		}
	}
	return fail()
}

func project(t TypeID, c Calendar) Calendar {
	res := Calendar{
		HasZone: c.HasZone,
		Zone:    c.Zone,
		Year:    1972,
		Month:   1,
		Day:     1,
	}
	switch t {
	case GYearMonth:
		res.Year, res.Month = c.Year, c.Month
	case GYear:
		res.Year = c.Year
	case GMonthDay:
		res.Month, res.Day = c.Month, c.Day
	case GDay:
		res.Month, res.Day = 12, c.Day
	case GMonth:
		res.Month = c.Month
	}
	return res
}
