package xdm

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/midbel/xquery/tree"
	"github.com/shopspring/decimal"
)

// Value is an atomic value. The payload depends on the primitive type:
//
//	string, untypedAtomic, anyURI: string
//	boolean: bool
//	decimal and integer types: decimal.Decimal
//	float, double: float64
//	duration types: Duration
//	date and time types: Calendar
//	QName, NOTATION: tree.QName
//	hexBinary, base64Binary: []byte
type Value struct {
	Type TypeID
	v    any
}

func NewString(str string) Value {
	return Value{Type: String, v: str}
}

func NewUntyped(str string) Value {
	return Value{Type: UntypedAtomic, v: str}
}

func NewAnyURI(str string) Value {
	return Value{Type: AnyURI, v: str}
}

func NewBoolean(b bool) Value {
	return Value{Type: Boolean, v: b}
}

func NewDecimal(d decimal.Decimal) Value {
	return Value{Type: Decimal, v: d}
}

func NewInteger(n int64) Value {
	return Value{Type: Integer, v: decimal.NewFromInt(n)}
}

func NewDouble(f float64) Value {
	return Value{Type: Double, v: f}
}

func NewFloat(f float64) Value {
	return Value{Type: Float, v: float64(float32(f))}
}

func NewDuration(t TypeID, d Duration) Value {
	switch t {
	case YearMonthDuration:
		d.Seconds = decimal.Zero
	case DayTimeDuration:
		d.Months = 0
	}
	return Value{Type: t, v: d}
}

func NewCalendar(t TypeID, c Calendar) Value {
	return Value{Type: t, v: c}
}

func NewQName(q tree.QName) Value {
	return Value{Type: QName, v: q}
}

func NewBinary(t TypeID, b []byte) Value {
	return Value{Type: t, v: b}
}

// Primitive returns the primitive type of the value. untypedAtomic is
// considered as its own primitive.
func (v Value) Primitive() TypeID {
	return PrimitiveOf(v.Type)
}

func (v Value) Payload() any {
	return v.v
}

func (v Value) Numeric() bool {
	return IsNumeric(v.Type)
}

// Stringish reports whether the value compares as a string.
func (v Value) Stringish() bool {
	switch v.Primitive() {
	case String, UntypedAtomic, AnyURI:
		return true
	default:
		return false
	}
}

func (v Value) Bool() bool {
	b, _ := v.v.(bool)
	return b
}

func (v Value) Decimal() (decimal.Decimal, bool) {
	switch x := v.v.(type) {
	case decimal.Decimal:
		return x, true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	default:
		return decimal.Zero, false
	}
}

func (v Value) Float() float64 {
	switch x := v.v.(type) {
	case float64:
		return x
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

func (v Value) Duration() Duration {
	d, _ := v.v.(Duration)
	return d
}

func (v Value) Calendar() Calendar {
	c, _ := v.v.(Calendar)
	return c
}

func (v Value) QName() tree.QName {
	q, _ := v.v.(tree.QName)
	return q
}

func (v Value) Bytes() []byte {
	b, _ := v.v.([]byte)
	return b
}

// String returns the canonical lexical form of the value.
func (v Value) String() string {
	switch x := v.v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case float64:
		return formatDouble(x, v.Primitive() == Float)
	case Duration:
		return formatDuration(v.Type, x)
	case Calendar:
		return formatCalendar(v.Primitive(), x)
	case tree.QName:
		return x.QualifiedName()
	case []byte:
		if v.Primitive() == Base64Binary {
			return base64.StdEncoding.EncodeToString(x)
		}
		return strings.ToUpper(hex.EncodeToString(x))
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// Key returns a string identifying the value for map keys. Values that are
// equal as map keys (eg 1 and 1.0e0) share the same key.
func (v Value) Key() string {
	switch x := v.v.(type) {
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	case decimal.Decimal:
		return "n:" + x.String()
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "n:" + formatDouble(x, false)
		}
		return "n:" + decimal.NewFromFloat(x).String()
	case Calendar:
		return fmt.Sprintf("%d:%s", v.Primitive(), x.instant(v.Primitive()).String())
	default:
		return fmt.Sprintf("%d:%s", v.Primitive(), v.String())
	}
}

func formatDouble(f float64, single bool) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case f == 0:
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}
	bits := 64
	if single {
		bits = 32
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e6 {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	str := strconv.FormatFloat(f, 'E', -1, bits)
	mant, exp, _ := strings.Cut(str, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(exp, "+-0")
	if exp == "" {
		exp = "0"
	}
	if neg {
		exp = "-" + exp
	}
	return mant + "E" + exp
}

func parseDouble(str string) (float64, error) {
	switch str {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(str, 64)
}
