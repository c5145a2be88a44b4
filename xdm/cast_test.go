package xdm

import (
	"errors"
	"math"
	"testing"
)

func TestCast(t *testing.T) {
	tests := []struct {
		Input  Value
		Target TypeID
		Want   string
		Type   TypeID
		Code   string
	}{
		{Input: NewString(" 42 "), Target: Integer, Want: "42", Type: Integer},
		{Input: NewString("1.5"), Target: Integer, Code: CodeInvalidValue},
		{Input: NewString("300"), Target: Byte, Code: CodeInvalidValue},
		{Input: NewUntyped("-7"), Target: Short, Want: "-7", Type: Short},
		{Input: NewDouble(1e7), Target: String, Want: "1.0E7", Type: String},
		{Input: NewDouble(3.7), Target: Integer, Want: "3", Type: Integer},
		{Input: NewDouble(math.Inf(1)), Target: Decimal, Code: CodeInvalidLexical},
		{Input: NewDouble(math.NaN()), Target: Integer, Code: CodeInvalidLexical},
		{Input: NewBoolean(true), Target: Integer, Want: "1", Type: Integer},
		{Input: NewInteger(0), Target: Boolean, Want: "false", Type: Boolean},
		{Input: NewInteger(12), Target: Double, Want: "12", Type: Double},
		{Input: NewInteger(12), Target: Token, Want: "12", Type: Token},
		{Input: NewInteger(5), Target: Numeric, Want: "5", Type: Integer},
		{Input: NewString("12"), Target: Numeric, Want: "12", Type: Double},
		{Input: NewString("P1Y2M"), Target: YearMonthDuration, Want: "P1Y2M", Type: YearMonthDuration},
		{Input: NewString("PT90M"), Target: DayTimeDuration, Want: "PT1H30M", Type: DayTimeDuration},
		{Input: NewString("P1Y2DT3H"), Target: YearMonthDuration, Code: CodeInvalidValue},
		{Input: mustParse(Duration, "P1Y2DT3H"), Target: YearMonthDuration, Want: "P1Y", Type: YearMonthDuration},
		{Input: mustParse(Duration, "P1Y2DT3H"), Target: DayTimeDuration, Want: "P2DT3H", Type: DayTimeDuration},
		{Input: NewString("2024-02-30"), Target: Date, Code: CodeInvalidValue},
		{Input: NewString("2024-03-01T24:00:00"), Target: DateTime, Want: "2024-03-02T00:00:00", Type: DateTime},
		{Input: mustParse(DateTime, "2024-03-01T10:20:30Z"), Target: Date, Want: "2024-03-01Z", Type: Date},
		{Input: mustParse(DateTime, "2024-03-01T10:20:30.5+02:00"), Target: Time, Want: "10:20:30.5+02:00", Type: Time},
		{Input: mustParse(Date, "2024-03-01"), Target: GYearMonth, Want: "2024-03", Type: GYearMonth},
		{Input: mustParse(Date, "2024-03-01"), Target: GDay, Want: "---01", Type: GDay},
		{Input: mustParse(DateTime, "2024-03-01T10:20:30"), Target: DateTimeStamp, Code: CodeInvalidValue},
		{Input: NewString("0a1f"), Target: HexBinary, Want: "0A1F", Type: HexBinary},
		{Input: mustParse(HexBinary, "0A1F"), Target: Base64Binary, Want: "Ch8=", Type: Base64Binary},
		{Input: NewString("foo"), Target: AnyAtomicType, Code: CodeCastTarget},
		{Input: NewString("foo"), Target: NMTOKENS, Code: CodeCastTarget},
		{Input: NewInteger(1), Target: Date, Code: CodeType},
		{Input: mustParse(Date, "2024-03-01"), Target: Boolean, Code: CodeType},
	}
	for _, c := range tests {
		got, err := Cast(c.Input, c.Target)
		if c.Code != "" {
			if err == nil {
				t.Errorf("%s as %s: expected error %s, got %s", c.Input, c.Target, c.Code, got)
			} else if !errors.Is(err, Code(c.Code)) {
				t.Errorf("%s as %s: error code mismatched! want %s, got %s", c.Input, c.Target, c.Code, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s as %s: unexpected error: %s", c.Input, c.Target, err)
			continue
		}
		if got.Type != c.Type {
			t.Errorf("%s as %s: type mismatched! want %s, got %s", c.Input, c.Target, c.Type, got.Type)
		}
		if str := got.String(); str != c.Want {
			t.Errorf("%s as %s: value mismatched! want %s, got %s", c.Input, c.Target, c.Want, str)
		}
	}
}

func TestCanCast(t *testing.T) {
	if !CanCast(NewString("12"), Integer) {
		t.Errorf("12 should be castable to xs:integer")
	}
	if CanCast(NewString("abc"), Integer) {
		t.Errorf("abc should not be castable to xs:integer")
	}
}

func TestCastRoundTrip(t *testing.T) {
	tests := []struct {
		Type   TypeID
		Inputs []string
	}{
		{Type: Integer, Inputs: []string{"0", "-12", "123456789012345678901234567890"}},
		{Type: Decimal, Inputs: []string{"1.5", "-0.25", "100"}},
		{Type: Boolean, Inputs: []string{"true", "false"}},
		{Type: Double, Inputs: []string{"1.5", "INF", "-INF", "1.0E10"}},
		{Type: Date, Inputs: []string{"2024-02-29", "1999-12-31Z", "2000-01-01-05:00"}},
		{Type: DateTime, Inputs: []string{"2024-02-29T13:14:15", "2024-02-29T13:14:15.25Z"}},
		{Type: DayTimeDuration, Inputs: []string{"P1DT2H3M4S", "-PT5M"}},
		{Type: YearMonthDuration, Inputs: []string{"P1Y", "-P2Y3M"}},
		{Type: GMonthDay, Inputs: []string{"--02-29", "--12-25Z"}},
		{Type: HexBinary, Inputs: []string{"CAFE", ""}},
	}
	for _, c := range tests {
		for _, in := range c.Inputs {
			val, err := Cast(NewString(in), c.Type)
			if err != nil {
				t.Errorf("%s as %s: unexpected error: %s", in, c.Type, err)
				continue
			}
			back, err := Cast(val, String)
			if err != nil {
				t.Errorf("%s as xs:string: unexpected error: %s", val, err)
				continue
			}
			if back.String() != in {
				t.Errorf("round trip failed for %s: want %s, got %s", c.Type, in, back)
			}
		}
	}
}

func TestCanonicalDouble(t *testing.T) {
	tests := []struct {
		Input Value
		Want  string
	}{
		{Input: NewDouble(0.5), Want: "0.5"},
		{Input: NewDouble(1e6), Want: "1.0E6"},
		{Input: NewDouble(123456.5), Want: "123456.5"},
		{Input: NewDouble(1e-7), Want: "1.0E-7"},
		{Input: NewDouble(-2.5e10), Want: "-2.5E10"},
		{Input: NewDouble(math.Copysign(0, -1)), Want: "-0"},
		{Input: NewDouble(math.NaN()), Want: "NaN"},
		{Input: NewFloat(0.1), Want: "0.1"},
	}
	for _, c := range tests {
		if got := c.Input.String(); got != c.Want {
			t.Errorf("canonical form mismatched! want %s, got %s", c.Want, got)
		}
	}
}

func mustParse(t TypeID, str string) Value {
	v, err := Parse(t, str)
	if err != nil {
		panic(err)
	}
	return v
}
