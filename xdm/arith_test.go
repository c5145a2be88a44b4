package xdm

import (
	"errors"
	"testing"
)

func TestArithmetic(t *testing.T) {
	tests := []struct {
		Op    ArithOp
		Left  Value
		Right Value
		Want  string
		Type  TypeID
		Code  string
	}{
		{Op: OpAdd, Left: NewInteger(1), Right: NewInteger(1), Want: "2", Type: Decimal},
		{Op: OpSub, Left: mustParse(Byte, "10"), Right: NewInteger(3), Want: "7", Type: Decimal},
		{Op: OpMul, Left: mustParse(Decimal, "1.5"), Right: NewInteger(2), Want: "3", Type: Decimal},
		{Op: OpDiv, Left: NewInteger(1), Right: NewInteger(4), Want: "0.25", Type: Decimal},
		{Op: OpDiv, Left: NewInteger(1), Right: NewInteger(3), Want: "0.333333333333333333", Type: Decimal},
		{Op: OpDiv, Left: NewInteger(1), Right: NewInteger(0), Code: CodeDivideByZero},
		{Op: OpIdiv, Left: NewInteger(5), Right: NewInteger(2), Want: "2", Type: Integer},
		{Op: OpIdiv, Left: NewInteger(-5), Right: NewInteger(2), Want: "-2", Type: Integer},
		{Op: OpIdiv, Left: NewInteger(5), Right: NewInteger(0), Code: CodeDivideByZero},
		{Op: OpMod, Left: NewInteger(-5), Right: NewInteger(2), Want: "-1", Type: Decimal},
		{Op: OpMod, Left: NewInteger(5), Right: NewInteger(0), Code: CodeDivideByZero},
		{Op: OpDiv, Left: NewDouble(1), Right: NewDouble(0), Want: "INF", Type: Double},
		{Op: OpAdd, Left: NewFloat(1.5), Right: NewInteger(1), Want: "2.5", Type: Float},
		{Op: OpAdd, Left: NewFloat(1.5), Right: NewDouble(1), Want: "2.5", Type: Double},
		{Op: OpIdiv, Left: NewDouble(7.5), Right: NewDouble(2), Want: "3", Type: Integer},
		{Op: OpMul, Left: NewUntyped("2"), Right: NewInteger(3), Want: "6", Type: Double},
		{Op: OpAdd, Left: NewUntyped("abc"), Right: NewInteger(3), Code: CodeInvalidValue},
		{Op: OpAdd, Left: NewString("1"), Right: NewInteger(1), Code: CodeType},
		{Op: OpAdd, Left: mustParse(YearMonthDuration, "P1Y"), Right: mustParse(YearMonthDuration, "P6M"), Want: "P1Y6M", Type: YearMonthDuration},
		{Op: OpSub, Left: mustParse(DayTimeDuration, "PT1H"), Right: mustParse(DayTimeDuration, "PT2H"), Want: "-PT1H", Type: DayTimeDuration},
		{Op: OpAdd, Left: mustParse(YearMonthDuration, "P1Y"), Right: mustParse(DayTimeDuration, "PT1H"), Code: CodeType},
		{Op: OpMul, Left: mustParse(DayTimeDuration, "PT1H"), Right: NewInteger(2), Want: "PT2H", Type: DayTimeDuration},
		{Op: OpMul, Left: mustParse(Decimal, "0.5"), Right: mustParse(YearMonthDuration, "P1Y"), Want: "P6M", Type: YearMonthDuration},
		{Op: OpDiv, Left: mustParse(DayTimeDuration, "PT1H"), Right: NewInteger(0), Code: CodeDurationOverflow},
		{Op: OpDiv, Left: mustParse(DayTimeDuration, "PT1H"), Right: NewInteger(4), Want: "PT15M", Type: DayTimeDuration},
		{Op: OpDiv, Left: mustParse(YearMonthDuration, "P1Y"), Right: mustParse(YearMonthDuration, "P6M"), Want: "2", Type: Decimal},
		{Op: OpAdd, Left: mustParse(Date, "2024-01-01"), Right: mustParse(DayTimeDuration, "P1D"), Code: CodeUnidentified},
	}
	for _, c := range tests {
		got, err := Arithmetic(c.Op, c.Left, c.Right)
		if c.Code != "" {
			if !errors.Is(err, Code(c.Code)) {
				t.Errorf("%s %s %s: error mismatched! want %s, got %v", c.Left, c.Op, c.Right, c.Code, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s %s %s: unexpected error: %s", c.Left, c.Op, c.Right, err)
			continue
		}
		if got.Type != c.Type {
			t.Errorf("%s %s %s: type mismatched! want %s, got %s", c.Left, c.Op, c.Right, c.Type, got.Type)
		}
		if str := got.String(); str != c.Want {
			t.Errorf("%s %s %s: result mismatched! want %s, got %s", c.Left, c.Op, c.Right, c.Want, str)
		}
	}
}

func TestDateArithmeticNotImplemented(t *testing.T) {
	_, err := Arithmetic(OpSub, mustParse(Date, "2024-01-01"), mustParse(Date, "2023-01-01"))
	if !errors.Is(err, ErrImplemented) {
		t.Errorf("expected not implemented error, got %v", err)
	}
}

func TestNegate(t *testing.T) {
	tests := []struct {
		Input Value
		Want  string
		Type  TypeID
	}{
		{Input: NewInteger(3), Want: "-3", Type: Integer},
		{Input: mustParse(Decimal, "1.5"), Want: "-1.5", Type: Decimal},
		{Input: NewDouble(2), Want: "-2", Type: Double},
		{Input: NewUntyped("4"), Want: "-4", Type: Double},
	}
	for _, c := range tests {
		got, err := Negate(c.Input)
		if err != nil {
			t.Errorf("-%s: unexpected error: %s", c.Input, err)
			continue
		}
		if got.Type != c.Type || got.String() != c.Want {
			t.Errorf("-%s: want %s(%s), got %s(%s)", c.Input, c.Want, c.Type, got, got.Type)
		}
	}
}
