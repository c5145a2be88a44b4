package xdm

import (
	"errors"
	"math"
	"testing"
)

func TestValueCompare(t *testing.T) {
	tests := []struct {
		Op    Op
		Left  Value
		Right Value
		Want  bool
		Code  string
	}{
		{Op: OpLt, Left: NewInteger(1), Right: NewDouble(1.5), Want: true},
		{Op: OpEq, Left: NewInteger(2), Right: mustParse(Decimal, "2.0"), Want: true},
		{Op: OpEq, Left: NewDouble(math.NaN()), Right: NewDouble(math.NaN()), Want: false},
		{Op: OpNe, Left: NewDouble(math.NaN()), Right: NewDouble(1), Want: true},
		{Op: OpLt, Left: NewString("a"), Right: NewString("b"), Want: true},
		{Op: OpEq, Left: NewUntyped("a"), Right: NewString("a"), Want: true},
		{Op: OpEq, Left: NewAnyURI("http://x"), Right: NewString("http://x"), Want: true},
		{Op: OpGt, Left: NewBoolean(true), Right: NewBoolean(false), Want: true},
		{Op: OpEq, Left: mustParse(Duration, "P1Y"), Right: mustParse(YearMonthDuration, "P12M"), Want: true},
		{Op: OpLt, Left: mustParse(DayTimeDuration, "PT1H"), Right: mustParse(DayTimeDuration, "PT2H"), Want: true},
		{Op: OpLt, Left: mustParse(Duration, "P1Y"), Right: mustParse(Duration, "P2Y"), Code: CodeType},
		{Op: OpEq, Left: mustParse(DateTime, "2024-01-01T10:00:00Z"), Right: mustParse(DateTime, "2024-01-01T12:00:00+02:00"), Want: true},
		{Op: OpLt, Left: mustParse(Date, "2023-12-31"), Right: mustParse(Date, "2024-01-01"), Want: true},
		{Op: OpLt, Left: mustParse(GYear, "2023"), Right: mustParse(GYear, "2024"), Code: CodeType},
		{Op: OpEq, Left: NewInteger(1), Right: NewString("1"), Code: CodeType},
		{Op: OpEq, Left: mustParse(QName, "x:a"), Right: mustParse(QName, "y:a"), Want: true},
	}
	for _, c := range tests {
		got, err := ValueCompare(c.Op, c.Left, c.Right)
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
		if got != c.Want {
			t.Errorf("%s %s %s: want %t, got %t", c.Left, c.Op, c.Right, c.Want, got)
		}
	}
}

func TestGeneralCompare(t *testing.T) {
	tests := []struct {
		Op    Op
		Left  Value
		Right Value
		Want  bool
		Code  string
	}{
		{Op: OpEq, Left: NewUntyped("1"), Right: NewInteger(1), Want: true},
		{Op: OpEq, Left: NewUntyped("1.0"), Right: NewUntyped("1"), Want: false},
		{Op: OpEq, Left: NewUntyped("PT60M"), Right: mustParse(DayTimeDuration, "PT1H"), Want: true},
		{Op: OpEq, Left: NewUntyped("P12M"), Right: mustParse(YearMonthDuration, "P1Y"), Want: true},
		{Op: OpEq, Left: NewUntyped("2024-01-01"), Right: mustParse(Date, "2024-01-01"), Want: true},
		{Op: OpEq, Left: NewUntyped("abc"), Right: NewInteger(1), Code: CodeInvalidValue},
		{Op: OpGt, Left: NewInteger(3), Right: NewUntyped("2"), Want: true},
	}
	for _, c := range tests {
		got, err := GeneralCompare(c.Op, c.Left, c.Right)
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
		if got != c.Want {
			t.Errorf("%s %s %s: want %t, got %t", c.Left, c.Op, c.Right, c.Want, got)
		}
	}
}

func TestKey(t *testing.T) {
	if NewInteger(1).Key() != NewDouble(1).Key() {
		t.Errorf("1 and 1e0 should share the same key")
	}
	if NewString("1").Key() == NewInteger(1).Key() {
		t.Errorf("\"1\" and 1 should not share the same key")
	}
	if NewUntyped("a").Key() != NewString("a").Key() {
		t.Errorf("untyped and string should share the same key")
	}
}
