package xdm

import (
	"testing"
)

func TestInstanceOf(t *testing.T) {
	tests := []struct {
		Type   TypeID
		Target TypeID
		Want   bool
	}{
		{Type: Integer, Target: Integer, Want: true},
		{Type: Byte, Target: Integer, Want: true},
		{Type: Byte, Target: Decimal, Want: true},
		{Type: Integer, Target: Numeric, Want: true},
		{Type: Double, Target: Numeric, Want: true},
		{Type: String, Target: Numeric, Want: false},
		{Type: NCName, Target: String, Want: true},
		{Type: String, Target: NCName, Want: false},
		{Type: DayTimeDuration, Target: Duration, Want: true},
		{Type: DateTimeStamp, Target: AnyAtomicType, Want: true},
		{Type: UntypedAtomic, Target: String, Want: false},
	}
	for _, c := range tests {
		got := InstanceOf(c.Type, c.Target)
		if got != c.Want {
			t.Errorf("%s instance of %s: want %t, got %t", c.Type, c.Target, c.Want, got)
		}
	}
}

func TestLookup(t *testing.T) {
	names := []string{
		"xs:integer",
		"integer",
		"Q{" + SchemaNS + "}integer",
	}
	for _, n := range names {
		id, ok := LookupType(n)
		if !ok || id != Integer {
			t.Errorf("%s: type not found (got %s)", n, id)
		}
	}
	if _, ok := LookupType("xs:foobar"); ok {
		t.Errorf("xs:foobar: type should not be found")
	}
}

func TestLatticeIsolated(t *testing.T) {
	l := NewLattice()
	if l == Builtins() {
		t.Fatalf("new lattice should not be the builtins lattice")
	}
	if l.Len() != Builtins().Len() {
		t.Errorf("lattice size mismatched: want %d, got %d", Builtins().Len(), l.Len())
	}
	node, ok := l.Get(Numeric)
	if !ok {
		t.Fatalf("xs:numeric not found")
	}
	node.Members[0] = String
	if other, _ := l.Get(Numeric); other.Members[0] != Double {
		t.Errorf("lattice modified through copy of type node")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		Type  TypeID
		Input string
		Want  bool
	}{
		{Type: Integer, Input: "-12", Want: true},
		{Type: Integer, Input: "1.5", Want: false},
		{Type: Decimal, Input: ".5", Want: true},
		{Type: Double, Input: "-INF", Want: true},
		{Type: Double, Input: "1e10", Want: true},
		{Type: Boolean, Input: " true ", Want: true},
		{Type: Language, Input: "en-US", Want: true},
		{Type: NCName, Input: "foo:bar", Want: false},
		{Type: QName, Input: "foo:bar", Want: true},
		{Type: NMTOKENS, Input: "a b  c", Want: true},
		{Type: NMTOKENS, Input: "", Want: false},
		{Type: Numeric, Input: "42", Want: true},
		{Type: YearMonthDuration, Input: "P1Y2M", Want: true},
		{Type: YearMonthDuration, Input: "P1D", Want: false},
		{Type: DayTimeDuration, Input: "P1DT2H", Want: true},
		{Type: DayTimeDuration, Input: "P1M", Want: false},
		{Type: Duration, Input: "P", Want: false},
		{Type: Duration, Input: "P1YT", Want: false},
		{Type: Date, Input: "2024-02-29", Want: true},
		{Type: Date, Input: "2023-02-29", Want: false},
		{Type: Time, Input: "24:00:00", Want: true},
		{Type: Time, Input: "24:00:01", Want: false},
		{Type: DateTimeStamp, Input: "2024-01-01T00:00:00", Want: false},
		{Type: DateTimeStamp, Input: "2024-01-01T00:00:00+01:00", Want: true},
		{Type: HexBinary, Input: "0A1", Want: false},
	}
	for _, c := range tests {
		got := Builtins().Validate(c.Type, c.Input)
		if got != c.Want {
			t.Errorf("%s(%q): want %t, got %t", c.Type, c.Input, c.Want, got)
		}
	}
}
