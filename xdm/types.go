package xdm

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

const SchemaNS = "http://www.w3.org/2001/XMLSchema"

type TypeID int16

const NoType TypeID = -1

const (
	AnySimpleType TypeID = iota
	AnyAtomicType
	UntypedAtomic
	String
	Boolean
	Decimal
	Float
	Double
	Duration
	DateTime
	Time
	Date
	GYearMonth
	GYear
	GMonthDay
	GDay
	GMonth
	HexBinary
	Base64Binary
	AnyURI
	QName
	NOTATION

	NormalizedString
	Token
	Language
	NMTOKEN
	Name
	NCName
	ID
	IDREF
	ENTITY

	Integer
	NonPositiveInteger
	NegativeInteger
	Long
	Int
	Short
	Byte
	NonNegativeInteger
	UnsignedLong
	UnsignedInt
	UnsignedShort
	UnsignedByte
	PositiveInteger

	YearMonthDuration
	DayTimeDuration
	DateTimeStamp

	NMTOKENS
	IDREFS
	ENTITIES

	Numeric
	Error

	typeCount
)

func (t TypeID) String() string {
	if t < 0 || t >= typeCount {
		return "xs:untyped"
	}
	return builtins.nodes[t].Name
}

type Variety int8

const (
	VarietyPrimitive Variety = iota
	VarietyDerived
	VarietyList
	VarietyUnion
)

func (v Variety) String() string {
	switch v {
	case VarietyPrimitive:
		return "primitive"
	case VarietyDerived:
		return "derived"
	case VarietyList:
		return "list"
	case VarietyUnion:
		return "union"
	default:
		return "unknown"
	}
}

type Whitespace int8

const (
	Preserve Whitespace = iota
	Replace
	Collapse
)

// Normalize applies the whitespace policy to a lexical form.
func (w Whitespace) Normalize(str string) string {
	switch w {
	case Replace:
		return strings.Map(func(r rune) rune {
			if r == '\t' || r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, str)
	case Collapse:
		return strings.Join(strings.Fields(str), " ")
	default:
		return str
	}
}

type TypeNode struct {
	ID        TypeID
	Name      string
	Variety   Variety
	Base      TypeID
	Primitive TypeID
	Item      TypeID
	Members   []TypeID
	Space     Whitespace
	Abstract  bool

	lexical func(string) bool
	facet   func(Value) bool
}

func (t TypeNode) Atomic() bool {
	return t.Variety == VarietyPrimitive || t.Variety == VarietyDerived
}

// Lattice is an arena of type nodes addressed by their TypeID. A lattice is
// never modified once returned by NewLattice.
type Lattice struct {
	nodes []TypeNode
	names map[string]TypeID
}

var builtins = NewLattice()

// Builtins returns the process wide lattice of built-in types.
func Builtins() *Lattice {
	return builtins
}

func NewLattice() *Lattice {
	l := Lattice{
		nodes: make([]TypeNode, typeCount),
		names: make(map[string]TypeID),
	}
	l.root(AnySimpleType, "anySimpleType")
	l.root(AnyAtomicType, "anyAtomicType")
	l.nodes[AnyAtomicType].Base = AnySimpleType

	l.primitive(UntypedAtomic, "untypedAtomic", Preserve, nil)
	l.primitive(String, "string", Preserve, nil)
	l.primitive(Boolean, "boolean", Collapse, isBoolean)
	l.primitive(Decimal, "decimal", Collapse, isDecimal)
	l.primitive(Float, "float", Collapse, isDouble)
	l.primitive(Double, "double", Collapse, isDouble)
	l.primitive(Duration, "duration", Collapse, isDuration)
	l.primitive(DateTime, "dateTime", Collapse, isDateTime)
	l.primitive(Time, "time", Collapse, isTime)
	l.primitive(Date, "date", Collapse, isDate)
	l.primitive(GYearMonth, "gYearMonth", Collapse, isGYearMonth)
	l.primitive(GYear, "gYear", Collapse, isGYear)
	l.primitive(GMonthDay, "gMonthDay", Collapse, isGMonthDay)
	l.primitive(GDay, "gDay", Collapse, isGDay)
	l.primitive(GMonth, "gMonth", Collapse, isGMonth)
	l.primitive(HexBinary, "hexBinary", Collapse, isHexBinary)
	l.primitive(Base64Binary, "base64Binary", Collapse, isBase64Binary)
	l.primitive(AnyURI, "anyURI", Collapse, nil)
	l.primitive(QName, "QName", Collapse, isQName)
	l.primitive(NOTATION, "NOTATION", Collapse, isQName)
	l.nodes[NOTATION].Abstract = true

	l.derive(NormalizedString, "normalizedString", String, Replace, nil, nil)
	l.derive(Token, "token", NormalizedString, Collapse, nil, nil)
	l.derive(Language, "language", Token, Collapse, isLanguage, nil)
	l.derive(NMTOKEN, "NMTOKEN", Token, Collapse, isNMToken, nil)
	l.derive(Name, "Name", Token, Collapse, isName, nil)
	l.derive(NCName, "NCName", Name, Collapse, isNCName, nil)
	l.derive(ID, "ID", NCName, Collapse, isNCName, nil)
	l.derive(IDREF, "IDREF", NCName, Collapse, isNCName, nil)
	l.derive(ENTITY, "ENTITY", NCName, Collapse, isNCName, nil)

	l.derive(Integer, "integer", Decimal, Collapse, isInteger, nil)
	l.derive(NonPositiveInteger, "nonPositiveInteger", Integer, Collapse, isInteger, between(nil, zero))
	l.derive(NegativeInteger, "negativeInteger", NonPositiveInteger, Collapse, isInteger, between(nil, &minusOne))
	l.derive(Long, "long", Integer, Collapse, isInteger, between(bound("-9223372036854775808"), bound("9223372036854775807")))
	l.derive(Int, "int", Long, Collapse, isInteger, between(bound("-2147483648"), bound("2147483647")))
	l.derive(Short, "short", Int, Collapse, isInteger, between(bound("-32768"), bound("32767")))
	l.derive(Byte, "byte", Short, Collapse, isInteger, between(bound("-128"), bound("127")))
	l.derive(NonNegativeInteger, "nonNegativeInteger", Integer, Collapse, isInteger, between(zero, nil))
	l.derive(UnsignedLong, "unsignedLong", NonNegativeInteger, Collapse, isInteger, between(zero, bound("18446744073709551615")))
	l.derive(UnsignedInt, "unsignedInt", UnsignedLong, Collapse, isInteger, between(zero, bound("4294967295")))
	l.derive(UnsignedShort, "unsignedShort", UnsignedInt, Collapse, isInteger, between(zero, bound("65535")))
	l.derive(UnsignedByte, "unsignedByte", UnsignedShort, Collapse, isInteger, between(zero, bound("255")))
	l.derive(PositiveInteger, "positiveInteger", NonNegativeInteger, Collapse, isInteger, between(&one, nil))

	l.derive(YearMonthDuration, "yearMonthDuration", Duration, Collapse, isYearMonthDuration, nil)
	l.derive(DayTimeDuration, "dayTimeDuration", Duration, Collapse, isDayTimeDuration, nil)
	l.derive(DateTimeStamp, "dateTimeStamp", DateTime, Collapse, isDateTimeStamp, nil)

	l.list(NMTOKENS, "NMTOKENS", NMTOKEN)
	l.list(IDREFS, "IDREFS", IDREF)
	l.list(ENTITIES, "ENTITIES", ENTITY)

	l.union(Numeric, "numeric", Double, Float, Decimal)
	l.union(Error, "error")
	return &l
}

func (l *Lattice) root(id TypeID, name string) {
	l.set(TypeNode{
		ID:        id,
		Name:      name,
		Variety:   VarietyPrimitive,
		Base:      NoType,
		Primitive: NoType,
		Item:      NoType,
		Abstract:  true,
		Space:     Preserve,
	})
}

func (l *Lattice) primitive(id TypeID, name string, ws Whitespace, lexical func(string) bool) {
	l.set(TypeNode{
		ID:        id,
		Name:      name,
		Variety:   VarietyPrimitive,
		Base:      AnyAtomicType,
		Primitive: id,
		Item:      NoType,
		Space:     ws,
		lexical:   lexical,
	})
}

func (l *Lattice) derive(id TypeID, name string, base TypeID, ws Whitespace, lexical func(string) bool, facet func(Value) bool) {
	l.set(TypeNode{
		ID:        id,
		Name:      name,
		Variety:   VarietyDerived,
		Base:      base,
		Primitive: l.nodes[base].Primitive,
		Item:      NoType,
		Space:     ws,
		lexical:   lexical,
		facet:     facet,
	})
}

func (l *Lattice) list(id TypeID, name string, item TypeID) {
	l.set(TypeNode{
		ID:        id,
		Name:      name,
		Variety:   VarietyList,
		Base:      AnySimpleType,
		Primitive: NoType,
		Item:      item,
		Space:     Collapse,
	})
}

func (l *Lattice) union(id TypeID, name string, members ...TypeID) {
	l.set(TypeNode{
		ID:        id,
		Name:      name,
		Variety:   VarietyUnion,
		Base:      AnySimpleType,
		Primitive: NoType,
		Item:      NoType,
		Members:   members,
		Space:     Collapse,
	})
}

func (l *Lattice) set(node TypeNode) {
	node.Name = "xs:" + node.Name
	l.nodes[node.ID] = node
	l.names[node.Name] = node.ID
}

func (l *Lattice) Len() int {
	return len(l.nodes)
}

// Get returns a copy of the type node identified by id.
func (l *Lattice) Get(id TypeID) (TypeNode, bool) {
	if id < 0 || int(id) >= len(l.nodes) {
		return TypeNode{}, false
	}
	node := l.nodes[id]
	node.Members = slices.Clone(node.Members)
	return node, true
}

// Lookup accepts a prefixed name using the xs prefix, a local name or an
// expanded name in the XML Schema namespace.
func (l *Lattice) Lookup(name string) (TypeID, bool) {
	if rest, ok := strings.CutPrefix(name, "Q{"+SchemaNS+"}"); ok {
		name = rest
	}
	if !strings.HasPrefix(name, "xs:") {
		name = "xs:" + name
	}
	id, ok := l.names[name]
	return id, ok
}

func (l *Lattice) Primitive(id TypeID) TypeID {
	if id < 0 || int(id) >= len(l.nodes) {
		return NoType
	}
	return l.nodes[id].Primitive
}

// InstanceOf reports whether values of type t are also instances of target.
// The relation is reflexive and follows base and union member links.
func (l *Lattice) InstanceOf(t, target TypeID) bool {
	if t == target {
		return true
	}
	if t < 0 || target < 0 || int(t) >= len(l.nodes) || int(target) >= len(l.nodes) {
		return false
	}
	for curr := l.nodes[t].Base; curr != NoType; curr = l.nodes[curr].Base {
		if curr == target {
			return true
		}
	}
	for _, m := range l.nodes[target].Members {
		if l.InstanceOf(t, m) {
			return true
		}
	}
	return false
}

// Validate checks a lexical form against the lexical rules of t and of all
// its ancestors.
func (l *Lattice) Validate(t TypeID, str string) bool {
	if t < 0 || int(t) >= len(l.nodes) {
		return false
	}
	node := l.nodes[t]
	switch node.Variety {
	case VarietyList:
		str = Collapse.Normalize(str)
		if str == "" {
			return false
		}
		for _, part := range strings.Fields(str) {
			if !l.Validate(node.Item, part) {
				return false
			}
		}
		return true
	case VarietyUnion:
		for _, m := range node.Members {
			if l.Validate(m, str) {
				return true
			}
		}
		return false
	}
	str = node.Space.Normalize(str)
	for curr := t; curr != NoType; curr = l.nodes[curr].Base {
		if fn := l.nodes[curr].lexical; fn != nil && !fn(str) {
			return false
		}
	}
	return true
}

func (l *Lattice) checkFacets(t TypeID, v Value) bool {
	for curr := t; curr != NoType; curr = l.nodes[curr].Base {
		if fn := l.nodes[curr].facet; fn != nil && !fn(v) {
			return false
		}
	}
	return true
}

func InstanceOf(t, target TypeID) bool {
	return builtins.InstanceOf(t, target)
}

func LookupType(name string) (TypeID, bool) {
	return builtins.Lookup(name)
}

func PrimitiveOf(t TypeID) TypeID {
	return builtins.Primitive(t)
}

func IsNumeric(t TypeID) bool {
	return InstanceOf(t, Numeric)
}

func isDecimalFamily(t TypeID) bool {
	return InstanceOf(t, Decimal)
}

var (
	zero     = &decimal.Zero
	one      = decimal.NewFromInt(1)
	minusOne = decimal.NewFromInt(-1)
)

func bound(str string) *decimal.Decimal {
	d := decimal.RequireFromString(str)
	return &d
}

func between(lo, hi *decimal.Decimal) func(Value) bool {
	return func(v Value) bool {
		d, ok := v.v.(decimal.Decimal)
		if !ok {
			return false
		}
		if lo != nil && d.LessThan(*lo) {
			return false
		}
		if hi != nil && d.GreaterThan(*hi) {
			return false
		}
		return true
	}
}
