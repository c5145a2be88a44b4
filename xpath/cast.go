package xpath

import (
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

type occurrence int8

const (
	exactlyOne occurrence = iota
	zeroOrOne
	zeroOrMore
	oneOrMore
)

func (o occurrence) accept(n int) bool {
	switch o {
	case zeroOrOne:
		return n <= 1
	case zeroOrMore:
		return true
	case oneOrMore:
		return n >= 1
	default:
		return n == 1
	}
}

func (o occurrence) String() string {
	switch o {
	case zeroOrOne:
		return "?"
	case zeroOrMore:
		return "*"
	case oneOrMore:
		return "+"
	default:
		return ""
	}
}

type itemKind int8

const (
	itemAny itemKind = iota
	itemAtomic
	itemNode
	itemMap
	itemArray
	itemEmpty
)

// seqType is a sequence type as used by instance of and treat as.
type seqType struct {
	kind   itemKind
	atomic xdm.TypeID
	test   nodeTest
	occ    occurrence
}

func (t seqType) matchItem(ctx Context, item Item) bool {
	switch t.kind {
	case itemAny:
		return true
	case itemAtomic:
		v, ok := item.Atomic()
		return ok && xdm.InstanceOf(v.Type, t.atomic)
	case itemNode:
		n, ok := item.Node()
		if !ok {
			return false
		}
		return t.test == nil || t.test.match(ctx.Facade(), n, ctx.Facade().Kind(n))
	case itemMap:
		_, ok := item.(*Map)
		return ok
	case itemArray:
		_, ok := item.(*Array)
		return ok
	default:
		return false
	}
}

func (t seqType) match(ctx Context, items []Item) bool {
	if t.kind == itemEmpty {
		return len(items) == 0
	}
	if !t.occ.accept(len(items)) {
		return false
	}
	for _, i := range items {
		if !t.matchItem(ctx, i) {
			return false
		}
	}
	return true
}

func (t seqType) String() string {
	var str string
	switch t.kind {
	case itemAtomic:
		str = t.atomic.String()
	case itemNode:
		if t.test == nil {
			str = "node()"
		} else {
			str = t.test.String()
		}
	case itemMap:
		str = "map(*)"
	case itemArray:
		str = "array(*)"
	case itemEmpty:
		return "empty-sequence()"
	default:
		str = "item()"
	}
	return str + t.occ.String()
}

type cast struct {
	base
	expr     Expr
	target   xdm.TypeID
	optional bool
}

func newCast(expr Expr, target xdm.TypeID, optional bool) *cast {
	e := cast{
		expr:     expr,
		target:   target,
		optional: optional,
	}
	e.info = combine(expr)
	return &e
}

func (e *cast) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	get := optionalAtomic(ctx, seq)
	return Lazy(func() (*Sequence, tree.Future, error) {
		v, fut, err := get()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if v == nil {
			if e.optional {
				return Empty(), nil, nil
			}
			return nil, nil, typeError("empty sequence can not be cast to %s", e.target)
		}
		res, err := xdm.Cast(*v, e.target)
		if err != nil {
			return nil, nil, err
		}
		return Singleton(Atomic(res)), nil, nil
	}), nil
}

// castable never reports the errors of the cast itself, only those of its
// operand.
type castable struct {
	base
	expr     Expr
	target   xdm.TypeID
	optional bool
}

func newCastable(expr Expr, target xdm.TypeID, optional bool) *castable {
	e := castable{
		expr:     expr,
		target:   target,
		optional: optional,
	}
	e.info = combine(expr)
	return &e
}

func (e *castable) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	atoms := seq.Atomize(ctx)
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := atoms.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		switch len(atoms.buf) {
		case 0:
			return boolSeq(e.optional), nil, nil
		case 1:
			v, _ := atoms.buf[0].Atomic()
			return boolSeq(xdm.CanCast(v, e.target)), nil, nil
		default:
			return boolSeq(false), nil, nil
		}
	}), nil
}

type instanceOf struct {
	base
	expr Expr
	kind seqType
}

func newInstanceOf(expr Expr, kind seqType) *instanceOf {
	e := instanceOf{
		expr: expr,
		kind: kind,
	}
	e.info = combine(expr)
	return &e
}

func (e *instanceOf) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	return seq.MapAll(func(items []Item) (*Sequence, error) {
		return boolSeq(e.kind.match(ctx, items)), nil
	}), nil
}

type treat struct {
	base
	expr Expr
	kind seqType
}

func newTreat(expr Expr, kind seqType) *treat {
	e := treat{
		expr: expr,
		kind: kind,
	}
	e.info = combine(expr)
	e.info.Order = expr.Info().Order
	return &e
}

func (e *treat) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	return seq.MapAll(func(items []Item) (*Sequence, error) {
		if !e.kind.match(ctx, items) {
			return nil, xdm.Errorf(xdm.CodeTreat, "sequence does not match %s", e.kind)
		}
		return FromItems(items), nil
	}), nil
}
