package xpath

import (
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

// generalCmp is true when any pair of atomized items satisfies the operator.
type generalCmp struct {
	base
	left  Expr
	right Expr
	op    xdm.Op
}

func newGeneralCmp(op xdm.Op, left, right Expr) *generalCmp {
	e := generalCmp{
		left:  left,
		right: right,
		op:    op,
	}
	e.info = combine(left, right)
	return &e
}

func (e *generalCmp) find(ctx Context) (*Sequence, error) {
	left, err := eval(ctx, e.left)
	if err != nil {
		return nil, err
	}
	right, err := eval(ctx, e.right)
	if err != nil {
		return nil, err
	}
	var (
		xs = left.Atomize(ctx)
		ys = right.Atomize(ctx)
	)
	return Lazy(func() (*Sequence, tree.Future, error) {
		as, fut, err := xs.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		bs, fut, err := ys.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		for _, a := range as {
			x, _ := a.Atomic()
			for _, b := range bs {
				y, _ := b.Atomic()
				ok, err := xdm.GeneralCompare(e.op, x, y)
				if err != nil {
					return nil, nil, err
				}
				if ok {
					return boolSeq(true), nil, nil
				}
			}
		}
		return boolSeq(false), nil, nil
	}), nil
}

type valueCmp struct {
	base
	left  Expr
	right Expr
	op    xdm.Op
}

func newValueCmp(op xdm.Op, left, right Expr) *valueCmp {
	e := valueCmp{
		left:  left,
		right: right,
		op:    op,
	}
	e.info = combine(left, right)
	return &e
}

func (e *valueCmp) find(ctx Context) (*Sequence, error) {
	left, err := eval(ctx, e.left)
	if err != nil {
		return nil, err
	}
	right, err := eval(ctx, e.right)
	if err != nil {
		return nil, err
	}
	var (
		x = optionalAtomic(ctx, left)
		y = optionalAtomic(ctx, right)
	)
	return Lazy(func() (*Sequence, tree.Future, error) {
		a, fut, err := x()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		b, fut, err := y()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if a == nil || b == nil {
			return Empty(), nil, nil
		}
		ok, err := xdm.ValueCompare(e.op, untypedToString(*a), untypedToString(*b))
		if err != nil {
			return nil, nil, err
		}
		return boolSeq(ok), nil, nil
	}), nil
}

func untypedToString(v xdm.Value) xdm.Value {
	if v.Type == xdm.UntypedAtomic {
		return xdm.NewString(v.String())
	}
	return v
}

type nodeOp int8

const (
	nodeIs nodeOp = iota
	nodeBefore
	nodeAfter
)

// nodeCmp implements is, << and >>.
type nodeCmp struct {
	base
	left  Expr
	right Expr
	op    nodeOp
}

func newNodeCmp(op nodeOp, left, right Expr) *nodeCmp {
	e := nodeCmp{
		left:  left,
		right: right,
		op:    op,
	}
	e.info = combine(left, right)
	return &e
}

func (e *nodeCmp) find(ctx Context) (*Sequence, error) {
	left, err := eval(ctx, e.left)
	if err != nil {
		return nil, err
	}
	right, err := eval(ctx, e.right)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		a, fut, err := optionalNode(left)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		b, fut, err := optionalNode(right)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if a == nil || b == nil {
			return Empty(), nil, nil
		}
		cmp := ctx.Facade().Compare(a, b)
		switch e.op {
		case nodeBefore:
			return boolSeq(cmp < 0), nil, nil
		case nodeAfter:
			return boolSeq(cmp > 0), nil, nil
		default:
			return boolSeq(cmp == 0), nil, nil
		}
	}), nil
}

func optionalNode(seq *Sequence) (tree.Node, tree.Future, error) {
	fut, err := seq.fill(2)
	if err != nil || fut != nil {
		return nil, fut, err
	}
	switch len(seq.buf) {
	case 0:
		return nil, nil, nil
	case 1:
		n, ok := seq.buf[0].Node()
		if !ok {
			return nil, nil, typeError("node comparison expects nodes, got %s", kindOf(seq.buf[0]))
		}
		return n, nil, nil
	default:
		return nil, nil, cardinalityError("expected at most one node")
	}
}
