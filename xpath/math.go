package xpath

import (
	"github.com/midbel/xquery/tree"
	"github.com/midbel/xquery/xdm"
)

type binary struct {
	base
	left  Expr
	right Expr
	op    xdm.ArithOp
}

func newBinary(op xdm.ArithOp, left, right Expr) *binary {
	e := binary{
		left:  left,
		right: right,
		op:    op,
	}
	e.info = combine(left, right)
	return &e
}

func (e *binary) find(ctx Context) (*Sequence, error) {
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
		res, err := xdm.Arithmetic(e.op, *a, *b)
		if err != nil {
			return nil, nil, err
		}
		return Singleton(Atomic(res)), nil, nil
	}), nil
}

type unary struct {
	base
	expr   Expr
	negate bool
}

func newUnary(expr Expr, negate bool) *unary {
	e := unary{
		expr:   expr,
		negate: negate,
	}
	e.info = combine(expr)
	return &e
}

func (e *unary) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	get := optionalAtomic(ctx, seq)
	return Lazy(func() (*Sequence, tree.Future, error) {
		v, fut, err := get()
		if err != nil || fut != nil || v == nil {
			return Empty(), fut, err
		}
		x := *v
		if x.Type == xdm.UntypedAtomic {
			if x, err = xdm.Cast(x, xdm.Double); err != nil {
				return nil, nil, err
			}
		}
		if !x.Numeric() {
			return nil, nil, typeError("unary operator can not be applied to %s", x.Type)
		}
		if e.negate {
			if x, err = xdm.Negate(x); err != nil {
				return nil, nil, err
			}
		}
		return Singleton(Atomic(x)), nil, nil
	}), nil
}

// concatenation is the || operator. An empty operand counts as the empty
// string.
type concatenation struct {
	base
	all []Expr
}

func newConcat(left, right Expr) *concatenation {
	var e concatenation
	if x, ok := left.(*concatenation); ok {
		e.all = append(e.all, x.all...)
	} else {
		e.all = append(e.all, left)
	}
	e.all = append(e.all, right)
	e.info = combine(e.all...)
	return &e
}

func (e *concatenation) find(ctx Context) (*Sequence, error) {
	parts := make([]func() (*xdm.Value, tree.Future, error), 0, len(e.all))
	for _, x := range e.all {
		seq, err := eval(ctx, x)
		if err != nil {
			return nil, err
		}
		parts = append(parts, optionalAtomic(ctx, seq))
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		var str []byte
		for _, get := range parts {
			v, fut, err := get()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			if v != nil {
				str = append(str, v.String()...)
			}
		}
		return stringSeq(string(str)), nil, nil
	}), nil
}
