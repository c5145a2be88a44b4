package xpath

import (
	"math"

	"github.com/midbel/xquery/tree"
)

type filter struct {
	base
	expr Expr
	pred Expr
}

func newFilter(expr, pred Expr) *filter {
	e := filter{
		expr: expr,
		pred: pred,
	}
	info := expr.Info()
	e.info = combine(expr, pred)
	e.info.Specificity.Externals++
	e.info.Order = info.Order
	e.info.Peer = info.Peer
	e.info.Subtree = info.Subtree
	e.info.Bucket = info.Bucket
	e.info.Span = info.Span
	return &e
}

func (e *filter) find(ctx Context) (*Sequence, error) {
	seq, err := eval(ctx, e.expr)
	if err != nil {
		return nil, err
	}
	if e.pred.Info().Static {
		return e.static(ctx, seq)
	}
	var (
		items  []Item
		loaded bool
		pos    int
		test   *Sequence
	)
	return Create(IteratorFunc(func() (Step, error) {
		if !loaded {
			list, fut, err := seq.Collect()
			if err != nil {
				return done, err
			}
			if fut != nil {
				return pending(fut), nil
			}
			items, loaded = list, true
		}
		for pos < len(items) {
			if test == nil {
				sub := ctx.Sub(items[pos], pos+1, len(items))
				if test, err = eval(sub, e.pred); err != nil {
					return done, err
				}
			}
			ok, fut, err := predicateTrue(test, pos+1)
			if err != nil {
				return done, err
			}
			if fut != nil {
				return pending(fut), nil
			}
			test = nil
			pos++
			if ok {
				return ready(items[pos-1]), nil
			}
		}
		return done, nil
	})), nil
}

// static evaluates a predicate that does not depend on the context item only
// once: a number selects the item at that position, any other value keeps
// all or none of the items.
func (e *filter) static(ctx Context, seq *Sequence) (*Sequence, error) {
	test, err := eval(ctx, e.pred)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		fut, err := test.fill(2)
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if n, ok := position(test); ok {
			if n != math.Trunc(n) || n < 1 {
				return Empty(), nil, nil
			}
			return nth(seq, int(n)), nil, nil
		}
		ok, fut, err := test.EffectiveBooleanValue()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if !ok {
			return Empty(), nil, nil
		}
		return seq, nil, nil
	}), nil
}

func nth(seq *Sequence, n int) *Sequence {
	var count int
	return Create(IteratorFunc(func() (Step, error) {
		for count < n {
			st, err := seq.Next()
			if err != nil || st.State != Ready {
				return st, err
			}
			count++
			if count == n {
				return st, nil
			}
		}
		return done, nil
	}))
}

// predicateTrue applies the numeric-or-boolean rule of predicates to the
// result of a predicate evaluated for the item at pos.
func predicateTrue(test *Sequence, pos int) (bool, tree.Future, error) {
	fut, err := test.fill(2)
	if err != nil || fut != nil {
		return false, fut, err
	}
	if n, ok := position(test); ok {
		return n == float64(pos), nil, nil
	}
	return test.EffectiveBooleanValue()
}

func position(test *Sequence) (float64, bool) {
	if len(test.buf) != 1 {
		return 0, false
	}
	v, ok := test.buf[0].Atomic()
	if !ok || !v.Numeric() {
		return 0, false
	}
	return v.Float(), true
}
