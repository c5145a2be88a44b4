package xpath

import (
	"github.com/midbel/xquery/tree"
)

// logical is the and/or operator. Operands are evaluated from left to right
// and evaluation stops as soon as the result is known.
type logical struct {
	base
	all []Expr
	and bool
}

func newAnd(all ...Expr) *logical {
	e := logical{
		all: flattenLogical(all, true),
		and: true,
	}
	e.info = combine(e.all...)
	for _, x := range e.all {
		if b := x.Info().Bucket; b != "" {
			e.info.Bucket = b
			break
		}
	}
	return &e
}

func newOr(all ...Expr) *logical {
	e := logical{
		all: flattenLogical(all, false),
	}
	e.info = combine(e.all...)
	for i, x := range e.all {
		b := x.Info().Bucket
		if i == 0 {
			e.info.Bucket = b
		} else if b != e.info.Bucket {
			e.info.Bucket = ""
			break
		}
	}
	return &e
}

func flattenLogical(all []Expr, and bool) []Expr {
	var list []Expr
	for _, e := range all {
		if x, ok := e.(*logical); ok && x.and == and {
			list = append(list, x.all...)
			continue
		}
		list = append(list, e)
	}
	return list
}

func (e *logical) find(ctx Context) (*Sequence, error) {
	var (
		pos  int
		curr *Sequence
	)
	return Lazy(func() (*Sequence, tree.Future, error) {
		for ; pos < len(e.all); pos++ {
			if curr == nil {
				if skip(ctx, e.all[pos]) {
					if e.and {
						return boolSeq(false), nil, nil
					}
					continue
				}
				seq, err := eval(ctx, e.all[pos])
				if err != nil {
					return nil, nil, err
				}
				curr = seq
			}
			ok, fut, err := curr.EffectiveBooleanValue()
			if err != nil || fut != nil {
				return nil, fut, err
			}
			curr = nil
			if ok != e.and {
				return boolSeq(ok), nil, nil
			}
		}
		return boolSeq(e.and), nil, nil
	}), nil
}

// skip reports whether the bucket of e excludes the context node, in which
// case e is known to be false.
func skip(ctx Context, e Expr) bool {
	bucket := e.Info().Bucket
	if ctx.DisableBuckets || bucket == "" || ctx.Item == nil {
		return false
	}
	node, ok := ctx.Item.Node()
	if !ok || ctx.Facade() == nil {
		return false
	}
	return !tree.Compatible(ctx.Facade(), node, bucket)
}
