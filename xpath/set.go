package xpath

import (
	"slices"

	"github.com/midbel/xquery/tree"
)

type setOp int8

const (
	setUnion setOp = iota
	setIntersect
	setExcept
)

func (o setOp) String() string {
	switch o {
	case setIntersect:
		return "intersect"
	case setExcept:
		return "except"
	default:
		return "union"
	}
}

type setExpr struct {
	base
	left  Expr
	right Expr
	op    setOp
}

func newSetExpr(op setOp, left, right Expr) *setExpr {
	e := setExpr{
		left:  left,
		right: right,
		op:    op,
	}
	e.info = combine(left, right)
	e.info.Order = Sorted
	if op == setUnion {
		var (
			x = left.Info().Bucket
			y = right.Info().Bucket
		)
		if x == y {
			e.info.Bucket = x
		}
	} else if op == setIntersect {
		e.info.Bucket = left.Info().Bucket
		if e.info.Bucket == "" {
			e.info.Bucket = right.Info().Bucket
		}
	} else {
		e.info.Bucket = left.Info().Bucket
	}
	return &e
}

func (e *setExpr) find(ctx Context) (*Sequence, error) {
	left, err := eval(ctx, e.left)
	if err != nil {
		return nil, err
	}
	right, err := eval(ctx, e.right)
	if err != nil {
		return nil, err
	}
	return Lazy(func() (*Sequence, tree.Future, error) {
		xs, fut, err := left.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		ys, fut, err := right.Collect()
		if err != nil || fut != nil {
			return nil, fut, err
		}
		if err := allNodes(xs, e.op.String()); err != nil {
			return nil, nil, err
		}
		if err := allNodes(ys, e.op.String()); err != nil {
			return nil, nil, err
		}
		f := ctx.Facade()
		if e.op == setUnion {
			list := normalize(f, slices.Concat(xs, ys))
			return FromItems(list), nil, nil
		}
		var (
			other = normalize(f, slices.Clone(ys))
			keep  = e.op == setIntersect
			list  []Item
		)
		for _, x := range normalize(f, slices.Clone(xs)) {
			_, found := search(f, other, x)
			if found == keep {
				list = append(list, x)
			}
		}
		return FromItems(list), nil, nil
	}), nil
}

func allNodes(items []Item, op string) error {
	for _, i := range items {
		if !IsNode(i) {
			return typeError("%s operand must only contain nodes, got %s", op, kindOf(i))
		}
	}
	return nil
}

func compareItems(f tree.Facade) func(Item, Item) int {
	return func(a, b Item) int {
		x, _ := a.Node()
		y, _ := b.Node()
		if x == y {
			return 0
		}
		return f.Compare(x, y)
	}
}

// normalize sorts a list of nodes in document order and removes the
// duplicates.
func normalize(f tree.Facade, items []Item) []Item {
	if len(items) <= 1 {
		return items
	}
	slices.SortStableFunc(items, compareItems(f))
	return slices.CompactFunc(items, func(a, b Item) bool {
		x, _ := a.Node()
		y, _ := b.Node()
		return x == y
	})
}

func search(f tree.Facade, items []Item, item Item) (int, bool) {
	return slices.BinarySearchFunc(items, item, compareItems(f))
}

// insertSorted adds item to a list kept in document order unless it is
// already present.
func insertSorted(f tree.Facade, items []Item, item Item) []Item {
	if n := len(items); n > 0 && compareItems(f)(items[n-1], item) < 0 {
		return append(items, item)
	}
	i, found := search(f, items, item)
	if found {
		return items
	}
	return slices.Insert(items, i, item)
}
